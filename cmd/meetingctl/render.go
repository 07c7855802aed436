package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"meeting-analyzer/internal/domain"
)

const noData = "No data"

var (
	colorCyan   = lipgloss.Color("#00FFFF")
	colorGreen  = lipgloss.Color("#00FF00")
	colorYellow = lipgloss.Color("#FFFF00")
	colorRed    = lipgloss.Color("#FF0000")
	colorGray   = lipgloss.Color("#666666")
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorCyan)

	labelStyle = lipgloss.NewStyle().
			Foreground(colorCyan)

	successStyle = lipgloss.NewStyle().
			Foreground(colorGreen)

	warnStyle = lipgloss.NewStyle().
			Foreground(colorYellow)

	errorStyle = lipgloss.NewStyle().
			Foreground(colorRed).
			Bold(true)

	mutedStyle = lipgloss.NewStyle().
			Foreground(colorGray)
)

// renderProgress formats one state line such as "[ 50%] transcribing".
func renderProgress(state domain.PipelineState) string {
	line := fmt.Sprintf("[%3d%%] %s", state.Progress, state.Stage)
	switch state.Stage {
	case domain.StageComplete:
		return successStyle.Render(line)
	case domain.StageFailed:
		return errorStyle.Render(line + ": " + state.Error)
	default:
		return mutedStyle.Render(line)
	}
}

// renderResult prints every section of an analysis; empty lists show "No data".
func renderResult(w io.Writer, result domain.AnalysisResult) {
	section(w, "Summary", []string{result.Summary})
	section(w, "Participants", result.Participants)
	section(w, "Decisions", result.Decisions)

	items := make([]string, 0, len(result.ActionItems))
	for _, item := range result.ActionItems {
		items = append(items, formatActionItem(item))
	}
	section(w, "Action Items", items)
	section(w, "Transcription", []string{result.Transcription})
}

func section(w io.Writer, title string, lines []string) {
	fmt.Fprintln(w, headerStyle.Render(title))
	printed := false
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		fmt.Fprintln(w, "  "+line)
		printed = true
	}
	if !printed {
		fmt.Fprintln(w, "  "+mutedStyle.Render(noData))
	}
	fmt.Fprintln(w)
}

func formatActionItem(item domain.ActionItem) string {
	var meta []string
	if item.Assignee != "" {
		meta = append(meta, labelStyle.Render("assignee:")+" "+item.Assignee)
	}
	if item.Deadline != "" {
		meta = append(meta, labelStyle.Render("due:")+" "+item.Deadline)
	}
	if len(meta) == 0 {
		return "- " + item.Task
	}
	return fmt.Sprintf("- %s (%s)", item.Task, strings.Join(meta, ", "))
}
