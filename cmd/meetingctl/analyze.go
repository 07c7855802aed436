package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"meeting-analyzer/internal/apiclient"
	"meeting-analyzer/internal/domain"
	"meeting-analyzer/internal/export"
	"meeting-analyzer/internal/jobs"
	"meeting-analyzer/internal/pipeline"
)

type analyzeOptions struct {
	language string
	export   bool
	saveJSON string
}

func newAnalyzeCmd(global *globalOptions) *cobra.Command {
	opts := &analyzeOptions{}
	cmd := &cobra.Command{
		Use:   "analyze <file>",
		Short: "Upload a recording and print the analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := global.settings()
			if err != nil {
				return err
			}
			return runAnalyze(cmd, settings, args[0], opts)
		},
	}
	cmd.Flags().StringVar(&opts.language, "language", "", "language hint: auto, en or he (default from settings)")
	cmd.Flags().BoolVar(&opts.export, "export", false, "also export the result as a document into the output directory")
	cmd.Flags().StringVar(&opts.saveJSON, "save-json", "", "write the analysis result as JSON to this path")
	return cmd
}

func runAnalyze(cmd *cobra.Command, settings domain.Settings, path string, opts *analyzeOptions) error {
	format, ok := domain.FormatFromFileName(path)
	if !ok {
		return fmt.Errorf("unsupported file type %q: choose an .mp3 or .wav recording", filepath.Ext(path))
	}
	payload, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read audio file: %w", err)
	}

	language := opts.language
	if language == "" {
		language = settings.Language
	}

	client := apiclient.New(settings.BaseURL)
	p := pipeline.New(client, pipeline.WithStageDwell(settings.StageDwell()))
	out := cmd.OutOrStdout()
	unsubscribe := p.Subscribe(progressPrinter(out))
	defer unsubscribe()

	final, err := p.Run(cmd.Context(), domain.AudioSubmission{
		FileName: filepath.Base(path),
		Format:   format,
		Language: domain.Language(language),
		Payload:  payload,
	})
	if err != nil {
		return err
	}

	switch final.Stage {
	case domain.StageComplete:
	case domain.StageFailed:
		return errors.New(final.Error)
	default:
		return errors.New("analysis cancelled")
	}

	result := *final.Result
	renderResult(out, result)

	if opts.saveJSON != "" {
		data, err := json.MarshalIndent(result.Normalize(), "", "  ")
		if err != nil {
			return fmt.Errorf("encode result: %w", err)
		}
		if err := os.WriteFile(opts.saveJSON, data, 0o644); err != nil {
			return fmt.Errorf("save result json: %w", err)
		}
		fmt.Fprintln(out, mutedStyle.Render("Result saved to "+opts.saveJSON))
	}

	if opts.export {
		saved, err := exportDocument(cmd, client, settings.OutputDir, result)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, successStyle.Render("Document exported to "+saved))
	}
	return nil
}

// progressPrinter prints a line whenever the stage or progress changes.
func progressPrinter(w io.Writer) func(jobs.Event) {
	var last domain.PipelineState
	return func(event jobs.Event) {
		if event.Type != jobs.EventTypeState {
			return
		}
		state := event.State
		if state.Stage == last.Stage && state.Progress == last.Progress {
			return
		}
		last = state
		fmt.Fprintln(w, renderProgress(state))
	}
}

func exportDocument(cmd *cobra.Command, client *apiclient.Client, outputDir string, result domain.AnalysisResult) (string, error) {
	doc, err := client.ExportResult(cmd.Context(), result)
	if err != nil {
		return "", fmt.Errorf("export: %s", apiclient.MessageOf(err))
	}
	return export.NewWriter(outputDir).Save(doc)
}
