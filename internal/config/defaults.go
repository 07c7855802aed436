package config

import (
	"os"
	"path/filepath"

	"meeting-analyzer/internal/domain"
)

// DefaultBaseURL is used when neither settings nor environment name a service.
const DefaultBaseURL = "http://localhost:8000"

// DefaultStageDwellMs holds each intermediate stage marker for half a second.
const DefaultStageDwellMs = 500

// DefaultSettings returns baseline local configuration for first launch.
func DefaultSettings() domain.Settings {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}

	return domain.Settings{
		BaseURL:      DefaultBaseURL,
		Language:     string(domain.LanguageAuto),
		OutputDir:    filepath.Join(homeDir, "Documents", "Meeting Analyses"),
		StageDwellMs: DefaultStageDwellMs,
	}
}
