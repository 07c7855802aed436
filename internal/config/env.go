package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"meeting-analyzer/internal/domain"
)

// Environment variables read on top of the settings file.
const (
	EnvBaseURL       = "MEETING_API_URL"
	EnvLegacyBaseURL = "REACT_APP_API_URL"
	EnvStageDwell    = "MEETING_STAGE_DWELL"
	// EnvMetricsAddr makes the desktop app serve Prometheus metrics, e.g. "127.0.0.1:9464".
	EnvMetricsAddr = "MEETING_METRICS_ADDR"
)

// EnvStore overlays environment values on another store. The service base URL
// is deployment configuration, so the environment wins over the file.
type EnvStore struct {
	Store
	getenv func(string) string
}

// WithEnv wraps store with the process environment.
func WithEnv(store Store) *EnvStore {
	return &EnvStore{Store: store, getenv: os.Getenv}
}

// Load reads the wrapped store and applies the environment overlay.
func (s *EnvStore) Load() (domain.Settings, error) {
	settings, err := s.Store.Load()
	if err != nil {
		return domain.Settings{}, err
	}
	return ApplyEnv(settings, s.getenv), nil
}

// ApplyEnv returns settings with environment overrides applied.
// MEETING_STAGE_DWELL accepts a Go duration ("750ms") or plain milliseconds.
func ApplyEnv(settings domain.Settings, getenv func(string) string) domain.Settings {
	if v := strings.TrimSpace(getenv(EnvBaseURL)); v != "" {
		settings.BaseURL = v
	} else if v := strings.TrimSpace(getenv(EnvLegacyBaseURL)); v != "" {
		settings.BaseURL = v
	}

	if v := strings.TrimSpace(getenv(EnvStageDwell)); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d >= 0 {
			settings.StageDwellMs = int(d / time.Millisecond)
		} else if ms, err := strconv.Atoi(v); err == nil && ms >= 0 {
			settings.StageDwellMs = ms
		}
	}
	return settings
}

// Normalize trims user inputs and fills empty values with defaults.
func Normalize(settings domain.Settings) domain.Settings {
	defaults := DefaultSettings()
	settings.BaseURL = strings.TrimRight(strings.TrimSpace(settings.BaseURL), "/")
	settings.OutputDir = strings.TrimSpace(settings.OutputDir)
	settings.Language = strings.ToLower(strings.TrimSpace(settings.Language))

	if settings.BaseURL == "" {
		settings.BaseURL = defaults.BaseURL
	}
	if settings.Language == "" || domain.Language(settings.Language).QueryCode() == "" {
		settings.Language = string(domain.LanguageAuto)
	}
	if settings.OutputDir == "" {
		settings.OutputDir = defaults.OutputDir
	}
	if settings.StageDwellMs < 0 {
		settings.StageDwellMs = 0
	}
	return settings
}
