package config

import (
	"testing"

	"meeting-analyzer/internal/domain"
)

func envMap(values map[string]string) func(string) string {
	return func(key string) string { return values[key] }
}

// TestApplyEnvOverrides verifies environment precedence over file values.
func TestApplyEnvOverrides(t *testing.T) {
	base := DefaultSettings()

	got := ApplyEnv(base, envMap(map[string]string{
		EnvBaseURL:       "https://api.example.com",
		EnvLegacyBaseURL: "http://ignored",
		EnvStageDwell:    "750ms",
	}))
	if got.BaseURL != "https://api.example.com" {
		t.Fatalf("base url = %q", got.BaseURL)
	}
	if got.StageDwellMs != 750 {
		t.Fatalf("stage dwell = %d, want 750", got.StageDwellMs)
	}

	got = ApplyEnv(base, envMap(map[string]string{
		EnvLegacyBaseURL: "http://legacy:8000",
		EnvStageDwell:    "0",
	}))
	if got.BaseURL != "http://legacy:8000" || got.StageDwellMs != 0 {
		t.Fatalf("settings = %+v", got)
	}

	got = ApplyEnv(base, envMap(map[string]string{EnvStageDwell: "soon"}))
	if got.StageDwellMs != base.StageDwellMs {
		t.Fatalf("invalid dwell should be ignored, got %d", got.StageDwellMs)
	}
}

// TestEnvStoreLoad checks the overlay wraps another store.
func TestEnvStoreLoad(t *testing.T) {
	store := &EnvStore{
		Store:  NewJSONStore(t.TempDir() + "/settings.json"),
		getenv: envMap(map[string]string{EnvBaseURL: "http://remote:8000"}),
	}
	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.BaseURL != "http://remote:8000" {
		t.Fatalf("base url = %q", got.BaseURL)
	}
}

// TestNormalize verifies trimming and fallback values.
func TestNormalize(t *testing.T) {
	got := Normalize(domain.Settings{
		BaseURL:      " http://host:8000/ ",
		Language:     " FR ",
		StageDwellMs: -5,
	})
	if got.BaseURL != "http://host:8000" {
		t.Fatalf("base url = %q", got.BaseURL)
	}
	if got.Language != "auto" {
		t.Fatalf("language = %q, want auto", got.Language)
	}
	if got.OutputDir == "" {
		t.Fatal("expected default output dir")
	}
	if got.StageDwellMs != 0 {
		t.Fatalf("stage dwell = %d, want 0", got.StageDwellMs)
	}
	if Normalize(domain.Settings{Language: "HE"}).Language != "he" {
		t.Fatal("expected he to be kept")
	}
}
