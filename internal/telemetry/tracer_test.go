package telemetry

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"meeting-analyzer/internal/apiclient"
	"meeting-analyzer/internal/domain"
)

func envOf(values map[string]string) func(string) string {
	return func(key string) string { return values[key] }
}

func resetGlobal(t *testing.T) {
	t.Helper()
	t.Cleanup(func() { otel.SetTracerProvider(noop.NewTracerProvider()) })
}

func TestConfigFromEnv(t *testing.T) {
	cfg := ConfigFromEnv("meetingctl", envOf(nil))
	if cfg.Enabled {
		t.Fatal("expected tracing disabled without an endpoint")
	}

	cfg = ConfigFromEnv("meetingctl", envOf(map[string]string{
		EnvEndpoint:   "http://collector:4318",
		EnvSampleRate: "0.25",
	}))
	if !cfg.Enabled || cfg.ExporterType != "http" || cfg.Endpoint != "http://collector:4318" || cfg.SamplingRate != 0.25 {
		t.Fatalf("config = %+v", cfg)
	}

	cfg = ConfigFromEnv("meetingctl", envOf(map[string]string{
		EnvEndpoint:       "http://ignored:4318",
		EnvTracesEndpoint: "collector:4317",
		EnvProtocol:       "GRPC",
	}))
	if cfg.ExporterType != "grpc" || cfg.Endpoint != "collector:4317" || cfg.SamplingRate != 1.0 {
		t.Fatalf("config = %+v", cfg)
	}
}

func TestNewProviderDisabled(t *testing.T) {
	resetGlobal(t)
	provider, err := NewProvider(context.Background(), Config{ServiceName: "test"})
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}
	if provider.Enabled() {
		t.Fatal("expected noop provider")
	}

	_, span := Tracer("test").Start(context.Background(), "noop-check")
	if span.IsRecording() {
		t.Error("expected noop tracer span to be non-recording")
	}
	span.End()
	if err := provider.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
}

func TestNewProviderInvalidExporter(t *testing.T) {
	_, err := NewProvider(context.Background(), Config{
		Enabled:      true,
		ServiceName:  "test",
		ExporterType: "invalid",
	})
	if err == nil {
		t.Fatal("expected error for invalid exporter type")
	}
	want := "unsupported exporter type: invalid (supported: grpc, http)"
	if err.Error() != want {
		t.Errorf("error = %q, want %q", err.Error(), want)
	}
}

// TestInstalledProviderRecordsClientSpans checks the API client reports its
// requests through the globally installed provider.
func TestInstalledProviderRecordsClientSpans(t *testing.T) {
	resetGlobal(t)
	exporter := tracetest.NewInMemoryExporter()
	provider, err := install(context.Background(), Config{Enabled: true, ServiceName: "test", SamplingRate: 1}, exporter)
	if err != nil {
		t.Fatalf("install() error = %v", err)
	}
	defer func() { _ = provider.Shutdown(context.Background()) }()

	var traceparent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceparent = r.Header.Get("traceparent")
		_ = json.NewEncoder(w).Encode(domain.AnalysisResult{Transcription: "hi", Summary: "short"})
	}))
	defer srv.Close()

	client := apiclient.New(srv.URL)
	if _, err := client.SubmitForAnalysis(context.Background(), domain.AudioSubmission{
		FileName: "a.wav",
		Payload:  []byte("RIFF"),
	}, nil); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := provider.ForceFlush(context.Background()); err != nil {
		t.Fatalf("ForceFlush() error = %v", err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("spans = %d, want 1", len(spans))
	}
	if spans[0].Name != "analysis POST /api/transcribe" || spans[0].SpanKind != trace.SpanKindClient {
		t.Fatalf("span = %s kind %s", spans[0].Name, spans[0].SpanKind)
	}
	if traceparent == "" {
		t.Fatal("expected trace context to be propagated to the service")
	}
}
