package bootstrap

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"meeting-analyzer/internal/domain"
	"meeting-analyzer/internal/jobs"
)

// fakeStore returns deterministic settings for App tests.
type fakeStore struct {
	mu       sync.Mutex
	settings domain.Settings
	saved    int
}

// Load returns preconfigured settings.
func (s *fakeStore) Load() (domain.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings, nil
}

// Save records the latest settings.
func (s *fakeStore) Save(settings domain.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = settings
	s.saved++
	return nil
}

// fakeChecker counts diagnostics runs.
type fakeChecker struct {
	mu   sync.Mutex
	runs []domain.Settings
}

// Run records the settings it was called with.
func (c *fakeChecker) Run(_ context.Context, settings domain.Settings) domain.DiagnosticReport {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runs = append(c.runs, settings)
	return domain.DiagnosticReport{Items: []domain.DiagnosticItem{{ID: "service", Status: domain.DiagnosticStatusPass}}}
}

// fakeService serves the analysis endpoints used by the App.
type fakeService struct {
	mu           sync.Mutex
	languages    []string
	submitStatus int
	exportStatus int
	block        chan struct{}
}

func (f *fakeService) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/transcribe", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		f.mu.Lock()
		f.languages = append(f.languages, r.URL.Query().Get("language"))
		status, block := f.submitStatus, f.block
		f.mu.Unlock()

		if block != nil {
			select {
			case <-block:
			case <-r.Context().Done():
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		if status != 0 {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"detail":"transcription backend down"}`))
			return
		}
		_, _ = w.Write([]byte(`{"transcription":"hello team","summary":"short sync","participants":["Dana"],"decisions":[],"action_items":[{"task":"send notes","assignee":"Dana"}]}`))
	})
	mux.HandleFunc("/api/export", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		status := f.exportStatus
		f.mu.Unlock()
		if status != 0 {
			http.Error(w, `{"detail":"export failed"}`, status)
			return
		}
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.wordprocessingml.document")
		w.Header().Set("Content-Disposition", `attachment; filename="minutes.docx"`)
		_, _ = w.Write([]byte("PK-docx"))
	})
	return mux
}

// emitRecorder captures runtime push events.
type emitRecorder struct {
	mu     sync.Mutex
	names  []string
	events []jobs.Event
}

func (r *emitRecorder) emit(_ context.Context, name string, data ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names = append(r.names, name)
	if len(data) == 1 {
		if event, ok := data[0].(jobs.Event); ok {
			r.events = append(r.events, event)
		}
	}
}

func (r *emitRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// newTestApp builds an App against a fake service with no stage dwell.
func newTestApp(t *testing.T, service *fakeService) (*App, *fakeStore, *fakeChecker) {
	t.Helper()
	srv := httptest.NewServer(service.handler())
	t.Cleanup(srv.Close)

	store := &fakeStore{settings: domain.Settings{
		BaseURL:      srv.URL,
		Language:     "auto",
		OutputDir:    filepath.Join(t.TempDir(), "out"),
		StageDwellMs: 0,
	}}
	checker := &fakeChecker{}
	app, err := newApp(store, checker)
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	t.Cleanup(app.Pipeline.Wait)
	return app, store, checker
}

// writeRecording creates an audio file with the given name.
func writeRecording(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("ID3-audio-bytes"), 0o644); err != nil {
		t.Fatalf("write recording: %v", err)
	}
	return path
}

// TestStartAnalysisRunsToCompleteAndPushesEvents checks the full desktop flow.
func TestStartAnalysisRunsToCompleteAndPushesEvents(t *testing.T) {
	app, _, _ := newTestApp(t, &fakeService{})
	recorder := &emitRecorder{}
	app.emit = recorder.emit
	app.Startup(context.Background())
	defer app.Shutdown(context.Background())

	state, err := app.StartAnalysis(writeRecording(t, "standup.mp3"), "")
	if err != nil {
		t.Fatalf("start analysis: %v", err)
	}
	if state.Stage != domain.StageUploading || state.Progress != 10 {
		t.Fatalf("initial state = %s/%d, want uploading/10", state.Stage, state.Progress)
	}

	waitForStage(t, app, domain.StageComplete)
	outcome := app.CurrentOutcome()
	if outcome.Result == nil || outcome.Result.Transcription != "hello team" {
		t.Fatalf("outcome = %+v", outcome)
	}
	if app.CurrentState().Progress != 100 {
		t.Fatalf("progress = %d, want 100", app.CurrentState().Progress)
	}

	events := app.PipelineEvents(0)
	assertStagesInOrder(t, events, domain.StageUploading, domain.StageTranscribing, domain.StageAnalyzing, domain.StageComplete)
	if recorder.count() != len(events) {
		t.Fatalf("pushed %d events, bus holds %d", recorder.count(), len(events))
	}
	for _, name := range recorder.names {
		if name != EventName {
			t.Fatalf("event name = %q, want %q", name, EventName)
		}
	}
	if len(app.PipelineEvents(events[len(events)-1].Seq)) != 0 {
		t.Fatal("expected no events after the last sequence")
	}
}

// TestStartAnalysisRejectsUnsupportedFile checks the accept list.
func TestStartAnalysisRejectsUnsupportedFile(t *testing.T) {
	app, _, _ := newTestApp(t, &fakeService{})

	state, err := app.StartAnalysis(writeRecording(t, "memo.m4a"), "en")
	if !errors.Is(err, ErrUnsupportedFile) {
		t.Fatalf("error = %v, want %v", err, ErrUnsupportedFile)
	}
	if state.Stage != domain.StageIdle {
		t.Fatalf("stage = %s, want idle", state.Stage)
	}
	if len(app.PipelineEvents(0)) != 0 {
		t.Fatal("rejected file must not produce events")
	}
}

// TestStartAnalysisMissingFile keeps the pipeline idle.
func TestStartAnalysisMissingFile(t *testing.T) {
	app, _, _ := newTestApp(t, &fakeService{})

	if _, err := app.StartAnalysis(filepath.Join(t.TempDir(), "gone.wav"), "en"); err == nil {
		t.Fatal("expected read error")
	}
	if app.CurrentState().Stage != domain.StageIdle {
		t.Fatalf("stage = %s, want idle", app.CurrentState().Stage)
	}
}

// TestStartAnalysisEnforcesSingleRun checks the busy guard and cancellation.
func TestStartAnalysisEnforcesSingleRun(t *testing.T) {
	service := &fakeService{block: make(chan struct{})}
	app, _, _ := newTestApp(t, service)
	defer close(service.block)

	if _, err := app.StartAnalysis(writeRecording(t, "a.wav"), "en"); err != nil {
		t.Fatalf("start first analysis: %v", err)
	}
	if _, err := app.StartAnalysis(writeRecording(t, "b.wav"), "en"); !errors.Is(err, jobs.ErrPipelineBusy) {
		t.Fatalf("second start error = %v, want %v", err, jobs.ErrPipelineBusy)
	}

	if err := app.CancelAnalysis(); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	waitForStage(t, app, domain.StageIdle)
	app.Pipeline.Wait()
	if app.CurrentState().Stage != domain.StageIdle {
		t.Fatalf("stage after cancel = %s, want idle", app.CurrentState().Stage)
	}
}

// TestStartAnalysisUsesDefaultLanguage checks the configured language fallback.
func TestStartAnalysisUsesDefaultLanguage(t *testing.T) {
	service := &fakeService{}
	app, store, _ := newTestApp(t, service)
	settings, _ := store.Load()
	settings.Language = "he"
	if _, err := app.SaveSettings(settings); err != nil {
		t.Fatalf("save settings: %v", err)
	}

	if _, err := app.StartAnalysis(writeRecording(t, "a.mp3"), ""); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitForStage(t, app, domain.StageComplete)
	if _, err := app.ResetAnalysis(); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if _, err := app.StartAnalysis(writeRecording(t, "b.mp3"), "auto"); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitForStage(t, app, domain.StageComplete)

	service.mu.Lock()
	defer service.mu.Unlock()
	if len(service.languages) != 2 || service.languages[0] != "he" || service.languages[1] != "" {
		t.Fatalf("languages = %q, want [he \"\"]", service.languages)
	}
}

// TestStartAnalysisServerFailureThenReset checks the failure surface and reset.
func TestStartAnalysisServerFailureThenReset(t *testing.T) {
	app, _, _ := newTestApp(t, &fakeService{submitStatus: http.StatusInternalServerError})

	if _, err := app.StartAnalysis(writeRecording(t, "a.mp3"), "en"); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitForStage(t, app, domain.StageFailed)

	state := app.CurrentState()
	if state.Progress != 0 || state.Error != "transcription backend down" || state.ErrorKind != domain.ErrorKindServer {
		t.Fatalf("failed state = %+v", state)
	}
	if outcome := app.CurrentOutcome(); outcome.Result != nil || outcome.Error == "" {
		t.Fatalf("outcome = %+v", outcome)
	}
	if _, err := app.StartAnalysis(writeRecording(t, "b.mp3"), "en"); !errors.Is(err, jobs.ErrNotIdle) {
		t.Fatalf("start from failed error = %v, want %v", err, jobs.ErrNotIdle)
	}

	reset, err := app.ResetAnalysis()
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if reset.Stage != domain.StageIdle || !app.CurrentOutcome().Empty() {
		t.Fatalf("reset state = %+v outcome = %+v", reset, app.CurrentOutcome())
	}
}

// TestExportResultSavesDocument checks export leaves the pipeline complete.
func TestExportResultSavesDocument(t *testing.T) {
	app, store, _ := newTestApp(t, &fakeService{})
	if _, err := app.StartAnalysis(writeRecording(t, "a.mp3"), "en"); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitForStage(t, app, domain.StageComplete)

	path, err := app.ExportResult()
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	settings, _ := store.Load()
	if path != filepath.Join(settings.OutputDir, "minutes.docx") {
		t.Fatalf("path = %q", path)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "PK-docx" {
		t.Fatalf("exported data = %q, err = %v", data, err)
	}
	if app.CurrentState().Stage != domain.StageComplete {
		t.Fatalf("stage = %s, want complete", app.CurrentState().Stage)
	}
	assertEventTypeExists(t, app.PipelineEvents(0), jobs.EventTypeExport)
}

// TestGetMetricsCountsRunsAndExports checks the bound metrics summary follows real runs.
func TestGetMetricsCountsRunsAndExports(t *testing.T) {
	app, _, _ := newTestApp(t, &fakeService{})
	before, err := app.GetMetrics()
	if err != nil {
		t.Fatalf("metrics before: %v", err)
	}

	if _, err := app.StartAnalysis(writeRecording(t, "a.mp3"), "en"); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitForStage(t, app, domain.StageComplete)
	if _, err := app.ExportResult(); err != nil {
		t.Fatalf("export: %v", err)
	}

	after, err := app.GetMetrics()
	if err != nil {
		t.Fatalf("metrics after: %v", err)
	}
	if got := after.Submissions["complete"] - before.Submissions["complete"]; got != 1 {
		t.Fatalf("complete submissions delta = %v, want 1", got)
	}
	if got := after.Exports["ok"] - before.Exports["ok"]; got != 1 {
		t.Fatalf("ok exports delta = %v, want 1", got)
	}
	if after.Uploads != before.Uploads+1 {
		t.Fatalf("uploads = %d, want %d", after.Uploads, before.Uploads+1)
	}
}

// TestExportResultFailureKeepsState checks export errors are independent of the pipeline.
func TestExportResultFailureKeepsState(t *testing.T) {
	app, _, _ := newTestApp(t, &fakeService{exportStatus: http.StatusInternalServerError})
	if _, err := app.StartAnalysis(writeRecording(t, "a.mp3"), "en"); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitForStage(t, app, domain.StageComplete)
	before := app.CurrentState()

	if _, err := app.ExportResult(); err == nil {
		t.Fatal("expected export error")
	}
	after := app.CurrentState()
	if after.Stage != domain.StageComplete || after.UpdatedAt != before.UpdatedAt {
		t.Fatalf("state changed by export failure: %+v", after)
	}
	assertEventTypeExists(t, app.PipelineEvents(0), jobs.EventTypeError)
}

// TestExportResultWithoutResult checks export needs a completed analysis.
func TestExportResultWithoutResult(t *testing.T) {
	app, _, _ := newTestApp(t, &fakeService{})
	if _, err := app.ExportResult(); !errors.Is(err, ErrNoResult) {
		t.Fatalf("error = %v, want %v", err, ErrNoResult)
	}
}

// TestSaveSettingsAppliesAndRerunsDiagnostics checks settings propagation.
func TestSaveSettingsAppliesAndRerunsDiagnostics(t *testing.T) {
	app, store, checker := newTestApp(t, &fakeService{})

	saved, err := app.SaveSettings(domain.Settings{
		BaseURL:      " http://analysis.internal:9000/ ",
		Language:     "EN",
		OutputDir:    "/tmp/meeting-out",
		StageDwellMs: 120,
	})
	if err != nil {
		t.Fatalf("save settings: %v", err)
	}
	if saved.BaseURL != "http://analysis.internal:9000" || saved.Language != "en" {
		t.Fatalf("saved = %+v", saved)
	}
	if store.saved != 1 {
		t.Fatalf("store saves = %d, want 1", store.saved)
	}
	if got := app.service.current().BaseURL(); got != "http://analysis.internal:9000" {
		t.Fatalf("client base url = %q", got)
	}
	if len(checker.runs) != 1 || checker.runs[0] != saved {
		t.Fatalf("diagnostic runs = %+v", checker.runs)
	}
	if len(app.GetDiagnostics().Items) != 1 {
		t.Fatalf("diagnostics = %+v", app.GetDiagnostics())
	}

	loaded, err := app.GetSettings()
	if err != nil || loaded != saved {
		t.Fatalf("GetSettings() = %+v, %v", loaded, err)
	}
}

// TestPickAudioFileRequiresRuntime checks dialogs fail before startup.
func TestPickAudioFileRequiresRuntime(t *testing.T) {
	app, _, _ := newTestApp(t, &fakeService{})
	if _, err := app.PickAudioFile(); err == nil {
		t.Fatal("expected runtime context error")
	}
}

// waitForStage polls until the pipeline reaches the desired stage, then waits
// for the background run so its events are all published.
func waitForStage(t *testing.T, app *App, want domain.Stage) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if app.CurrentState().Stage == want {
			app.Pipeline.Wait()
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("stage = %s, want %s", app.CurrentState().Stage, want)
}

// assertStagesInOrder checks state events visit stages in the given order.
func assertStagesInOrder(t *testing.T, events []jobs.Event, want ...domain.Stage) {
	t.Helper()
	var seen []domain.Stage
	for _, event := range events {
		if event.Type != jobs.EventTypeState {
			continue
		}
		if len(seen) == 0 || seen[len(seen)-1] != event.State.Stage {
			seen = append(seen, event.State.Stage)
		}
	}
	if len(seen) != len(want) {
		t.Fatalf("stages = %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("stages = %v, want %v", seen, want)
		}
	}
}

// assertEventTypeExists verifies at least one event of given type exists.
func assertEventTypeExists(t *testing.T, events []jobs.Event, want jobs.EventType) {
	t.Helper()
	for _, event := range events {
		if event.Type == want {
			return
		}
	}
	t.Fatalf("event type %s not found", want)
}
