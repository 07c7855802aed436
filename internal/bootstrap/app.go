package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	goruntime "runtime"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"

	"meeting-analyzer/internal/apiclient"
	"meeting-analyzer/internal/config"
	"meeting-analyzer/internal/diagnostics"
	"meeting-analyzer/internal/domain"
	"meeting-analyzer/internal/export"
	"meeting-analyzer/internal/jobs"
	xlog "meeting-analyzer/internal/log"
	"meeting-analyzer/internal/metrics"
	"meeting-analyzer/internal/pipeline"
	"meeting-analyzer/internal/results"

	wailsruntime "github.com/wailsapp/wails/v2/pkg/runtime"
)

// EventName is the runtime event carrying every pipeline event to the frontend.
const EventName = "pipeline:event"

const diagnosticsTimeout = 3 * time.Second

var (
	// ErrUnsupportedFile is returned for files outside the audio accept list.
	ErrUnsupportedFile = errors.New("unsupported file type: choose an .mp3 or .wav recording")
	// ErrNoResult is returned when export is requested without a completed analysis.
	ErrNoResult = errors.New("no analysis result to export")
)

var audioDialogFilter = []wailsruntime.FileFilter{
	{
		DisplayName: "Audio recordings (*.mp3, *.wav)",
		Pattern:     "*.mp3;*.wav",
	},
}

// diagnosticsRunner isolates environment checks behind an interface.
type diagnosticsRunner interface {
	Run(ctx context.Context, settings domain.Settings) domain.DiagnosticReport
}

// App wires configuration, the analysis pipeline, and UI runtime callbacks.
type App struct {
	Store    config.Store
	Pipeline *pipeline.Pipeline
	assets   fs.FS
	checker  diagnosticsRunner
	service  *serviceClient
	events   *jobs.EventBus
	readFile func(string) ([]byte, error)
	emit     func(ctx context.Context, name string, data ...interface{})
	log      zerolog.Logger

	mu          sync.Mutex
	settings    domain.Settings
	diagnostics domain.DiagnosticReport
	runtimeCtx  context.Context
	unsubscribe func()
}

// New builds the application with persisted settings and startup diagnostics.
func New() (*App, error) {
	return NewWithAssets(nil)
}

// NewWithAssets builds the application and optionally configures embedded frontend assets.
func NewWithAssets(assets fs.FS) (*App, error) {
	path, err := config.DefaultPath()
	if err != nil {
		return nil, fmt.Errorf("resolve settings path: %w", err)
	}

	app, err := newApp(config.WithEnv(config.NewJSONStore(path)), diagnostics.NewChecker())
	if err != nil {
		return nil, err
	}
	app.assets = assets
	app.RefreshDiagnostics()
	return app, nil
}

// newApp loads settings from store and builds the pipeline around them.
func newApp(store config.Store, checker diagnosticsRunner) (*App, error) {
	settings, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	settings = config.Normalize(settings)

	events := jobs.NewEventBus(1000)
	service := newServiceClient(settings.BaseURL)
	app := &App{
		Store:    store,
		checker:  checker,
		service:  service,
		events:   events,
		readFile: os.ReadFile,
		emit:     wailsruntime.EventsEmit,
		log:      xlog.WithComponent("app"),
		settings: settings,
	}
	app.Pipeline = pipeline.New(service,
		pipeline.WithEventBus(events),
		pipeline.WithStageDwell(settings.StageDwell()),
	)
	return app, nil
}

// Run starts the Wails desktop application and binds backend methods.
func (a *App) Run() error {
	assetOptions := &assetserver.Options{}
	if a.assets != nil {
		assetOptions.Assets = a.assets
	} else {
		assetOptions.Handler = http.FileServer(http.Dir("./frontend"))
	}

	return wails.Run(&options.App{
		Title:       "Meeting Analyzer",
		Width:       1100,
		Height:      760,
		AssetServer: assetOptions,
		OnStartup:   a.Startup,
		OnShutdown:  a.Shutdown,
		Bind:        []interface{}{a},
	})
}

// Startup stores the Wails runtime context and starts pushing pipeline events.
func (a *App) Startup(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.runtimeCtx = ctx
	if a.unsubscribe == nil {
		a.unsubscribe = a.events.Subscribe(a.push)
	}
}

// Shutdown abandons any in-flight analysis and detaches from the runtime.
func (a *App) Shutdown(context.Context) {
	if err := a.Pipeline.Cancel(); err != nil && !errors.Is(err, jobs.ErrNotRunning) {
		a.log.Warn().Err(err).Msg("cancel analysis on shutdown")
	}
	a.Pipeline.Wait()

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.unsubscribe != nil {
		a.unsubscribe()
		a.unsubscribe = nil
	}
	a.runtimeCtx = nil
}

// StartAnalysis reads the recording at path and submits it. An empty language
// uses the configured default.
func (a *App) StartAnalysis(path, language string) (domain.PipelineState, error) {
	path = strings.TrimSpace(path)
	format, ok := domain.FormatFromFileName(path)
	if !ok {
		return a.Pipeline.State(), ErrUnsupportedFile
	}

	payload, err := a.readFile(path)
	if err != nil {
		return a.Pipeline.State(), fmt.Errorf("read audio file: %w", err)
	}

	lang := strings.ToLower(strings.TrimSpace(language))
	if lang == "" {
		lang = a.currentSettings().Language
	}

	sub := domain.AudioSubmission{
		FileName: filepath.Base(path),
		Format:   format,
		Language: domain.Language(lang),
		Payload:  payload,
	}
	a.log.Info().
		Str(xlog.FieldFileName, sub.FileName).
		Int(xlog.FieldBytes, len(payload)).
		Str("language", lang).
		Msg("starting analysis")
	return a.Pipeline.Start(context.Background(), sub)
}

// CancelAnalysis aborts the in-flight analysis, if any.
func (a *App) CancelAnalysis() error {
	return a.Pipeline.Cancel()
}

// ResetAnalysis clears a finished result or error and returns to Idle.
func (a *App) ResetAnalysis() (domain.PipelineState, error) {
	return a.Pipeline.Reset()
}

// CurrentState returns the pipeline state snapshot.
func (a *App) CurrentState() domain.PipelineState {
	return a.Pipeline.State()
}

// CurrentOutcome returns the result or error of the last finished run.
func (a *App) CurrentOutcome() results.Outcome {
	return a.Pipeline.Outcome()
}

// PipelineEvents returns all events with sequence greater than sinceSeq.
func (a *App) PipelineEvents(sinceSeq int64) []jobs.Event {
	return a.events.Since(sinceSeq)
}

// ExportResult renders the completed analysis through the service and saves
// the document into the output directory. Pipeline state is left untouched.
func (a *App) ExportResult() (string, error) {
	outcome := a.Pipeline.Outcome()
	if outcome.Result == nil {
		return "", ErrNoResult
	}

	settings := a.currentSettings()
	state := a.Pipeline.State()

	doc, err := a.service.ExportResult(context.Background(), *outcome.Result)
	if err != nil {
		metrics.ExportsTotal.WithLabelValues(string(apiclient.KindOf(err))).Inc()
		a.publishExportError(state, apiclient.MessageOf(err))
		return "", err
	}

	path, err := export.NewWriter(settings.OutputDir).Save(doc)
	if err != nil {
		metrics.ExportsTotal.WithLabelValues("write_error").Inc()
		a.publishExportError(state, err.Error())
		return "", fmt.Errorf("save export: %w", err)
	}

	metrics.ExportsTotal.WithLabelValues(metrics.OutcomeOK).Inc()
	a.events.Publish(jobs.Event{
		SessionID: state.SessionID,
		Type:      jobs.EventTypeExport,
		State:     state,
		Message:   "Document exported",
		Path:      path,
	})
	return path, nil
}

// PickAudioFile opens a native file dialog limited to supported recordings.
func (a *App) PickAudioFile() (string, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return "", err
	}

	path, err := wailsruntime.OpenFileDialog(ctx, wailsruntime.OpenDialogOptions{
		Title:   "Select meeting recording",
		Filters: audioDialogFilter,
	})
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(path), nil
}

// PickOutputDirectory opens a native directory picker for exported documents.
func (a *App) PickOutputDirectory() (string, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return "", err
	}

	path, err := wailsruntime.OpenDirectoryDialog(ctx, wailsruntime.OpenDialogOptions{
		Title: "Select output directory",
	})
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(path), nil
}

// GetSettings loads and returns the latest persisted settings.
func (a *App) GetSettings() (domain.Settings, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.Settings{}, fmt.Errorf("load settings: %w", err)
	}
	settings = config.Normalize(settings)
	a.applySettings(settings)
	return settings, nil
}

// SaveSettings normalizes and persists settings, then refreshes diagnostics.
func (a *App) SaveSettings(settings domain.Settings) (domain.Settings, error) {
	normalized := config.Normalize(settings)
	if err := a.Store.Save(normalized); err != nil {
		return domain.Settings{}, fmt.Errorf("save settings: %w", err)
	}

	a.applySettings(normalized)
	a.runDiagnostics(normalized)
	return normalized, nil
}

// GetDiagnostics returns the latest cached diagnostics report.
func (a *App) GetDiagnostics() domain.DiagnosticReport {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.diagnostics
}

// RefreshDiagnostics reruns service and filesystem checks.
func (a *App) RefreshDiagnostics() domain.DiagnosticReport {
	return a.runDiagnostics(a.currentSettings())
}

// GetMetrics summarizes the process counters for the settings screen.
func (a *App) GetMetrics() (metrics.Summary, error) {
	return metrics.Snapshot()
}

// OpenOutputFolder opens the given path (or configured output dir) in file manager.
func (a *App) OpenOutputFolder(path string) error {
	target := strings.TrimSpace(path)
	if target == "" {
		target = a.currentSettings().OutputDir
	}
	if target == "" {
		return fmt.Errorf("output path is empty")
	}

	info, err := os.Stat(target)
	if err != nil {
		return fmt.Errorf("resolve output path: %w", err)
	}

	openPath := target
	if !info.IsDir() {
		openPath = filepath.Dir(target)
	}

	return openInFileManager(openPath)
}

// runDiagnostics executes checks with a bounded wait for the remote check.
func (a *App) runDiagnostics(settings domain.Settings) domain.DiagnosticReport {
	if a.checker == nil {
		return a.GetDiagnostics()
	}

	ctx, cancel := context.WithTimeout(context.Background(), diagnosticsTimeout)
	defer cancel()
	report := a.checker.Run(ctx, settings)

	a.mu.Lock()
	a.diagnostics = report
	a.mu.Unlock()

	if report.HasFailures || report.HasWarnings {
		a.log.Warn().
			Bool("failures", report.HasFailures).
			Bool("warnings", report.HasWarnings).
			Msg("diagnostics reported problems")
	}
	return report
}

// applySettings points the service client and pipeline at new settings. A
// running analysis keeps the client it started with.
func (a *App) applySettings(settings domain.Settings) {
	a.mu.Lock()
	a.settings = settings
	a.mu.Unlock()

	a.service.SetBaseURL(settings.BaseURL)
	a.Pipeline.SetStageDwell(settings.StageDwell())
}

func (a *App) currentSettings() domain.Settings {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.settings
}

// publishExportError records a failed export without touching pipeline state.
func (a *App) publishExportError(state domain.PipelineState, message string) {
	a.log.Error().Str(xlog.FieldOperation, "export").Msg(message)
	a.events.Publish(jobs.Event{
		SessionID: state.SessionID,
		Type:      jobs.EventTypeError,
		State:     state,
		Message:   message,
	})
}

// push forwards one bus event to the frontend.
func (a *App) push(event jobs.Event) {
	a.mu.Lock()
	ctx := a.runtimeCtx
	a.mu.Unlock()
	if ctx != nil {
		a.emit(ctx, EventName, event)
	}
}

// runtimeContext returns current Wails runtime context for dialog APIs.
func (a *App) runtimeContext() (context.Context, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.runtimeCtx == nil {
		return nil, fmt.Errorf("runtime context is not initialized")
	}
	return a.runtimeCtx, nil
}

// openInFileManager launches the platform file explorer for the provided path.
func openInFileManager(path string) error {
	var cmd *exec.Cmd
	switch goruntime.GOOS {
	case "darwin":
		cmd = exec.Command("open", path)
	case "windows":
		cmd = exec.Command("explorer", filepath.Clean(path))
	default:
		cmd = exec.Command("xdg-open", path)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launch file manager: %w", err)
	}
	return nil
}
