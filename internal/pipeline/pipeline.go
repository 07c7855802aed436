// Package pipeline drives one audio submission through upload, transcription,
// analysis and completion, reporting every state change to subscribers.
package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"meeting-analyzer/internal/apiclient"
	"meeting-analyzer/internal/domain"
	"meeting-analyzer/internal/jobs"
	xlog "meeting-analyzer/internal/log"
	"meeting-analyzer/internal/metrics"
	"meeting-analyzer/internal/progress"
	"meeting-analyzer/internal/results"
)

// DefaultStageDwell is how long the Transcribing and Analyzing markers are held.
const DefaultStageDwell = 500 * time.Millisecond

// Analyzer submits audio to the remote service.
type Analyzer interface {
	SubmitForAnalysis(ctx context.Context, sub domain.AudioSubmission, onProgress apiclient.ProgressFunc) (domain.AnalysisResult, error)
}

// Pipeline is one independent upload session: at most one submission in flight.
type Pipeline struct {
	client  Analyzer
	jobs    *jobs.Manager
	events  *jobs.EventBus
	surface *results.Surface
	sleep   func(ctx context.Context, d time.Duration) error
	newID   func() string
	log     zerolog.Logger

	mu        sync.Mutex
	dwell     time.Duration
	sessionID string
	cancel    context.CancelFunc
	runs      int
	idle      *sync.Cond
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithStageDwell sets how long intermediate stage markers are held. Zero jumps straight through.
func WithStageDwell(d time.Duration) Option {
	return func(p *Pipeline) {
		if d >= 0 {
			p.dwell = d
		}
	}
}

// WithEventBus shares an event bus, e.g. with the desktop runtime.
func WithEventBus(bus *jobs.EventBus) Option {
	return func(p *Pipeline) {
		if bus != nil {
			p.events = bus
		}
	}
}

// WithLogger replaces the component logger.
func WithLogger(l zerolog.Logger) Option {
	return func(p *Pipeline) { p.log = l }
}

// New builds an idle pipeline around client.
func New(client Analyzer, opts ...Option) *Pipeline {
	p := &Pipeline{
		client:  client,
		jobs:    jobs.NewManager(),
		events:  jobs.NewEventBus(1000),
		surface: results.NewSurface(),
		dwell:   DefaultStageDwell,
		sleep:   sleepContext,
		newID:   uuid.NewString,
		log:     xlog.WithComponent("pipeline"),
	}
	p.idle = sync.NewCond(&p.mu)
	for _, opt := range opts {
		opt(p)
	}
	p.jobs.Observe(p.onTransition)
	return p
}

// Start enters Uploading and runs the submission in the background. It returns
// the Uploading state immediately; progress arrives through Subscribe.
func (p *Pipeline) Start(ctx context.Context, sub domain.AudioSubmission) (domain.PipelineState, error) {
	runCtx, sessionID, state, err := p.begin(ctx)
	if err != nil {
		return state, err
	}

	go p.run(runCtx, sessionID, sub)
	return state, nil
}

// Run is the synchronous form of Start and returns the terminal state.
func (p *Pipeline) Run(ctx context.Context, sub domain.AudioSubmission) (domain.PipelineState, error) {
	runCtx, sessionID, state, err := p.begin(ctx)
	if err != nil {
		return state, err
	}
	p.run(runCtx, sessionID, sub)
	return p.jobs.Current(), nil
}

// Cancel aborts the in-flight transfer and returns the pipeline to Idle.
func (p *Pipeline) Cancel() error {
	p.mu.Lock()
	cancel := p.cancel
	sessionID := p.sessionID
	p.mu.Unlock()

	if cancel == nil {
		return jobs.ErrNotRunning
	}
	if _, err := p.jobs.Abort(sessionID); err != nil {
		return err
	}
	cancel()
	metrics.SubmissionsTotal.WithLabelValues(metrics.OutcomeCancelled).Inc()
	p.log.Info().Str(xlog.FieldSessionID, sessionID).Msg("analysis cancelled")
	return nil
}

// SetStageDwell changes the dwell for sessions started afterwards.
func (p *Pipeline) SetStageDwell(d time.Duration) {
	if d < 0 {
		d = 0
	}
	p.mu.Lock()
	p.dwell = d
	p.mu.Unlock()
}

// Reset discards the finished run's result or error and returns to Idle.
func (p *Pipeline) Reset() (domain.PipelineState, error) {
	return p.jobs.Reset()
}

// State returns the current pipeline state.
func (p *Pipeline) State() domain.PipelineState {
	return p.jobs.Current()
}

// Outcome returns what the result surface currently holds.
func (p *Pipeline) Outcome() results.Outcome {
	return p.surface.Snapshot()
}

// Subscribe registers fn for every state change; see jobs.EventBus.Subscribe.
func (p *Pipeline) Subscribe(fn func(jobs.Event)) func() {
	return p.events.Subscribe(fn)
}

// Events returns the event bus shared with subscribers.
func (p *Pipeline) Events() *jobs.EventBus {
	return p.events
}

// Wait blocks until every run started so far has returned, including runs
// that were cancelled and superseded by a newer session.
func (p *Pipeline) Wait() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for p.runs > 0 {
		p.idle.Wait()
	}
}

// begin claims the pipeline for a new session. The run is counted and its
// cancel handle published before the Uploading transition, so Wait and Cancel
// see it as soon as subscribers do.
func (p *Pipeline) begin(ctx context.Context) (context.Context, string, domain.PipelineState, error) {
	sessionID := p.newID()
	runCtx, cancel := context.WithCancel(ctx)

	p.mu.Lock()
	prevSession, prevCancel := p.sessionID, p.cancel
	p.sessionID = sessionID
	p.cancel = cancel
	p.runs++
	p.mu.Unlock()

	state, err := p.jobs.Start(sessionID)
	if err != nil {
		cancel()
		p.mu.Lock()
		if p.sessionID == sessionID {
			p.sessionID = prevSession
			p.cancel = prevCancel
		}
		p.mu.Unlock()
		p.finish("")
		return nil, "", state, err
	}
	return runCtx, sessionID, state, nil
}

// run uploads, holds the intermediate markers, and records the outcome.
func (p *Pipeline) run(ctx context.Context, sessionID string, sub domain.AudioSubmission) {
	defer p.finish(sessionID)
	logger := p.log.With().Str(xlog.FieldSessionID, sessionID).Logger()

	p.mu.Lock()
	dwell := p.dwell
	p.mu.Unlock()

	tracker := progress.NewTracker()
	started := time.Now()
	metrics.UploadBytes.Observe(float64(len(sub.Payload)))

	result, err := p.client.SubmitForAnalysis(ctx, sub, func(sent, total int64) {
		if value, moved := tracker.Observe(sent, total); moved {
			p.jobs.UpdateUpload(sessionID, value)
		}
	})
	metrics.UploadSeconds.Observe(time.Since(started).Seconds())
	if err != nil {
		p.fail(sessionID, err, logger)
		return
	}

	for _, stage := range []domain.Stage{domain.StageTranscribing, domain.StageAnalyzing} {
		if _, err := p.jobs.Advance(sessionID, stage); err != nil {
			logger.Debug().Err(err).Msg("run superseded")
			return
		}
		if err := p.sleep(ctx, dwell); err != nil {
			logger.Debug().Err(err).Msg("run cancelled during stage dwell")
			_, _ = p.jobs.Abort(sessionID)
			return
		}
	}

	if _, err := p.jobs.Complete(sessionID, result); err != nil {
		logger.Debug().Err(err).Msg("run superseded")
		return
	}
	metrics.SubmissionsTotal.WithLabelValues(metrics.OutcomeComplete).Inc()
	logger.Info().
		Int("participants", len(result.Participants)).
		Int("action_items", len(result.ActionItems)).
		Msg("analysis complete")
}

// fail collapses the session to Failed. A cancelled context means the caller
// abandoned the session, which returns it to Idle instead.
func (p *Pipeline) fail(sessionID string, err error, logger zerolog.Logger) {
	if errors.Is(err, context.Canceled) {
		_, _ = p.jobs.Abort(sessionID)
		logger.Debug().Err(err).Msg("upload cancelled")
		return
	}

	kind := apiclient.KindOf(err)
	message := apiclient.MessageOf(err)
	if _, ferr := p.jobs.Fail(sessionID, kind, message); ferr != nil {
		logger.Debug().Err(ferr).Msg("failure for superseded session ignored")
		return
	}
	metrics.SubmissionsTotal.WithLabelValues(string(kind)).Inc()
	logger.Error().Err(err).Str(xlog.FieldErrorKind, string(kind)).Msg("analysis failed")
}

// onTransition mirrors states onto the surface and the event bus.
func (p *Pipeline) onTransition(old, next domain.PipelineState) {
	p.surface.Apply(next)

	sessionID := next.SessionID
	if sessionID == "" {
		sessionID = old.SessionID
	}
	p.events.Publish(jobs.Event{
		SessionID: sessionID,
		Type:      jobs.EventTypeState,
		State:     next,
		Message:   next.Error,
	})

	if old.Stage != next.Stage {
		p.log.Debug().
			Str(xlog.FieldSessionID, sessionID).
			Str(xlog.FieldOldStage, string(old.Stage)).
			Str(xlog.FieldNewStage, string(next.Stage)).
			Int(xlog.FieldProgress, next.Progress).
			Msg("stage transition")
	}
}

// finish drops the cancel handle if sessionID is still the active session and
// releases the run from Wait.
func (p *Pipeline) finish(sessionID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if sessionID != "" && p.sessionID == sessionID {
		if p.cancel != nil {
			p.cancel()
		}
		p.sessionID = ""
		p.cancel = nil
	}
	p.runs--
	if p.runs == 0 {
		p.idle.Broadcast()
	}
}

// sleepContext waits d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
