package jobs

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"meeting-analyzer/internal/domain"
	"meeting-analyzer/internal/progress"
)

// ErrPipelineBusy is returned when starting while a submission is in flight.
var ErrPipelineBusy = errors.New("analysis already in progress")

// ErrNotRunning is returned when cancel is requested without an active submission.
var ErrNotRunning = errors.New("no analysis in progress")

// ErrNotTerminal is returned when reset is requested before the run finished.
var ErrNotTerminal = errors.New("analysis has not finished")

// ErrNotIdle is returned when starting from a finished run that was not reset.
var ErrNotIdle = errors.New("previous analysis must be reset first")

// ErrStaleSession is returned for transitions issued by a session that is no
// longer current, e.g. after a cancel.
var ErrStaleSession = errors.New("stale pipeline session")

// Manager owns the single pipeline state of one session and validates every
// transition. Each accepted change replaces the state value and is handed to
// the observer.
type Manager struct {
	mu       sync.RWMutex
	current  domain.PipelineState
	pending  []transition
	draining bool
	observer func(old, new domain.PipelineState)
	now      func() time.Time
}

// transition is one accepted change waiting for the observer.
type transition struct {
	old, new domain.PipelineState
}

// NewManager creates a manager in idle state.
func NewManager() *Manager {
	m := &Manager{now: time.Now}
	m.current = domain.PipelineState{Stage: domain.StageIdle, UpdatedAt: m.now().UTC()}
	return m
}

// Observe registers fn to receive every accepted transition. fn runs with the
// manager lock released, in transition order, and may itself issue
// transitions: those are queued and delivered once fn returns.
func (m *Manager) Observe(fn func(old, new domain.PipelineState)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observer = fn
}

// Start moves an idle pipeline into Uploading at the band floor.
func (m *Manager) Start(sessionID string) (domain.PipelineState, error) {
	return m.apply(func(cur domain.PipelineState) (domain.PipelineState, error) {
		if cur.Stage.IsRunning() {
			return cur, ErrPipelineBusy
		}
		if cur.Stage != domain.StageIdle {
			return cur, ErrNotIdle
		}
		return domain.PipelineState{
			SessionID: sessionID,
			Stage:     domain.StageUploading,
			Progress:  progress.UploadFloor,
		}, nil
	})
}

// Advance moves the running pipeline to the next forward stage.
func (m *Manager) Advance(sessionID string, stage domain.Stage) (domain.PipelineState, error) {
	return m.apply(func(cur domain.PipelineState) (domain.PipelineState, error) {
		if cur.SessionID != sessionID {
			return cur, ErrStaleSession
		}
		if !isForward(cur.Stage, stage) {
			return cur, fmt.Errorf("invalid transition: %s -> %s", cur.Stage, stage)
		}
		next := cur
		next.Stage = stage
		next.Progress = max(cur.Progress, progress.ForStage(stage))
		return next, nil
	})
}

// UpdateUpload records upload progress; values that would regress or leave
// the upload band are ignored.
func (m *Manager) UpdateUpload(sessionID string, value int) (domain.PipelineState, bool) {
	var moved bool
	state, _ := m.apply(func(cur domain.PipelineState) (domain.PipelineState, error) {
		if cur.SessionID != sessionID || cur.Stage != domain.StageUploading {
			return cur, errUnchanged
		}
		if value <= cur.Progress || !progress.InBand(domain.StageUploading, value) {
			return cur, errUnchanged
		}
		moved = true
		next := cur
		next.Progress = value
		return next, nil
	})
	return state, moved
}

// Complete stores the result and finishes the run at 100.
func (m *Manager) Complete(sessionID string, result domain.AnalysisResult) (domain.PipelineState, error) {
	return m.apply(func(cur domain.PipelineState) (domain.PipelineState, error) {
		if cur.SessionID != sessionID {
			return cur, ErrStaleSession
		}
		if cur.Stage != domain.StageAnalyzing {
			return cur, fmt.Errorf("invalid transition: %s -> %s", cur.Stage, domain.StageComplete)
		}
		stored := result.Clone()
		return domain.PipelineState{
			SessionID: cur.SessionID,
			Stage:     domain.StageComplete,
			Progress:  progress.Complete,
			Result:    &stored,
		}, nil
	})
}

// Fail collapses a running pipeline into Failed with progress reset to 0.
func (m *Manager) Fail(sessionID string, kind domain.ErrorKind, message string) (domain.PipelineState, error) {
	return m.apply(func(cur domain.PipelineState) (domain.PipelineState, error) {
		if cur.SessionID != sessionID {
			return cur, ErrStaleSession
		}
		if !cur.Stage.IsRunning() {
			return cur, fmt.Errorf("invalid transition: %s -> %s", cur.Stage, domain.StageFailed)
		}
		return domain.PipelineState{
			SessionID: cur.SessionID,
			Stage:     domain.StageFailed,
			Progress:  progress.Failed,
			Error:     message,
			ErrorKind: kind,
		}, nil
	})
}

// Reset returns a finished pipeline to Idle, discarding result and error.
// Resetting an idle pipeline is a no-op.
func (m *Manager) Reset() (domain.PipelineState, error) {
	return m.apply(func(cur domain.PipelineState) (domain.PipelineState, error) {
		if cur.Stage == domain.StageIdle {
			return cur, errUnchanged
		}
		if cur.Stage.IsRunning() {
			return cur, ErrNotTerminal
		}
		return domain.PipelineState{Stage: domain.StageIdle}, nil
	})
}

// Abort forces a running pipeline straight back to Idle.
func (m *Manager) Abort(sessionID string) (domain.PipelineState, error) {
	return m.apply(func(cur domain.PipelineState) (domain.PipelineState, error) {
		if !cur.Stage.IsRunning() || (sessionID != "" && cur.SessionID != sessionID) {
			return cur, ErrNotRunning
		}
		return domain.PipelineState{Stage: domain.StageIdle}, nil
	})
}

// Current returns a snapshot of the current state.
func (m *Manager) Current() domain.PipelineState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return snapshot(m.current)
}

// IsRunning reports whether a submission is in flight.
func (m *Manager) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current.Stage.IsRunning()
}

var errUnchanged = errors.New("unchanged")

// apply runs one transition under the lock and queues it for the observer.
// The goroutine that finds the queue idle delivers every queued transition,
// including ones added by the observer while it runs.
func (m *Manager) apply(next func(domain.PipelineState) (domain.PipelineState, error)) (domain.PipelineState, error) {
	m.mu.Lock()
	old := m.current
	state, err := next(old)
	if err != nil {
		m.mu.Unlock()
		if errors.Is(err, errUnchanged) {
			return snapshot(old), nil
		}
		return snapshot(old), err
	}
	state.UpdatedAt = m.now().UTC()
	m.current = state
	if m.observer == nil {
		m.mu.Unlock()
		return snapshot(state), nil
	}

	m.pending = append(m.pending, transition{old: snapshot(old), new: snapshot(state)})
	if m.draining {
		m.mu.Unlock()
		return snapshot(state), nil
	}
	m.draining = true
	m.mu.Unlock()

	m.drain()
	return snapshot(state), nil
}

// drain hands queued transitions to the observer until the queue is empty.
func (m *Manager) drain() {
	for {
		m.mu.Lock()
		if len(m.pending) == 0 {
			m.draining = false
			m.mu.Unlock()
			return
		}
		t := m.pending[0]
		m.pending = m.pending[1:]
		observer := m.observer
		m.mu.Unlock()

		observer(t.old, t.new)
	}
}

// snapshot copies the result pointer target so callers cannot mutate it.
func snapshot(s domain.PipelineState) domain.PipelineState {
	if s.Result != nil {
		r := s.Result.Clone()
		s.Result = &r
	}
	return s
}

// isForward enforces the strictly forward stage order while running.
func isForward(from, to domain.Stage) bool {
	switch from {
	case domain.StageUploading:
		return to == domain.StageTranscribing
	case domain.StageTranscribing:
		return to == domain.StageAnalyzing
	default:
		return false
	}
}
