// Package results holds the terminal outcome of the latest pipeline run for
// presentation.
package results

import (
	"sync"

	"meeting-analyzer/internal/domain"
)

// Outcome is what presentation renders: a result, an error message, or neither.
type Outcome struct {
	Result    *domain.AnalysisResult `json:"result,omitempty"`
	Error     string                 `json:"error,omitempty"`
	ErrorKind domain.ErrorKind       `json:"errorKind,omitempty"`
}

// Empty reports whether nothing is held.
func (o Outcome) Empty() bool {
	return o.Result == nil && o.Error == ""
}

// Surface is a passive holder overwritten on every terminal transition.
type Surface struct {
	mu      sync.RWMutex
	outcome Outcome
}

// NewSurface returns an empty surface.
func NewSurface() *Surface {
	return &Surface{}
}

// SetResult replaces the outcome with a successful result.
func (s *Surface) SetResult(result domain.AnalysisResult) {
	stored := result.Clone()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcome = Outcome{Result: &stored}
}

// SetError replaces the outcome with a failure message.
func (s *Surface) SetError(kind domain.ErrorKind, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcome = Outcome{Error: message, ErrorKind: kind}
}

// Clear empties the surface.
func (s *Surface) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcome = Outcome{}
}

// Snapshot returns a copy of the held outcome.
func (s *Surface) Snapshot() Outcome {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.outcome
	if out.Result != nil {
		r := out.Result.Clone()
		out.Result = &r
	}
	return out
}

// Result returns the held result, if any.
func (s *Surface) Result() (domain.AnalysisResult, bool) {
	snap := s.Snapshot()
	if snap.Result == nil {
		return domain.AnalysisResult{}, false
	}
	return *snap.Result, true
}

// Apply mirrors a pipeline state onto the surface: terminal states overwrite,
// Idle clears, running states leave it untouched.
func (s *Surface) Apply(state domain.PipelineState) {
	switch state.Stage {
	case domain.StageComplete:
		if state.Result != nil {
			s.SetResult(*state.Result)
		}
	case domain.StageFailed:
		s.SetError(state.ErrorKind, state.Error)
	case domain.StageIdle:
		s.Clear()
	}
}
