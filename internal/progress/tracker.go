package progress

import (
	"math"
	"sync"
)

// MapUploadFraction converts sent/total bytes into a percentage inside the
// upload band. A zero total is treated as nothing sent.
func MapUploadFraction(sentBytes, totalBytes int64) int {
	if totalBytes <= 0 || sentBytes <= 0 {
		return UploadFloor
	}
	fraction := float64(sentBytes) / float64(totalBytes)
	if fraction > 1 {
		fraction = 1
	}
	value := UploadFloor + int(math.Round(fraction*float64(UploadCeiling-UploadFloor)))
	return clamp(value, UploadFloor, UploadCeiling)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Tracker turns transport events into a non-decreasing upload percentage.
// Transport events may arrive out of order; stale ones are absorbed.
type Tracker struct {
	mu   sync.Mutex
	last int
}

// NewTracker starts a tracker at the upload floor.
func NewTracker() *Tracker {
	return &Tracker{last: UploadFloor}
}

// Observe records one transport event and reports the current percentage and
// whether it moved forward.
func (t *Tracker) Observe(sentBytes, totalBytes int64) (int, bool) {
	value := MapUploadFraction(sentBytes, totalBytes)

	t.mu.Lock()
	defer t.mu.Unlock()
	if value <= t.last {
		return t.last, false
	}
	t.last = value
	return value, true
}

// Value returns the highest percentage seen so far.
func (t *Tracker) Value() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}
