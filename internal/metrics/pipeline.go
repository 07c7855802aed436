package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SubmissionsTotal counts finished pipeline runs by outcome
	// (complete, server_error, network_unreachable, client_error, cancelled).
	SubmissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meeting_analyzer_submissions_total",
		Help: "Pipeline runs by terminal outcome.",
	}, []string{"outcome"})

	// ExportsTotal counts export requests by outcome.
	ExportsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meeting_analyzer_exports_total",
		Help: "Document export requests by outcome.",
	}, []string{"outcome"})

	// UploadSeconds observes the time spent in the Uploading stage.
	UploadSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "meeting_analyzer_upload_seconds",
		Help:    "Duration of the upload-and-process request.",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
	})

	// UploadBytes observes submitted payload sizes.
	UploadBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "meeting_analyzer_upload_bytes",
		Help:    "Size of submitted audio payloads.",
		Buckets: prometheus.ExponentialBuckets(64<<10, 4, 8),
	})
)

// Outcome labels shared by counters.
const (
	OutcomeComplete  = "complete"
	OutcomeCancelled = "cancelled"
	OutcomeOK        = "ok"
)
