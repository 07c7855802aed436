package metrics

import (
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "meeting_analyzer_"

// Summary is a compact view of the pipeline metrics for the settings screen
// and the CLI.
type Summary struct {
	Submissions   map[string]float64 `json:"submissions"`
	Exports       map[string]float64 `json:"exports"`
	Uploads       uint64             `json:"uploads"`
	UploadSeconds float64            `json:"uploadSeconds"`
	UploadBytes   float64            `json:"uploadBytes"`
}

// Snapshot gathers the default registry.
func Snapshot() (Summary, error) {
	return Gather(prometheus.DefaultGatherer)
}

// Gather reads the meeting_analyzer_* families from g.
func Gather(g prometheus.Gatherer) (Summary, error) {
	families, err := g.Gather()
	if err != nil {
		return Summary{}, fmt.Errorf("gather metrics: %w", err)
	}

	summary := Summary{
		Submissions: map[string]float64{},
		Exports:     map[string]float64{},
	}
	for _, mf := range families {
		name := mf.GetName()
		if !strings.HasPrefix(name, namespace) {
			continue
		}
		for _, m := range mf.GetMetric() {
			outcome := ""
			for _, label := range m.GetLabel() {
				if label.GetName() == "outcome" {
					outcome = label.GetValue()
				}
			}

			switch strings.TrimPrefix(name, namespace) {
			case "submissions_total":
				summary.Submissions[outcome] += m.GetCounter().GetValue()
			case "exports_total":
				summary.Exports[outcome] += m.GetCounter().GetValue()
			case "upload_seconds":
				summary.Uploads += m.GetHistogram().GetSampleCount()
				summary.UploadSeconds += m.GetHistogram().GetSampleSum()
			case "upload_bytes":
				summary.UploadBytes += m.GetHistogram().GetSampleSum()
			}
		}
	}
	return summary, nil
}
