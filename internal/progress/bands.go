// Package progress maps pipeline stages and upload byte counts onto the
// overall 0-100 progress scale.
package progress

import "meeting-analyzer/internal/domain"

// Fixed progress markers for each stage.
const (
	Idle          = 0
	UploadFloor   = 10
	UploadCeiling = 40
	Transcribing  = 50
	Analyzing     = 75
	Complete      = 100
	Failed        = 0
)

// ForStage returns the progress a stage is entered with.
func ForStage(stage domain.Stage) int {
	switch stage {
	case domain.StageUploading:
		return UploadFloor
	case domain.StageTranscribing:
		return Transcribing
	case domain.StageAnalyzing:
		return Analyzing
	case domain.StageComplete:
		return Complete
	default:
		return Idle
	}
}

// InBand reports whether value is a legal progress for stage.
func InBand(stage domain.Stage, value int) bool {
	switch stage {
	case domain.StageUploading:
		return value >= UploadFloor && value <= UploadCeiling
	default:
		return value == ForStage(stage)
	}
}
