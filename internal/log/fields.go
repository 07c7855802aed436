package log

// Canonical field name constants for structured logging.
const (
	FieldComponent = "component"
	FieldSessionID = "session_id"
	FieldOperation = "op"

	FieldOldStage = "old_stage"
	FieldNewStage = "new_stage"
	FieldProgress = "progress"

	FieldBaseURL   = "base_url"
	FieldStatus    = "status"
	FieldErrorKind = "error_kind"
	FieldBytes     = "bytes"
	FieldFileName  = "file_name"
	FieldPath      = "path"
)
