package domain

import (
	"path/filepath"
	"strings"
	"time"
)

// Stage tracks each phase of the upload-and-analyze pipeline.
type Stage string

const (
	StageIdle         Stage = "idle"
	StageUploading    Stage = "uploading"
	StageTranscribing Stage = "transcribing"
	StageAnalyzing    Stage = "analyzing"
	StageComplete     Stage = "complete"
	StageFailed       Stage = "failed"
)

// IsRunning reports whether the stage is an active, non-terminal phase.
func (s Stage) IsRunning() bool {
	switch s {
	case StageUploading, StageTranscribing, StageAnalyzing:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the stage only leaves through an explicit reset.
func (s Stage) IsTerminal() bool {
	return s == StageComplete || s == StageFailed
}

// AudioFormat is one of the encodings accepted by the analysis service.
type AudioFormat string

const (
	AudioFormatMP3 AudioFormat = "mp3"
	AudioFormatWAV AudioFormat = "wav"
)

// ContentType returns the MIME type sent with the multipart file part.
func (f AudioFormat) ContentType() string {
	switch f {
	case AudioFormatMP3:
		return "audio/mpeg"
	case AudioFormatWAV:
		return "audio/wav"
	default:
		return "application/octet-stream"
	}
}

// Valid reports whether the format is accepted by the service.
func (f AudioFormat) Valid() bool {
	return f == AudioFormatMP3 || f == AudioFormatWAV
}

// FormatFromFileName infers the audio format from a file extension.
func FormatFromFileName(name string) (AudioFormat, bool) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".mp3":
		return AudioFormatMP3, true
	case ".wav":
		return AudioFormatWAV, true
	default:
		return "", false
	}
}

// Language is an optional transcription language hint.
type Language string

const (
	LanguageAuto    Language = "auto"
	LanguageEnglish Language = "en"
	LanguageHebrew  Language = "he"
)

// SupportedLanguages lists explicit codes accepted by the service.
var SupportedLanguages = []Language{LanguageEnglish, LanguageHebrew}

// QueryCode returns the code to send, or "" when the server should auto-detect.
func (l Language) QueryCode() string {
	code := Language(strings.ToLower(strings.TrimSpace(string(l))))
	for _, supported := range SupportedLanguages {
		if code == supported {
			return string(code)
		}
	}
	return ""
}

// AudioSubmission is one audio payload handed to the analysis service.
type AudioSubmission struct {
	FileName string
	Format   AudioFormat
	Language Language
	Payload  []byte
}

// ResolvedFormat returns the declared format or the one implied by FileName.
func (s AudioSubmission) ResolvedFormat() (AudioFormat, bool) {
	if s.Format != "" {
		return s.Format, s.Format.Valid()
	}
	return FormatFromFileName(s.FileName)
}

// ActionItem is one follow-up extracted from the meeting.
type ActionItem struct {
	Task     string `json:"task"`
	Assignee string `json:"assignee,omitempty"`
	Deadline string `json:"deadline,omitempty"`
}

// AnalysisResult is the structured output returned by the analysis service.
type AnalysisResult struct {
	Transcription string       `json:"transcription"`
	Summary       string       `json:"summary"`
	Participants  []string     `json:"participants"`
	Decisions     []string     `json:"decisions"`
	ActionItems   []ActionItem `json:"action_items"`
}

// Normalize replaces absent lists with empty ones.
func (r AnalysisResult) Normalize() AnalysisResult {
	if r.Participants == nil {
		r.Participants = []string{}
	}
	if r.Decisions == nil {
		r.Decisions = []string{}
	}
	if r.ActionItems == nil {
		r.ActionItems = []ActionItem{}
	}
	return r
}

// Clone returns a deep copy so holders cannot mutate a received result.
func (r AnalysisResult) Clone() AnalysisResult {
	out := r
	out.Participants = append([]string{}, r.Participants...)
	out.Decisions = append([]string{}, r.Decisions...)
	out.ActionItems = append([]ActionItem{}, r.ActionItems...)
	return out
}

// ErrorKind classifies failures of remote operations.
type ErrorKind string

const (
	ErrorKindServer      ErrorKind = "server_error"
	ErrorKindUnreachable ErrorKind = "network_unreachable"
	ErrorKindClient      ErrorKind = "client_error"
)

// PipelineState is an immutable snapshot of one pipeline instance.
type PipelineState struct {
	SessionID string          `json:"sessionId,omitempty"`
	Stage     Stage           `json:"stage"`
	Progress  int             `json:"progress"`
	Result    *AnalysisResult `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
	ErrorKind ErrorKind       `json:"errorKind,omitempty"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Settings contains user-selectable runtime configuration.
type Settings struct {
	BaseURL      string `json:"baseUrl"`
	Language     string `json:"language"`
	OutputDir    string `json:"outputDir"`
	StageDwellMs int    `json:"stageDwellMs"`
}

// StageDwell returns the intermediate stage hold time.
func (s Settings) StageDwell() time.Duration {
	return time.Duration(s.StageDwellMs) * time.Millisecond
}
