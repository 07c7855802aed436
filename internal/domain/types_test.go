package domain

import "testing"

// TestLanguageQueryCode verifies auto and unknown hints are omitted.
func TestLanguageQueryCode(t *testing.T) {
	cases := map[Language]string{
		LanguageAuto:    "",
		"":              "",
		LanguageEnglish: "en",
		" HE ":          "he",
		"fr":            "",
	}
	for in, want := range cases {
		if got := in.QueryCode(); got != want {
			t.Fatalf("QueryCode(%q) = %q, want %q", in, got, want)
		}
	}
}

// TestSubmissionResolvedFormat checks declared and inferred formats.
func TestSubmissionResolvedFormat(t *testing.T) {
	if f, ok := (AudioSubmission{FileName: "standup.MP3"}).ResolvedFormat(); !ok || f != AudioFormatMP3 {
		t.Fatalf("inferred format = %q ok=%v, want mp3", f, ok)
	}
	if f, ok := (AudioSubmission{FileName: "x.mp3", Format: AudioFormatWAV}).ResolvedFormat(); !ok || f != AudioFormatWAV {
		t.Fatalf("declared format = %q ok=%v, want wav", f, ok)
	}
	if _, ok := (AudioSubmission{FileName: "notes.txt"}).ResolvedFormat(); ok {
		t.Fatal("expected unsupported extension to be rejected")
	}
	if _, ok := (AudioSubmission{Format: "flac"}).ResolvedFormat(); ok {
		t.Fatal("expected unsupported declared format to be rejected")
	}
}

// TestAnalysisResultCloneIsIndependent verifies clones do not share lists.
func TestAnalysisResultCloneIsIndependent(t *testing.T) {
	orig := AnalysisResult{
		Participants: []string{"Alice"},
		ActionItems:  []ActionItem{{Task: "Write report"}},
	}
	clone := orig.Clone()
	clone.Participants[0] = "Mallory"
	clone.ActionItems[0].Task = "Nothing"

	if orig.Participants[0] != "Alice" || orig.ActionItems[0].Task != "Write report" {
		t.Fatalf("original mutated: %+v", orig)
	}
}

// TestAnalysisResultNormalize checks absent lists become empty lists.
func TestAnalysisResultNormalize(t *testing.T) {
	got := AnalysisResult{Transcription: "t", Summary: "s"}.Normalize()
	if got.Participants == nil || got.Decisions == nil || got.ActionItems == nil {
		t.Fatalf("expected empty lists, got %+v", got)
	}
}

// TestStagePredicates checks running and terminal classification.
func TestStagePredicates(t *testing.T) {
	for _, s := range []Stage{StageUploading, StageTranscribing, StageAnalyzing} {
		if !s.IsRunning() || s.IsTerminal() {
			t.Fatalf("%s should be running", s)
		}
	}
	for _, s := range []Stage{StageComplete, StageFailed} {
		if s.IsRunning() || !s.IsTerminal() {
			t.Fatalf("%s should be terminal", s)
		}
	}
	if StageIdle.IsRunning() || StageIdle.IsTerminal() {
		t.Fatal("idle is neither running nor terminal")
	}
}
