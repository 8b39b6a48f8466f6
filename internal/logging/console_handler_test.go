package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestPrettyHandlerFormatsSubject(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	logger := slog.New(newPrettyHandler(&buf, lvl, false)).
		With(String(FieldComponent, "pipeline"), JobID("0f8fad5b-d9cb-469f-a165-70867728950e"))

	logger.Info("segment finished", String(FieldStage, "inferring"), Int("done", 2), Int("total", 3), String("path", "/tmp/a b.mp4"))

	line := buf.String()
	for _, fragment := range []string{
		"INFO [pipeline] job 0f8fad5b (inferring): segment finished",
		"done=2",
		"total=3",
		`path="/tmp/a b.mp4"`,
	} {
		if !strings.Contains(line, fragment) {
			t.Fatalf("expected %q in %q", fragment, line)
		}
	}
	if strings.Contains(line, "\x1b[") {
		t.Fatalf("expected no colour codes for non-terminal writer, got %q", line)
	}
}

func TestPrettyHandlerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	lvl.Set(slog.LevelWarn)
	logger := slog.New(newPrettyHandler(&buf, lvl, false))
	logger.Info("hidden")
	logger.Warn("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "WARN") {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

func TestProgressSamplerBuckets(t *testing.T) {
	s := NewProgressSampler(25)
	var emitted []int
	for done := 0; done <= 8; done++ {
		if s.ShouldLog("inferring", done, 8) {
			emitted = append(emitted, done)
		}
	}
	want := []int{0, 2, 4, 6, 8}
	if len(emitted) != len(want) {
		t.Fatalf("emitted %v, want %v", emitted, want)
	}
	for i := range want {
		if emitted[i] != want[i] {
			t.Fatalf("emitted %v, want %v", emitted, want)
		}
	}
	if !s.ShouldLog("concatenating", 0, 0) {
		t.Fatal("expected stage change to emit")
	}
}

func TestFormatSubject(t *testing.T) {
	cases := []struct {
		jobID, stage string
		segment      int
		want         string
	}{
		{"abcdef1234", "staging", -1, "job abcdef12 (staging)"},
		{"abcdef1234", "inferring", 2, "job abcdef12 (inferring #2)"},
		{"abc", "", -1, "job abc"},
		{"", "segmenting", -1, "segmenting"},
		{"", "", -1, ""},
	}
	for _, tc := range cases {
		if got := FormatSubject(tc.jobID, tc.stage, tc.segment); got != tc.want {
			t.Fatalf("FormatSubject(%q, %q, %d) = %q, want %q", tc.jobID, tc.stage, tc.segment, got, tc.want)
		}
	}
}

func TestPrettyHandlerLiftsSegmentIntoSubject(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newPrettyHandler(&buf, new(slog.LevelVar), false))
	logger.Info("inference finished", JobID("job-1"), String(FieldStage, "inferring"), Segment(1))

	line := buf.String()
	if !strings.Contains(line, "job job-1 (inferring #1): inference finished") {
		t.Fatalf("unexpected subject in %q", line)
	}
	if strings.Contains(line, "segment=") {
		t.Fatalf("segment should not be repeated as a field: %q", line)
	}
}
