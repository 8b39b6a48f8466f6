package services_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"lipsync/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "segmenting", "split video", "ffmpeg failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"segmenting", "split video", "ffmpeg failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsMarker(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected fallback detail, got %q", err.Error())
	}
}

func TestKindMapping(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{services.Wrap(services.ErrValidation, "staging", "validate", "missing video", nil), services.KindValidation},
		{services.Wrap(services.ErrIO, "staging", "copy", "disk full", errors.New("enospc")), services.KindIO},
		{services.Wrap(services.ErrExternalTool, "inferring", "run", "exit 1", nil), services.KindProcessing},
		{services.Wrap(services.ErrTimeout, "inferring", "run", "deadline", nil), services.KindTimeout},
		{fmt.Errorf("job: %w", context.Canceled), services.KindCanceled},
		{errors.New("mystery"), services.KindUnknown},
	}
	for _, tt := range tests {
		if got := services.Kind(tt.err); got != tt.want {
			t.Fatalf("Kind(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
