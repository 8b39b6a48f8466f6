package notifications_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lipsync/internal/config"
	"lipsync/internal/notifications"
)

type captured struct {
	title, body, tags, priority string
}

func newNtfyServer(t *testing.T, status int) (*httptest.Server, func() []captured) {
	t.Helper()
	var (
		mu   sync.Mutex
		reqs []captured
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		reqs = append(reqs, captured{
			title:    r.Header.Get("Title"),
			body:     string(body),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
		})
		mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []captured {
		mu.Lock()
		defer mu.Unlock()
		return append([]captured(nil), reqs...)
	}
}

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	svc := notifications.NewService(&cfg)
	assert.NoError(t, svc.NotifyJobFinished(context.Background(), notifications.Outcome{JobID: "x", Status: "completed"}))
	assert.NoError(t, svc.TestNotification(context.Background()))
}

func TestNtfyServiceFormatsOutcomes(t *testing.T) {
	tests := []struct {
		name         string
		outcome      notifications.Outcome
		wantTitle    string
		wantBody     string
		wantTags     string
		wantPriority string
	}{
		{
			name: "completed",
			outcome: notifications.Outcome{
				JobID: "job-1", Status: "completed", Segments: 3,
				Elapsed: 95 * time.Second, OutputPath: "/results/job-1.mp4",
			},
			wantTitle: "Lipsync - Completed",
			wantBody:  "Job job-1 finished: 3 segment(s) in 1m35s\n/results/job-1.mp4",
			wantTags:  "lipsync,completed",
		},
		{
			name: "completed with truncation",
			outcome: notifications.Outcome{
				JobID: "job-2", Status: "completed", Segments: 2, Truncated: true,
			},
			wantTitle: "Lipsync - Completed",
			wantBody:  "Job job-2 finished: 2 segment(s)\nSegment counts differed; trailing segments were dropped",
			wantTags:  "lipsync,completed",
		},
		{
			name: "failed",
			outcome: notifications.Outcome{
				JobID: "job-3", Status: "failed", ErrorKind: "processing", Message: "inference exited 1",
			},
			wantTitle:    "Lipsync - Failed",
			wantBody:     "Job job-3 failed (processing): inference exited 1",
			wantTags:     "lipsync,error",
			wantPriority: "high",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, requests := newNtfyServer(t, http.StatusOK)
			cfg := config.Default()
			cfg.Notifications.NtfyTopic = srv.URL

			svc := notifications.NewService(&cfg)
			require.NoError(t, svc.NotifyJobFinished(context.Background(), tt.outcome))

			got := requests()
			require.Len(t, got, 1)
			assert.Equal(t, tt.wantTitle, got[0].title)
			assert.Equal(t, tt.wantBody, got[0].body)
			assert.Equal(t, tt.wantTags, got[0].tags)
			assert.Equal(t, tt.wantPriority, got[0].priority)
		})
	}
}

func TestNtfyServiceHonorsOutcomeToggles(t *testing.T) {
	srv, requests := newNtfyServer(t, http.StatusOK)
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = srv.URL
	cfg.Notifications.NotifyCompleted = false

	svc := notifications.NewService(&cfg)
	ctx := context.Background()
	require.NoError(t, svc.NotifyJobFinished(ctx, notifications.Outcome{JobID: "a", Status: "completed"}))
	require.NoError(t, svc.NotifyJobFinished(ctx, notifications.Outcome{JobID: "b", Status: "canceled"}))
	require.NoError(t, svc.NotifyJobFinished(ctx, notifications.Outcome{JobID: "c", Status: "failed"}))

	got := requests()
	require.Len(t, got, 1)
	assert.Equal(t, "Job c failed", got[0].body)
}

func TestNtfyServiceReportsHTTPErrors(t *testing.T) {
	srv, _ := newNtfyServer(t, http.StatusForbidden)
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = srv.URL

	err := notifications.NewService(&cfg).TestNotification(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ntfy returned 403")
}
