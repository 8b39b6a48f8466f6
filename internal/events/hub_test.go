package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishAssignsSequence(t *testing.T) {
	hub := NewHub(10)
	first := hub.Publish(Event{JobID: "a", State: "staging"})
	second := hub.Publish(Event{JobID: "b", State: "staging"})

	assert.Equal(t, uint64(1), first.Sequence)
	assert.Equal(t, uint64(2), second.Sequence)
	assert.False(t, first.Timestamp.IsZero())
}

func TestFetchFiltersByJob(t *testing.T) {
	hub := NewHub(10)
	hub.Publish(Event{JobID: "a", State: "staging"})
	hub.Publish(Event{JobID: "b", State: "staging"})
	hub.Publish(Event{JobID: "a", State: "inferring", Done: 1, Total: 3})

	events, next, err := hub.Fetch(context.Background(), "a", 0, false)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "inferring", events[1].State)
	assert.Equal(t, uint64(3), next)

	events, _, err = hub.Fetch(context.Background(), "a", next, false)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestFetchWaitsForMatchingEvent(t *testing.T) {
	hub := NewHub(10)
	got := make(chan []Event, 1)
	go func() {
		events, _, err := hub.Fetch(context.Background(), "a", 0, true)
		if err == nil {
			got <- events
		}
	}()

	time.Sleep(20 * time.Millisecond)
	hub.Publish(Event{JobID: "other", State: "staging"})
	hub.Publish(Event{JobID: "a", State: "done"})

	select {
	case events := <-got:
		require.Len(t, events, 1)
		assert.True(t, events[0].Terminal())
	case <-time.After(2 * time.Second):
		t.Fatal("Fetch did not wake up")
	}
}

func TestFetchHonoursCancellation(t *testing.T) {
	hub := NewHub(10)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, _, err := hub.Fetch(ctx, "a", 0, true)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestHubIsBounded(t *testing.T) {
	hub := NewHub(2)
	for i := range 5 {
		hub.Publish(Event{JobID: "a", Done: i})
	}
	events, _, err := hub.Fetch(context.Background(), "", 0, false)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, 4, events[1].Done)

	latest, ok := hub.Latest("a")
	require.True(t, ok)
	assert.Equal(t, uint64(5), latest.Sequence)
}
