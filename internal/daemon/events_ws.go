package daemon

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"lipsync/internal/api"
	"lipsync/internal/events"
	"lipsync/internal/logging"
	"lipsync/internal/queue"
)

const wsWriteTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// handleEvents streams a job's progress events over a websocket until the
// job reaches a terminal state or the client goes away.
func (s *apiServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	job, ok := s.loadJob(w, r)
	if !ok {
		return
	}
	since, _ := strconv.ParseUint(r.URL.Query().Get("since"), 10, 64)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", logging.JobID(job.ID), logging.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	// Drain client frames so close and ping frames are processed.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	if job.Status.IsTerminal() {
		_ = writeEvent(conn, api.FromEvent(terminalEvent(job)))
		closeNormally(conn)
		return
	}

	for {
		batch, next, err := s.daemon.hub.Fetch(ctx, job.ID, since, true)
		if err != nil {
			return
		}
		since = next
		for _, evt := range batch {
			if err := writeEvent(conn, api.FromEvent(evt)); err != nil {
				return
			}
			if evt.Terminal() {
				closeNormally(conn)
				return
			}
		}
	}
}

// terminalEvent rebuilds the final event of a finished job from its row.
func terminalEvent(job *queue.Job) events.Event {
	evt := events.Event{
		JobID:     job.ID,
		State:     string(job.Status),
		Done:      job.SegmentsDone,
		Total:     job.SegmentsTotal,
		ErrorKind: job.ErrorKind,
		Message:   job.ErrorMessage,
		Timestamp: job.UpdatedAt,
	}
	if job.Status == queue.StatusCompleted {
		evt.State = "done"
		evt.Message = job.OutputPath
	}
	return evt
}

func writeEvent(conn *websocket.Conn, evt api.Event) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteJSON(evt)
}

func closeNormally(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsWriteTimeout))
}
