package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"lipsync/internal/api"
	"lipsync/internal/config"
	"lipsync/internal/logging"
	"lipsync/internal/queue"
	"lipsync/internal/services"
)

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon
	ui     *uiPage

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:   strings.TrimSpace(cfg.Paths.APIBind),
		logger: logging.NewComponentLogger(logger, "api-server"),
		daemon: d,
		ui:     newUIPage(cfg),
	}
	srv.server = &http.Server{
		Handler:           srv.routes(cfg.Paths.APIToken),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
		// Uploads, downloads and event streams are unbounded; no read/write timeouts.
	}
	return srv
}

func (s *apiServer) routes(token string) http.Handler {
	apiMux := http.NewServeMux()
	apiMux.HandleFunc("POST /api/jobs", s.handleSubmit)
	apiMux.HandleFunc("GET /api/jobs", s.handleList)
	apiMux.HandleFunc("GET /api/jobs/{id}", s.handleGet)
	apiMux.HandleFunc("DELETE /api/jobs/{id}", s.handleRemove)
	apiMux.HandleFunc("GET /api/jobs/{id}/output", s.handleOutput)
	apiMux.HandleFunc("GET /api/jobs/{id}/events", s.handleEvents)
	apiMux.HandleFunc("GET /api/status", s.handleStatus)

	mux := http.NewServeMux()
	mux.Handle("/api/", authMiddleware(token, apiMux))
	mux.HandleFunc("GET /{$}", s.ui.ServeHTTP)
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

func (s *apiServer) start(ctx context.Context) error {
	if s.bind == "" {
		return errors.New("paths.api_bind is empty")
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()
	context.AfterFunc(ctx, s.stop)

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
	s.mu.Lock()
	s.listener = nil
	s.mu.Unlock()
}

// Addr returns the bound listener address, or "" when not listening.
func (s *apiServer) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleSubmit(w http.ResponseWriter, r *http.Request) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	var (
		job *queue.Job
		err error
	)
	switch mediaType {
	case "multipart/form-data":
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
		form, formErr := r.MultipartReader()
		if formErr != nil {
			s.writeError(w, http.StatusBadRequest, formErr.Error(), services.KindValidation)
			return
		}
		job, err = s.daemon.receiveUpload(r.Context(), form)
	default:
		var req api.SubmitRequest
		decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
		decoder.DisallowUnknownFields()
		if decodeErr := decoder.Decode(&req); decodeErr != nil {
			s.writeError(w, http.StatusBadRequest, "invalid JSON body: "+decodeErr.Error(), services.KindValidation)
			return
		}
		job, err = s.daemon.Submit(r.Context(), SubmitParams{
			VideoPath:      req.VideoPath,
			AudioPath:      req.AudioPath,
			SegmentSeconds: req.SegmentLength,
		})
	}
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, api.JobResponse{Job: api.FromJob(job)})
}

func (s *apiServer) handleList(w http.ResponseWriter, r *http.Request) {
	var statuses []queue.Status
	for _, value := range r.URL.Query()["status"] {
		if strings.TrimSpace(value) == "" {
			continue
		}
		status, ok := queue.ParseStatus(value)
		if !ok {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown status %q", value), services.KindValidation)
			return
		}
		statuses = append(statuses, status)
	}
	jobs, err := s.daemon.store.List(r.Context(), statuses...)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.JobListResponse{Jobs: api.FromJobs(jobs)})
}

func (s *apiServer) handleGet(w http.ResponseWriter, r *http.Request) {
	job, ok := s.loadJob(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, api.JobResponse{Job: api.FromJob(job)})
}

func (s *apiServer) handleRemove(w http.ResponseWriter, r *http.Request) {
	result, err := s.daemon.Remove(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.RemoveResponse{Removed: result.Removed, Canceled: result.Canceled})
}

func (s *apiServer) handleOutput(w http.ResponseWriter, r *http.Request) {
	job, ok := s.loadJob(w, r)
	if !ok {
		return
	}
	if job.Status != queue.StatusCompleted || job.OutputPath == "" {
		s.writeError(w, http.StatusConflict, fmt.Sprintf("job %s is %s", job.ID, job.Status), "")
		return
	}
	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`inline; filename="%s.mp4"`, job.ID))
	http.ServeFile(w, r, job.OutputPath)
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.daemon.Status(r.Context())
	s.writeJSON(w, http.StatusOK, api.DaemonStatus{
		Running:      status.Running,
		PID:          status.PID,
		QueueDBPath:  status.QueueDBPath,
		LockFilePath: status.LockFilePath,
		Workflow:     api.FromStatusSummary(status.Workflow),
		Dependencies: api.FromDependencies(status.Dependencies),
	})
}

func (s *apiServer) loadJob(w http.ResponseWriter, r *http.Request) (*queue.Job, bool) {
	id := r.PathValue("id")
	job, err := s.daemon.store.GetByID(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return nil, false
	}
	if job == nil {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("job %s not found", id), services.KindNotFound)
		return nil, false
	}
	return job, true
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message, kind string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: message, Kind: kind})
}

// writeServiceError maps classified errors onto HTTP status codes.
func (s *apiServer) writeServiceError(w http.ResponseWriter, err error) {
	kind := services.Kind(err)
	status := http.StatusInternalServerError
	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytes):
		status, kind = http.StatusRequestEntityTooLarge, services.KindValidation
	case kind == services.KindValidation:
		status = http.StatusBadRequest
	case kind == services.KindNotFound:
		status = http.StatusNotFound
	case kind == services.KindCanceled:
		status = 499
	default:
		s.logger.Error("api request failed", logging.Error(err), logging.ErrorKind(err))
	}
	s.writeError(w, status, err.Error(), kind)
}
