package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"lipsync/internal/config"
	"lipsync/internal/events"
	"lipsync/internal/logging"
	"lipsync/internal/notifications"
	"lipsync/internal/pipeline"
	"lipsync/internal/preflight"
	"lipsync/internal/queue"
)

// Converter runs one conversion. *pipeline.Driver satisfies it.
type Converter interface {
	Convert(ctx context.Context, req pipeline.Request, observer pipeline.Observer) (pipeline.Result, error)
}

// Manager coordinates queue processing.
type Manager struct {
	cfg          *config.Config
	store        *queue.Store
	converter    Converter
	hub          *events.Hub
	logger       *slog.Logger
	pollInterval time.Duration
	heartbeat    *HeartbeatMonitor
	preflight    func(context.Context) []preflight.Result
	notifier     notifications.Service

	mu       sync.RWMutex
	running  bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	lastErr  error
	lastJob  *queue.Job
	active   map[string]context.CancelFunc
	canceled map[string]struct{}
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*Manager)

// WithPreflight replaces the readiness checks run before each claim.
// Passing nil disables them.
func WithPreflight(check func(context.Context) []preflight.Result) ManagerOption {
	return func(m *Manager) {
		m.preflight = check
	}
}

// WithPollInterval overrides workflow.queue_poll_interval.
func WithPollInterval(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.pollInterval = d
		}
	}
}

// WithNotifier replaces the ntfy service built from notifications.*.
func WithNotifier(n notifications.Service) ManagerOption {
	return func(m *Manager) {
		if n != nil {
			m.notifier = n
		}
	}
}

// NewManager constructs a workflow manager. hub may be nil.
func NewManager(cfg *config.Config, store *queue.Store, converter Converter, hub *events.Hub, logger *slog.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "workflow")
	m := &Manager{
		cfg:          cfg,
		store:        store,
		converter:    converter,
		hub:          hub,
		logger:       logger,
		pollInterval: time.Duration(cfg.Workflow.QueuePollInterval) * time.Second,
		heartbeat: NewHeartbeatMonitor(
			store,
			logger,
			time.Duration(cfg.Workflow.HeartbeatInterval)*time.Second,
			time.Duration(cfg.Workflow.HeartbeatTimeout)*time.Second,
		),
		preflight: func(ctx context.Context) []preflight.Result {
			return preflight.RunAll(ctx, cfg)
		},
		notifier: notifications.NewService(cfg),
		active:   make(map[string]context.CancelFunc),
		canceled: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}
