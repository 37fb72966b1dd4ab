package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"shortbox/internal/comicinfo"
	"shortbox/internal/config"
	"shortbox/internal/jobstore"
	"shortbox/internal/logging"
	"shortbox/internal/matching"
	"shortbox/internal/notifications"
	"shortbox/internal/services"
	"shortbox/internal/sources"
)

// Manager coordinates matching jobs.
type Manager struct {
	cfg      *config.Config
	store    *jobstore.Store
	registry *sources.Registry
	matcher  *matching.Matcher
	files    comicinfo.ReadWriter
	notifier notifications.Service
	logger   *slog.Logger
	jobLogs  *JobLogs

	sourceTimeout time.Duration

	mu      sync.Mutex
	runs    map[string]*run
	baseCtx context.Context
	stop    context.CancelFunc
	closed  bool
	wg      sync.WaitGroup
}

type run struct {
	step   jobstore.Step
	cancel context.CancelFunc
	done   chan struct{}
}

// NewManager constructs a workflow manager. files is the archive reader and
// writer used for current metadata and apply.
func NewManager(cfg *config.Config, store *jobstore.Store, registry *sources.Registry, files comicinfo.ReadWriter, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	timeout := time.Duration(cfg.Matching.SourceTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	baseCtx, stop := context.WithCancel(context.Background())
	return &Manager{
		cfg:      cfg,
		store:    store,
		registry: registry,
		files:    files,
		notifier: notifications.NewService(cfg),
		logger:   logging.NewComponentLogger(logger, "workflow"),
		jobLogs:  NewJobLogs(cfg),
		matcher: matching.NewMatcher(registry, matching.MatcherOptions{
			Concurrency:        cfg.Matching.CrossSourceConcurrency,
			Timeout:            timeout,
			AutoMatchThreshold: cfg.Matching.AutoMatchThreshold,
			SearchLimit:        cfg.Matching.SearchLimit,
			Exclude:            cfg.Matching.CrossSourceExclude,
			Logger:             logger,
		}),
		sourceTimeout: timeout,
		runs:          make(map[string]*run),
		baseCtx:       baseCtx,
		stop:          stop,
	}
}

// Close cancels every background run and waits for them to finish.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.mu.Unlock()

	m.stop()
	m.wg.Wait()
}

// Get returns the persisted job. It has no side effects.
func (m *Manager) Get(ctx context.Context, id string) (*jobstore.Job, error) {
	return m.store.Get(ctx, id)
}

// List returns job summaries.
func (m *Manager) List(ctx context.Context, includeArchived bool) ([]jobstore.Summary, error) {
	return m.store.List(ctx, includeArchived)
}

// Running reports whether a background step is active for the job.
func (m *Manager) Running(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.runs[id]
	return ok
}

// Wait blocks until the job's background step, if any, has finished.
func (m *Manager) Wait(ctx context.Context, id string) error {
	m.mu.Lock()
	r, ok := m.runs[id]
	m.mu.Unlock()
	if !ok {
		return nil
	}
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// spawn runs fn in the background as the job's single active step.
func (m *Manager) spawn(jobID string, step jobstore.Step, fn func(ctx context.Context, logger *slog.Logger) error) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return services.Wrap(services.ErrInvalidState, "workflow", string(step), "manager is shutting down", nil)
	}
	if _, busy := m.runs[jobID]; busy {
		m.mu.Unlock()
		return services.Wrap(services.ErrInvalidState, "workflow", string(step), "job "+jobID+" already has a step running", nil)
	}
	ctx, cancel := context.WithCancel(m.baseCtx)
	ctx = services.WithJobID(ctx, jobID)
	ctx = services.WithStep(ctx, string(step))
	r := &run{step: step, cancel: cancel, done: make(chan struct{})}
	m.runs[jobID] = r
	m.wg.Add(1)
	m.mu.Unlock()

	logger := logging.WithContext(ctx, m.jobLogger(jobID))
	go func() {
		defer m.wg.Done()
		defer close(r.done)
		defer func() {
			m.mu.Lock()
			delete(m.runs, jobID)
			m.mu.Unlock()
			cancel()
		}()
		defer func() {
			if rec := recover(); rec != nil {
				m.fail(ctx, logger, jobID, fmt.Errorf("%s panicked: %v", step, rec))
			}
		}()

		started := time.Now()
		logger.Debug("background step started")
		if err := fn(ctx, logger); err != nil {
			switch {
			case errors.Is(err, errJobGone):
				logger.Debug("job removed during background step")
			case errors.Is(err, errCancelled) || ctx.Err() != nil:
				m.afterCancel(ctx, logger, jobID)
			default:
				m.fail(ctx, logger, jobID, err)
			}
			return
		}
		logger.Debug("background step finished", logging.Duration("elapsed", time.Since(started)))
		m.announce(ctx, logger, jobID, step)
	}()
	return nil
}

// stopRun cancels the job's background step and waits for it.
func (m *Manager) stopRun(id string) {
	m.mu.Lock()
	r, ok := m.runs[id]
	m.mu.Unlock()
	if !ok {
		return
	}
	r.cancel()
	<-r.done
}

func (m *Manager) cancelRun(id string) bool {
	m.mu.Lock()
	r, ok := m.runs[id]
	m.mu.Unlock()
	if ok {
		r.cancel()
	}
	return ok
}

func (m *Manager) jobLogger(id string) *slog.Logger {
	handler, err := m.jobLogs.Handler(id)
	if err != nil {
		m.logger.Warn("job log unavailable", logging.JobID(id), logging.Error(err))
		return m.logger
	}
	return slog.New(logging.Tee(m.logger.Handler(), handler))
}

// persistCtx keeps store writes alive after the run's context is cancelled,
// so a cancelled step can still record where it stopped.
func persistCtx(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}
