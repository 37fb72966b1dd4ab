package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/gofrs/flock"

	"shortbox/internal/api"
	"shortbox/internal/config"
	"shortbox/internal/jobstore"
	"shortbox/internal/logging"
	"shortbox/internal/workflow"
)

// Daemon owns the server process lifecycle and enforces single-instance
// execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *jobstore.Store
	workflow *workflow.Manager
	api      *api.Server

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool                  `json:"running"`
	DatabasePath string                `json:"database_path"`
	LockFilePath string                `json:"lock_file_path"`
	APIAddress   string                `json:"api_address,omitempty"`
	Jobs         map[jobstore.Step]int `json:"jobs"`
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *jobstore.Store, wf *workflow.Manager, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || wf == nil {
		return nil, errors.New("daemon requires config, store, and workflow manager")
	}
	logger = logging.NewComponentLogger(logger, "daemon")
	return &Daemon{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		workflow: wf,
		api:      api.New(cfg, wf, logger),
		lockPath: cfg.LockPath(),
		lock:     flock.New(cfg.LockPath()),
	}, nil
}

// Start acquires the lock, recovers interrupted jobs, and opens the API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("another shortbox server is already running (lock %s)", d.lockPath)
	}

	recovered, err := d.workflow.Recover(ctx)
	if err != nil {
		d.logger.Warn("job recovery incomplete",
			logging.Error(err),
			logging.Alert("recovery_failed"),
			logging.String("impact", "some interrupted jobs may need to be cancelled by hand"),
		)
	}
	if len(recovered) > 0 {
		d.logger.Info("recovered interrupted jobs", logging.Any("job_ids", recovered))
	}

	if err := d.api.Start(ctx); err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("start api: %w", err)
	}

	d.running.Store(true)
	d.logger.Info("shortbox server started",
		logging.String("lock", d.lockPath),
		logging.String("address", d.api.Addr()),
	)
	return nil
}

// Stop closes the API, stops background steps, and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	d.api.Stop()
	d.workflow.Close()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release server lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("shortbox server stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Status reports whether the server runs and how many jobs sit in each step.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		DatabasePath: d.store.Path(),
		LockFilePath: d.lockPath,
		APIAddress:   d.api.Addr(),
		Jobs:         make(map[jobstore.Step]int),
	}
	jobs, err := d.workflow.List(ctx, false)
	if err != nil {
		d.logger.Warn("status job listing failed", logging.Error(err))
		return status
	}
	for _, job := range jobs {
		status.Jobs[job.Step]++
	}
	return status
}
