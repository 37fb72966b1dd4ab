package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"shortbox/internal/config"
	"shortbox/internal/logging"
)

// JobLogs manages the dedicated log file kept in each job's work directory.
type JobLogs struct {
	cfg *config.Config

	mu       sync.Mutex
	handlers map[string]slog.Handler
}

// NewJobLogs creates the per-job log registry.
func NewJobLogs(cfg *config.Config) *JobLogs {
	return &JobLogs{cfg: cfg, handlers: make(map[string]slog.Handler)}
}

// Path returns the log file location for a job.
func (l *JobLogs) Path(jobID string) string {
	if l.cfg == nil || strings.TrimSpace(jobID) == "" {
		return ""
	}
	return filepath.Join(l.cfg.WorkDir(jobID), "job.log")
}

// Handler returns a JSON handler appending to the job's log file. Handlers
// are cached so each job's file is opened once per process.
func (l *JobLogs) Handler(jobID string) (slog.Handler, error) {
	path := l.Path(jobID)
	if path == "" {
		return nil, fmt.Errorf("job log directory not configured")
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if h, ok := l.handlers[jobID]; ok {
		return h, nil
	}
	level := "info"
	if l.cfg != nil && strings.TrimSpace(l.cfg.Logging.Level) != "" {
		level = l.cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           "json",
		OutputPaths:      []string{path},
		ErrorOutputPaths: []string{path},
	})
	if err != nil {
		return nil, err
	}
	l.handlers[jobID] = logger.Handler()
	return logger.Handler(), nil
}

// Forget drops the cached handler for an abandoned job.
func (l *JobLogs) Forget(jobID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.handlers, jobID)
}

// LogPath returns the job's log file, or ErrNotFound for an unknown job.
func (m *Manager) LogPath(ctx context.Context, id string) (string, error) {
	if _, err := m.store.Get(ctx, id); err != nil {
		return "", err
	}
	return m.jobLogs.Path(id), nil
}
