// Package daemonrun assembles and runs the shortbox server process.
package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"shortbox/internal/comicinfo"
	"shortbox/internal/config"
	"shortbox/internal/daemon"
	"shortbox/internal/jobstore"
	"shortbox/internal/logging"
	"shortbox/internal/preflight"
	"shortbox/internal/sources/providers"
	"shortbox/internal/workflow"
)

// Options configures server process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the server and blocks until cmdCtx ends or the process is
// signalled.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("shortbox-%s.log", runID))
	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
		Development:      opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update shortbox.log link: %v\n", err)
	}

	pidPath := filepath.Join(cfg.Paths.DataDir, "shortbox.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	registry, err := providers.Build(cfg, logger)
	if err != nil {
		return fmt.Errorf("build sources: %w", err)
	}
	logPreflight(logger, preflight.RunAll(cfg, registry))

	store, err := jobstore.Open(cfg)
	if err != nil {
		logger.Error("open job store", logging.Error(err))
		return err
	}

	manager := workflow.NewManager(cfg, store, registry, comicinfo.NewArchive(cfg.Apply.ConvertZipToCBZ), logger)
	d, err := daemon.New(cfg, store, manager, logger)
	if err != nil {
		store.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		return err
	}

	<-signalCtx.Done()
	logger.Info("shortbox server shutting down")
	return nil
}

// logPreflight records directory and source readiness at startup.
func logPreflight(logger *slog.Logger, results []preflight.Result) {
	for _, r := range results {
		if r.Passed {
			logger.Info("preflight ok", logging.String("check", r.Name), logging.String("detail", r.Detail))
			continue
		}
		logger.Warn("preflight failed",
			logging.String("check", r.Name),
			logging.String("detail", r.Detail),
			logging.Alert("preflight"),
		)
	}
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "shortbox.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
