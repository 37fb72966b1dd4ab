package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"shortbox/internal/changeset"
	"shortbox/internal/grouping"
	"shortbox/internal/jobstore"
	"shortbox/internal/logging"
	"shortbox/internal/services"
)

// DefaultOptions returns the option set a new job starts with.
func (m *Manager) DefaultOptions() jobstore.Options {
	opts := jobstore.Options{
		CleanupMode:             string(changeset.ParseCleanupMode(m.cfg.Apply.CleanupMode)),
		SearchLimit:             m.cfg.Matching.SearchLimit,
		CrossSource:             true,
		AutoApplyHighConfidence: m.cfg.Matching.AutoApplyHighConfidence,
	}
	if primary, ok := m.registry.Primary(); ok {
		opts.PrimarySource = primary.Name()
	}
	return opts
}

func (m *Manager) validateOptions(opts *jobstore.Options) error {
	if opts.CleanupMode == "" {
		opts.CleanupMode = string(changeset.CleanupMerge)
	}
	mode := changeset.CleanupMode(opts.CleanupMode)
	if mode != changeset.CleanupMerge && mode != changeset.CleanupReplace {
		return services.Wrap(services.ErrValidation, "workflow", "options", "unknown cleanup mode "+opts.CleanupMode, nil)
	}
	if opts.SearchLimit <= 0 {
		opts.SearchLimit = m.cfg.Matching.SearchLimit
	}
	if opts.PrimarySource == "" {
		if primary, ok := m.registry.Primary(); ok {
			opts.PrimarySource = primary.Name()
		}
	}
	if _, ok := m.registry.Get(opts.PrimarySource); !ok {
		return services.Wrap(services.ErrConfiguration, "workflow", "options",
			fmt.Sprintf("source %q is not enabled; enable it under [sources] or pick another primary source", opts.PrimarySource), nil)
	}
	return nil
}

// Create registers a job for files. Files without an id are numbered in
// submission order. opts may be nil to take the configured defaults.
func (m *Manager) Create(ctx context.Context, files []grouping.File, opts *jobstore.Options) (*jobstore.Job, error) {
	if len(files) == 0 {
		return nil, services.Wrap(services.ErrValidation, "workflow", "create", "no files submitted", nil)
	}
	seen := make(map[string]bool, len(files))
	normalized := make([]grouping.File, 0, len(files))
	for i, f := range files {
		f.Path = strings.TrimSpace(f.Path)
		if f.Path == "" {
			return nil, services.Wrap(services.ErrValidation, "workflow", "create", fmt.Sprintf("file %d has no path", i+1), nil)
		}
		if f.ID == "" {
			f.ID = strconv.Itoa(i + 1)
		}
		if seen[f.ID] {
			return nil, services.Wrap(services.ErrValidation, "workflow", "create", "duplicate file id "+f.ID, nil)
		}
		seen[f.ID] = true
		normalized = append(normalized, f)
	}

	options := m.DefaultOptions()
	if opts != nil {
		options = *opts
	}
	if err := m.validateOptions(&options); err != nil {
		return nil, err
	}

	job := &jobstore.Job{Files: normalized, Options: options}
	job.Log(jobstore.ActivityInfo, fmt.Sprintf("job created with %d files", len(normalized)))
	if err := m.store.Create(ctx, job); err != nil {
		return nil, err
	}
	m.logger.Info("job created",
		logging.JobID(job.ID),
		logging.Int("files", len(normalized)),
	)
	return job, nil
}

// Start confirms the options and begins grouping in the background. A
// missing credential on the primary source is reported here and the job
// stays in the options step.
func (m *Manager) Start(ctx context.Context, id string, opts *jobstore.Options) (*jobstore.Job, error) {
	job, err := m.store.Mutate(ctx, id, func(j *jobstore.Job) error {
		if err := requireStep("start", j, jobstore.StepOptions); err != nil {
			return err
		}
		if opts != nil {
			j.Options = *opts
		}
		if err := m.validateOptions(&j.Options); err != nil {
			return err
		}
		adapter, _ := m.registry.Get(j.Options.PrimarySource)
		if err := adapter.Validate(); err != nil {
			return err
		}
		if len(j.IncludedFiles()) == 0 {
			return services.Wrap(services.ErrValidation, "workflow", "start", "every file is excluded", nil)
		}
		j.Step = jobstore.StepInitializing
		j.Log(jobstore.ActivityInfo, fmt.Sprintf("grouping %d files", len(j.IncludedFiles())))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return m.begin(ctx, job, func(runCtx context.Context, logger *slog.Logger) error {
		return m.initialize(runCtx, logger, job.ID)
	})
}

// begin spawns the background step for a job already moved into it. If the
// step cannot start the job is rolled back.
func (m *Manager) begin(ctx context.Context, job *jobstore.Job, fn func(context.Context, *slog.Logger) error) (*jobstore.Job, error) {
	spawnErr := m.spawn(job.ID, job.Step, fn)
	if spawnErr == nil {
		return job, nil
	}
	if _, err := m.store.Mutate(persistCtx(ctx), job.ID, func(j *jobstore.Job) error {
		rollback(j, "could not start "+string(j.Step))
		return nil
	}); err != nil {
		return nil, errors.Join(spawnErr, err)
	}
	return nil, spawnErr
}

// Cancel stops the job's background step. The job returns to its last
// stable step once the step has stopped; apply instead finishes with the
// remaining files recorded as failed.
func (m *Manager) Cancel(ctx context.Context, id string) (*jobstore.Job, error) {
	running := m.Running(id)
	job, err := m.store.Mutate(ctx, id, func(j *jobstore.Job) error {
		if !running && !j.Step.IsWorking() {
			return services.Wrap(services.ErrInvalidState, "workflow", "cancel", "job "+j.ID+" has nothing running", nil)
		}
		if !running {
			rollback(j, "cancelled")
			return nil
		}
		j.Cancelled = true
		j.Log(jobstore.ActivityInfo, "cancel requested")
		return nil
	})
	if err != nil {
		return nil, err
	}
	if running {
		m.cancelRun(id)
	}
	return job, nil
}

// Complete archives a finished job so it drops out of the active list.
func (m *Manager) Complete(ctx context.Context, id string) (*jobstore.Job, error) {
	job, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireStep("complete", job, jobstore.StepComplete); err != nil {
		return nil, err
	}
	return m.store.Archive(ctx, id)
}

// Abandon stops any background step, then deletes the job and its work
// directory. It cannot be undone.
func (m *Manager) Abandon(ctx context.Context, id string) error {
	if _, err := m.store.Get(ctx, id); err != nil {
		return err
	}
	m.stopRun(id)
	if err := m.store.Delete(ctx, id); err != nil {
		return err
	}
	m.jobLogs.Forget(id)
	if err := os.RemoveAll(m.cfg.WorkDir(id)); err != nil {
		m.logger.Warn("remove job work directory failed",
			logging.JobID(id),
			logging.Error(err),
		)
	}
	m.logger.Info("job abandoned", logging.JobID(id))
	return nil
}

// Recover rolls back jobs left in a background step by a previous process
// and restarts searches that were in flight. It returns the ids touched.
func (m *Manager) Recover(ctx context.Context) ([]string, error) {
	summaries, err := m.store.List(ctx, false)
	if err != nil {
		return nil, err
	}
	var recovered []string
	for _, s := range summaries {
		if m.Running(s.ID) || !(s.Step.IsWorking() || s.Step == jobstore.StepSeriesApproval) {
			continue
		}
		job, err := m.store.Mutate(ctx, s.ID, func(j *jobstore.Job) error {
			searching := false
			for _, g := range j.Groups {
				searching = searching || g.Status == jobstore.GroupSearching
			}
			if !j.Step.IsWorking() && !searching {
				return errNoop
			}
			rollback(j, "interrupted by restart")
			return nil
		})
		if errors.Is(err, errNoop) {
			continue
		}
		if err != nil {
			return recovered, err
		}
		recovered = append(recovered, job.ID)
		m.logger.Info("job recovered",
			logging.JobID(job.ID),
			logging.String(logging.FieldStep, string(job.Step)),
		)
		if job.Step == jobstore.StepSeriesApproval {
			if err := m.searchNext(ctx, job.ID); err != nil {
				m.logger.Warn("restart search failed", logging.JobID(job.ID), logging.Error(err))
			}
		}
	}
	return recovered, nil
}
