package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"shortbox/internal/apply"
	"shortbox/internal/jobstore"
	"shortbox/internal/logging"
	"shortbox/internal/services"
)

// ApplyStatus is what clients poll while apply runs.
type ApplyStatus struct {
	Step     jobstore.Step           `json:"step"`
	Progress *jobstore.ApplyProgress `json:"progress,omitempty"`
	Result   *jobstore.ApplyResult   `json:"result,omitempty"`
}

// Apply writes every pending change set in the background.
func (m *Manager) Apply(ctx context.Context, id string) (*jobstore.Job, error) {
	running := m.Running(id)
	job, err := m.store.Mutate(ctx, id, func(j *jobstore.Job) error {
		if err := requireStep("apply", j, jobstore.StepFileReview); err != nil {
			return err
		}
		if running {
			return services.Wrap(services.ErrInvalidState, "workflow", "apply", "a background step is running", nil)
		}
		pending := apply.Pending(j.ChangeSets)
		j.Step = jobstore.StepApplying
		j.Result = nil
		j.Progress = &jobstore.ApplyProgress{Total: len(pending)}
		j.Log(jobstore.ActivityInfo, fmt.Sprintf("applying metadata to %d files", len(pending)))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return m.begin(ctx, job, func(runCtx context.Context, logger *slog.Logger) error {
		return m.runApply(runCtx, logger, id)
	})
}

// Progress reports apply progress and, once finished, its result.
func (m *Manager) Progress(ctx context.Context, id string) (ApplyStatus, error) {
	job, err := m.store.Get(ctx, id)
	if err != nil {
		return ApplyStatus{}, err
	}
	return ApplyStatus{Step: job.Step, Progress: job.Progress, Result: job.Result}, nil
}

func (m *Manager) runApply(ctx context.Context, logger *slog.Logger, id string) error {
	job, err := m.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return errJobGone
		}
		return err
	}
	executor := apply.New(m.files, apply.Options{
		CreateSeriesMarker: m.cfg.Apply.CreateSeriesMarker,
		Logger:             logger,
	})
	req := apply.Request{ChangeSets: job.ChangeSets, Markers: markersFor(job)}
	result := executor.Run(ctx, req, func(p jobstore.ApplyProgress) {
		_, err := m.store.Mutate(persistCtx(ctx), id, func(j *jobstore.Job) error {
			if j.Step != jobstore.StepApplying {
				return errNoop
			}
			progress := p
			j.Progress = &progress
			return nil
		})
		if err != nil && !errors.Is(err, errNoop) {
			logger.Warn("apply progress not saved", logging.Error(err))
		}
	})
	cancelled := ctx.Err() != nil

	job, err = m.store.Mutate(persistCtx(ctx), id, func(j *jobstore.Job) error {
		if j.Step != jobstore.StepApplying {
			return errNoop
		}
		recordResult(j, result)
		if cancelled {
			j.Log(jobstore.ActivityWarning, "apply cancelled; files not reached were left unchanged")
		}
		j.Cancelled = false
		j.Step = jobstore.StepComplete
		j.Log(jobstore.ActivityInfo, fmt.Sprintf("apply finished: %d written, %d failed", result.Successful, result.Failed))
		return nil
	})
	switch {
	case errors.Is(err, errNoop):
		return nil
	case errors.Is(err, services.ErrNotFound):
		return errJobGone
	case err != nil:
		return err
	}
	m.rememberSelections(persistCtx(ctx), logger, job)
	return nil
}

// recordResult stores the apply result on the job and follows any format
// conversion so the job points at the files that now exist.
func recordResult(j *jobstore.Job, result jobstore.ApplyResult) {
	j.Result = &result
	j.Progress = &jobstore.ApplyProgress{Phase: jobstore.PhaseDone, Current: len(result.Files), Total: len(result.Files)}
	for _, fr := range result.Files {
		if !fr.Success {
			j.LogFile(jobstore.ActivityError, fr.FileID, fmt.Sprintf("apply failed: %s", fr.Error))
			continue
		}
		for i := range j.ChangeSets {
			if j.ChangeSets[i].FileID == fr.FileID && j.ChangeSets[i].Path != fr.Path {
				j.ChangeSets[i].Path = fr.Path
				j.LogFile(jobstore.ActivityInfo, fr.FileID, "converted to "+filepath.Base(fr.Path))
			}
		}
		for i := range j.Files {
			if j.Files[i].ID == fr.FileID {
				j.Files[i].Path = fr.Path
			}
		}
		for gi := range j.Groups {
			for mi := range j.Groups[gi].Files {
				if j.Groups[gi].Files[mi].ID == fr.FileID {
					j.Groups[gi].Files[mi].Path = fr.Path
				}
			}
		}
	}
	for _, w := range result.Warnings {
		j.Log(jobstore.ActivityWarning, w)
	}
}

// markersFor lists a series marker for every folder holding exactly one
// matched group. Folders shared between groups get none.
func markersFor(j *jobstore.Job) []apply.Marker {
	if j.Options.MixedSeries {
		return nil
	}
	owners := make(map[string]int)
	for _, g := range j.Groups {
		seen := make(map[string]bool)
		for _, f := range g.Files {
			dir := filepath.Dir(f.Path)
			if !seen[dir] {
				seen[dir] = true
				owners[dir]++
			}
		}
	}
	var out []apply.Marker
	for _, g := range j.Groups {
		series := g.Descriptive()
		if g.Status != jobstore.GroupMatched || series == nil {
			continue
		}
		seen := make(map[string]bool)
		for _, f := range g.Files {
			dir := filepath.Dir(f.Path)
			if seen[dir] || owners[dir] != 1 {
				continue
			}
			seen[dir] = true
			out = append(out, apply.Marker{Folder: dir, Series: *series})
		}
	}
	return out
}

// rememberSelections records the series of every group that had at least
// one file written, so later jobs over the same folders are pre-approved.
func (m *Manager) rememberSelections(ctx context.Context, logger *slog.Logger, j *jobstore.Job) {
	if j.Result == nil {
		return
	}
	written := make(map[string]bool)
	for _, fr := range j.Result.Files {
		if fr.Success {
			written[fr.FileID] = true
		}
	}
	for _, g := range j.Groups {
		if g.Status != jobstore.GroupMatched || g.Selected == nil {
			continue
		}
		hit := false
		for _, f := range g.Files {
			hit = hit || written[f.ID]
		}
		if !hit {
			continue
		}
		err := m.store.SaveSelection(ctx, jobstore.Selection{
			Folder:      g.Folder,
			QueryKey:    g.Key,
			Series:      *g.Selected,
			IssueSeries: g.IssueSeries,
			JobID:       j.ID,
		})
		if err != nil {
			logger.Warn("selection not remembered", logging.String("folder", g.Folder), logging.Error(err))
		}
	}
}
