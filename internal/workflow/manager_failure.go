package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"shortbox/internal/jobstore"
	"shortbox/internal/logging"
	"shortbox/internal/notifications"
	"shortbox/internal/services"
)

var (
	// errJobGone means the job was deleted while a background step ran.
	errJobGone = errors.New("job no longer exists")
	// errCancelled means the job was cancelled before results were written.
	errCancelled = errors.New("job cancelled")
	// errNoop aborts a Mutate without writing.
	errNoop = errors.New("nothing to change")
)

func stateError(operation string, job *jobstore.Job, want ...jobstore.Step) error {
	names := make([]string, 0, len(want))
	for _, s := range want {
		names = append(names, string(s))
	}
	return services.Wrap(services.ErrInvalidState, "workflow", operation,
		fmt.Sprintf("job %s is in step %s, expected %s", job.ID, job.Step, strings.Join(names, " or ")), nil)
}

func requireStep(operation string, job *jobstore.Job, want ...jobstore.Step) error {
	if slices.Contains(want, job.Step) {
		return nil
	}
	return stateError(operation, job, want...)
}

// mutateBackground writes the results of a background step. fn runs only if
// the job still sits in step and was not cancelled in the meantime.
func (m *Manager) mutateBackground(ctx context.Context, id string, step jobstore.Step, fn func(*jobstore.Job) error) (*jobstore.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, errCancelled
	}
	job, err := m.store.Mutate(persistCtx(ctx), id, func(j *jobstore.Job) error {
		if j.Cancelled || j.Step != step {
			return errCancelled
		}
		return fn(j)
	})
	if errors.Is(err, services.ErrNotFound) {
		return nil, errJobGone
	}
	return job, err
}

// fail moves the job to the error step with the message in its activity log.
func (m *Manager) fail(ctx context.Context, logger *slog.Logger, id string, cause error) {
	message := strings.TrimSpace(cause.Error())
	if message == "" {
		message = "background step failed without error detail"
	}
	logger.Error("background step failed",
		logging.String("error_kind", services.Kind(cause)),
		logging.Alert("step_failure"),
		logging.Error(cause),
	)
	var failedAt jobstore.Step
	_, err := m.store.Mutate(persistCtx(ctx), id, func(j *jobstore.Job) error {
		if j.Step.IsTerminal() {
			return errNoop
		}
		failedAt = j.Step
		j.Log(jobstore.ActivityError, message)
		j.ResumeStep = j.Step
		j.Step = jobstore.StepError
		j.Error = message
		j.Progress = nil
		return nil
	})
	switch {
	case err == nil:
		m.publish(ctx, logger, notifications.EventJobFailed, notifications.Payload{
			"jobID": id,
			"step":  string(failedAt),
			"error": message,
		})
	case !errors.Is(err, errNoop) && !errors.Is(err, services.ErrNotFound):
		logger.Error("failed to persist step failure", logging.Error(err))
	}
}

// afterCancel rolls a job back once its background step has stopped. A run
// stopped by shutdown rather than a cancel request is left for Recover.
func (m *Manager) afterCancel(ctx context.Context, logger *slog.Logger, id string) {
	_, err := m.store.Mutate(persistCtx(ctx), id, func(j *jobstore.Job) error {
		if !j.Cancelled {
			return errNoop
		}
		rollback(j, "cancelled")
		return nil
	})
	switch {
	case err == nil:
		logger.Info("background step cancelled")
	case errors.Is(err, errNoop), errors.Is(err, services.ErrNotFound):
	default:
		logger.Error("failed to persist cancellation", logging.Error(err))
	}
}

// rollback returns the job to its last stable step.
func rollback(j *jobstore.Job, reason string) {
	from := j.Step
	switch j.Step {
	case jobstore.StepInitializing:
		j.Step = jobstore.StepOptions
		j.Groups = nil
		j.ChangeSets = nil
		j.CurrentGroup = 0
	case jobstore.StepFetchingIssues:
		j.Step = jobstore.StepSeriesApproval
		j.ApplyToRest = false
		if g := j.Current(); g != nil && g.Status != jobstore.GroupMatched {
			clearSelection(g)
		}
	case jobstore.StepApplying:
		j.Step = jobstore.StepFileReview
		j.Progress = nil
		j.Log(jobstore.ActivityWarning, "apply was interrupted; some files may already carry new metadata")
	}
	for i := range j.Groups {
		if j.Groups[i].Status == jobstore.GroupSearching {
			j.Groups[i].Status = jobstore.GroupPending
		}
	}
	j.Cancelled = false
	if from != j.Step {
		j.Log(jobstore.ActivityInfo, fmt.Sprintf("%s during %s; returned to %s", reason, from, j.Step))
	} else {
		j.Log(jobstore.ActivityInfo, reason)
	}
}

func clearSelection(g *jobstore.SeriesGroup) {
	g.Status = jobstore.GroupPending
	g.Selected = nil
	g.IssueSeries = nil
	g.CrossSource = nil
	g.ApprovedSecondaries = nil
	g.Merged = nil
	g.Issues = nil
	g.PreApprovedFromRun = false
	g.PreApprovedFromMarker = false
}
