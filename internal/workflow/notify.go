package workflow

import (
	"context"
	"log/slog"

	"shortbox/internal/jobstore"
	"shortbox/internal/logging"
	"shortbox/internal/notifications"
)

// announce publishes the milestone a finished background step reached.
func (m *Manager) announce(ctx context.Context, logger *slog.Logger, id string, step jobstore.Step) {
	job, err := m.store.Get(persistCtx(ctx), id)
	if err != nil {
		return
	}
	switch {
	case job.Step == jobstore.StepFileReview:
		m.publish(ctx, logger, notifications.EventReviewReady, notifications.Payload{
			"jobID":  id,
			"files":  len(job.ChangeSets),
			"groups": len(job.Groups),
		})
	case step == jobstore.StepApplying && job.Step == jobstore.StepComplete && job.Result != nil:
		m.publish(ctx, logger, notifications.EventApplyCompleted, notifications.Payload{
			"jobID":     id,
			"succeeded": job.Result.Successful,
			"failed":    job.Result.Failed,
		})
	}
}

func (m *Manager) publish(ctx context.Context, logger *slog.Logger, event notifications.Event, payload notifications.Payload) {
	if err := m.notifier.Publish(persistCtx(ctx), event, payload); err != nil {
		logger.Warn("notification failed", logging.String("event", string(event)), logging.Error(err))
	}
}
