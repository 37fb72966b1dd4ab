package workflow

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"shortbox/internal/changeset"
	"shortbox/internal/grouping"
	"shortbox/internal/jobstore"
	"shortbox/internal/services"
)

// BatchKind names a bulk review action.
type BatchKind string

const (
	BatchAcceptHigh BatchKind = "accept-high"
	BatchAcceptAll  BatchKind = "accept-all"
	BatchRejectAll  BatchKind = "reject-all"
)

// Files lists the job's change sets that pass filter.
func (m *Manager) Files(ctx context.Context, id string, filter changeset.Filter) ([]changeset.ChangeSet, error) {
	job, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	out := make([]changeset.ChangeSet, 0, len(job.ChangeSets))
	for _, cs := range job.ChangeSets {
		if filter.Match(cs) {
			out = append(out, cs)
		}
	}
	return out, nil
}

// updateFile runs fn on a copy of one file's change set and stores it only
// if fn succeeds.
func (m *Manager) updateFile(ctx context.Context, id, operation, fileID string, fn func(j *jobstore.Job, cs *changeset.ChangeSet) error) (*changeset.ChangeSet, error) {
	var out changeset.ChangeSet
	_, err := m.store.Mutate(ctx, id, func(j *jobstore.Job) error {
		if err := requireStep(operation, j, jobstore.StepFileReview); err != nil {
			return err
		}
		i, err := changeset.Find(j.ChangeSets, fileID)
		if err != nil {
			return err
		}
		next := j.ChangeSets[i].Clone()
		if err := fn(j, &next); err != nil {
			return err
		}
		j.ChangeSets[i] = next
		slices.SortStableFunc(j.ChangeSets, func(a, b changeset.ChangeSet) int { return a.GroupIndex - b.GroupIndex })
		out = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateFields applies per-field approvals and edits atomically.
func (m *Manager) UpdateFields(ctx context.Context, id, fileID string, updates []changeset.FieldUpdate) (*changeset.ChangeSet, error) {
	if len(updates) == 0 {
		return nil, services.Wrap(services.ErrValidation, "workflow", "update fields", "no field updates", nil)
	}
	return m.updateFile(ctx, id, "update fields", fileID, func(_ *jobstore.Job, cs *changeset.ChangeSet) error {
		return cs.Update(updates)
	})
}

// Accept approves every actionable field of one file.
func (m *Manager) Accept(ctx context.Context, id, fileID string) (*changeset.ChangeSet, error) {
	return m.updateFile(ctx, id, "accept", fileID, func(_ *jobstore.Job, cs *changeset.ChangeSet) error {
		_, err := cs.AcceptAll()
		return err
	})
}

// Reject excludes one file from apply without discarding its review state.
func (m *Manager) Reject(ctx context.Context, id, fileID string) (*changeset.ChangeSet, error) {
	return m.updateFile(ctx, id, "reject", fileID, func(j *jobstore.Job, cs *changeset.ChangeSet) error {
		if cs.Status == changeset.StatusRejected {
			return nil
		}
		cs.Reject()
		j.LogFile(jobstore.ActivityInfo, cs.FileID, cs.Filename+": rejected; file will not be written")
		return nil
	})
}

// Restore undoes Reject.
func (m *Manager) Restore(ctx context.Context, id, fileID string) (*changeset.ChangeSet, error) {
	return m.updateFile(ctx, id, "restore", fileID, func(j *jobstore.Job, cs *changeset.ChangeSet) error {
		if err := cs.Restore(); err != nil {
			return err
		}
		j.LogFile(jobstore.ActivityInfo, cs.FileID, cs.Filename+": restored")
		return nil
	})
}

// Move reassigns a file to another matched group and recomputes its change
// set against that group's series and issues. Edits and rejection carry
// over.
func (m *Manager) Move(ctx context.Context, id, fileID string, target int) (*changeset.ChangeSet, error) {
	return m.updateFile(ctx, id, "move", fileID, func(j *jobstore.Job, cs *changeset.ChangeSet) error {
		if target < 0 || target >= len(j.Groups) {
			return services.Wrap(services.ErrNotFound, "workflow", "move", fmt.Sprintf("no group %d", target), nil)
		}
		if cs.GroupIndex == target {
			return nil
		}
		to := &j.Groups[target]
		if to.Status != jobstore.GroupMatched || to.Selected == nil {
			return services.Wrap(services.ErrInvalidState, "workflow", "move", to.Name+" has no approved series", nil)
		}
		from := &j.Groups[cs.GroupIndex]
		idx := slices.IndexFunc(from.Files, func(f grouping.Member) bool { return f.ID == fileID })
		if idx < 0 {
			return services.Wrap(services.ErrNotFound, "workflow", "move", "file "+fileID+" is not in "+from.Name, nil)
		}
		member := from.Files[idx]

		single := *to
		single.Files = []grouping.Member{member}
		var log notes
		rebuilt := m.buildChangeSets(j.Options, &single, target, map[string]changeset.ChangeSet{fileID: *cs}, &log)
		if len(rebuilt) != 1 {
			return errors.New("move produced no change set")
		}

		from.Files = slices.Delete(from.Files, idx, idx+1)
		to.Files = append(to.Files, member)
		j.LogFile(jobstore.ActivityInfo, fileID, fmt.Sprintf("%s: moved from %s to %s", member.Filename, from.Name, to.Name))
		log.apply(j)
		*cs = rebuilt[0]
		return nil
	})
}

// Batch runs a bulk review action over the files passing filter. Files the
// action fails on keep their previous state and are listed in the result.
func (m *Manager) Batch(ctx context.Context, id string, kind BatchKind, filter changeset.Filter) (changeset.BatchResult, error) {
	var res changeset.BatchResult
	_, err := m.store.Mutate(ctx, id, func(j *jobstore.Job) error {
		if err := requireStep(string(kind), j, jobstore.StepFileReview); err != nil {
			return err
		}
		switch kind {
		case BatchAcceptHigh:
			res = changeset.AcceptHighConfidence(j.ChangeSets, filter, m.cfg.Matching.HighConfidenceThreshold)
		case BatchAcceptAll:
			res = changeset.AcceptAll(j.ChangeSets, filter)
		case BatchRejectAll:
			res = changeset.RejectAll(j.ChangeSets, filter)
		default:
			return services.Wrap(services.ErrValidation, "workflow", "batch", "unknown batch action "+string(kind), nil)
		}
		for fileID, reason := range res.Failed {
			j.LogFile(jobstore.ActivityWarning, fileID, fmt.Sprintf("%s skipped: %s", kind, reason))
		}
		if res.Affected == 0 && len(res.Failed) == 0 {
			return errNoop
		}
		j.Log(jobstore.ActivityInfo, fmt.Sprintf("%s: %d of %d files changed", kind, res.Affected, res.Matched))
		return nil
	})
	if err != nil && !errors.Is(err, errNoop) {
		return changeset.BatchResult{}, err
	}
	return res, nil
}
