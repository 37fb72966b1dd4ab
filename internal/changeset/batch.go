package changeset

import (
	"strings"

	"shortbox/internal/services"
)

// DefaultHighConfidence is the accept-high threshold used when none is set.
const DefaultHighConfidence = 0.8

// Filter narrows a batch operation. The zero Filter matches every file.
type Filter struct {
	GroupIndex *int       `json:"group_index,omitempty"`
	Status     FileStatus `json:"status,omitempty"`
	Query      string     `json:"query,omitempty"`
}

// Match reports whether c passes the filter.
func (f Filter) Match(c ChangeSet) bool {
	if f.GroupIndex != nil && c.GroupIndex != *f.GroupIndex {
		return false
	}
	if f.Status != "" && c.Status != f.Status {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" {
		if !strings.Contains(strings.ToLower(c.Filename), q) {
			return false
		}
	}
	return true
}

// BatchResult reports a batch operation. Affected counts files whose change
// set actually changed.
type BatchResult struct {
	Matched  int               `json:"matched"`
	Affected int               `json:"affected"`
	Failed   map[string]string `json:"failed,omitempty"`
}

// Batch runs op on every matching change set. Each file is updated on a copy
// and committed only if op succeeds, so one failure leaves the others'
// results in place.
func Batch(sets []ChangeSet, filter Filter, op func(*ChangeSet) (bool, error)) BatchResult {
	var res BatchResult
	for i := range sets {
		if !filter.Match(sets[i]) {
			continue
		}
		res.Matched++
		next := sets[i].Clone()
		changed, err := op(&next)
		if err != nil {
			if res.Failed == nil {
				res.Failed = make(map[string]string)
			}
			res.Failed[sets[i].FileID] = err.Error()
			continue
		}
		sets[i] = next
		if changed {
			res.Affected++
		}
	}
	return res
}

// AcceptHighConfidence approves every actionable field on non-rejected files
// whose confidence is at least threshold. Other files are untouched.
func AcceptHighConfidence(sets []ChangeSet, filter Filter, threshold float64) BatchResult {
	if threshold <= 0 {
		threshold = DefaultHighConfidence
	}
	return Batch(sets, filter, func(c *ChangeSet) (bool, error) {
		if c.Status == StatusRejected || c.Confidence < threshold {
			return false, nil
		}
		n, err := c.AcceptAll()
		return n > 0, err
	})
}

// AcceptAll approves every actionable field on every non-rejected file.
func AcceptAll(sets []ChangeSet, filter Filter) BatchResult {
	return Batch(sets, filter, func(c *ChangeSet) (bool, error) {
		if c.Status == StatusRejected {
			return false, nil
		}
		n, err := c.AcceptAll()
		return n > 0, err
	})
}

// RejectAll rejects every matching file.
func RejectAll(sets []ChangeSet, filter Filter) BatchResult {
	return Batch(sets, filter, func(c *ChangeSet) (bool, error) {
		if c.Status == StatusRejected {
			return false, nil
		}
		c.Reject()
		return true, nil
	})
}

// Find returns the index of the change set for fileID.
func Find(sets []ChangeSet, fileID string) (int, error) {
	for i := range sets {
		if sets[i].FileID == fileID {
			return i, nil
		}
	}
	return -1, services.Wrap(services.ErrNotFound, "changeset", "find", "no file "+fileID, nil)
}
