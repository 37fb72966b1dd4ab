package changeset

import (
	"slices"

	"shortbox/internal/comicinfo"
	"shortbox/internal/services"
	"shortbox/internal/sources"
)

// FileStatus is the review state of one file.
type FileStatus string

const (
	StatusMatched   FileStatus = "matched"
	StatusUnmatched FileStatus = "unmatched"
	StatusManual    FileStatus = "manual"
	StatusRejected  FileStatus = "rejected"
)

// CleanupMode controls whether fields without a proposed value are cleared.
type CleanupMode string

const (
	CleanupMerge   CleanupMode = "merge"
	CleanupReplace CleanupMode = "replace"
)

// ParseCleanupMode maps a configured mode to a CleanupMode, defaulting to
// merge.
func ParseCleanupMode(value string) CleanupMode {
	if CleanupMode(value) == CleanupReplace {
		return CleanupReplace
	}
	return CleanupMerge
}

// FieldChange is one proposed difference between a file and its match.
type FieldChange struct {
	Field    comicinfo.Field `json:"field"`
	Current  string          `json:"current"`
	Proposed string          `json:"proposed"`
	Approved bool            `json:"approved"`
	Edit     Edit            `json:"edit"`
}

// Actionable reports whether the proposal differs from the current value.
func (c FieldChange) Actionable() bool {
	return !comicinfo.Equal(c.Current, c.Proposed)
}

// Final is the value apply writes: the edit when present, the proposal when
// approved, otherwise the current value.
func (c FieldChange) Final() string {
	switch {
	case c.Edit.IsEdited():
		return c.Edit.Resolve()
	case c.Approved && c.Actionable():
		return c.Proposed
	default:
		return c.Current
	}
}

// Pending reports whether apply would change the field.
func (c FieldChange) Pending() bool {
	return !comicinfo.Equal(c.Final(), c.Current)
}

// ChangeSet is the reviewable diff for one file.
type ChangeSet struct {
	FileID       string             `json:"file_id"`
	Path         string             `json:"path"`
	Filename     string             `json:"filename"`
	GroupIndex   int                `json:"group_index"`
	Status       FileStatus         `json:"status"`
	PriorStatus  FileStatus         `json:"prior_status,omitempty"`
	Confidence   float64            `json:"confidence"`
	IssueNumber  string             `json:"issue_number,omitempty"`
	MatchedIssue *sources.Issue     `json:"matched_issue,omitempty"`
	Current      comicinfo.Metadata `json:"current"`
	Fields       []FieldChange      `json:"fields"`
}

// Input carries what Compute needs for one file.
type Input struct {
	FileID      string
	Path        string
	Filename    string
	GroupIndex  int
	IssueNumber string
	Current     comicinfo.Metadata
	Proposed    comicinfo.Metadata
	Issue       *sources.Issue
	Confidence  float64
	Mode        CleanupMode
}

// Compute builds a fresh change set. Equal inputs produce equal change sets.
func Compute(in Input) ChangeSet {
	status := StatusUnmatched
	if in.Issue != nil {
		status = StatusMatched
	}
	return ChangeSet{
		FileID:       in.FileID,
		Path:         in.Path,
		Filename:     in.Filename,
		GroupIndex:   in.GroupIndex,
		Status:       status,
		Confidence:   in.Confidence,
		IssueNumber:  in.IssueNumber,
		MatchedIssue: in.Issue,
		Current:      in.Current,
		Fields:       Diff(in.Current, in.Proposed, in.Mode),
	}
}

// Diff lists the fields whose normalized values differ, in schema order.
// Empty proposals only appear in replace mode, and never for PageCount,
// which describes the archive rather than the issue.
func Diff(current, proposed comicinfo.Metadata, mode CleanupMode) []FieldChange {
	out := make([]FieldChange, 0)
	for _, f := range comicinfo.AllFields() {
		cur := comicinfo.Normalize(current.Get(f))
		prop := comicinfo.Normalize(proposed.Get(f))
		if cur == prop {
			continue
		}
		if prop == "" && (mode != CleanupReplace || f == comicinfo.FieldPageCount) {
			continue
		}
		out = append(out, FieldChange{Field: f, Current: cur, Proposed: prop, Edit: Unedited()})
	}
	return out
}

// CarryDecisions copies user edits and field approvals from prev onto c. An
// approval survives only while the field still proposes the same value; the
// fields whose approval was dropped are returned.
func (c *ChangeSet) CarryDecisions(prev ChangeSet) []comicinfo.Field {
	var dropped []comicinfo.Field
	for _, old := range prev.Fields {
		if old.Edit.IsEdited() {
			_ = c.EditField(old.Field, old.Edit)
		}
		if !old.Approved || !old.Actionable() {
			continue
		}
		idx := c.find(old.Field)
		if idx >= 0 && c.Fields[idx].Actionable() && comicinfo.Equal(c.Fields[idx].Proposed, old.Proposed) {
			c.Fields[idx].Approved = true
			continue
		}
		dropped = append(dropped, old.Field)
	}
	return dropped
}

func (c *ChangeSet) find(f comicinfo.Field) int {
	for i := range c.Fields {
		if c.Fields[i].Field == f {
			return i
		}
	}
	return -1
}

func checkField(f comicinfo.Field) error {
	if !f.Valid() {
		return services.Wrap(services.ErrValidation, "changeset", "field", "unknown field "+string(f), nil)
	}
	return nil
}

func (c *ChangeSet) checkOpen(operation string) error {
	if c.Status == StatusRejected {
		return services.Wrap(services.ErrInvalidState, "changeset", operation, "file "+c.FileID+" is rejected", nil)
	}
	return nil
}

// Approve sets the approval flag of one field. Approving leaves the
// proposal untouched.
func (c *ChangeSet) Approve(f comicinfo.Field, approved bool) error {
	if err := checkField(f); err != nil {
		return err
	}
	if err := c.checkOpen("approve"); err != nil {
		return err
	}
	idx := c.find(f)
	if idx < 0 {
		return services.Wrap(services.ErrValidation, "changeset", "approve", "no change proposed for "+string(f), nil)
	}
	c.Fields[idx].Approved = approved
	return nil
}

// EditField records a user override. An Unedited edit reverts to the
// proposal. Editing a field with no proposal adds an entry for it, and
// editing an unmatched file marks it manual.
func (c *ChangeSet) EditField(f comicinfo.Field, edit Edit) error {
	if err := checkField(f); err != nil {
		return err
	}
	if err := c.checkOpen("edit"); err != nil {
		return err
	}
	if edit.Kind == "" {
		edit = Unedited()
	}
	idx := c.find(f)
	if idx < 0 {
		if !edit.IsEdited() {
			return nil
		}
		current := comicinfo.Normalize(c.Current.Get(f))
		c.Fields = append(c.Fields, FieldChange{Field: f, Current: current, Proposed: current})
		c.sortFields()
		idx = c.find(f)
	}
	c.Fields[idx].Edit = edit
	if !edit.IsEdited() && !c.Fields[idx].Actionable() {
		c.Fields = slices.Delete(c.Fields, idx, idx+1)
	}
	if edit.IsEdited() && c.Status == StatusUnmatched {
		c.Status = StatusManual
	}
	return nil
}

// FieldUpdate is one entry of a batched field update. Nil members are left
// unchanged.
type FieldUpdate struct {
	Field    comicinfo.Field `json:"field"`
	Approved *bool           `json:"approved,omitempty"`
	Edit     *Edit           `json:"edit,omitempty"`
}

// Update applies every update or none of them.
func (c *ChangeSet) Update(updates []FieldUpdate) error {
	next := c.Clone()
	for _, u := range updates {
		if u.Edit != nil {
			if err := next.EditField(u.Field, *u.Edit); err != nil {
				return err
			}
		}
		if u.Approved != nil {
			if err := next.Approve(u.Field, *u.Approved); err != nil {
				return err
			}
		}
	}
	*c = next
	return nil
}

// AcceptAll approves every actionable field and returns how many changed.
func (c *ChangeSet) AcceptAll() (int, error) {
	if err := c.checkOpen("accept"); err != nil {
		return 0, err
	}
	return c.approveActionable(), nil
}

func (c *ChangeSet) approveActionable() int {
	n := 0
	for i := range c.Fields {
		if c.Fields[i].Actionable() && !c.Fields[i].Approved {
			c.Fields[i].Approved = true
			n++
		}
	}
	return n
}

// Reject hides the file from apply. Field decisions are kept.
func (c *ChangeSet) Reject() {
	if c.Status == StatusRejected {
		return
	}
	c.PriorStatus = c.Status
	c.Status = StatusRejected
}

// Restore undoes Reject. When no field was approved before the rejection,
// every actionable field is approved so the file has something to apply.
func (c *ChangeSet) Restore() error {
	if c.Status != StatusRejected {
		return services.Wrap(services.ErrInvalidState, "changeset", "restore", "file "+c.FileID+" is not rejected", nil)
	}
	c.Status = c.PriorStatus
	if c.Status == "" {
		c.Status = StatusUnmatched
		if c.MatchedIssue != nil {
			c.Status = StatusMatched
		}
	}
	c.PriorStatus = ""
	if !c.hasApproval() {
		c.approveActionable()
	}
	return nil
}

func (c *ChangeSet) hasApproval() bool {
	for _, fc := range c.Fields {
		if (fc.Approved && fc.Actionable()) || fc.Edit.IsEdited() {
			return true
		}
	}
	return false
}

// Pending reports whether apply has anything to write for the file.
func (c ChangeSet) Pending() bool {
	if c.Status == StatusRejected {
		return false
	}
	for _, fc := range c.Fields {
		if fc.Pending() {
			return true
		}
	}
	return false
}

// PendingFields lists the fields apply would change.
func (c ChangeSet) PendingFields() []comicinfo.Field {
	if c.Status == StatusRejected {
		return nil
	}
	var out []comicinfo.Field
	for _, fc := range c.Fields {
		if fc.Pending() {
			out = append(out, fc.Field)
		}
	}
	return out
}

// FinalValues returns the file's metadata with every pending change applied.
func (c ChangeSet) FinalValues() comicinfo.Metadata {
	out := c.Current
	if c.Status == StatusRejected {
		return out
	}
	for _, fc := range c.Fields {
		if fc.Pending() {
			out.Set(fc.Field, fc.Final())
		}
	}
	return out
}

// Counts summarizes a change set for list views.
type Counts struct {
	Changes  int `json:"changes"`
	Approved int `json:"approved"`
	Edited   int `json:"edited"`
}

// Counts tallies the change set's fields.
func (c ChangeSet) Counts() Counts {
	var out Counts
	for _, fc := range c.Fields {
		if fc.Actionable() {
			out.Changes++
			if fc.Approved {
				out.Approved++
			}
		}
		if fc.Edit.IsEdited() {
			out.Edited++
		}
	}
	return out
}

// Clone returns a deep copy.
func (c ChangeSet) Clone() ChangeSet {
	out := c
	out.Fields = slices.Clone(c.Fields)
	if c.MatchedIssue != nil {
		issue := *c.MatchedIssue
		out.MatchedIssue = &issue
	}
	return out
}

func (c *ChangeSet) sortFields() {
	order := make(map[comicinfo.Field]int)
	for i, f := range comicinfo.AllFields() {
		order[f] = i
	}
	slices.SortStableFunc(c.Fields, func(a, b FieldChange) int {
		return order[a.Field] - order[b.Field]
	})
}
