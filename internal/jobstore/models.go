package jobstore

import (
	"time"

	"shortbox/internal/changeset"
	"shortbox/internal/grouping"
	"shortbox/internal/matching"
	"shortbox/internal/merge"
	"shortbox/internal/sources"
)

// Step is the lifecycle position of a job.
type Step string

const (
	StepOptions        Step = "options"
	StepInitializing   Step = "initializing"
	StepSeriesApproval Step = "series_approval"
	StepFetchingIssues Step = "fetching_issues"
	StepFileReview     Step = "file_review"
	StepApplying       Step = "applying"
	StepComplete       Step = "complete"
	StepError          Step = "error"
	StepAbandoned      Step = "abandoned"
)

var allSteps = []Step{
	StepOptions,
	StepInitializing,
	StepSeriesApproval,
	StepFetchingIssues,
	StepFileReview,
	StepApplying,
	StepComplete,
	StepError,
	StepAbandoned,
}

// ParseStep converts a string to a Step.
func ParseStep(value string) (Step, bool) {
	for _, step := range allSteps {
		if string(step) == value {
			return step, true
		}
	}
	return "", false
}

// IsTerminal reports whether no further transitions are possible.
func (s Step) IsTerminal() bool {
	return s == StepComplete || s == StepError || s == StepAbandoned
}

// IsWorking reports whether a background step is running.
func (s Step) IsWorking() bool {
	return s == StepInitializing || s == StepFetchingIssues || s == StepApplying
}

// GroupStatus tracks one series group through approval.
type GroupStatus string

const (
	GroupPending   GroupStatus = "pending"
	GroupSearching GroupStatus = "searching"
	GroupMatched   GroupStatus = "matched"
	GroupSkipped   GroupStatus = "skipped"
)

// Options are the batch settings confirmed before a job starts.
type Options struct {
	CleanupMode             string   `json:"cleanup_mode"`
	MixedSeries             bool     `json:"mixed_series"`
	PrimarySource           string   `json:"primary_source,omitempty"`
	SearchLimit             int      `json:"search_limit"`
	CrossSource             bool     `json:"cross_source"`
	AutoApplyHighConfidence bool     `json:"auto_apply_high_confidence"`
	ExcludedFileIDs         []string `json:"excluded_file_ids,omitempty"`
}

// Excluded reports whether fileID was left out of the batch.
func (o Options) Excluded(fileID string) bool {
	for _, id := range o.ExcludedFileIDs {
		if id == fileID {
			return true
		}
	}
	return false
}

// SeriesGroup is one cluster of files under approval.
type SeriesGroup struct {
	Key         string            `json:"key"`
	Name        string            `json:"name"`
	Folder      string            `json:"folder"`
	Query       grouping.Query    `json:"query"`
	Files       []grouping.Member `json:"files"`
	ParseFailed bool              `json:"parse_failed,omitempty"`
	Status      GroupStatus       `json:"status"`

	SearchQuery  string                `json:"search_query,omitempty"`
	SearchYear   int                   `json:"search_year,omitempty"`
	SearchSource string                `json:"search_source,omitempty"`
	SearchError  string                `json:"search_error,omitempty"`
	Results      []sources.SeriesMatch `json:"results,omitempty"`
	Pagination   *sources.Pagination   `json:"pagination,omitempty"`

	Selected            *sources.SeriesMatch `json:"selected,omitempty"`
	IssueSeries         *sources.SeriesMatch `json:"issue_series,omitempty"`
	CrossSource         *matching.Result     `json:"cross_source,omitempty"`
	ApprovedSecondaries []string             `json:"approved_secondaries,omitempty"`
	Merged              *merge.Metadata      `json:"merged,omitempty"`
	Issues              []sources.Issue      `json:"issues,omitempty"`

	PreApprovedFromRun    bool `json:"pre_approved_from_run,omitempty"`
	PreApprovedFromMarker bool `json:"pre_approved_from_marker,omitempty"`
}

// FileCount returns the number of member files.
func (g SeriesGroup) FileCount() int { return len(g.Files) }

// Descriptive returns the series used for descriptive metadata: the merged
// record when cross-source matching contributed, otherwise the selection.
func (g SeriesGroup) Descriptive() *sources.SeriesMatch {
	if g.Merged != nil {
		m := g.Merged.SeriesMatch()
		return &m
	}
	return g.Selected
}

// IssueSource returns the series whose issue list drives issue matching.
func (g SeriesGroup) IssueSource() *sources.SeriesMatch {
	if g.IssueSeries != nil {
		return g.IssueSeries
	}
	return g.Selected
}

// ActivityKind types an activity log entry.
type ActivityKind string

const (
	ActivityInfo    ActivityKind = "info"
	ActivityWarning ActivityKind = "warning"
	ActivityError   ActivityKind = "error"
)

// Activity is one timestamped log entry shown with the job.
type Activity struct {
	At      time.Time    `json:"at"`
	Step    Step         `json:"step"`
	Kind    ActivityKind `json:"kind"`
	Message string       `json:"message"`
	FileID  string       `json:"file_id,omitempty"`
}

// ApplyPhase names what apply is doing to the current file.
type ApplyPhase string

const (
	PhaseConverting ApplyPhase = "converting format"
	PhaseWriting    ApplyPhase = "writing metadata"
	PhaseMarker     ApplyPhase = "creating series marker"
	PhaseDone       ApplyPhase = "done"
)

// ApplyProgress is the incremental apply state polled by clients.
type ApplyProgress struct {
	Phase   ApplyPhase `json:"phase"`
	Current int        `json:"current"`
	Total   int        `json:"total"`
	FileID  string     `json:"file_id,omitempty"`
	Path    string     `json:"path,omitempty"`
}

// FileResult is the outcome of applying one file.
type FileResult struct {
	FileID  string `json:"file_id"`
	Path    string `json:"path"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// ApplyResult is the aggregate outcome of an apply.
type ApplyResult struct {
	Successful int          `json:"successful"`
	Failed     int          `json:"failed"`
	Files      []FileResult `json:"files"`
	Warnings   []string     `json:"warnings,omitempty"`
}

// Add records one file outcome.
func (r *ApplyResult) Add(fr FileResult) {
	r.Files = append(r.Files, fr)
	if fr.Success {
		r.Successful++
	} else {
		r.Failed++
	}
}

// Job is one batch run.
type Job struct {
	ID           string                `json:"id"`
	Step         Step                  `json:"step"`
	ResumeStep   Step                  `json:"resume_step,omitempty"`
	Files        []grouping.File       `json:"files"`
	Options      Options               `json:"options"`
	Groups       []SeriesGroup         `json:"series_groups"`
	CurrentGroup int                   `json:"current_series_index"`
	ApplyToRest  bool                  `json:"apply_to_remaining,omitempty"`
	ChangeSets   []changeset.ChangeSet `json:"change_sets,omitempty"`
	Activity     []Activity            `json:"activity"`
	Progress     *ApplyProgress        `json:"progress,omitempty"`
	Result       *ApplyResult          `json:"result,omitempty"`
	Error        string                `json:"error,omitempty"`
	Cancelled    bool                  `json:"cancelled,omitempty"`
	CreatedAt    time.Time             `json:"created_at"`
	UpdatedAt    time.Time             `json:"updated_at"`
	ArchivedAt   *time.Time            `json:"archived_at,omitempty"`
}

// Log appends an activity entry stamped with the job's current step.
func (j *Job) Log(kind ActivityKind, message string) {
	j.Activity = append(j.Activity, Activity{At: time.Now().UTC(), Step: j.Step, Kind: kind, Message: message})
}

// LogFile appends an activity entry about one file.
func (j *Job) LogFile(kind ActivityKind, fileID, message string) {
	j.Activity = append(j.Activity, Activity{At: time.Now().UTC(), Step: j.Step, Kind: kind, Message: message, FileID: fileID})
}

// Current returns the group being approved, or nil when approval is done.
func (j *Job) Current() *SeriesGroup {
	if j.CurrentGroup < 0 || j.CurrentGroup >= len(j.Groups) {
		return nil
	}
	return &j.Groups[j.CurrentGroup]
}

// IncludedFiles returns submitted files minus exclusions.
func (j *Job) IncludedFiles() []grouping.File {
	out := make([]grouping.File, 0, len(j.Files))
	for _, f := range j.Files {
		if !j.Options.Excluded(f.ID) {
			out = append(out, f)
		}
	}
	return out
}

// Summary is the list view of a job, read from indexed columns.
type Summary struct {
	ID         string     `json:"id"`
	Step       Step       `json:"step"`
	FileCount  int        `json:"file_count"`
	GroupCount int        `json:"group_count"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	ArchivedAt *time.Time `json:"archived_at,omitempty"`
}

// Selection remembers the series a folder's group was applied with.
type Selection struct {
	Folder      string               `json:"folder"`
	QueryKey    string               `json:"query_key"`
	Series      sources.SeriesMatch  `json:"series"`
	IssueSeries *sources.SeriesMatch `json:"issue_series,omitempty"`
	JobID       string               `json:"job_id,omitempty"`
	UpdatedAt   time.Time            `json:"updated_at"`
}
