package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"shortbox/internal/changeset"
	"shortbox/internal/comicinfo"
	"shortbox/internal/grouping"
	"shortbox/internal/jobstore"
	"shortbox/internal/logging"
	"shortbox/internal/matching"
	"shortbox/internal/merge"
	"shortbox/internal/seriesmarker"
	"shortbox/internal/services"
	"shortbox/internal/sources"
)

// ApproveRequest selects the series for the current group.
type ApproveRequest struct {
	// Source defaults to the source of the group's last search.
	Source   string `json:"source,omitempty"`
	SeriesID string `json:"series_id"`
	// IssueSeriesID, when set, names a different series whose issue list is
	// used to match files. Descriptive metadata still comes from SeriesID.
	IssueSource   string `json:"issue_source,omitempty"`
	IssueSeriesID string `json:"issue_series_id,omitempty"`
	// ApplyToRemaining applies the selection to every other pending group.
	ApplyToRemaining bool `json:"apply_to_remaining,omitempty"`
}

// note is an activity entry gathered off-lock and written with the result.
type note struct {
	kind    jobstore.ActivityKind
	fileID  string
	message string
}

type notes []note

func (n *notes) add(kind jobstore.ActivityKind, fileID, message string) {
	*n = append(*n, note{kind: kind, fileID: fileID, message: message})
}

func (n notes) apply(j *jobstore.Job) {
	for _, e := range n {
		if e.fileID != "" {
			j.LogFile(e.kind, e.fileID, e.message)
		} else {
			j.Log(e.kind, e.message)
		}
	}
}

func joinFields(fields []comicinfo.Field) string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = string(f)
	}
	return strings.Join(names, ", ")
}

func newGroup(g grouping.Group) jobstore.SeriesGroup {
	return jobstore.SeriesGroup{
		Key:         g.Key,
		Name:        g.Name,
		Folder:      g.Folder,
		Query:       g.Query,
		Files:       g.Members,
		ParseFailed: g.ParseFailed,
		Status:      jobstore.GroupPending,
	}
}

func groupQuery(g *jobstore.SeriesGroup) matching.Query {
	return matching.Query{
		Name:        g.Query.Series,
		Year:        g.Query.Year,
		IssueCount:  g.Query.Count,
		ParseFailed: g.ParseFailed,
	}
}

func nextPending(groups []jobstore.SeriesGroup) int {
	for i := range groups {
		if groups[i].Status == jobstore.GroupPending || groups[i].Status == jobstore.GroupSearching {
			return i
		}
	}
	return -1
}

// enterNext points the job at the next group awaiting approval, or moves it
// to file review when none is left.
func enterNext(j *jobstore.Job, outcome *searchOutcome) {
	next := nextPending(j.Groups)
	if next < 0 {
		j.CurrentGroup = -1
		j.Step = jobstore.StepFileReview
		j.Log(jobstore.ActivityInfo, fmt.Sprintf("all series groups resolved; %d files ready for review", len(j.ChangeSets)))
		return
	}
	j.CurrentGroup = next
	j.Step = jobstore.StepSeriesApproval
	if outcome != nil && outcome.index == next {
		outcome.applyTo(j)
	}
}

func replaceGroupSets(j *jobstore.Job, index int, sets []changeset.ChangeSet) {
	j.ChangeSets = slices.DeleteFunc(j.ChangeSets, func(cs changeset.ChangeSet) bool { return cs.GroupIndex == index })
	j.ChangeSets = append(j.ChangeSets, sets...)
	slices.SortStableFunc(j.ChangeSets, func(a, b changeset.ChangeSet) int { return a.GroupIndex - b.GroupIndex })
}

func (m *Manager) detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), m.sourceTimeout)
}

// initialize groups the job's files, resolves pre-approved groups, and
// searches the first group that needs approval.
func (m *Manager) initialize(ctx context.Context, logger *slog.Logger, id string) error {
	job, err := m.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return errJobGone
		}
		return err
	}
	files := job.IncludedFiles()
	if len(files) == 0 {
		return services.Wrap(services.ErrValidation, "workflow", "initialize", "no files to process", nil)
	}
	partition := grouping.Partition(files, grouping.Options{MixedSeries: job.Options.MixedSeries})
	if len(partition.Groups) == 0 {
		return services.Wrap(services.ErrValidation, "workflow", "initialize", "no series groups could be formed", nil)
	}

	var log notes
	for _, w := range partition.Warnings {
		log.add(jobstore.ActivityWarning, "", w)
	}
	groups := make([]jobstore.SeriesGroup, 0, len(partition.Groups))
	for _, g := range partition.Groups {
		groups = append(groups, newGroup(g))
	}

	r := m.newResolver(job.Options, &log)
	var sets []changeset.ChangeSet
	for i := range groups {
		if ctx.Err() != nil {
			return errCancelled
		}
		if !m.preApprove(ctx, &groups[i], partition.Groups[i].Marker, &log) {
			continue
		}
		sets = append(sets, r.resolve(ctx, &groups[i], i)...)
		groups[i].Status = jobstore.GroupMatched
	}
	logger.Info("files grouped",
		logging.Int("files", len(files)),
		logging.Int("groups", len(groups)),
		logging.Int("pre_approved", len(groups)-countPending(groups)),
	)

	var outcome *searchOutcome
	if next := nextPending(groups); next >= 0 {
		o := m.runSearch(ctx, &groups[next], job.Options.PrimarySource, "", job.Options.SearchLimit)
		o.index = next
		outcome = &o
	}

	_, err = m.mutateBackground(ctx, id, jobstore.StepInitializing, func(j *jobstore.Job) error {
		j.Groups = groups
		j.ChangeSets = sets
		j.Log(jobstore.ActivityInfo, fmt.Sprintf("grouped %d files into %d series groups", len(files), len(groups)))
		log.apply(j)
		enterNext(j, outcome)
		return nil
	})
	return err
}

func countPending(groups []jobstore.SeriesGroup) int {
	n := 0
	for _, g := range groups {
		if g.Status == jobstore.GroupPending {
			n++
		}
	}
	return n
}

// preApprove selects a series for g from its folder marker or from the
// selection a previous job applied to the same folder.
func (m *Manager) preApprove(ctx context.Context, g *jobstore.SeriesGroup, marker *seriesmarker.Marker, log *notes) bool {
	if marker != nil {
		md := marker.Metadata
		adapter, ok := m.registry.Get(md.Source)
		if !ok {
			log.add(jobstore.ActivityWarning, "", fmt.Sprintf("%s: series marker names source %s, which is not enabled", g.Name, md.Source))
			return false
		}
		rctx, cancel := m.detached(ctx)
		defer cancel()
		rec, err := adapter.FetchByID(rctx, md.SourceID)
		switch {
		case err != nil:
			log.add(jobstore.ActivityWarning, "", fmt.Sprintf("%s: could not load marked series: %v", g.Name, err))
			return false
		case rec == nil:
			log.add(jobstore.ActivityWarning, "", fmt.Sprintf("%s: marked series %s %s no longer exists", g.Name, md.Source, md.SourceID))
			return false
		}
		selected := rec.WithConfidence(1)
		g.Selected = &selected
		g.PreApprovedFromMarker = true
		log.add(jobstore.ActivityInfo, "", fmt.Sprintf("%s: pre-approved as %s from series marker", g.Name, selected.DisplayName()))
		return true
	}

	prior, err := m.store.FindSelection(ctx, g.Folder, g.Key)
	if err != nil {
		log.add(jobstore.ActivityWarning, "", fmt.Sprintf("%s: could not read earlier selection: %v", g.Name, err))
		return false
	}
	if prior == nil {
		return false
	}
	if _, ok := m.registry.Get(prior.Series.Source); !ok {
		return false
	}
	selected := prior.Series.WithConfidence(1)
	g.Selected = &selected
	if prior.IssueSeries != nil {
		if _, ok := m.registry.Get(prior.IssueSeries.Source); ok {
			issueSeries := *prior.IssueSeries
			g.IssueSeries = &issueSeries
		}
	}
	g.PreApprovedFromRun = true
	log.add(jobstore.ActivityInfo, "", fmt.Sprintf("%s: pre-approved as %s from an earlier job", g.Name, selected.DisplayName()))
	return true
}

// searchOutcome is one group search, gathered off-lock.
type searchOutcome struct {
	index      int
	query      string
	year       int
	source     string
	results    []sources.SeriesMatch
	pagination *sources.Pagination
	err        error
}

func (o searchOutcome) applyTo(j *jobstore.Job) {
	if o.index < 0 || o.index >= len(j.Groups) {
		return
	}
	g := &j.Groups[o.index]
	g.Status = jobstore.GroupPending
	g.SearchQuery = o.query
	g.SearchYear = o.year
	g.SearchSource = o.source
	g.Results = o.results
	g.Pagination = o.pagination
	g.SearchError = ""
	if o.err != nil {
		g.SearchError = o.err.Error()
		kind := jobstore.ActivityWarning
		if errors.Is(o.err, services.ErrConfiguration) {
			kind = jobstore.ActivityError
		}
		j.Log(kind, fmt.Sprintf("%s: search on %s failed: %v", g.Name, o.source, o.err))
		return
	}
	if len(o.results) == 0 {
		j.Log(jobstore.ActivityWarning, fmt.Sprintf("%s: no results on %s for %q", g.Name, o.source, o.query))
	}
}

// runSearch queries one source for g. An empty text searches the group's
// parsed series name and year, retrying without the year when that finds
// nothing.
func (m *Manager) runSearch(ctx context.Context, g *jobstore.SeriesGroup, source, text string, limit int) searchOutcome {
	out := searchOutcome{index: -1, source: source}
	year := 0
	if text == "" {
		text = g.Query.Series
		year = g.Query.Year
	}
	out.query = text
	adapter, ok := m.registry.Get(source)
	if !ok {
		out.err = services.Wrap(services.ErrConfiguration, "workflow", "search", "source "+source+" is not enabled", nil)
		return out
	}
	if err := ctx.Err(); err != nil {
		out.err = err
		return out
	}

	sctx, cancel := m.detached(ctx)
	defer cancel()
	req := sources.SearchRequest{Query: text, Year: year, Limit: limit}
	res, err := adapter.Search(sctx, req)
	if err == nil && len(res.Results) == 0 && req.Year > 0 {
		req.Year = 0
		res, err = adapter.Search(sctx, req)
	}
	if err != nil {
		out.err = err
		return out
	}

	q := groupQuery(g)
	q.Name = text
	out.year = req.Year
	out.results = matching.Rank(q, res.Results)
	pagination := res.Pagination
	out.pagination = &pagination
	return out
}

// currentGroup returns the group awaiting approval.
func currentGroup(operation string, j *jobstore.Job) (*jobstore.SeriesGroup, error) {
	if err := requireStep(operation, j, jobstore.StepSeriesApproval); err != nil {
		return nil, err
	}
	g := j.Current()
	if g == nil {
		return nil, services.Wrap(services.ErrInvalidState, "workflow", operation, "no group is awaiting approval", nil)
	}
	if g.Status == jobstore.GroupSearching {
		return nil, services.Wrap(services.ErrInvalidState, "workflow", operation, g.Name+": search in progress", nil)
	}
	return g, nil
}

// Search replaces the current group's results with a search for text on
// source. Empty values fall back to the group's parsed query and the job's
// primary source. A failed search is recorded on the group and returned.
func (m *Manager) Search(ctx context.Context, id, text, source string) (*jobstore.Job, error) {
	job, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	g, err := currentGroup("search", job)
	if err != nil {
		return nil, err
	}
	if source == "" {
		source = job.Options.PrimarySource
	}
	if _, ok := m.registry.Get(source); !ok {
		return nil, services.Wrap(services.ErrValidation, "workflow", "search", "unknown source "+source, nil)
	}
	index := job.CurrentGroup
	outcome := m.runSearch(ctx, g, source, strings.TrimSpace(text), job.Options.SearchLimit)
	outcome.index = index

	job, err = m.store.Mutate(ctx, id, func(j *jobstore.Job) error {
		if _, err := currentGroup("search", j); err != nil {
			return err
		}
		if j.CurrentGroup != index {
			return services.Wrap(services.ErrInvalidState, "workflow", "search", "current group changed during search", nil)
		}
		outcome.applyTo(j)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return job, outcome.err
}

// LoadMore appends the next page of the current group's results.
func (m *Manager) LoadMore(ctx context.Context, id string) (*jobstore.Job, error) {
	job, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	g, err := currentGroup("load more", job)
	if err != nil {
		return nil, err
	}
	if g.Pagination == nil || !g.Pagination.HasMore {
		return nil, services.Wrap(services.ErrInvalidState, "workflow", "load more", g.Name+": no more results", nil)
	}
	adapter, ok := m.registry.Get(g.SearchSource)
	if !ok {
		return nil, services.Wrap(services.ErrConfiguration, "workflow", "load more", "source "+g.SearchSource+" is not enabled", nil)
	}
	req := g.Pagination.Next(sources.SearchRequest{Query: g.SearchQuery, Year: g.SearchYear})
	sctx, cancel := m.detached(ctx)
	defer cancel()
	res, err := adapter.Search(sctx, req)
	if err != nil {
		return nil, err
	}
	q := groupQuery(g)
	q.Name = g.SearchQuery
	page := matching.Rank(q, res.Results)
	index, query := job.CurrentGroup, g.SearchQuery

	return m.store.Mutate(ctx, id, func(j *jobstore.Job) error {
		cur, err := currentGroup("load more", j)
		if err != nil {
			return err
		}
		if j.CurrentGroup != index || cur.SearchQuery != query {
			return services.Wrap(services.ErrInvalidState, "workflow", "load more", "results changed while loading", nil)
		}
		seen := make(map[string]bool, len(cur.Results))
		for _, r := range cur.Results {
			seen[r.Key()] = true
		}
		for _, r := range page {
			if !seen[r.Key()] {
				cur.Results = append(cur.Results, r)
				seen[r.Key()] = true
			}
		}
		pagination := res.Pagination
		cur.Pagination = &pagination
		return nil
	})
}

// lookup finds a series among g's results or by direct id on source.
func (m *Manager) lookup(ctx context.Context, g *jobstore.SeriesGroup, source, seriesID string) (*sources.SeriesMatch, error) {
	for _, r := range g.Results {
		if r.Source == source && r.SourceID == seriesID {
			found := r
			return &found, nil
		}
	}
	adapter, ok := m.registry.Get(source)
	if !ok {
		return nil, services.Wrap(services.ErrValidation, "workflow", "approve", "unknown source "+source, nil)
	}
	rctx, cancel := m.detached(ctx)
	defer cancel()
	rec, err := adapter.FetchByID(rctx, seriesID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, services.Wrap(services.ErrNotFound, "workflow", "approve", fmt.Sprintf("%s has no series %s", source, seriesID), nil)
	}
	scored := rec.WithConfidence(matching.Score(groupQuery(g), *rec))
	return &scored, nil
}

// Approve selects a series for the current group and fetches its issues in
// the background.
func (m *Manager) Approve(ctx context.Context, id string, req ApproveRequest) (*jobstore.Job, error) {
	job, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	g, err := currentGroup("approve", job)
	if err != nil {
		return nil, err
	}
	if m.Running(id) {
		return nil, services.Wrap(services.ErrInvalidState, "workflow", "approve", "a background step is running", nil)
	}
	if strings.TrimSpace(req.SeriesID) == "" {
		return nil, services.Wrap(services.ErrValidation, "workflow", "approve", "series_id is required", nil)
	}
	source := req.Source
	if source == "" {
		source = g.SearchSource
	}
	if source == "" {
		source = job.Options.PrimarySource
	}
	selected, err := m.lookup(ctx, g, source, req.SeriesID)
	if err != nil {
		return nil, err
	}
	var issueSeries *sources.SeriesMatch
	if strings.TrimSpace(req.IssueSeriesID) != "" {
		issueSource := req.IssueSource
		if issueSource == "" {
			issueSource = source
		}
		if issueSeries, err = m.lookup(ctx, g, issueSource, req.IssueSeriesID); err != nil {
			return nil, err
		}
	}
	index := job.CurrentGroup

	job, err = m.store.Mutate(ctx, id, func(j *jobstore.Job) error {
		cur, err := currentGroup("approve", j)
		if err != nil {
			return err
		}
		if j.CurrentGroup != index {
			return services.Wrap(services.ErrInvalidState, "workflow", "approve", "current group changed", nil)
		}
		clearSelection(cur)
		cur.Selected = selected
		cur.IssueSeries = issueSeries
		j.ApplyToRest = req.ApplyToRemaining
		message := fmt.Sprintf("%s: approved %s (%s %s)", cur.Name, selected.DisplayName(), selected.Source, selected.SourceID)
		if issueSeries != nil {
			message += fmt.Sprintf("; issues from %s (%s %s)", issueSeries.DisplayName(), issueSeries.Source, issueSeries.SourceID)
		}
		j.Log(jobstore.ActivityInfo, message)
		j.Step = jobstore.StepFetchingIssues
		return nil
	})
	if err != nil {
		return nil, err
	}
	return m.begin(ctx, job, func(runCtx context.Context, logger *slog.Logger) error {
		return m.resolveApproved(runCtx, logger, id)
	})
}

type resolution struct {
	group jobstore.SeriesGroup
	sets  []changeset.ChangeSet
}

// resolveApproved builds change sets for the approved group, and for every
// pending group when the selection applies to the rest, then searches the
// next group.
func (m *Manager) resolveApproved(ctx context.Context, logger *slog.Logger, id string) error {
	job, err := m.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return errJobGone
		}
		return err
	}
	index := job.CurrentGroup
	g := job.Current()
	if g == nil || g.Selected == nil {
		return services.Wrap(services.ErrInvalidState, "workflow", "resolve", "no approved group to resolve", nil)
	}

	var log notes
	r := m.newResolver(job.Options, &log)
	resolved := make(map[int]resolution)
	current := *g
	sets := r.resolve(ctx, &current, index)
	resolved[index] = resolution{group: current, sets: sets}

	if job.ApplyToRest {
		for i := range job.Groups {
			if i == index || job.Groups[i].Status != jobstore.GroupPending {
				continue
			}
			if ctx.Err() != nil {
				return errCancelled
			}
			other := job.Groups[i]
			selected := current.Selected.WithConfidence(matching.Score(groupQuery(&other), *current.Selected))
			other.Selected = &selected
			other.IssueSeries = nil
			other.ApprovedSecondaries = slices.Clone(current.ApprovedSecondaries)
			sets := r.resolve(ctx, &other, i)
			resolved[i] = resolution{group: other, sets: sets}
			log.add(jobstore.ActivityInfo, "", fmt.Sprintf("%s: matched to %s with the previous selection", other.Name, selected.DisplayName()))
		}
	}
	logger.Info("groups resolved", logging.Int("groups", len(resolved)), logging.GroupIndex(index))

	var outcome *searchOutcome
	groups := slices.Clone(job.Groups)
	for i := range resolved {
		groups[i].Status = jobstore.GroupMatched
	}
	if next := nextPending(groups); next >= 0 && len(groups[next].Results) == 0 {
		o := m.runSearch(ctx, &groups[next], job.Options.PrimarySource, "", job.Options.SearchLimit)
		o.index = next
		outcome = &o
	}

	_, err = m.mutateBackground(ctx, id, jobstore.StepFetchingIssues, func(j *jobstore.Job) error {
		for i, res := range resolved {
			res.group.Status = jobstore.GroupMatched
			j.Groups[i] = res.group
			replaceGroupSets(j, i, res.sets)
		}
		j.ApplyToRest = false
		log.apply(j)
		enterNext(j, outcome)
		return nil
	})
	return err
}

// resolver gathers cross-source results and issue lists for groups,
// caching both so groups sharing a selection query each source once.
type resolver struct {
	m      *Manager
	opts   jobstore.Options
	log    *notes
	issues map[string][]sources.Issue
	cross  map[string]matching.Result
}

func (m *Manager) newResolver(opts jobstore.Options, log *notes) *resolver {
	return &resolver{
		m:      m,
		opts:   opts,
		log:    log,
		issues: make(map[string][]sources.Issue),
		cross:  make(map[string]matching.Result),
	}
}

func (r *resolver) resolve(ctx context.Context, g *jobstore.SeriesGroup, index int) []changeset.ChangeSet {
	r.crossMatch(ctx, g)
	r.m.remerge(r.opts, g)
	r.fetchIssues(ctx, g)
	return r.m.buildChangeSets(r.opts, g, index, nil, r.log)
}

func (r *resolver) crossMatch(ctx context.Context, g *jobstore.SeriesGroup) {
	g.CrossSource = nil
	if !r.opts.CrossSource || r.m.registry.Len() < 2 || g.Selected == nil {
		return
	}
	key := g.Selected.Key()
	res, ok := r.cross[key]
	if !ok {
		if ctx.Err() != nil {
			return
		}
		res = r.m.matcher.Match(ctx, *g.Selected)
		r.cross[key] = res
		r.log.add(jobstore.ActivityInfo, "", fmt.Sprintf("%s: cross-source %s", g.Name, res.Summary))
	}
	g.CrossSource = &res
}

func (r *resolver) fetchIssues(ctx context.Context, g *jobstore.SeriesGroup) {
	src := g.IssueSource()
	if src == nil {
		return
	}
	key := src.Key()
	if issues, ok := r.issues[key]; ok {
		g.Issues = issues
		return
	}
	adapter, ok := r.m.registry.Get(src.Source)
	if !ok {
		r.log.add(jobstore.ActivityWarning, "", fmt.Sprintf("%s: source %s is not enabled; files cannot be matched to issues", g.Name, src.Source))
		return
	}
	if ctx.Err() != nil {
		return
	}
	ictx, cancel := r.m.detached(ctx)
	defer cancel()
	issues, err := adapter.FetchIssues(ictx, src.SourceID)
	if err != nil {
		r.log.add(jobstore.ActivityWarning, "", fmt.Sprintf("%s: could not fetch issues from %s: %v", g.Name, src.Source, err))
		return
	}
	if issues == nil {
		issues = []sources.Issue{}
	}
	r.issues[key] = issues
	g.Issues = issues
}

// remerge rebuilds the group's merged record from its cross-source matches.
// Merged stays nil unless a secondary actually contributed.
func (m *Manager) remerge(opts jobstore.Options, g *jobstore.SeriesGroup) {
	g.Merged = nil
	if g.Selected == nil || g.CrossSource == nil {
		return
	}
	var contributions []merge.Contribution
	for _, sr := range g.CrossSource.Matches() {
		contributions = append(contributions, merge.Contribution{
			Record:             *sr.Match,
			Approved:           slices.Contains(g.ApprovedSecondaries, sr.Source),
			AutoMatchCandidate: sr.IsAutoMatchCandidate,
		})
	}
	merged := merge.Merge(*g.Selected, contributions, merge.Options{
		Priority:                m.registry.Names(),
		AutoApplyHighConfidence: opts.AutoApplyHighConfidence,
	})
	if len(merged.Contributors) > 1 {
		g.Merged = &merged
	}
}

// buildChangeSets computes a change set per member of g. prev, when given,
// supplies current values already read and the decisions to carry over.
func (m *Manager) buildChangeSets(opts jobstore.Options, g *jobstore.SeriesGroup, index int, prev map[string]changeset.ChangeSet, log *notes) []changeset.ChangeSet {
	series := g.Descriptive()
	if series == nil {
		return nil
	}
	mode := changeset.ParseCleanupMode(opts.CleanupMode)
	out := make([]changeset.ChangeSet, 0, len(g.Files))
	for _, f := range g.Files {
		old, hasOld := prev[f.ID]
		current := old.Current
		if !hasOld {
			md, _, err := m.files.Read(f.Path)
			if err != nil {
				log.add(jobstore.ActivityWarning, f.ID, fmt.Sprintf("%s: could not read current metadata: %v", f.Filename, err))
			}
			current = md
		}
		issue, score := changeset.MatchIssue(g.Issues, f.Parsed)
		number := f.Parsed.Number
		if number == "" {
			number = f.Parsed.Volume
		}
		cs := changeset.Compute(changeset.Input{
			FileID:      f.ID,
			Path:        f.Path,
			Filename:    f.Filename,
			GroupIndex:  index,
			IssueNumber: number,
			Current:     current,
			Proposed:    changeset.Propose(*series, issue),
			Issue:       issue,
			Confidence:  changeset.FileConfidence(g.Selected.Confidence, score),
			Mode:        mode,
		})
		if hasOld {
			if dropped := cs.CarryDecisions(old); len(dropped) > 0 {
				log.add(jobstore.ActivityWarning, f.ID, fmt.Sprintf("%s: proposal changed for %s; review again", f.Filename, joinFields(dropped)))
			}
			if old.Status == changeset.StatusRejected {
				cs.Reject()
			}
		}
		if issue == nil && !hasOld {
			log.add(jobstore.ActivityWarning, f.ID, fmt.Sprintf("%s: no issue matched in %s; only series fields are proposed", f.Filename, series.DisplayName()))
		}
		out = append(out, cs)
	}
	return out
}

// searchNext searches the current group in the background when it has no
// results yet.
func (m *Manager) searchNext(ctx context.Context, id string) error {
	job, err := m.store.Mutate(ctx, id, func(j *jobstore.Job) error {
		if j.Step != jobstore.StepSeriesApproval {
			return errNoop
		}
		g := j.Current()
		if g == nil || g.Status != jobstore.GroupPending || len(g.Results) > 0 || g.SearchError != "" {
			return errNoop
		}
		g.Status = jobstore.GroupSearching
		return nil
	})
	if errors.Is(err, errNoop) {
		return nil
	}
	if err != nil {
		return err
	}
	index := job.CurrentGroup
	group := job.Groups[index]
	opts := job.Options

	spawnErr := m.spawn(id, jobstore.StepSeriesApproval, func(runCtx context.Context, logger *slog.Logger) error {
		outcome := m.runSearch(runCtx, &group, opts.PrimarySource, "", opts.SearchLimit)
		outcome.index = index
		logger.Debug("group searched",
			logging.GroupIndex(index),
			logging.Int("results", len(outcome.results)),
		)
		_, err := m.mutateBackground(runCtx, id, jobstore.StepSeriesApproval, func(j *jobstore.Job) error {
			if j.CurrentGroup != index || j.Groups[index].Status != jobstore.GroupSearching {
				return errNoop
			}
			outcome.applyTo(j)
			return nil
		})
		if errors.Is(err, errNoop) {
			return nil
		}
		return err
	})
	if spawnErr == nil {
		return nil
	}
	_, err = m.store.Mutate(persistCtx(ctx), id, func(j *jobstore.Job) error {
		if index < len(j.Groups) && j.Groups[index].Status == jobstore.GroupSearching {
			j.Groups[index].Status = jobstore.GroupPending
		}
		return nil
	})
	return errors.Join(spawnErr, err)
}

// Skip leaves the current group untagged and moves on.
func (m *Manager) Skip(ctx context.Context, id string) (*jobstore.Job, error) {
	running := m.Running(id)
	_, err := m.store.Mutate(ctx, id, func(j *jobstore.Job) error {
		g, err := currentGroup("skip", j)
		if err != nil {
			return err
		}
		if running {
			return services.Wrap(services.ErrInvalidState, "workflow", "skip", "a background step is running", nil)
		}
		g.Status = jobstore.GroupSkipped
		for _, f := range g.Files {
			j.LogFile(jobstore.ActivityWarning, f.ID, fmt.Sprintf("%s: group %s skipped; file will not be tagged", f.Filename, g.Name))
		}
		replaceGroupSets(j, j.CurrentGroup, nil)
		enterNext(j, nil)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := m.searchNext(ctx, id); err != nil {
		m.logger.Warn("next group search failed to start", logging.JobID(id), logging.Error(err))
	}
	return m.store.Get(ctx, id)
}

// ResetGroup reopens a resolved or skipped group for approval from file
// review. Its change sets are discarded.
func (m *Manager) ResetGroup(ctx context.Context, id string, index int) (*jobstore.Job, error) {
	running := m.Running(id)
	job, err := m.store.Mutate(ctx, id, func(j *jobstore.Job) error {
		if err := requireStep("reset group", j, jobstore.StepFileReview); err != nil {
			return err
		}
		if running {
			return services.Wrap(services.ErrInvalidState, "workflow", "reset group", "a background step is running", nil)
		}
		if index < 0 || index >= len(j.Groups) {
			return services.Wrap(services.ErrNotFound, "workflow", "reset group", fmt.Sprintf("no group %d", index), nil)
		}
		g := &j.Groups[index]
		if g.Status != jobstore.GroupMatched && g.Status != jobstore.GroupSkipped {
			return services.Wrap(services.ErrInvalidState, "workflow", "reset group", g.Name+" has not been resolved", nil)
		}
		clearSelection(g)
		replaceGroupSets(j, index, nil)
		j.CurrentGroup = index
		j.Step = jobstore.StepSeriesApproval
		j.Log(jobstore.ActivityInfo, g.Name+": reopened for approval; its file changes were discarded")
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(job.Groups[index].Results) > 0 {
		return job, nil
	}
	if err := m.searchNext(ctx, id); err != nil {
		return nil, err
	}
	return m.store.Get(ctx, id)
}

// ApproveSecondaries chooses which cross-source matches feed the group's
// merged metadata and rebuilds its change sets, keeping edits, rejections,
// and approvals whose proposal did not change.
func (m *Manager) ApproveSecondaries(ctx context.Context, id string, index int, names []string) (*jobstore.Job, error) {
	return m.store.Mutate(ctx, id, func(j *jobstore.Job) error {
		if err := requireStep("approve secondaries", j, jobstore.StepFileReview, jobstore.StepSeriesApproval); err != nil {
			return err
		}
		if index < 0 || index >= len(j.Groups) {
			return services.Wrap(services.ErrNotFound, "workflow", "approve secondaries", fmt.Sprintf("no group %d", index), nil)
		}
		g := &j.Groups[index]
		if g.Status != jobstore.GroupMatched || g.CrossSource == nil {
			return services.Wrap(services.ErrInvalidState, "workflow", "approve secondaries", g.Name+" has no cross-source results", nil)
		}
		approved := make([]string, 0, len(names))
		for _, name := range names {
			sr, ok := g.CrossSource.Source(name)
			if !ok || sr.Status != matching.StatusMatched {
				return services.Wrap(services.ErrValidation, "workflow", "approve secondaries", name+" has no match for "+g.Name, nil)
			}
			if !slices.Contains(approved, name) {
				approved = append(approved, name)
			}
		}
		g.ApprovedSecondaries = approved

		prev := make(map[string]changeset.ChangeSet)
		for _, cs := range j.ChangeSets {
			if cs.GroupIndex == index {
				prev[cs.FileID] = cs
			}
		}
		m.remerge(j.Options, g)
		var rebuilt notes
		replaceGroupSets(j, index, m.buildChangeSets(j.Options, g, index, prev, &rebuilt))
		rebuilt.apply(j)
		if len(approved) == 0 {
			j.Log(jobstore.ActivityInfo, g.Name+": using "+g.Selected.Source+" metadata only")
		} else {
			j.Log(jobstore.ActivityInfo, g.Name+": merging metadata from "+strings.Join(approved, ", "))
		}
		return nil
	})
}
