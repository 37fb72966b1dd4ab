package testsupport

import (
	"context"
	"strings"
	"sync"
	"time"

	"shortbox/internal/sources"
	"shortbox/internal/textutil"
)

// FakeSource is a scripted sources.Adapter.
type FakeSource struct {
	SourceName  string
	Series      []sources.SeriesMatch
	Issues      map[string][]sources.Issue
	SearchErr   error
	ValidateErr error
	// Delay holds every search until it elapses or the context ends.
	Delay time.Duration

	mu      sync.Mutex
	queries []string
}

var _ sources.Adapter = (*FakeSource)(nil)

// NewFakeSource returns a source that answers with the given series.
func NewFakeSource(name string, series ...sources.SeriesMatch) *FakeSource {
	for i := range series {
		series[i].Source = name
	}
	return &FakeSource{SourceName: name, Series: series, Issues: make(map[string][]sources.Issue)}
}

// WithIssues registers issues for a series id and returns f.
func (f *FakeSource) WithIssues(seriesID string, issues ...sources.Issue) *FakeSource {
	for i := range issues {
		issues[i].Source = f.SourceName
		issues[i].SeriesID = seriesID
		if issues[i].SourceID == "" {
			issues[i].SourceID = seriesID + "-" + issues[i].Number
		}
	}
	f.Issues[seriesID] = issues
	return f
}

// Queries returns the search strings received so far.
func (f *FakeSource) Queries() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

// Name implements sources.Adapter.
func (f *FakeSource) Name() string { return f.SourceName }

// Validate implements sources.Adapter.
func (f *FakeSource) Validate() error { return f.ValidateErr }

// Search implements sources.Adapter. A series matches when its normalized
// name contains the normalized query or the other way round.
func (f *FakeSource) Search(ctx context.Context, req sources.SearchRequest) (sources.SearchResult, error) {
	f.mu.Lock()
	f.queries = append(f.queries, req.Query)
	f.mu.Unlock()

	if f.Delay > 0 {
		select {
		case <-ctx.Done():
			return sources.SearchResult{}, ctx.Err()
		case <-time.After(f.Delay):
		}
	}
	if f.SearchErr != nil {
		return sources.SearchResult{}, f.SearchErr
	}
	query := textutil.Key(req.Query)
	var hits []sources.SeriesMatch
	for _, s := range f.Series {
		name := textutil.Key(s.Name)
		if query != "" && (strings.Contains(name, query) || strings.Contains(query, name)) {
			hits = append(hits, s)
		}
	}
	limit := req.Limit
	if limit <= 0 {
		limit = 10
	}
	start := min(req.Offset, len(hits))
	end := min(start+limit, len(hits))
	return sources.SearchResult{
		Results:    hits[start:end],
		Pagination: sources.Paginate(len(hits), req.Offset, limit, end-start),
	}, nil
}

// FetchByID implements sources.Adapter.
func (f *FakeSource) FetchByID(_ context.Context, id string) (*sources.SeriesMatch, error) {
	for _, s := range f.Series {
		if s.SourceID == id {
			match := s
			return &match, nil
		}
	}
	return nil, nil
}

// FetchIssues implements sources.Adapter.
func (f *FakeSource) FetchIssues(_ context.Context, seriesID string) ([]sources.Issue, error) {
	return append([]sources.Issue(nil), f.Issues[seriesID]...), nil
}
