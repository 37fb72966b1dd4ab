package matching

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"shortbox/internal/logging"
	"shortbox/internal/services"
	"shortbox/internal/sources"
)

// Status is the outcome of querying one secondary source.
type Status string

const (
	StatusMatched   Status = "matched"
	StatusNoMatch   Status = "no_match"
	StatusSearching Status = "searching"
	StatusError     Status = "error"
	StatusSkipped   Status = "skipped"
)

// SourceResult is one secondary source's answer.
type SourceResult struct {
	Source               string               `json:"source"`
	Status               Status               `json:"status"`
	Match                *sources.SeriesMatch `json:"match,omitempty"`
	Confidence           float64              `json:"confidence,omitempty"`
	Factors              *Factors             `json:"factors,omitempty"`
	IsAutoMatchCandidate bool                 `json:"is_auto_match_candidate"`
	Error                string               `json:"error,omitempty"`
	ErrorKind            string               `json:"error_kind,omitempty"`
}

// Result is the cross-source view of one primary record.
type Result struct {
	PrimarySource string         `json:"primary_source"`
	PrimaryID     string         `json:"primary_id"`
	Sources       []SourceResult `json:"sources"`
	Summary       string         `json:"summary"`
}

// Matches returns the matched sources in priority order.
func (r Result) Matches() []SourceResult {
	out := make([]SourceResult, 0, len(r.Sources))
	for _, s := range r.Sources {
		if s.Status == StatusMatched && s.Match != nil {
			out = append(out, s)
		}
	}
	return out
}

// Source returns the result for a named source.
func (r Result) Source(name string) (SourceResult, bool) {
	for _, s := range r.Sources {
		if s.Source == name {
			return s, true
		}
	}
	return SourceResult{}, false
}

// Summarize renders "<matched>/<queried> matched". Skipped sources and the
// primary are not counted.
func Summarize(results []SourceResult) string {
	matched, queried := 0, 0
	for _, s := range results {
		if s.Status == StatusSkipped {
			continue
		}
		queried++
		if s.Status == StatusMatched {
			matched++
		}
	}
	return fmt.Sprintf("%d/%d matched", matched, queried)
}

// MatcherOptions tunes the cross-source fan-out.
type MatcherOptions struct {
	Concurrency        int
	Timeout            time.Duration
	AutoMatchThreshold float64
	SearchLimit        int
	Exclude            []string
	Logger             *slog.Logger
	// OnResult, when set, is called as each source finishes. Calls may come
	// from several goroutines at once.
	OnResult func(SourceResult)
}

// Matcher links a selected series to the other configured sources.
type Matcher struct {
	registry *sources.Registry
	opts     MatcherOptions
	logger   *slog.Logger
}

// NewMatcher builds a matcher over registry.
func NewMatcher(registry *sources.Registry, opts MatcherOptions) *Matcher {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 3
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.AutoMatchThreshold <= 0 {
		opts.AutoMatchThreshold = 0.95
	}
	if opts.SearchLimit <= 0 {
		opts.SearchLimit = 10
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Matcher{registry: registry, opts: opts, logger: logging.NewComponentLogger(logger, "crossmatch")}
}

// Match queries every secondary source for primary. It never fails as a
// whole: per-source problems are reported in that source's status.
//
// Cancelling ctx stops queries that have not started. Queries already in
// flight run to completion or to their own timeout.
func (m *Matcher) Match(ctx context.Context, primary sources.SeriesMatch) Result {
	result := Result{PrimarySource: primary.Source, PrimaryID: primary.SourceID}
	names := slices.DeleteFunc(m.registry.Names(), func(name string) bool { return name == primary.Source })
	result.Sources = make([]SourceResult, len(names))

	query := QueryFromMatch(primary)
	var (
		g  errgroup.Group
		mu sync.Mutex
	)
	g.SetLimit(m.opts.Concurrency)
	for idx, name := range names {
		if m.excluded(name) {
			result.Sources[idx] = SourceResult{Source: name, Status: StatusSkipped}
			m.report(result.Sources[idx])
			continue
		}
		adapter, _ := m.registry.Get(name)
		g.Go(func() error {
			var sr SourceResult
			if err := ctx.Err(); err != nil {
				sr = errorResult(name, err)
			} else {
				sr = m.matchSource(ctx, adapter, primary, query)
			}
			mu.Lock()
			result.Sources[idx] = sr
			mu.Unlock()
			m.report(sr)
			return nil
		})
	}
	_ = g.Wait()

	result.Summary = Summarize(result.Sources)
	m.logger.Info("cross-source match complete",
		logging.String("primary", primary.Key()),
		logging.String("summary", result.Summary))
	return result
}

func (m *Matcher) matchSource(ctx context.Context, adapter sources.Adapter, primary sources.SeriesMatch, q Query) SourceResult {
	name := adapter.Name()
	logger := m.logger.With(logging.Source(name))
	if err := adapter.Validate(); err != nil {
		logger.Warn("source not configured", logging.Error(err))
		return errorResult(name, err)
	}

	queryCtx, cancel := context.WithTimeout(services.WithSource(context.WithoutCancel(ctx), name), m.opts.Timeout)
	defer cancel()

	req := sources.SearchRequest{Query: primary.Name, Year: primary.StartYear, Limit: m.opts.SearchLimit}
	found, err := adapter.Search(queryCtx, req)
	if err == nil && len(found.Results) == 0 && req.Year > 0 {
		// Sources disagree on start years; retry on the name alone.
		req.Year = 0
		found, err = adapter.Search(queryCtx, req)
	}
	if err != nil {
		logger.Warn("cross-source search failed", logging.Error(err))
		return errorResult(name, err)
	}
	if len(found.Results) == 0 {
		return SourceResult{Source: name, Status: StatusNoMatch}
	}

	best := Rank(q, found.Results)[0]
	if detail, err := adapter.FetchByID(queryCtx, best.SourceID); err != nil {
		logger.Debug("detail fetch failed; using search record", logging.Error(err))
	} else if detail != nil {
		best = *detail
	}
	confidence, factors := Evaluate(q, best)
	best = best.WithConfidence(confidence)
	logger.Debug("cross-source candidate",
		logging.String("candidate", best.Key()),
		logging.Confidence(confidence))
	return SourceResult{
		Source:               name,
		Status:               StatusMatched,
		Match:                &best,
		Confidence:           confidence,
		Factors:              &factors,
		IsAutoMatchCandidate: confidence >= m.opts.AutoMatchThreshold,
	}
}

func (m *Matcher) excluded(name string) bool {
	return slices.ContainsFunc(m.opts.Exclude, func(ex string) bool {
		return strings.EqualFold(strings.TrimSpace(ex), name)
	})
}

func (m *Matcher) report(sr SourceResult) {
	if m.opts.OnResult != nil {
		m.opts.OnResult(sr)
	}
}

func errorResult(name string, err error) SourceResult {
	kind := services.Kind(err)
	switch {
	case errors.Is(err, context.Canceled):
		kind = "cancelled"
	case errors.Is(err, context.DeadlineExceeded):
		kind = "timeout"
	}
	return SourceResult{Source: name, Status: StatusError, Error: err.Error(), ErrorKind: kind}
}
