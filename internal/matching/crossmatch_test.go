package matching_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"shortbox/internal/matching"
	"shortbox/internal/services"
	"shortbox/internal/sources"
	"shortbox/internal/testsupport"
)

var primary = sources.SeriesMatch{
	Source: "comicvine", SourceID: "42721", Name: "Batman", Publisher: "DC Comics",
	StartYear: 2011, IssueCount: 52,
}

func TestMatchSummaryCountsSecondariesOnly(t *testing.T) {
	registry := sources.NewRegistry([]string{"comicvine", "metron", "gcd"},
		testsupport.NewFakeSource("comicvine", primary),
		testsupport.NewFakeSource("metron", sources.SeriesMatch{SourceID: "7", Name: "Batman", StartYear: 2011, IssueCount: 53}),
		testsupport.NewFakeSource("gcd"),
	)
	matcher := matching.NewMatcher(registry, matching.MatcherOptions{Timeout: time.Second})

	result := matcher.Match(context.Background(), primary)
	if result.Summary != "1/2 matched" {
		t.Fatalf("unexpected summary %q", result.Summary)
	}
	metron, ok := result.Source("metron")
	if !ok || metron.Status != matching.StatusMatched || metron.Match == nil || metron.Confidence <= 0 {
		t.Fatalf("unexpected metron result %+v", metron)
	}
	if metron.Factors == nil || metron.Factors.YearMatch != matching.YearExact {
		t.Fatalf("expected factors against the primary record, got %+v", metron.Factors)
	}
	if metron.IsAutoMatchCandidate {
		t.Fatalf("publisher and issue count differ; %v should be below the auto threshold", metron.Confidence)
	}
	gcd, _ := result.Source("gcd")
	if gcd.Status != matching.StatusNoMatch {
		t.Fatalf("expected gcd no_match, got %+v", gcd)
	}
	if _, ok := result.Source("comicvine"); ok {
		t.Fatal("primary source must not be queried")
	}
}

func TestMatchFlagsAutoCandidatesAndSkipsExcluded(t *testing.T) {
	registry := sources.NewRegistry([]string{"comicvine", "metron", "gcd"},
		testsupport.NewFakeSource("comicvine", primary),
		testsupport.NewFakeSource("metron", sources.SeriesMatch{SourceID: "7", Name: "Batman", Publisher: "DC Comics", StartYear: 2011, IssueCount: 52}),
		testsupport.NewFakeSource("gcd", sources.SeriesMatch{SourceID: "9", Name: "Batman", StartYear: 2011}),
	)
	matcher := matching.NewMatcher(registry, matching.MatcherOptions{Exclude: []string{"GCD"}})

	result := matcher.Match(context.Background(), primary)
	metron, _ := result.Source("metron")
	if !metron.IsAutoMatchCandidate || metron.Confidence != 1 {
		t.Fatalf("expected auto-match candidate, got %+v", metron)
	}
	gcd, _ := result.Source("gcd")
	if gcd.Status != matching.StatusSkipped {
		t.Fatalf("expected gcd skipped, got %+v", gcd)
	}
	if result.Summary != "1/1 matched" {
		t.Fatalf("skipped sources must not count, got %q", result.Summary)
	}
}

func TestMatchIsolatesFailuresAndTimeouts(t *testing.T) {
	failing := testsupport.NewFakeSource("gcd")
	failing.SearchErr = services.Wrap(services.ErrTransient, "gcd", "request", "returned 503", nil)
	slow := testsupport.NewFakeSource("mangadex", sources.SeriesMatch{SourceID: "x", Name: "Batman"})
	slow.Delay = time.Second
	unconfigured := testsupport.NewFakeSource("metron")
	unconfigured.ValidateErr = sources.MissingCredential("metron", "username", "METRON_USERNAME")

	registry := sources.NewRegistry([]string{"comicvine", "metron", "gcd", "mangadex"},
		testsupport.NewFakeSource("comicvine", primary), unconfigured, failing, slow)

	var (
		mu       sync.Mutex
		reported []string
	)
	matcher := matching.NewMatcher(registry, matching.MatcherOptions{
		Timeout: 50 * time.Millisecond,
		OnResult: func(sr matching.SourceResult) {
			mu.Lock()
			reported = append(reported, sr.Source)
			mu.Unlock()
		},
	})

	start := time.Now()
	result := matcher.Match(context.Background(), primary)
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("slow source blocked the match for %v", elapsed)
	}
	for _, name := range []string{"metron", "gcd", "mangadex"} {
		sr, _ := result.Source(name)
		if sr.Status != matching.StatusError {
			t.Fatalf("expected %s error, got %+v", name, sr)
		}
	}
	if sr, _ := result.Source("metron"); sr.ErrorKind != "configuration" {
		t.Fatalf("expected configuration kind, got %q", sr.ErrorKind)
	}
	if sr, _ := result.Source("mangadex"); sr.ErrorKind != "timeout" {
		t.Fatalf("expected timeout kind, got %+v", sr)
	}
	if result.Summary != "0/3 matched" {
		t.Fatalf("unexpected summary %q", result.Summary)
	}
	if len(reported) != 3 {
		t.Fatalf("expected three progress callbacks, got %v", reported)
	}
}

func TestMatchAfterCancelIssuesNoQueries(t *testing.T) {
	metron := testsupport.NewFakeSource("metron", sources.SeriesMatch{SourceID: "7", Name: "Batman"})
	registry := sources.NewRegistry(nil, testsupport.NewFakeSource("comicvine", primary), metron)
	matcher := matching.NewMatcher(registry, matching.MatcherOptions{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result := matcher.Match(ctx, primary)
	sr, _ := result.Source("metron")
	if sr.Status != matching.StatusError || sr.ErrorKind != "cancelled" {
		t.Fatalf("expected cancelled error, got %+v", sr)
	}
	if len(metron.Queries()) != 0 {
		t.Fatalf("expected no queries after cancel, got %v", metron.Queries())
	}
}
