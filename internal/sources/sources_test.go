package sources_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"shortbox/internal/config"
	"shortbox/internal/services"
	"shortbox/internal/sources"
)

type countingAdapter struct {
	name     string
	searches atomic.Int32
	failures []error
}

func (a *countingAdapter) Name() string    { return a.name }
func (a *countingAdapter) Validate() error { return nil }

func (a *countingAdapter) Search(_ context.Context, req sources.SearchRequest) (sources.SearchResult, error) {
	n := int(a.searches.Add(1))
	if n <= len(a.failures) && a.failures[n-1] != nil {
		return sources.SearchResult{}, a.failures[n-1]
	}
	return sources.SearchResult{
		Results:    []sources.SeriesMatch{{Source: a.name, SourceID: "1", Name: req.Query}},
		Pagination: sources.Paginate(1, req.Offset, req.Limit, 1),
	}, nil
}

func (a *countingAdapter) FetchByID(context.Context, string) (*sources.SeriesMatch, error) {
	return nil, nil
}

func (a *countingAdapter) FetchIssues(context.Context, string) ([]sources.Issue, error) {
	return nil, nil
}

func TestRegistryOrdersByPriority(t *testing.T) {
	registry := sources.NewRegistry(
		[]string{"metron", "comicvine"},
		&countingAdapter{name: "comicvine"},
		&countingAdapter{name: "gcd"},
		&countingAdapter{name: "metron"},
	)
	if got := strings.Join(registry.Names(), ","); got != "metron,comicvine,gcd" {
		t.Fatalf("unexpected order: %s", got)
	}
	if registry.Rank("gcd") != 2 || registry.Rank("unknown") != 3 {
		t.Fatalf("unexpected ranks: gcd=%d unknown=%d", registry.Rank("gcd"), registry.Rank("unknown"))
	}
	primary, ok := registry.Primary()
	if !ok || primary.Name() != "metron" {
		t.Fatalf("unexpected primary %v", primary)
	}
}

func TestCachedServesRepeatedSearchFromCache(t *testing.T) {
	inner := &countingAdapter{name: "comicvine"}
	cached := sources.NewCached(inner, sources.CacheOptions{TTL: time.Minute, Attempts: 1})
	req := sources.SearchRequest{Query: "Batman", Limit: 10}

	for i := 0; i < 3; i++ {
		if _, err := cached.Search(context.Background(), req); err != nil {
			t.Fatalf("search %d: %v", i, err)
		}
	}
	if got := inner.searches.Load(); got != 1 {
		t.Fatalf("expected one upstream call, got %d", got)
	}

	req.Offset = 10
	if _, err := cached.Search(context.Background(), req); err != nil {
		t.Fatalf("next page: %v", err)
	}
	if got := inner.searches.Load(); got != 2 {
		t.Fatalf("expected a new page to miss the cache, got %d calls", got)
	}
}

func TestCachedReturnsCopies(t *testing.T) {
	inner := &countingAdapter{name: "comicvine"}
	cached := sources.NewCached(inner, sources.CacheOptions{TTL: time.Minute, Attempts: 1})
	req := sources.SearchRequest{Query: "Batman", Limit: 10}

	first, err := cached.Search(context.Background(), req)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	first.Results[0].Name = "changed"

	second, err := cached.Search(context.Background(), req)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if second.Results[0].Name != "Batman" {
		t.Fatalf("caller mutation leaked into the cache: %q", second.Results[0].Name)
	}
	second.Results[0].Name = "again"
	third, _ := cached.Search(context.Background(), req)
	if third.Results[0].Name != "Batman" || inner.searches.Load() != 1 {
		t.Fatalf("expected cached copy, got %q after %d calls", third.Results[0].Name, inner.searches.Load())
	}
}

func TestCachedEvictsExpiredEntries(t *testing.T) {
	inner := &countingAdapter{name: "comicvine"}
	cached := sources.NewCached(inner, sources.CacheOptions{TTL: 20 * time.Millisecond, Attempts: 1})

	for _, query := range []string{"Batman", "Saga"} {
		if _, err := cached.Search(context.Background(), sources.SearchRequest{Query: query, Limit: 10}); err != nil {
			t.Fatalf("search %s: %v", query, err)
		}
	}
	if got := cached.Len(); got != 2 {
		t.Fatalf("expected two entries, got %d", got)
	}

	time.Sleep(40 * time.Millisecond)
	if _, err := cached.Search(context.Background(), sources.SearchRequest{Query: "Monstress", Limit: 10}); err != nil {
		t.Fatalf("search: %v", err)
	}
	if got := cached.Len(); got != 1 {
		t.Fatalf("expired entries must be dropped, %d left", got)
	}
}

func TestCachedRetriesTransientFailures(t *testing.T) {
	inner := &countingAdapter{
		name:     "metron",
		failures: []error{services.Wrap(services.ErrTransient, "metron", "request", "returned 503", nil)},
	}
	cached := sources.NewCached(inner, sources.CacheOptions{Attempts: 3, RetryDelay: time.Millisecond})

	result, err := cached.Search(context.Background(), sources.SearchRequest{Query: "Saga", Limit: 5})
	if err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if len(result.Results) != 1 || inner.searches.Load() != 2 {
		t.Fatalf("unexpected result %+v after %d calls", result, inner.searches.Load())
	}
}

func TestCachedDoesNotRetryConfigurationErrors(t *testing.T) {
	inner := &countingAdapter{
		name:     "gcd",
		failures: []error{sources.MissingCredential("gcd", "username", "GCD_USERNAME")},
	}
	cached := sources.NewCached(inner, sources.CacheOptions{Attempts: 3, RetryDelay: time.Millisecond})

	_, err := cached.Search(context.Background(), sources.SearchRequest{Query: "Saga"})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if got := inner.searches.Load(); got != 1 {
		t.Fatalf("configuration errors must not be retried, got %d calls", got)
	}
}

func TestRequesterClassifiesStatusCodes(t *testing.T) {
	tests := []struct {
		status int
		marker error
	}{
		{http.StatusUnauthorized, services.ErrConfiguration},
		{http.StatusForbidden, services.ErrConfiguration},
		{http.StatusNotFound, services.ErrNotFound},
		{http.StatusTooManyRequests, services.ErrTransient},
		{http.StatusBadGateway, services.ErrTransient},
		{http.StatusTeapot, services.ErrExternal},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))
			t.Cleanup(server.Close)

			req := sources.NewRequester("metron", config.Source{BaseURL: server.URL})
			var out map[string]any
			err := req.GetJSON(context.Background(), "/series/", nil, &out)
			if !errors.Is(err, tt.marker) {
				t.Fatalf("status %d: expected %v, got %v", tt.status, tt.marker, err)
			}
		})
	}
}

func TestRequesterReportsMalformedBodyAsExternal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"results": [`))
	}))
	t.Cleanup(server.Close)

	req := sources.NewRequester("gcd", config.Source{BaseURL: server.URL, UserAgent: "shortbox/test"})
	var out map[string]any
	if err := req.GetJSON(context.Background(), "/series/", nil, &out); !errors.Is(err, services.ErrExternal) {
		t.Fatalf("expected external error, got %v", err)
	}
}

func TestIssueDateParts(t *testing.T) {
	year, month, day := sources.Issue{CoverDate: "2011-09-01"}.DateParts()
	if year != "2011" || month != "9" || day != "1" {
		t.Fatalf("unexpected parts %s/%s/%s", year, month, day)
	}
	year, month, day = sources.Issue{StoreDate: "1986-02"}.DateParts()
	if year != "1986" || month != "2" || day != "" {
		t.Fatalf("unexpected fallback parts %s/%s/%s", year, month, day)
	}
}

func TestPaginate(t *testing.T) {
	p := sources.Paginate(25, 10, 10, 10)
	if !p.HasMore || p.Total != 25 {
		t.Fatalf("unexpected pagination %+v", p)
	}
	next := p.Next(sources.SearchRequest{Query: "x"})
	if next.Offset != 20 || next.Limit != 10 {
		t.Fatalf("unexpected next request %+v", next)
	}
	if sources.Paginate(0, 0, 10, 3).HasMore {
		t.Fatal("short page without total should not report more")
	}
}
