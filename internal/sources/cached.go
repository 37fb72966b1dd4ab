package sources

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"

	"shortbox/internal/logging"
	"shortbox/internal/services"
)

// CacheOptions tunes a Cached adapter.
type CacheOptions struct {
	TTL       time.Duration
	RateLimit time.Duration
	Attempts  uint
	// RetryDelay is the base backoff between attempts.
	RetryDelay time.Duration
	Logger     *slog.Logger
}

type cacheEntry[T any] struct {
	value   T
	expires time.Time
}

// Cached decorates an Adapter with a TTL cache, a minimum interval between
// upstream calls, and retries for transient failures.
type Cached struct {
	inner  Adapter
	opts   CacheOptions
	logger *slog.Logger

	mu       sync.Mutex
	searches map[string]cacheEntry[SearchResult]
	series   map[string]cacheEntry[*SeriesMatch]
	issues   map[string]cacheEntry[[]Issue]
	lastCall time.Time
}

var _ Adapter = (*Cached)(nil)

// NewCached wraps inner.
func NewCached(inner Adapter, opts CacheOptions) *Cached {
	if opts.Attempts == 0 {
		opts.Attempts = 1
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 500 * time.Millisecond
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Cached{
		inner:    inner,
		opts:     opts,
		logger:   logger.With(logging.Source(inner.Name())),
		searches: make(map[string]cacheEntry[SearchResult]),
		series:   make(map[string]cacheEntry[*SeriesMatch]),
		issues:   make(map[string]cacheEntry[[]Issue]),
		lastCall: time.Unix(0, 0),
	}
}

// Unwrap returns the decorated adapter.
func (c *Cached) Unwrap() Adapter { return c.inner }

// Name implements Adapter.
func (c *Cached) Name() string { return c.inner.Name() }

// Validate implements Adapter.
func (c *Cached) Validate() error { return c.inner.Validate() }

// Search implements Adapter.
func (c *Cached) Search(ctx context.Context, req SearchRequest) (SearchResult, error) {
	key := req.CacheKey()
	if hit, ok := lookup(c, c.searches, key); ok {
		return hit.Clone(), nil
	}
	var result SearchResult
	err := c.call(ctx, "search", func(ctx context.Context) error {
		var err error
		result, err = c.inner.Search(ctx, req)
		return err
	})
	if err != nil {
		return SearchResult{}, err
	}
	store(c, c.searches, key, result.Clone())
	return result, nil
}

// FetchByID implements Adapter.
func (c *Cached) FetchByID(ctx context.Context, id string) (*SeriesMatch, error) {
	key := strings.TrimSpace(id)
	if hit, ok := lookup(c, c.series, key); ok {
		return cloneSeries(hit), nil
	}
	var match *SeriesMatch
	err := c.call(ctx, "fetch series", func(ctx context.Context) error {
		var err error
		match, err = c.inner.FetchByID(ctx, key)
		return err
	})
	if err != nil {
		return nil, err
	}
	store(c, c.series, key, cloneSeries(match))
	return match, nil
}

// FetchIssues implements Adapter.
func (c *Cached) FetchIssues(ctx context.Context, seriesID string) ([]Issue, error) {
	key := strings.TrimSpace(seriesID)
	if hit, ok := lookup(c, c.issues, key); ok {
		return cloneIssues(hit), nil
	}
	var issues []Issue
	err := c.call(ctx, "fetch issues", func(ctx context.Context) error {
		var err error
		issues, err = c.inner.FetchIssues(ctx, key)
		return err
	})
	if err != nil {
		return nil, err
	}
	store(c, c.issues, key, cloneIssues(issues))
	return issues, nil
}

func (c *Cached) call(ctx context.Context, operation string, fn func(context.Context) error) error {
	return retry.Do(
		func() error {
			if err := c.wait(ctx); err != nil {
				return retry.Unrecoverable(err)
			}
			return fn(ctx)
		},
		retry.Context(ctx),
		retry.Attempts(c.opts.Attempts),
		retry.Delay(c.opts.RetryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(services.Retryable),
		retry.OnRetry(func(attempt uint, err error) {
			c.logger.Warn("source call failed; retrying",
				logging.String("operation", operation),
				logging.Int("attempt", int(attempt)+1),
				logging.Error(err))
		}),
	)
}

// wait enforces the minimum interval between upstream calls.
func (c *Cached) wait(ctx context.Context) error {
	if c.opts.RateLimit <= 0 {
		return nil
	}
	c.mu.Lock()
	now := time.Now()
	next := c.lastCall.Add(c.opts.RateLimit)
	if next.Before(now) {
		next = now
	}
	c.lastCall = next
	c.mu.Unlock()

	delay := time.Until(next)
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func cloneSeries(m *SeriesMatch) *SeriesMatch {
	if m == nil {
		return nil
	}
	out := m.Clone()
	return &out
}

func cloneIssues(issues []Issue) []Issue {
	if issues == nil {
		return nil
	}
	out := make([]Issue, len(issues))
	for i, issue := range issues {
		out[i] = issue.Clone()
	}
	return out
}

// Len reports how many entries are held across the caches, expired or not.
func (c *Cached) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.searches) + len(c.series) + len(c.issues)
}

func lookup[T any](c *Cached, cache map[string]cacheEntry[T], key string) (T, bool) {
	var zero T
	if c.opts.TTL <= 0 {
		return zero, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := cache[key]
	if !ok {
		return zero, false
	}
	if time.Now().After(entry.expires) {
		delete(cache, key)
		return zero, false
	}
	return entry.value, true
}

// store records value and drops every expired entry of the same cache.
func store[T any](c *Cached, cache map[string]cacheEntry[T], key string, value T) {
	if c.opts.TTL <= 0 {
		return
	}
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, entry := range cache {
		if now.After(entry.expires) {
			delete(cache, k)
		}
	}
	cache[key] = cacheEntry[T]{value: value, expires: now.Add(c.opts.TTL)}
}
