// Package providers builds the source registry from configuration.
package providers

import (
	"fmt"
	"log/slog"
	"time"

	"shortbox/internal/config"
	"shortbox/internal/logging"
	"shortbox/internal/sources"
	"shortbox/internal/sources/comicvine"
	"shortbox/internal/sources/gcd"
	"shortbox/internal/sources/mangadex"
	"shortbox/internal/sources/metron"
)

// New constructs the bare adapter for a named source.
func New(name string, settings config.Source) (sources.Adapter, error) {
	switch name {
	case config.SourceComicVine:
		return comicvine.New(settings), nil
	case config.SourceMetron:
		return metron.New(settings), nil
	case config.SourceGCD:
		return gcd.New(settings), nil
	case config.SourceMangaDex:
		return mangadex.New(settings), nil
	default:
		return nil, fmt.Errorf("unknown source %q", name)
	}
}

// Build wraps every enabled source in a cache and registers it in priority
// order. Credentials are not checked here; callers use Validate so a missing
// key surfaces against the operation that needs it.
func Build(cfg *config.Config, logger *slog.Logger) (*sources.Registry, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "sources")
	names := cfg.EnabledSources()
	adapters := make([]sources.Adapter, 0, len(names))
	for _, name := range names {
		settings, _ := cfg.SourceSettings(name)
		adapter, err := New(name, settings)
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, sources.NewCached(adapter, sources.CacheOptions{
			TTL:       time.Duration(cfg.Matching.CacheTTLSeconds) * time.Second,
			RateLimit: time.Duration(settings.RateLimitMillis) * time.Millisecond,
			Attempts:  uint(max(cfg.Matching.RetryAttempts, 1)),
			Logger:    logger,
		}))
		logger.Debug("source registered", logging.Source(name))
	}
	return sources.NewRegistry(cfg.Sources.Priority, adapters...), nil
}
