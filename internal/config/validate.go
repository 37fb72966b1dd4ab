package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
//
// Source credentials are not checked here: a missing key only disables that
// source at query time, where the failure is reported with a setup hint.
func (c *Config) Validate() error {
	if err := c.validateSources(); err != nil {
		return err
	}
	if err := c.validateMatching(); err != nil {
		return err
	}
	if err := c.validateApply(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateSources() error {
	for _, name := range c.Sources.Priority {
		if _, ok := c.SourceSettings(name); !ok {
			return fmt.Errorf("sources.priority: unknown source %q (known: comicvine, metron, gcd, mangadex)", name)
		}
	}
	for _, name := range c.Matching.CrossSourceExclude {
		if _, ok := c.SourceSettings(name); !ok {
			return fmt.Errorf("matching.cross_source_exclude: unknown source %q", name)
		}
	}
	if len(c.EnabledSources()) == 0 {
		return errors.New("at least one metadata source must be enabled under [sources]")
	}
	return nil
}

func (c *Config) validateMatching() error {
	if c.Matching.AutoMatchThreshold < 0 || c.Matching.AutoMatchThreshold > 1 {
		return errors.New("matching.auto_match_threshold must be between 0 and 1")
	}
	if c.Matching.HighConfidenceThreshold < 0 || c.Matching.HighConfidenceThreshold > 1 {
		return errors.New("matching.high_confidence_threshold must be between 0 and 1")
	}
	if err := ensurePositiveMap(map[string]int{
		"matching.cross_source_concurrency": c.Matching.CrossSourceConcurrency,
		"matching.source_timeout_seconds":   c.Matching.SourceTimeoutSeconds,
		"matching.search_limit":             c.Matching.SearchLimit,
	}); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateApply() error {
	switch c.Apply.CleanupMode {
	case "merge", "replace":
		return nil
	default:
		return fmt.Errorf("apply.cleanup_mode must be \"merge\" or \"replace\", got %q", c.Apply.CleanupMode)
	}
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
