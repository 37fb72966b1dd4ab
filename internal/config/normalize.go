package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeSources()
	c.normalizeMatching()
	c.normalizeApply()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv("SHORTBOX_API_TOKEN"); ok {
			c.Paths.APIToken = strings.TrimSpace(value)
		}
	}
	return nil
}

func (c *Config) normalizeSources() {
	normalizeSource(&c.Sources.ComicVine, defaultComicVineBaseURL, defaultComicVineRateLimitMs)
	normalizeSource(&c.Sources.Metron, defaultMetronBaseURL, defaultMetronRateLimitMs)
	normalizeSource(&c.Sources.GCD, defaultGCDBaseURL, defaultGCDRateLimitMs)
	normalizeSource(&c.Sources.MangaDex, defaultMangaDexBaseURL, defaultMangaDexRateLimitMs)

	if c.Sources.ComicVine.APIKey == "" {
		if value, ok := os.LookupEnv("COMICVINE_API_KEY"); ok {
			c.Sources.ComicVine.APIKey = strings.TrimSpace(value)
		}
	}
	if c.Sources.Metron.Username == "" {
		if value, ok := os.LookupEnv("METRON_USERNAME"); ok {
			c.Sources.Metron.Username = strings.TrimSpace(value)
		}
	}
	if c.Sources.Metron.Password == "" {
		if value, ok := os.LookupEnv("METRON_PASSWORD"); ok {
			c.Sources.Metron.Password = value
		}
	}
	if c.Sources.GCD.Username == "" {
		if value, ok := os.LookupEnv("GCD_USERNAME"); ok {
			c.Sources.GCD.Username = strings.TrimSpace(value)
		}
	}
	if c.Sources.GCD.Password == "" {
		if value, ok := os.LookupEnv("GCD_PASSWORD"); ok {
			c.Sources.GCD.Password = value
		}
	}

	c.Sources.Priority = normalizeNames(c.Sources.Priority)
	if len(c.Sources.Priority) == 0 {
		c.Sources.Priority = append([]string(nil), KnownSources...)
	}
	// Enabled sources missing from the priority list rank last.
	for _, name := range KnownSources {
		if !contains(c.Sources.Priority, name) {
			c.Sources.Priority = append(c.Sources.Priority, name)
		}
	}
}

func normalizeSource(src *Source, baseURL string, rateLimit int) {
	src.APIKey = strings.TrimSpace(src.APIKey)
	src.Username = strings.TrimSpace(src.Username)
	src.BaseURL = strings.TrimRight(strings.TrimSpace(src.BaseURL), "/")
	if src.BaseURL == "" {
		src.BaseURL = baseURL
	}
	src.UserAgent = strings.TrimSpace(src.UserAgent)
	if src.UserAgent == "" {
		src.UserAgent = defaultUserAgent
	}
	if src.TimeoutSeconds <= 0 {
		src.TimeoutSeconds = defaultSourceTimeoutSeconds
	}
	if src.RateLimitMillis < 0 {
		src.RateLimitMillis = rateLimit
	}
}

func (c *Config) normalizeMatching() {
	c.Matching.CrossSourceExclude = normalizeNames(c.Matching.CrossSourceExclude)
	if c.Matching.CrossSourceConcurrency == 0 {
		c.Matching.CrossSourceConcurrency = defaultCrossSourceConcurrency
	}
	if c.Matching.SourceTimeoutSeconds == 0 {
		c.Matching.SourceTimeoutSeconds = defaultSourceTimeoutSeconds
	}
	if c.Matching.SearchLimit == 0 {
		c.Matching.SearchLimit = defaultSearchLimit
	}
	if c.Matching.CacheTTLSeconds < 0 {
		c.Matching.CacheTTLSeconds = 0
	}
	if c.Matching.RetryAttempts <= 0 {
		c.Matching.RetryAttempts = 1
	}
}

func (c *Config) normalizeApply() {
	c.Apply.CleanupMode = strings.ToLower(strings.TrimSpace(c.Apply.CleanupMode))
	if c.Apply.CleanupMode == "" {
		c.Apply.CleanupMode = defaultCleanupMode
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("SHORTBOX_NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
	if c.Notifications.RequestTimeoutSeconds <= 0 {
		c.Notifications.RequestTimeoutSeconds = defaultNtfyTimeoutSeconds
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func normalizeNames(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		normalized := strings.ToLower(strings.TrimSpace(value))
		if normalized == "" {
			continue
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		out = append(out, normalized)
	}
	return out
}

func contains(values []string, target string) bool {
	for _, value := range values {
		if value == target {
			return true
		}
	}
	return false
}
