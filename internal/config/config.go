package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Canonical metadata source names.
const (
	SourceComicVine = "comicvine"
	SourceMetron    = "metron"
	SourceGCD       = "gcd"
	SourceMangaDex  = "mangadex"
)

// KnownSources lists every metadata source shortbox can talk to.
var KnownSources = []string{SourceComicVine, SourceMetron, SourceGCD, SourceMangaDex}

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir  string `toml:"data_dir"`
	LogDir   string `toml:"log_dir"`
	APIBind  string `toml:"api_bind"`
	// APIToken, when set, is required as a bearer token on every API call.
	APIToken string `toml:"api_token"`
}

// Source contains connection settings for one metadata provider.
type Source struct {
	Enabled         bool   `toml:"enabled"`
	APIKey          string `toml:"api_key"`
	Username        string `toml:"username"`
	Password        string `toml:"password"`
	BaseURL         string `toml:"base_url"`
	UserAgent       string `toml:"user_agent"`
	TimeoutSeconds  int    `toml:"timeout_seconds"`
	RateLimitMillis int    `toml:"rate_limit_ms"`
}

// Sources groups per-provider settings with the merge priority order.
type Sources struct {
	Priority  []string `toml:"priority"`
	ComicVine Source   `toml:"comicvine"`
	Metron    Source   `toml:"metron"`
	GCD       Source   `toml:"gcd"`
	MangaDex  Source   `toml:"mangadex"`
}

// Matching contains search, scoring, and cross-source settings.
type Matching struct {
	AutoMatchThreshold      float64  `toml:"auto_match_threshold"`
	AutoApplyHighConfidence bool     `toml:"auto_apply_high_confidence"`
	HighConfidenceThreshold float64  `toml:"high_confidence_threshold"`
	CrossSourceConcurrency  int      `toml:"cross_source_concurrency"`
	CrossSourceExclude      []string `toml:"cross_source_exclude"`
	SourceTimeoutSeconds    int      `toml:"source_timeout_seconds"`
	SearchLimit             int      `toml:"search_limit"`
	CacheTTLSeconds         int      `toml:"cache_ttl_seconds"`
	RetryAttempts           int      `toml:"retry_attempts"`
}

// Apply contains settings for writing approved metadata to disk.
type Apply struct {
	CleanupMode        string `toml:"cleanup_mode"`
	CreateSeriesMarker bool   `toml:"create_series_marker"`
	ConvertZipToCBZ    bool   `toml:"convert_zip_to_cbz"`
}

// Notifications contains ntfy settings for job milestone alerts.
type Notifications struct {
	NtfyTopic             string `toml:"ntfy_topic"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for shortbox.
//
// Configuration sections by subsystem:
//   - Paths: data/log directories and API bind address
//   - Sources: metadata provider credentials and priority order
//   - Matching: confidence thresholds, fan-out limits, search breadth
//   - Apply: cleanup defaults and on-disk marker behaviour
//   - Notifications: optional ntfy topic for review and apply alerts
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Sources       Sources       `toml:"sources"`
	Matching      Matching      `toml:"matching"`
	Apply         Apply         `toml:"apply"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/shortbox/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if err := loadDotEnv(filepath.Dir(resolvedPath)); err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("shortbox.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// loadDotEnv reads .env files next to the config file and in the working
// directory. Variables already present in the environment win.
func loadDotEnv(configDir string) error {
	candidates := []string{filepath.Join(configDir, ".env")}
	if cwd, err := os.Getwd(); err == nil {
		local := filepath.Join(cwd, ".env")
		if local != candidates[0] {
			candidates = append(candidates, local)
		}
	}
	for _, candidate := range candidates {
		info, err := os.Stat(candidate)
		if err != nil || info.IsDir() {
			continue
		}
		if err := godotenv.Load(candidate); err != nil {
			return fmt.Errorf("load %s: %w", candidate, err)
		}
	}
	return nil
}

// EnsureDirectories creates required directories for server operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir, c.JobsDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the SQLite job store location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "shortbox.db")
}

// JobsDir returns the parent of every per-job work directory.
func (c *Config) JobsDir() string {
	return filepath.Join(c.Paths.DataDir, "jobs")
}

// WorkDir returns the scratch directory owned by a single job.
func (c *Config) WorkDir(jobID string) string {
	return filepath.Join(c.JobsDir(), jobID)
}

// LockPath returns the single-instance lock used by the job server.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "shortbox.lock")
}

// SourceSettings returns the settings block for a named source.
func (c *Config) SourceSettings(name string) (Source, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case SourceComicVine:
		return c.Sources.ComicVine, true
	case SourceMetron:
		return c.Sources.Metron, true
	case SourceGCD:
		return c.Sources.GCD, true
	case SourceMangaDex:
		return c.Sources.MangaDex, true
	default:
		return Source{}, false
	}
}

// EnabledSources returns enabled source names in priority order.
func (c *Config) EnabledSources() []string {
	out := make([]string, 0, len(c.Sources.Priority))
	for _, name := range c.Sources.Priority {
		if settings, ok := c.SourceSettings(name); ok && settings.Enabled {
			out = append(out, name)
		}
	}
	return out
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
