package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"shortbox/internal/config"
)

func TestLoadDefaultConfigUsesEnvKeysAndExpandsPaths(t *testing.T) {
	t.Setenv("COMICVINE_API_KEY", "cv-key")
	t.Setenv("METRON_USERNAME", "reader")
	t.Setenv("METRON_PASSWORD", "secret")
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "shortbox")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.DatabasePath() != filepath.Join(wantData, "shortbox.db") {
		t.Fatalf("unexpected database path: %q", cfg.DatabasePath())
	}
	if cfg.Paths.APIBind != "127.0.0.1:7583" {
		t.Fatalf("unexpected api bind: %q", cfg.Paths.APIBind)
	}
	if cfg.Sources.ComicVine.APIKey != "cv-key" {
		t.Fatalf("expected Comic Vine key from env, got %q", cfg.Sources.ComicVine.APIKey)
	}
	if cfg.Sources.Metron.Username != "reader" || cfg.Sources.Metron.Password != "secret" {
		t.Fatalf("expected Metron credentials from env, got %q/%q", cfg.Sources.Metron.Username, cfg.Sources.Metron.Password)
	}
	if cfg.Matching.AutoMatchThreshold != 0.95 {
		t.Fatalf("unexpected auto-match threshold: %v", cfg.Matching.AutoMatchThreshold)
	}
	if cfg.Matching.HighConfidenceThreshold != 0.8 {
		t.Fatalf("unexpected high confidence threshold: %v", cfg.Matching.HighConfidenceThreshold)
	}
	if cfg.Apply.CleanupMode != "merge" {
		t.Fatalf("unexpected cleanup mode: %q", cfg.Apply.CleanupMode)
	}
	if got := cfg.EnabledSources(); strings.Join(got, ",") != "comicvine,metron,gcd" {
		t.Fatalf("unexpected enabled sources: %v", got)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}

	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.LogDir, cfg.JobsDir()} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "shortbox.toml")

	type sourcePayload struct {
		Enabled bool   `toml:"enabled"`
		APIKey  string `toml:"api_key"`
		BaseURL string `toml:"base_url"`
	}
	type payload struct {
		Sources struct {
			Priority  []string      `toml:"priority"`
			ComicVine sourcePayload `toml:"comicvine"`
			MangaDex  sourcePayload `toml:"mangadex"`
		} `toml:"sources"`
		Matching struct {
			CrossSourceConcurrency int      `toml:"cross_source_concurrency"`
			CrossSourceExclude     []string `toml:"cross_source_exclude"`
		} `toml:"matching"`
	}
	custom := payload{}
	custom.Sources.Priority = []string{"Metron", "comicvine", "metron"}
	custom.Sources.ComicVine = sourcePayload{Enabled: true, APIKey: "abc123", BaseURL: "https://example.com/cv/"}
	custom.Sources.MangaDex = sourcePayload{Enabled: true}
	custom.Matching.CrossSourceConcurrency = 5
	custom.Matching.CrossSourceExclude = []string{" GCD "}
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.Sources.ComicVine.APIKey != "abc123" {
		t.Fatalf("expected Comic Vine key from file, got %q", cfg.Sources.ComicVine.APIKey)
	}
	if cfg.Sources.ComicVine.BaseURL != "https://example.com/cv" {
		t.Fatalf("expected trimmed base url override, got %q", cfg.Sources.ComicVine.BaseURL)
	}
	if want := "metron,comicvine,gcd,mangadex"; strings.Join(cfg.Sources.Priority, ",") != want {
		t.Fatalf("unexpected priority: got %v want %s", cfg.Sources.Priority, want)
	}
	if cfg.Matching.CrossSourceConcurrency != 5 {
		t.Fatalf("expected concurrency 5, got %d", cfg.Matching.CrossSourceConcurrency)
	}
	if len(cfg.Matching.CrossSourceExclude) != 1 || cfg.Matching.CrossSourceExclude[0] != "gcd" {
		t.Fatalf("unexpected exclude list: %v", cfg.Matching.CrossSourceExclude)
	}
	// Untouched tables keep their defaults.
	if cfg.Sources.Metron.BaseURL != config.Default().Sources.Metron.BaseURL {
		t.Fatalf("unexpected Metron base url: %q", cfg.Sources.Metron.BaseURL)
	}
}

func TestConfigFileWinsOverEnvironment(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "shortbox.toml")
	contents := "[sources.comicvine]\napi_key = \"file-key\"\n"
	if err := os.WriteFile(configPath, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("COMICVINE_API_KEY", "env-key")

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Sources.ComicVine.APIKey != "file-key" {
		t.Fatalf("expected file key to win, got %q", cfg.Sources.ComicVine.APIKey)
	}
}

func TestLoadReadsDotEnvNextToConfig(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "shortbox.toml")
	if err := os.WriteFile(configPath, []byte("[logging]\nlevel = \"debug\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if err := os.WriteFile(filepath.Join(tempDir, ".env"), []byte("GCD_USERNAME=dotenv-user\n"), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	// Register a cleanup that restores the variable, then clear it so the
	// .env value is the only one available.
	t.Setenv("GCD_USERNAME", "")
	os.Unsetenv("GCD_USERNAME")

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Sources.GCD.Username != "dotenv-user" {
		t.Fatalf("expected GCD username from .env, got %q", cfg.Sources.GCD.Username)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("expected debug level, got %q", cfg.Logging.Level)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(contents), "COMICVINE_API_KEY") {
		t.Fatalf("sample config missing credential hint: %s", contents)
	}

	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	if !strings.Contains(cfg.Paths.DataDir, "shortbox") {
		t.Fatalf("expected data dir to contain shortbox, got %q", cfg.Paths.DataDir)
	}
	if len(cfg.Sources.Priority) != 4 {
		t.Fatalf("expected four sources in sample priority, got %v", cfg.Sources.Priority)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"threshold above one", func(c *config.Config) { c.Matching.AutoMatchThreshold = 1.5 }},
		{"negative high confidence", func(c *config.Config) { c.Matching.HighConfidenceThreshold = -0.1 }},
		{"zero concurrency", func(c *config.Config) { c.Matching.CrossSourceConcurrency = 0 }},
		{"zero timeout", func(c *config.Config) { c.Matching.SourceTimeoutSeconds = 0 }},
		{"unknown priority source", func(c *config.Config) { c.Sources.Priority = []string{"marvel"} }},
		{"unknown exclude source", func(c *config.Config) { c.Matching.CrossSourceExclude = []string{"marvel"} }},
		{"bad cleanup mode", func(c *config.Config) { c.Apply.CleanupMode = "wipe" }},
		{"no enabled sources", func(c *config.Config) {
			c.Sources.ComicVine.Enabled = false
			c.Sources.Metron.Enabled = false
			c.Sources.GCD.Enabled = false
			c.Sources.MangaDex.Enabled = false
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}

	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate without credentials: %v", err)
	}
}
