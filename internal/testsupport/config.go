package testsupport

import (
	"path/filepath"
	"testing"

	"shortbox/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Every source is enabled with placeholder credentials so adapters validate.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Sources.ComicVine.APIKey = "test"
	cfgVal.Sources.Metron.Username = "test"
	cfgVal.Sources.Metron.Password = "test"
	cfgVal.Sources.GCD.Username = "test"
	cfgVal.Sources.GCD.Password = "test"
	cfgVal.Matching.SourceTimeoutSeconds = 2
	cfgVal.Matching.CacheTTLSeconds = 0

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithPriority overrides the source priority order.
func WithPriority(names ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Sources.Priority = names
	}
}

// WithAutoApply enables automatic merging of auto-match candidates.
func WithAutoApply() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Matching.AutoApplyHighConfidence = true
	}
}

// WithCleanupMode sets the default cleanup mode.
func WithCleanupMode(mode string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Apply.CleanupMode = mode
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
