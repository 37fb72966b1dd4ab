package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"shortbox/internal/config"
	"shortbox/internal/daemon"
	"shortbox/internal/jobstore"
	"shortbox/internal/sources"
	"shortbox/internal/testsupport"
	"shortbox/internal/workflow"
)

type cliTestEnv struct {
	cfg        *config.Config
	store      *jobstore.Store
	manager    *workflow.Manager
	daemon     *daemon.Daemon
	configPath string
	baseDir    string
}

// setupCLITestEnv starts a server on a free port and writes a config file
// pointing the CLI at it.
func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t, testsupport.WithPriority("comicvine"))
	store := testsupport.MustOpenStore(t, cfg)
	registry := sources.NewRegistry([]string{"comicvine"}, testsupport.NewFakeSource("comicvine"))
	mgr := workflow.NewManager(cfg, store, registry, testsupport.NewMemoryArchives(), nil)

	d, err := daemon.New(cfg, store, mgr, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(d.Stop)
	ctx := context.Background()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("daemon start: %v", err)
	}
	cfg.Paths.APIBind = d.Status(ctx).APIAddress

	base := testsupport.BaseDir(cfg)
	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{
		cfg:        cfg,
		store:      store,
		manager:    mgr,
		daemon:     d,
		configPath: configPath,
		baseDir:    base,
	}
}

// writeStandaloneConfig writes a config for commands that never reach a server.
func writeStandaloneConfig(t *testing.T) string {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)
	return configPath
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func touch(t *testing.T, path string) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("PK"), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
