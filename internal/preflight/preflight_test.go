package preflight

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"shortbox/internal/services"
	"shortbox/internal/sources"
	"shortbox/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckSourcesReportsMissingCredentials(t *testing.T) {
	cv := testsupport.NewFakeSource("comicvine")
	cv.ValidateErr = services.Wrap(services.ErrConfiguration, "comicvine", "validate", "api key missing", nil)
	metron := testsupport.NewFakeSource("metron")
	registry := sources.NewRegistry([]string{"metron", "comicvine"}, cv, metron)

	results := CheckSources(registry)
	if len(results) != 2 {
		t.Fatalf("expected two results, got %+v", results)
	}
	if !results[0].Passed || !strings.Contains(results[0].Name, "metron") {
		t.Fatalf("expected metron first and passing, got %+v", results[0])
	}
	if results[1].Passed || !strings.HasPrefix(results[1].Detail, "configuration") {
		t.Fatalf("expected comicvine configuration failure, got %+v", results[1])
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	if results := RunAll(nil, nil); results != nil {
		t.Fatalf("expected nil for nil config, got %+v", results)
	}
}

func TestRunAll_MinimalConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	results := RunAll(cfg, nil)
	if len(results) != 2 {
		t.Fatalf("expected directory checks only, got %+v", results)
	}
	if failed := Failed(results); len(failed) != 0 {
		t.Fatalf("expected directories to pass, got %+v", failed)
	}
}
