package main

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"shortbox/internal/sources"
	"shortbox/internal/testsupport"
)

func TestCheckSourcesSearchesReadySources(t *testing.T) {
	cv := testsupport.NewFakeSource("comicvine",
		sources.SeriesMatch{SourceID: "42721", Name: "Batman", StartYear: 2011},
		sources.SeriesMatch{SourceID: "796", Name: "Batman", StartYear: 1940},
	)
	registry := sources.NewRegistry([]string{"comicvine"}, cv)

	checks := checkSources(context.Background(), registry, "Batman", time.Second)
	if len(checks) != 1 {
		t.Fatalf("expected one check, got %+v", checks)
	}
	if !checks[0].Ready || checks[0].Problem != "" || checks[0].Results != 2 {
		t.Fatalf("unexpected check %+v", checks[0])
	}

	checks = checkSources(context.Background(), registry, "", time.Second)
	if checks[0].Results != 0 || checks[0].Elapsed != 0 {
		t.Fatalf("expected no search without a query, got %+v", checks[0])
	}
}

func TestSourcesCheckCommand(t *testing.T) {
	t.Setenv("COMICVINE_API_KEY", "")
	cfg := testsupport.NewConfig(t, testsupport.WithPriority("comicvine", "metron"))
	cfg.Sources.ComicVine.APIKey = ""
	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)

	out, _, err := runCLI(t, []string{"sources", "check", "--json"}, configPath)
	if err != nil {
		t.Fatalf("sources check: %v", err)
	}
	var checks []sourceCheck
	if err := json.Unmarshal([]byte(out), &checks); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	ready := map[string]bool{}
	for _, c := range checks {
		ready[c.Name] = c.Ready
	}
	if ready["comicvine"] || !ready["metron"] {
		t.Fatalf("unexpected readiness %v", ready)
	}
}
