package providers_test

import (
	"errors"
	"strings"
	"testing"

	"shortbox/internal/config"
	"shortbox/internal/services"
	"shortbox/internal/sources/providers"
)

func TestBuildRegistersEnabledSourcesInPriorityOrder(t *testing.T) {
	cfg := config.Default()
	cfg.Sources.Priority = []string{"metron", "gcd", "comicvine", "mangadex"}
	cfg.Sources.GCD.Enabled = false
	cfg.Sources.MangaDex.Enabled = true

	registry, err := providers.Build(&cfg, nil)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	if got := strings.Join(registry.Names(), ","); got != "metron,comicvine,mangadex" {
		t.Fatalf("unexpected registry order: %s", got)
	}
	primary, ok := registry.Primary()
	if !ok || primary.Name() != "metron" {
		t.Fatalf("unexpected primary: %v", primary)
	}
}

func TestBuiltAdaptersReportMissingCredentials(t *testing.T) {
	cfg := config.Default()
	registry, err := providers.Build(&cfg, nil)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	adapter, ok := registry.Get("comicvine")
	if !ok {
		t.Fatal("expected comicvine adapter")
	}
	err = adapter.Validate()
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if !strings.Contains(err.Error(), "COMICVINE_API_KEY") {
		t.Fatalf("expected actionable hint, got %v", err)
	}
}

func TestNewRejectsUnknownSource(t *testing.T) {
	if _, err := providers.New("marvel", config.Source{}); err == nil {
		t.Fatal("expected error for unknown source")
	}
}
