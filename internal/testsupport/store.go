package testsupport

import (
	"context"
	"testing"

	"shortbox/internal/config"
	"shortbox/internal/grouping"
	"shortbox/internal/jobstore"
)

// MustOpenStore opens a jobstore.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *jobstore.Store {
	t.Helper()

	store, err := jobstore.Open(cfg)
	if err != nil {
		t.Fatalf("jobstore.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewJob creates a job in the options step for the given files.
func NewJob(t testing.TB, store *jobstore.Store, files ...grouping.File) *jobstore.Job {
	t.Helper()

	job := &jobstore.Job{Step: jobstore.StepOptions, Files: files}
	if err := store.Create(context.Background(), job); err != nil {
		t.Fatalf("store.Create: %v", err)
	}
	return job
}
