package workflow_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync"
	"testing"

	"shortbox/internal/changeset"
	"shortbox/internal/grouping"
	"shortbox/internal/jobstore"
	"shortbox/internal/sources"
	"shortbox/internal/testsupport"
	"shortbox/internal/workflow"
)

func TestMilestonesPublishNotifications(t *testing.T) {
	var (
		mu     sync.Mutex
		titles []string
	)
	ntfy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		titles = append(titles, r.Header.Get("Title"))
		mu.Unlock()
	}))
	defer ntfy.Close()

	cv := comicVine()
	cfg := testsupport.NewConfig(t, testsupport.WithPriority("comicvine"))
	cfg.Apply.CreateSeriesMarker = false
	cfg.Notifications.NtfyTopic = ntfy.URL
	store := testsupport.MustOpenStore(t, cfg)
	files := testsupport.NewMemoryArchives()
	manager := workflow.NewManager(cfg, store, sources.NewRegistry([]string{"comicvine"}, cv), files, nil)
	t.Cleanup(manager.Close)
	h := &harness{cfg: cfg, store: store, files: files, manager: manager, dir: t.TempDir()}
	ctx := context.Background()

	job, err := manager.Create(ctx, []grouping.File{h.file("s1", "Saga/Saga 001 (2012).cbz")}, defaultOptions())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := manager.Start(ctx, job.ID, nil); err != nil {
		t.Fatalf("Start: %v", err)
	}
	h.settle(t, job.ID, jobstore.StepSeriesApproval)
	if _, err := manager.Approve(ctx, job.ID, workflow.ApproveRequest{SeriesID: "s1"}); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	h.settle(t, job.ID, jobstore.StepFileReview)
	if _, err := manager.Batch(ctx, job.ID, workflow.BatchAcceptAll, changeset.Filter{}); err != nil {
		t.Fatalf("Batch: %v", err)
	}
	if _, err := manager.Apply(ctx, job.ID); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	h.settle(t, job.ID, jobstore.StepComplete)

	mu.Lock()
	defer mu.Unlock()
	if !slices.Contains(titles, "shortbox - Ready for Review") {
		t.Fatalf("expected a review notification, got %v", titles)
	}
	if !slices.Contains(titles, "shortbox - Metadata Applied") {
		t.Fatalf("expected an apply notification, got %v", titles)
	}
}
