package jobstore_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"

	_ "modernc.org/sqlite"

	"shortbox/internal/grouping"
	"shortbox/internal/jobstore"
	"shortbox/internal/services"
	"shortbox/internal/sources"
	"shortbox/internal/testsupport"
)

func TestJobStateSurvivesReopen(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := jobstore.Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	ctx := context.Background()

	job := testsupport.NewJob(t, store,
		grouping.File{ID: "1", Path: "/comics/Batman/Batman 001 (2011).cbz"},
		grouping.File{ID: "2", Path: "/comics/Saga/Saga 001 (2012).cbz"},
	)
	selected := sources.SeriesMatch{Source: "comicvine", SourceID: "42721", Name: "Batman", Confidence: 0.97}
	saved, err := store.Mutate(ctx, job.ID, func(j *jobstore.Job) error {
		j.Step = jobstore.StepSeriesApproval
		j.Groups = []jobstore.SeriesGroup{
			{Name: "Batman (2011)", Status: jobstore.GroupMatched, Selected: &selected, Results: []sources.SeriesMatch{selected}},
			{Name: "Saga (2012)", Status: jobstore.GroupPending},
		}
		j.CurrentGroup = 1
		j.Log(jobstore.ActivityInfo, "Approved Batman (2011)")
		return nil
	})
	if err != nil {
		t.Fatalf("Mutate: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened := testsupport.MustOpenStore(t, cfg)
	got, err := reopened.Get(ctx, job.ID)
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if got.CurrentGroup != 1 || got.Step != jobstore.StepSeriesApproval {
		t.Fatalf("unexpected state after reopen: step=%s index=%d", got.Step, got.CurrentGroup)
	}
	if !reflect.DeepEqual(got.Groups, saved.Groups) || !reflect.DeepEqual(got.Activity, saved.Activity) {
		t.Fatalf("groups or activity changed across reopen:\n%+v\n%+v", got, saved)
	}

	again, err := reopened.Get(ctx, job.ID)
	if err != nil {
		t.Fatalf("second Get: %v", err)
	}
	first, _ := json.Marshal(got)
	second, _ := json.Marshal(again)
	if string(first) != string(second) {
		t.Fatal("repeated reads returned different content")
	}
}

func TestMutateSerializesConcurrentWriters(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	job := testsupport.NewJob(t, store)
	ctx := context.Background()

	const writers = 20
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := store.Mutate(ctx, job.ID, func(j *jobstore.Job) error {
				j.Log(jobstore.ActivityInfo, fmt.Sprintf("writer %d", n))
				return nil
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("Mutate: %v", err)
		}
	}

	got, err := store.Get(ctx, job.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got.Activity) != writers {
		t.Fatalf("expected %d activity entries, got %d", writers, len(got.Activity))
	}
}

func TestMutateErrorLeavesJobUnchanged(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	job := testsupport.NewJob(t, store)
	ctx := context.Background()

	stateErr := services.Wrap(services.ErrInvalidState, "test", "approve", "not now", nil)
	_, err := store.Mutate(ctx, job.ID, func(j *jobstore.Job) error {
		j.Step = jobstore.StepApplying
		return stateErr
	})
	if !errors.Is(err, services.ErrInvalidState) {
		t.Fatalf("expected state error, got %v", err)
	}
	got, err := store.Get(ctx, job.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Step != jobstore.StepOptions || !got.UpdatedAt.Equal(job.UpdatedAt) {
		t.Fatalf("failed mutation was persisted: %+v", got)
	}
}

func TestGetMissingJob(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	if _, err := store.Get(context.Background(), "missing"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := store.Mutate(context.Background(), "missing", func(*jobstore.Job) error { return nil }); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found from Mutate, got %v", err)
	}
}

func TestArchiveAndDelete(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	kept := testsupport.NewJob(t, store, grouping.File{ID: "1", Path: "/a.cbz"})
	archived := testsupport.NewJob(t, store)

	if _, err := store.Archive(ctx, archived.ID); err != nil {
		t.Fatalf("Archive: %v", err)
	}
	active, err := store.List(ctx, false)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(active) != 1 || active[0].ID != kept.ID || active[0].FileCount != 1 {
		t.Fatalf("unexpected active list: %+v", active)
	}
	all, err := store.List(ctx, true)
	if err != nil {
		t.Fatalf("List all: %v", err)
	}
	if len(all) != 2 || all[1].ArchivedAt == nil {
		t.Fatalf("expected archived job in full list: %+v", all)
	}
	if _, err := store.Get(ctx, archived.ID); err != nil {
		t.Fatalf("archived job should stay readable: %v", err)
	}

	if err := store.Delete(ctx, kept.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := store.Delete(ctx, kept.ID); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}

func TestSelectionsUpsert(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	if sel, err := store.FindSelection(ctx, "/comics/Batman", "batman|2011"); err != nil || sel != nil {
		t.Fatalf("expected no selection, got %+v (%v)", sel, err)
	}
	first := jobstore.Selection{Folder: "/comics/Batman", QueryKey: "batman|2011",
		Series: sources.SeriesMatch{Source: "comicvine", SourceID: "1", Name: "Batman"}}
	if err := store.SaveSelection(ctx, first); err != nil {
		t.Fatalf("SaveSelection: %v", err)
	}
	second := first
	second.Series = sources.SeriesMatch{Source: "metron", SourceID: "7", Name: "Batman"}
	second.JobID = "job-2"
	if err := store.SaveSelection(ctx, second); err != nil {
		t.Fatalf("SaveSelection again: %v", err)
	}
	got, err := store.FindSelection(ctx, "/comics/Batman", "batman|2011")
	if err != nil || got == nil {
		t.Fatalf("FindSelection: %+v (%v)", got, err)
	}
	if got.Series.Source != "metron" || got.JobID != "job-2" {
		t.Fatalf("expected latest selection, got %+v", got)
	}
}

func TestOpenRejectsOtherSchemaVersion(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	store.Close()

	db, err := sql.Open("sqlite", cfg.DatabasePath())
	if err != nil {
		t.Fatalf("open raw db: %v", err)
	}
	if _, err := db.Exec("UPDATE schema_version SET version = 99"); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	db.Close()

	if _, err := jobstore.Open(cfg); !errors.Is(err, jobstore.ErrSchemaMismatch) {
		t.Fatalf("expected schema mismatch, got %v", err)
	}
}
