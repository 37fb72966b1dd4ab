package apply_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"shortbox/internal/apply"
	"shortbox/internal/changeset"
	"shortbox/internal/comicinfo"
	"shortbox/internal/jobstore"
	"shortbox/internal/seriesmarker"
	"shortbox/internal/sources"
	"shortbox/internal/testsupport"
)

func publisherSet(path string) changeset.ChangeSet {
	return changeset.Compute(changeset.Input{
		FileID:   filepath.Base(path),
		Path:     path,
		Current:  comicinfo.Metadata{Series: "Batman", Publisher: "DC"},
		Proposed: comicinfo.Metadata{Series: "Batman", Publisher: "DC Comics"},
	})
}

func TestApplyWritesApprovedProposal(t *testing.T) {
	files := testsupport.NewMemoryArchives()
	files.Put("/lib/a.cbz", comicinfo.Metadata{Series: "Batman", Publisher: "DC", PageCount: "24"})

	cs := publisherSet("/lib/a.cbz")
	if err := cs.Approve(comicinfo.FieldPublisher, true); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	res := apply.New(files, apply.Options{}).Run(context.Background(), apply.Request{ChangeSets: []changeset.ChangeSet{cs}}, nil)
	if res.Successful != 1 || res.Failed != 0 {
		t.Fatalf("unexpected result %+v", res)
	}
	md, _ := files.Get("/lib/a.cbz")
	if md.Publisher != "DC Comics" {
		t.Fatalf("expected proposal written, got %q", md.Publisher)
	}
	if md.PageCount != "24" {
		t.Fatalf("untouched fields must survive, got page count %q", md.PageCount)
	}
}

func TestApplyWritesEditedValue(t *testing.T) {
	files := testsupport.NewMemoryArchives()
	files.Put("/lib/a.cbz", comicinfo.Metadata{Series: "Batman", Publisher: "DC"})

	cs := publisherSet("/lib/a.cbz")
	if err := cs.EditField(comicinfo.FieldPublisher, changeset.SetTo("DC Comics Inc")); err != nil {
		t.Fatalf("EditField: %v", err)
	}
	if err := cs.Approve(comicinfo.FieldPublisher, true); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	apply.New(files, apply.Options{}).Run(context.Background(), apply.Request{ChangeSets: []changeset.ChangeSet{cs}}, nil)
	if md, _ := files.Get("/lib/a.cbz"); md.Publisher != "DC Comics Inc" {
		t.Fatalf("expected edited value, got %q", md.Publisher)
	}
}

func TestApplySkipsFilesWithoutPendingChanges(t *testing.T) {
	files := testsupport.NewMemoryArchives()
	files.Put("/lib/a.cbz", comicinfo.Metadata{Series: "Batman", Publisher: "DC"})
	files.Put("/lib/b.cbz", comicinfo.Metadata{Series: "Batman", Publisher: "DC"})

	unapproved := publisherSet("/lib/a.cbz")
	rejected := publisherSet("/lib/b.cbz")
	_, _ = rejected.AcceptAll()
	rejected.Reject()

	var phases []jobstore.ApplyPhase
	res := apply.New(files, apply.Options{CreateSeriesMarker: true}).Run(context.Background(),
		apply.Request{ChangeSets: []changeset.ChangeSet{unapproved, rejected}},
		func(p jobstore.ApplyProgress) { phases = append(phases, p.Phase) })

	if res.Successful != 0 || res.Failed != 0 || len(res.Files) != 0 {
		t.Fatalf("expected no-op, got %+v", res)
	}
	if files.Writes("/lib/a.cbz") != 0 || files.Writes("/lib/b.cbz") != 0 {
		t.Fatal("files without pending changes were written")
	}
	if len(phases) != 1 || phases[0] != jobstore.PhaseDone {
		t.Fatalf("expected only the done phase, got %v", phases)
	}
}

func TestApplyIsolatesFailures(t *testing.T) {
	files := testsupport.NewMemoryArchives()
	for _, p := range []string{"/lib/a.cbz", "/lib/b.cbz", "/lib/c.cbz"} {
		files.Put(p, comicinfo.Metadata{Series: "Batman", Publisher: "DC"})
	}
	files.FailWrites("/lib/b.cbz", errors.New("disk full"))

	var sets []changeset.ChangeSet
	for _, p := range []string{"/lib/a.cbz", "/lib/b.cbz", "/lib/c.cbz"} {
		cs := publisherSet(p)
		_, _ = cs.AcceptAll()
		sets = append(sets, cs)
	}

	var progress []jobstore.ApplyProgress
	res := apply.New(files, apply.Options{}).Run(context.Background(), apply.Request{ChangeSets: sets},
		func(p jobstore.ApplyProgress) { progress = append(progress, p) })

	if res.Successful != 2 || res.Failed != 1 {
		t.Fatalf("unexpected counts %+v", res)
	}
	if res.Files[1].Success || res.Files[1].Error == "" {
		t.Fatalf("expected error detail for b, got %+v", res.Files[1])
	}
	if md, _ := files.Get("/lib/c.cbz"); md.Publisher != "DC Comics" {
		t.Fatal("file after the failure was not written")
	}
	if progress[0].Phase != jobstore.PhaseWriting || progress[0].Current != 1 || progress[0].Total != 3 {
		t.Fatalf("unexpected first progress %+v", progress[0])
	}
}

func TestApplyCancelledMarksRemainingFailed(t *testing.T) {
	files := testsupport.NewMemoryArchives()
	files.Put("/lib/a.cbz", comicinfo.Metadata{Publisher: "DC"})
	cs := publisherSet("/lib/a.cbz")
	_, _ = cs.AcceptAll()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := apply.New(files, apply.Options{}).Run(ctx, apply.Request{ChangeSets: []changeset.ChangeSet{cs}}, nil)
	if res.Failed != 1 || res.Files[0].Error != "cancelled" {
		t.Fatalf("expected cancelled failure, got %+v", res)
	}
	if files.Writes("/lib/a.cbz") != 0 {
		t.Fatal("cancelled apply wrote a file")
	}
}

func TestApplyConvertsZipAndWritesMarker(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "Batman")
	zipPath := filepath.Join(dir, "Batman 001 (2011).zip")
	testsupport.WriteArchive(t, zipPath, &comicinfo.Metadata{Series: "Batman", Publisher: "DC"})

	cs := publisherSet(zipPath)
	_, _ = cs.AcceptAll()
	series := sources.SeriesMatch{Source: "comicvine", SourceID: "42721", Name: "Batman", StartYear: 2011, Publisher: "DC Comics"}

	var phases []jobstore.ApplyPhase
	res := apply.New(comicinfo.NewArchive(true), apply.Options{CreateSeriesMarker: true}).Run(context.Background(),
		apply.Request{ChangeSets: []changeset.ChangeSet{cs}, Markers: []apply.Marker{{Folder: dir, Series: series}}},
		func(p jobstore.ApplyProgress) { phases = append(phases, p.Phase) })

	if res.Successful != 1 {
		t.Fatalf("apply failed: %+v", res)
	}
	cbz := filepath.Join(dir, "Batman 001 (2011).cbz")
	if res.Files[0].Path != cbz {
		t.Fatalf("expected converted path, got %q", res.Files[0].Path)
	}
	if _, err := os.Stat(zipPath); !os.IsNotExist(err) {
		t.Fatalf("zip should be gone after conversion: %v", err)
	}
	md, found, err := comicinfo.NewArchive(false).Read(cbz)
	if err != nil || !found || md.Publisher != "DC Comics" {
		t.Fatalf("unexpected metadata %+v found=%v err=%v", md, found, err)
	}
	marker, found, err := seriesmarker.Read(dir)
	if err != nil || !found || marker.Metadata.SourceID != "42721" {
		t.Fatalf("expected series marker, got %+v found=%v err=%v", marker, found, err)
	}
	want := []jobstore.ApplyPhase{jobstore.PhaseConverting, jobstore.PhaseWriting, jobstore.PhaseMarker, jobstore.PhaseDone}
	if len(phases) != len(want) {
		t.Fatalf("unexpected phases %v", phases)
	}
	for i := range want {
		if phases[i] != want[i] {
			t.Fatalf("unexpected phases %v", phases)
		}
	}
}
