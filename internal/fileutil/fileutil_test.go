package fileutil

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestScanArchivesWalksDirectories(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "Batman", "Batman 002.cbz"))
	touch(t, filepath.Join(dir, "Batman", "Batman 001.CBZ"))
	touch(t, filepath.Join(dir, "Saga", "Saga 001.zip"))
	touch(t, filepath.Join(dir, "Saga", "cover.jpg"))
	touch(t, filepath.Join(dir, ".trash", "Old 001.cbz"))
	touch(t, filepath.Join(dir, "Saga", ".Saga 002.cbz"))

	got, err := ScanArchives([]string{dir, filepath.Join(dir, "Saga")})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		filepath.Join(dir, "Batman", "Batman 001.CBZ"),
		filepath.Join(dir, "Batman", "Batman 002.cbz"),
		filepath.Join(dir, "Saga", "Saga 001.zip"),
	}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("entry %d: want %q, got %q", i, want[i], got[i])
		}
	}
}

func TestScanArchivesRejectsNonArchiveFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	touch(t, path)

	if _, err := ScanArchives([]string{path}); !errors.Is(err, ErrNotArchive) {
		t.Fatalf("expected ErrNotArchive, got %v", err)
	}
	if _, err := ScanArchives([]string{filepath.Join(dir, "missing")}); err == nil {
		t.Fatal("expected error for missing path")
	}
}
