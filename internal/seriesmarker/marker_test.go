package seriesmarker_test

import (
	"os"
	"testing"

	"shortbox/internal/seriesmarker"
)

func TestReadMissingMarker(t *testing.T) {
	marker, found, err := seriesmarker.Read(t.TempDir())
	if err != nil {
		t.Fatalf("Read returned error: %v", err)
	}
	if found || marker != nil {
		t.Fatalf("expected no marker, got %+v", marker)
	}
}

func TestWriteThenRead(t *testing.T) {
	dir := t.TempDir()
	err := seriesmarker.Write(dir, seriesmarker.Marker{Metadata: seriesmarker.Metadata{
		Name:      "Batman",
		Publisher: "DC Comics",
		Year:      2011,
		Source:    "comicvine",
		SourceID:  "42721",
	}})
	if err != nil {
		t.Fatalf("Write returned error: %v", err)
	}
	marker, found, err := seriesmarker.Read(dir)
	if err != nil || !found {
		t.Fatalf("Read: found=%v err=%v", found, err)
	}
	if marker.Version == "" || marker.Metadata.Type != "comicSeries" {
		t.Fatalf("expected defaults to be filled, got %+v", marker)
	}
	if marker.Metadata.SourceID != "42721" || marker.Metadata.Year != 2011 {
		t.Fatalf("unexpected marker: %+v", marker.Metadata)
	}
}

func TestWriteRequiresIdentity(t *testing.T) {
	if err := seriesmarker.Write(t.TempDir(), seriesmarker.Marker{}); err == nil {
		t.Fatal("expected error for marker without source identity")
	}
}

func TestReadRejectsMalformedMarker(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(seriesmarker.Path(dir), []byte(`{"metadata":{"name":"x"}}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, _, err := seriesmarker.Read(dir); err == nil {
		t.Fatal("expected error for marker without source identity")
	}
}
