package comicinfo_test

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"shortbox/internal/comicinfo"
)

func TestArchiveReadMissingMetadata(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Batman 001 (2011).cbz")
	if err := comicinfo.WriteNewArchive(path, map[string][]byte{"001.jpg": []byte("page")}, nil); err != nil {
		t.Fatalf("WriteNewArchive: %v", err)
	}
	_, found, err := comicinfo.NewArchive(false).Read(path)
	if err != nil {
		t.Fatalf("Read returned error: %v", err)
	}
	if found {
		t.Fatal("expected no embedded metadata")
	}
}

func TestArchiveWritePreservesPagesAndReplacesMetadata(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Batman 001 (2011).cbz")
	initial := &comicinfo.Metadata{Series: "Batman", Publisher: "DC"}
	pages := map[string][]byte{"001.jpg": []byte("page-one"), "002.jpg": []byte("page-two")}
	if err := comicinfo.WriteNewArchive(path, pages, initial); err != nil {
		t.Fatalf("WriteNewArchive: %v", err)
	}

	archive := comicinfo.NewArchive(false)
	md, found, err := archive.Read(path)
	if err != nil || !found {
		t.Fatalf("Read: found=%v err=%v", found, err)
	}
	if md.Publisher != "DC" {
		t.Fatalf("unexpected publisher %q", md.Publisher)
	}

	md.Publisher = "DC Comics"
	md.Number = "1"
	if err := archive.Write(path, md); err != nil {
		t.Fatalf("Write: %v", err)
	}

	updated, found, err := archive.Read(path)
	if err != nil || !found {
		t.Fatalf("Read after write: found=%v err=%v", found, err)
	}
	if updated.Publisher != "DC Comics" || updated.Number != "1" || updated.Series != "Batman" {
		t.Fatalf("unexpected metadata after write: %+v", updated)
	}

	reader, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("open rewritten archive: %v", err)
	}
	defer reader.Close()
	contents := map[string]string{}
	for _, f := range reader.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open entry: %v", err)
		}
		data, _ := io.ReadAll(rc)
		rc.Close()
		contents[f.Name] = string(data)
	}
	if contents["001.jpg"] != "page-one" || contents["002.jpg"] != "page-two" {
		t.Fatalf("pages not preserved: %v", contents)
	}
	if strings.Count(strings.Join(keys(contents), ","), "ComicInfo.xml") != 1 {
		t.Fatalf("expected exactly one ComicInfo.xml entry, got %v", keys(contents))
	}

	leftovers, _ := filepath.Glob(filepath.Join(dir, ".shortbox-*"))
	if len(leftovers) != 0 {
		t.Fatalf("temp files left behind: %v", leftovers)
	}
}

func TestArchiveWriteKeepsUnknownElements(t *testing.T) {
	path := filepath.Join(t.TempDir(), "issue.cbz")
	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	zw := zip.NewWriter(file)
	w, _ := zw.Create("ComicInfo.xml")
	io.WriteString(w, `<?xml version="1.0"?><ComicInfo><Series>Saga</Series><Pages><Page Image="0" Type="FrontCover"/></Pages></ComicInfo>`)
	zw.Close()
	file.Close()

	archive := comicinfo.NewArchive(false)
	md, _, err := archive.Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	md.Writer = "Brian K. Vaughan"
	if err := archive.Write(path, md); err != nil {
		t.Fatalf("Write: %v", err)
	}

	reader, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer reader.Close()
	rc, _ := reader.File[0].Open()
	data, _ := io.ReadAll(rc)
	rc.Close()
	for _, fragment := range []string{"<Writer>Brian K. Vaughan</Writer>", "FrontCover", "<Series>Saga</Series>"} {
		if !strings.Contains(string(data), fragment) {
			t.Fatalf("expected %q in %s", fragment, data)
		}
	}
}

func TestArchiveConvertZip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Saga 01.zip")
	if err := comicinfo.WriteNewArchive(path, map[string][]byte{"a.jpg": []byte("x")}, nil); err != nil {
		t.Fatalf("WriteNewArchive: %v", err)
	}
	archive := comicinfo.NewArchive(true)
	if !archive.NeedsConversion(path) {
		t.Fatal("expected zip to need conversion")
	}
	converted, err := archive.Convert(path)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if filepath.Ext(converted) != ".cbz" {
		t.Fatalf("unexpected converted path %q", converted)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected original zip to be gone, stat err=%v", err)
	}
	if comicinfo.NewArchive(false).NeedsConversion(path) {
		t.Fatal("conversion disabled archive should not convert")
	}
}

func keys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
