package grouping

import (
	"errors"
	"path/filepath"
	"testing"

	"shortbox/internal/seriesmarker"
)

func noMarkers(string) (*seriesmarker.Marker, bool, error) { return nil, false, nil }

func TestPartitionGroupsBySeriesAndYear(t *testing.T) {
	files := []File{
		{ID: "1", Path: "/lib/Batman/Batman 001 (2011).cbz"},
		{ID: "2", Path: "/lib/Batman/Batman 002 (2011).cbz"},
		{ID: "3", Path: "/lib/Batman/Batman 001 (1940).cbz"},
	}
	res := Partition(files, Options{ReadMarker: noMarkers})
	if len(res.Groups) != 2 {
		t.Fatalf("expected two groups, got %+v", res.Groups)
	}
	var modern *Group
	for i := range res.Groups {
		if res.Groups[i].Query.Year == 2011 {
			modern = &res.Groups[i]
		}
	}
	if modern == nil || len(modern.Members) != 2 {
		t.Fatalf("expected the 2011 files in one group with fileCount=2, got %+v", res.Groups)
	}
	if modern.Query.Series != "Batman" || modern.Name != "Batman (2011)" {
		t.Fatalf("unexpected query %+v name %q", modern.Query, modern.Name)
	}
}

func TestPartitionNormalizesCaseAndWhitespace(t *testing.T) {
	files := []File{
		{ID: "1", Path: "/in/saga 001 (2012).cbz"},
		{ID: "2", Path: "/in/SAGA  002 (2012).cbz"},
	}
	res := Partition(files, Options{ReadMarker: noMarkers})
	if len(res.Groups) != 1 || len(res.Groups[0].Members) != 2 {
		t.Fatalf("expected one group, got %+v", res.Groups)
	}
	if res.Groups[0].Name != "Saga (2012)" {
		t.Fatalf("unexpected display name %q", res.Groups[0].Name)
	}
}

func TestYearlessFilesJoinUniqueYearGroup(t *testing.T) {
	files := []File{
		{ID: "1", Path: "/in/Saga 001 (2012).cbz"},
		{ID: "2", Path: "/in/Saga 002.cbz"},
		{ID: "3", Path: "/in/Monstress 001.cbz"},
	}
	res := Partition(files, Options{ReadMarker: noMarkers})
	if len(res.Groups) != 2 {
		t.Fatalf("expected two groups, got %+v", res.Groups)
	}
	for _, g := range res.Groups {
		if g.Query.Series == "Saga" && len(g.Members) != 2 {
			t.Fatalf("expected yearless Saga to join the 2012 group, got %+v", g)
		}
	}
}

func TestMarkerForcesFolderIntoOneGroup(t *testing.T) {
	markerDir := "/lib/Batman (2011)"
	marker := &seriesmarker.Marker{Metadata: seriesmarker.Metadata{Name: "Batman", Year: 2011, Source: "comicvine", SourceID: "42721"}}
	read := func(dir string) (*seriesmarker.Marker, bool, error) {
		if dir == markerDir {
			return marker, true, nil
		}
		return nil, false, nil
	}
	files := []File{
		{ID: "1", Path: filepath.Join(markerDir, "Batman 001 (2011).cbz")},
		{ID: "2", Path: filepath.Join(markerDir, "Batman Annual 001 (2012).cbz")},
		{ID: "3", Path: filepath.Join(markerDir, "scan.cbz")},
		{ID: "4", Path: "/lib/Other/Saga 001 (2012).cbz"},
	}

	res := Partition(files, Options{ReadMarker: read})
	if len(res.Groups) != 2 {
		t.Fatalf("expected marker group plus Saga, got %+v", res.Groups)
	}
	forced := res.Groups[0]
	if forced.Marker == nil || len(forced.Members) != 3 || forced.ParseFailed {
		t.Fatalf("unexpected marker group %+v", forced)
	}
	if len(res.Warnings) != 0 {
		t.Fatalf("files under a marker should not warn, got %v", res.Warnings)
	}

	mixed := Partition(files, Options{ReadMarker: read, MixedSeries: true})
	if len(mixed.Groups) != 4 {
		t.Fatalf("mixed mode should ignore the marker, got %d groups", len(mixed.Groups))
	}
}

func TestParseFailuresAreGroupedWithWarning(t *testing.T) {
	res := Partition([]File{{ID: "1", Path: "/in/scan_final.cbz"}}, Options{ReadMarker: noMarkers})
	if len(res.Groups) != 1 || !res.Groups[0].ParseFailed {
		t.Fatalf("expected a flagged best-effort group, got %+v", res.Groups)
	}
	if len(res.Warnings) != 1 {
		t.Fatalf("expected a warning, got %v", res.Warnings)
	}
}

func TestUnreadableMarkerWarnsAndFallsBack(t *testing.T) {
	read := func(string) (*seriesmarker.Marker, bool, error) { return nil, false, errors.New("bad json") }
	res := Partition([]File{{ID: "1", Path: "/in/Saga 001 (2012).cbz"}}, Options{ReadMarker: read})
	if len(res.Groups) != 1 || res.Groups[0].Marker != nil {
		t.Fatalf("unexpected groups %+v", res.Groups)
	}
	if len(res.Warnings) != 1 {
		t.Fatalf("expected marker warning, got %v", res.Warnings)
	}
}

func TestGroupsOrderedByFolderThenName(t *testing.T) {
	files := []File{
		{ID: "1", Path: "/b/Alpha 001 (2001).cbz"},
		{ID: "2", Path: "/a/Zeta 001 (2001).cbz"},
		{ID: "3", Path: "/a/Beta 001 (2001).cbz"},
	}
	res := Partition(files, Options{ReadMarker: noMarkers})
	got := []string{res.Groups[0].Query.Series, res.Groups[1].Query.Series, res.Groups[2].Query.Series}
	if got[0] != "Beta" || got[1] != "Zeta" || got[2] != "Alpha" {
		t.Fatalf("unexpected order %v", got)
	}
}
