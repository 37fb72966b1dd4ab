package changeset

import (
	"testing"

	"shortbox/internal/filename"
	"shortbox/internal/sources"
)

var batman = sources.SeriesMatch{
	Source: "comicvine", SourceID: "42721", Name: "Batman", Publisher: "DC Comics",
	StartYear: 2011, IssueCount: 52, SiteURL: "https://comicvine.example/batman",
	Description: "The New 52 relaunch.", Characters: []string{"Batman"},
}

var batmanIssues = []sources.Issue{
	{Source: "comicvine", SourceID: "1001", Number: "1", Title: "Knife Trick", CoverDate: "2011-11-01",
		Credits: []sources.Credit{
			{Name: "Scott Snyder", Role: "writer"},
			{Name: "Greg Capullo", Role: "penciler, cover"},
			{Name: "Jonathan Glapion", Role: "inker"},
			{Name: "FCO Plascencia", Role: "colorist"},
			{Name: "Dustin Nguyen", Role: "Cover Artist"},
		},
		Characters: []string{"Batman", "Dick Grayson"}, StoryArcs: []string{"Court of Owls"}},
	{Source: "comicvine", SourceID: "1002", Number: "2", Title: "Trust Fall"},
	{Source: "comicvine", SourceID: "1003", Number: "12.1"},
}

func TestProposeFromIssue(t *testing.T) {
	issue := batmanIssues[0]
	md := Propose(batman, &issue)

	checks := map[string][2]string{
		"series":    {md.Series, "Batman"},
		"number":    {md.Number, "1"},
		"title":     {md.Title, "Knife Trick"},
		"volume":    {md.Volume, "2011"},
		"count":     {md.Count, "52"},
		"year":      {md.Year, "2011"},
		"month":     {md.Month, "11"},
		"day":       {md.Day, "1"},
		"writer":    {md.Writer, "Scott Snyder"},
		"penciller": {md.Penciller, "Greg Capullo"},
		"inker":     {md.Inker, "Jonathan Glapion"},
		"colorist":  {md.Colorist, "FCO Plascencia"},
		"cover":     {md.CoverArtist, "Greg Capullo, Dustin Nguyen"},
		"chars":     {md.Characters, "Batman, Dick Grayson"},
		"arc":       {md.StoryArc, "Court of Owls"},
		"notes":     {md.Notes, "Tagged with shortbox using comicvine series 42721, issue 1001"},
	}
	for name, c := range checks {
		if c[0] != c[1] {
			t.Errorf("%s: got %q want %q", name, c[0], c[1])
		}
	}
	if md.Summary != "" {
		t.Errorf("issue without summary should not borrow the series description, got %q", md.Summary)
	}
}

func TestProposeSeriesDefaults(t *testing.T) {
	md := Propose(batman, nil)
	if md.Number != "" || md.Title != "" {
		t.Fatalf("series defaults must not invent issue fields: %+v", md)
	}
	if md.Summary != batman.Description || md.Characters != "Batman" {
		t.Fatalf("expected series-level description and characters: %+v", md)
	}
	manga := Propose(sources.SeriesMatch{Source: "mangadex", SourceID: "x", Name: "Berserk", SeriesType: "manga"}, nil)
	if manga.Manga != "Yes" {
		t.Fatalf("expected manga flag, got %q", manga.Manga)
	}
}

func TestMatchIssue(t *testing.T) {
	tests := []struct {
		name      string
		file      string
		wantID    string
		wantScore float64
	}{
		{"padded number", "Batman 002 (2011).cbz", "1002", 1},
		{"decimal number", "Batman #12.10 (2011).cbz", "1003", 1},
		{"missing number", "Batman 099 (2011).cbz", "", 0},
		{"volume fallback", "Batman v1 (2011).cbz", "1001", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issue, score := MatchIssue(batmanIssues, filename.Parse(tt.file))
			gotID := ""
			if issue != nil {
				gotID = issue.SourceID
			}
			if gotID != tt.wantID || score != tt.wantScore {
				t.Fatalf("got %q/%v want %q/%v", gotID, score, tt.wantID, tt.wantScore)
			}
		})
	}

	oneShot := []sources.Issue{{SourceID: "9", Number: "1"}}
	if issue, score := MatchIssue(oneShot, filename.Parsed{Series: "Watchmen", Year: 1986}); issue == nil || score != 0.5 {
		t.Fatalf("expected one-shot fallback, got %v/%v", issue, score)
	}
}

func TestFileConfidence(t *testing.T) {
	if got := FileConfidence(0.9, 1); got != 0.94 {
		t.Fatalf("got %v", got)
	}
	if got := FileConfidence(2, 2); got != 1 {
		t.Fatalf("expected clamp to 1, got %v", got)
	}
}
