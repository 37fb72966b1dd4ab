package changeset

import (
	"math"
	"strconv"
	"strings"

	"shortbox/internal/comicinfo"
	"shortbox/internal/filename"
	"shortbox/internal/sources"
)

const (
	seriesWeight = 0.6
	issueWeight  = 0.4
)

var creditFields = []struct {
	field comicinfo.Field
	roles []string
}{
	{comicinfo.FieldWriter, []string{"writer", "script", "story", "plot", "author"}},
	{comicinfo.FieldPenciller, []string{"pencil", "artist", "art"}},
	{comicinfo.FieldInker, []string{"ink", "artist", "art"}},
	{comicinfo.FieldColorist, []string{"color", "colour"}},
	{comicinfo.FieldLetterer, []string{"letter"}},
	{comicinfo.FieldCoverArtist, []string{"cover"}},
	{comicinfo.FieldEditor, []string{"editor"}},
	{comicinfo.FieldTranslator, []string{"translat"}},
}

// Propose builds the metadata a file should carry for the given series and,
// when known, its matched issue. Without an issue only series-level fields
// are proposed.
func Propose(series sources.SeriesMatch, issue *sources.Issue) comicinfo.Metadata {
	var md comicinfo.Metadata
	md.Series = strings.TrimSpace(series.Name)
	md.Publisher = strings.TrimSpace(series.Publisher)
	if series.StartYear > 0 {
		md.Volume = strconv.Itoa(series.StartYear)
	}
	if series.IssueCount > 0 {
		md.Count = strconv.Itoa(series.IssueCount)
	}
	if strings.EqualFold(series.SeriesType, "manga") {
		md.Manga = "Yes"
	}
	md.Web = series.SiteURL
	md.Notes = notes(series, issue)

	if issue == nil {
		md.Summary = series.Description
		md.Characters = comicinfo.JoinList(series.Characters)
		md.Locations = comicinfo.JoinList(series.Locations)
		return md
	}

	md.Number = strings.TrimSpace(issue.Number)
	md.Title = strings.TrimSpace(issue.Title)
	md.Summary = issue.Summary
	if issue.SiteURL != "" {
		md.Web = issue.SiteURL
	}
	md.Year, md.Month, md.Day = issue.DateParts()
	for _, cf := range creditFields {
		md.Set(cf.field, comicinfo.JoinList(creditsFor(issue.Credits, cf.roles)))
	}
	md.Characters = comicinfo.JoinList(issue.Characters)
	md.Teams = comicinfo.JoinList(issue.Teams)
	md.Locations = comicinfo.JoinList(issue.Locations)
	md.StoryArc = comicinfo.JoinList(issue.StoryArcs)
	return md
}

func creditsFor(credits []sources.Credit, roles []string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, c := range credits {
		role := strings.ToLower(c.Role)
		for _, want := range roles {
			if !roleMatches(role, want) {
				continue
			}
			key := strings.ToLower(strings.TrimSpace(c.Name))
			if _, ok := seen[key]; key != "" && !ok {
				seen[key] = struct{}{}
				out = append(out, strings.TrimSpace(c.Name))
			}
			break
		}
	}
	return out
}

// roleMatches treats the bare "art"/"artist" roles as whole words so that
// "cover artist" does not land in the pencils.
func roleMatches(role, want string) bool {
	if want == "art" || want == "artist" {
		for _, part := range strings.FieldsFunc(role, func(r rune) bool { return r == ',' || r == '/' || r == ';' }) {
			if strings.TrimSpace(part) == want {
				return true
			}
		}
		return false
	}
	return strings.Contains(role, want)
}

func notes(series sources.SeriesMatch, issue *sources.Issue) string {
	var b strings.Builder
	b.WriteString("Tagged with shortbox using ")
	b.WriteString(series.Source)
	b.WriteString(" series ")
	b.WriteString(series.SourceID)
	if issue != nil && issue.SourceID != "" {
		b.WriteString(", issue ")
		b.WriteString(issue.SourceID)
	}
	return b.String()
}

// MatchIssue finds the issue a parsed filename refers to and reports how
// sure the match is: 1 for a number match, 0.5 for a lone one-shot, 0 for
// none. Files without an issue number fall back to their volume number,
// which is how manga volumes are numbered.
func MatchIssue(issues []sources.Issue, parsed filename.Parsed) (*sources.Issue, float64) {
	number := filename.NormalizeNumber(parsed.Number)
	if number == "" {
		number = filename.NormalizeNumber(parsed.Volume)
	}
	if number != "" {
		for i := range issues {
			if filename.NormalizeNumber(issues[i].Number) == number {
				issue := issues[i]
				return &issue, 1
			}
		}
		return nil, 0
	}
	if len(issues) == 1 {
		issue := issues[0]
		return &issue, 0.5
	}
	return nil, 0
}

// FileConfidence combines series and issue match strength for one file.
func FileConfidence(seriesConfidence, issueScore float64) float64 {
	v := seriesWeight*seriesConfidence + issueWeight*issueScore
	v = math.Max(0, math.Min(1, v))
	return math.Round(v*10000) / 10000
}
