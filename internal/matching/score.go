package matching

import (
	"math"
	"slices"
	"strings"

	"shortbox/internal/sources"
	"shortbox/internal/textutil"
)

const (
	weightTitle      = 0.55
	weightPublisher  = 0.15
	weightYear       = 0.15
	weightIssueCount = 0.075
	weightCreators   = 0.075

	// parseFailedPenalty scales scores for groups whose filenames could not
	// be parsed, since the query is only the cleaned filename.
	parseFailedPenalty = 0.85
)

// Query is the local side of a comparison: a parsed filename group or a
// series already selected from another source.
type Query struct {
	Name        string   `json:"name"`
	Publisher   string   `json:"publisher,omitempty"`
	Year        int      `json:"year,omitempty"`
	IssueCount  int      `json:"issue_count,omitempty"`
	Creators    []string `json:"creators,omitempty"`
	ParseFailed bool     `json:"parse_failed,omitempty"`
}

// QueryFromMatch builds a query from a selected record so candidates from
// other sources are compared against the record rather than the filename.
func QueryFromMatch(m sources.SeriesMatch) Query {
	return Query{
		Name:       m.Name,
		Publisher:  m.Publisher,
		Year:       m.StartYear,
		IssueCount: m.IssueCount,
		Creators:   m.CreatorNames(),
	}
}

// YearMatch categorizes start-year proximity.
type YearMatch string

const (
	YearExact YearMatch = "exact"
	YearClose YearMatch = "close"
	YearNone  YearMatch = "none"
)

// Factors is the per-candidate breakdown behind a confidence value.
type Factors struct {
	TitleSimilarity float64   `json:"title_similarity"`
	PublisherMatch  bool      `json:"publisher_match"`
	YearMatch       YearMatch `json:"year_match"`
	IssueCountMatch bool      `json:"issue_count_match"`
	CreatorOverlap  []string  `json:"creator_overlap,omitempty"`
	AliasMatch      bool      `json:"alias_match"`
}

// Score returns the confidence in [0,1] that candidate is the series
// described by q.
func Score(q Query, candidate sources.SeriesMatch) float64 {
	score, _ := Evaluate(q, candidate)
	return score
}

// Evaluate returns the confidence together with its factor breakdown.
// Factors missing from the query do not count toward the total; factors the
// query has but the candidate lacks score zero.
func Evaluate(q Query, candidate sources.SeriesMatch) (float64, Factors) {
	var f Factors
	if strings.TrimSpace(q.Name) == "" {
		f.YearMatch = YearNone
		return 0, f
	}

	f.TitleSimilarity = textutil.TitleSimilarity(q.Name, candidate.Name)
	for _, alias := range candidate.Aliases {
		if sim := textutil.TitleSimilarity(q.Name, alias); sim > f.TitleSimilarity {
			f.TitleSimilarity = sim
			f.AliasMatch = true
		}
	}
	total := weightTitle * f.TitleSimilarity
	weights := weightTitle

	if strings.TrimSpace(q.Publisher) != "" {
		weights += weightPublisher
		f.PublisherMatch = samePublisher(q.Publisher, candidate.Publisher)
		if f.PublisherMatch {
			total += weightPublisher
		}
	}

	f.YearMatch = YearNone
	if q.Year > 0 {
		weights += weightYear
		switch diff := q.Year - candidate.StartYear; {
		case candidate.StartYear == 0:
		case diff == 0:
			f.YearMatch = YearExact
			total += weightYear
		case diff == 1 || diff == -1:
			f.YearMatch = YearClose
			total += weightYear / 2
		}
	}

	if q.IssueCount > 0 {
		weights += weightIssueCount
		f.IssueCountMatch = candidate.IssueCount == q.IssueCount
		if f.IssueCountMatch {
			total += weightIssueCount
		}
	}

	if creators := uniqueFolded(q.Creators); len(creators) > 0 {
		weights += weightCreators
		f.CreatorOverlap = creatorOverlap(creators, candidate.CreatorNames())
		total += weightCreators * float64(len(f.CreatorOverlap)) / float64(len(creators))
	}

	score := total / weights
	if q.ParseFailed {
		score *= parseFailedPenalty
	}
	return round(clamp(score)), f
}

// Rank scores every candidate against q and returns copies ordered by
// descending confidence. Ties keep the source's own order.
func Rank(q Query, candidates []sources.SeriesMatch) []sources.SeriesMatch {
	ranked := make([]sources.SeriesMatch, len(candidates))
	for i, c := range candidates {
		ranked[i] = c.WithConfidence(Score(q, c))
	}
	slices.SortStableFunc(ranked, func(a, b sources.SeriesMatch) int {
		switch {
		case a.Confidence > b.Confidence:
			return -1
		case a.Confidence < b.Confidence:
			return 1
		default:
			return 0
		}
	})
	return ranked
}

var publisherNoise = map[string]struct{}{
	"comics": {}, "comic": {}, "publishing": {}, "publications": {}, "entertainment": {},
	"inc": {}, "llc": {}, "ltd": {}, "press": {}, "group": {},
}

// samePublisher treats "DC" and "DC Comics, Inc." as the same publisher.
func samePublisher(a, b string) bool {
	ka, kb := publisherKey(a), publisherKey(b)
	return ka != "" && ka == kb
}

func publisherKey(name string) string {
	words := strings.Fields(textutil.Normalize(name))
	kept := words[:0]
	for _, w := range words {
		if _, noise := publisherNoise[w]; !noise {
			kept = append(kept, w)
		}
	}
	return strings.Join(kept, " ")
}

// creatorOverlap expects query already de-duplicated.
func creatorOverlap(query, candidate []string) []string {
	have := make(map[string]struct{}, len(candidate))
	for _, name := range candidate {
		have[textutil.Normalize(name)] = struct{}{}
	}
	var out []string
	for _, name := range query {
		if _, ok := have[textutil.Normalize(name)]; ok {
			out = append(out, name)
		}
	}
	return out
}

func uniqueFolded(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		key := textutil.Normalize(name)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, name)
	}
	return out
}

func clamp(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

func round(v float64) float64 {
	return math.Round(v*10000) / 10000
}
