// Package merge combines one series record per source into a single record
// and tracks which source supplied each field.
package merge

import (
	"slices"
	"strings"

	"shortbox/internal/sources"
)

// Field names a mergeable series attribute.
type Field string

const (
	FieldName        Field = "name"
	FieldPublisher   Field = "publisher"
	FieldStartYear   Field = "start_year"
	FieldEndYear     Field = "end_year"
	FieldIssueCount  Field = "issue_count"
	FieldSeriesType  Field = "series_type"
	FieldDescription Field = "description"
	FieldCoverURL    Field = "cover_url"
	FieldSiteURL     Field = "site_url"
	FieldAliases     Field = "aliases"
	FieldCharacters  Field = "characters"
	FieldCreators    Field = "creators"
	FieldLocations   Field = "locations"
)

// ScalarFields lists fields resolved by priority.
var ScalarFields = []Field{
	FieldName, FieldPublisher, FieldStartYear, FieldEndYear, FieldIssueCount,
	FieldSeriesType, FieldDescription, FieldCoverURL, FieldSiteURL,
}

// ArrayFields lists fields resolved by union.
var ArrayFields = []Field{FieldAliases, FieldCharacters, FieldCreators, FieldLocations}

// Contribution is a secondary record offered to the merge.
type Contribution struct {
	Record             sources.SeriesMatch `json:"record"`
	Approved           bool                `json:"approved"`
	AutoMatchCandidate bool                `json:"auto_match_candidate"`
}

// Options controls which secondaries take part and in what order.
type Options struct {
	// Priority is the static source order, highest first.
	Priority                []string
	AutoApplyHighConfidence bool
}

// Metadata is the merged series. FieldSources names the source behind every
// populated field; ArraySources lists every source that added at least one
// element to an array field.
type Metadata struct {
	Name         string                         `json:"name"`
	Publisher    string                         `json:"publisher,omitempty"`
	StartYear    int                            `json:"start_year,omitempty"`
	EndYear      int                            `json:"end_year,omitempty"`
	IssueCount   int                            `json:"issue_count,omitempty"`
	SeriesType   string                         `json:"series_type,omitempty"`
	Description  string                         `json:"description,omitempty"`
	CoverURL     string                         `json:"cover_url,omitempty"`
	SiteURL      string                         `json:"site_url,omitempty"`
	Aliases      []string                       `json:"aliases,omitempty"`
	Characters   []string                       `json:"characters,omitempty"`
	Creators     []sources.Credit               `json:"creators,omitempty"`
	Locations    []string                       `json:"locations,omitempty"`
	FieldSources map[Field]string               `json:"field_sources"`
	ArraySources map[Field][]string             `json:"array_sources,omitempty"`
	Contributors []string                       `json:"contributors"`
	Records      map[string]sources.SeriesMatch `json:"records,omitempty"`
}

// Merge builds the merged record from the primary selection and the
// secondaries. A secondary takes part when the user approved it, or when
// auto-apply is on and it is an auto-match candidate. Records are consulted
// in priority order; the first non-empty value of a scalar field wins, so an
// empty value never displaces a populated one.
func Merge(primary sources.SeriesMatch, secondaries []Contribution, opts Options) Metadata {
	records := []sources.SeriesMatch{primary}
	for _, c := range secondaries {
		if c.Record.Source == primary.Source || c.Record.Source == "" {
			continue
		}
		if c.Approved || (opts.AutoApplyHighConfidence && c.AutoMatchCandidate) {
			records = append(records, c.Record)
		}
	}
	rank := func(source string) int {
		if idx := slices.Index(opts.Priority, source); idx >= 0 {
			return idx
		}
		return len(opts.Priority)
	}
	// Stable so an unranked primary stays ahead of unranked secondaries.
	slices.SortStableFunc(records, func(a, b sources.SeriesMatch) int { return rank(a.Source) - rank(b.Source) })

	out := Metadata{
		FieldSources: make(map[Field]string),
		ArraySources: make(map[Field][]string),
		Records:      make(map[string]sources.SeriesMatch, len(records)),
	}
	for _, r := range records {
		if _, dup := out.Records[r.Source]; dup {
			continue
		}
		out.Records[r.Source] = r
		out.Contributors = append(out.Contributors, r.Source)
		out.takeString(FieldName, &out.Name, r.Name, r.Source)
		out.takeString(FieldPublisher, &out.Publisher, r.Publisher, r.Source)
		out.takeInt(FieldStartYear, &out.StartYear, r.StartYear, r.Source)
		out.takeInt(FieldEndYear, &out.EndYear, r.EndYear, r.Source)
		out.takeInt(FieldIssueCount, &out.IssueCount, r.IssueCount, r.Source)
		out.takeString(FieldSeriesType, &out.SeriesType, r.SeriesType, r.Source)
		out.takeString(FieldDescription, &out.Description, r.Description, r.Source)
		out.takeString(FieldCoverURL, &out.CoverURL, r.CoverURL, r.Source)
		out.takeString(FieldSiteURL, &out.SiteURL, r.SiteURL, r.Source)
		out.union(FieldAliases, &out.Aliases, r.Aliases, r.Source)
		out.union(FieldCharacters, &out.Characters, r.Characters, r.Source)
		out.union(FieldLocations, &out.Locations, r.Locations, r.Source)
		out.unionCredits(r.Creators, r.Source)
	}
	return out
}

func (m *Metadata) takeString(f Field, dst *string, value, source string) {
	if *dst != "" {
		return
	}
	if value = strings.TrimSpace(value); value != "" {
		*dst = value
		m.FieldSources[f] = source
	}
}

func (m *Metadata) takeInt(f Field, dst *int, value int, source string) {
	if *dst == 0 && value != 0 {
		*dst = value
		m.FieldSources[f] = source
	}
}

func (m *Metadata) union(f Field, dst *[]string, values []string, source string) {
	added := false
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || slices.ContainsFunc(*dst, func(have string) bool { return strings.EqualFold(have, v) }) {
			continue
		}
		*dst = append(*dst, v)
		added = true
	}
	m.noteArray(f, added, source)
}

func (m *Metadata) unionCredits(values []sources.Credit, source string) {
	added := false
	for _, c := range values {
		c.Name = strings.TrimSpace(c.Name)
		if c.Name == "" || slices.ContainsFunc(m.Creators, func(have sources.Credit) bool { return strings.EqualFold(have.Name, c.Name) }) {
			continue
		}
		m.Creators = append(m.Creators, c)
		added = true
	}
	m.noteArray(FieldCreators, added, source)
}

func (m *Metadata) noteArray(f Field, added bool, source string) {
	if !added {
		return
	}
	if _, ok := m.FieldSources[f]; !ok {
		m.FieldSources[f] = source
	}
	m.ArraySources[f] = append(m.ArraySources[f], source)
}

// SeriesMatch renders the merged record as a plain series record attributed
// to the source that supplied its name.
func (m Metadata) SeriesMatch() sources.SeriesMatch {
	source := m.FieldSources[FieldName]
	out := sources.SeriesMatch{
		Source:      source,
		Name:        m.Name,
		Publisher:   m.Publisher,
		StartYear:   m.StartYear,
		EndYear:     m.EndYear,
		IssueCount:  m.IssueCount,
		SeriesType:  m.SeriesType,
		Description: m.Description,
		CoverURL:    m.CoverURL,
		SiteURL:     m.SiteURL,
		Aliases:     slices.Clone(m.Aliases),
		Characters:  slices.Clone(m.Characters),
		Creators:    slices.Clone(m.Creators),
		Locations:   slices.Clone(m.Locations),
	}
	if r, ok := m.Records[source]; ok {
		out.SourceID = r.SourceID
		out.Confidence = r.Confidence
	}
	return out
}
