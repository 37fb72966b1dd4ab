package sources

import (
	"slices"
	"strconv"
	"strings"
)

// Credit is one creator attached to a series or issue.
type Credit struct {
	Name string `json:"name"`
	Role string `json:"role,omitempty"`
}

// SeriesMatch is one candidate series returned by a source. Values are
// treated as immutable once returned; Confidence is the result of comparing
// the candidate against a particular query and is set with WithConfidence.
type SeriesMatch struct {
	Source      string   `json:"source"`
	SourceID    string   `json:"source_id"`
	Name        string   `json:"name"`
	Publisher   string   `json:"publisher,omitempty"`
	StartYear   int      `json:"start_year,omitempty"`
	EndYear     int      `json:"end_year,omitempty"`
	IssueCount  int      `json:"issue_count,omitempty"`
	SeriesType  string   `json:"series_type,omitempty"`
	Confidence  float64  `json:"confidence"`
	Description string   `json:"description,omitempty"`
	Aliases     []string `json:"aliases,omitempty"`
	Characters  []string `json:"characters,omitempty"`
	Creators    []Credit `json:"creators,omitempty"`
	Locations   []string `json:"locations,omitempty"`
	CoverURL    string   `json:"cover_url,omitempty"`
	SiteURL     string   `json:"site_url,omitempty"`
}

// Key identifies the record across sources.
func (m SeriesMatch) Key() string {
	return m.Source + ":" + m.SourceID
}

// Clone returns a copy of m that shares no slices with it.
func (m SeriesMatch) Clone() SeriesMatch {
	m.Aliases = slices.Clone(m.Aliases)
	m.Characters = slices.Clone(m.Characters)
	m.Creators = slices.Clone(m.Creators)
	m.Locations = slices.Clone(m.Locations)
	return m
}

// WithConfidence returns a copy of m carrying the given confidence.
func (m SeriesMatch) WithConfidence(confidence float64) SeriesMatch {
	m.Confidence = confidence
	return m
}

// DisplayName renders "Name (Year)" for logs and activity entries.
func (m SeriesMatch) DisplayName() string {
	if m.StartYear > 0 {
		return m.Name + " (" + strconv.Itoa(m.StartYear) + ")"
	}
	return m.Name
}

// CreatorNames lists creator names without roles.
func (m SeriesMatch) CreatorNames() []string {
	names := make([]string, 0, len(m.Creators))
	for _, credit := range m.Creators {
		if name := strings.TrimSpace(credit.Name); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// Issue is one issue (or manga volume) of a series.
type Issue struct {
	Source     string   `json:"source"`
	SourceID   string   `json:"source_id"`
	SeriesID   string   `json:"series_id"`
	Number     string   `json:"number"`
	Title      string   `json:"title,omitempty"`
	CoverDate  string   `json:"cover_date,omitempty"`
	StoreDate  string   `json:"store_date,omitempty"`
	Summary    string   `json:"summary,omitempty"`
	Credits    []Credit `json:"credits,omitempty"`
	Characters []string `json:"characters,omitempty"`
	Teams      []string `json:"teams,omitempty"`
	Locations  []string `json:"locations,omitempty"`
	StoryArcs  []string `json:"story_arcs,omitempty"`
	PageCount  int      `json:"page_count,omitempty"`
	SiteURL    string   `json:"site_url,omitempty"`
	CoverURL   string   `json:"cover_url,omitempty"`
}

// Clone returns a copy of i that shares no slices with it.
func (i Issue) Clone() Issue {
	i.Credits = slices.Clone(i.Credits)
	i.Characters = slices.Clone(i.Characters)
	i.Teams = slices.Clone(i.Teams)
	i.Locations = slices.Clone(i.Locations)
	i.StoryArcs = slices.Clone(i.StoryArcs)
	return i
}

// DateParts splits CoverDate (falling back to StoreDate) into year, month,
// and day strings. Missing parts come back empty.
func (i Issue) DateParts() (year, month, day string) {
	date := strings.TrimSpace(i.CoverDate)
	if date == "" {
		date = strings.TrimSpace(i.StoreDate)
	}
	parts := strings.SplitN(date, "-", 3)
	if len(parts) > 0 && len(parts[0]) == 4 {
		year = parts[0]
	}
	if len(parts) > 1 {
		month = strings.TrimLeft(parts[1], "0")
	}
	if len(parts) > 2 {
		day = strings.TrimLeft(parts[2], "0")
	}
	return year, month, day
}

// SearchRequest describes one paged series search.
type SearchRequest struct {
	Query  string `json:"query"`
	Year   int    `json:"year,omitempty"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
}

// CacheKey returns a stable key for the request.
func (r SearchRequest) CacheKey() string {
	var b strings.Builder
	b.WriteString(strings.ToLower(strings.TrimSpace(r.Query)))
	b.WriteString("|y=")
	b.WriteString(strconv.Itoa(r.Year))
	b.WriteString("|l=")
	b.WriteString(strconv.Itoa(r.Limit))
	b.WriteString("|o=")
	b.WriteString(strconv.Itoa(r.Offset))
	return b.String()
}

// Pagination is the cursor returned with every search page.
type Pagination struct {
	Total   int  `json:"total"`
	Offset  int  `json:"offset"`
	Limit   int  `json:"limit"`
	HasMore bool `json:"has_more"`
}

// Next returns the request for the following page.
func (p Pagination) Next(req SearchRequest) SearchRequest {
	req.Offset = p.Offset + p.Limit
	req.Limit = p.Limit
	return req
}

// SearchResult is one page of candidates.
type SearchResult struct {
	Results    []SeriesMatch `json:"results"`
	Pagination Pagination    `json:"pagination"`
}

// Clone returns a deep copy of r.
func (r SearchResult) Clone() SearchResult {
	if r.Results != nil {
		results := make([]SeriesMatch, len(r.Results))
		for i, m := range r.Results {
			results[i] = m.Clone()
		}
		r.Results = results
	}
	return r
}

// Paginate builds the cursor for a page of returned items.
func Paginate(total, offset, limit, returned int) Pagination {
	if total < offset+returned {
		total = offset + returned
	}
	return Pagination{
		Total:   total,
		Offset:  offset,
		Limit:   limit,
		HasMore: offset+returned < total,
	}
}
