// Package gcd implements the Grand Comics Database source adapter.
package gcd

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"shortbox/internal/config"
	"shortbox/internal/services"
	"shortbox/internal/sources"
)

// Name is the source key used in configuration and provenance maps.
const Name = config.SourceGCD

const apiPageSize = 100

var (
	seriesIDPattern    = regexp.MustCompile(`/series/(\d+)/?`)
	issueIDPattern     = regexp.MustCompile(`/issue/(\d+)/?`)
	publisherIDPattern = regexp.MustCompile(`/publisher/(\d+)/?`)
)

// Client talks to the GCD REST API with basic authentication.
type Client struct {
	username string
	password string
	req      *sources.Requester
}

var _ sources.Adapter = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.req.Client = client
		}
	}
}

// New creates a GCD client from its settings block.
func New(settings config.Source, opts ...Option) *Client {
	c := &Client{
		username: strings.TrimSpace(settings.Username),
		password: settings.Password,
		req:      sources.NewRequester(Name, settings),
	}
	c.req.Prepare = func(r *http.Request) { r.SetBasicAuth(c.username, c.password) }
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name implements sources.Adapter.
func (c *Client) Name() string { return Name }

// Validate implements sources.Adapter.
func (c *Client) Validate() error {
	if c.username == "" || c.password == "" {
		return sources.MissingCredential(Name, "username and password", "GCD_USERNAME/GCD_PASSWORD")
	}
	return nil
}

type page[T any] struct {
	Count   int    `json:"count"`
	Next    string `json:"next"`
	Results []T    `json:"results"`
}

type series struct {
	APIURL           string   `json:"api_url"`
	Name             string   `json:"name"`
	YearBegan        int      `json:"year_began"`
	YearEnded        *int     `json:"year_ended"`
	Publisher        string   `json:"publisher"`
	Notes            string   `json:"notes"`
	IssueDescriptors []string `json:"issue_descriptors"`
	ActiveIssues     []string `json:"active_issues"`
}

type publisher struct {
	Name string `json:"name"`
}

// Search implements sources.Adapter.
func (c *Client) Search(ctx context.Context, req sources.SearchRequest) (sources.SearchResult, error) {
	if err := c.Validate(); err != nil {
		return sources.SearchResult{}, err
	}
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return sources.SearchResult{}, services.Wrap(services.ErrValidation, Name, "search", "query must not be empty", nil)
	}
	limit := sources.Limit(req.Limit, 10, apiPageSize)
	path := "/series/name/" + url.PathEscape(query) + "/"
	if req.Year > 0 {
		path += "year/" + strconv.Itoa(req.Year) + "/"
	}
	params := url.Values{}
	params.Set("format", "json")
	params.Set("page", strconv.Itoa(req.Offset/apiPageSize+1))

	var payload page[series]
	err := c.req.GetJSON(ctx, path, params, &payload)
	if errors.Is(err, services.ErrNotFound) {
		// GCD answers 404 for a name with no series.
		return sources.SearchResult{Pagination: sources.Paginate(0, req.Offset, limit, 0)}, nil
	}
	if err != nil {
		return sources.SearchResult{}, err
	}
	start := min(req.Offset%apiPageSize, len(payload.Results))
	end := min(start+limit, len(payload.Results))
	results := make([]sources.SeriesMatch, 0, end-start)
	for _, s := range payload.Results[start:end] {
		results = append(results, s.toMatch())
	}
	return sources.SearchResult{
		Results:    results,
		Pagination: sources.Paginate(payload.Count, req.Offset, limit, len(results)),
	}, nil
}

// FetchByID implements sources.Adapter.
func (c *Client) FetchByID(ctx context.Context, id string) (*sources.SeriesMatch, error) {
	s, err := c.fetchSeries(ctx, id)
	if err != nil || s == nil {
		return nil, err
	}
	match := s.toMatch()
	if m := publisherIDPattern.FindStringSubmatch(s.Publisher); m != nil {
		var pub publisher
		// The publisher name is decoration; a failed lookup keeps the series.
		if err := c.req.GetJSON(ctx, "/publisher/"+m[1]+"/", url.Values{"format": {"json"}}, &pub); err == nil {
			match.Publisher = strings.TrimSpace(pub.Name)
		}
	}
	return &match, nil
}

// FetchIssues implements sources.Adapter.
func (c *Client) FetchIssues(ctx context.Context, seriesID string) ([]sources.Issue, error) {
	s, err := c.fetchSeries(ctx, seriesID)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, services.Wrap(services.ErrNotFound, Name, "fetch issues", "series "+seriesID+" not found", nil)
	}
	out := make([]sources.Issue, 0, len(s.ActiveIssues))
	for idx, issueURL := range s.ActiveIssues {
		issue := sources.Issue{Source: Name, SeriesID: strings.TrimSpace(seriesID)}
		if m := issueIDPattern.FindStringSubmatch(issueURL); m != nil {
			issue.SourceID = m[1]
		}
		if idx < len(s.IssueDescriptors) {
			if fields := strings.Fields(s.IssueDescriptors[idx]); len(fields) > 0 {
				issue.Number = strings.TrimPrefix(fields[0], "#")
			}
		}
		out = append(out, issue)
	}
	return out, nil
}

func (c *Client) fetchSeries(ctx context.Context, id string) (*series, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, services.Wrap(services.ErrValidation, Name, "fetch series", "id must not be empty", nil)
	}
	var s series
	err := c.req.GetJSON(ctx, "/series/"+url.PathEscape(id)+"/", url.Values{"format": {"json"}}, &s)
	if errors.Is(err, services.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (s series) toMatch() sources.SeriesMatch {
	match := sources.SeriesMatch{
		Source:      Name,
		Name:        strings.TrimSpace(s.Name),
		StartYear:   s.YearBegan,
		IssueCount:  len(s.ActiveIssues),
		SeriesType:  "comic",
		Description: strings.TrimSpace(s.Notes),
	}
	if m := seriesIDPattern.FindStringSubmatch(s.APIURL); m != nil {
		match.SourceID = m[1]
		match.SiteURL = "https://www.comics.org/series/" + m[1] + "/"
	}
	if s.YearEnded != nil {
		match.EndYear = *s.YearEnded
	}
	if !strings.HasPrefix(s.Publisher, "http") {
		match.Publisher = strings.TrimSpace(s.Publisher)
	}
	return match
}
