// Package metron implements the Metron (metron.cloud) source adapter.
package metron

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
const Name = config.SourceMetron

// apiPageSize is the fixed page size of Metron list endpoints.
const apiPageSize = 100

var displayYear = regexp.MustCompile(`\s*\(\d{4}\)\s*$`)

// Client talks to the Metron REST API with basic authentication.
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

// New creates a Metron client from its settings block.
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
	if c.username == "" {
		return sources.MissingCredential(Name, "username", "METRON_USERNAME")
	}
	if c.password == "" {
		return sources.MissingCredential(Name, "password", "METRON_PASSWORD")
	}
	return nil
}

type page[T any] struct {
	Count   int    `json:"count"`
	Next    string `json:"next"`
	Results []T    `json:"results"`
}

type seriesListItem struct {
	ID         int    `json:"id"`
	Series     string `json:"series"`
	YearBegan  int    `json:"year_began"`
	IssueCount int    `json:"issue_count"`
	Volume     int    `json:"volume"`
}

type named struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type seriesDetail struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	SortName    string `json:"sort_name"`
	Volume      int    `json:"volume"`
	SeriesType  *named `json:"series_type"`
	Publisher   *named `json:"publisher"`
	YearBegan   int    `json:"year_began"`
	YearEnd     int    `json:"year_end"`
	Desc        string `json:"desc"`
	IssueCount  int    `json:"issue_count"`
	ResourceURL string `json:"resource_url"`
}

type issueListItem struct {
	ID        int    `json:"id"`
	Number    string `json:"number"`
	Issue     string `json:"issue"`
	CoverDate string `json:"cover_date"`
	StoreDate string `json:"store_date"`
	Image     string `json:"image"`
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
	params := url.Values{}
	params.Set("name", query)
	if req.Year > 0 {
		params.Set("year_began", strconv.Itoa(req.Year))
	}
	params.Set("page", strconv.Itoa(req.Offset/apiPageSize+1))

	var payload page[seriesListItem]
	if err := c.req.GetJSON(ctx, "/series/", params, &payload); err != nil {
		return sources.SearchResult{}, err
	}
	start := min(req.Offset%apiPageSize, len(payload.Results))
	end := min(start+limit, len(payload.Results))
	results := make([]sources.SeriesMatch, 0, end-start)
	for _, item := range payload.Results[start:end] {
		results = append(results, sources.SeriesMatch{
			Source:     Name,
			SourceID:   strconv.Itoa(item.ID),
			Name:       strings.TrimSpace(displayYear.ReplaceAllString(item.Series, "")),
			StartYear:  item.YearBegan,
			IssueCount: item.IssueCount,
		})
	}
	return sources.SearchResult{
		Results:    results,
		Pagination: sources.Paginate(payload.Count, req.Offset, limit, len(results)),
	}, nil
}

// FetchByID implements sources.Adapter.
func (c *Client) FetchByID(ctx context.Context, id string) (*sources.SeriesMatch, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, services.Wrap(services.ErrValidation, Name, "fetch series", "id must not be empty", nil)
	}
	var detail seriesDetail
	err := c.req.GetJSON(ctx, "/series/"+url.PathEscape(id)+"/", nil, &detail)
	if errors.Is(err, services.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	match := sources.SeriesMatch{
		Source:      Name,
		SourceID:    strconv.Itoa(detail.ID),
		Name:        strings.TrimSpace(detail.Name),
		StartYear:   detail.YearBegan,
		EndYear:     detail.YearEnd,
		IssueCount:  detail.IssueCount,
		Description: strings.TrimSpace(detail.Desc),
		SiteURL:     detail.ResourceURL,
	}
	if detail.Publisher != nil {
		match.Publisher = detail.Publisher.Name
	}
	if detail.SeriesType != nil {
		match.SeriesType = strings.ToLower(detail.SeriesType.Name)
	}
	if detail.SortName != "" && !strings.EqualFold(detail.SortName, detail.Name) {
		match.Aliases = []string{detail.SortName}
	}
	return &match, nil
}

// FetchIssues implements sources.Adapter.
func (c *Client) FetchIssues(ctx context.Context, seriesID string) ([]sources.Issue, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	seriesID = strings.TrimSpace(seriesID)
	var out []sources.Issue
	for pageNum := 1; ; pageNum++ {
		params := url.Values{}
		params.Set("series_id", seriesID)
		params.Set("page", strconv.Itoa(pageNum))
		var payload page[issueListItem]
		if err := c.req.GetJSON(ctx, "/issue/", params, &payload); err != nil {
			return nil, err
		}
		for _, item := range payload.Results {
			out = append(out, sources.Issue{
				Source:    Name,
				SourceID:  strconv.Itoa(item.ID),
				SeriesID:  seriesID,
				Number:    strings.TrimSpace(item.Number),
				CoverDate: item.CoverDate,
				StoreDate: item.StoreDate,
				CoverURL:  item.Image,
			})
		}
		if payload.Next == "" || len(payload.Results) == 0 {
			return out, nil
		}
	}
}
