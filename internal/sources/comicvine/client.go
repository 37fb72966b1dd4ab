// Package comicvine implements the Comic Vine source adapter.
package comicvine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"shortbox/internal/config"
	"shortbox/internal/services"
	"shortbox/internal/sources"
)

const (
	// Name is the source key used in configuration and provenance maps.
	Name = config.SourceComicVine

	volumePrefix  = "4050-"
	maxPageSize   = 100
	statusOK      = 1
	statusBadKey  = 100
	statusMissing = 101
)

// Client talks to the Comic Vine REST API.
type Client struct {
	apiKey string
	req    *sources.Requester
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

// New creates a Comic Vine client from its settings block.
func New(settings config.Source, opts ...Option) *Client {
	c := &Client{
		apiKey: strings.TrimSpace(settings.APIKey),
		req:    sources.NewRequester(Name, settings),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name implements sources.Adapter.
func (c *Client) Name() string { return Name }

// Validate implements sources.Adapter.
func (c *Client) Validate() error {
	if c.apiKey == "" {
		return sources.MissingCredential(Name, "api_key", "COMICVINE_API_KEY")
	}
	return nil
}

// envelope wraps every response. Results stays raw because Comic Vine sends
// an empty array in place of an object when a lookup misses.
type envelope struct {
	Error                string          `json:"error"`
	StatusCode           int             `json:"status_code"`
	NumberOfTotalResults int             `json:"number_of_total_results"`
	Results              json.RawMessage `json:"results"`
}

type named struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type person struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

type image struct {
	OriginalURL string `json:"original_url"`
}

type volume struct {
	ID            int      `json:"id"`
	Name          string   `json:"name"`
	Aliases       string   `json:"aliases"`
	Deck          string   `json:"deck"`
	Description   string   `json:"description"`
	StartYear     string   `json:"start_year"`
	CountOfIssues int      `json:"count_of_issues"`
	Publisher     *named   `json:"publisher"`
	Image         *image   `json:"image"`
	SiteDetailURL string   `json:"site_detail_url"`
	Characters    []named  `json:"characters"`
	People        []person `json:"people"`
	Locations     []named  `json:"locations"`
}

type issue struct {
	ID            int      `json:"id"`
	Name          string   `json:"name"`
	IssueNumber   string   `json:"issue_number"`
	CoverDate     string   `json:"cover_date"`
	StoreDate     string   `json:"store_date"`
	Description   string   `json:"description"`
	Image         *image   `json:"image"`
	SiteDetailURL string   `json:"site_detail_url"`
	PersonCredits []person `json:"person_credits"`
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
	limit := sources.Limit(req.Limit, 10, maxPageSize)
	params := c.params()
	params.Set("resources", "volume")
	params.Set("query", query)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("page", strconv.Itoa(req.Offset/limit+1))

	var volumes []volume
	total, err := c.get(ctx, "/search/", params, &volumes)
	if err != nil {
		return sources.SearchResult{}, err
	}
	results := make([]sources.SeriesMatch, 0, len(volumes))
	for _, v := range volumes {
		results = append(results, v.toMatch())
	}
	return sources.SearchResult{
		Results:    results,
		Pagination: sources.Paginate(total, req.Offset, limit, len(results)),
	}, nil
}

// FetchByID implements sources.Adapter.
func (c *Client) FetchByID(ctx context.Context, id string) (*sources.SeriesMatch, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	id = strings.TrimPrefix(strings.TrimSpace(id), volumePrefix)
	if id == "" {
		return nil, services.Wrap(services.ErrValidation, Name, "fetch series", "id must not be empty", nil)
	}
	var v volume
	_, err := c.get(ctx, "/volume/"+volumePrefix+id+"/", c.params(), &v)
	if errors.Is(err, services.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if v.ID == 0 {
		return nil, nil
	}
	match := v.toMatch()
	return &match, nil
}

// FetchIssues implements sources.Adapter.
func (c *Client) FetchIssues(ctx context.Context, seriesID string) ([]sources.Issue, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	seriesID = strings.TrimPrefix(strings.TrimSpace(seriesID), volumePrefix)
	var out []sources.Issue
	for offset := 0; ; offset += maxPageSize {
		params := c.params()
		params.Set("filter", "volume:"+seriesID)
		params.Set("sort", "cover_date:asc")
		params.Set("limit", strconv.Itoa(maxPageSize))
		params.Set("offset", strconv.Itoa(offset))
		var issues []issue
		total, err := c.get(ctx, "/issues/", params, &issues)
		if err != nil {
			return nil, err
		}
		for _, is := range issues {
			out = append(out, is.toIssue(seriesID))
		}
		if len(issues) < maxPageSize || offset+len(issues) >= total {
			return out, nil
		}
	}
}

func (c *Client) params() url.Values {
	params := url.Values{}
	params.Set("api_key", c.apiKey)
	params.Set("format", "json")
	return params
}

// get fetches path, checks the envelope status, and decodes results into
// out. It returns the total result count reported by the API.
func (c *Client) get(ctx context.Context, path string, params url.Values, out any) (int, error) {
	var env envelope
	if err := c.req.GetJSON(ctx, path, params, &env); err != nil {
		return 0, err
	}
	switch env.StatusCode {
	case statusOK, 0:
	case statusBadKey:
		return 0, services.Wrap(services.ErrConfiguration, Name, "authenticate",
			"api key rejected; check api_key in [sources.comicvine] or COMICVINE_API_KEY", nil)
	case statusMissing:
		return 0, services.Wrap(services.ErrNotFound, Name, "request", env.Error, nil)
	default:
		return 0, services.Wrap(services.ErrExternal, Name, "request", fmt.Sprintf("status %d: %s", env.StatusCode, env.Error), nil)
	}
	if len(env.Results) == 0 {
		return env.NumberOfTotalResults, nil
	}
	if err := json.Unmarshal(env.Results, out); err != nil {
		return 0, services.Wrap(services.ErrExternal, Name, "decode", "unexpected results payload", err)
	}
	return env.NumberOfTotalResults, nil
}

func (v volume) toMatch() sources.SeriesMatch {
	match := sources.SeriesMatch{
		Source:      Name,
		SourceID:    strconv.Itoa(v.ID),
		Name:        strings.TrimSpace(v.Name),
		IssueCount:  v.CountOfIssues,
		SeriesType:  "comic",
		Description: firstNonEmpty(v.Deck, stripTags(v.Description)),
		SiteURL:     v.SiteDetailURL,
	}
	if v.Publisher != nil {
		match.Publisher = strings.TrimSpace(v.Publisher.Name)
	}
	if year, err := strconv.Atoi(strings.TrimSpace(v.StartYear)); err == nil {
		match.StartYear = year
	}
	if v.Image != nil {
		match.CoverURL = v.Image.OriginalURL
	}
	for _, alias := range strings.Split(v.Aliases, "\n") {
		if alias = strings.TrimSpace(alias); alias != "" {
			match.Aliases = append(match.Aliases, alias)
		}
	}
	for _, ch := range v.Characters {
		match.Characters = append(match.Characters, ch.Name)
	}
	for _, p := range v.People {
		match.Creators = append(match.Creators, sources.Credit{Name: p.Name, Role: p.Role})
	}
	for _, loc := range v.Locations {
		match.Locations = append(match.Locations, loc.Name)
	}
	return match
}

func (is issue) toIssue(seriesID string) sources.Issue {
	out := sources.Issue{
		Source:    Name,
		SourceID:  strconv.Itoa(is.ID),
		SeriesID:  seriesID,
		Number:    strings.TrimSpace(is.IssueNumber),
		Title:     strings.TrimSpace(is.Name),
		CoverDate: is.CoverDate,
		StoreDate: is.StoreDate,
		Summary:   stripTags(is.Description),
		SiteURL:   is.SiteDetailURL,
	}
	if is.Image != nil {
		out.CoverURL = is.Image.OriginalURL
	}
	for _, p := range is.PersonCredits {
		out.Credits = append(out.Credits, sources.Credit{Name: p.Name, Role: p.Role})
	}
	return out
}

// stripTags removes the HTML markup Comic Vine embeds in descriptions.
func stripTags(value string) string {
	var b strings.Builder
	depth := 0
	for _, r := range value {
		switch {
		case r == '<':
			depth++
		case r == '>' && depth > 0:
			depth--
			b.WriteRune(' ')
		case depth == 0:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
