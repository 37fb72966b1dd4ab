// Package mangadex implements the MangaDex source adapter. MangaDex needs no
// credentials; issues are reported per volume because manga archives are
// usually collected that way.
package mangadex

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"slices"
	"sort"
	"strconv"
	"strings"

	"shortbox/internal/config"
	"shortbox/internal/services"
	"shortbox/internal/sources"
)

// Name is the source key used in configuration and provenance maps.
const Name = config.SourceMangaDex

const maxPageSize = 100

// Client talks to the MangaDex API.
type Client struct {
	req *sources.Requester
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

// New creates a MangaDex client from its settings block.
func New(settings config.Source, opts ...Option) *Client {
	c := &Client{req: sources.NewRequester(Name, settings)}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name implements sources.Adapter.
func (c *Client) Name() string { return Name }

// Validate implements sources.Adapter.
func (c *Client) Validate() error {
	if c.req.BaseURL == "" {
		return sources.MissingCredential(Name, "base_url", "")
	}
	return nil
}

type localized map[string]string

// pick prefers English, then romanized Japanese, then any value in key order.
func (l localized) pick() string {
	for _, lang := range []string{"en", "ja-ro", "ja"} {
		if v := strings.TrimSpace(l[lang]); v != "" {
			return v
		}
	}
	keys := make([]string, 0, len(l))
	for k := range l {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if v := strings.TrimSpace(l[k]); v != "" {
			return v
		}
	}
	return ""
}

type relationship struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Attributes *struct {
		Name string `json:"name"`
	} `json:"attributes"`
}

type manga struct {
	ID         string `json:"id"`
	Attributes struct {
		Title       localized   `json:"title"`
		AltTitles   []localized `json:"altTitles"`
		Description localized   `json:"description"`
		Year        int         `json:"year"`
		LastVolume  string      `json:"lastVolume"`
		Demographic string      `json:"publicationDemographic"`
	} `json:"attributes"`
	Relationships []relationship `json:"relationships"`
}

type listResponse struct {
	Result string  `json:"result"`
	Data   []manga `json:"data"`
	Limit  int     `json:"limit"`
	Offset int     `json:"offset"`
	Total  int     `json:"total"`
}

type entityResponse struct {
	Result string `json:"result"`
	Data   manga  `json:"data"`
}

type aggregateResponse struct {
	Result  string `json:"result"`
	Volumes map[string]struct {
		Volume string `json:"volume"`
		Count  int    `json:"count"`
	} `json:"volumes"`
}

// Search implements sources.Adapter.
func (c *Client) Search(ctx context.Context, req sources.SearchRequest) (sources.SearchResult, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return sources.SearchResult{}, services.Wrap(services.ErrValidation, Name, "search", "query must not be empty", nil)
	}
	limit := sources.Limit(req.Limit, 10, maxPageSize)
	params := url.Values{}
	params.Set("title", query)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", strconv.Itoa(req.Offset))
	if req.Year > 0 {
		params.Set("year", strconv.Itoa(req.Year))
	}
	params.Add("includes[]", "author")
	params.Add("includes[]", "artist")

	var payload listResponse
	if err := c.req.GetJSON(ctx, "/manga", params, &payload); err != nil {
		return sources.SearchResult{}, err
	}
	results := make([]sources.SeriesMatch, 0, len(payload.Data))
	for _, m := range payload.Data {
		results = append(results, m.toMatch())
	}
	return sources.SearchResult{
		Results:    results,
		Pagination: sources.Paginate(payload.Total, req.Offset, limit, len(results)),
	}, nil
}

// FetchByID implements sources.Adapter.
func (c *Client) FetchByID(ctx context.Context, id string) (*sources.SeriesMatch, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, services.Wrap(services.ErrValidation, Name, "fetch series", "id must not be empty", nil)
	}
	params := url.Values{}
	params.Add("includes[]", "author")
	params.Add("includes[]", "artist")
	var payload entityResponse
	err := c.req.GetJSON(ctx, "/manga/"+url.PathEscape(id), params, &payload)
	if errors.Is(err, services.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	match := payload.Data.toMatch()
	return &match, nil
}

// FetchIssues implements sources.Adapter.
func (c *Client) FetchIssues(ctx context.Context, seriesID string) ([]sources.Issue, error) {
	seriesID = strings.TrimSpace(seriesID)
	var payload aggregateResponse
	if err := c.req.GetJSON(ctx, "/manga/"+url.PathEscape(seriesID)+"/aggregate", nil, &payload); err != nil {
		return nil, err
	}
	out := make([]sources.Issue, 0, len(payload.Volumes))
	for key, vol := range payload.Volumes {
		number := strings.TrimSpace(vol.Volume)
		if number == "" {
			number = key
		}
		if number == "none" {
			continue
		}
		out = append(out, sources.Issue{
			Source:   Name,
			SourceID: seriesID + ":v" + number,
			SeriesID: seriesID,
			Number:   number,
		})
	}
	slices.SortFunc(out, func(a, b sources.Issue) int {
		af, aerr := strconv.ParseFloat(a.Number, 64)
		bf, berr := strconv.ParseFloat(b.Number, 64)
		if aerr == nil && berr == nil && af != bf {
			if af < bf {
				return -1
			}
			return 1
		}
		return strings.Compare(a.Number, b.Number)
	})
	return out, nil
}

func (m manga) toMatch() sources.SeriesMatch {
	match := sources.SeriesMatch{
		Source:      Name,
		SourceID:    m.ID,
		Name:        m.Attributes.Title.pick(),
		StartYear:   m.Attributes.Year,
		SeriesType:  "manga",
		Description: m.Attributes.Description.pick(),
		SiteURL:     "https://mangadex.org/title/" + m.ID,
	}
	if last, err := strconv.Atoi(strings.TrimSpace(m.Attributes.LastVolume)); err == nil {
		match.IssueCount = last
	}
	for _, alt := range m.Attributes.AltTitles {
		if name := alt.pick(); name != "" && !strings.EqualFold(name, match.Name) {
			match.Aliases = append(match.Aliases, name)
		}
	}
	for _, rel := range m.Relationships {
		if rel.Attributes == nil || rel.Attributes.Name == "" {
			continue
		}
		switch rel.Type {
		case "author":
			match.Creators = append(match.Creators, sources.Credit{Name: rel.Attributes.Name, Role: "writer"})
		case "artist":
			match.Creators = append(match.Creators, sources.Credit{Name: rel.Attributes.Name, Role: "artist"})
		}
	}
	return match
}
