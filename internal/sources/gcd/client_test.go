package gcd_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"shortbox/internal/config"
	"shortbox/internal/sources"
	"shortbox/internal/sources/gcd"
)

func TestSearchTreatsNotFoundAsNoResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(server.Close)

	client := gcd.New(config.Source{Username: "u", Password: "p", BaseURL: server.URL})
	result, err := client.Search(context.Background(), sources.SearchRequest{Query: "Nonexistent"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(result.Results) != 0 {
		t.Fatalf("expected no results, got %+v", result.Results)
	}
}

func TestFetchByIDResolvesPublisherAndIssues(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/series/"):
			_, _ = w.Write([]byte(`{"api_url":"https://www.comics.org/api/series/61520/?format=json","name":"Batman",
				"year_began":2011,"year_ended":2016,"publisher":"https://www.comics.org/api/publisher/54/?format=json",
				"issue_descriptors":["1","2 [Variant]"],
				"active_issues":["https://www.comics.org/api/issue/900/?format=json","https://www.comics.org/api/issue/901/?format=json"]}`))
		case strings.HasPrefix(r.URL.Path, "/publisher/54"):
			_, _ = w.Write([]byte(`{"name":"DC"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)

	client := gcd.New(config.Source{Username: "u", Password: "p", BaseURL: server.URL})
	match, err := client.FetchByID(context.Background(), "61520")
	if err != nil || match == nil {
		t.Fatalf("FetchByID returned %v, %v", match, err)
	}
	if match.SourceID != "61520" || match.Publisher != "DC" || match.EndYear != 2016 || match.IssueCount != 2 {
		t.Fatalf("unexpected match %+v", match)
	}

	issues, err := client.FetchIssues(context.Background(), "61520")
	if err != nil {
		t.Fatalf("FetchIssues returned error: %v", err)
	}
	if len(issues) != 2 || issues[1].Number != "2" || issues[1].SourceID != "901" {
		t.Fatalf("unexpected issues %+v", issues)
	}
}
