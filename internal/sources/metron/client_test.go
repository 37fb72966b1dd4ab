package metron_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"shortbox/internal/config"
	"shortbox/internal/services"
	"shortbox/internal/sources"
	"shortbox/internal/sources/metron"
)

func TestSearchUsesBasicAuthAndStripsYear(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "reader" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.URL.Query().Get("year_began") != "2011" {
			t.Fatalf("expected year filter, got %q", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`{"count":1,"next":null,"results":[{"id":7,"series":"Batman (2011)","year_began":2011,"issue_count":52}]}`))
	}))
	t.Cleanup(server.Close)

	client := metron.New(config.Source{Username: "reader", Password: "secret", BaseURL: server.URL})
	result, err := client.Search(context.Background(), sources.SearchRequest{Query: "Batman", Year: 2011, Limit: 5})
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if len(result.Results) != 1 || result.Results[0].Name != "Batman" || result.Results[0].SourceID != "7" {
		t.Fatalf("unexpected results %+v", result.Results)
	}
	if result.Pagination.HasMore {
		t.Fatalf("unexpected pagination %+v", result.Pagination)
	}
}

func TestRejectedCredentialsAreConfigurationErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(server.Close)

	client := metron.New(config.Source{Username: "reader", Password: "wrong", BaseURL: server.URL})
	if _, err := client.Search(context.Background(), sources.SearchRequest{Query: "Saga"}); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestFetchIssuesFollowsPages(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("page") {
		case "1":
			_, _ = w.Write([]byte(`{"count":2,"next":"` + server.URL + `/issue/?page=2","results":[{"id":1,"number":"1","cover_date":"2011-11-01"}]}`))
		default:
			_, _ = w.Write([]byte(`{"count":2,"next":null,"results":[{"id":2,"number":"2","cover_date":"2011-12-01"}]}`))
		}
	}))
	t.Cleanup(server.Close)

	client := metron.New(config.Source{Username: "u", Password: "p", BaseURL: server.URL})
	issues, err := client.FetchIssues(context.Background(), "7")
	if err != nil {
		t.Fatalf("FetchIssues returned error: %v", err)
	}
	if len(issues) != 2 || issues[1].Number != "2" || issues[0].SeriesID != "7" {
		t.Fatalf("unexpected issues %+v", issues)
	}
}

func TestValidateRequiresPassword(t *testing.T) {
	client := metron.New(config.Source{Username: "reader"})
	if err := client.Validate(); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
