package omdb_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"mediaguard/internal/providers"
	"mediaguard/internal/providers/omdb"
	"mediaguard/internal/services"
)

func TestParseRuntime(t *testing.T) {
	tests := map[string]time.Duration{
		"142 min":    142 * time.Minute,
		"2 h 22 min": 2*time.Hour + 22*time.Minute,
		"1h 5min":    time.Hour + 5*time.Minute,
		"3 h":        3 * time.Hour,
		"N/A":        0,
		"":           0,
		"unknown":    0,
	}
	for input, want := range tests {
		if got := omdb.ParseRuntime(input); got != want {
			t.Fatalf("ParseRuntime(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestLookupByIMDbID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("apikey") != "key1" || q.Get("i") != "tt0111161" || q.Get("t") != "" {
			t.Errorf("unexpected query %q", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`{"Title":"The Shawshank Redemption","Year":"1994","Runtime":"142 min","imdbID":"tt0111161","Type":"movie","Response":"True"}`))
	}))
	t.Cleanup(server.Close)

	client := omdb.New(server.URL)
	res, err := client.Lookup(context.Background(), "key1", providers.Query{Title: "ignored", IMDbID: "tt0111161"})
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if res.Provider != "omdb" || res.Year != 1994 || res.ExpectedDuration != 142*time.Minute || res.MediaType != providers.MediaMovie {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.ProviderID != "tt0111161" || len(res.Raw) == 0 {
		t.Fatalf("unexpected ids %+v", res)
	}
}

func TestLookupByTitleAndEpisode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("t") != "Some Show" || q.Get("Season") != "1" || q.Get("Episode") != "3" {
			t.Errorf("unexpected query %q", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`{"Title":"Third","Year":"2011–2014","Runtime":"N/A","imdbID":"tt2","Type":"episode","Season":"1","Episode":"3","Response":"True"}`))
	}))
	t.Cleanup(server.Close)

	res, err := omdb.New(server.URL).Lookup(context.Background(), "k", providers.Query{
		Title: "Some Show", MediaType: providers.MediaEpisode, Season: 1, Episode: 3,
	})
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if res.HasDuration() || res.Year != 2011 || res.Season != 1 || res.Episode != 3 || res.MediaType != providers.MediaEpisode {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestLookupErrorSignals(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(error) bool
	}{
		{"limit", http.StatusUnauthorized, `{"Response":"False","Error":"Request limit reached!"}`, providers.IsQuota},
		{"invalid key", http.StatusUnauthorized, `{"Response":"False","Error":"Invalid API key!"}`, func(err error) bool {
			return errors.Is(err, providers.ErrAuthRejected)
		}},
		{"not found", http.StatusOK, `{"Response":"False","Error":"Movie not found!"}`, func(err error) bool {
			return errors.Is(err, providers.ErrNoMatch) && !providers.IsCredentialFailure(err)
		}},
		{"bare 401", http.StatusUnauthorized, `unauthorized`, providers.IsCredentialFailure},
		{"server error", http.StatusServiceUnavailable, `<html>down</html>`, func(err error) bool {
			return errors.Is(err, services.ErrProviderFailure) && !providers.IsCredentialFailure(err)
		}},
		{"garbage", http.StatusOK, `not json`, func(err error) bool {
			return errors.Is(err, services.ErrProviderFailure)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := omdb.New(server.URL).Lookup(context.Background(), "k", providers.Query{Title: "x"})
			if err == nil || !tt.check(err) {
				t.Fatalf("unexpected error classification: %v", err)
			}
		})
	}
}

func TestLookupEmptyQuery(t *testing.T) {
	_, err := omdb.New("http://127.0.0.1:0").Lookup(context.Background(), "k", providers.Query{})
	if !errors.Is(err, providers.ErrNoMatch) {
		t.Fatalf("expected ErrNoMatch, got %v", err)
	}
}

func TestCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("apikey") == "good" {
			_, _ = w.Write([]byte(`{"Title":"x","Response":"True"}`))
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"Response":"False","Error":"Invalid API key!"}`))
	}))
	t.Cleanup(server.Close)

	client := omdb.New(server.URL)
	if err := client.Check(context.Background(), "good"); err != nil {
		t.Fatalf("Check good: %v", err)
	}
	if err := client.Check(context.Background(), "bad"); !providers.IsCredentialFailure(err) {
		t.Fatalf("expected credential failure, got %v", err)
	}
}
