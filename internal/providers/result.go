package providers

import (
	"strings"
	"time"
)

// MediaType classifies a lookup match.
type MediaType string

const (
	MediaMovie   MediaType = "movie"
	MediaEpisode MediaType = "episode"
	MediaUnknown MediaType = "unknown"
)

// Result is the canonical lookup answer of one provider.
type Result struct {
	Provider         string
	ProviderID       string
	Title            string
	Year             int
	ExpectedDuration time.Duration
	IMDbID           string
	TMDbID           string
	TVDbID           string
	MediaType        MediaType
	Season           int
	Episode          int
	Raw              []byte
}

// HasDuration reports whether the provider knew the runtime.
func (r *Result) HasDuration() bool {
	return r != nil && r.ExpectedDuration > 0
}

// ExpectedSeconds returns the runtime in seconds, or nil when unknown.
func (r *Result) ExpectedSeconds() *float64 {
	if !r.HasDuration() {
		return nil
	}
	v := r.ExpectedDuration.Seconds()
	return &v
}

// Query is what a title database is asked for.
type Query struct {
	Title     string
	Year      int
	IMDbID    string
	MediaType MediaType
	Season    int
	Episode   int
}

// Empty reports whether the query has nothing to search on.
func (q Query) Empty() bool {
	return strings.TrimSpace(q.Title) == "" && strings.TrimSpace(q.IMDbID) == ""
}
