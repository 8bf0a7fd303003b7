package arr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"mediaguard/internal/providers"
)

// Client talks to one Sonarr or Radarr instance.
type Client struct {
	kind       Kind
	name       string
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// New creates a registry client. name identifies the instance in logs and in
// the key pool.
func New(kind Kind, name, baseURL string, opts ...Option) (*Client, error) {
	if kind != KindSonarr && kind != KindRadarr {
		return nil, fmt.Errorf("unsupported registry kind %q", kind)
	}
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("registry base url required")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = string(kind)
	}
	client := &Client{
		kind:       kind,
		name:       name,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: providers.NewHTTPClient(0),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Name returns the instance name.
func (c *Client) Name() string { return c.name }

// Kind returns the registry flavour.
func (c *Client) Kind() Kind { return c.kind }

// LookupPath resolves a file path to the media record the registry holds
// for it. providers.ErrNoMatch is returned when the registry does not know
// the file.
func (c *Client) LookupPath(ctx context.Context, apiKey, path string) (*providers.Result, error) {
	if c.kind == KindSonarr {
		return c.lookupEpisode(ctx, apiKey, path)
	}
	return c.lookupMovie(ctx, apiKey, path)
}

// Status fetches the instance's system status.
func (c *Client) Status(ctx context.Context, apiKey string) (SystemStatus, error) {
	var status SystemStatus
	if _, err := c.get(ctx, apiKey, "system status", "/api/v3/system/status", nil, &status); err != nil {
		return SystemStatus{}, err
	}
	return status, nil
}

func (c *Client) lookupEpisode(ctx context.Context, apiKey, path string) (*providers.Result, error) {
	var files []episodeFile
	if _, err := c.get(ctx, apiKey, "episode file lookup", "/api/v3/episodefile/lookup", url.Values{"path": {path}}, &files); err != nil {
		return nil, err
	}
	if len(files) == 0 || files[0].EpisodeID == 0 {
		return nil, providers.ErrNoMatch
	}

	var ep episode
	epRaw, err := c.get(ctx, apiKey, "episode", "/api/v3/episode/"+strconv.FormatInt(files[0].EpisodeID, 10), nil, &ep)
	if err != nil {
		return nil, err
	}
	seriesID := ep.SeriesID
	if seriesID == 0 {
		seriesID = files[0].SeriesID
	}
	var show series
	showRaw, err := c.get(ctx, apiKey, "series", "/api/v3/series/"+strconv.FormatInt(seriesID, 10), nil, &show)
	if err != nil {
		return nil, err
	}

	raw, _ := json.Marshal(struct {
		Episode json.RawMessage `json:"episode"`
		Series  json.RawMessage `json:"series"`
	}{epRaw, showRaw})
	return episodeResult(c.name, ep, show, raw), nil
}

func (c *Client) lookupMovie(ctx context.Context, apiKey, path string) (*providers.Result, error) {
	var files []movieFile
	if _, err := c.get(ctx, apiKey, "movie file lookup", "/api/v3/moviefile/lookup", url.Values{"path": {path}}, &files); err != nil {
		return nil, err
	}
	if len(files) == 0 || files[0].MovieID == 0 {
		return nil, providers.ErrNoMatch
	}

	var m movie
	raw, err := c.get(ctx, apiKey, "movie", "/api/v3/movie/"+strconv.FormatInt(files[0].MovieID, 10), nil, &m)
	if err != nil {
		return nil, err
	}
	return movieResult(c.name, m, raw), nil
}

func (c *Client) get(ctx context.Context, apiKey, operation, path string, params url.Values, out any) ([]byte, error) {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	header := http.Header{}
	header.Set("X-Api-Key", apiKey)
	return providers.GetJSON(ctx, c.httpClient, c.name, operation, endpoint, header, out)
}

func episodeResult(provider string, ep episode, show series, raw []byte) *providers.Result {
	minutes := ep.Runtime
	if minutes <= 0 && ep.EpisodeFile != nil {
		minutes = ep.EpisodeFile.Runtime
	}
	if minutes <= 0 {
		minutes = show.Runtime
	}
	return &providers.Result{
		Provider:         provider,
		ProviderID:       strconv.FormatInt(ep.ID, 10),
		Title:            show.Title,
		Year:             show.Year,
		ExpectedDuration: time.Duration(minutes) * time.Minute,
		IMDbID:           show.IMDbID,
		TMDbID:           formatID(show.TMDbID),
		TVDbID:           formatID(show.TVDbID),
		MediaType:        providers.MediaEpisode,
		Season:           ep.SeasonNumber,
		Episode:          ep.EpisodeNumber,
		Raw:              raw,
	}
}

func movieResult(provider string, m movie, raw []byte) *providers.Result {
	return &providers.Result{
		Provider:         provider,
		ProviderID:       strconv.FormatInt(m.ID, 10),
		Title:            m.Title,
		Year:             m.Year,
		ExpectedDuration: time.Duration(m.Runtime) * time.Minute,
		IMDbID:           m.IMDbID,
		TMDbID:           formatID(m.TMDbID),
		MediaType:        providers.MediaMovie,
		Raw:              raw,
	}
}

func formatID(id int64) string {
	if id <= 0 {
		return ""
	}
	return strconv.FormatInt(id, 10)
}
