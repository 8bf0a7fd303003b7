package tmdb

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"mediaguard/internal/providers"
)

// ProviderName is the key pool and lookup record name of this provider.
const ProviderName = "tmdb"

// DefaultBaseURL is the public v3 API root.
const DefaultBaseURL = "https://api.themoviedb.org/3"

// Client provides access to the TMDB API.
type Client struct {
	baseURL    string
	language   string
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

// New creates a TMDB client. An empty baseURL uses DefaultBaseURL.
func New(baseURL, language string, opts ...Option) *Client {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	client := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		language:   strings.TrimSpace(language),
		httpClient: providers.NewHTTPClient(0),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Name returns the provider name.
func (c *Client) Name() string { return ProviderName }

// Lookup finds the best match for q and returns it with its runtime.
func (c *Client) Lookup(ctx context.Context, apiKey string, q providers.Query) (*providers.Result, error) {
	if q.Empty() {
		return nil, providers.ErrNoMatch
	}
	movieID, showID, err := c.resolve(ctx, apiKey, q)
	if err != nil {
		return nil, err
	}
	if movieID > 0 {
		return c.movie(ctx, apiKey, movieID)
	}
	return c.show(ctx, apiKey, showID, q)
}

// Check validates apiKey against a known movie.
func (c *Client) Check(ctx context.Context, apiKey string) error {
	var details MovieDetails
	_, err := c.get(ctx, "key check", "/movie/550", c.params(apiKey), &details)
	return err
}

// resolve turns q into a TMDB movie or show id.
func (c *Client) resolve(ctx context.Context, apiKey string, q providers.Query) (int64, int64, error) {
	if id := strings.TrimSpace(q.IMDbID); id != "" {
		var found FindResponse
		params := c.params(apiKey)
		params.Set("external_source", "imdb_id")
		if _, err := c.get(ctx, "find", "/find/"+url.PathEscape(id), params, &found); err != nil {
			return 0, 0, err
		}
		switch {
		case len(found.MovieResults) > 0:
			return found.MovieResults[0].ID, 0, nil
		case len(found.TVResults) > 0:
			return 0, found.TVResults[0].ID, nil
		case len(found.TVEpisodeResults) > 0:
			return 0, found.TVEpisodeResults[0].ShowID, nil
		}
		if strings.TrimSpace(q.Title) == "" {
			return 0, 0, providers.ErrNoMatch
		}
	}

	if q.MediaType != providers.MediaEpisode {
		id, err := c.search(ctx, apiKey, "/search/movie", "primary_release_year", q)
		if err != nil || id > 0 || q.MediaType == providers.MediaMovie {
			if err == nil && id == 0 {
				err = providers.ErrNoMatch
			}
			return id, 0, err
		}
	}
	id, err := c.search(ctx, apiKey, "/search/tv", "first_air_date_year", q)
	if err == nil && id == 0 {
		err = providers.ErrNoMatch
	}
	return 0, id, err
}

func (c *Client) search(ctx context.Context, apiKey, path, yearParam string, q providers.Query) (int64, error) {
	params := c.params(apiKey)
	params.Set("query", strings.TrimSpace(q.Title))
	if q.Year > 0 {
		params.Set(yearParam, strconv.Itoa(q.Year))
	}
	var resp SearchResponse
	if _, err := c.get(ctx, "search", path, params, &resp); err != nil {
		return 0, err
	}
	if len(resp.Results) == 0 {
		return 0, nil
	}
	return resp.Results[0].ID, nil
}

func (c *Client) movie(ctx context.Context, apiKey string, id int64) (*providers.Result, error) {
	var details MovieDetails
	raw, err := c.get(ctx, "movie details", fmt.Sprintf("/movie/%d", id), c.params(apiKey), &details)
	if err != nil {
		return nil, err
	}
	return movieResult(details, raw), nil
}

func (c *Client) show(ctx context.Context, apiKey string, id int64, q providers.Query) (*providers.Result, error) {
	params := c.params(apiKey)
	params.Set("append_to_response", "external_ids")
	var details TVDetails
	raw, err := c.get(ctx, "tv details", fmt.Sprintf("/tv/%d", id), params, &details)
	if err != nil {
		return nil, err
	}
	var episode *EpisodeDetails
	if q.Season > 0 && q.Episode > 0 {
		var ep EpisodeDetails
		path := fmt.Sprintf("/tv/%d/season/%d/episode/%d", id, q.Season, q.Episode)
		if _, err := c.get(ctx, "episode details", path, c.params(apiKey), &ep); err == nil {
			episode = &ep
		} else if providers.IsCredentialFailure(err) {
			return nil, err
		}
	}
	return showResult(details, episode, raw), nil
}

func (c *Client) params(apiKey string) url.Values {
	params := url.Values{}
	params.Set("api_key", apiKey)
	if c.language != "" {
		params.Set("language", c.language)
	}
	return params
}

func (c *Client) get(ctx context.Context, operation, path string, params url.Values, out any) ([]byte, error) {
	endpoint := c.baseURL + path + "?" + params.Encode()
	return providers.GetJSON(ctx, c.httpClient, ProviderName, operation, endpoint, nil, out)
}

func movieResult(d MovieDetails, raw []byte) *providers.Result {
	return &providers.Result{
		Provider:         ProviderName,
		ProviderID:       strconv.FormatInt(d.ID, 10),
		Title:            d.Title,
		Year:             yearOf(d.ReleaseDate),
		ExpectedDuration: time.Duration(d.Runtime) * time.Minute,
		IMDbID:           d.IMDbID,
		TMDbID:           strconv.FormatInt(d.ID, 10),
		MediaType:        providers.MediaMovie,
		Raw:              raw,
	}
}

func showResult(d TVDetails, ep *EpisodeDetails, raw []byte) *providers.Result {
	res := &providers.Result{
		Provider:   ProviderName,
		ProviderID: strconv.FormatInt(d.ID, 10),
		Title:      d.Name,
		Year:       yearOf(d.FirstAirDate),
		IMDbID:     d.ExternalIDs.IMDbID,
		TMDbID:     strconv.FormatInt(d.ID, 10),
		MediaType:  providers.MediaEpisode,
		Raw:        raw,
	}
	if d.ExternalIDs.TVDbID > 0 {
		res.TVDbID = strconv.FormatInt(d.ExternalIDs.TVDbID, 10)
	}
	if len(d.EpisodeRunTime) > 0 {
		res.ExpectedDuration = time.Duration(d.EpisodeRunTime[0]) * time.Minute
	}
	if ep != nil {
		res.Season = ep.SeasonNumber
		res.Episode = ep.EpisodeNumber
		if ep.Runtime > 0 {
			res.ExpectedDuration = time.Duration(ep.Runtime) * time.Minute
		}
		if merged, err := json.Marshal(struct {
			Show    json.RawMessage `json:"show"`
			Episode EpisodeDetails  `json:"episode"`
		}{raw, *ep}); err == nil {
			res.Raw = merged
		}
	}
	return res
}

func yearOf(date string) int {
	if len(date) < 4 {
		return 0
	}
	year, err := strconv.Atoi(date[:4])
	if err != nil {
		return 0
	}
	return year
}
