package omdb

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"mediaguard/internal/providers"
	"mediaguard/internal/services"
)

// ProviderName is the key pool and lookup record name of this provider.
const ProviderName = "omdb"

// DefaultBaseURL is the public OMDb endpoint.
const DefaultBaseURL = "https://www.omdbapi.com/"

// Response is the OMDb title payload.
type Response struct {
	Title    string `json:"Title"`
	Year     string `json:"Year"`
	Runtime  string `json:"Runtime"`
	IMDbID   string `json:"imdbID"`
	Type     string `json:"Type"`
	Season   string `json:"Season"`
	Episode  string `json:"Episode"`
	SeriesID string `json:"seriesID"`
	Result   string `json:"Response"`
	Error    string `json:"Error"`
}

// Client provides access to the OMDb API.
type Client struct {
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

// New creates an OMDb client. An empty baseURL uses DefaultBaseURL.
func New(baseURL string, opts ...Option) *Client {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	client := &Client{
		baseURL:    baseURL,
		httpClient: providers.NewHTTPClient(0),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Name returns the provider name.
func (c *Client) Name() string { return ProviderName }

// Lookup fetches one title. An IMDb id takes precedence over the title.
func (c *Client) Lookup(ctx context.Context, apiKey string, q providers.Query) (*providers.Result, error) {
	if q.Empty() {
		return nil, providers.ErrNoMatch
	}
	params := url.Values{}
	params.Set("apikey", apiKey)
	params.Set("r", "json")
	if id := strings.TrimSpace(q.IMDbID); id != "" {
		params.Set("i", id)
	} else {
		params.Set("t", strings.TrimSpace(q.Title))
		if q.Year > 0 {
			params.Set("y", strconv.Itoa(q.Year))
		}
		switch q.MediaType {
		case providers.MediaMovie:
			params.Set("type", "movie")
		case providers.MediaEpisode:
			if q.Season > 0 && q.Episode > 0 {
				params.Set("Season", strconv.Itoa(q.Season))
				params.Set("Episode", strconv.Itoa(q.Episode))
			}
		}
	}

	payload, raw, err := c.fetch(ctx, "title lookup", params)
	if err != nil {
		return nil, err
	}
	return toResult(payload, raw), nil
}

// Check validates apiKey with a known title.
func (c *Client) Check(ctx context.Context, apiKey string) error {
	params := url.Values{}
	params.Set("apikey", apiKey)
	params.Set("i", "tt0111161")
	_, _, err := c.fetch(ctx, "key check", params)
	return err
}

func (c *Client) fetch(ctx context.Context, operation string, params url.Values) (Response, []byte, error) {
	endpoint, err := url.Parse(c.baseURL)
	if err != nil {
		return Response{}, nil, services.Wrap(services.ErrConfiguration, ProviderName, operation, "parse base url", err)
	}
	endpoint.RawQuery = params.Encode()

	resp, err := providers.Get(ctx, c.httpClient, ProviderName, operation, endpoint.String(), nil)
	if err != nil {
		return Response{}, nil, err
	}

	// OMDb answers quota and key problems with 401 and a JSON error, so the
	// body is inspected before the status.
	var payload Response
	decodeErr := json.Unmarshal(resp.Body, &payload)
	if decodeErr == nil && strings.EqualFold(payload.Result, "False") {
		return Response{}, nil, classifyError(payload.Error)
	}
	if resp.StatusCode != http.StatusOK {
		return Response{}, nil, &providers.HTTPError{Provider: ProviderName, Operation: operation, StatusCode: resp.StatusCode, Body: string(resp.Body)}
	}
	if decodeErr != nil {
		return Response{}, nil, services.Wrap(services.ErrProviderFailure, ProviderName, operation, "decode response", decodeErr)
	}
	if !strings.EqualFold(payload.Result, "True") {
		return Response{}, nil, services.Wrap(services.ErrProviderFailure, ProviderName, operation, fmt.Sprintf("unexpected Response %q", payload.Result), nil)
	}
	return payload, resp.Body, nil
}

func classifyError(message string) error {
	msg := strings.ToLower(strings.TrimSpace(message))
	switch {
	case strings.Contains(msg, "limit reached"):
		return fmt.Errorf("omdb: %s: %w", message, providers.ErrQuotaExceeded)
	case strings.Contains(msg, "invalid api key"), strings.Contains(msg, "no api key"):
		return fmt.Errorf("omdb: %s: %w", message, providers.ErrAuthRejected)
	case strings.Contains(msg, "not found"):
		return fmt.Errorf("omdb: %s: %w", message, providers.ErrNoMatch)
	case msg == "":
		return services.Wrap(services.ErrProviderFailure, ProviderName, "lookup", "error response without message", nil)
	default:
		return services.Wrap(services.ErrProviderFailure, ProviderName, "lookup", message, nil)
	}
}

var (
	hoursPattern   = regexp.MustCompile(`(\d+)\s*h`)
	minutesPattern = regexp.MustCompile(`(\d+)\s*min`)
	yearPattern    = regexp.MustCompile(`\d{4}`)
)

// ParseRuntime extracts a duration from "N min" or "H h M min". "N/A" and
// unrecognized text yield 0.
func ParseRuntime(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" || strings.EqualFold(value, "N/A") {
		return 0
	}
	var total time.Duration
	if m := hoursPattern.FindStringSubmatch(value); m != nil {
		hours, _ := strconv.Atoi(m[1])
		total += time.Duration(hours) * time.Hour
	}
	if m := minutesPattern.FindStringSubmatch(value); m != nil {
		minutes, _ := strconv.Atoi(m[1])
		total += time.Duration(minutes) * time.Minute
	}
	return total
}

func parseYear(value string) int {
	match := yearPattern.FindString(value)
	if match == "" {
		return 0
	}
	year, _ := strconv.Atoi(match)
	return year
}

func parseNumber(value string) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0
	}
	return n
}

func toResult(r Response, raw []byte) *providers.Result {
	mediaType := providers.MediaUnknown
	switch strings.ToLower(r.Type) {
	case "movie":
		mediaType = providers.MediaMovie
	case "episode", "series":
		mediaType = providers.MediaEpisode
	}
	return &providers.Result{
		Provider:         ProviderName,
		ProviderID:       r.IMDbID,
		Title:            r.Title,
		Year:             parseYear(r.Year),
		ExpectedDuration: ParseRuntime(r.Runtime),
		IMDbID:           r.IMDbID,
		MediaType:        mediaType,
		Season:           parseNumber(r.Season),
		Episode:          parseNumber(r.Episode),
		Raw:              raw,
	}
}
