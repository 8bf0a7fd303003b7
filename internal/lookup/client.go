package lookup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"mediaguard/internal/keypool"
	"mediaguard/internal/logging"
	"mediaguard/internal/providers"
	"mediaguard/internal/providers/arr"
	"mediaguard/internal/services"
)

// Registry resolves a file path to the record a media manager holds for it.
type Registry interface {
	Name() string
	LookupPath(ctx context.Context, apiKey, path string) (*providers.Result, error)
	Status(ctx context.Context, apiKey string) (arr.SystemStatus, error)
}

// TitleDatabase resolves a title or IMDb id to a record.
type TitleDatabase interface {
	Name() string
	Lookup(ctx context.Context, apiKey string, q providers.Query) (*providers.Result, error)
	Check(ctx context.Context, apiKey string) error
}

// KeyPool hands out and accounts for provider credentials.
type KeyPool interface {
	Register(ctx context.Context, provider string, keys []string, dailyLimit int) error
	Acquire(ctx context.Context, provider string) (keypool.Key, bool, error)
	ReportUsage(ctx context.Context, key keypool.Key) error
	ReportCalls(ctx context.Context, key keypool.Key, n int) error
	ReportFailure(ctx context.Context, key keypool.Key, reason keypool.Reason) error
}

// Observer receives one call per provider request attempt.
type Observer interface {
	ProviderRequest(provider, outcome string)
}

// Request outcomes reported to the Observer.
const (
	OutcomeMatch      = "match"
	OutcomeNoMatch    = "no_match"
	OutcomeError      = "error"
	OutcomeCredential = "credential"
	OutcomeNoKey      = "no_key"
)

// Credentials are the keys and pacing of one provider.
type Credentials struct {
	Keys              []string
	DailyLimit        int
	RequestsPerSecond float64
}

// Outcome is the result of one Lookup.
type Outcome struct {
	// Result is the best match: the first one with a runtime, else the first
	// match at all. Nil when no provider matched.
	Result *providers.Result
	// Records holds every match, one per provider, for persistence.
	Records []*providers.Result
	// Deferred is set when a provider was skipped for lack of a usable key and
	// no runtime was found; the file should be looked up again later.
	Deferred bool
}

// ExpectedSeconds returns the runtime of the best match, or nil.
func (o Outcome) ExpectedSeconds() *float64 {
	return o.Result.ExpectedSeconds()
}

type provider struct {
	name     string
	creds    Credentials
	limiter  *rate.Limiter
	registry Registry
	titleDB  TitleDatabase
}

// Client runs the registry-then-title-database search.
type Client struct {
	pool       KeyPool
	logger     *slog.Logger
	observer   Observer
	registries []*provider
	titleDBs   []*provider

	registerOnce sync.Once
	registerErr  error
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logging.NewComponentLogger(logger, "lookup")
	}
}

// WithObserver reports every provider request to obs.
func WithObserver(obs Observer) Option {
	return func(c *Client) {
		c.observer = obs
	}
}

// WithRegistry appends a registry with its credentials.
func WithRegistry(reg Registry, creds Credentials) Option {
	return func(c *Client) {
		c.registries = append(c.registries, newProvider(reg.Name(), creds, reg, nil))
	}
}

// WithTitleDatabase appends a title database with its credentials.
func WithTitleDatabase(db TitleDatabase, creds Credentials) Option {
	return func(c *Client) {
		c.titleDBs = append(c.titleDBs, newProvider(db.Name(), creds, nil, db))
	}
}

func newProvider(name string, creds Credentials, reg Registry, db TitleDatabase) *provider {
	limit := rate.Inf
	if creds.RequestsPerSecond > 0 {
		limit = rate.Limit(creds.RequestsPerSecond)
	}
	return &provider{
		name:     name,
		creds:    creds,
		limiter:  rate.NewLimiter(limit, 1),
		registry: reg,
		titleDB:  db,
	}
}

// New constructs a Client over pool.
func New(pool KeyPool, opts ...Option) *Client {
	c := &Client{
		pool:   pool,
		logger: logging.NewComponentLogger(nil, "lookup"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Providers returns the provider names in query order.
func (c *Client) Providers() []string {
	names := make([]string, 0, len(c.registries)+len(c.titleDBs))
	for _, p := range c.registries {
		names = append(names, p.name)
	}
	for _, p := range c.titleDBs {
		names = append(names, p.name)
	}
	return names
}

// RegisterKeys seeds the key pool with every provider's configured keys. It
// runs once per Client; later calls return the first result.
func (c *Client) RegisterKeys(ctx context.Context) error {
	c.registerOnce.Do(func() {
		for _, p := range c.all() {
			if err := c.pool.Register(ctx, p.name, p.creds.Keys, p.creds.DailyLimit); err != nil {
				c.registerErr = fmt.Errorf("register %s keys: %w", p.name, err)
				return
			}
		}
	})
	return c.registerErr
}

func (c *Client) all() []*provider {
	return append(append([]*provider(nil), c.registries...), c.titleDBs...)
}

// Lookup searches for the file at path, named name on disk. Provider
// failures never fail the lookup; only key pool persistence errors and
// context cancellation are returned.
func (c *Client) Lookup(ctx context.Context, path, name string) (Outcome, error) {
	if err := c.RegisterKeys(ctx); err != nil {
		return Outcome{}, err
	}
	var (
		out     Outcome
		starved bool
	)
	finish := func() (Outcome, error) {
		if out.Result == nil && len(out.Records) > 0 {
			out.Result = out.Records[0]
		}
		out.Deferred = starved && !out.Result.HasDuration()
		return out, nil
	}

	for _, p := range c.registries {
		res, noKey, err := c.call(ctx, p, func(ctx context.Context, key string) (*providers.Result, error) {
			return p.registry.LookupPath(ctx, key, path)
		})
		if err != nil {
			return Outcome{}, err
		}
		starved = starved || noKey
		if res == nil {
			continue
		}
		out.Records = append(out.Records, res)
		if res.HasDuration() {
			out.Result = res
			return finish()
		}
	}

	q := GuessFromName(name).Query()
	if len(out.Records) > 0 {
		q = refineQuery(q, out.Records[0])
	}
	for _, p := range c.titleDBs {
		res, noKey, err := c.call(ctx, p, func(ctx context.Context, key string) (*providers.Result, error) {
			return p.titleDB.Lookup(ctx, key, q)
		})
		if err != nil {
			return Outcome{}, err
		}
		starved = starved || noKey
		if res == nil {
			continue
		}
		out.Records = append(out.Records, res)
		if res.HasDuration() {
			out.Result = res
			return finish()
		}
	}
	return finish()
}

// refineQuery prefers what a registry knows over what the filename suggests.
func refineQuery(q providers.Query, match *providers.Result) providers.Query {
	q.IMDbID = match.IMDbID
	if strings.TrimSpace(match.Title) != "" {
		q.Title = match.Title
		q.Year = match.Year
	}
	if match.MediaType != providers.MediaUnknown && match.MediaType != "" {
		q.MediaType = match.MediaType
	}
	if match.Season > 0 && match.Episode > 0 {
		q.Season, q.Episode = match.Season, match.Episode
	}
	return q
}

// call runs one provider lookup with a pooled key. The key is charged once per
// HTTP request the lookup issued, and at least once. It returns the match (nil
// for no match or a skipped provider) and whether the provider was skipped
// because no key was eligible.
func (c *Client) call(ctx context.Context, p *provider, fn func(ctx context.Context, key string) (*providers.Result, error)) (*providers.Result, bool, error) {
	ctx = services.WithProvider(ctx, p.name)
	logger := logging.WithContext(ctx, c.logger)

	key, ok, err := c.pool.Acquire(ctx, p.name)
	if err != nil {
		return nil, false, fmt.Errorf("acquire %s key: %w", p.name, err)
	}
	if !ok {
		c.observe(p.name, OutcomeNoKey)
		logging.WarnWithContext(logger, "no eligible api key", "keys_exhausted",
			logging.String(logging.FieldImpact, "provider skipped; file will be looked up again on a later run"),
			logging.String(logging.FieldErrorHint, "wait for the daily reset or add keys to the config"),
		)
		return nil, true, nil
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, false, err
	}
	callCtx, requests := providers.WithRequestCounter(ctx)
	res, callErr := fn(callCtx, key.Value)
	if err := c.pool.ReportCalls(ctx, key, max(requests.Count(), 1)); err != nil {
		return nil, false, fmt.Errorf("report %s usage: %w", p.name, err)
	}

	switch {
	case callErr == nil && res != nil:
		c.observe(p.name, OutcomeMatch)
		logger.Debug("provider match",
			logging.String("title", res.Title),
			logging.Int("year", res.Year),
			logging.Duration("expected_duration", res.ExpectedDuration),
		)
		return res, false, nil
	case callErr == nil, errors.Is(callErr, providers.ErrNoMatch):
		c.observe(p.name, OutcomeNoMatch)
		logger.Debug("provider has no match")
		return nil, false, nil
	case providers.IsCredentialFailure(callErr):
		c.observe(p.name, OutcomeCredential)
		reason := keypool.ReasonAuthRejected
		if providers.IsQuota(callErr) {
			reason = keypool.ReasonQuotaExceeded
		}
		if err := c.pool.ReportFailure(ctx, key, reason); err != nil {
			return nil, false, fmt.Errorf("block %s key: %w", p.name, err)
		}
		return nil, false, nil
	default:
		c.observe(p.name, OutcomeError)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, false, ctxErr
		}
		logging.WarnWithContext(logger, "provider request failed", "provider_failure",
			logging.Error(callErr),
			logging.String("category", services.Category(callErr)),
			logging.String(logging.FieldImpact, "provider skipped for this file"),
			logging.String(logging.FieldErrorHint, "check the provider URL and network reachability"),
		)
		return nil, false, nil
	}
}

func (c *Client) observe(provider, outcome string) {
	if c.observer != nil {
		c.observer.ProviderRequest(provider, outcome)
	}
}
