package keypool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"mediaguard/internal/logging"
	"mediaguard/internal/services"
	"mediaguard/internal/store"
)

// BlockDuration is how long a rejected or exhausted key stays unusable.
const BlockDuration = 24 * time.Hour

// Reason explains why a key was blocked.
type Reason string

const (
	ReasonQuotaExceeded Reason = "quota_exceeded"
	ReasonAuthRejected  Reason = "auth_rejected"
)

// ErrUnknownKey is returned when a report names a key the pool does not hold.
var ErrUnknownKey = errors.New("api key not registered")

// KeyStore is the persistence the pool needs.
type KeyStore interface {
	RegisterKeys(ctx context.Context, provider string, keys []string, dailyLimit int, dayStart time.Time) error
	UpdateKeys(ctx context.Context, provider string, fn func([]store.KeyState) ([]store.KeyState, error)) error
	ListKeys(ctx context.Context, provider string) ([]store.KeyState, error)
}

// Key is a handle to one credential of one provider.
type Key struct {
	Provider string
	Value    string
}

// Masked returns the key with all but its last four characters hidden.
func (k Key) Masked() string {
	return Mask(k.Value)
}

// Mask hides all but the last four characters of value.
func Mask(value string) string {
	if len(value) <= 4 {
		return strings.Repeat("*", len(value))
	}
	return strings.Repeat("*", len(value)-4) + value[len(value)-4:]
}

// Status is a point-in-time view of one key, with rollover applied.
type Status struct {
	Provider     string
	Masked       string
	CallsToday   int
	DailyLimit   int
	BlockedUntil *time.Time
	BlockReason  string
	LastUsedAt   *time.Time
	Eligible     bool
}

// Pool selects, counts and blocks keys. It is safe for concurrent use.
type Pool struct {
	store  KeyStore
	logger *slog.Logger
	now    func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Option configures a Pool.
type Option func(*Pool)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(p *Pool) {
		if now != nil {
			p.now = now
		}
	}
}

// WithLogger sets the pool logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pool) {
		p.logger = logging.NewComponentLogger(logger, "keypool")
	}
}

// New constructs a Pool over st.
func New(st KeyStore, opts ...Option) *Pool {
	p := &Pool{
		store:  st,
		logger: logging.NewComponentLogger(nil, "keypool"),
		now:    time.Now,
		locks:  make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Pool) providerLock(provider string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	lock, ok := p.locks[provider]
	if !ok {
		lock = &sync.Mutex{}
		p.locks[provider] = lock
	}
	return lock
}

// Register makes keys the active credential set of provider. dailyLimit 0
// means unlimited. Empty keys are ignored; duplicates keep their first position.
func (p *Pool) Register(ctx context.Context, provider string, keys []string, dailyLimit int) error {
	provider = strings.TrimSpace(provider)
	if provider == "" {
		return services.Wrap(services.ErrConfiguration, "keypool", "register", "provider name is empty", nil)
	}
	if dailyLimit < 0 {
		dailyLimit = 0
	}
	seen := make(map[string]struct{}, len(keys))
	cleaned := make([]string, 0, len(keys))
	for _, key := range keys {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		cleaned = append(cleaned, key)
	}

	lock := p.providerLock(provider)
	lock.Lock()
	defer lock.Unlock()
	return p.store.RegisterKeys(ctx, provider, cleaned, dailyLimit, startOfDay(p.now()))
}

// Acquire returns the eligible key of provider with the fewest calls today,
// ties going to the earlier registered key. ok is false when every key is
// blocked or at its daily limit.
func (p *Pool) Acquire(ctx context.Context, provider string) (Key, bool, error) {
	lock := p.providerLock(provider)
	lock.Lock()
	defer lock.Unlock()

	states, err := p.store.ListKeys(ctx, provider)
	if err != nil {
		return Key{}, false, err
	}
	now := p.now()
	var (
		best  *store.KeyState
		found bool
	)
	for i := range states {
		state := rollover(states[i], now)
		if !eligible(state, now) {
			continue
		}
		if !found || state.CallsToday < best.CallsToday {
			best = &state
			found = true
		}
	}
	if !found {
		return Key{}, false, nil
	}
	return Key{Provider: provider, Value: best.Key}, true, nil
}

// ReportUsage counts one call against key, resetting the counter first when
// the day has rolled over.
func (p *Pool) ReportUsage(ctx context.Context, key Key) error {
	return p.ReportCalls(ctx, key, 1)
}

// ReportCalls charges key for n requests made in one lookup.
func (p *Pool) ReportCalls(ctx context.Context, key Key, n int) error {
	if n <= 0 {
		return nil
	}
	lock := p.providerLock(key.Provider)
	lock.Lock()
	defer lock.Unlock()

	now := p.now()
	var matched bool
	err := p.store.UpdateKeys(ctx, key.Provider, func(states []store.KeyState) ([]store.KeyState, error) {
		matched = false
		for _, state := range states {
			if state.Key != key.Value {
				continue
			}
			matched = true
			state = rollover(state, now)
			state.CallsToday += n
			used := now
			state.LastUsedAt = &used
			return []store.KeyState{state}, nil
		}
		return nil, nil
	})
	if err != nil {
		return err
	}
	if !matched {
		return fmt.Errorf("report usage for %s key %s: %w", key.Provider, key.Masked(), ErrUnknownKey)
	}
	return nil
}

// ReportFailure blocks key for BlockDuration. Both reasons mean the key is
// unusable for the rest of the day.
func (p *Pool) ReportFailure(ctx context.Context, key Key, reason Reason) error {
	lock := p.providerLock(key.Provider)
	lock.Lock()
	defer lock.Unlock()

	now := p.now()
	until := now.Add(BlockDuration)
	var matched bool
	err := p.store.UpdateKeys(ctx, key.Provider, func(states []store.KeyState) ([]store.KeyState, error) {
		matched = false
		for _, state := range states {
			if state.Key != key.Value {
				continue
			}
			matched = true
			state = rollover(state, now)
			blocked := until
			state.BlockedUntil = &blocked
			state.BlockReason = string(reason)
			return []store.KeyState{state}, nil
		}
		return nil, nil
	})
	if err != nil {
		return err
	}
	if !matched {
		return fmt.Errorf("report failure for %s key %s: %w", key.Provider, key.Masked(), ErrUnknownKey)
	}
	logging.WarnWithContext(p.logger, "api key blocked", "key_blocked",
		logging.String(logging.FieldProvider, key.Provider),
		logging.String("key", key.Masked()),
		logging.String("reason", string(reason)),
		logging.String("blocked_until", until.Format(time.RFC3339)),
		logging.String(logging.FieldImpact, "provider skips this key until the block expires"),
		logging.String(logging.FieldErrorHint, "check the key with mediaguard providers test"),
	)
	return nil
}

// Statuses reports every active key of provider, or of all providers when
// provider is empty.
func (p *Pool) Statuses(ctx context.Context, provider string) ([]Status, error) {
	states, err := p.store.ListKeys(ctx, provider)
	if err != nil {
		return nil, err
	}
	now := p.now()
	out := make([]Status, 0, len(states))
	for _, state := range states {
		state = rollover(state, now)
		out = append(out, Status{
			Provider:     state.Provider,
			Masked:       Mask(state.Key),
			CallsToday:   state.CallsToday,
			DailyLimit:   state.DailyLimit,
			BlockedUntil: activeBlock(state.BlockedUntil, now),
			BlockReason:  state.BlockReason,
			LastUsedAt:   state.LastUsedAt,
			Eligible:     eligible(state, now),
		})
	}
	return out, nil
}

// Available reports whether provider has at least one eligible key.
func (p *Pool) Available(ctx context.Context, provider string) (bool, error) {
	_, ok, err := p.Acquire(ctx, provider)
	return ok, err
}

func eligible(state store.KeyState, now time.Time) bool {
	if state.BlockedUntil != nil && state.BlockedUntil.After(now) {
		return false
	}
	return state.DailyLimit == 0 || state.CallsToday < state.DailyLimit
}

func rollover(state store.KeyState, now time.Time) store.KeyState {
	today := startOfDay(now)
	if state.DayStart.Before(today) {
		state.CallsToday = 0
		state.DayStart = today
	}
	return state
}

func activeBlock(until *time.Time, now time.Time) *time.Time {
	if until == nil || !until.After(now) {
		return nil
	}
	return until
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
