package keypool_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"mediaguard/internal/keypool"
	"mediaguard/internal/store"
	"mediaguard/internal/testsupport"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newPool(t *testing.T) (*keypool.Pool, *store.Store, *fakeClock) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	clock := &fakeClock{now: time.Date(2024, 6, 10, 12, 0, 0, 0, time.Local)}
	return keypool.New(st, keypool.WithClock(clock.Now)), st, clock
}

func useKey(t *testing.T, pool *keypool.Pool, key keypool.Key, times int) {
	t.Helper()
	for i := 0; i < times; i++ {
		if err := pool.ReportUsage(context.Background(), key); err != nil {
			t.Fatalf("ReportUsage: %v", err)
		}
	}
}

func TestAcquirePrefersLeastUsed(t *testing.T) {
	pool, _, _ := newPool(t)
	ctx := context.Background()
	if err := pool.Register(ctx, "omdb", []string{"key-a", "key-b"}, 1000); err != nil {
		t.Fatalf("Register: %v", err)
	}
	useKey(t, pool, keypool.Key{Provider: "omdb", Value: "key-a"}, 5)
	useKey(t, pool, keypool.Key{Provider: "omdb", Value: "key-b"}, 50)

	key, ok, err := pool.Acquire(ctx, "omdb")
	if err != nil || !ok {
		t.Fatalf("Acquire: ok=%v err=%v", ok, err)
	}
	if key.Value != "key-a" {
		t.Fatalf("expected least used key-a, got %s", key.Value)
	}
}

func TestAcquireTieGoesToFirstRegistered(t *testing.T) {
	pool, _, _ := newPool(t)
	ctx := context.Background()
	if err := pool.Register(ctx, "omdb", []string{"zeta", "alpha"}, 0); err != nil {
		t.Fatalf("Register: %v", err)
	}
	key, ok, err := pool.Acquire(ctx, "omdb")
	if err != nil || !ok || key.Value != "zeta" {
		t.Fatalf("Acquire = %+v %v %v", key, ok, err)
	}
}

func TestBlockedKeyRecoversAfterBlockDuration(t *testing.T) {
	pool, _, clock := newPool(t)
	ctx := context.Background()
	if err := pool.Register(ctx, "omdb", []string{"only"}, 0); err != nil {
		t.Fatalf("Register: %v", err)
	}
	key := keypool.Key{Provider: "omdb", Value: "only"}
	if err := pool.ReportFailure(ctx, key, keypool.ReasonAuthRejected); err != nil {
		t.Fatalf("ReportFailure: %v", err)
	}

	if _, ok, err := pool.Acquire(ctx, "omdb"); err != nil || ok {
		t.Fatalf("expected blocked key to be ineligible, ok=%v err=%v", ok, err)
	}
	clock.Advance(23*time.Hour + 59*time.Minute)
	if _, ok, _ := pool.Acquire(ctx, "omdb"); ok {
		t.Fatal("key eligible before block expired")
	}
	clock.Advance(2 * time.Minute)
	got, ok, err := pool.Acquire(ctx, "omdb")
	if err != nil || !ok || got != key {
		t.Fatalf("expected key eligible after 24h, got %+v ok=%v err=%v", got, ok, err)
	}
}

func TestBlockSurvivesRestart(t *testing.T) {
	pool, st, clock := newPool(t)
	ctx := context.Background()
	if err := pool.Register(ctx, "omdb", []string{"a", "b"}, 0); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := pool.ReportFailure(ctx, keypool.Key{Provider: "omdb", Value: "a"}, keypool.ReasonQuotaExceeded); err != nil {
		t.Fatalf("ReportFailure: %v", err)
	}

	restarted := keypool.New(st, keypool.WithClock(clock.Now))
	if err := restarted.Register(ctx, "omdb", []string{"a", "b"}, 0); err != nil {
		t.Fatalf("Register after restart: %v", err)
	}
	key, ok, err := restarted.Acquire(ctx, "omdb")
	if err != nil || !ok || key.Value != "b" {
		t.Fatalf("expected unblocked key b, got %+v ok=%v err=%v", key, ok, err)
	}
}

func TestDailyLimitAndRollover(t *testing.T) {
	pool, _, clock := newPool(t)
	ctx := context.Background()
	if err := pool.Register(ctx, "tmdb", []string{"k"}, 2); err != nil {
		t.Fatalf("Register: %v", err)
	}
	key := keypool.Key{Provider: "tmdb", Value: "k"}
	useKey(t, pool, key, 2)
	if _, ok, _ := pool.Acquire(ctx, "tmdb"); ok {
		t.Fatal("key should be exhausted at its daily limit")
	}

	clock.Advance(11*time.Hour + 59*time.Minute)
	if _, ok, _ := pool.Acquire(ctx, "tmdb"); ok {
		t.Fatal("counter reset before midnight")
	}
	clock.Advance(2 * time.Minute)
	if _, ok, _ := pool.Acquire(ctx, "tmdb"); !ok {
		t.Fatal("counter did not roll over at local midnight")
	}
	useKey(t, pool, key, 1)
	statuses, err := pool.Statuses(ctx, "tmdb")
	if err != nil {
		t.Fatalf("Statuses: %v", err)
	}
	if len(statuses) != 1 || statuses[0].CallsToday != 1 || !statuses[0].Eligible {
		t.Fatalf("unexpected status after rollover %+v", statuses)
	}
}

func TestReportCallsChargesEachRequest(t *testing.T) {
	pool, _, _ := newPool(t)
	ctx := context.Background()
	if err := pool.Register(ctx, "sonarr-main", []string{"k"}, 4); err != nil {
		t.Fatalf("Register: %v", err)
	}
	key, ok, err := pool.Acquire(ctx, "sonarr-main")
	if err != nil || !ok {
		t.Fatalf("Acquire: %v %v", ok, err)
	}
	if err := pool.ReportCalls(ctx, key, 3); err != nil {
		t.Fatalf("ReportCalls: %v", err)
	}
	if err := pool.ReportCalls(ctx, key, 0); err != nil {
		t.Fatalf("ReportCalls zero: %v", err)
	}
	statuses, err := pool.Statuses(ctx, "sonarr-main")
	if err != nil {
		t.Fatalf("Statuses: %v", err)
	}
	if len(statuses) != 1 || statuses[0].CallsToday != 3 || !statuses[0].Eligible {
		t.Fatalf("unexpected status %+v", statuses)
	}
	if err := pool.ReportCalls(ctx, key, 1); err != nil {
		t.Fatalf("ReportCalls: %v", err)
	}
	if _, ok, _ := pool.Acquire(ctx, "sonarr-main"); ok {
		t.Fatal("key should be exhausted once its requests reach the daily limit")
	}
}

func TestConcurrentUsageIsCounted(t *testing.T) {
	pool, _, _ := newPool(t)
	ctx := context.Background()
	if err := pool.Register(ctx, "omdb", []string{"a", "b"}, 10); err != nil {
		t.Fatalf("Register: %v", err)
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		acquired int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				key, ok, err := pool.Acquire(ctx, "omdb")
				if err != nil || !ok {
					return
				}
				if err := pool.ReportUsage(ctx, key); err != nil {
					t.Errorf("ReportUsage: %v", err)
					return
				}
				mu.Lock()
				acquired++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	statuses, err := pool.Statuses(ctx, "omdb")
	if err != nil {
		t.Fatalf("Statuses: %v", err)
	}
	total := 0
	for _, s := range statuses {
		total += s.CallsToday
	}
	if total != acquired {
		t.Fatalf("counted %d calls, acquired %d", total, acquired)
	}
	if acquired < 20 {
		t.Fatalf("expected at least 20 successful acquisitions, got %d", acquired)
	}
}

func TestReportUnknownKey(t *testing.T) {
	pool, _, _ := newPool(t)
	ctx := context.Background()
	if err := pool.Register(ctx, "omdb", []string{"a"}, 0); err != nil {
		t.Fatalf("Register: %v", err)
	}
	err := pool.ReportUsage(ctx, keypool.Key{Provider: "omdb", Value: "missing"})
	if !errors.Is(err, keypool.ErrUnknownKey) {
		t.Fatalf("expected ErrUnknownKey, got %v", err)
	}
}

func TestNoKeysRegistered(t *testing.T) {
	pool, _, _ := newPool(t)
	if _, ok, err := pool.Acquire(context.Background(), "tmdb"); err != nil || ok {
		t.Fatalf("expected no key, ok=%v err=%v", ok, err)
	}
}

func TestMask(t *testing.T) {
	if got := keypool.Mask("abcdef123456"); got != "********3456" {
		t.Fatalf("Mask = %q", got)
	}
	if got := keypool.Mask("abc"); got != "***" {
		t.Fatalf("Mask short = %q", got)
	}
}
