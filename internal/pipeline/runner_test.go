package pipeline_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"mediaguard/internal/lookup"
	"mediaguard/internal/notifications"
	"mediaguard/internal/pipeline"
	"mediaguard/internal/probe"
	"mediaguard/internal/store"
)

func TestRunnerSummarizesBatch(t *testing.T) {
	metrics := pipeline.NewMetrics(prometheus.NewRegistry())
	f := newFixture(t, pipeline.WithMetrics(metrics))
	for _, name := range []string{"a.mkv", "b.mkv", "c.mkv", "d.mkv"} {
		f.addFile(t, name)
	}
	f.prober.results["a.mkv"] = videoResult(7080000)
	f.prober.results["b.mkv"] = videoResult(2520000)
	f.prober.results["c.mkv"] = videoResult(50000)
	f.prober.errs["d.mkv"] = &probe.Failure{Kind: probe.MalformedOutput, Err: errors.New("bad json")}
	f.lookup.set("a.mkv", registryMatch(120))
	f.lookup.set("b.mkv", registryMatch(120))
	f.lookup.set("c.mkv", lookup.Outcome{Deferred: true})

	summary, err := pipeline.NewRunner(f.orch, 3, 2).Run(context.Background(), pipeline.Batch{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Candidates != 4 || summary.Processed != 4 || summary.Skipped != 0 || summary.Cancelled {
		t.Fatalf("unexpected totals %+v", summary)
	}
	if summary.Count(store.StatusValid) != 1 || summary.Count(store.StatusNeedsReview) != 2 || summary.Count(store.StatusUnknown) != 1 {
		t.Fatalf("unexpected status counts %+v", summary.ByStatus)
	}
	if summary.Errors != 1 || summary.ByCategory["tool"] != 1 || summary.Deferred != 1 {
		t.Fatalf("unexpected error accounting %+v", summary)
	}

	if f.notifier.count(notifications.EventBatchCompleted) != 1 {
		t.Fatal("expected batch completed notification")
	}
	if f.notifier.count(notifications.EventKeysExhausted) != 1 {
		t.Fatal("expected keys exhausted notification")
	}
	if got := testutil.ToFloat64(metrics.FilesProcessed.WithLabelValues("NEEDS_REVIEW")); got != 2 {
		t.Fatalf("files processed metric = %v, want 2", got)
	}
	if got := testutil.CollectAndCount(metrics.FileDuration); got != 1 {
		t.Fatalf("expected one histogram series, got %d", got)
	}

	again, err := pipeline.NewRunner(f.orch, 3, 2).Run(context.Background(), pipeline.Batch{})
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if again.Candidates != 1 {
		t.Fatalf("only the deferred review should be re-driven, got %d candidates", again.Candidates)
	}
}

func TestRunnerForceAndPrefix(t *testing.T) {
	f := newFixture(t)
	movies := f.addFile(t, filepath.Join("movies", "a.mkv"))
	f.addFile(t, filepath.Join("shows", "b.mkv"))
	f.prober.results["a.mkv"] = videoResult(600000)
	f.prober.results["b.mkv"] = videoResult(600000)
	runner := pipeline.NewRunner(f.orch, 2, 1)
	ctx := context.Background()

	summary, err := runner.Run(ctx, pipeline.Batch{PathPrefix: filepath.Join(f.dir, "movies")})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Processed != 1 {
		t.Fatalf("prefix should select one file, got %d", summary.Processed)
	}
	if got := f.reload(t, movies.ID); got.Status != store.StatusValid {
		t.Fatalf("unexpected status %s", got.Status)
	}

	summary, err = runner.Run(ctx, pipeline.Batch{})
	if err != nil || summary.Processed != 1 {
		t.Fatalf("expected only the unprocessed file, got %+v, %v", summary, err)
	}
	summary, err = runner.Run(ctx, pipeline.Batch{Force: true})
	if err != nil || summary.Processed != 2 {
		t.Fatalf("force should re-drive every file, got %+v, %v", summary, err)
	}
}

func TestRunnerStopsDequeuingOnCancel(t *testing.T) {
	f := newFixture(t)
	for _, name := range []string{"a.mkv", "b.mkv", "c.mkv", "d.mkv", "e.mkv"} {
		f.addFile(t, name)
		f.prober.results[name] = videoResult(600000)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var once sync.Once
	f.prober.hook = func() { once.Do(cancel) }

	summary, err := pipeline.NewRunner(f.orch, 1, 1).Run(ctx, pipeline.Batch{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !summary.Cancelled || summary.Processed != 1 || summary.Skipped != 4 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if summary.Count(store.StatusValid) != 1 {
		t.Fatalf("in-flight file should finish, got %+v", summary.ByStatus)
	}
}

func TestRunnerWithNoCandidatesStaysQuiet(t *testing.T) {
	f := newFixture(t)
	summary, err := pipeline.NewRunner(f.orch, 0, 0).Run(context.Background(), pipeline.Batch{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Processed != 0 || len(f.notifier.events) != 0 {
		t.Fatalf("expected an empty run, got %+v and %v", summary, f.notifier.events)
	}
}
