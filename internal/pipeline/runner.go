package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"mediaguard/internal/logging"
	"mediaguard/internal/notifications"
	"mediaguard/internal/services"
	"mediaguard/internal/store"
)

const (
	defaultWorkers   = 4
	defaultQueueSize = 64
)

// Batch selects the files of one run.
type Batch struct {
	// Force re-drives every file that is not manually marked valid.
	Force bool
	// PathPrefix limits the run to files at or below this path.
	PathPrefix string
}

// Summary reports the result of one run.
type Summary struct {
	Candidates int
	Processed  int
	Skipped    int
	ByStatus   map[store.Status]int
	Errors     int
	ByCategory map[string]int
	Deferred   int
	Overridden int
	Duration   time.Duration
	Cancelled  bool
}

// Count returns the number of files that ended in status.
func (s Summary) Count(status store.Status) int {
	return s.ByStatus[status]
}

func (s *Summary) record(out Outcome, err error) {
	s.Processed++
	if out.Status != "" {
		s.ByStatus[out.Status]++
	}
	if out.Deferred {
		s.Deferred++
	}
	if out.Overridden {
		s.Overridden++
	}
	if err != nil {
		s.Errors++
		s.ByCategory[services.Category(err)]++
	}
}

// Runner processes store candidates with a bounded worker pool.
type Runner struct {
	orchestrator *Orchestrator
	workers      int
	queueSize    int
}

// NewRunner builds a runner around o. Non-positive sizes use defaults.
func NewRunner(o *Orchestrator, workers, queueSize int) *Runner {
	if workers <= 0 {
		workers = defaultWorkers
	}
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Runner{orchestrator: o, workers: workers, queueSize: queueSize}
}

// Workers returns the worker count.
func (r *Runner) Workers() int {
	return r.workers
}

// Run processes every candidate of batch. Cancelling ctx stops dequeuing;
// files already started run to completion. Per-file failures are counted in
// the summary and never abort the run.
func (r *Runner) Run(ctx context.Context, batch Batch) (Summary, error) {
	o := r.orchestrator
	logger := logging.WithContext(ctx, o.logger)
	start := o.now()

	files, err := o.store.Candidates(ctx, batch.Force)
	if err != nil {
		return Summary{}, fmt.Errorf("load candidates: %w", err)
	}
	files = filterPrefix(files, batch.PathPrefix)

	summary := Summary{
		Candidates: len(files),
		ByStatus:   make(map[store.Status]int),
		ByCategory: make(map[string]int),
	}
	logger.Info("pipeline run started",
		logging.Int("candidates", len(files)),
		logging.Int("workers", r.workers),
		logging.Bool("force", batch.Force),
	)

	queue := make(chan *store.MediaFile, r.queueSize)
	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.Go(func() error {
		defer close(queue)
		for _, file := range files {
			select {
			case <-ctx.Done():
				return nil
			case queue <- file:
			}
		}
		return nil
	})
	for range r.workers {
		g.Go(func() error {
			for file := range queue {
				if ctx.Err() != nil {
					continue
				}
				out, err := o.ProcessFile(context.WithoutCancel(ctx), file)
				mu.Lock()
				summary.record(out, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	summary.Skipped = summary.Candidates - summary.Processed
	summary.Cancelled = ctx.Err() != nil
	summary.Duration = o.now().Sub(start)

	r.report(context.WithoutCancel(ctx), summary)
	return summary, nil
}

func (r *Runner) report(ctx context.Context, summary Summary) {
	o := r.orchestrator
	logger := logging.WithContext(ctx, o.logger)
	attrs := []logging.Attr{
		logging.Int("processed", summary.Processed),
		logging.Int("valid", summary.Count(store.StatusValid)),
		logging.Int("needs_review", summary.Count(store.StatusNeedsReview)),
		logging.Int("unknown", summary.Count(store.StatusUnknown)),
		logging.Int("awaiting_lookup", summary.Count(store.StatusAwaitingLookup)),
		logging.Int("deferred", summary.Deferred),
		logging.Int("errors", summary.Errors),
		logging.Duration("duration", summary.Duration),
	}
	if summary.Cancelled {
		attrs = append(attrs, logging.Int("skipped", summary.Skipped))
		logging.WarnWithContext(logger, "pipeline run cancelled", "run_cancelled",
			append(attrs,
				logging.String(logging.FieldImpact, "remaining files stay queued for the next run"),
				logging.String(logging.FieldErrorHint, "rerun mediaguard scan to continue"),
			)...,
		)
	} else {
		logger.Info("pipeline run completed", logging.Args(attrs...)...)
	}

	if summary.Deferred > 0 {
		logging.WarnWithContext(logger, "provider keys exhausted", "keys_exhausted",
			logging.Int("deferred", summary.Deferred),
			logging.String(logging.FieldImpact, "deferred files will be looked up on the next run"),
			logging.String(logging.FieldErrorHint, "run `mediaguard keys` to inspect quotas"),
		)
		o.publish(ctx, notifications.EventKeysExhausted, notifications.Payload{"deferred": summary.Deferred})
	}
	if summary.Processed == 0 {
		return
	}
	o.publish(ctx, notifications.EventBatchCompleted, notifications.Payload{
		"processed": summary.Processed,
		"valid":     summary.Count(store.StatusValid),
		"review":    summary.Count(store.StatusNeedsReview) + summary.Count(store.StatusTooShort) + summary.Count(store.StatusCorrupted),
		"unknown":   summary.Count(store.StatusUnknown),
		"deferred":  summary.Deferred,
		"errors":    summary.Errors,
		"duration":  summary.Duration,
	})
}

func filterPrefix(files []*store.MediaFile, prefix string) []*store.MediaFile {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return files
	}
	prefix = filepath.Clean(prefix)
	filtered := files[:0:0]
	for _, file := range files {
		if file.Path == prefix || strings.HasPrefix(file.Path, prefix+string(filepath.Separator)) {
			filtered = append(filtered, file)
		}
	}
	return filtered
}
