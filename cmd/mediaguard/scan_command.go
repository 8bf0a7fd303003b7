package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"mediaguard/internal/config"
	"mediaguard/internal/logging"
	"mediaguard/internal/pipeline"
	"mediaguard/internal/scanner"
	"mediaguard/internal/store"
)

type scanOptions struct {
	workers     int
	force       bool
	skipWalk    bool
	minVideo    float64
	minAudio    float64
	metricsAddr string
	path        string
}

func newScanCommand(ctx *commandContext) *cobra.Command {
	var opts scanOptions

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan the library and validate new or changed files",
		Long: `Walks library.directories, records new and changed files, then probes,
looks up and validates every file that is not yet in a final state.

Files deferred because every provider key was exhausted are picked up again
on the next scan.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			lock := flock.New(cfg.LockPath())
			ok, err := lock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire scan lock: %w", err)
			}
			if !ok {
				return errors.New("another mediaguard scan is already running")
			}
			defer func() {
				if err := lock.Unlock(); err != nil {
					logger.Warn("failed to release scan lock", logging.Error(err))
				}
			}()

			st, err := ctx.openStore()
			if err != nil {
				return err
			}

			var reg prometheus.Registerer
			if strings.TrimSpace(opts.metricsAddr) != "" {
				registry := prometheus.NewRegistry()
				registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
				stop := serveMetrics(opts.metricsAddr, registry, logger)
				defer stop()
				reg = registry
			}

			return runScan(cmd.Context(), cmd.OutOrStdout(), cfg, st, logger, opts, reg, cmd.Flags().Changed("workers"))
		},
	}

	cmd.Flags().IntVarP(&opts.workers, "workers", "w", 0, "Number of files processed in parallel (default from config)")
	cmd.Flags().BoolVar(&opts.force, "force", false, "Re-validate every file that was not manually marked valid")
	cmd.Flags().BoolVar(&opts.skipWalk, "skip-walk", false, "Only process files already in the database")
	cmd.Flags().Float64Var(&opts.minVideo, "min-video", 0, "Override the minimum video duration in seconds")
	cmd.Flags().Float64Var(&opts.minAudio, "min-audio", 0, "Override the minimum audio duration in seconds")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address during the scan")
	cmd.Flags().StringVar(&opts.path, "path", "", "Limit the scan to this directory")
	return cmd
}

func runScan(ctx context.Context, out io.Writer, cfg *config.Config, st *store.Store, logger *slog.Logger, opts scanOptions, reg prometheus.Registerer, workersSet bool) error {
	path := strings.TrimSpace(opts.path)
	if path != "" {
		expanded, err := config.ExpandPath(path)
		if err != nil {
			return fmt.Errorf("resolve path: %w", err)
		}
		path = expanded
	}

	if !opts.skipWalk {
		result, err := scanner.New(cfg, st, logger).Scan(ctx, path)
		if err != nil {
			return fmt.Errorf("scan library: %w", err)
		}
		fmt.Fprintf(out, "Library: %d files (%d new, %d changed, %d removed)\n",
			result.Seen, result.New, result.Changed, result.Removed)
	}

	orch, err := newOrchestrator(cfg, st, logger, reg)
	if err != nil {
		return err
	}
	orch.Validator().SetFloors(opts.minVideo, opts.minAudio)

	workers := cfg.Pipeline.Workers
	if workersSet {
		workers = opts.workers
	}
	summary, err := pipeline.NewRunner(orch, workers, cfg.Pipeline.QueueSize).Run(ctx, pipeline.Batch{
		Force:      opts.force,
		PathPrefix: path,
	})
	if err != nil {
		return err
	}

	printSummary(out, summary)
	if summary.Cancelled {
		return context.Canceled
	}
	return nil
}

func printSummary(out io.Writer, summary pipeline.Summary) {
	if summary.Candidates == 0 {
		fmt.Fprintln(out, "Nothing to validate")
		return
	}
	colorize := shouldColorize(out)
	rows := make([][]string, 0, len(summary.ByStatus))
	for _, status := range store.AllStatuses() {
		count := summary.Count(status)
		if count == 0 {
			continue
		}
		rows = append(rows, []string{statusLabel(status, colorize), strconv.Itoa(count)})
	}
	if len(rows) > 0 {
		fmt.Fprintln(out, renderTable([]string{"Status", "Files"}, rows, []columnAlignment{alignLeft, alignRight}))
	}
	fmt.Fprintf(out, "Processed %d of %d files in %s\n", summary.Processed, summary.Candidates, summary.Duration.Round(time.Millisecond))
	if summary.Deferred > 0 {
		fmt.Fprintf(out, "Deferred: %d (no usable provider key; run `mediaguard keys`)\n", summary.Deferred)
	}
	if summary.Errors > 0 {
		fmt.Fprintf(out, "Errors: %d\n", summary.Errors)
	}
	if summary.Cancelled {
		fmt.Fprintf(out, "Cancelled: %d files left for the next scan\n", summary.Skipped)
	}
}

func serveMetrics(addr string, reg *prometheus.Registry, logger *slog.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server stopped", logging.String("addr", addr), logging.Error(err))
		}
	}()
	logger.Info("serving metrics", logging.String("addr", addr))
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}
}
