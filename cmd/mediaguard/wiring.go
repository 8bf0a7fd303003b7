package main

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"mediaguard/internal/config"
	"mediaguard/internal/keypool"
	"mediaguard/internal/lookup"
	"mediaguard/internal/notifications"
	"mediaguard/internal/pipeline"
	"mediaguard/internal/probe"
	"mediaguard/internal/store"
	"mediaguard/internal/validation"
)

func newLookupClient(cfg *config.Config, st *store.Store, logger *slog.Logger, opts ...lookup.Option) (*lookup.Client, *keypool.Pool, error) {
	pool := keypool.New(st, keypool.WithLogger(logger))
	client, err := lookup.NewFromConfig(cfg, pool, logger, opts...)
	if err != nil {
		return nil, nil, err
	}
	return client, pool, nil
}

// newOrchestrator wires probe, lookup, validation and notifications from cfg.
// reg may be nil when metrics are not exported.
func newOrchestrator(cfg *config.Config, st *store.Store, logger *slog.Logger, reg prometheus.Registerer) (*pipeline.Orchestrator, error) {
	var metrics *pipeline.Metrics
	var lookupOpts []lookup.Option
	if reg != nil {
		metrics = pipeline.NewMetrics(reg)
		lookupOpts = append(lookupOpts, lookup.WithObserver(metrics))
	}

	client, _, err := newLookupClient(cfg, st, logger, lookupOpts...)
	if err != nil {
		return nil, err
	}
	adapter := probe.NewAdapter(cfg.FFprobeBinary(),
		probe.WithTimeout(cfg.ProbeTimeout()),
		probe.WithSidecars(cfg.Probe.Sidecars),
		probe.WithLogger(logger),
	)
	validator := validation.New(validation.SettingsFromConfig(cfg.Validation))

	return pipeline.NewOrchestrator(st, adapter, client, validator,
		pipeline.WithLogger(logger),
		pipeline.WithNotifier(notifications.NewService(cfg)),
		pipeline.WithMetrics(metrics),
		pipeline.WithReviewSuspicious(cfg.Validation.ReviewSuspicious),
	), nil
}
