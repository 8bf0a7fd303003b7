package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"mediaguard/internal/logging"
	"mediaguard/internal/lookup"
	"mediaguard/internal/notifications"
	"mediaguard/internal/probe"
	"mediaguard/internal/services"
	"mediaguard/internal/store"
	"mediaguard/internal/validation"
)

const (
	stageProbe    = "probe"
	stageLookup   = "lookup"
	stageValidate = "validate"
)

// Prober extracts technical metadata from a media file.
type Prober interface {
	Probe(ctx context.Context, path string) (probe.Result, error)
}

// Lookuper finds the expected runtime of a media file.
type Lookuper interface {
	Lookup(ctx context.Context, path, name string) (lookup.Outcome, error)
}

// Outcome summarizes one ProcessFile run. Status is empty when the final
// state could not be persisted.
type Outcome struct {
	FileID     int64
	Path       string
	RequestID  string
	Status     store.Status
	Verdict    validation.Verdict
	Reason     string
	Deferred   bool
	Overridden bool
	Elapsed    time.Duration
}

// Orchestrator runs the per-file state machine.
type Orchestrator struct {
	store     *store.Store
	prober    Prober
	lookup    Lookuper
	validator *validation.Validator
	notifier  notifications.Service
	metrics   *Metrics
	logger    *slog.Logger
	now       func() time.Time

	reviewSuspicious bool
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the orchestrator logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithNotifier sets the service that receives review and failure events.
func WithNotifier(n notifications.Service) Option {
	return func(o *Orchestrator) {
		if n != nil {
			o.notifier = n
		}
	}
}

// WithMetrics records per-file counters and timings.
func WithMetrics(m *Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// WithReviewSuspicious controls whether TOO_SHORT and CORRUPTED verdicts are
// queued as NEEDS_REVIEW (the default) or persisted as-is.
func WithReviewSuspicious(enabled bool) Option {
	return func(o *Orchestrator) { o.reviewSuspicious = enabled }
}

// NewOrchestrator wires the pipeline collaborators.
func NewOrchestrator(st *store.Store, prober Prober, lookuper Lookuper, validator *validation.Validator, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:            st,
		prober:           prober,
		lookup:           lookuper,
		validator:        validator,
		notifier:         notifications.NewService(nil),
		logger:           logging.NewNop(),
		now:              time.Now,
		reviewSuspicious: true,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = logging.NewComponentLogger(o.logger, "pipeline")
	return o
}

// Validator exposes the validator so floors can be tuned between runs.
func (o *Orchestrator) Validator() *validation.Validator {
	return o.validator
}

// ProcessFile drives one file to its next resting state. The returned error
// is set for tool failures (after the file was recorded as UNKNOWN) and for
// persistence failures, which leave the file where it was.
func (o *Orchestrator) ProcessFile(ctx context.Context, file *store.MediaFile) (Outcome, error) {
	if file == nil {
		return Outcome{}, errors.New("process file: nil file")
	}
	requestID := uuid.NewString()
	ctx = services.WithRequestID(services.WithFileID(ctx, file.ID), requestID)
	start := o.now()
	out := Outcome{FileID: file.ID, Path: file.Path, RequestID: requestID}

	out, err := o.process(ctx, file, out)
	out.Elapsed = o.now().Sub(start)
	o.metrics.fileProcessed(out.Status, out.Elapsed)

	logger := logging.WithContext(ctx, o.logger)
	if err != nil {
		logging.ErrorWithContext(logger, "file processing failed", "file_failed",
			logging.String("path", file.Path),
			logging.String("error_category", services.Category(err)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, services.Hint(err)),
		)
		return out, err
	}
	logger.Info("file processed",
		logging.String("path", file.Path),
		logging.String("status", string(out.Status)),
		logging.String("verdict", string(out.Verdict)),
		logging.Bool("deferred", out.Deferred),
		logging.Duration("elapsed", out.Elapsed),
	)
	return out, nil
}

func (o *Orchestrator) process(ctx context.Context, file *store.MediaFile, out Outcome) (Outcome, error) {
	logger := logging.WithContext(ctx, o.logger)
	if file.ManualOverride {
		logger.Debug("manually marked valid; skipping", logging.String("path", file.Path))
		out.Status = store.StatusValid
		out.Verdict = validation.VerdictValid
		out.Overridden = true
		return out, nil
	}

	measured, hasVideo := file.DurationSeconds(), file.HasVideo
	if needsProbe(file) {
		probeCtx := services.WithStage(ctx, stageProbe)
		result, err := o.prober.Probe(probeCtx, file.Path)
		if err != nil {
			return o.recordProbeFailure(probeCtx, file, out, err)
		}
		if err := o.store.ReplaceStreams(probeCtx, file.ID, result, o.now()); err != nil {
			return o.persistFailed(out, err)
		}
		if done, err := o.transition(probeCtx, file.ID, store.Transition{Status: store.StatusProbed}, &out); done || err != nil {
			return out, err
		}
		measured, hasVideo = result.DurationSeconds(), result.HasVideo()
	}

	lookupCtx := services.WithStage(ctx, stageLookup)
	if done, err := o.transition(lookupCtx, file.ID, store.Transition{Status: store.StatusAwaitingLookup}, &out); done || err != nil {
		return out, err
	}
	found, err := o.lookup.Lookup(lookupCtx, file.Path, file.Name)
	if err != nil {
		return o.persistFailed(out, err)
	}
	for _, rec := range found.Records {
		if err := o.store.UpsertLookup(lookupCtx, toLookupRecord(file.ID, rec, o.now())); err != nil {
			return o.persistFailed(out, err)
		}
	}

	validateCtx := services.WithStage(ctx, stageValidate)
	expected := found.ExpectedSeconds()
	verdict := o.validator.Classify(measured, hasVideo, expected)
	reason := o.validator.Explain(verdict, measured, hasVideo, expected)
	out.Verdict = verdict
	out.Reason = reason
	out.Deferred = found.Deferred

	tr := o.decide(verdict, reason, found.Deferred)
	if found.Deferred {
		logging.WarnWithContext(logging.WithContext(validateCtx, o.logger), "lookup deferred; no usable provider key", "lookup_deferred",
			logging.String("path", file.Path),
			logging.String("floor_verdict", string(verdict)),
			logging.String("resolved_status", string(tr.Status)),
			logging.String(logging.FieldErrorHint, "run `mediaguard keys` to see when keys unblock"),
			logging.String(logging.FieldImpact, "file will be looked up again on the next run"),
		)
	}
	if done, err := o.transition(validateCtx, file.ID, tr, &out); done || err != nil {
		return out, err
	}

	switch tr.Status {
	case store.StatusNeedsReview, store.StatusTooShort, store.StatusCorrupted:
		o.publish(validateCtx, notifications.EventReviewNeeded, notifications.Payload{
			"file":   file.Name,
			"reason": reason,
		})
	case store.StatusUnknown:
		o.publish(validateCtx, notifications.EventProbeFailed, notifications.Payload{
			"file":  file.Name,
			"error": reason,
		})
	}
	return out, nil
}

// decide maps a verdict to the persisted transition.
func (o *Orchestrator) decide(verdict validation.Verdict, reason string, deferred bool) store.Transition {
	switch verdict {
	case validation.VerdictValid:
		if deferred {
			// provisional: a later lookup may still flag it
			return store.Transition{Status: store.StatusAwaitingLookup, Deferred: true, Verdict: string(verdict)}
		}
		return store.Transition{Status: store.StatusValid, Verdict: string(verdict)}
	case validation.VerdictTooShort, validation.VerdictCorrupted:
		if !o.reviewSuspicious {
			return store.Transition{
				Status:       store.Status(verdict),
				Deferred:     deferred,
				Verdict:      string(verdict),
				ReviewReason: reason,
			}
		}
		return store.Transition{
			Status:       store.StatusNeedsReview,
			NeedsReview:  true,
			Deferred:     deferred,
			Verdict:      string(verdict),
			ReviewReason: reason,
		}
	default:
		return store.Transition{
			Status:       store.StatusUnknown,
			NeedsReview:  true,
			Verdict:      string(validation.VerdictUnknown),
			ReviewReason: reason,
		}
	}
}

func (o *Orchestrator) recordProbeFailure(ctx context.Context, file *store.MediaFile, out Outcome, probeErr error) (Outcome, error) {
	wrapped := services.Wrap(services.ErrToolFailure, stageProbe, "probe", file.Name, probeErr)
	kind := ""
	var failure *probe.Failure
	if errors.As(probeErr, &failure) {
		kind = string(failure.Kind)
	}
	logging.WarnWithContext(logging.WithContext(ctx, o.logger), "probe failed", "probe_failed",
		logging.String("path", file.Path),
		logging.String("failure_kind", kind),
		logging.Error(probeErr),
		logging.String(logging.FieldErrorHint, "run ffprobe against the file by hand"),
		logging.String(logging.FieldImpact, "file marked UNKNOWN"),
	)
	out.Verdict = validation.VerdictUnknown
	out.Reason = probeErr.Error()
	tr := store.Transition{
		Status:       store.StatusUnknown,
		NeedsReview:  true,
		Verdict:      string(validation.VerdictUnknown),
		ReviewReason: "probe failed",
		LastError:    probeErr.Error(),
	}
	if done, err := o.transition(ctx, file.ID, tr, &out); done || err != nil {
		return out, err
	}
	o.publish(ctx, notifications.EventProbeFailed, notifications.Payload{
		"file":  file.Name,
		"error": probeErr,
	})
	return out, wrapped
}

// transition persists tr. done reports that processing must stop because the
// file was manually marked valid in the meantime.
func (o *Orchestrator) transition(ctx context.Context, id int64, tr store.Transition, out *Outcome) (bool, error) {
	err := o.store.TransitionStatus(ctx, id, tr)
	switch {
	case err == nil:
		logging.WithContext(ctx, o.logger).Debug("status transition",
			logging.String("status", string(tr.Status)),
			logging.String(logging.FieldEventType, "status_transition"),
		)
		out.Status = tr.Status
		return false, nil
	case errors.Is(err, store.ErrOverridden):
		out.Status = store.StatusValid
		out.Verdict = validation.VerdictValid
		out.Overridden = true
		return true, nil
	default:
		*out, err = o.persistFailed(*out, err)
		return true, err
	}
}

func (o *Orchestrator) persistFailed(out Outcome, err error) (Outcome, error) {
	out.Status = ""
	if errors.Is(err, services.ErrPersistenceFailure) || errors.Is(err, context.Canceled) {
		return out, err
	}
	return out, services.Wrap(services.ErrPersistenceFailure, "pipeline", "persist", "", err)
}

func (o *Orchestrator) publish(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	if err := o.notifier.Publish(ctx, event, payload); err != nil {
		logging.WithContext(ctx, o.logger).Debug("notification failed",
			logging.String("event", string(event)),
			logging.Error(err),
		)
	}
}

// needsProbe reports whether stored probe data can be reused. Files waiting
// on a deferred lookup keep their measurements; everything else re-probes.
func needsProbe(file *store.MediaFile) bool {
	if file.ProbedAt == nil {
		return true
	}
	switch file.Status {
	case store.StatusProbed, store.StatusAwaitingLookup:
		return false
	case store.StatusNeedsReview, store.StatusTooShort, store.StatusCorrupted:
		return !file.LookupDeferred
	default:
		return true
	}
}
