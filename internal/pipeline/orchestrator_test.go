package pipeline_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"mediaguard/internal/lookup"
	"mediaguard/internal/notifications"
	"mediaguard/internal/pipeline"
	"mediaguard/internal/probe"
	"mediaguard/internal/providers"
	"mediaguard/internal/services"
	"mediaguard/internal/store"
	"mediaguard/internal/testsupport"
	"mediaguard/internal/validation"
)

type fakeProber struct {
	mu      sync.Mutex
	results map[string]probe.Result
	errs    map[string]error
	calls   int
	hook    func()
}

func (f *fakeProber) Probe(_ context.Context, path string) (probe.Result, error) {
	f.mu.Lock()
	f.calls++
	hook := f.hook
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	name := filepath.Base(path)
	if err := f.errs[name]; err != nil {
		return probe.Result{}, err
	}
	return f.results[name], nil
}

func (f *fakeProber) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeLookup struct {
	mu       sync.Mutex
	outcomes map[string]lookup.Outcome
	err      error
	calls    int
}

func (f *fakeLookup) Lookup(_ context.Context, _ string, name string) (lookup.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return lookup.Outcome{}, f.err
	}
	return f.outcomes[name], nil
}

func (f *fakeLookup) set(name string, out lookup.Outcome) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes[name] = out
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notifications.Event
}

func (r *recordingNotifier) Publish(_ context.Context, event notifications.Event, _ notifications.Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingNotifier) count(event notifications.Event) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e == event {
			n++
		}
	}
	return n
}

func videoResult(ms int64) probe.Result {
	return probe.Result{
		DurationMS: &ms,
		FormatName: "matroska",
		Video:      &probe.VideoStream{Codec: "h264", Width: 1920, Height: 1080, FrameRate: 23.976, HDR: probe.HDRNone},
		Audio:      []probe.AudioStream{{Index: 1, Codec: "ac3", Language: "eng", Channels: 6}},
	}
}

func registryMatch(minutes int) lookup.Outcome {
	res := &providers.Result{
		Provider:         "radarr-main",
		ProviderID:       "42",
		Title:            "Movie",
		Year:             2020,
		ExpectedDuration: time.Duration(minutes) * time.Minute,
		IMDbID:           "tt42",
		MediaType:        providers.MediaMovie,
		Raw:              []byte(`{"id":42}`),
	}
	return lookup.Outcome{Result: res, Records: []*providers.Result{res}}
}

type fixture struct {
	st       *store.Store
	prober   *fakeProber
	lookup   *fakeLookup
	notifier *recordingNotifier
	orch     *pipeline.Orchestrator
	dir      string
}

func newFixture(t *testing.T, opts ...pipeline.Option) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	f := &fixture{
		st:       testsupport.MustOpenStore(t, cfg),
		prober:   &fakeProber{results: map[string]probe.Result{}, errs: map[string]error{}},
		lookup:   &fakeLookup{outcomes: map[string]lookup.Outcome{}},
		notifier: &recordingNotifier{},
		dir:      testsupport.LibraryDir(cfg),
	}
	all := append([]pipeline.Option{pipeline.WithNotifier(f.notifier)}, opts...)
	f.orch = pipeline.NewOrchestrator(f.st, f.prober, f.lookup, validation.New(validation.Settings{}), all...)
	return f
}

func (f *fixture) addFile(t *testing.T, name string) *store.MediaFile {
	t.Helper()
	return testsupport.MustUpsertFile(t, f.st, filepath.Join(f.dir, name))
}

func (f *fixture) reload(t *testing.T, id int64) *store.MediaFile {
	t.Helper()
	file, err := f.st.GetFile(context.Background(), id)
	if err != nil {
		t.Fatalf("GetFile: %v", err)
	}
	return file
}

func TestProcessFileWithinToleranceIsValid(t *testing.T) {
	f := newFixture(t)
	file := f.addFile(t, "movie.mkv")
	f.prober.results["movie.mkv"] = videoResult(7080000)
	f.lookup.set("movie.mkv", registryMatch(120))

	out, err := f.orch.ProcessFile(context.Background(), file)
	if err != nil {
		t.Fatalf("ProcessFile: %v", err)
	}
	if out.Status != store.StatusValid || out.Verdict != validation.VerdictValid || out.RequestID == "" {
		t.Fatalf("unexpected outcome %+v", out)
	}

	got := f.reload(t, file.ID)
	if got.Status != store.StatusValid || got.NeedsReview || got.DurationMS == nil || *got.DurationMS != 7080000 || !got.HasVideo {
		t.Fatalf("unexpected stored file %+v", got)
	}
	streams, err := f.st.Streams(context.Background(), file.ID)
	if err != nil {
		t.Fatalf("Streams: %v", err)
	}
	if len(streams.Video) != 1 || streams.Video[0].HDRType != string(probe.HDRNone) || len(streams.Audio) != 1 {
		t.Fatalf("unexpected streams %+v", streams)
	}
	records, err := f.st.ListLookups(context.Background(), file.ID)
	if err != nil {
		t.Fatalf("ListLookups: %v", err)
	}
	if len(records) != 1 || records[0].ExpectedDurationMS == nil || *records[0].ExpectedDurationMS != 7200000 {
		t.Fatalf("unexpected lookup records %+v", records)
	}
	if f.notifier.count(notifications.EventReviewNeeded) != 0 {
		t.Fatal("valid file should not notify")
	}
}

func TestProcessFileOutsideToleranceNeedsReview(t *testing.T) {
	f := newFixture(t)
	file := f.addFile(t, "movie.mkv")
	f.prober.results["movie.mkv"] = videoResult(2520000)
	f.lookup.set("movie.mkv", registryMatch(120))

	out, err := f.orch.ProcessFile(context.Background(), file)
	if err != nil {
		t.Fatalf("ProcessFile: %v", err)
	}
	if out.Status != store.StatusNeedsReview || out.Verdict != validation.VerdictTooShort {
		t.Fatalf("unexpected outcome %+v", out)
	}
	got := f.reload(t, file.ID)
	if !got.NeedsReview || got.Verdict != string(validation.VerdictTooShort) || got.ReviewReason == "" || got.LookupDeferred {
		t.Fatalf("unexpected stored file %+v", got)
	}
	if f.notifier.count(notifications.EventReviewNeeded) != 1 {
		t.Fatalf("expected one review notification, got %v", f.notifier.events)
	}
}

func TestProcessFileLongerThanExpectedNeedsReview(t *testing.T) {
	f := newFixture(t)
	file := f.addFile(t, "movie.mkv")
	f.prober.results["movie.mkv"] = videoResult(3 * 3600 * 1000)
	f.lookup.set("movie.mkv", registryMatch(120))

	out, err := f.orch.ProcessFile(context.Background(), file)
	if err != nil {
		t.Fatalf("ProcessFile: %v", err)
	}
	if out.Status != store.StatusNeedsReview {
		t.Fatalf("expected NEEDS_REVIEW, got %+v", out)
	}
}

func TestProcessFileWithoutMatchUsesFloor(t *testing.T) {
	f := newFixture(t)
	long := f.addFile(t, "long.mkv")
	short := f.addFile(t, "short.mkv")
	f.prober.results["long.mkv"] = videoResult(600000)
	f.prober.results["short.mkv"] = videoResult(50000)

	out, err := f.orch.ProcessFile(context.Background(), long)
	if err != nil || out.Status != store.StatusValid {
		t.Fatalf("long file: %+v, %v", out, err)
	}
	out, err = f.orch.ProcessFile(context.Background(), short)
	if err != nil || out.Status != store.StatusNeedsReview {
		t.Fatalf("short file: %+v, %v", out, err)
	}
	if got := f.reload(t, short.ID); got.LookupDeferred {
		t.Fatal("a lookup that found nothing is not deferred")
	}
}

func TestProbeFailureMarksUnknown(t *testing.T) {
	f := newFixture(t)
	file := f.addFile(t, "broken.mkv")
	f.prober.errs["broken.mkv"] = &probe.Failure{Kind: probe.NonZeroExit, Path: file.Path, Err: errors.New("exit status 1")}

	out, err := f.orch.ProcessFile(context.Background(), file)
	if !errors.Is(err, services.ErrToolFailure) {
		t.Fatalf("expected tool failure, got %v", err)
	}
	if out.Status != store.StatusUnknown {
		t.Fatalf("expected UNKNOWN, got %+v", out)
	}
	got := f.reload(t, file.ID)
	if got.Status != store.StatusUnknown || got.LastError == "" {
		t.Fatalf("unexpected stored file %+v", got)
	}
	if f.lookup.calls != 0 {
		t.Fatal("lookup must not run after a failed probe")
	}
	if f.notifier.count(notifications.EventProbeFailed) != 1 {
		t.Fatalf("expected probe failure notification, got %v", f.notifier.events)
	}
}

func TestMissingDurationIsUnknown(t *testing.T) {
	f := newFixture(t)
	file := f.addFile(t, "nodur.mkv")
	f.prober.results["nodur.mkv"] = probe.Result{Video: &probe.VideoStream{Codec: "h264"}}

	out, err := f.orch.ProcessFile(context.Background(), file)
	if err != nil {
		t.Fatalf("ProcessFile: %v", err)
	}
	if out.Status != store.StatusUnknown || out.Verdict != validation.VerdictUnknown {
		t.Fatalf("unexpected outcome %+v", out)
	}
}

func TestKeysExhaustedDefersAndRedrives(t *testing.T) {
	f := newFixture(t)
	file := f.addFile(t, "clip.mkv")
	f.prober.results["clip.mkv"] = videoResult(50000)
	f.lookup.set("clip.mkv", lookup.Outcome{Deferred: true})
	ctx := context.Background()

	out, err := f.orch.ProcessFile(ctx, file)
	if err != nil {
		t.Fatalf("ProcessFile: %v", err)
	}
	if out.Status != store.StatusNeedsReview || !out.Deferred {
		t.Fatalf("unexpected outcome %+v", out)
	}
	got := f.reload(t, file.ID)
	if !got.LookupDeferred || !got.NeedsReview {
		t.Fatalf("expected deferred review, got %+v", got)
	}

	candidates, err := f.st.Candidates(ctx, false)
	if err != nil {
		t.Fatalf("Candidates: %v", err)
	}
	if len(candidates) != 1 || candidates[0].ID != file.ID {
		t.Fatalf("deferred review should be re-driven, got %d candidates", len(candidates))
	}

	f.lookup.set("clip.mkv", registryMatch(1))
	out, err = f.orch.ProcessFile(ctx, candidates[0])
	if err != nil {
		t.Fatalf("re-drive: %v", err)
	}
	if out.Status != store.StatusValid || out.Deferred {
		t.Fatalf("unexpected re-drive outcome %+v", out)
	}
	if f.prober.callCount() != 1 {
		t.Fatalf("re-drive should reuse the stored probe, got %d probes", f.prober.callCount())
	}
	if got := f.reload(t, file.ID); got.LookupDeferred || got.NeedsReview {
		t.Fatalf("re-drive should clear deferral, got %+v", got)
	}
}

func TestKeysExhaustedAboveFloorStaysAwaitingLookup(t *testing.T) {
	f := newFixture(t)
	file := f.addFile(t, "feature.mkv")
	f.prober.results["feature.mkv"] = videoResult(5400000)
	f.lookup.set("feature.mkv", lookup.Outcome{Deferred: true})

	out, err := f.orch.ProcessFile(context.Background(), file)
	if err != nil {
		t.Fatalf("ProcessFile: %v", err)
	}
	if out.Status != store.StatusAwaitingLookup || !out.Deferred {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if got := f.reload(t, file.ID); got.Status != store.StatusAwaitingLookup {
		t.Fatalf("file advanced to %s", got.Status)
	}
}

func TestManualOverrideIsSticky(t *testing.T) {
	f := newFixture(t)
	file := f.addFile(t, "movie.mkv")
	ctx := context.Background()
	if err := f.st.MarkValid(ctx, file.ID); err != nil {
		t.Fatalf("MarkValid: %v", err)
	}
	f.prober.results["movie.mkv"] = videoResult(0)
	f.lookup.set("movie.mkv", registryMatch(120))

	for i := 0; i < 2; i++ {
		out, err := f.orch.ProcessFile(ctx, f.reload(t, file.ID))
		if err != nil {
			t.Fatalf("ProcessFile: %v", err)
		}
		if out.Status != store.StatusValid || !out.Overridden {
			t.Fatalf("unexpected outcome %+v", out)
		}
	}
	if f.prober.callCount() != 0 || f.lookup.calls != 0 {
		t.Fatal("overridden file must not be probed or looked up")
	}
	if got := f.reload(t, file.ID); got.Status != store.StatusValid || !got.ManualOverride {
		t.Fatalf("override lost: %+v", got)
	}
}

func TestOverrideDuringProcessingWins(t *testing.T) {
	f := newFixture(t)
	file := f.addFile(t, "movie.mkv")
	f.prober.results["movie.mkv"] = videoResult(1000)
	f.prober.hook = func() {
		if err := f.st.MarkValid(context.Background(), file.ID); err != nil {
			t.Errorf("MarkValid: %v", err)
		}
	}

	out, err := f.orch.ProcessFile(context.Background(), file)
	if err != nil {
		t.Fatalf("ProcessFile: %v", err)
	}
	if !out.Overridden || out.Status != store.StatusValid {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if f.lookup.calls != 0 {
		t.Fatal("processing should stop once the file is overridden")
	}
}

func TestStrictModePersistsVerdict(t *testing.T) {
	f := newFixture(t, pipeline.WithReviewSuspicious(false))
	file := f.addFile(t, "zero.mkv")
	f.prober.results["zero.mkv"] = videoResult(0)

	out, err := f.orch.ProcessFile(context.Background(), file)
	if err != nil {
		t.Fatalf("ProcessFile: %v", err)
	}
	if out.Status != store.StatusCorrupted {
		t.Fatalf("expected CORRUPTED, got %+v", out)
	}
	if got := f.reload(t, file.ID); got.Status != store.StatusCorrupted || got.NeedsReview {
		t.Fatalf("unexpected stored file %+v", got)
	}
}

func TestStrictModeDeferredVerdictIsRedriven(t *testing.T) {
	f := newFixture(t, pipeline.WithReviewSuspicious(false))
	file := f.addFile(t, "clip.mkv")
	f.prober.results["clip.mkv"] = videoResult(50000)
	f.lookup.set("clip.mkv", lookup.Outcome{Deferred: true})
	ctx := context.Background()

	out, err := f.orch.ProcessFile(ctx, file)
	if err != nil {
		t.Fatalf("ProcessFile: %v", err)
	}
	if out.Status != store.StatusTooShort || !out.Deferred {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if got := f.reload(t, file.ID); got.Status != store.StatusTooShort || !got.LookupDeferred {
		t.Fatalf("expected deferred TOO_SHORT, got %+v", got)
	}

	candidates, err := f.st.Candidates(ctx, false)
	if err != nil {
		t.Fatalf("Candidates: %v", err)
	}
	if len(candidates) != 1 || candidates[0].ID != file.ID {
		t.Fatalf("deferred verdict should be re-driven, got %d candidates", len(candidates))
	}

	f.lookup.set("clip.mkv", registryMatch(1))
	out, err = f.orch.ProcessFile(ctx, candidates[0])
	if err != nil {
		t.Fatalf("re-drive: %v", err)
	}
	if out.Status != store.StatusValid || out.Deferred {
		t.Fatalf("unexpected re-drive outcome %+v", out)
	}
	if f.prober.callCount() != 1 {
		t.Fatalf("re-drive should reuse the stored probe, got %d probes", f.prober.callCount())
	}
	if got := f.reload(t, file.ID); got.LookupDeferred {
		t.Fatalf("re-drive should clear deferral, got %+v", got)
	}
}

func TestLookupFailureLeavesFileAwaitingLookup(t *testing.T) {
	f := newFixture(t)
	file := f.addFile(t, "movie.mkv")
	f.prober.results["movie.mkv"] = videoResult(7080000)
	f.lookup.err = services.Wrap(services.ErrPersistenceFailure, "store", "update keys", "", errors.New("database is locked"))

	out, err := f.orch.ProcessFile(context.Background(), file)
	if !errors.Is(err, services.ErrPersistenceFailure) {
		t.Fatalf("expected persistence failure, got %v", err)
	}
	if out.Status != "" {
		t.Fatalf("failed run should not report a status, got %s", out.Status)
	}
	if got := f.reload(t, file.ID); got.Status != store.StatusAwaitingLookup {
		t.Fatalf("expected AWAITING_LOOKUP, got %s", got.Status)
	}
}

func TestReprobeReplacesStreams(t *testing.T) {
	f := newFixture(t)
	file := f.addFile(t, "movie.mkv")
	f.prober.results["movie.mkv"] = videoResult(7080000)
	f.lookup.set("movie.mkv", registryMatch(120))
	ctx := context.Background()

	if _, err := f.orch.ProcessFile(ctx, file); err != nil {
		t.Fatalf("first run: %v", err)
	}
	second := videoResult(7100000)
	second.Audio = append(second.Audio, probe.AudioStream{Index: 2, Codec: "aac", Language: "jpn", Channels: 2})
	f.prober.results["movie.mkv"] = second
	if _, err := f.orch.ProcessFile(ctx, f.reload(t, file.ID)); err != nil {
		t.Fatalf("second run: %v", err)
	}

	streams, err := f.st.Streams(ctx, file.ID)
	if err != nil {
		t.Fatalf("Streams: %v", err)
	}
	if len(streams.Audio) != 2 || len(streams.Video) != 1 {
		t.Fatalf("expected exactly the latest stream set, got %+v", streams)
	}
	if got := f.reload(t, file.ID); *got.DurationMS != 7100000 {
		t.Fatalf("duration not refreshed: %d", *got.DurationMS)
	}
}
