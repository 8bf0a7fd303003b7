package probe

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"math"
	"os/exec"
	"strings"
	"time"

	"mediaguard/internal/language"
	"mediaguard/internal/logging"
	"mediaguard/internal/media/ffprobe"
)

// Inspector runs ffprobe. Tests substitute a canned implementation.
type Inspector func(ctx context.Context, binary, path string) (ffprobe.Result, error)

// Adapter turns ffprobe output into the canonical Result.
type Adapter struct {
	binary   string
	timeout  time.Duration
	sidecars bool
	inspect  Inspector
	logger   *slog.Logger
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithInspector overrides the ffprobe runner.
func WithInspector(fn Inspector) Option {
	return func(a *Adapter) {
		if fn != nil {
			a.inspect = fn
		}
	}
}

// WithTimeout bounds each ffprobe invocation.
func WithTimeout(d time.Duration) Option {
	return func(a *Adapter) { a.timeout = d }
}

// WithSidecars toggles sidecar subtitle discovery.
func WithSidecars(enabled bool) Option {
	return func(a *Adapter) { a.sidecars = enabled }
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Adapter) { a.logger = logger }
}

// NewAdapter constructs an Adapter for the given ffprobe binary.
func NewAdapter(binary string, opts ...Option) *Adapter {
	a := &Adapter{
		binary:   binary,
		sidecars: true,
		inspect:  ffprobe.Inspect,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = logging.NewComponentLogger(a.logger, "probe")
	return a
}

// Probe inspects path. Every failure is a *Failure.
func (a *Adapter) Probe(ctx context.Context, path string) (Result, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	raw, err := a.inspect(ctx, a.binary, path)
	if err != nil {
		return Result{}, classify(path, err)
	}

	result, err := Normalize(raw)
	if err != nil {
		return Result{}, &Failure{Kind: MalformedOutput, Path: path, Err: err}
	}

	if a.sidecars {
		sidecars, err := DiscoverSidecars(path)
		if err != nil {
			logging.WithContext(ctx, a.logger).Debug("sidecar discovery skipped",
				logging.String("path", path),
				logging.Error(err),
			)
		}
		result.Subtitles = append(result.Subtitles, sidecars...)
	}
	return result, nil
}

func classify(path string, err error) *Failure {
	var exitErr *exec.ExitError
	switch {
	case errors.Is(err, exec.ErrNotFound), errors.Is(err, fs.ErrNotExist), errors.Is(err, fs.ErrPermission):
		return &Failure{Kind: ToolNotFound, Path: path, Err: err}
	case errors.Is(err, ffprobe.ErrMalformed):
		return &Failure{Kind: MalformedOutput, Path: path, Err: err}
	case errors.As(err, &exitErr):
		return &Failure{Kind: NonZeroExit, Path: path, Err: err}
	default:
		// context deadline and signal kills surface here
		return &Failure{Kind: NonZeroExit, Path: path, Err: err}
	}
}

// Normalize maps a raw ffprobe document to a Result.
func Normalize(raw ffprobe.Result) (Result, error) {
	var result Result
	result.FormatName = raw.Format.FormatName
	result.BitRate = raw.BitRate()

	if seconds, ok := raw.DurationSeconds(); ok {
		ms := int64(math.Round(seconds * 1000))
		result.DurationMS = &ms
	}

	for _, stream := range raw.Streams {
		switch strings.ToLower(stream.CodecType) {
		case "video":
			if result.Video != nil || stream.Disposition.AttachedPicture == 1 {
				continue
			}
			rate := ffprobe.FrameRate(stream.RFrameRate)
			if rate == 0 {
				rate = ffprobe.FrameRate(stream.AvgFrameRate)
			}
			result.Video = &VideoStream{
				Codec:     stream.CodecName,
				Width:     stream.Width,
				Height:    stream.Height,
				FrameRate: math.Round(rate*1000) / 1000,
				HDR:       ClassifyHDR(stream),
			}
		case "audio":
			result.Audio = append(result.Audio, AudioStream{
				Index:         stream.Index,
				Codec:         stream.CodecName,
				Language:      language.FromTags(stream.Tags),
				Channels:      stream.Channels,
				ChannelLayout: stream.ChannelLayout,
				Title:         stream.Tag("title"),
				Default:       stream.Disposition.Default == 1,
			})
		case "subtitle":
			result.Subtitles = append(result.Subtitles, SubtitleStream{
				Index:    stream.Index,
				Codec:    stream.CodecName,
				Language: language.FromTags(stream.Tags),
				Title:    stream.Tag("title"),
				Forced:   stream.Disposition.Forced == 1,
				Default:  stream.Disposition.Default == 1,
			})
		}
	}
	return result, nil
}
