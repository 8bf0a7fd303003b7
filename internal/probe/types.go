package probe

// HDRType is the dynamic range classification of a video stream.
type HDRType string

const (
	HDRNone        HDRType = "SDR"
	HDR10          HDRType = "HDR10"
	HDRDolbyVision HDRType = "Dolby Vision"
	HDRHLG         HDRType = "HLG"
)

// Result is the canonical probe output persisted by the store.
type Result struct {
	// DurationMS is nil when ffprobe reported no usable duration.
	DurationMS *int64
	Video      *VideoStream
	Audio      []AudioStream
	Subtitles  []SubtitleStream
	FormatName string
	BitRate    int64
}

// DurationSeconds returns the measured duration in seconds, or nil.
func (r Result) DurationSeconds() *float64 {
	if r.DurationMS == nil {
		return nil
	}
	seconds := float64(*r.DurationMS) / 1000
	return &seconds
}

// HasVideo reports whether a primary video stream was found.
func (r Result) HasVideo() bool {
	return r.Video != nil
}

type VideoStream struct {
	Codec     string
	Width     int
	Height    int
	FrameRate float64
	HDR       HDRType
}

type AudioStream struct {
	Index         int
	Codec         string
	Language      string
	Channels      int
	ChannelLayout string
	Title         string
	Default       bool
}

// SubtitleStream describes an embedded subtitle track or a sidecar file.
// External streams carry the sidecar Path.
type SubtitleStream struct {
	Index    int
	Codec    string
	Language string
	Title    string
	Forced   bool
	Default  bool
	External bool
	Path     string
}
