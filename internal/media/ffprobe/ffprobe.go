package ffprobe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

// ErrMalformed reports ffprobe output that could not be decoded.
var ErrMalformed = errors.New("ffprobe output malformed")

// Result represents the parsed output from an ffprobe inspection.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
	raw     []byte
}

// Stream describes a single stream in the media container.
type Stream struct {
	Index          int               `json:"index"`
	CodecName      string            `json:"codec_name"`
	CodecType      string            `json:"codec_type"`
	CodecTag       string            `json:"codec_tag_string"`
	Profile        string            `json:"profile"`
	Duration       string            `json:"duration"`
	BitRate        string            `json:"bit_rate"`
	Width          int               `json:"width"`
	Height         int               `json:"height"`
	RFrameRate     string            `json:"r_frame_rate"`
	AvgFrameRate   string            `json:"avg_frame_rate"`
	ColorTransfer  string            `json:"color_transfer"`
	ColorPrimaries string            `json:"color_primaries"`
	ColorSpace     string            `json:"color_space"`
	SampleRate     string            `json:"sample_rate"`
	Channels       int               `json:"channels"`
	ChannelLayout  string            `json:"channel_layout"`
	Tags           map[string]string `json:"tags"`
	Disposition    Disposition       `json:"disposition"`
	SideDataList   []SideData        `json:"side_data_list"`
}

// Disposition carries the ffprobe stream disposition flags used downstream.
type Disposition struct {
	Default         int `json:"default"`
	Forced          int `json:"forced"`
	AttachedPicture int `json:"attached_pic"`
}

// SideData is one entry of a stream's side_data_list.
type SideData struct {
	Type string `json:"side_data_type"`
}

// Format captures container-level metadata extracted by ffprobe.
type Format struct {
	Filename   string `json:"filename"`
	NBStreams  int    `json:"nb_streams"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	BitRate    string `json:"bit_rate"`
	FormatName string `json:"format_name"`
}

// Inspect executes ffprobe against the provided path and decodes the JSON response.
// Exec failures are returned wrapped so callers can match exec.ErrNotFound and
// *exec.ExitError; decode failures wrap ErrMalformed.
func Inspect(ctx context.Context, binary string, path string) (Result, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return Result{}, errors.New("ffprobe inspect: empty path")
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, binary, "-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json", "--", path)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return Result{}, fmt.Errorf("ffprobe inspect: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	output := stdout.Bytes()
	var result Result
	if err := json.Unmarshal(output, &result); err != nil {
		return Result{}, fmt.Errorf("ffprobe parse: %w: %w", ErrMalformed, err)
	}
	if len(result.Streams) == 0 && strings.TrimSpace(result.Format.Filename) == "" && strings.TrimSpace(result.Format.Duration) == "" {
		return Result{}, fmt.Errorf("ffprobe parse: %w: no format or streams", ErrMalformed)
	}
	result.raw = append([]byte(nil), output...)
	return result, nil
}

// RawJSON returns the raw ffprobe JSON payload.
func (r Result) RawJSON() []byte {
	return append([]byte(nil), r.raw...)
}

// StreamsOfType returns the streams whose codec_type matches kind.
func (r Result) StreamsOfType(kind string) []Stream {
	var out []Stream
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, kind) {
			out = append(out, stream)
		}
	}
	return out
}

// DurationSeconds returns the container duration in seconds. When the
// container value is absent or unparseable, the longest stream duration is
// used. ok is false when nothing parses to a usable number.
func (r Result) DurationSeconds() (seconds float64, ok bool) {
	container, containerOK := parseDuration(r.Format.Duration)
	if containerOK && container > 0 {
		return container, true
	}
	longest, found := 0.0, false
	for _, stream := range r.Streams {
		if d, ok := parseDuration(stream.Duration); ok {
			found = true
			longest = math.Max(longest, d)
		}
	}
	if found {
		return longest, true
	}
	return container, containerOK
}

// SizeBytes returns the reported container size in bytes, or 0 when unavailable.
func (r Result) SizeBytes() int64 {
	size := parseFloat(r.Format.Size)
	if math.IsNaN(size) || size < 0 {
		return 0
	}
	return int64(size)
}

// BitRate returns the container bitrate in bits per second, or 0 when unavailable.
func (r Result) BitRate() int64 {
	rate := parseFloat(r.Format.BitRate)
	if math.IsNaN(rate) || rate < 0 {
		return 0
	}
	return int64(rate)
}

// FrameRate parses an ffprobe rational such as "24000/1001". Zero
// denominators and malformed values yield 0.
func FrameRate(value string) float64 {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	num, den, found := strings.Cut(value, "/")
	if !found {
		f := parseFloat(value)
		if math.IsNaN(f) || f < 0 {
			return 0
		}
		return f
	}
	n := parseFloat(num)
	d := parseFloat(den)
	if math.IsNaN(n) || math.IsNaN(d) || d == 0 || n < 0 || d < 0 {
		return 0
	}
	return n / d
}

// Tag returns a stream tag value using case-insensitive key matching.
func (s Stream) Tag(key string) string {
	if v, ok := s.Tags[key]; ok {
		return strings.TrimSpace(v)
	}
	for k, v := range s.Tags {
		if strings.EqualFold(k, key) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func parseDuration(value string) (float64, bool) {
	if strings.TrimSpace(value) == "" {
		return 0, false
	}
	d := parseFloat(value)
	if math.IsNaN(d) || math.IsInf(d, 0) || d < 0 {
		return 0, false
	}
	return d, true
}

func parseFloat(value string) float64 {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" {
		return 0
	}
	if parsed, err := strconv.ParseFloat(cleaned, 64); err == nil {
		return parsed
	}
	return math.NaN()
}
