package store

import (
	"strings"
	"time"
)

// Status is the validation lifecycle state of a media file.
type Status string

const (
	StatusUnprobed       Status = "UNPROBED"
	StatusProbed         Status = "PROBED"
	StatusAwaitingLookup Status = "AWAITING_LOOKUP"
	StatusValid          Status = "VALID"
	StatusTooShort       Status = "TOO_SHORT"
	StatusCorrupted      Status = "CORRUPTED"
	StatusNeedsReview    Status = "NEEDS_REVIEW"
	StatusUnknown        Status = "UNKNOWN"
)

var allStatuses = []Status{
	StatusUnprobed,
	StatusProbed,
	StatusAwaitingLookup,
	StatusValid,
	StatusTooShort,
	StatusCorrupted,
	StatusNeedsReview,
	StatusUnknown,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var terminalStatuses = map[Status]struct{}{
	StatusValid:       {},
	StatusTooShort:    {},
	StatusCorrupted:   {},
	StatusNeedsReview: {},
	StatusUnknown:     {},
}

// AllStatuses returns every status in lifecycle order.
func AllStatuses() []Status {
	return append([]Status(nil), allStatuses...)
}

// ParseStatus converts a user supplied string to a Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(value), "-", "_")))
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether no automated transition leaves this status.
func (s Status) IsTerminal() bool {
	_, ok := terminalStatuses[s]
	return ok
}

// MediaFile is one tracked library file.
type MediaFile struct {
	ID             int64
	Path           string
	Name           string
	SizeBytes      int64
	ModifiedAt     time.Time
	DiscoveredAt   time.Time
	ProbedAt       *time.Time
	DurationMS     *int64
	HasVideo       bool
	Status         Status
	NeedsReview    bool
	ManualOverride bool
	LookupDeferred bool
	Verdict        string
	ReviewReason   string
	LastError      string
	UpdatedAt      time.Time
}

// DurationSeconds returns the measured duration in seconds, or nil.
func (f MediaFile) DurationSeconds() *float64 {
	if f.DurationMS == nil {
		return nil
	}
	v := float64(*f.DurationMS) / 1000
	return &v
}

// FileInfo is what the scanner knows about a file on disk.
type FileInfo struct {
	Path       string
	SizeBytes  int64
	ModifiedAt time.Time
}

// Transition describes an automated status change.
type Transition struct {
	Status       Status
	NeedsReview  bool
	Deferred     bool
	Verdict      string
	ReviewReason string
	LastError    string
}

// MediaType is the lookup classification of a file.
type MediaType string

const (
	MediaMovie   MediaType = "movie"
	MediaEpisode MediaType = "episode"
	MediaUnknown MediaType = "unknown"
)

// LookupRecord is the persisted form of one provider's answer for one file.
type LookupRecord struct {
	FileID             int64
	Provider           string
	ProviderID         string
	Title              string
	Year               int
	ExpectedDurationMS *int64
	IMDbID             string
	TMDbID             string
	TVDbID             string
	MediaType          MediaType
	Season             *int
	Episode            *int
	RawPayload         string
	RetrievedAt        time.Time
}

// Streams is the persisted stream set of a file.
type Streams struct {
	Video     []VideoStream
	Audio     []AudioStream
	Subtitles []SubtitleStream
}

type VideoStream struct {
	Codec     string  `json:"codec"`
	Width     int     `json:"width"`
	Height    int     `json:"height"`
	FrameRate float64 `json:"frame_rate"`
	HDRType   string  `json:"hdr_type"`
}

type AudioStream struct {
	Index         int    `json:"index"`
	Codec         string `json:"codec"`
	Language      string `json:"language"`
	Channels      int    `json:"channels"`
	ChannelLayout string `json:"channel_layout"`
	Title         string `json:"title"`
	Default       bool   `json:"default"`
}

type SubtitleStream struct {
	Index        int    `json:"index"`
	Codec        string `json:"codec"`
	Language     string `json:"language"`
	Title        string `json:"title"`
	Forced       bool   `json:"forced"`
	Default      bool   `json:"default"`
	External     bool   `json:"external"`
	ExternalPath string `json:"external_path"`
}

// KeyState is the durable rate-limit record of one provider credential.
type KeyState struct {
	Provider     string
	Key          string
	Position     int
	DailyLimit   int
	CallsToday   int
	DayStart     time.Time
	BlockedUntil *time.Time
	BlockReason  string
	LastUsedAt   *time.Time
}

// ListFilter narrows ListFiles.
type ListFilter struct {
	Statuses   []Status
	ReviewOnly bool
	Limit      int
}

// Stats summarizes the library.
type Stats struct {
	TotalFiles     int
	TotalBytes     int64
	TotalDuration  time.Duration
	ByStatus       map[Status]int
	NeedsReview    int
	Overridden     int
	Deferred       int
	VideoCodecs    map[string]int
	HDRTypes       map[string]int
	AudioLanguages map[string]int
}
