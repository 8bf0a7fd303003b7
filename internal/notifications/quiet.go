package notifications

import (
	"time"

	"mediaguard/internal/config"
)

// quietWindow is a daily [start, end) range in minutes after midnight. A
// window whose end is before its start spans midnight.
type quietWindow struct {
	enabled    bool
	start, end int
}

func parseQuietHours(q config.QuietHours) quietWindow {
	if !q.Enabled {
		return quietWindow{}
	}
	start, err := time.Parse("15:04", q.Start)
	if err != nil {
		return quietWindow{}
	}
	end, err := time.Parse("15:04", q.End)
	if err != nil {
		return quietWindow{}
	}
	return quietWindow{
		enabled: true,
		start:   start.Hour()*60 + start.Minute(),
		end:     end.Hour()*60 + end.Minute(),
	}
}

func (w quietWindow) contains(t time.Time) bool {
	if !w.enabled || w.start == w.end {
		return false
	}
	minute := t.Hour()*60 + t.Minute()
	if w.start < w.end {
		return minute >= w.start && minute < w.end
	}
	return minute >= w.start || minute < w.end
}
