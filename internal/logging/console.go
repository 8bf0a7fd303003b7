package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	consoleTimeLayout = "2006-01-02 15:04:05"
	// infoFieldLimit caps the detail lines printed below an info or warn line.
	infoFieldLimit = 8
)

// consoleOutput is shared by every handler derived through WithAttrs or
// WithGroup so lines from concurrent workers never interleave.
type consoleOutput struct {
	mu sync.Mutex
	w  io.Writer
}

type field struct {
	key   string
	value slog.Value
}

// consoleHandler renders one header line per record
//
//	2024-06-10 12:00:00 INFO [pipeline] File #7 (lookup/omdb) – message
//
// followed by indented "- key: value" detail lines.
type consoleHandler struct {
	out    *consoleOutput
	level  slog.Leveler
	source bool
	group  string
	preset []field
}

func newConsoleHandler(w io.Writer, level slog.Leveler, source bool) slog.Handler {
	return &consoleHandler{out: &consoleOutput{w: w}, level: level, source: source}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.preset = appendFields(append([]field(nil), h.preset...), h.group, attrs)
	return &next
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.group = joinKey(h.group, name)
	return &next
}

func (h *consoleHandler) Handle(_ context.Context, record slog.Record) error {
	fields := append([]field(nil), h.preset...)
	record.Attrs(func(attr slog.Attr) bool {
		fields = appendFields(fields, h.group, []slog.Attr{attr})
		return true
	})
	fields = lastValueWins(fields)

	var header struct{ component, fileID, stage, provider string }
	details := fields[:0:0]
	for _, f := range fields {
		switch f.key {
		case FieldComponent:
			header.component = plainValue(f.value)
		case FieldFileID:
			header.fileID = plainValue(f.value)
		case FieldStage:
			header.stage = plainValue(f.value)
		case FieldProvider:
			header.provider = plainValue(f.value)
		default:
			details = append(details, f)
		}
	}

	ts := record.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	var b strings.Builder
	b.WriteString(ts.In(time.Local).Format(consoleTimeLayout))
	b.WriteString(" ")
	b.WriteString(levelName(record.Level))
	if header.component != "" {
		fmt.Fprintf(&b, " [%s]", header.component)
	}
	if subject := subjectOf(header.fileID, header.stage, header.provider); subject != "" {
		b.WriteString(" ")
		b.WriteString(subject)
	}
	msg := strings.TrimSpace(record.Message)
	if msg == "" {
		msg = "(no message)"
	}
	b.WriteString(" – ")
	b.WriteString(msg)
	if h.source {
		if src := record.Source(); src != nil {
			fmt.Fprintf(&b, " [%s:%d]", filepath.Base(src.File), src.Line)
		}
	}
	b.WriteString("\n")

	verbose := record.Level < slog.LevelInfo
	hidden := 0
	shown := 0
	for _, f := range details {
		if !verbose && (debugOnly(f.key) || shown == infoFieldLimit) {
			hidden++
			continue
		}
		shown++
		fmt.Fprintf(&b, "    - %s: %s\n", f.key, quotedValue(f.value))
	}
	switch {
	case hidden == 1:
		b.WriteString("    + 1 more field hidden\n")
	case hidden > 1:
		fmt.Fprintf(&b, "    + %d more fields hidden\n", hidden)
	}

	h.out.mu.Lock()
	defer h.out.mu.Unlock()
	_, err := io.WriteString(h.out.w, b.String())
	return err
}

// subjectOf names the file a line is about: "File #7 (lookup/omdb)".
func subjectOf(fileID, stage, provider string) string {
	where := stage
	if provider != "" {
		where = strings.Trim(stage+"/"+provider, "/")
	}
	switch {
	case fileID != "" && where != "":
		return "File #" + fileID + " (" + where + ")"
	case fileID != "":
		return "File #" + fileID
	default:
		return where
	}
}

func debugOnly(key string) bool {
	switch key {
	case FieldRequestID, "raw", "url", "query":
		return true
	}
	return strings.HasSuffix(key, "_raw")
}

func levelName(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	}
	return "DEBUG"
}

func joinKey(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

func appendFields(dst []field, prefix string, attrs []slog.Attr) []field {
	for _, attr := range attrs {
		if attr.Equal(slog.Attr{}) {
			continue
		}
		value := attr.Value.Resolve()
		if value.Kind() == slog.KindGroup {
			next := prefix
			if attr.Key != "" {
				next = joinKey(prefix, attr.Key)
			}
			dst = appendFields(dst, next, value.Group())
			continue
		}
		if attr.Key == "" {
			continue
		}
		dst = append(dst, field{key: joinKey(prefix, attr.Key), value: value})
	}
	return dst
}

// lastValueWins drops repeated keys, keeping the first position and the last
// value, so a per-call attribute overrides a logger-level one.
func lastValueWins(fields []field) []field {
	if len(fields) < 2 {
		return fields
	}
	index := make(map[string]int, len(fields))
	out := fields[:0:0]
	for _, f := range fields {
		if i, ok := index[f.key]; ok {
			out[i].value = f.value
			continue
		}
		index[f.key] = len(out)
		out = append(out, f)
	}
	return out
}

// plainValue renders a value without quoting, for header fields.
func plainValue(v slog.Value) string {
	if v.Kind() == slog.KindAny {
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
	}
	if v.Kind() == slog.KindString {
		return v.String()
	}
	return quotedValue(v)
}

// quotedValue renders a detail value, quoting strings that contain spaces,
// control characters, "=" or quotes.
func quotedValue(v slog.Value) string {
	var s string
	switch v.Kind() {
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'f', -1, 64)
	case slog.KindTime:
		return v.Time().In(time.Local).Format(consoleTimeLayout)
	case slog.KindBool, slog.KindInt64, slog.KindUint64, slog.KindDuration:
		return v.String()
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			s = err.Error()
		} else {
			s = fmt.Sprint(v.Any())
		}
	default:
		s = v.String()
	}
	if needsQuoting(s) {
		return strconv.Quote(s)
	}
	return s
}

func needsQuoting(s string) bool {
	if s == "" {
		return true
	}
	return strings.ContainsFunc(s, func(r rune) bool {
		return r <= ' ' || r == '=' || r == '"'
	})
}
