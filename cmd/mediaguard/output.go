package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"mediaguard/internal/config"
	"mediaguard/internal/store"
)

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// resolveFile accepts a numeric id or a path to a tracked file.
func resolveFile(ctx context.Context, st *store.Store, ref string) (*store.MediaFile, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, errors.New("file id or path is required")
	}
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		file, err := st.GetFile(ctx, id)
		if err == nil {
			return file, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
	}
	path, err := config.ExpandPath(ref)
	if err != nil {
		return nil, fmt.Errorf("resolve path: %w", err)
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	file, err := st.GetFileByPath(ctx, path)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("no tracked file matches %q", ref)
	}
	return file, err
}

func formatDurationMS(ms *int64) string {
	if ms == nil {
		return "-"
	}
	return formatSeconds(time.Duration(*ms) * time.Millisecond)
}

func formatSeconds(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	s := int(d % time.Minute / time.Second)
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func relativeTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return humanize.Time(*t)
}

func dashIfEmpty(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}

func truncate(value string, limit int) string {
	runes := []rune(value)
	if limit <= 0 || len(runes) <= limit {
		return value
	}
	if limit <= 3 {
		return string(runes[:limit])
	}
	return string(runes[:limit-3]) + "..."
}
