package main

import (
	"cmp"
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"mediaguard/internal/language"
	"mediaguard/internal/store"
)

type statsView struct {
	TotalFiles      int            `json:"total_files"`
	TotalBytes      int64          `json:"total_bytes"`
	TotalSeconds    float64        `json:"total_duration_seconds"`
	ByStatus        map[string]int `json:"by_status"`
	NeedsReview     int            `json:"needs_review"`
	ManuallyValid   int            `json:"manually_valid"`
	LookupsDeferred int            `json:"lookups_deferred"`
	VideoCodecs     map[string]int `json:"video_codecs"`
	HDRTypes        map[string]int `json:"hdr_types"`
	AudioLanguages  map[string]int `json:"audio_languages"`
}

func newStatsCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize the library",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.openStore()
			if err != nil {
				return err
			}
			stats, err := st.Stats(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				byStatus := make(map[string]int, len(stats.ByStatus))
				for status, count := range stats.ByStatus {
					byStatus[string(status)] = count
				}
				return writeJSON(cmd, statsView{
					TotalFiles:      stats.TotalFiles,
					TotalBytes:      stats.TotalBytes,
					TotalSeconds:    stats.TotalDuration.Seconds(),
					ByStatus:        byStatus,
					NeedsReview:     stats.NeedsReview,
					ManuallyValid:   stats.Overridden,
					LookupsDeferred: stats.Deferred,
					VideoCodecs:     stats.VideoCodecs,
					HDRTypes:        stats.HDRTypes,
					AudioLanguages:  stats.AudioLanguages,
				})
			}
			printStats(cmd.OutOrStdout(), stats)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func printStats(out io.Writer, stats store.Stats) {
	if stats.TotalFiles == 0 {
		fmt.Fprintln(out, "No files tracked yet; run mediaguard scan")
		return
	}
	fmt.Fprintf(out, "Files:          %s\n", humanize.Comma(int64(stats.TotalFiles)))
	fmt.Fprintf(out, "Size:           %s\n", humanize.Bytes(uint64(max(stats.TotalBytes, 0))))
	fmt.Fprintf(out, "Duration:       %s\n", formatSeconds(stats.TotalDuration))
	fmt.Fprintf(out, "Needs review:   %d\n", stats.NeedsReview)
	fmt.Fprintf(out, "Marked valid:   %d\n", stats.Overridden)
	fmt.Fprintf(out, "Lookup pending: %d\n", stats.Deferred)

	colorize := shouldColorize(out)
	statusRows := make([][]string, 0, len(stats.ByStatus))
	for _, status := range store.AllStatuses() {
		count := stats.ByStatus[status]
		if count == 0 {
			continue
		}
		statusRows = append(statusRows, []string{statusLabel(status, colorize), humanize.Comma(int64(count))})
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, renderTable([]string{"Status", "Files"}, statusRows, []columnAlignment{alignLeft, alignRight}))

	printDistribution(out, "Video Codec", stats.VideoCodecs, nil)
	printDistribution(out, "HDR", stats.HDRTypes, nil)
	printDistribution(out, "Audio Language", stats.AudioLanguages, language.DisplayName)
}

func printDistribution(out io.Writer, title string, counts map[string]int, label func(string) string) {
	if len(counts) == 0 {
		return
	}
	keys := slices.SortedFunc(maps.Keys(counts), func(a, b string) int {
		if c := cmp.Compare(counts[b], counts[a]); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	rows := make([][]string, 0, len(keys))
	for _, key := range keys {
		name := key
		if label != nil {
			name = label(key)
		}
		rows = append(rows, []string{dashIfEmpty(name), strconv.Itoa(counts[key])})
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, renderTable([]string{title, "Files"}, rows, []columnAlignment{alignLeft, alignRight}))
}
