package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"mediaguard/internal/language"
	"mediaguard/internal/store"
)

func newFilesCommand(ctx *commandContext) *cobra.Command {
	filesCmd := &cobra.Command{
		Use:   "files",
		Short: "Inspect and manage tracked files",
	}
	filesCmd.AddCommand(newFilesListCommand(ctx))
	filesCmd.AddCommand(newFilesShowCommand(ctx))
	filesCmd.AddCommand(newFilesMarkValidCommand(ctx))
	filesCmd.AddCommand(newFilesResetCommand(ctx))
	return filesCmd
}

func newFilesListCommand(ctx *commandContext) *cobra.Command {
	var (
		statuses   []string
		reviewOnly bool
		limit      int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tracked files",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := store.ListFilter{ReviewOnly: reviewOnly, Limit: limit}
			for _, raw := range statuses {
				for part := range strings.SplitSeq(raw, ",") {
					if strings.TrimSpace(part) == "" {
						continue
					}
					status, ok := store.ParseStatus(part)
					if !ok {
						return fmt.Errorf("unknown status %q", part)
					}
					filter.Statuses = append(filter.Statuses, status)
				}
			}
			st, err := ctx.openStore()
			if err != nil {
				return err
			}
			files, err := st.ListFiles(cmd.Context(), filter)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(files) == 0 {
				fmt.Fprintln(out, "No files found")
				return nil
			}
			colorize := shouldColorize(out)
			rows := make([][]string, 0, len(files))
			for _, file := range files {
				rows = append(rows, []string{
					strconv.FormatInt(file.ID, 10),
					statusLabel(file.Status, colorize),
					formatDurationMS(file.DurationMS),
					humanize.Bytes(uint64(max(file.SizeBytes, 0))),
					truncate(file.Name, 60),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"ID", "Status", "Duration", "Size", "Name"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "Only list files in this status (repeatable)")
	cmd.Flags().BoolVar(&reviewOnly, "review", false, "Only list files flagged for review")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of files to list")
	return cmd
}

type fileView struct {
	ID              int64        `json:"id"`
	Path            string       `json:"path"`
	Name            string       `json:"name"`
	SizeBytes       int64        `json:"size_bytes"`
	ModifiedAt      time.Time    `json:"modified_at"`
	DiscoveredAt    time.Time    `json:"discovered_at"`
	ProbedAt        *time.Time   `json:"probed_at,omitempty"`
	DurationSeconds *float64     `json:"duration_seconds,omitempty"`
	HasVideo        bool         `json:"has_video"`
	Status          store.Status `json:"status"`
	NeedsReview     bool         `json:"needs_review"`
	ManualOverride  bool         `json:"manual_override"`
	LookupDeferred  bool         `json:"lookup_deferred"`
	Verdict         string       `json:"verdict,omitempty"`
	ReviewReason    string       `json:"review_reason,omitempty"`
	LastError       string       `json:"last_error,omitempty"`
	Streams         streamsView  `json:"streams"`
	Lookups         []lookupView `json:"lookups"`
}

type streamsView struct {
	Video     []store.VideoStream    `json:"video"`
	Audio     []store.AudioStream    `json:"audio"`
	Subtitles []store.SubtitleStream `json:"subtitles"`
}

type lookupView struct {
	Provider        string          `json:"provider"`
	ProviderID      string          `json:"provider_id,omitempty"`
	Title           string          `json:"title,omitempty"`
	Year            int             `json:"year,omitempty"`
	ExpectedSeconds *float64        `json:"expected_seconds,omitempty"`
	IMDbID          string          `json:"imdb_id,omitempty"`
	TMDbID          string          `json:"tmdb_id,omitempty"`
	TVDbID          string          `json:"tvdb_id,omitempty"`
	MediaType       store.MediaType `json:"media_type"`
	Season          *int            `json:"season,omitempty"`
	Episode         *int            `json:"episode,omitempty"`
	RetrievedAt     time.Time       `json:"retrieved_at"`
}

func newFileView(file *store.MediaFile, streams store.Streams, lookups []store.LookupRecord) fileView {
	view := fileView{
		ID:              file.ID,
		Path:            file.Path,
		Name:            file.Name,
		SizeBytes:       file.SizeBytes,
		ModifiedAt:      file.ModifiedAt,
		DiscoveredAt:    file.DiscoveredAt,
		ProbedAt:        file.ProbedAt,
		DurationSeconds: file.DurationSeconds(),
		HasVideo:        file.HasVideo,
		Status:          file.Status,
		NeedsReview:     file.NeedsReview,
		ManualOverride:  file.ManualOverride,
		LookupDeferred:  file.LookupDeferred,
		Verdict:         file.Verdict,
		ReviewReason:    file.ReviewReason,
		LastError:       file.LastError,
		Streams: streamsView{
			Video:     streams.Video,
			Audio:     streams.Audio,
			Subtitles: streams.Subtitles,
		},
		Lookups: make([]lookupView, 0, len(lookups)),
	}
	for _, rec := range lookups {
		lv := lookupView{
			Provider:    rec.Provider,
			ProviderID:  rec.ProviderID,
			Title:       rec.Title,
			Year:        rec.Year,
			IMDbID:      rec.IMDbID,
			TMDbID:      rec.TMDbID,
			TVDbID:      rec.TVDbID,
			MediaType:   rec.MediaType,
			Season:      rec.Season,
			Episode:     rec.Episode,
			RetrievedAt: rec.RetrievedAt,
		}
		if rec.ExpectedDurationMS != nil {
			seconds := float64(*rec.ExpectedDurationMS) / 1000
			lv.ExpectedSeconds = &seconds
		}
		view.Lookups = append(view.Lookups, lv)
	}
	return view
}

func newFilesShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show <id|path>",
		Short: "Show a file with its streams and lookups",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.openStore()
			if err != nil {
				return err
			}
			file, err := resolveFile(cmd.Context(), st, args[0])
			if err != nil {
				return err
			}
			streams, err := st.Streams(cmd.Context(), file.ID)
			if err != nil {
				return err
			}
			lookups, err := st.ListLookups(cmd.Context(), file.ID)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, newFileView(file, streams, lookups))
			}
			printFile(cmd, file, streams, lookups)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func printFile(cmd *cobra.Command, file *store.MediaFile, streams store.Streams, lookups []store.LookupRecord) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)
	fmt.Fprintf(out, "File %d: %s\n", file.ID, file.Path)
	fmt.Fprintf(out, "  Status:      %s\n", statusLabel(file.Status, colorize))
	fmt.Fprintf(out, "  Verdict:     %s\n", dashIfEmpty(file.Verdict))
	fmt.Fprintf(out, "  Duration:    %s\n", formatDurationMS(file.DurationMS))
	fmt.Fprintf(out, "  Size:        %s\n", humanize.Bytes(uint64(max(file.SizeBytes, 0))))
	fmt.Fprintf(out, "  Probed:      %s\n", formatTime(file.ProbedAt))
	fmt.Fprintf(out, "  Needs review: %s\n", yesNo(file.NeedsReview))
	fmt.Fprintf(out, "  Marked valid: %s\n", yesNo(file.ManualOverride))
	if file.LookupDeferred {
		fmt.Fprintln(out, "  Lookup:      deferred (no usable provider key)")
	}
	if file.ReviewReason != "" {
		fmt.Fprintf(out, "  Reason:      %s\n", file.ReviewReason)
	}
	if file.LastError != "" {
		fmt.Fprintf(out, "  Last error:  %s\n", file.LastError)
	}

	if len(streams.Video) > 0 {
		rows := make([][]string, 0, len(streams.Video))
		for _, v := range streams.Video {
			rows = append(rows, []string{
				v.Codec,
				fmt.Sprintf("%dx%d", v.Width, v.Height),
				strconv.FormatFloat(v.FrameRate, 'f', 3, 64),
				dashIfEmpty(v.HDRType),
			})
		}
		fmt.Fprintln(out)
		fmt.Fprintln(out, renderTable([]string{"Video", "Resolution", "FPS", "HDR"}, rows,
			[]columnAlignment{alignLeft, alignRight, alignRight, alignLeft}))
	}
	if len(streams.Audio) > 0 {
		rows := make([][]string, 0, len(streams.Audio))
		for _, a := range streams.Audio {
			rows = append(rows, []string{
				strconv.Itoa(a.Index),
				a.Codec,
				language.DisplayName(a.Language),
				strconv.Itoa(a.Channels),
				dashIfEmpty(a.Title),
			})
		}
		fmt.Fprintln(out)
		fmt.Fprintln(out, renderTable([]string{"#", "Audio", "Language", "Channels", "Title"}, rows,
			[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft}))
	}
	if len(streams.Subtitles) > 0 {
		rows := make([][]string, 0, len(streams.Subtitles))
		for _, s := range streams.Subtitles {
			source := "embedded"
			if s.External {
				source = s.ExternalPath
			}
			rows = append(rows, []string{
				s.Codec,
				language.DisplayName(s.Language),
				yesNo(s.Forced),
				source,
			})
		}
		fmt.Fprintln(out)
		fmt.Fprintln(out, renderTable([]string{"Subtitle", "Language", "Forced", "Source"}, rows, nil))
	}
	if len(lookups) > 0 {
		rows := make([][]string, 0, len(lookups))
		for _, rec := range lookups {
			year := "-"
			if rec.Year > 0 {
				year = strconv.Itoa(rec.Year)
			}
			rows = append(rows, []string{
				rec.Provider,
				dashIfEmpty(rec.Title),
				year,
				formatDurationMS(rec.ExpectedDurationMS),
				dashIfEmpty(rec.IMDbID),
			})
		}
		fmt.Fprintln(out)
		fmt.Fprintln(out, renderTable([]string{"Provider", "Title", "Year", "Expected", "IMDb"}, rows,
			[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft}))
	}
}

func newFilesMarkValidCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "mark-valid <id|path>",
		Short: "Mark a file valid and exclude it from automated validation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.openStore()
			if err != nil {
				return err
			}
			file, err := resolveFile(cmd.Context(), st, args[0])
			if err != nil {
				return err
			}
			if err := st.MarkValid(cmd.Context(), file.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "File %d marked valid\n", file.ID)
			return nil
		},
	}
}

func newFilesResetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reset <id|path>",
		Short: "Clear a file's verdict and override so the next scan re-validates it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.openStore()
			if err != nil {
				return err
			}
			file, err := resolveFile(cmd.Context(), st, args[0])
			if err != nil {
				return err
			}
			if err := st.ResetFile(cmd.Context(), file.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "File %d reset to %s\n", file.ID, store.StatusUnprobed)
			return nil
		},
	}
}
