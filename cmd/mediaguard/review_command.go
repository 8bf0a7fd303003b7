package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"mediaguard/internal/store"
)

func newReviewCommand(ctx *commandContext) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "review",
		Short: "List files waiting for manual review",
		Long: `Lists files in NEEDS_REVIEW. Use "mediaguard files mark-valid" to accept a
file or "mediaguard files reset" to validate it again on the next scan.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.openStore()
			if err != nil {
				return err
			}
			files, err := st.ListFiles(cmd.Context(), store.ListFilter{
				Statuses: []store.Status{store.StatusNeedsReview},
				Limit:    limit,
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(files) == 0 {
				fmt.Fprintln(out, "Review queue is empty")
				return nil
			}
			deferred := 0
			rows := make([][]string, 0, len(files))
			for _, file := range files {
				reason := dashIfEmpty(file.ReviewReason)
				if file.LookupDeferred {
					deferred++
					reason = "* " + reason
				}
				rows = append(rows, []string{
					strconv.FormatInt(file.ID, 10),
					dashIfEmpty(file.Verdict),
					formatDurationMS(file.DurationMS),
					truncate(reason, 60),
					truncate(file.Name, 50),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"ID", "Verdict", "Duration", "Reason", "Name"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignRight, alignLeft, alignLeft},
			))
			fmt.Fprintf(out, "%d files need review\n", len(files))
			if deferred > 0 {
				fmt.Fprintf(out, "* %d decided without a lookup; they are retried on the next scan\n", deferred)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of files to list")
	return cmd
}
