package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newKeysCommand(ctx *commandContext) *cobra.Command {
	var provider string
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Show provider key usage and blocks",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			st, err := ctx.openStore()
			if err != nil {
				return err
			}
			client, pool, err := newLookupClient(cfg, st, logger)
			if err != nil {
				return err
			}
			if err := client.RegisterKeys(cmd.Context()); err != nil {
				return err
			}
			statuses, err := pool.Statuses(cmd.Context(), provider)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(statuses) == 0 {
				fmt.Fprintln(out, "No provider keys configured")
				return nil
			}
			rows := make([][]string, 0, len(statuses))
			for _, s := range statuses {
				limit := "unlimited"
				if s.DailyLimit > 0 {
					limit = strconv.Itoa(s.DailyLimit)
				}
				blocked := "-"
				if s.BlockedUntil != nil {
					blocked = fmt.Sprintf("%s until %s", dashIfEmpty(s.BlockReason), formatTime(s.BlockedUntil))
				}
				rows = append(rows, []string{
					s.Provider,
					s.Masked,
					strconv.Itoa(s.CallsToday),
					limit,
					yesNo(s.Eligible),
					blocked,
					relativeTime(s.LastUsedAt),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Provider", "Key", "Calls", "Limit", "Usable", "Blocked", "Last Used"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}
	cmd.Flags().StringVarP(&provider, "provider", "p", "", "Only show keys of this provider")
	return cmd
}
