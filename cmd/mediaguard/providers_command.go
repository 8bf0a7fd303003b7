package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newProvidersCommand(ctx *commandContext) *cobra.Command {
	providersCmd := &cobra.Command{
		Use:   "providers",
		Short: "Lookup provider utilities",
	}
	providersCmd.AddCommand(&cobra.Command{
		Use:   "test",
		Short: "Check connectivity and credentials of every configured provider",
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
			client, _, err := newLookupClient(cfg, st, logger)
			if err != nil {
				return err
			}
			results := client.TestProviders(cmd.Context())
			out := cmd.OutOrStdout()
			if len(results) == 0 {
				fmt.Fprintln(out, "No providers configured")
				return nil
			}
			failed := 0
			rows := make([][]string, 0, len(results))
			for _, res := range results {
				state := "OK"
				if !res.OK {
					state = "FAIL"
					failed++
				}
				rows = append(rows, []string{
					res.Provider,
					res.Key,
					state,
					res.Latency.Round(time.Millisecond).String(),
					truncate(res.Detail, 70),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Provider", "Key", "Result", "Latency", "Detail"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
			))
			if failed > 0 {
				return fmt.Errorf("%d of %d provider checks failed", failed, len(results))
			}
			return nil
		},
	})
	return providersCmd
}
