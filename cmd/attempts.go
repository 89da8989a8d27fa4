package cmd

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/example/visa-rescheduler/internal/attempts"
)

func newAttemptsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "attempts",
		Short: "Inspect recorded polling cycles",
	}
	cmd.AddCommand(newAttemptsListCmd(opts))
	return cmd
}

func newAttemptsListCmd(opts *rootOptions) *cobra.Command {
	var limit int

	c := &cobra.Command{
		Use:   "list",
		Short: "Print the most recent cycle outcomes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			ctx := context.Background()
			store, err := attempts.Open(ctx, cfg.Store.Driver, cfg.Store.DSN)
			if err != nil {
				return err
			}
			if store == nil {
				return errors.New("store.driver is not configured")
			}
			defer store.Close()

			rows, err := store.Recent(ctx, limit)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "AT\tRUN\tOUTCOME\tREQUESTS\tDATE\tDETAIL")
			for _, a := range rows {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
					a.CreatedAt.Local().Format("2006-01-02 15:04:05"), shortID(a.RunID), a.Outcome, a.Requests, a.PrimaryDate, a.Detail)
			}
			return w.Flush()
		},
	}
	c.Flags().IntVarP(&limit, "limit", "n", 20, "number of rows")
	return c
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
