package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/example/visa-rescheduler/internal/embassy"
)

func newEmbassiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "embassies",
		Short: "List the built-in embassy codes",
		RunE: func(cmd *cobra.Command, args []string) error {
			table := embassy.Builtin()
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CODE\tLOCALE\tFACILITY\tCAS")
			for _, code := range table.Codes() {
				e := table[code]
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\n", code, e.Locale, e.FacilityID, e.CASFacilityID)
			}
			return w.Flush()
		},
	}
}
