package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/visa-rescheduler/internal/ais"
	"github.com/example/visa-rescheduler/internal/embassy"
	"github.com/example/visa-rescheduler/internal/notify"
)

func newCheckCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the configuration and print the resolved endpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			emb, err := embassy.Builtin().Lookup(cfg.Embassy)
			if err != nil {
				return err
			}
			window, err := cfg.Window()
			if err != nil {
				return err
			}
			channels, err := notify.Channels(cfg.Notify, cfg.Account.Username)
			if err != nil {
				return err
			}

			ep := ais.Endpoints{BaseURL: cfg.Transport.BaseURL, Locale: emb.Locale, ScheduleID: cfg.Account.ScheduleID}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "embassy      %s (%s)\n", emb.Code, emb.Locale)
			fmt.Fprintf(out, "window       %s\n", window)
			fmt.Fprintf(out, "desired time %s\n", cfg.Target.DesiredTime)
			fmt.Fprintf(out, "sign in      %s\n", ep.SignIn())
			fmt.Fprintf(out, "appointment  %s\n", ep.Appointment())
			fmt.Fprintf(out, "dates        %s\n", ep.Days(emb.FacilityID, nil))
			fmt.Fprintf(out, "transport    %s\n", cfg.Transport.Driver)
			if len(channels) == 0 {
				fmt.Fprintln(out, "notify       (none configured)")
			}
			for _, ch := range channels {
				fmt.Fprintf(out, "notify       %s\n", ch.Name())
			}
			store := cfg.Store.Driver
			if store == "" {
				store = "(disabled)"
			}
			fmt.Fprintf(out, "history      %s\n", store)
			if cfg.Web.Addr != "" {
				fmt.Fprintf(out, "status page  %s\n", cfg.Web.Addr)
			}
			return nil
		},
	}
}
