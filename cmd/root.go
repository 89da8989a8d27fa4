package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/visa-rescheduler/internal/config"
)

var (
	Version   = "dev"
	CommitSHA = "none"
	BuildDate = "unknown"
)

type rootOptions struct {
	configPath string
}

func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "visasched",
		Short:         "Watch the visa appointment calendar and reschedule into a target window",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to config.yaml (default ./config.yaml if present)")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newKeysCmd())
	root.AddCommand(newHashPasswordCmd())
	root.AddCommand(newEncryptCmd())
	root.AddCommand(newEmbassiesCmd())
	root.AddCommand(newCheckCmd(opts))
	root.AddCommand(newRunCmd(opts))
	root.AddCommand(newAttemptsCmd(opts))

	return root
}

func (o *rootOptions) load() (config.Config, error) {
	return config.Load(o.configPath)
}

func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
