package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/example/visa-rescheduler/internal/secret"
)

func newEncryptCmd() *cobra.Command {
	var keyB64 string

	c := &cobra.Command{
		Use:   "encrypt",
		Short: "Seal a secret read from stdin into an enc: value for config.yaml",
		RunE: func(cmd *cobra.Command, args []string) error {
			if keyB64 == "" {
				keyB64 = os.Getenv("VISA_SECRET_KEY")
			}
			if keyB64 == "" {
				return errors.New("no key: pass --key or set VISA_SECRET_KEY (see `visasched keys`)")
			}
			key, err := secret.ParseKey(keyB64)
			if err != nil {
				return err
			}
			box, err := secret.New(key)
			if err != nil {
				return err
			}
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("read secret: %w", err)
			}
			sealed, err := box.Seal(strings.TrimRight(line, "\r\n"))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), sealed)
			return nil
		},
	}
	c.Flags().StringVar(&keyB64, "key", "", "base64 secret key (default $VISA_SECRET_KEY)")
	return c
}
