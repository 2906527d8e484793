package main

import (
	"fmt"
	"strings"
	"time"

	"scriptport/client"

	"github.com/spf13/cobra"
)

// newSendCmd creates the "scriptport send" subcommand.
func newSendCmd() *cobra.Command {
	var (
		addr    string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "send <command>...",
		Short: "Send one command and print the response",
		Long:  "Opens a single connection, sends the command, and prints whatever\nthe server answers. Multiple arguments are joined with spaces.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.NewClient(addr)
			c.SetTimeout(timeout)

			resp, err := c.Send(strings.Join(args, " "))
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), resp)
			return nil
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "127.0.0.1:7777", "server address")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "per-command timeout")

	return cmd
}
