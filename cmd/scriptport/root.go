package main

import (
	"fmt"

	"scriptport"

	"github.com/spf13/cobra"
)

// newRootCmd creates the root scriptport command with all subcommands attached.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "scriptport",
		Short:         "Remote scripting port for live sessions",
		Long:          "scriptport serves a TCP command port backed by a persistent Lua\nnamespace. Commands are evaluated immediately; paths to script files\nare queued and run on the next drain pass.",
		Version:       fmt.Sprintf("scriptport %s", scriptport.Version),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("{{.Version}}\n")

	cmd.AddCommand(
		newServeCmd(),
		newSendCmd(),
		newConsoleCmd(),
	)

	return cmd
}
