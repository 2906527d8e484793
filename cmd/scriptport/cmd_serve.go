package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"scriptport"

	"github.com/spf13/cobra"
)

// serveConfig holds configuration for the serve command.
type serveConfig struct {
	listen       string
	ext          string
	limit        int
	tick         time.Duration
	restartDelay time.Duration
	readTimeout  time.Duration
}

// newServeCmd creates the "scriptport serve" subcommand.
func newServeCmd() *cobra.Command {
	var cfg serveConfig

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the command server in the foreground",
		Long:  "Binds the TCP command port and serves until interrupted.\nRemote STOP and RESTART commands drive the lifecycle; Ctrl+C stops.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv, err := scriptport.New(
				scriptport.WithListenAddr(cfg.listen),
				scriptport.WithScriptExt(cfg.ext),
				scriptport.WithReadLimit(cfg.limit),
				scriptport.WithTickInterval(cfg.tick),
				scriptport.WithRestartDelay(cfg.restartDelay),
				scriptport.WithReadTimeout(cfg.readTimeout),
			)
			if err != nil {
				return err
			}

			if err := srv.Start(ctx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "listening on %s\n", srv.Addr())

			// The signal context stops the server; Wait returns once the
			// teardown has finished.
			return srv.Wait(context.Background())
		},
	}

	cmd.Flags().StringVarP(&cfg.listen, "listen", "l", "127.0.0.1:7777", "TCP address to bind")
	cmd.Flags().StringVar(&cfg.ext, "ext", ".lua", "file extension that marks a command as a script path")
	cmd.Flags().IntVar(&cfg.limit, "limit", 1024, "maximum command size in bytes")
	cmd.Flags().DurationVar(&cfg.tick, "tick", 100*time.Millisecond, "interval between queue drain passes")
	cmd.Flags().DurationVar(&cfg.restartDelay, "restart-delay", time.Second, "pause before rebinding during a restart")
	cmd.Flags().DurationVar(&cfg.readTimeout, "read-timeout", 30*time.Second, "how long to wait for a client to send its command")

	return cmd
}
