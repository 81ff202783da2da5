// Command server runs the cast scheduler API together with the job
// dispatcher and the publish worker.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "castscheduler",
	Short: "Schedule Farcaster casts and publish them when they come due",
	Long: `castscheduler serves the HTTP API used to schedule, edit and cancel
casts, keeps one deferred job per pending cast in Redis, and publishes each
cast through Neynar when its job fires. Configuration is read from the
environment and an optional .env file.`,
	SilenceUsage: true,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.AddCommand(serveCmd, migrateCmd, reconcileCmd)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
