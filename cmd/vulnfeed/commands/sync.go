package commands

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

func NewSyncCommand() *cobra.Command {
	syncCmd := &cobra.Command{
		Use:   "sync",
		Short: "Run a single ingestion cycle and exit",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp(cmd)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			now := time.Now()
			summary, err := app.runner.RunCycle(ctx)
			if err != nil {
				return err
			}
			slog.Info("sync finished",
				"duration", time.Since(now),
				"seen", summary.Seen,
				"inserted", summary.Inserted,
				"updated", summary.Updated,
				"unchanged", summary.Unchanged,
				"invalid", summary.Invalid,
				"notifications", summary.Notifications)
			return nil
		},
	}
	return syncCmd
}
