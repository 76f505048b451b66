package commands

import (
	"context"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

func NewDaemonCommand() *cobra.Command {
	daemonCmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the ingestion pipeline continuously",
		Long:  `Starts the scheduler: one ingestion cycle immediately, then one per poll interval. Exposes prometheus metrics and shuts down gracefully on SIGINT/SIGTERM, finishing the write in flight.`,
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp(cmd)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			metricsServer := &http.Server{
				Addr:              app.cfg.MetricsAddress,
				Handler:           promhttp.Handler(),
				ReadHeaderTimeout: 5 * time.Second,
			}
			go func() {
				slog.Info("serving metrics", "address", app.cfg.MetricsAddress)
				if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					slog.Error("metrics server failed", "err", err)
				}
			}()
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				metricsServer.Shutdown(shutdownCtx) // nolint: errcheck
			}()

			slog.Info("starting daemon", "pollInterval", app.cfg.PollInterval)
			if err := app.runner.Start(ctx); err != nil && err != context.Canceled {
				return err
			}
			slog.Info("daemon stopped")
			return nil
		},
	}
	return daemonCmd
}
