package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aretw0/amrviz"
	"github.com/aretw0/amrviz/internal/presentation/tui"
	httpAdapter "github.com/aretw0/amrviz/pkg/adapters/http"
	"github.com/aretw0/amrviz/pkg/observability"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server and the browser viewer",
	Long: `Starts the REST API (POST /solve, GET /data/{file}, session routes),
the dashboard at / and, unless disabled, Prometheus metrics at /metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		metrics := observability.NewMetrics()
		streams := httpAdapter.NewStreamManager()
		cfg, logger, engine, cleanup, err := setup(cmd, metrics, amrviz.WithNotifier(streams))
		if err != nil {
			return err
		}
		defer cleanup()

		if cfg.CleanOnStart {
			if err := engine.Reset(cmd.Context()); err != nil {
				return fmt.Errorf("failed to clean storage: %w", err)
			}
		}

		opts := []httpAdapter.Option{httpAdapter.WithStreams(streams), httpAdapter.WithLogger(logger)}
		if cfg.Metrics {
			opts = append(opts, httpAdapter.WithMetricsHandler(metrics.Handler()))
		}
		handler, err := httpAdapter.NewHandler(engine.Service(), opts...)
		if err != nil {
			return err
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		if tui.IsTerminal() {
			tui.PrintBanner(os.Stdout)
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)
		go func() {
			logger.Info("Starting amrviz server", "address", srv.Addr, "storage", engine.StorageDir(), "session_store", cfg.SessionStore)
			serverErrors <- srv.ListenAndServe()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("server error: %w", err)

		case sig := <-shutdown:
			logger.Info("Start shutdown", "signal", sig.String())

			// Give outstanding solves a deadline for completion.
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				logger.Warn("Graceful shutdown did not complete", "error", err)
				return srv.Close()
			}
			logger.Info("amrviz server stopped gracefully")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntP("port", "p", 5000, "Port to listen on")
	serveCmd.Flags().Bool("clean-on-start", true, "Clear the storage directory before serving")
	serveCmd.Flags().Bool("metrics", true, "Expose Prometheus metrics at /metrics")
}
