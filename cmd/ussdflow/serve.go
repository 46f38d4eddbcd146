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

	"github.com/aretw0/ussdflow/internal/cli"
	ussdhttp "github.com/aretw0/ussdflow/pkg/adapters/http"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gateway HTTP server",
	Long:  `Serves POST /ussd for the USSD gateway, plus /health and Prometheus metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		app, err := cli.NewApp(cfg, logger)
		if err != nil {
			return fmt.Errorf("init service: %w", err)
		}
		defer func() {
			if err := app.Backend.Close(); err != nil {
				logger.Warn("close store", "err", err)
			}
		}()

		if app.Backend.Memory != nil {
			go app.Backend.Memory.RunSweeper(ctx, cfg.Store.SweepInterval)
		}

		handler := ussdhttp.NewHandler(app.Service,
			ussdhttp.WithLogger(logger),
			ussdhttp.WithPath(cfg.HTTP.Path),
			ussdhttp.WithTurnTimeout(cfg.Session.TurnTimeout),
			ussdhttp.WithMaxInputBytes(cfg.HTTP.MaxInputBytes),
			ussdhttp.WithHealthCheck(app.Backend.Health),
			ussdhttp.WithMetrics(cfg.HTTP.MetricsPath, promhttp.HandlerFor(app.Registry, promhttp.HandlerOpts{})),
		)

		srv := &http.Server{
			Addr:              cfg.HTTP.Addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
		}

		serverErrors := make(chan error, 1)
		go func() {
			logger.Info("listening", "addr", srv.Addr, "path", cfg.HTTP.Path, "store", cfg.Store.Backend)
			serverErrors <- srv.ListenAndServe()
		}()

		select {
		case err := <-serverErrors:
			if !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server: %w", err)
			}
		case <-ctx.Done():
			logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("graceful shutdown did not complete", "timeout", shutdownTimeout, "err", err)
				if err := srv.Close(); err != nil {
					logger.Error("close server", "err", err)
				}
			}
			logger.Info("server stopped")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Listen address (default from config, :8080)")
	serveCmd.Flags().Duration("turn-timeout", 0, "Per-turn deadline including wallet calls")
}
