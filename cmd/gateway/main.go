// Command gateway serves the marketplace HTTP API.
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/altarlane/marketplace/internal/app"
	"github.com/altarlane/marketplace/internal/config"
	"github.com/altarlane/marketplace/internal/logging"
	"github.com/altarlane/marketplace/internal/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Default().WithError(err).Fatal("failed to load configuration")
	}
	logger := logging.New(app.ServiceID, cfg.LogLevel, cfg.LogFormat)
	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("invalid configuration")
	}

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Fatal("gateway stopped with error")
	}
}

func run(cfg *config.Config, logger *logging.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	clients, err := app.Connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer clients.Close()

	application, err := app.New(cfg, clients, logger, metrics.New())
	if err != nil {
		return err
	}
	if err := application.Start(ctx); err != nil {
		return err
	}

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           application.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	logger.WithFields(map[string]interface{}{
		"addr":     cfg.HTTPAddr,
		"env":      cfg.AppEnv,
		"postgres": cfg.UsePostgres(),
	}).Info("gateway listening")
	return serve(ctx, server, application, logger, cfg.ShutdownTimeout)
}

type stopper interface {
	Stop(ctx context.Context) error
}

// serve runs server until ctx is done or the listener fails, then drains the
// server and stops the application in both cases.
func serve(ctx context.Context, server *http.Server, application stopper, logger *logging.Logger, drain time.Duration) error {
	serveErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case runErr = <-serveErr:
		if runErr != nil {
			logger.WithError(runErr).Error("http server failed")
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	if drain <= 0 {
		drain = 15 * time.Second
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), drain)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("http shutdown incomplete")
	}
	if err := application.Stop(shutdownCtx); err != nil {
		logger.WithError(err).Warn("scheduler stop incomplete")
	}
	logger.Info("gateway stopped")
	return runErr
}
