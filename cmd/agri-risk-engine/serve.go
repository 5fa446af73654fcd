package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httpapi "github.com/i474232898/agri-risk-engine/internal/api/http"
	"github.com/i474232898/agri-risk-engine/internal/scheduler"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the watch-list scheduler",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd.Context(), prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}
	defer a.close()

	// Scheduler that periodically re-assesses the watch list.
	sched := scheduler.New(a.cfg.WatchTargets, a.cfg.WatchInterval, a.cfg.WatchWindowDays, a.service, a.metrics, nil, a.logger)
	if err := sched.Start(); err != nil {
		return err
	}
	defer sched.Stop()

	server := fiber.New(fiber.Config{
		AppName:               "agri-risk-engine",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          60 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"success": false,
				"error":   err.Error(),
			})
		},
	})

	// Global middleware
	server.Use(logger.New())
	server.Use(recover.New())

	httpapi.RegisterRoutes(server, a.service, promhttp.Handler())

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.logger.Info("http server listening", zap.String("port", a.cfg.Port))
	return runUntilDone(ctx, func() error { return server.Listen(":" + a.cfg.Port) },
		server.ShutdownWithContext, a.cfg.ShutdownTimeout, a.logger)
}

// runUntilDone runs listen until ctx is cancelled, then shuts down within timeout.
// A listen failure before that is returned so the process exits non-zero.
func runUntilDone(ctx context.Context, listen func() error, shutdown func(context.Context) error, timeout time.Duration, log *zap.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- listen()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.Error("fiber server stopped", zap.Error(err))
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := shutdown(shutdownCtx); err != nil {
		log.Error("error during shutdown", zap.Error(err))
	}
	return nil
}
