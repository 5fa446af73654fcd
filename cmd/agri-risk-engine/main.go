package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/i474232898/agri-risk-engine/internal/config"
	"github.com/i474232898/agri-risk-engine/internal/geo"
	"github.com/i474232898/agri-risk-engine/internal/observability"
	"github.com/i474232898/agri-risk-engine/internal/risk"
	"github.com/i474232898/agri-risk-engine/internal/risk/sources"
	"github.com/i474232898/agri-risk-engine/internal/store"
)

func main() {
	root := &cobra.Command{
		Use:           "agri-risk-engine",
		Short:         "Crop risk alerts from weather, precipitation and vegetation data",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}
	root.AddCommand(newServeCmd(), newAssessCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app bundles everything both commands need.
type app struct {
	cfg     *config.AppConfig
	logger  *zap.Logger
	metrics *observability.Metrics
	service *risk.Service

	shutdownTracing func(context.Context) error
}

func newApp(ctx context.Context, reg prometheus.Registerer) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, err
	}

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfig{
		Enabled:     cfg.TracingEnabled,
		Endpoint:    cfg.TracingEndpoint,
		Insecure:    cfg.TracingInsecure,
		SampleRatio: cfg.TracingSampleRatio,
		Writer:      os.Stderr,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to init tracing: %w", err)
	}

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	// Providers with resilience (backoff + circuit breaker).
	srcs, err := sources.Build(sources.Options{
		Mode:          cfg.SourceMode,
		Seed:          cfg.SyntheticSeed,
		Client:        httpClient,
		WeatherAPIKey: cfg.WeatherAPIKey,
	}, logger.Named("sources"))
	if err != nil {
		return nil, err
	}

	cache := store.NewMemoryCache(cfg.CacheMaxEntries, cfg.CacheMaxAge, nil)
	metrics := observability.NewMetrics(reg)

	opts := []risk.ServiceOption{
		risk.WithCache(cache),
		risk.WithRecorder(metrics),
		risk.WithSourceTimeout(cfg.SourceTimeout),
	}
	if cfg.GeocoderAPIKey != "" {
		opts = append(opts, risk.WithLocator(geo.NewLocator(cfg.GeocoderAPIKey, cache)))
	}

	engine := risk.NewEngine(risk.NewRegistry(), logger.Named("engine"))
	service := risk.NewService(engine, srcs, logger.Named("service"), opts...)

	logger.Info("configured risk engine",
		zap.String("source_mode", string(cfg.SourceMode)),
		zap.Duration("source_timeout", cfg.SourceTimeout),
		zap.Bool("geocoding", cfg.GeocoderAPIKey != ""),
		zap.Bool("tracing", cfg.TracingEnabled),
	)
	return &app{cfg: cfg, logger: logger, metrics: metrics, service: service, shutdownTracing: shutdownTracing}, nil
}

// close flushes pending spans and logs.
func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.shutdownTracing(ctx); err != nil {
		a.logger.Warn("tracing shutdown failed", zap.Error(err))
	}
	_ = a.logger.Sync()
}
