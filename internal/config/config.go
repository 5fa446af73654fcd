package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/i474232898/agri-risk-engine/internal/risk"
	"github.com/i474232898/agri-risk-engine/internal/risk/sources"
)

// WatchTarget is one location the scheduler re-assesses periodically.
type WatchTarget struct {
	Name     string
	Location risk.Location
	Crop     risk.Crop
}

type AppConfig struct {
	Port string

	LogLevel  string
	LogFormat string

	SourceMode    sources.Mode
	SyntheticSeed int64
	HTTPTimeout   time.Duration
	SourceTimeout time.Duration

	WeatherAPIKey  string
	GeocoderAPIKey string

	// Payload cache retention.
	CacheMaxEntries int           // max number of cached payloads (0 = unlimited)
	CacheMaxAge     time.Duration // max age of cached payloads (0 = unlimited)

	WatchTargets    []WatchTarget
	WatchInterval   time.Duration
	WatchWindowDays int

	ShutdownTimeout time.Duration

	// OpenTelemetry tracing. An empty endpoint exports spans to stdout.
	TracingEnabled     bool
	TracingEndpoint    string
	TracingInsecure    bool
	TracingSampleRatio float64
}

// Load reads configuration from the environment, and from .env when present.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	return FromEnv()
}

// FromEnv reads configuration from the environment with sensible defaults.
func FromEnv() (*AppConfig, error) {
	cfg := &AppConfig{
		Port:           getenvDefault("PORT", "8080"),
		LogLevel:       getenvDefault("LOG_LEVEL", "info"),
		LogFormat:      getenvDefault("LOG_FORMAT", "json"),
		WeatherAPIKey:  os.Getenv("WEATHERAPI_API_KEY"),
		GeocoderAPIKey: os.Getenv("GEOCODER_API_KEY"),
	}

	mode, err := sources.ParseMode(getenvDefault("SOURCE_MODE", string(sources.ModeSynthetic)))
	if err != nil {
		return nil, fmt.Errorf("invalid SOURCE_MODE: %w", err)
	}
	cfg.SourceMode = mode

	seed, err := getenvInt("SYNTHETIC_SEED", 42)
	if err != nil {
		return nil, err
	}
	cfg.SyntheticSeed = int64(seed)

	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", "15s"); err != nil {
		return nil, err
	}
	if cfg.SourceTimeout, err = getenvDuration("SOURCE_TIMEOUT", "10s"); err != nil {
		return nil, err
	}
	if cfg.CacheMaxEntries, err = getenvInt("CACHE_MAX_ENTRIES", 512); err != nil {
		return nil, err
	}
	if cfg.CacheMaxAge, err = getenvDuration("CACHE_MAX_AGE", "1h"); err != nil {
		return nil, err
	}
	if cfg.WatchInterval, err = getenvDuration("WATCH_INTERVAL", "6h"); err != nil {
		return nil, err
	}
	if cfg.WatchWindowDays, err = getenvInt("WATCH_WINDOW_DAYS", 7); err != nil {
		return nil, err
	}
	if cfg.WatchWindowDays < 1 || cfg.WatchWindowDays > 31 {
		return nil, fmt.Errorf("invalid WATCH_WINDOW_DAYS: %d is outside 1-31", cfg.WatchWindowDays)
	}
	if cfg.ShutdownTimeout, err = getenvDuration("SHUTDOWN_TIMEOUT", "10s"); err != nil {
		return nil, err
	}

	if cfg.TracingEnabled, err = getenvBool("OTEL_ENABLED", false); err != nil {
		return nil, err
	}
	if cfg.TracingInsecure, err = getenvBool("OTEL_EXPORTER_OTLP_INSECURE", false); err != nil {
		return nil, err
	}
	if cfg.TracingSampleRatio, err = getenvFloat("OTEL_SAMPLER_RATIO", 0.1); err != nil {
		return nil, err
	}
	cfg.TracingEndpoint = strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))

	if cfg.WatchTargets, err = parseWatchTargets(os.Getenv("WATCH_LOCATIONS")); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parseWatchTargets reads "name:lat:lon:crop;..." entries.
func parseWatchTargets(raw string) ([]WatchTarget, error) {
	var targets []WatchTarget
	for _, item := range strings.Split(raw, ";") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		parts := strings.Split(item, ":")
		if len(parts) != 4 {
			return nil, fmt.Errorf("invalid WATCH_LOCATIONS entry %q: want name:lat:lon:crop", item)
		}
		lat, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid latitude in WATCH_LOCATIONS entry %q: %w", item, err)
		}
		lon, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid longitude in WATCH_LOCATIONS entry %q: %w", item, err)
		}
		targets = append(targets, WatchTarget{
			Name:     strings.TrimSpace(parts[0]),
			Location: risk.Location{Lat: lat, Lon: lon},
			Crop:     risk.Crop(strings.ToLower(strings.TrimSpace(parts[3]))),
		})
	}
	return targets, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getenvBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func getenvFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func getenvDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
