package sources

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/i474232898/agri-risk-engine/internal/risk"
)

type Mode string

const (
	ModeLive      Mode = "live"
	ModeSynthetic Mode = "synthetic"
	ModeFallback  Mode = "fallback"
)

func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeLive, ModeSynthetic, ModeFallback:
		return m, nil
	}
	return "", fmt.Errorf("unknown source mode %q (want live, synthetic or fallback)", s)
}

// Options configures Build. Empty base URLs select the public endpoints.
type Options struct {
	Mode          Mode
	Seed          int64
	Client        *http.Client
	WeatherAPIKey string

	PowerURL      string
	OpenMeteoURL  string
	WeatherAPIURL string
	ModisURL      string
}

// Build assembles the source collaborators for the configured mode. A WeatherAPI
// key adds WeatherAPI history as a second weather and precipitation provider.
// Historical yield data has no live provider and is always synthetic.
func Build(opts Options, logger *zap.Logger) (risk.Sources, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	synthetic := NewSynthetic(opts.Seed)
	if opts.Mode == ModeSynthetic || opts.Mode == "" {
		return risk.Sources{
			Weather:       synthetic,
			Precipitation: synthetic,
			Vegetation:    synthetic,
			Historical:    synthetic,
		}, nil
	}
	if opts.Mode != ModeLive && opts.Mode != ModeFallback {
		return risk.Sources{}, fmt.Errorf("unknown source mode %q", opts.Mode)
	}

	client := opts.Client
	if client == nil {
		client = http.DefaultClient
	}

	weatherProviders := []risk.WeatherSource{NewPowerSource(client, opts.PowerURL)}
	precipProviders := []risk.PrecipitationSource{NewOpenMeteoSource(client, opts.OpenMeteoURL)}
	if opts.WeatherAPIKey != "" {
		wapi := NewWeatherAPISource(client, opts.WeatherAPIKey, opts.WeatherAPIURL)
		weatherProviders = append(weatherProviders, wapi)
		precipProviders = append(precipProviders, wapi)
	}

	live := risk.Sources{
		Weather:       NewAggregatedWeather(logger, weatherProviders...),
		Precipitation: NewAggregatedPrecipitation(logger, precipProviders...),
		Vegetation:    NewModisSource(client, opts.ModisURL),
		Historical:    synthetic,
	}
	if opts.Mode == ModeLive {
		return live, nil
	}

	return risk.Sources{
		Weather:       NewFallback(live.Weather, synthetic, logger),
		Precipitation: NewFallback(live.Precipitation, synthetic, logger),
		Vegetation:    NewFallback(live.Vegetation, synthetic, logger),
		Historical:    synthetic,
	}, nil
}
