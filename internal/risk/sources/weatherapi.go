package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/i474232898/agri-risk-engine/internal/risk"
)

// WeatherAPISource reads daily aggregates from WeatherAPI.com history. It serves
// both as a risk.WeatherSource and a risk.PrecipitationSource.
type WeatherAPISource struct {
	endpoint
	apiKey string
}

func NewWeatherAPISource(client *http.Client, apiKey, baseURL string) *WeatherAPISource {
	if baseURL == "" {
		baseURL = "https://api.weatherapi.com/v1/history.json"
	}
	return &WeatherAPISource{
		endpoint: newEndpoint("weatherapi", baseURL, DefaultHTTPConfig(client)),
		apiKey:   apiKey,
	}
}

func (p *WeatherAPISource) Name() string {
	return p.name
}

type weatherAPIDay struct {
	Date string `json:"date"`
	Day  struct {
		AvgTempC      *float64 `json:"avgtemp_c"`
		AvgHumidity   *float64 `json:"avghumidity"`
		MaxWindKph    *float64 `json:"maxwind_kph"`
		TotalPrecipMm *float64 `json:"totalprecip_mm"`
	} `json:"day"`
}

func (p *WeatherAPISource) history(ctx context.Context, loc risk.Location, period risk.Period) ([]weatherAPIDay, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("weatherapi api key is not configured")
	}

	values := url.Values{}
	values.Set("key", p.apiKey)
	values.Set("q", fmt.Sprintf("%f,%f", loc.Lat, loc.Lon))
	values.Set("dt", risk.DateKey(period.Start))
	values.Set("end_dt", risk.DateKey(period.End))

	var payload struct {
		Forecast struct {
			ForecastDay []weatherAPIDay `json:"forecastday"`
		} `json:"forecast"`
	}
	if err := p.getJSON(ctx, values, &payload); err != nil {
		return nil, err
	}
	if len(payload.Forecast.ForecastDay) == 0 {
		return nil, fmt.Errorf("%s: %w", p.name, errNoData)
	}
	return payload.Forecast.ForecastDay, nil
}

func (p *WeatherAPISource) FetchWeather(ctx context.Context, loc risk.Location, period risk.Period) (risk.RawPayload, error) {
	days, err := p.history(ctx, loc, period)
	if err != nil {
		return risk.RawPayload{}, err
	}

	out := risk.RawPayload{Provider: p.name, Provenance: risk.ProvenanceLive}
	for _, d := range days {
		if v := d.Day.AvgTempC; v != nil {
			out.Set(d.Date, risk.FieldTemperature, *v)
		}
		if v := d.Day.AvgHumidity; v != nil {
			out.Set(d.Date, risk.FieldHumidity, *v)
		}
		if v := d.Day.MaxWindKph; v != nil {
			// kph to m/s
			out.Set(d.Date, risk.FieldWindSpeed, *v/3.6)
		}
	}
	return out, nil
}

func (p *WeatherAPISource) FetchPrecipitation(ctx context.Context, loc risk.Location, period risk.Period) (risk.RawPayload, error) {
	days, err := p.history(ctx, loc, period)
	if err != nil {
		return risk.RawPayload{}, err
	}

	out := risk.RawPayload{Provider: p.name, Provenance: risk.ProvenanceLive}
	for _, d := range days {
		if v := d.Day.TotalPrecipMm; v != nil {
			out.Set(d.Date, risk.FieldRainfall, *v)
		}
	}
	return out, nil
}
