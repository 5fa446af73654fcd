package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/i474232898/agri-risk-engine/internal/risk"
)

// OpenMeteoSource implements risk.PrecipitationSource using the Open-Meteo
// historical archive. It needs no API key.
type OpenMeteoSource struct {
	endpoint
}

func NewOpenMeteoSource(client *http.Client, baseURL string) *OpenMeteoSource {
	if baseURL == "" {
		baseURL = "https://archive-api.open-meteo.com/v1/archive"
	}
	return &OpenMeteoSource{endpoint: newEndpoint("openmeteo", baseURL, DefaultHTTPConfig(client))}
}

func (p *OpenMeteoSource) Name() string {
	return p.name
}

func (p *OpenMeteoSource) FetchPrecipitation(ctx context.Context, loc risk.Location, period risk.Period) (risk.RawPayload, error) {
	values := url.Values{}
	values.Set("latitude", fmt.Sprintf("%f", loc.Lat))
	values.Set("longitude", fmt.Sprintf("%f", loc.Lon))
	values.Set("start_date", risk.DateKey(period.Start))
	values.Set("end_date", risk.DateKey(period.End))
	values.Set("daily", "precipitation_sum")
	values.Set("timezone", "UTC")

	var payload struct {
		Daily struct {
			Time             []string   `json:"time"`
			PrecipitationSum []*float64 `json:"precipitation_sum"`
		} `json:"daily"`
	}
	if err := p.getJSON(ctx, values, &payload); err != nil {
		return risk.RawPayload{}, err
	}

	out := risk.RawPayload{Provider: p.name, Provenance: risk.ProvenanceLive}
	for i, day := range payload.Daily.Time {
		if i >= len(payload.Daily.PrecipitationSum) {
			break
		}
		// Open-Meteo returns null for days it has no reanalysis for yet.
		if v := payload.Daily.PrecipitationSum[i]; v != nil {
			out.Set(day, risk.FieldRainfall, *v)
		}
	}
	if len(out.Days) == 0 {
		return risk.RawPayload{}, fmt.Errorf("%s: %w", p.name, errNoData)
	}
	return out, nil
}
