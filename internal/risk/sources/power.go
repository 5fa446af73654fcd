package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/i474232898/agri-risk-engine/internal/risk"
)

const powerFillValue = -999.0

// powerParameters maps NASA POWER daily parameters onto observation fields.
var powerParameters = map[string]risk.Field{
	"T2M":               risk.FieldTemperature,
	"RH2M":              risk.FieldHumidity,
	"PS":                risk.FieldPressure,
	"WS2M":              risk.FieldWindSpeed,
	"WD2M":              risk.FieldWindDirection,
	"ALLSKY_SFC_SW_DWN": risk.FieldSolarRadiation,
}

const powerParameterList = "T2M,RH2M,PS,WS2M,WD2M,ALLSKY_SFC_SW_DWN"

// PowerSource implements risk.WeatherSource against the NASA POWER daily point API.
type PowerSource struct {
	endpoint
}

// NewPowerSource creates a NASA POWER source. baseURL may be empty for the public API.
func NewPowerSource(client *http.Client, baseURL string) *PowerSource {
	if baseURL == "" {
		baseURL = "https://power.larc.nasa.gov/api/temporal/daily/point"
	}
	return &PowerSource{endpoint: newEndpoint("nasa-power", baseURL, DefaultHTTPConfig(client))}
}

func (p *PowerSource) Name() string {
	return p.name
}

func (p *PowerSource) FetchWeather(ctx context.Context, loc risk.Location, period risk.Period) (risk.RawPayload, error) {
	values := url.Values{}
	values.Set("parameters", powerParameterList)
	values.Set("community", "AG")
	values.Set("latitude", fmt.Sprintf("%f", loc.Lat))
	values.Set("longitude", fmt.Sprintf("%f", loc.Lon))
	values.Set("start", period.Start.Format("20060102"))
	values.Set("end", period.End.Format("20060102"))
	values.Set("format", "JSON")

	var payload struct {
		Properties struct {
			Parameter map[string]map[string]float64 `json:"parameter"`
		} `json:"properties"`
	}
	if err := p.getJSON(ctx, values, &payload); err != nil {
		return risk.RawPayload{}, err
	}

	out := risk.RawPayload{Provider: p.name, Provenance: risk.ProvenanceLive}
	for param, series := range payload.Properties.Parameter {
		field, ok := powerParameters[strings.ToUpper(param)]
		if !ok {
			continue
		}
		for day, v := range series {
			if v == powerFillValue {
				continue
			}
			if field == risk.FieldPressure {
				// POWER reports surface pressure in kPa.
				v *= 10
			}
			out.Set(day, field, v)
		}
	}
	if len(out.Days) == 0 {
		return risk.RawPayload{}, fmt.Errorf("%s: %w", p.name, errNoData)
	}
	return out, nil
}
