package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/i474232898/agri-risk-engine/internal/risk"
)

const (
	modisProduct       = "MOD13Q1"
	modisNDVIBand      = "250m_16_days_NDVI"
	modisCompositeDays = 16
	modisDefaultScale  = 0.0001
	ndviMin            = -0.2
	ndviMax            = 1.0
)

// ModisSource implements risk.VegetationSource using the ORNL DAAC MODIS web
// service. Each 16-day composite value is spread over the days of its window.
type ModisSource struct {
	endpoint
}

func NewModisSource(client *http.Client, baseURL string) *ModisSource {
	if baseURL == "" {
		baseURL = "https://modis.ornl.gov/rst/api/v1/" + modisProduct + "/subset"
	}
	return &ModisSource{endpoint: newEndpoint("modis-ornl", baseURL, DefaultHTTPConfig(client))}
}

func (p *ModisSource) Name() string {
	return p.name
}

// modisScale accepts the scale factor as either a JSON string or number.
type modisScale float64

func (s *modisScale) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	if len(b) == 0 || string(b) == "null" {
		*s = 0
		return nil
	}
	v, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return fmt.Errorf("invalid scale %q: %w", b, err)
	}
	*s = modisScale(v)
	return nil
}

// modisDate renders the AYYYYDDD form the service expects.
func modisDate(t time.Time) string {
	return fmt.Sprintf("A%04d%03d", t.Year(), t.YearDay())
}

func (p *ModisSource) FetchVegetation(ctx context.Context, loc risk.Location, period risk.Period) (risk.RawPayload, error) {
	values := url.Values{}
	values.Set("latitude", fmt.Sprintf("%f", loc.Lat))
	values.Set("longitude", fmt.Sprintf("%f", loc.Lon))
	values.Set("band", modisNDVIBand)
	// A composite that started before the period can still cover its first days.
	values.Set("startDate", modisDate(period.Start.AddDate(0, 0, -modisCompositeDays)))
	values.Set("endDate", modisDate(period.End))
	values.Set("kmAboveBelow", "0")
	values.Set("kmLeftRight", "0")

	var payload struct {
		Scale  modisScale `json:"scale"`
		Subset []struct {
			CalendarDate string        `json:"calendar_date"`
			Band         string        `json:"band"`
			Data         []json.Number `json:"data"`
		} `json:"subset"`
	}
	if err := p.getJSON(ctx, values, &payload); err != nil {
		return risk.RawPayload{}, err
	}

	scale := float64(payload.Scale)
	if scale == 0 {
		scale = modisDefaultScale
	}

	out := risk.RawPayload{Provider: p.name, Provenance: risk.ProvenanceLive}
	for _, s := range payload.Subset {
		if s.Band != "" && s.Band != modisNDVIBand {
			continue
		}
		start, err := time.Parse("2006-01-02", s.CalendarDate)
		if err != nil || len(s.Data) == 0 {
			continue
		}
		raw, err := s.Data[0].Float64()
		if err != nil {
			continue
		}
		ndvi := raw * scale
		if ndvi < ndviMin || ndvi > ndviMax {
			continue
		}
		for i := 0; i < modisCompositeDays; i++ {
			d := start.AddDate(0, 0, i)
			if period.Contains(d) {
				out.Set(risk.DateKey(d), risk.FieldNDVI, ndvi)
			}
		}
	}
	if len(out.Days) == 0 {
		return risk.RawPayload{}, fmt.Errorf("%s: %w", p.name, errNoData)
	}
	return out, nil
}
