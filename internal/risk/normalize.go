package risk

import (
	"math"
	"time"

	"go.uber.org/zap"
)

// Field names a per-day numeric value inside a raw payload.
type Field string

const (
	FieldTemperature    Field = "temperature"
	FieldHumidity       Field = "humidity"
	FieldPressure       Field = "pressure"
	FieldRainfall       Field = "rainfall"
	FieldWindSpeed      Field = "wind_speed"
	FieldWindDirection  Field = "wind_direction"
	FieldSolarRadiation Field = "solar_radiation"
	FieldNDVI           Field = "ndvi"
)

// Domain defaults applied when a source has no value for a day.
const (
	DefaultTemperatureC     = 25.0
	DefaultHumidityPct      = 65.0
	DefaultPressureHpa      = 1013.0
	DefaultRainfallMm       = 0.0
	DefaultWindSpeedMS      = 5.0
	DefaultWindDirectionDeg = 180.0
	DefaultSolarRadiation   = 20.0
)

// fieldOwner maps each field to the only source allowed to populate it.
var fieldOwner = map[Field]SourceKind{
	FieldTemperature:    SourceWeather,
	FieldHumidity:       SourceWeather,
	FieldPressure:       SourceWeather,
	FieldWindSpeed:      SourceWeather,
	FieldWindDirection:  SourceWeather,
	FieldSolarRadiation: SourceWeather,
	FieldRainfall:       SourcePrecipitation,
	FieldNDVI:           SourceVegetation,
}

// DayValues holds the fields a source reported for one day.
type DayValues map[Field]float64

// RawPayload is a source's answer keyed by day. Keys may be YYYYMMDD or YYYY-MM-DD.
type RawPayload struct {
	Provider   string
	Provenance Provenance
	Days       map[string]DayValues

	// Substituted marks an answer served by a fallback source in place of the
	// configured one. Substituted payloads are never cached.
	Substituted bool
}

// Set records a value, creating the day entry when needed.
func (p *RawPayload) Set(day string, f Field, v float64) {
	if p.Days == nil {
		p.Days = make(map[string]DayValues)
	}
	dv, ok := p.Days[day]
	if !ok {
		dv = make(DayValues)
		p.Days[day] = dv
	}
	dv[f] = v
}

// Normalized is the date-aligned view of all sources for a period.
type Normalized struct {
	Observations []Observation
	// Coverage counts the days of the period for which each source had an entry.
	Coverage map[SourceKind]int
	// Provenance is each source's payload provenance, or none when absent.
	Provenance map[SourceKind]Provenance
}

// Normalizer aligns heterogeneous source payloads onto the requested days.
type Normalizer struct {
	logger *zap.Logger
}

// NewNormalizer creates a Normalizer.
func NewNormalizer(logger *zap.Logger) *Normalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Normalizer{logger: logger}
}

// Normalize produces exactly period.Days() observations regardless of how complete
// the sources are. Missing fields take their domain default and the day is flagged
// partial on that source. Malformed day keys are skipped with a warning.
func (n *Normalizer) Normalize(raw map[SourceKind]RawPayload, period Period) Normalized {
	indexed := make(map[SourceKind]map[string]DayValues, len(raw))
	prov := make(map[SourceKind]Provenance, len(SourceKinds))

	for _, kind := range SourceKinds {
		prov[kind] = ProvenanceNone
	}

	for kind, payload := range raw {
		days := make(map[string]DayValues, len(payload.Days))
		for key, values := range payload.Days {
			day, err := parseDayKey(key)
			if err != nil {
				n.logger.Warn("skipping malformed day key",
					zap.String("source", string(kind)),
					zap.String("provider", payload.Provider),
					zap.String("key", key),
				)
				continue
			}
			if !period.Contains(day) {
				continue
			}
			k := DateKey(day)
			merged, ok := days[k]
			if !ok {
				merged = make(DayValues, len(values))
				days[k] = merged
			}
			for f, v := range values {
				if fieldOwner[f] != kind || math.IsNaN(v) || math.IsInf(v, 0) {
					continue
				}
				merged[f] = v
			}
			if len(merged) == 0 {
				delete(days, k)
			}
		}
		indexed[kind] = days
		if payload.Provenance != "" {
			prov[kind] = payload.Provenance
		}
	}

	out := Normalized{
		Observations: make([]Observation, 0, period.Days()),
		Coverage:     make(map[SourceKind]int, len(SourceKinds)),
		Provenance:   prov,
	}

	for _, date := range period.Dates() {
		key := DateKey(date)
		obs := Observation{
			Date:       date,
			Provenance: make(map[SourceKind]Provenance, 3),
		}

		var weather, precip, veg DayValues
		for _, kind := range []SourceKind{SourceWeather, SourcePrecipitation, SourceVegetation} {
			dv, ok := indexed[kind][key]
			if !ok {
				obs.Partial = append(obs.Partial, kind)
				obs.Provenance[kind] = ProvenanceNone
				continue
			}
			out.Coverage[kind]++
			obs.Provenance[kind] = prov[kind]
			switch kind {
			case SourceWeather:
				weather = dv
			case SourcePrecipitation:
				precip = dv
			case SourceVegetation:
				veg = dv
			}
		}

		obs.TemperatureC = valueOr(weather, FieldTemperature, DefaultTemperatureC)
		obs.HumidityPct = valueOr(weather, FieldHumidity, DefaultHumidityPct)
		obs.PressureHpa = valueOr(weather, FieldPressure, DefaultPressureHpa)
		obs.WindSpeedMS = valueOr(weather, FieldWindSpeed, DefaultWindSpeedMS)
		obs.WindDirectionDeg = valueOr(weather, FieldWindDirection, DefaultWindDirectionDeg)
		obs.SolarRadiation = optional(weather, FieldSolarRadiation)
		obs.RainfallMm = valueOr(precip, FieldRainfall, DefaultRainfallMm)
		obs.NDVI = optional(veg, FieldNDVI)

		out.Observations = append(out.Observations, obs)
	}

	return out
}

func valueOr(dv DayValues, f Field, def float64) float64 {
	if v, ok := dv[f]; ok {
		return v
	}
	return def
}

func optional(dv DayValues, f Field) *float64 {
	v, ok := dv[f]
	if !ok {
		return nil
	}
	return &v
}

func parseDayKey(key string) (time.Time, error) {
	if t, err := ParseDate(key); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, key)
	if err != nil {
		return time.Time{}, err
	}
	return truncateDay(t), nil
}
