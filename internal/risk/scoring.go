package risk

import (
	"fmt"
	"strings"
)

const (
	heavyRainfallRatio     = 0.8
	sustainedTempMargin    = 5.0
	ndviConcernMargin      = 0.1
	highDemandMinRainfall  = 30.0
	vegetationTrendEpsilon = 0.05
)

// VegetationTrend is the direction of NDVI over the observation period.
type VegetationTrend string

const (
	VegetationImproving VegetationTrend = "improving"
	VegetationStable    VegetationTrend = "stable"
	VegetationDeclining VegetationTrend = "declining"
)

// ScoreInput is what the scoring engine evaluates.
type ScoreInput struct {
	Observations []Observation
	Features     []FeatureVector
	Profile      CropProfile
	// Available marks the sources that produced usable data.
	Available  map[SourceKind]bool
	Historical *HistoricalRecord
}

// Score evaluates the four categories independently.
func Score(in ScoreInput) Categories {
	return Categories{
		Weather:       scoreWeather(in),
		Precipitation: scorePrecipitation(in),
		Vegetation:    scoreVegetation(in),
		Historical:    scoreHistorical(in),
	}
}

func unavailable(c Category) CategoryResult {
	title := strings.ToUpper(string(c[:1])) + string(c[1:])
	return CategoryResult{
		Category: c,
		Alerts: []Alert{{
			Category: c,
			Kind:     AlertDataUnavailable,
			Message:  fmt.Sprintf("⚠️ %s data unavailable", title),
		}},
		Level: LevelMedium,
	}
}

type categoryBuilder struct {
	res CategoryResult
}

func newBuilder(c Category) *categoryBuilder {
	return &categoryBuilder{res: CategoryResult{Category: c, Alerts: []Alert{}, Level: LevelLow, Available: true}}
}

func (b *categoryBuilder) add(kind AlertKind, level Level, format string, args ...any) {
	b.res.Alerts = append(b.res.Alerts, Alert{
		Category: b.res.Category,
		Kind:     kind,
		Message:  fmt.Sprintf(format, args...),
	})
	b.res.Level = b.res.Level.AtLeast(level)
}

// temperatures prefers the sanitized feature column when features are aligned.
func temperatures(in ScoreInput) []float64 {
	if len(in.Features) == len(in.Observations) && len(in.Features) > 0 {
		out := make([]float64, len(in.Features))
		for i, f := range in.Features {
			out[i] = f.TemperatureC
		}
		return out
	}
	out := make([]float64, len(in.Observations))
	for i, o := range in.Observations {
		out[i] = o.TemperatureC
	}
	return out
}

func rainfall(in ScoreInput) []float64 {
	if len(in.Features) == len(in.Observations) && len(in.Features) > 0 {
		out := make([]float64, len(in.Features))
		for i, f := range in.Features {
			out[i] = f.RainfallMm
		}
		return out
	}
	out := make([]float64, len(in.Observations))
	for i, o := range in.Observations {
		out[i] = o.RainfallMm
	}
	return out
}

func scoreWeather(in ScoreInput) CategoryResult {
	if !in.Available[SourceWeather] {
		return unavailable(CategoryWeather)
	}
	p := in.Profile
	b := newBuilder(CategoryWeather)

	temps := temperatures(in)
	for _, t := range temps {
		if t > p.HeatStressTemp {
			b.add(AlertHeatStress, LevelHigh, "🌡️ Heat stress risk: %.1f°C (limit: %.1f°C)", t, p.HeatStressTemp)
		}
		if t < p.ColdStressTemp {
			b.add(AlertColdStress, LevelHigh, "🧊 Cold stress risk: %.1f°C (limit: %.1f°C)", t, p.ColdStressTemp)
		}
	}

	if len(temps) > 0 {
		avg := sum(temps) / float64(len(temps))
		switch {
		case avg < p.OptimalTemp.Low-sustainedTempMargin:
			b.add(AlertSustainedCold, LevelMedium, "❄️ Sustained cold conditions: %.1f°C average", avg)
		case avg > p.OptimalTemp.High+sustainedTempMargin:
			b.add(AlertSustainedHot, LevelMedium, "🔥 Sustained hot conditions: %.1f°C average", avg)
		}
	}
	return b.res
}

func scorePrecipitation(in ScoreInput) CategoryResult {
	if !in.Available[SourcePrecipitation] {
		return unavailable(CategoryPrecipitation)
	}
	p := in.Profile
	b := newBuilder(CategoryPrecipitation)

	rains := rainfall(in)
	var total float64
	for _, r := range rains {
		total += r
		switch {
		case r > p.FloodingThreshold:
			b.add(AlertFlooding, LevelHigh, "🌊 Flooding risk: %.1fmm rainfall (limit: %.1fmm)", r, p.FloodingThreshold)
		case r >= p.FloodingThreshold*heavyRainfallRatio:
			b.add(AlertHeavyRainfall, LevelMedium, "🌧️ Heavy rainfall warning: %.1fmm", r)
		}
	}

	if len(rains) > 0 && total/float64(len(rains)) < p.DroughtThreshold/7 {
		b.add(AlertDrought, LevelMedium, "🏜️ Drought conditions: %.1fmm total rainfall", total)
	}
	if p.WaterNeeds == WaterHigh && total < highDemandMinRainfall {
		b.add(AlertWaterInsufficient, LevelMedium, "💧 Insufficient water for high-demand crop: %.1fmm", total)
	}
	return b.res
}

// ndviSeries returns the day offsets and NDVI values of the days that carry a sample.
func ndviSeries(obs []Observation) (xs, ys []float64) {
	if len(obs) == 0 {
		return nil, nil
	}
	start := obs[0].Date
	for _, o := range obs {
		if o.NDVI == nil || !finite(*o.NDVI) {
			continue
		}
		xs = append(xs, o.Date.Sub(start).Hours()/24)
		ys = append(ys, *o.NDVI)
	}
	return xs, ys
}

// NDVITrend classifies the least-squares slope of the NDVI samples by the total
// change it implies over the sampled span.
func NDVITrend(obs []Observation) VegetationTrend {
	xs, ys := ndviSeries(obs)
	if len(xs) < 2 {
		return VegetationStable
	}
	mx, my := mean(xs), mean(ys)
	var num, den float64
	for i := range xs {
		num += (xs[i] - mx) * (ys[i] - my)
		den += (xs[i] - mx) * (xs[i] - mx)
	}
	if den == 0 {
		return VegetationStable
	}
	change := num / den * (xs[len(xs)-1] - xs[0])
	switch {
	case change <= -vegetationTrendEpsilon:
		return VegetationDeclining
	case change >= vegetationTrendEpsilon:
		return VegetationImproving
	default:
		return VegetationStable
	}
}

func scoreVegetation(in ScoreInput) CategoryResult {
	_, ys := ndviSeries(in.Observations)
	if !in.Available[SourceVegetation] || len(ys) == 0 {
		return unavailable(CategoryVegetation)
	}
	p := in.Profile
	b := newBuilder(CategoryVegetation)

	avg := mean(ys)
	switch {
	case avg < p.MinNDVI:
		b.add(AlertVegetationStress, LevelHigh, "🟠 Vegetation stress: NDVI %.2f (minimum: %.2f)", avg, p.MinNDVI)
	case avg < p.MinNDVI+ndviConcernMargin:
		b.add(AlertVegetationConcern, LevelMedium, "🟡 Vegetation concern: NDVI %.2f approaching stress level", avg)
	}
	if NDVITrend(in.Observations) == VegetationDeclining {
		b.add(AlertVegetationDeclining, LevelMedium, "📉 Vegetation health declining over observation period")
	}
	return b.res
}

func scoreHistorical(in ScoreInput) CategoryResult {
	if !in.Available[SourceHistorical] || in.Historical == nil {
		return unavailable(CategoryHistorical)
	}
	h := in.Historical
	b := newBuilder(CategoryHistorical)
	crop := string(in.Profile.Crop)

	switch h.Trend {
	case TrendDeclining:
		b.add(AlertYieldDecline, LevelLow, "📊 Long-term yield decline trend for %s in this region", crop)
	case TrendVolatile:
		b.add(AlertYieldVolatile, LevelLow, "📈 Volatile yield patterns for %s - increased uncertainty", crop)
	}
	if h.ClimateVulnerable {
		b.add(AlertClimateVulnerable, LevelLow, "🌍 Region showing climate change vulnerability")
	}
	return b.res
}
