package risk

import (
	"math"

	"go.uber.org/zap"
)

// Engine turns fetched source payloads into an Assessment. It performs no I/O and
// holds no per-request state, so one Engine can serve concurrent requests.
type Engine struct {
	registry   *Registry
	normalizer *Normalizer
	window     int
}

// NewEngine creates an Engine backed by the given registry.
func NewEngine(registry *Registry, logger *zap.Logger) *Engine {
	return &Engine{
		registry:   registry,
		normalizer: NewNormalizer(logger),
		window:     DefaultRollingWindow,
	}
}

// Registry exposes the crop registry the engine scores against.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Evaluate runs normalize, feature derivation, scoring and synthesis. The request
// is expected to be validated; an unknown crop still yields a *ValidationError.
// ID, GeneratedAt and Location.Place are left for the caller.
func (e *Engine) Evaluate(in Inputs) (Assessment, error) {
	profile, err := e.registry.Lookup(in.Request.Crop)
	if err != nil {
		return Assessment{}, &ValidationError{Field: "crop", Message: err.Error()}
	}
	period := in.Request.Period()

	norm := e.normalizer.Normalize(in.Raw, period)
	features := DeriveFeaturesWindow(norm.Observations, e.window)
	available := availability(in, norm)

	cats := Score(ScoreInput{
		Observations: norm.Observations,
		Features:     features,
		Profile:      profile,
		Available:    available,
		Historical:   in.Historical,
	})
	syn := Synthesize(cats, profile.Crop, period)

	prov := make(map[SourceKind]Provenance, len(SourceKinds))
	for k, v := range norm.Provenance {
		prov[k] = v
	}
	if !available[SourceHistorical] {
		prov[SourceHistorical] = ProvenanceNone
	} else {
		prov[SourceHistorical] = in.Historical.Provenance
	}
	for _, k := range SourceKinds {
		if !available[k] {
			prov[k] = ProvenanceNone
		}
	}

	return Assessment{
		Success: true,
		Crop:    string(profile.Crop),
		Location: AssessmentLocation{
			Lat: in.Request.Latitude,
			Lon: in.Request.Longitude,
		},
		Period: PeriodView{
			Start: DateKey(period.Start),
			End:   DateKey(period.End),
		},
		RiskLevel:       syn.Level,
		StatusColor:     StatusColor(syn.Level),
		Alerts:          syn.Messages(),
		AlertDetails:    syn.Alerts,
		Summary:         syn.Summary,
		Recommendations: syn.Recommendations,
		DataSources:     available,
		Provenance:      prov,
		Indices:         ComputeIndices(features),
	}, nil
}

// availability marks a fetched source usable only when it covered at least one day.
func availability(in Inputs, norm Normalized) map[SourceKind]bool {
	out := make(map[SourceKind]bool, len(SourceKinds))
	for _, k := range []SourceKind{SourceWeather, SourcePrecipitation, SourceVegetation} {
		_, fetched := in.Raw[k]
		out[k] = fetched && norm.Coverage[k] > 0
	}
	out[SourceHistorical] = in.Historical != nil
	return out
}

// ComputeIndices summarizes a feature sequence.
func ComputeIndices(fvs []FeatureVector) Indices {
	if len(fvs) == 0 {
		return Indices{}
	}
	var idx Indices
	var vpd float64
	idx.MaxHeatIndex = math.Inf(-1)
	for _, f := range fvs {
		idx.TotalGDD += f.GDD
		idx.TotalPET += f.PET
		vpd += f.VPD
		idx.MaxHeatIndex = math.Max(idx.MaxHeatIndex, f.HeatIndex)
		if f.ConsecutiveDryDays > idx.MaxConsecutiveDryDays {
			idx.MaxConsecutiveDryDays = f.ConsecutiveDryDays
		}
	}
	last := fvs[len(fvs)-1]
	idx.MeanVPD = vpd / float64(len(fvs))
	idx.CumulativeWaterBalance = last.CumulativeWaterBalance
	idx.TempRollingMean = last.TempRollingMean
	return idx
}
