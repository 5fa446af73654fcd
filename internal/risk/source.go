package risk

import "context"

// WeatherSource provides daily atmospheric observations.
type WeatherSource interface {
	Name() string
	FetchWeather(ctx context.Context, loc Location, period Period) (RawPayload, error)
}

// PrecipitationSource provides daily rainfall totals.
type PrecipitationSource interface {
	Name() string
	FetchPrecipitation(ctx context.Context, loc Location, period Period) (RawPayload, error)
}

// VegetationSource provides NDVI samples.
type VegetationSource interface {
	Name() string
	FetchVegetation(ctx context.Context, loc Location, period Period) (RawPayload, error)
}

// HistoricalSource provides long-term yield context for a crop and region.
type HistoricalSource interface {
	Name() string
	FetchHistorical(ctx context.Context, crop Crop, loc Location) (HistoricalRecord, error)
}

// Sources bundles the four collaborators. A nil source is treated as unavailable.
type Sources struct {
	Weather       WeatherSource
	Precipitation PrecipitationSource
	Vegetation    VegetationSource
	Historical    HistoricalSource
}

// Inputs is everything the engine needs for one evaluation. Raw holds the payloads
// of the sources that answered; a missing entry means the source was unavailable.
type Inputs struct {
	Request    Request
	Raw        map[SourceKind]RawPayload
	Historical *HistoricalRecord
}
