package risk

import (
	"time"
)

// Level is a normalized risk severity.
type Level string

const (
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
)

// rank orders levels so that high > medium > low.
func (l Level) rank() int {
	switch l {
	case LevelHigh:
		return 2
	case LevelMedium:
		return 1
	default:
		return 0
	}
}

// AtLeast returns l raised to min when l is lower. It never downgrades.
func (l Level) AtLeast(min Level) Level {
	if min.rank() > l.rank() {
		return min
	}
	return l
}

// MaxLevel returns the most severe of the given levels, or low when none are given.
func MaxLevel(levels ...Level) Level {
	out := LevelLow
	for _, l := range levels {
		out = out.AtLeast(l)
	}
	return out
}

// SourceKind identifies one of the independent data streams feeding an assessment.
type SourceKind string

const (
	SourceWeather       SourceKind = "weather"
	SourcePrecipitation SourceKind = "precipitation"
	SourceVegetation    SourceKind = "vegetation"
	SourceHistorical    SourceKind = "historical"
)

// SourceKinds lists every source in category order.
var SourceKinds = []SourceKind{SourceWeather, SourcePrecipitation, SourceVegetation, SourceHistorical}

// Provenance tags where a value came from.
type Provenance string

const (
	ProvenanceLive      Provenance = "live"
	ProvenanceSynthetic Provenance = "synthetic"
	ProvenanceNone      Provenance = "none"
)

// Location is a WGS-84 coordinate pair.
type Location struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Period is an inclusive range of calendar days, both ends at UTC midnight.
type Period struct {
	Start time.Time
	End   time.Time
}

// NewPeriod truncates start and end to UTC calendar days.
func NewPeriod(start, end time.Time) Period {
	return Period{Start: truncateDay(start), End: truncateDay(end)}
}

// Days returns the number of calendar days in the period (inclusive).
func (p Period) Days() int {
	if p.End.Before(p.Start) {
		return 0
	}
	return int(p.End.Sub(p.Start).Hours()/24) + 1
}

// Dates returns every day of the period in ascending order.
func (p Period) Dates() []time.Time {
	n := p.Days()
	out := make([]time.Time, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, p.Start.AddDate(0, 0, i))
	}
	return out
}

// Contains reports whether the day of t falls inside the period.
func (p Period) Contains(t time.Time) bool {
	d := truncateDay(t)
	return !d.Before(p.Start) && !d.After(p.End)
}

// Label renders the period as "Jan 02-Jan 06".
func (p Period) Label() string {
	return p.Start.Format("Jan 02") + "-" + p.End.Format("Jan 02")
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DateKey is the canonical day key used in raw payloads.
func DateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// Observation is one calendar day of environmental data at one location.
type Observation struct {
	Date             time.Time `json:"date"`
	TemperatureC     float64   `json:"temperatureC"`
	HumidityPct      float64   `json:"humidityPct"`
	PressureHpa      float64   `json:"pressureHpa"`
	RainfallMm       float64   `json:"rainfallMm"`
	WindSpeedMS      float64   `json:"windSpeedMs"`
	WindDirectionDeg float64   `json:"windDirectionDeg"`
	// SolarRadiation is in MJ/m²/day; nil when no source reported it.
	SolarRadiation *float64 `json:"solarRadiation,omitempty"`
	NDVI           *float64 `json:"ndvi,omitempty"`

	// Partial lists the sources that had no entry for this day.
	Partial    []SourceKind              `json:"partial,omitempty"`
	Provenance map[SourceKind]Provenance `json:"provenance,omitempty"`
}

// IsPartial reports whether the day is missing data from the given source.
func (o Observation) IsPartial(kind SourceKind) bool {
	for _, k := range o.Partial {
		if k == kind {
			return true
		}
	}
	return false
}

// YieldTrend is the long-term yield direction reported by the historical source.
type YieldTrend string

const (
	TrendImproving YieldTrend = "improving"
	TrendStable    YieldTrend = "stable"
	TrendDeclining YieldTrend = "declining"
	TrendVolatile  YieldTrend = "volatile"
)

// HistoricalRecord is the historical collaborator's answer for a crop and region.
type HistoricalRecord struct {
	Trend             YieldTrend `json:"trend"`
	ClimateVulnerable bool       `json:"climateVulnerable"`
	Years             int        `json:"years"`
	RegionType        string     `json:"regionType,omitempty"`
	Provenance        Provenance `json:"provenance"`
	Substituted       bool       `json:"-"`
}

// Category is one of the four independently scored risk categories.
type Category string

const (
	CategoryWeather       Category = "weather"
	CategoryPrecipitation Category = "precipitation"
	CategoryVegetation    Category = "vegetation"
	CategoryHistorical    Category = "historical"
)

// AlertKind tags an alert at creation time; recommendations are looked up by kind.
type AlertKind string

const (
	AlertHeatStress          AlertKind = "heat_stress"
	AlertColdStress          AlertKind = "cold_stress"
	AlertSustainedCold       AlertKind = "sustained_cold"
	AlertSustainedHot        AlertKind = "sustained_hot"
	AlertFlooding            AlertKind = "flooding"
	AlertHeavyRainfall       AlertKind = "heavy_rainfall"
	AlertDrought             AlertKind = "drought"
	AlertWaterInsufficient   AlertKind = "water_insufficient"
	AlertVegetationStress    AlertKind = "vegetation_stress"
	AlertVegetationConcern   AlertKind = "vegetation_concern"
	AlertVegetationDeclining AlertKind = "vegetation_declining"
	AlertYieldDecline        AlertKind = "yield_decline"
	AlertYieldVolatile       AlertKind = "yield_volatile"
	AlertClimateVulnerable   AlertKind = "climate_vulnerable"
	AlertDataUnavailable     AlertKind = "data_unavailable"
)

// Alert is a single rendered finding.
type Alert struct {
	Category Category  `json:"category"`
	Kind     AlertKind `json:"kind"`
	Message  string    `json:"message"`
}

// CategoryResult is the outcome of scoring one category.
type CategoryResult struct {
	Category  Category `json:"category"`
	Alerts    []Alert  `json:"alerts"`
	Level     Level    `json:"level"`
	Available bool     `json:"available"`
}

// Categories holds the four category results.
type Categories struct {
	Weather       CategoryResult
	Precipitation CategoryResult
	Vegetation    CategoryResult
	Historical    CategoryResult
}

// Ordered returns the categories in fixed output order.
func (c Categories) Ordered() []CategoryResult {
	return []CategoryResult{c.Weather, c.Precipitation, c.Vegetation, c.Historical}
}

// Overall is the maximum of the weather, precipitation and vegetation levels.
// Historical results are advisory and never contribute.
func (c Categories) Overall() Level {
	return MaxLevel(c.Weather.Level, c.Precipitation.Level, c.Vegetation.Level)
}

// Indices summarizes the derived features behind an assessment.
type Indices struct {
	TotalGDD               float64 `json:"totalGdd"`
	MeanVPD                float64 `json:"meanVpd"`
	MaxHeatIndex           float64 `json:"maxHeatIndex"`
	TotalPET               float64 `json:"totalPet"`
	CumulativeWaterBalance float64 `json:"cumulativeWaterBalance"`
	TempRollingMean        float64 `json:"tempRollingMean"`
	MaxConsecutiveDryDays  int     `json:"maxConsecutiveDryDays"`
}

// PeriodView is the JSON form of a period.
type PeriodView struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// AssessmentLocation is the JSON form of the request location.
type AssessmentLocation struct {
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
	Place string  `json:"place,omitempty"`
}

// Assessment is the engine's output. It is created fresh per request.
type Assessment struct {
	ID              string                    `json:"id"`
	Success         bool                      `json:"success"`
	Crop            string                    `json:"crop"`
	Location        AssessmentLocation        `json:"location"`
	Period          PeriodView                `json:"period"`
	RiskLevel       Level                     `json:"risk_level"`
	StatusColor     string                    `json:"status_color"`
	Alerts          []string                  `json:"alerts"`
	AlertDetails    []Alert                   `json:"alert_details"`
	Summary         string                    `json:"summary"`
	Recommendations []string                  `json:"recommendations"`
	DataSources     map[SourceKind]bool       `json:"data_sources"`
	Provenance      map[SourceKind]Provenance `json:"provenance"`
	Indices         Indices                   `json:"indices"`
	GeneratedAt     time.Time                 `json:"generated_at"`
}
