package risk

import (
	"math"
	"time"
)

// DefaultRollingWindow is the trailing window used for rolling statistics.
const DefaultRollingWindow = 3

// Magnus and FAO-56 constants.
const (
	magnusA          = 17.27
	magnusB          = 237.7
	satVaporBase     = 0.6108
	satVaporOffset   = 237.3
	psychrometric    = 0.665
	gddBaseTemp      = 10.0
	heatStressBase   = 30.0
	coldStressBase   = 15.0
	rainyDayMm       = 1.0
	solarToNetFactor = 0.0864
)

// Season is the meteorological season of a day (northern-hemisphere months).
type Season string

const (
	SeasonWinter Season = "winter"
	SeasonSpring Season = "spring"
	SeasonSummer Season = "summer"
	SeasonAutumn Season = "autumn"
)

func seasonOf(m time.Month) Season {
	switch m {
	case time.December, time.January, time.February:
		return SeasonWinter
	case time.March, time.April, time.May:
		return SeasonSpring
	case time.June, time.July, time.August:
		return SeasonSummer
	default:
		return SeasonAutumn
	}
}

// FeatureVector is one Observation plus the indices derived from it and its
// trailing window. Every float field is finite.
type FeatureVector struct {
	Date      time.Time `json:"date"`
	DayOfYear int       `json:"dayOfYear"`
	Month     int       `json:"month"`
	Season    Season    `json:"season"`

	// Original columns.
	TemperatureC     float64  `json:"temperatureC"`
	HumidityPct      float64  `json:"humidityPct"`
	PressureHpa      float64  `json:"pressureHpa"`
	RainfallMm       float64  `json:"rainfallMm"`
	WindSpeedMS      float64  `json:"windSpeedMs"`
	WindDirectionDeg float64  `json:"windDirectionDeg"`
	SolarRadiation   float64  `json:"solarRadiation"`
	NDVI             *float64 `json:"ndvi,omitempty"`

	HeatIndex              float64 `json:"heatIndex"`
	DewpointC              float64 `json:"dewpointC"`
	SatVaporPressure       float64 `json:"saturationVaporPressure"`
	ActualVaporPressure    float64 `json:"actualVaporPressure"`
	VPD                    float64 `json:"vaporPressureDeficit"`
	GDD                    float64 `json:"growingDegreeDays"`
	HeatStress             float64 `json:"heatStress"`
	ColdStress             float64 `json:"coldStress"`
	PET                    float64 `json:"potentialEvapotranspiration"`
	WaterBalance           float64 `json:"waterBalance"`
	CumulativeWaterBalance float64 `json:"cumulativeWaterBalance"`

	TempRollingMean     float64 `json:"tempRollingMean"`
	TempRollingStd      float64 `json:"tempRollingStd"`
	HumidityRollingMean float64 `json:"humidityRollingMean"`
	RainfallRollingSum  float64 `json:"rainfallRollingSum"`

	TempChange     float64 `json:"tempChange"`
	PressureChange float64 `json:"pressureChange"`
	HumidityChange float64 `json:"humidityChange"`

	IsRainyDay         bool    `json:"isRainyDay"`
	ConsecutiveDryDays int     `json:"consecutiveDryDays"`
	WindU              float64 `json:"windU"`
	WindV              float64 `json:"windV"`

	TempLag1     float64 `json:"temperatureLag1"`
	TempLag2     float64 `json:"temperatureLag2"`
	HumidityLag1 float64 `json:"humidityLag1"`
	HumidityLag2 float64 `json:"humidityLag2"`
	RainfallLag1 float64 `json:"rainfallLag1"`
	RainfallLag2 float64 `json:"rainfallLag2"`
	PressureLag1 float64 `json:"pressureLag1"`
	PressureLag2 float64 `json:"pressureLag2"`
}

// Observation rebuilds the original-column subset of the vector.
func (f FeatureVector) Observation() Observation {
	solar := f.SolarRadiation
	return Observation{
		Date:             f.Date,
		TemperatureC:     f.TemperatureC,
		HumidityPct:      f.HumidityPct,
		PressureHpa:      f.PressureHpa,
		RainfallMm:       f.RainfallMm,
		WindSpeedMS:      f.WindSpeedMS,
		WindDirectionDeg: f.WindDirectionDeg,
		SolarRadiation:   &solar,
		NDVI:             f.NDVI,
	}
}

// numeric lists every float column so the fill policy can walk them uniformly.
func (f *FeatureVector) numeric() []*float64 {
	return []*float64{
		&f.TemperatureC, &f.HumidityPct, &f.PressureHpa, &f.RainfallMm,
		&f.WindSpeedMS, &f.WindDirectionDeg, &f.SolarRadiation,
		&f.HeatIndex, &f.DewpointC, &f.SatVaporPressure, &f.ActualVaporPressure, &f.VPD,
		&f.GDD, &f.HeatStress, &f.ColdStress, &f.PET, &f.WaterBalance, &f.CumulativeWaterBalance,
		&f.TempRollingMean, &f.TempRollingStd, &f.HumidityRollingMean, &f.RainfallRollingSum,
		&f.TempChange, &f.PressureChange, &f.HumidityChange,
		&f.WindU, &f.WindV,
		&f.TempLag1, &f.TempLag2, &f.HumidityLag1, &f.HumidityLag2,
		&f.RainfallLag1, &f.RainfallLag2, &f.PressureLag1, &f.PressureLag2,
	}
}

// HeatIndex is the simplified apparent-temperature index.
func HeatIndex(t, h float64) float64 {
	return 0.5 * (t + 61.0 + (t-68.0)*1.2 + h*0.094)
}

// Dewpoint uses the Magnus approximation. It is NaN for h <= 0.
func Dewpoint(t, h float64) float64 {
	alpha := (magnusA*t)/(magnusB+t) + math.Log(h/100.0)
	return (magnusB * alpha) / (magnusA - alpha)
}

// SaturationVaporPressure returns es in kPa.
func SaturationVaporPressure(t float64) float64 {
	return satVaporBase * math.Exp(magnusA*t/(t+satVaporOffset))
}

// PotentialEvapotranspiration is a simplified FAO-56 Penman-Monteith estimate in
// mm/day, clamped to zero. Non-finite results fall back to a temperature-only estimate.
func PotentialEvapotranspiration(t, h, windSpeed, solar float64) float64 {
	es := SaturationVaporPressure(t)
	ea := es * h / 100.0
	delta := 4098.0 * es / math.Pow(t+satVaporOffset, 2)
	u2 := windSpeed * 4.87 / math.Log(67.8*10.0-5.42)
	rn := solar * solarToNetFactor

	pet := (0.408*delta*rn + psychrometric*900.0/(t+273.0)*u2*(es-ea)) /
		(delta + psychrometric*(1.0+0.34*u2))
	if math.IsNaN(pet) || math.IsInf(pet, 0) {
		return math.Max(0, (t-5.0)*0.2)
	}
	return math.Max(0, pet)
}

// DeriveFeatures computes one FeatureVector per observation using the default
// rolling window. Sequences of any length, including one, are accepted.
func DeriveFeatures(obs []Observation) []FeatureVector {
	return DeriveFeaturesWindow(obs, DefaultRollingWindow)
}

// DeriveFeaturesWindow is DeriveFeatures with an explicit rolling window, clipped
// to the sequence length.
func DeriveFeaturesWindow(obs []Observation, window int) []FeatureVector {
	n := len(obs)
	if n == 0 {
		return []FeatureVector{}
	}
	if window <= 0 {
		window = DefaultRollingWindow
	}
	if window > n {
		window = n
	}

	out := make([]FeatureVector, n)
	temps := make([]float64, n)
	hums := make([]float64, n)
	rains := make([]float64, n)
	press := make([]float64, n)

	for i, o := range obs {
		solar := DefaultSolarRadiation
		if o.SolarRadiation != nil {
			solar = *o.SolarRadiation
		}
		t, h := o.TemperatureC, o.HumidityPct
		temps[i], hums[i], rains[i], press[i] = t, h, o.RainfallMm, o.PressureHpa

		es := SaturationVaporPressure(t)
		ea := es * h / 100.0
		pet := PotentialEvapotranspiration(t, h, o.WindSpeedMS, solar)
		rad := o.WindDirectionDeg * math.Pi / 180.0

		out[i] = FeatureVector{
			Date:                o.Date,
			DayOfYear:           o.Date.YearDay(),
			Month:               int(o.Date.Month()),
			Season:              seasonOf(o.Date.Month()),
			TemperatureC:        t,
			HumidityPct:         h,
			PressureHpa:         o.PressureHpa,
			RainfallMm:          o.RainfallMm,
			WindSpeedMS:         o.WindSpeedMS,
			WindDirectionDeg:    o.WindDirectionDeg,
			SolarRadiation:      solar,
			NDVI:                o.NDVI,
			HeatIndex:           HeatIndex(t, h),
			DewpointC:           Dewpoint(t, h),
			SatVaporPressure:    es,
			ActualVaporPressure: ea,
			VPD:                 es - ea,
			GDD:                 math.Max(0, t-gddBaseTemp),
			HeatStress:          math.Max(0, t-heatStressBase),
			ColdStress:          math.Max(0, coldStressBase-t),
			PET:                 pet,
			WaterBalance:        o.RainfallMm - pet,
			IsRainyDay:          o.RainfallMm > rainyDayMm,
			WindU:               o.WindSpeedMS * math.Cos(rad),
			WindV:               o.WindSpeedMS * math.Sin(rad),
		}
	}

	var cumulative float64
	dry := 0
	for i := range out {
		f := &out[i]
		if finite(f.WaterBalance) {
			cumulative += f.WaterBalance
			f.CumulativeWaterBalance = cumulative
		} else {
			f.CumulativeWaterBalance = math.NaN()
		}

		lo := i - window + 1
		if lo < 0 {
			lo = 0
		}
		f.TempRollingMean = mean(temps[lo : i+1])
		f.TempRollingStd = sampleStd(temps[lo : i+1])
		if math.IsNaN(f.TempRollingStd) {
			f.TempRollingStd = 0
		}
		f.HumidityRollingMean = mean(hums[lo : i+1])
		f.RainfallRollingSum = sum(rains[lo : i+1])

		if i == 0 {
			f.TempChange, f.PressureChange, f.HumidityChange = 0, 0, 0
		} else {
			f.TempChange = temps[i] - temps[i-1]
			f.PressureChange = press[i] - press[i-1]
			f.HumidityChange = hums[i] - hums[i-1]
		}

		f.TempLag1, f.TempLag2 = lag(temps, i, 1), lag(temps, i, 2)
		f.HumidityLag1, f.HumidityLag2 = lag(hums, i, 1), lag(hums, i, 2)
		f.RainfallLag1, f.RainfallLag2 = lag(rains, i, 1), lag(rains, i, 2)
		f.PressureLag1, f.PressureLag2 = lag(press, i, 1), lag(press, i, 2)

		if rains[i] <= rainyDayMm {
			dry++
		} else {
			dry = 0
		}
		f.ConsecutiveDryDays = dry
	}

	sanitize(out)
	return out
}

// sanitize replaces non-finite values column by column: forward fill, then
// backward fill, then zero.
func sanitize(fvs []FeatureVector) {
	if len(fvs) == 0 {
		return
	}
	cols := len(fvs[0].numeric())
	rows := make([][]*float64, len(fvs))
	for i := range fvs {
		rows[i] = fvs[i].numeric()
	}

	column := make([]float64, len(fvs))
	for c := 0; c < cols; c++ {
		for r := range rows {
			column[r] = *rows[r][c]
		}
		FillNonFinite(column)
		for r := range rows {
			*rows[r][c] = column[r]
		}
	}
}

// FillNonFinite applies the fill policy in place to one series.
func FillNonFinite(xs []float64) {
	last := math.NaN()
	for i, v := range xs {
		if finite(v) {
			last = v
			continue
		}
		xs[i] = last
	}
	next := math.NaN()
	for i := len(xs) - 1; i >= 0; i-- {
		if finite(xs[i]) {
			next = xs[i]
			continue
		}
		xs[i] = next
	}
	for i, v := range xs {
		if !finite(v) {
			xs[i] = 0
		}
	}
}

// lag returns xs[i-k], or the first value of the series when history is short.
func lag(xs []float64, i, k int) float64 {
	if i-k < 0 {
		return xs[0]
	}
	return xs[i-k]
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// mean skips non-finite values and is NaN when nothing remains.
func mean(xs []float64) float64 {
	var s float64
	n := 0
	for _, v := range xs {
		if finite(v) {
			s += v
			n++
		}
	}
	if n == 0 {
		return math.NaN()
	}
	return s / float64(n)
}

func sum(xs []float64) float64 {
	var s float64
	for _, v := range xs {
		if finite(v) {
			s += v
		}
	}
	return s
}

// sampleStd is the n-1 standard deviation; NaN below two finite values.
func sampleStd(xs []float64) float64 {
	m := mean(xs)
	var ss float64
	n := 0
	for _, v := range xs {
		if finite(v) {
			ss += (v - m) * (v - m)
			n++
		}
	}
	if n < 2 {
		return math.NaN()
	}
	return math.Sqrt(ss / float64(n-1))
}
