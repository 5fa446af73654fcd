package risk

import (
	"fmt"
	"sort"
	"strings"
)

// Crop is a supported crop key.
type Crop string

const (
	CropRice   Crop = "rice"
	CropWheat  Crop = "wheat"
	CropPotato Crop = "potato"
	CropJute   Crop = "jute"
	CropCorn   Crop = "corn"
)

// WaterNeeds classifies how much water a crop needs.
type WaterNeeds string

const (
	WaterLow      WaterNeeds = "low"
	WaterModerate WaterNeeds = "moderate"
	WaterHigh     WaterNeeds = "high"
)

// TempRange is an inclusive temperature band in °C.
type TempRange struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// CropProfile holds the thresholds used to score one crop.
type CropProfile struct {
	Crop              Crop       `json:"crop"`
	HeatStressTemp    float64    `json:"heatStressTemp"`
	ColdStressTemp    float64    `json:"coldStressTemp"`
	FloodingThreshold float64    `json:"floodingThresholdMm"`
	DroughtThreshold  float64    `json:"droughtThresholdMmWeek"`
	MinNDVI           float64    `json:"minNdvi"`
	OptimalTemp       TempRange  `json:"optimalTempRange"`
	WaterNeeds        WaterNeeds `json:"waterNeeds"`
}

var profileTable = []CropProfile{
	{Crop: CropRice, HeatStressTemp: 35, ColdStressTemp: 15, FloodingThreshold: 50, DroughtThreshold: 10, MinNDVI: 0.3, OptimalTemp: TempRange{20, 30}, WaterNeeds: WaterHigh},
	{Crop: CropWheat, HeatStressTemp: 32, ColdStressTemp: 5, FloodingThreshold: 40, DroughtThreshold: 15, MinNDVI: 0.4, OptimalTemp: TempRange{15, 25}, WaterNeeds: WaterModerate},
	{Crop: CropPotato, HeatStressTemp: 30, ColdStressTemp: 2, FloodingThreshold: 35, DroughtThreshold: 20, MinNDVI: 0.35, OptimalTemp: TempRange{15, 24}, WaterNeeds: WaterModerate},
	{Crop: CropJute, HeatStressTemp: 38, ColdStressTemp: 18, FloodingThreshold: 60, DroughtThreshold: 25, MinNDVI: 0.4, OptimalTemp: TempRange{24, 35}, WaterNeeds: WaterHigh},
	{Crop: CropCorn, HeatStressTemp: 35, ColdStressTemp: 10, FloodingThreshold: 45, DroughtThreshold: 20, MinNDVI: 0.5, OptimalTemp: TempRange{20, 30}, WaterNeeds: WaterModerate},
}

// Registry is a read-only set of crop profiles. It is safe for concurrent use.
type Registry struct {
	profiles map[Crop]CropProfile
}

// NewRegistry builds a registry from the built-in profile table.
func NewRegistry() *Registry {
	m := make(map[Crop]CropProfile, len(profileTable))
	for _, p := range profileTable {
		m[p.Crop] = p
	}
	return &Registry{profiles: m}
}

// Lookup returns the profile for an exact crop key.
func (r *Registry) Lookup(crop string) (CropProfile, error) {
	p, ok := r.profiles[Crop(crop)]
	if !ok {
		return CropProfile{}, fmt.Errorf("%w: %q (supported: %s)", ErrUnknownCrop, crop, strings.Join(r.Names(), ", "))
	}
	return p, nil
}

// Names lists the supported crop keys in sorted order.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.profiles))
	for c := range r.profiles {
		out = append(out, string(c))
	}
	sort.Strings(out)
	return out
}

// Profiles returns every profile ordered by crop key.
func (r *Registry) Profiles() []CropProfile {
	out := make([]CropProfile, 0, len(r.profiles))
	for _, name := range r.Names() {
		out = append(out, r.profiles[Crop(name)])
	}
	return out
}
