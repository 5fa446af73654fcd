package risk

import "fmt"

// MaxRecommendations caps the recommendation list.
const MaxRecommendations = 4

var alertRecommendations = map[AlertKind][]string{
	AlertFlooding: {
		"💧 Improve drainage systems and avoid low-lying fields",
		"🚜 Delay harvesting if crops are nearly mature",
	},
	AlertHeavyRainfall: {
		"💧 Improve drainage systems and avoid low-lying fields",
		"🚜 Delay harvesting if crops are nearly mature",
	},
	AlertHeatStress: {
		"🌾 Increase irrigation frequency during hot periods",
		"⏰ Schedule field work for early morning or evening",
	},
	AlertColdStress: {
		"🔥 Consider protective covering for sensitive crops",
		"⚡ Monitor for frost warnings and take preventive action",
	},
	AlertDrought: {
		"💦 Implement water conservation techniques",
		"🌱 Consider drought-resistant crop varieties for next season",
	},
	AlertVegetationStress: {
		"🧪 Check soil nutrients and consider fertilization",
		"🐛 Inspect for pests and diseases affecting plant health",
	},
}

var levelRecommendations = map[Level][]string{
	LevelHigh: {
		"📱 Monitor weather updates daily and be ready to act quickly",
		"👥 Consult with local agricultural extension services",
	},
	LevelMedium: {
		"📊 Keep detailed records of field conditions",
		"🤝 Share experiences with fellow farmers in your community",
	},
}

var quietRecommendations = []string{
	"✅ Continue current farming practices",
	"📈 Good time to plan for next season improvements",
}

// StatusColor maps a level to the display color used by clients.
func StatusColor(l Level) string {
	switch l {
	case LevelHigh:
		return "#dc3545"
	case LevelMedium:
		return "#ffc107"
	default:
		return "#28a745"
	}
}

// Synthesis is the rendered, human-facing part of an assessment.
type Synthesis struct {
	Level           Level
	Alerts          []Alert
	Summary         string
	Recommendations []string
}

// Messages returns the alert texts in order.
func (s Synthesis) Messages() []string {
	out := make([]string, len(s.Alerts))
	for i, a := range s.Alerts {
		out[i] = a.Message
	}
	return out
}

// Synthesize merges category alerts in fixed order and renders the summary and
// recommendations.
func Synthesize(cats Categories, crop Crop, period Period) Synthesis {
	var alerts []Alert
	for _, c := range cats.Ordered() {
		alerts = append(alerts, c.Alerts...)
	}
	if alerts == nil {
		alerts = []Alert{}
	}

	level := cats.Overall()
	return Synthesis{
		Level:           level,
		Alerts:          alerts,
		Summary:         Summary(crop, period, level, len(alerts)),
		Recommendations: Recommendations(alerts, level),
	}
}

// Recommendations maps alert kinds to actions, appends the level-general advice,
// removes duplicates keeping the first occurrence and truncates the list.
func Recommendations(alerts []Alert, level Level) []string {
	var recs []string
	for _, a := range alerts {
		recs = append(recs, alertRecommendations[a.Kind]...)
	}
	if general, ok := levelRecommendations[level]; ok {
		recs = append(recs, general...)
	} else if len(recs) == 0 {
		recs = append(recs, quietRecommendations...)
	}

	seen := make(map[string]struct{}, len(recs))
	out := make([]string, 0, MaxRecommendations)
	for _, r := range recs {
		if _, dup := seen[r]; dup {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
		if len(out) == MaxRecommendations {
			break
		}
	}
	return out
}

// Summary renders the one-sentence verdict.
func Summary(crop Crop, period Period, level Level, n int) string {
	label := period.Label()
	if n == 0 {
		return fmt.Sprintf("✅ Good news! No major risks detected for %s during %s. Conditions look favorable for your crop.", crop, label)
	}
	switch level {
	case LevelHigh:
		return fmt.Sprintf("🚨 High risk alert for %s during %s. %d critical %s detected. Immediate attention recommended.",
			crop, label, n, plural(n, "issue"))
	case LevelMedium:
		return fmt.Sprintf("⚠️ Moderate risks identified for %s during %s. %d %s to monitor. Take precautionary measures.",
			crop, label, n, plural(n, "concern"))
	default:
		return fmt.Sprintf("🌱 Minor concerns for %s during %s. %d %s to watch. Overall conditions are manageable.",
			crop, label, n, plural(n, "item"))
	}
}

func plural(n int, word string) string {
	if n > 1 {
		return word + "s"
	}
	return word
}
