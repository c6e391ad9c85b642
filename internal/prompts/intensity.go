package prompts

// Enhancement percentages accepted by the assistant.
const (
	MinPercent     = 10
	MaxPercent     = 100
	DefaultPercent = 50
)

// Intensity describes how strongly a prompt should be reworked.
type Intensity struct {
	Percent          int
	Level            string
	DetailMultiplier string
	Focus            string
}

// IntensityFor maps a percentage onto an intensity level. Out-of-range
// percentages are clamped to [MinPercent, MaxPercent].
func IntensityFor(percent int) Intensity {
	if percent < MinPercent {
		percent = MinPercent
	}
	if percent > MaxPercent {
		percent = MaxPercent
	}

	switch {
	case percent <= 30:
		return Intensity{percent, "subtle", "1.2-1.5x", "minor adjustments"}
	case percent <= 60:
		return Intensity{percent, "moderate", "1.5-2x", "balanced improvements"}
	case percent <= 80:
		return Intensity{percent, "strong", "2-2.5x", "significant enhancements"}
	default:
		return Intensity{percent, "maximum", "2.5-3x", "major improvements"}
	}
}
