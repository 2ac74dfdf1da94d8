// Package derived computes presentation values from the current snapshot and
// recent history. Every function is pure and never mutates its inputs.
package derived

import (
	"garden-monitor/internal/models"
)

// Trend is a short-window direction indicator.
type Trend string

const (
	TrendUp     Trend = "up"
	TrendDown   Trend = "down"
	TrendStable Trend = "stable"
)

// DefaultTrendWindow is the number of historical values averaged by TrendOf.
const DefaultTrendWindow = 3

// Bands around the historical mean inside which a reading counts as stable.
const (
	trendUpFactor   = 1.02
	trendDownFactor = 0.98
)

// TrendOf compares current against the mean of the last window history values
// of field. It is a noise-tolerant heuristic, not a statistical test: with
// fewer than window entries the result is always stable.
func TrendOf(current float64, history []models.HistoryEntry, field models.Field, window int) Trend {
	if window <= 0 {
		window = DefaultTrendWindow
	}
	if len(history) < window {
		return TrendStable
	}

	var sum float64
	for _, e := range history[len(history)-window:] {
		sum += e.Snapshot.Value(field)
	}
	mean := sum / float64(window)

	switch {
	case current > mean*trendUpFactor:
		return TrendUp
	case current < mean*trendDownFactor:
		return TrendDown
	default:
		return TrendStable
	}
}

// Level is the fill class of a humidity bar.
type Level string

const (
	LevelLow    Level = "level-low"
	LevelMedium Level = "level-medium"
	LevelGood   Level = "level-good"
)

// Thresholds bound the level bands of a gauge.
type Thresholds struct {
	Low    float64
	Medium float64
	Max    float64
}

var (
	AirHumidityThresholds  = Thresholds{Low: 40, Medium: 60, Max: 100}
	SoilHumidityThresholds = Thresholds{Low: 30, Medium: 60, Max: 100}
)

// Gauge is a level class plus bar width in percent.
type Gauge struct {
	Class Level   `json:"class"`
	Width float64 `json:"width"`
}

// LevelOf classifies value against t. Width is value/max*100 and is not
// clamped, so readings above Max yield widths over 100.
func LevelOf(value float64, t Thresholds) Gauge {
	var width float64
	if t.Max != 0 {
		width = value / t.Max * 100
	}

	switch {
	case value < t.Low:
		return Gauge{Class: LevelLow, Width: width}
	case value < t.Medium:
		return Gauge{Class: LevelMedium, Width: width}
	default:
		return Gauge{Class: LevelGood, Width: width}
	}
}

// band is a half-open [.., below) status band; the last band is open-ended.
type band struct {
	below float64
	label string
}

func classify(value float64, bands []band, top string) string {
	for _, b := range bands {
		if value < b.below {
			return b.label
		}
	}
	return top
}

var (
	temperatureBands = []band{{15, "Cold"}, {25, "Ideal"}, {30, "Hot"}}
	soilBands        = []band{{30, "Dry"}, {60, "Adequate"}}
	phBands          = []band{{6.0, "Acidic"}, {7.5, "Neutral-Ideal"}}
)

// TemperatureStatus labels a Celsius reading.
func TemperatureStatus(celsius float64) string {
	return classify(celsius, temperatureBands, "Very Hot")
}

// SoilStatus labels a soil humidity percentage.
func SoilStatus(percent float64) string {
	return classify(percent, soilBands, "Wet")
}

// PHStatus labels a pH reading.
func PHStatus(ph float64) string {
	return classify(ph, phBands, "Alkaline")
}
