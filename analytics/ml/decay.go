package ml

import (
	"math"

	"forecasting-engine/analytics"
)

const (
	horizonDecayPerPeriod = 0.05
	minHorizonFactor      = 0.3
)

// HorizonFactor is the confidence multiplier for the period at index (0-based)
func HorizonFactor(index int) float64 {
	return math.Max(minHorizonFactor, 1-horizonDecayPerPeriod*float64(index))
}

// VolatilityFactor is the confidence multiplier for a volatility level
func VolatilityFactor(level analytics.VolatilityLevel) float64 {
	switch level {
	case analytics.VolatilityHigh:
		return 0.8
	case analytics.VolatilityMedium:
		return 0.9
	default:
		return 1.0
	}
}

// DecayConfidence lowers confidence and reliability with horizon index and volatility.
// The input slice is not modified.
func DecayConfidence(predictions []ForecastPrediction, volatility analytics.VolatilityLevel) []ForecastPrediction {
	out := make([]ForecastPrediction, len(predictions))
	copy(out, predictions)

	vf := VolatilityFactor(volatility)
	for i := range out {
		factor := HorizonFactor(i) * vf
		out[i].ConfidenceInterval.Confidence = clampUnit(out[i].ConfidenceInterval.Confidence * factor)
		out[i].Reliability = clampUnit(out[i].Reliability * factor)
	}
	return out
}

func clampUnit(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
