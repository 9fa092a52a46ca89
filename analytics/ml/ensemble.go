package ml

import (
	"math"
	"time"

	"forecasting-engine/analytics"
)

// RiskLevel grades how far a prediction can be trusted
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

const (
	intervalZ          = 1.96
	combinedConfidence = 0.95
	// NaiveConfidence is used when a series has no variance to model
	NaiveConfidence      = 0.5
	externalFactorWeight = 0.1
	highRiskWidth        = 0.5
	mediumRiskWidth      = 0.2
)

// ConfidenceInterval bounds a predicted value
type ConfidenceInterval struct {
	Lower      float64 `json:"lower"`
	Upper      float64 `json:"upper"`
	Confidence float64 `json:"confidence"`
}

// ContributingFactors are the relative shares attributed to each driver, summing to 1
type ContributingFactors struct {
	Trend           float64 `json:"trend"`
	Seasonality     float64 `json:"seasonality"`
	ExternalFactors float64 `json:"external_factors"`
	RandomVariation float64 `json:"random_variation"`
}

// ForecastPrediction is the combined forecast for one period
type ForecastPrediction struct {
	Period              time.Time           `json:"period"`
	PredictedValue      float64             `json:"predicted_value"`
	ConfidenceInterval  ConfidenceInterval  `json:"confidence_interval"`
	ContributingFactors ContributingFactors `json:"contributing_factors"`
	RiskLevel           RiskLevel           `json:"risk_level"`
	Reliability         float64             `json:"reliability"`
	ModelOutputs        []Output            `json:"model_outputs,omitempty"`
}

// Weights returns each model's ensemble weight, (1 - mape) normalized to sum to 1
func Weights(models []ForecastModel) map[Algorithm]float64 {
	weights := make(map[Algorithm]float64, len(models))
	var total float64
	for _, m := range models {
		w := math.Max(0, 1-m.Accuracy.MAPE)
		weights[m.Algorithm] = w
		total += w
	}

	for name := range weights {
		if total > 0 {
			weights[name] /= total
		} else {
			weights[name] = 1 / float64(len(models))
		}
	}
	return weights
}

// Combiner merges per-model outputs into one prediction per period
type Combiner struct {
	weights map[Algorithm]float64
	factors ContributingFactors
}

// NewCombiner prepares accuracy weights and the factor attribution for a run.
// external marks that the request carried market or economic signals.
func NewCombiner(models []ForecastModel, patterns analytics.HistoricalPatterns, series []float64, external bool) *Combiner {
	return &Combiner{
		weights: Weights(models),
		factors: attributeFactors(patterns, series, external),
	}
}

// Combine produces the weighted prediction with a 95% interval across model outputs
func (c *Combiner) Combine(period time.Time, outputs []Output) ForecastPrediction {
	values := make([]float64, len(outputs))
	var value, reliability, total float64
	for i, out := range outputs {
		values[i] = out.Value
		w := c.weights[out.Algorithm]
		value += w * out.Value
		reliability += w * out.Confidence
		total += w
	}
	if total > 0 {
		value /= total
		reliability /= total
	} else if len(outputs) > 0 {
		value = analytics.Mean(values)
	}

	spread := intervalZ * analytics.StdError(values)
	interval := ConfidenceInterval{
		Lower:      math.Max(0, value-spread),
		Upper:      value + spread,
		Confidence: combinedConfidence,
	}

	return ForecastPrediction{
		Period:              period,
		PredictedValue:      value,
		ConfidenceInterval:  interval,
		ContributingFactors: c.factors,
		RiskLevel:           riskFromWidth(value, interval),
		Reliability:         math.Min(1, reliability),
		ModelOutputs:        outputs,
	}
}

// Naive carries the last observed value forward with capped confidence
func (c *Combiner) Naive(period time.Time, last float64) ForecastPrediction {
	value := math.Max(0, last)
	interval := ConfidenceInterval{Lower: value, Upper: value, Confidence: NaiveConfidence}
	return ForecastPrediction{
		Period:              period,
		PredictedValue:      value,
		ConfidenceInterval:  interval,
		ContributingFactors: c.factors,
		RiskLevel:           riskFromWidth(value, interval),
		Reliability:         NaiveConfidence,
	}
}

func riskFromWidth(value float64, interval ConfidenceInterval) RiskLevel {
	width := interval.Upper - interval.Lower
	if value == 0 {
		if width > 0 {
			return RiskHigh
		}
		return RiskLow
	}

	relative := width / math.Abs(value)
	switch {
	case relative > highRiskWidth:
		return RiskHigh
	case relative > mediumRiskWidth:
		return RiskMedium
	default:
		return RiskLow
	}
}

func attributeFactors(patterns analytics.HistoricalPatterns, series []float64, external bool) ContributingFactors {
	var f ContributingFactors

	if mean := analytics.Mean(series); mean != 0 {
		f.Trend = math.Min(1, math.Abs(patterns.Trend.Slope)*float64(len(series))/math.Abs(mean))
	}
	if patterns.Seasonality.Detected {
		f.Seasonality = patterns.Seasonality.Strength
	}
	if external {
		f.ExternalFactors = externalFactorWeight
	}
	f.RandomVariation = math.Min(1, patterns.Volatility.Coefficient)

	total := f.Trend + f.Seasonality + f.ExternalFactors + f.RandomVariation
	if total == 0 {
		return ContributingFactors{RandomVariation: 1}
	}
	f.Trend /= total
	f.Seasonality /= total
	f.ExternalFactors /= total
	f.RandomVariation /= total
	return f
}
