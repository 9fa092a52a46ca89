// Risk factors, sensitivity, early-warning indicators and scenario variants
// derived from combined predictions
package risk

import (
	"fmt"
	"math"

	"forecasting-engine/analytics"
	"forecasting-engine/analytics/ml"
)

const (
	qualityRiskThreshold     = 0.8
	qualityHighRiskThreshold = 0.5
	complexityThreshold      = 3
	complexityMediumCount    = 5
	threatHighCount          = 3
	sensitivityShock         = 0.1
	trendStableBand          = 0.1
)

// Elasticities used by the sensitivity model
var Elasticities = map[string]float64{
	"historical_trend":     1.2,
	"seasonality_strength": 0.8,
	"market_conditions":    0.6,
}

var sensitivityOrder = []string{"historical_trend", "seasonality_strength", "market_conditions"}

// Context is the request-level information the risk engine needs besides predictions and patterns
type Context struct {
	QualityScore        float64
	RequestedAlgorithms int
	MarketThreats       []string
	Values              []float64
}

// RiskFactor is one condition that lowers trust in the forecast
type RiskFactor struct {
	Name        string       `json:"name"`
	Category    string       `json:"category"`
	Impact      ml.RiskLevel `json:"impact"`
	Probability float64      `json:"probability"`
	Description string       `json:"description"`
	Mitigation  string       `json:"mitigation"`
}

// ImpactRange is the forecast value under a negative and positive shock
type ImpactRange struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// SensitivityResult reports how strongly the forecast reacts to a driver
type SensitivityResult struct {
	Variable    string      `json:"variable"`
	Elasticity  float64     `json:"elasticity"`
	BaseValue   float64     `json:"base_value"`
	Shock       float64     `json:"shock"`
	ImpactRange ImpactRange `json:"impact_range"`
}

// Status is the traffic-light state of an early-warning indicator
type Status string

const (
	StatusGreen  Status = "GREEN"
	StatusYellow Status = "YELLOW"
	StatusRed    Status = "RED"
)

// Direction is the recent movement of an indicator
type Direction string

const (
	DirectionImproving     Direction = "IMPROVING"
	DirectionStable        Direction = "STABLE"
	DirectionDeteriorating Direction = "DETERIORATING"
)

// EarlyWarning compares a monitored value against yellow and red thresholds
type EarlyWarning struct {
	Indicator       string    `json:"indicator"`
	CurrentValue    float64   `json:"current_value"`
	YellowThreshold float64   `json:"yellow_threshold"`
	RedThreshold    float64   `json:"red_threshold"`
	Status          Status    `json:"status"`
	Trend           Direction `json:"trend"`
}

// Assessment is the complete risk picture of one forecast
type Assessment struct {
	OverallRisk   ml.RiskLevel        `json:"overall_risk"`
	Factors       []RiskFactor        `json:"factors"`
	Sensitivity   []SensitivityResult `json:"sensitivity"`
	EarlyWarnings []EarlyWarning      `json:"early_warnings"`
}

// AssessRisk derives risk factors, sensitivity and early warnings
func AssessRisk(predictions []ml.ForecastPrediction, patterns analytics.HistoricalPatterns, rc Context) Assessment {
	factors := riskFactors(patterns, rc)
	return Assessment{
		OverallRisk:   overallRisk(factors),
		Factors:       factors,
		Sensitivity:   sensitivity(predictions),
		EarlyWarnings: earlyWarnings(predictions, patterns, rc),
	}
}

func riskFactors(patterns analytics.HistoricalPatterns, rc Context) []RiskFactor {
	factors := []RiskFactor{}

	if rc.QualityScore < qualityRiskThreshold {
		impact := ml.RiskMedium
		if rc.QualityScore < qualityHighRiskThreshold {
			impact = ml.RiskHigh
		}
		factors = append(factors, RiskFactor{
			Name:        "data_quality",
			Category:    "DATA",
			Impact:      impact,
			Probability: clampUnit(1 - rc.QualityScore),
			Description: fmt.Sprintf("historical data quality score %.2f is below %.2f", rc.QualityScore, qualityRiskThreshold),
			Mitigation:  "supply a longer, gap-free history and review excluded outliers",
		})
	}

	if patterns.Volatility.Level == analytics.VolatilityHigh {
		factors = append(factors, RiskFactor{
			Name:        "volatility",
			Category:    "MARKET",
			Impact:      ml.RiskHigh,
			Probability: clampUnit(patterns.Volatility.Coefficient),
			Description: fmt.Sprintf("coefficient of variation %.2f indicates a highly volatile series", patterns.Volatility.Coefficient),
			Mitigation:  "plan against the pessimistic scenario and shorten the horizon",
		})
	}

	if rc.RequestedAlgorithms > complexityThreshold {
		impact := ml.RiskLow
		if rc.RequestedAlgorithms >= complexityMediumCount {
			impact = ml.RiskMedium
		}
		factors = append(factors, RiskFactor{
			Name:        "model_complexity",
			Category:    "MODEL",
			Impact:      impact,
			Probability: 0.3,
			Description: fmt.Sprintf("%d algorithms requested; blended output is harder to explain", rc.RequestedAlgorithms),
			Mitigation:  "compare the per-model outputs before acting on the blend",
		})
	}

	if n := len(rc.MarketThreats); n > 0 {
		impact := ml.RiskMedium
		if n >= threatHighCount {
			impact = ml.RiskHigh
		}
		factors = append(factors, RiskFactor{
			Name:        "external_threats",
			Category:    "EXTERNAL",
			Impact:      impact,
			Probability: clampUnit(0.2 * float64(n)),
			Description: fmt.Sprintf("%d market threat(s) reported", n),
			Mitigation:  "monitor the listed threats and revisit the forecast when they materialize",
		})
	}

	return factors
}

func overallRisk(factors []RiskFactor) ml.RiskLevel {
	high := 0
	for _, f := range factors {
		if f.Impact == ml.RiskHigh {
			high++
		}
	}
	switch {
	case high >= 2:
		return ml.RiskHigh
	case high == 1:
		return ml.RiskMedium
	default:
		return ml.RiskLow
	}
}

func sensitivity(predictions []ml.ForecastPrediction) []SensitivityResult {
	base := meanValue(predictions)

	results := make([]SensitivityResult, 0, len(sensitivityOrder))
	for _, name := range sensitivityOrder {
		e := Elasticities[name]
		delta := base * e * sensitivityShock
		results = append(results, SensitivityResult{
			Variable:    name,
			Elasticity:  e,
			BaseValue:   base,
			Shock:       sensitivityShock,
			ImpactRange: ImpactRange{Low: math.Max(0, base-delta), High: base + delta},
		})
	}
	return results
}

func earlyWarnings(predictions []ml.ForecastPrediction, patterns analytics.HistoricalPatterns, rc Context) []EarlyWarning {
	return []EarlyWarning{
		lowerIsWorse("forecast_confidence", meanConfidence(predictions), 0.7, 0.5, confidenceDirection(predictions)),
		higherIsWorse("volatility", patterns.Volatility.Coefficient, 0.1, 0.3, volatilityDirection(rc.Values)),
		lowerIsWorse("data_quality", rc.QualityScore, 0.8, 0.5, DirectionStable),
	}
}

func lowerIsWorse(name string, current, yellow, red float64, trend Direction) EarlyWarning {
	status := StatusGreen
	switch {
	case current < red:
		status = StatusRed
	case current < yellow:
		status = StatusYellow
	}
	return EarlyWarning{Indicator: name, CurrentValue: current, YellowThreshold: yellow, RedThreshold: red, Status: status, Trend: trend}
}

func higherIsWorse(name string, current, yellow, red float64, trend Direction) EarlyWarning {
	status := StatusGreen
	switch {
	case current > red:
		status = StatusRed
	case current > yellow:
		status = StatusYellow
	}
	return EarlyWarning{Indicator: name, CurrentValue: current, YellowThreshold: yellow, RedThreshold: red, Status: status, Trend: trend}
}

// confidenceDirection compares the last period's confidence to the first
func confidenceDirection(predictions []ml.ForecastPrediction) Direction {
	if len(predictions) < 2 {
		return DirectionStable
	}
	first := predictions[0].ConfidenceInterval.Confidence
	last := predictions[len(predictions)-1].ConfidenceInterval.Confidence
	return compare(last, first, true)
}

// volatilityDirection compares dispersion of the final quarter to the full series
func volatilityDirection(values []float64) Direction {
	if len(values) < 8 {
		return DirectionStable
	}
	recent := values[len(values)-len(values)/4:]
	return compare(coefficientOfVariation(recent), coefficientOfVariation(values), false)
}

func compare(current, reference float64, higherIsBetter bool) Direction {
	if reference == 0 {
		if current == 0 {
			return DirectionStable
		}
		reference = math.SmallestNonzeroFloat64
	}
	change := (current - reference) / math.Abs(reference)
	if math.Abs(change) <= trendStableBand {
		return DirectionStable
	}
	if (change > 0) == higherIsBetter {
		return DirectionImproving
	}
	return DirectionDeteriorating
}

func coefficientOfVariation(values []float64) float64 {
	mean := analytics.Mean(values)
	if mean == 0 {
		return 0
	}
	return analytics.PopStdDev(values) / math.Abs(mean)
}

func meanValue(predictions []ml.ForecastPrediction) float64 {
	if len(predictions) == 0 {
		return 0
	}
	var sum float64
	for _, p := range predictions {
		sum += p.PredictedValue
	}
	return sum / float64(len(predictions))
}

func meanConfidence(predictions []ml.ForecastPrediction) float64 {
	if len(predictions) == 0 {
		return 0
	}
	var sum float64
	for _, p := range predictions {
		sum += p.ConfidenceInterval.Confidence
	}
	return sum / float64(len(predictions))
}

func clampUnit(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
