package risk

import (
	"fmt"

	"forecasting-engine/analytics/ml"
)

// Scenario names
const (
	ScenarioBase        = "base"
	ScenarioOptimistic  = "optimistic"
	ScenarioPessimistic = "pessimistic"
)

type scenarioPolicy struct {
	name        string
	probability float64
	valueScale  float64
	lowerScale  float64
	upperScale  float64
	assumptions []string
}

var scenarioPolicies = []scenarioPolicy{
	{
		name: ScenarioBase, probability: 0.6, valueScale: 1, lowerScale: 1, upperScale: 1,
		assumptions: []string{"historical patterns continue", "no material change in market conditions"},
	},
	{
		name: ScenarioOptimistic, probability: 0.2, valueScale: 1.2, lowerScale: 1.1, upperScale: 1.3,
		assumptions: []string{"demand outperforms the historical trend", "planned initiatives land on schedule"},
	},
	{
		name: ScenarioPessimistic, probability: 0.2, valueScale: 0.8, lowerScale: 0.7, upperScale: 0.9,
		assumptions: []string{"demand underperforms the historical trend", "identified threats materialize"},
	},
}

// ScenarioImpact summarizes a scenario against the base case
type ScenarioImpact struct {
	TotalValue     float64 `json:"total_value"`
	ChangeFromBase float64 `json:"change_from_base"`
	Description    string  `json:"description"`
}

// ScenarioAnalysis is one named variant of the forecast
type ScenarioAnalysis struct {
	Name        string                  `json:"name"`
	Probability float64                 `json:"probability"`
	Assumptions []string                `json:"assumptions"`
	Predictions []ml.ForecastPrediction `json:"predictions"`
	Impact      ScenarioImpact          `json:"impact"`
}

// DefaultProbabilities returns the scenario probabilities used when none are overridden
func DefaultProbabilities() map[string]float64 {
	probs := make(map[string]float64, len(scenarioPolicies))
	for _, p := range scenarioPolicies {
		probs[p.name] = p.probability
	}
	return probs
}

// BuildScenarios returns exactly three scenarios: base, optimistic and pessimistic.
// overrides replaces the probability of a scenario by name; values outside [0,1] are ignored.
func BuildScenarios(predictions []ml.ForecastPrediction, overrides map[string]float64) []ScenarioAnalysis {
	baseTotal := totalValue(predictions)

	scenarios := make([]ScenarioAnalysis, 0, len(scenarioPolicies))
	for _, policy := range scenarioPolicies {
		probability := policy.probability
		if p, ok := overrides[policy.name]; ok && p >= 0 && p <= 1 {
			probability = p
		}

		scaled := make([]ml.ForecastPrediction, len(predictions))
		for i, pred := range predictions {
			pred.PredictedValue *= policy.valueScale
			pred.ConfidenceInterval.Lower *= policy.lowerScale
			pred.ConfidenceInterval.Upper *= policy.upperScale
			pred.ModelOutputs = nil
			scaled[i] = pred
		}

		total := totalValue(scaled)
		change := 0.0
		if baseTotal != 0 {
			change = (total - baseTotal) / baseTotal
		}

		scenarios = append(scenarios, ScenarioAnalysis{
			Name:        policy.name,
			Probability: probability,
			Assumptions: append([]string(nil), policy.assumptions...),
			Predictions: scaled,
			Impact: ScenarioImpact{
				TotalValue:     total,
				ChangeFromBase: change,
				Description:    fmt.Sprintf("%s case totals %.2f over the horizon (%+.1f%% vs base)", policy.name, total, change*100),
			},
		})
	}
	return scenarios
}

func totalValue(predictions []ml.ForecastPrediction) float64 {
	var sum float64
	for _, p := range predictions {
		sum += p.PredictedValue
	}
	return sum
}
