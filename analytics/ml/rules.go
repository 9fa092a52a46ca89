package ml

import (
	"fmt"
	"math"
)

// RuleType names a business constraint
type RuleType string

const (
	RuleMinValue           RuleType = "MIN_VALUE"
	RuleMaxValue           RuleType = "MAX_VALUE"
	RuleGrowthLimit        RuleType = "GROWTH_LIMIT"
	RuleSeasonalAdjustment RuleType = "SEASONAL_ADJUSTMENT"
)

// RuleCondition carries the operands of a rule. Which fields apply depends on the rule type.
type RuleCondition struct {
	Value         float64 `json:"value,omitempty"`
	Factor        float64 `json:"factor,omitempty"`
	Months        []int   `json:"months,omitempty" validate:"dive,min=1,max=12"`
	MaxGrowthRate float64 `json:"max_growth_rate,omitempty"`
}

// BusinessRule constrains or adjusts combined predictions
type BusinessRule struct {
	Type      RuleType      `json:"type" validate:"required,oneof=MIN_VALUE MAX_VALUE GROWTH_LIMIT SEASONAL_ADJUSTMENT"`
	Condition RuleCondition `json:"condition"`
	Priority  int           `json:"priority"`
	Enabled   bool          `json:"enabled"`
}

// ApplyRules applies enabled rules in list order. Later rules may re-clamp values
// set by earlier ones. The input slice is not modified.
func ApplyRules(predictions []ForecastPrediction, rules []BusinessRule) ([]ForecastPrediction, []string) {
	out := make([]ForecastPrediction, len(predictions))
	copy(out, predictions)

	var warnings []string
	for _, rule := range rules {
		if !rule.Enabled {
			continue
		}

		switch rule.Type {
		case RuleMinValue:
			for i := range out {
				if out[i].PredictedValue < rule.Condition.Value {
					out[i].PredictedValue = rule.Condition.Value
				}
				reclamp(&out[i])
			}
		case RuleMaxValue:
			for i := range out {
				if out[i].PredictedValue > rule.Condition.Value {
					out[i].PredictedValue = rule.Condition.Value
				}
				reclamp(&out[i])
			}
		case RuleSeasonalAdjustment:
			if rule.Condition.Factor <= 0 {
				warnings = append(warnings, "business rule SEASONAL_ADJUSTMENT ignored: factor must be positive")
				continue
			}
			for i := range out {
				if !containsMonth(rule.Condition.Months, int(out[i].Period.Month())) {
					continue
				}
				out[i].PredictedValue *= rule.Condition.Factor
				out[i].ConfidenceInterval.Lower *= rule.Condition.Factor
				out[i].ConfidenceInterval.Upper *= rule.Condition.Factor
				reclamp(&out[i])
			}
		case RuleGrowthLimit:
			// declared but not enforced
			warnings = append(warnings, "business rule GROWTH_LIMIT is not enforced")
		default:
			warnings = append(warnings, fmt.Sprintf("unknown business rule type %q ignored", rule.Type))
		}
	}
	return out, warnings
}

// reclamp keeps 0 <= lower <= value <= upper after the value moved
func reclamp(p *ForecastPrediction) {
	p.PredictedValue = math.Max(0, p.PredictedValue)
	ci := &p.ConfidenceInterval
	ci.Lower = math.Max(0, math.Min(ci.Lower, p.PredictedValue))
	ci.Upper = math.Max(ci.Upper, p.PredictedValue)
}

func containsMonth(months []int, month int) bool {
	for _, m := range months {
		if m == month {
			return true
		}
	}
	return false
}
