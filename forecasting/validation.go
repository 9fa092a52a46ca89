package forecasting

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/go-playground/validator/v10"

	"forecasting-engine/analytics"
	"forecasting-engine/analytics/ml"
	"forecasting-engine/analytics/risk"
)

const maxEconomicRate = 10.0

var knownAlgorithms = func() map[ml.Algorithm]bool {
	m := make(map[ml.Algorithm]bool, len(ml.Algorithms))
	for _, a := range ml.Algorithms {
		m[a] = true
	}
	return m
}()

// Validator checks requests before any pipeline stage runs
type Validator struct {
	structural *validator.Validate
}

// NewValidator creates a request validator
func NewValidator() *Validator {
	return &Validator{structural: validator.New()}
}

// Validate returns the first violated constraint as a *ValidationError. The request is not modified.
func (v *Validator) Validate(req *ForecastRequest) error {
	if req == nil {
		return invalid("request", "request is required")
	}
	if strings.TrimSpace(req.TargetMetric) == "" {
		return invalid("target_metric", "target metric is required")
	}
	if strings.TrimSpace(req.Owner.OrganizationID) == "" {
		return invalid("owner_ids.organization_id", "organization id is required")
	}
	if strings.TrimSpace(req.Owner.UserID) == "" {
		return invalid("owner_ids.user_id", "user id is required")
	}

	if n := len(req.HistoricalData); n < analytics.MinimumPoints {
		return invalid("historical_data", "historical data must contain at least %d points, got %d", analytics.MinimumPoints, n)
	}
	for i, p := range req.HistoricalData {
		if p.Timestamp.IsZero() {
			return invalid("historical_data", "historical data point %d has no timestamp", i)
		}
		if !finite(p.Value) {
			return invalid("historical_data", "historical data point %d has a non-finite value", i)
		}
	}

	if err := validateHorizon(req.ForecastHorizon); err != nil {
		return err
	}
	if err := validateModels(req.ModelConfiguration); err != nil {
		return err
	}
	if err := validateContext(req.ContextualData); err != nil {
		return err
	}
	for name, p := range req.Preferences.ScenarioProbabilities {
		if _, ok := risk.DefaultProbabilities()[name]; !ok {
			return invalid("preferences.scenario_probabilities", "unknown scenario %q", name)
		}
		if !finite(p) || p < 0 || p > 1 {
			return invalid("preferences.scenario_probabilities", "probability for %s must be within [0, 1], got %v", name, p)
		}
	}

	return v.structuralCheck(req)
}

func validateHorizon(h ForecastHorizon) error {
	if h.Periods <= 0 {
		return invalid("forecast_horizon.periods", "forecast horizon must be positive, got %d", h.Periods)
	}
	unit, err := analytics.ParseUnit(string(h.Unit))
	if err != nil {
		return invalid("forecast_horizon.unit", "%v", err)
	}
	policy, _ := analytics.PolicyFor(unit)
	if h.Periods > policy.MaxHorizon {
		return invalid("forecast_horizon.periods", "forecast horizon %d exceeds the maximum of %d for unit %s", h.Periods, policy.MaxHorizon, unit)
	}
	return nil
}

func validateModels(mc ModelConfiguration) error {
	for _, a := range mc.Algorithms {
		if !knownAlgorithms[a.Name] {
			return invalid("model_configuration.algorithms", "unsupported algorithm %q", a.Name)
		}
		for key, value := range a.Parameters {
			if !finite(value) {
				return invalid("model_configuration.algorithms", "parameter %s of %s is not finite", key, a.Name)
			}
		}
	}
	if !finite(mc.ConfidenceTarget) {
		return invalid("model_configuration.confidence_target", "confidence target is not finite")
	}
	for i, rule := range mc.BusinessRules {
		c := rule.Condition
		if !finite(c.Value) || !finite(c.Factor) || !finite(c.MaxGrowthRate) {
			return invalid("model_configuration.business_rules", "rule %d has a non-finite condition", i)
		}
		if rule.Type == ml.RuleSeasonalAdjustment && c.Factor < 0 {
			return invalid("model_configuration.business_rules", "rule %d has a negative seasonal factor", i)
		}
	}
	return nil
}

func validateContext(c *ContextualData) error {
	if c == nil {
		return nil
	}
	for i, p := range c.Benchmarks {
		if !finite(p.Value) || p.Value < 0 {
			return invalid("contextual_data.benchmarks", "benchmark point %d must be a non-negative number, got %v", i, p.Value)
		}
	}
	if e := c.Economic; e != nil {
		rates := []struct {
			name  string
			value float64
		}{
			{"growth_rate", e.GrowthRate},
			{"inflation_rate", e.InflationRate},
			{"interest_rate", e.InterestRate},
		}
		for _, r := range rates {
			if !finite(r.value) || r.value < -1 || r.value > maxEconomicRate {
				return invalid("contextual_data.economic."+r.name, "%s must be within [-1, %g], got %v", r.name, maxEconomicRate, r.value)
			}
		}
	}
	return nil
}

func (v *Validator) structuralCheck(req *ForecastRequest) error {
	err := v.structural.Struct(req)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return invalid(fe.Namespace(), "failed %s", constraint(fe))
	}
	return invalid("request", "%v", err)
}

func constraint(fe validator.FieldError) string {
	if fe.Param() == "" {
		return fe.Tag()
	}
	return fmt.Sprintf("%s=%s", fe.Tag(), fe.Param())
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
