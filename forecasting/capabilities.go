package forecasting

import (
	"forecasting-engine/analytics"
	"forecasting-engine/analytics/ml"
)

// AlgorithmCapability describes one registered model
type AlgorithmCapability struct {
	Name     ml.Algorithm `json:"name"`
	Active   bool         `json:"active"`
	Accuracy ml.Accuracy  `json:"accuracy"`
}

// Capabilities lists what the engine can forecast and within which limits
type Capabilities struct {
	SupportedMetrics     []string                      `json:"supported_metrics"`
	Algorithms           []AlgorithmCapability         `json:"algorithms"`
	MaxHorizon           map[analytics.HorizonUnit]int `json:"max_horizon"`
	MinimumDataPoints    map[analytics.HorizonUnit]int `json:"minimum_data_points"`
	SupportedFrequencies []analytics.HorizonUnit       `json:"supported_frequencies"`
	BusinessRuleTypes    []ml.RuleType                 `json:"business_rule_types"`
	CacheTTLSeconds      int64                         `json:"cache_ttl_seconds"`
}

// GetForecastingCapabilities reports supported metrics, algorithms and per-unit limits
func (e *Engine) GetForecastingCapabilities() Capabilities {
	caps := Capabilities{
		SupportedMetrics:     append([]string(nil), e.options.SupportedMetrics...),
		MaxHorizon:           make(map[analytics.HorizonUnit]int, len(analytics.SupportedUnits)),
		MinimumDataPoints:    make(map[analytics.HorizonUnit]int, len(analytics.SupportedUnits)),
		SupportedFrequencies: append([]analytics.HorizonUnit(nil), analytics.SupportedUnits...),
		BusinessRuleTypes:    []ml.RuleType{ml.RuleMinValue, ml.RuleMaxValue, ml.RuleGrowthLimit, ml.RuleSeasonalAdjustment},
		CacheTTLSeconds:      int64(e.options.CacheTTL.Seconds()),
	}

	for _, unit := range analytics.SupportedUnits {
		policy, _ := analytics.PolicyFor(unit)
		caps.MaxHorizon[unit] = policy.MaxHorizon
		caps.MinimumDataPoints[unit] = policy.MinimumDataPoints
	}

	for _, name := range e.registry.Names() {
		m, ok := e.registry.Get(name)
		if !ok {
			continue
		}
		caps.Algorithms = append(caps.Algorithms, AlgorithmCapability{
			Name:     m.Algorithm,
			Active:   m.IsActive,
			Accuracy: m.Accuracy,
		})
	}
	return caps
}
