// Forecast orchestration: request validation, fingerprinting, result caching
// with single-flight, and sequencing of the analysis stages
package forecasting

import (
	"forecasting-engine/analytics"
	"forecasting-engine/analytics/ml"
)

// SeasonalityMode controls whether detected seasonality feeds model selection
type SeasonalityMode string

const (
	SeasonalityAuto SeasonalityMode = "AUTO"
	SeasonalityNone SeasonalityMode = "NONE"
)

// ForecastRequest is created by the caller and never modified by the engine
type ForecastRequest struct {
	ID                 string                `json:"id,omitempty"`
	Owner              OwnerIDs              `json:"owner_ids"`
	TargetMetric       string                `json:"target_metric"`
	HistoricalData     []analytics.DataPoint `json:"historical_data" validate:"dive"`
	ForecastHorizon    ForecastHorizon       `json:"forecast_horizon"`
	ModelConfiguration ModelConfiguration    `json:"model_configuration"`
	ContextualData     *ContextualData       `json:"contextual_data,omitempty"`
	Preferences        Preferences           `json:"preferences"`
}

// OwnerIDs identify the tenant and user the forecast belongs to
type OwnerIDs struct {
	OrganizationID string `json:"organization_id" validate:"required"`
	UserID         string `json:"user_id" validate:"required"`
}

// ForecastHorizon is how far ahead to forecast
type ForecastHorizon struct {
	Periods int                   `json:"periods" validate:"gt=0"`
	Unit    analytics.HorizonUnit `json:"unit" validate:"required"`
}

// ModelConfiguration selects and constrains the models
type ModelConfiguration struct {
	Algorithms       []ml.ForecastAlgorithm `json:"algorithms,omitempty" validate:"dive"`
	ConfidenceTarget float64                `json:"confidence_target,omitempty" validate:"gte=0,lte=1"`
	SeasonalityMode  SeasonalityMode        `json:"seasonality_mode,omitempty" validate:"omitempty,oneof=AUTO NONE"`
	BusinessRules    []ml.BusinessRule      `json:"business_rules,omitempty" validate:"dive"`
}

// ContextualData carries optional signals from outside the series
type ContextualData struct {
	Economic   *EconomicIndicators   `json:"economic,omitempty"`
	Market     *MarketConditions     `json:"market,omitempty"`
	Business   *BusinessContext      `json:"business,omitempty"`
	Benchmarks []analytics.DataPoint `json:"benchmarks,omitempty" validate:"dive"`
}

// EconomicIndicators are macro rates expressed as fractions (0.03 = 3%)
type EconomicIndicators struct {
	GrowthRate    float64 `json:"growth_rate"`
	InflationRate float64 `json:"inflation_rate"`
	InterestRate  float64 `json:"interest_rate"`
}

// MarketConditions lists qualitative market signals
type MarketConditions struct {
	Threats       []string `json:"threats,omitempty"`
	Opportunities []string `json:"opportunities,omitempty"`
}

// BusinessContext describes the firm's own plans
type BusinessContext struct {
	PlannedInitiatives []string `json:"planned_initiatives,omitempty"`
}

// Preferences shape the optional parts of the result
type Preferences struct {
	IncludeScenarios      bool               `json:"include_scenarios"`
	IncludeInsights       bool               `json:"include_insights"`
	IncludeModelOutputs   bool               `json:"include_model_outputs"`
	ScenarioProbabilities map[string]float64 `json:"scenario_probabilities,omitempty"`
}

func (r *ForecastRequest) marketThreats() []string {
	if r.ContextualData == nil || r.ContextualData.Market == nil {
		return nil
	}
	return r.ContextualData.Market.Threats
}

func (r *ForecastRequest) marketOpportunities() []string {
	if r.ContextualData == nil || r.ContextualData.Market == nil {
		return nil
	}
	return r.ContextualData.Market.Opportunities
}

func (r *ForecastRequest) plannedInitiatives() []string {
	if r.ContextualData == nil || r.ContextualData.Business == nil {
		return nil
	}
	return r.ContextualData.Business.PlannedInitiatives
}

// hasExternalSignals reports whether market or economic data accompany the series
func (r *ForecastRequest) hasExternalSignals() bool {
	if r.ContextualData == nil {
		return false
	}
	c := r.ContextualData
	return c.Economic != nil || len(r.marketThreats()) > 0 || len(r.marketOpportunities()) > 0
}
