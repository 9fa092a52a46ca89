package forecasting

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forecasting-engine/analytics"
	"forecasting-engine/analytics/ml"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *ForecastRequest)
		field   string
		message string
	}{
		{
			name:    "missing target metric",
			mutate:  func(r *ForecastRequest) { r.TargetMetric = "  " },
			field:   "target_metric",
			message: "target metric",
		},
		{
			name:    "missing organization",
			mutate:  func(r *ForecastRequest) { r.Owner.OrganizationID = "" },
			field:   "owner_ids.organization_id",
			message: "organization",
		},
		{
			name:    "missing user",
			mutate:  func(r *ForecastRequest) { r.Owner.UserID = "" },
			field:   "owner_ids.user_id",
			message: "user",
		},
		{
			name:    "too few points",
			mutate:  func(r *ForecastRequest) { r.HistoricalData = r.HistoricalData[:2] },
			field:   "historical_data",
			message: "historical data",
		},
		{
			name:    "non-finite value",
			mutate:  func(r *ForecastRequest) { r.HistoricalData[3].Value = math.NaN() },
			field:   "historical_data",
			message: "non-finite",
		},
		{
			name:    "zero horizon",
			mutate:  func(r *ForecastRequest) { r.ForecastHorizon.Periods = 0 },
			field:   "forecast_horizon.periods",
			message: "positive",
		},
		{
			name:    "horizon beyond unit maximum",
			mutate:  func(r *ForecastRequest) { r.ForecastHorizon.Periods = 37 },
			field:   "forecast_horizon.periods",
			message: "maximum of 36",
		},
		{
			name:    "unknown unit",
			mutate:  func(r *ForecastRequest) { r.ForecastHorizon.Unit = "FORTNIGHT" },
			field:   "forecast_horizon.unit",
			message: "unsupported",
		},
		{
			name: "negative benchmark",
			mutate: func(r *ForecastRequest) {
				r.ContextualData = &ContextualData{Benchmarks: []analytics.DataPoint{{Timestamp: seriesStart, Value: -5}}}
			},
			field:   "contextual_data.benchmarks",
			message: "non-negative",
		},
		{
			name: "out of range growth rate",
			mutate: func(r *ForecastRequest) {
				r.ContextualData = &ContextualData{Economic: &EconomicIndicators{GrowthRate: -3}}
			},
			field:   "contextual_data.economic.growth_rate",
			message: "growth_rate",
		},
		{
			name: "probability above one",
			mutate: func(r *ForecastRequest) {
				r.Preferences.ScenarioProbabilities = map[string]float64{"base": 1.5}
			},
			field:   "preferences.scenario_probabilities",
			message: "[0, 1]",
		},
		{
			name: "unknown scenario",
			mutate: func(r *ForecastRequest) {
				r.Preferences.ScenarioProbabilities = map[string]float64{"apocalyptic": 0.1}
			},
			field:   "preferences.scenario_probabilities",
			message: "unknown scenario",
		},
		{
			name: "unknown algorithm",
			mutate: func(r *ForecastRequest) {
				r.ModelConfiguration.Algorithms = []ml.ForecastAlgorithm{{Name: "NEURAL_NET", Enabled: true}}
			},
			field:   "model_configuration.algorithms",
			message: "NEURAL_NET",
		},
		{
			name: "unknown rule type",
			mutate: func(r *ForecastRequest) {
				r.ModelConfiguration.BusinessRules = []ml.BusinessRule{{Type: "CAP_EVERYTHING", Enabled: true}}
			},
			field:   "ForecastRequest.ModelConfiguration.BusinessRules[0].Type",
			message: "oneof",
		},
		{
			name: "rule month out of range",
			mutate: func(r *ForecastRequest) {
				r.ModelConfiguration.BusinessRules = []ml.BusinessRule{{
					Type:      ml.RuleSeasonalAdjustment,
					Condition: ml.RuleCondition{Factor: 1.1, Months: []int{13}},
					Enabled:   true,
				}}
			},
			field:   "ForecastRequest.ModelConfiguration.BusinessRules[0].Condition.Months[0]",
			message: "max=12",
		},
		{
			name:    "point confidence above one",
			mutate:  func(r *ForecastRequest) { r.HistoricalData[0].Metadata.Confidence = 1.5 },
			field:   "ForecastRequest.HistoricalData[0].Metadata.Confidence",
			message: "lte=1",
		},
		{
			name:    "confidence target above one",
			mutate:  func(r *ForecastRequest) { r.ModelConfiguration.ConfidenceTarget = 2 },
			field:   "ForecastRequest.ModelConfiguration.ConfidenceTarget",
			message: "lte=1",
		},
		{
			name:    "unknown seasonality mode",
			mutate:  func(r *ForecastRequest) { r.ModelConfiguration.SeasonalityMode = "SOMETIMES" },
			field:   "ForecastRequest.ModelConfiguration.SeasonalityMode",
			message: "oneof",
		},
	}

	v := NewValidator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := newRequest(6, scenarioA...)
			tt.mutate(req)

			err := v.Validate(req)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrValidation))

			var ve *ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.field, ve.Field)
			assert.Contains(t, ve.Message, tt.message)
		})
	}
}

func TestValidate_AcceptsValidRequests(t *testing.T) {
	v := NewValidator()

	req := newRequest(36, scenarioA...)
	req.ForecastHorizon.Unit = "months"
	req.ModelConfiguration = ModelConfiguration{
		Algorithms:       []ml.ForecastAlgorithm{{Name: ml.ARIMA, Weight: 1, Enabled: true}},
		ConfidenceTarget: 0.8,
		SeasonalityMode:  SeasonalityAuto,
		BusinessRules: []ml.BusinessRule{
			{Type: ml.RuleMinValue, Condition: ml.RuleCondition{Value: 0}, Enabled: true},
		},
	}
	req.ContextualData = &ContextualData{
		Economic:   &EconomicIndicators{GrowthRate: 0.03, InflationRate: 0.02, InterestRate: 0.05},
		Market:     &MarketConditions{Threats: []string{"new entrant"}},
		Benchmarks: monthly(90, 95, 99),
	}
	req.Preferences.ScenarioProbabilities = map[string]float64{"base": 0.5, "pessimistic": 0}

	assert.NoError(t, v.Validate(req))
	assert.Equal(t, analytics.HorizonUnit("months"), req.ForecastHorizon.Unit)
}

func TestValidate_NilRequest(t *testing.T) {
	err := NewValidator().Validate(nil)
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestFingerprint(t *testing.T) {
	base := newRequest(6, scenarioA...)
	fp := Fingerprint(base)
	assert.Len(t, fp, 64)
	assert.Equal(t, fp, Fingerprint(newRequest(6, scenarioA...)))

	shuffled := newRequest(6, scenarioA...)
	shuffled.HistoricalData[0], shuffled.HistoricalData[11] = shuffled.HistoricalData[11], shuffled.HistoricalData[0]
	assert.Equal(t, fp, Fingerprint(shuffled), "point order must not matter")

	// duplicate timestamps hash the same whichever comes first
	dupFirst := newRequest(6, scenarioA...)
	dupFirst.HistoricalData[3].Timestamp = dupFirst.HistoricalData[2].Timestamp
	dupSecond := newRequest(6, scenarioA...)
	dupSecond.HistoricalData[3].Timestamp = dupSecond.HistoricalData[2].Timestamp
	dupSecond.HistoricalData[2], dupSecond.HistoricalData[3] = dupSecond.HistoricalData[3], dupSecond.HistoricalData[2]
	assert.Equal(t, Fingerprint(dupFirst), Fingerprint(dupSecond))

	lowercase := newRequest(6, scenarioA...)
	lowercase.ForecastHorizon.Unit = "month"
	assert.Equal(t, fp, Fingerprint(lowercase))

	differentID := newRequest(6, scenarioA...)
	differentID.ID = "req-2"
	differentID.Owner.UserID = "user-2"
	assert.Equal(t, fp, Fingerprint(differentID), "request and user ids are not part of the key")

	variants := map[string]func(r *ForecastRequest){
		"metric":       func(r *ForecastRequest) { r.TargetMetric = "expenses" },
		"periods":      func(r *ForecastRequest) { r.ForecastHorizon.Periods = 5 },
		"unit":         func(r *ForecastRequest) { r.ForecastHorizon.Unit = analytics.UnitQuarter },
		"organization": func(r *ForecastRequest) { r.Owner.OrganizationID = "org-2" },
		"value":        func(r *ForecastRequest) { r.HistoricalData[4].Value++ },
		"timestamp":    func(r *ForecastRequest) { r.HistoricalData[4].Timestamp = r.HistoricalData[4].Timestamp.Add(1) },
		"rules": func(r *ForecastRequest) {
			r.ModelConfiguration.BusinessRules = []ml.BusinessRule{{Type: ml.RuleMaxValue, Condition: ml.RuleCondition{Value: 1}, Enabled: true}}
		},
		"preferences": func(r *ForecastRequest) { r.Preferences.IncludeScenarios = true },
	}
	for name, mutate := range variants {
		r := newRequest(6, scenarioA...)
		mutate(r)
		assert.NotEqual(t, fp, Fingerprint(r), name)
	}
}
