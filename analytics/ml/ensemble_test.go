package ml

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forecasting-engine/analytics"
)

func TestWeights(t *testing.T) {
	r := NewRegistry()
	weights := Weights(r.Active())

	var total float64
	for _, w := range weights {
		total += w
	}
	assert.InDelta(t, 1.0, total, 1e-9)
	assert.Greater(t, weights[Ensemble], weights[LinearRegression], "lower MAPE should earn more weight")

	equal := Weights([]ForecastModel{
		{Algorithm: LinearRegression, Accuracy: Accuracy{MAPE: 1}},
		{Algorithm: ARIMA, Accuracy: Accuracy{MAPE: 1.5}},
	})
	assert.Equal(t, 0.5, equal[LinearRegression])
	assert.Equal(t, 0.5, equal[ARIMA])
}

func TestCombiner_Combine(t *testing.T) {
	models := []ForecastModel{
		{Algorithm: LinearRegression, Accuracy: Accuracy{MAPE: 0.2}},
		{Algorithm: ARIMA, Accuracy: Accuracy{MAPE: 0.2}},
	}
	patterns := analytics.HistoricalPatterns{Volatility: analytics.Volatility{Level: analytics.VolatilityLow, Coefficient: 0.05}}
	c := NewCombiner(models, patterns, []float64{100, 100, 100}, false)

	period := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	pred := c.Combine(period, []Output{
		{Algorithm: LinearRegression, Value: 100, Confidence: 0.9},
		{Algorithm: ARIMA, Value: 110, Confidence: 0.75},
	})

	assert.Equal(t, period, pred.Period)
	assert.InDelta(t, 105, pred.PredictedValue, 1e-9)
	assert.Equal(t, 0.95, pred.ConfidenceInterval.Confidence)

	// stdError of {100, 110} is 5
	assert.InDelta(t, 105-1.96*5, pred.ConfidenceInterval.Lower, 1e-9)
	assert.InDelta(t, 105+1.96*5, pred.ConfidenceInterval.Upper, 1e-9)
	assert.InDelta(t, 0.825, pred.Reliability, 1e-9)
	assert.Len(t, pred.ModelOutputs, 2)

	f := pred.ContributingFactors
	assert.InDelta(t, 1.0, f.Trend+f.Seasonality+f.ExternalFactors+f.RandomVariation, 1e-9)
}

func TestCombiner_IntervalStaysNonNegative(t *testing.T) {
	models := []ForecastModel{{Algorithm: LinearRegression}, {Algorithm: ARIMA}}
	c := NewCombiner(models, analytics.HistoricalPatterns{}, []float64{1, 2, 3}, true)

	pred := c.Combine(time.Now(), []Output{
		{Algorithm: LinearRegression, Value: 0},
		{Algorithm: ARIMA, Value: 10},
	})
	assert.Equal(t, 0.0, pred.ConfidenceInterval.Lower)
	assert.LessOrEqual(t, pred.ConfidenceInterval.Lower, pred.PredictedValue)
	assert.GreaterOrEqual(t, pred.ConfidenceInterval.Upper, pred.PredictedValue)
	assert.Equal(t, RiskHigh, pred.RiskLevel)
	assert.Greater(t, pred.ContributingFactors.ExternalFactors, 0.0)
}

func TestCombiner_Naive(t *testing.T) {
	c := NewCombiner(nil, analytics.HistoricalPatterns{}, []float64{100000, 100000, 100000}, false)
	pred := c.Naive(time.Now(), 100000)

	assert.Equal(t, 100000.0, pred.PredictedValue)
	assert.Less(t, pred.ConfidenceInterval.Confidence, 0.6)
	assert.Equal(t, RiskLow, pred.RiskLevel)
	assert.Equal(t, ContributingFactors{RandomVariation: 1}, pred.ContributingFactors)
}

func TestApplyRules_MinMax(t *testing.T) {
	preds := []ForecastPrediction{
		{PredictedValue: 50, ConfidenceInterval: ConfidenceInterval{Lower: 40, Upper: 60}},
		{PredictedValue: 150, ConfidenceInterval: ConfidenceInterval{Lower: 140, Upper: 160}},
		{PredictedValue: 250, ConfidenceInterval: ConfidenceInterval{Lower: 200, Upper: 300}},
	}
	rules := []BusinessRule{
		{Type: RuleMinValue, Condition: RuleCondition{Value: 100}, Enabled: true},
		{Type: RuleMaxValue, Condition: RuleCondition{Value: 200}, Enabled: true},
		{Type: RuleMaxValue, Condition: RuleCondition{Value: 10}, Enabled: false},
	}

	out, warnings := ApplyRules(preds, rules)
	require.Len(t, out, 3)
	assert.Empty(t, warnings)

	for _, p := range out {
		assert.GreaterOrEqual(t, p.PredictedValue, 100.0)
		assert.LessOrEqual(t, p.PredictedValue, 200.0)
		assert.LessOrEqual(t, p.ConfidenceInterval.Lower, p.PredictedValue)
		assert.GreaterOrEqual(t, p.ConfidenceInterval.Upper, p.PredictedValue)
		assert.GreaterOrEqual(t, p.ConfidenceInterval.Lower, 0.0)
	}
	assert.Equal(t, 100.0, out[0].PredictedValue)
	assert.Equal(t, 200.0, out[2].PredictedValue)

	assert.Equal(t, 50.0, preds[0].PredictedValue, "input must not be modified")
}

func TestApplyRules_LaterRuleWins(t *testing.T) {
	preds := []ForecastPrediction{{PredictedValue: 50, ConfidenceInterval: ConfidenceInterval{Lower: 45, Upper: 55}}}
	rules := []BusinessRule{
		{Type: RuleMinValue, Condition: RuleCondition{Value: 100}, Enabled: true},
		{Type: RuleMaxValue, Condition: RuleCondition{Value: 80}, Enabled: true},
	}

	out, _ := ApplyRules(preds, rules)
	assert.Equal(t, 80.0, out[0].PredictedValue)
	assert.LessOrEqual(t, out[0].ConfidenceInterval.Lower, 80.0)
	assert.GreaterOrEqual(t, out[0].ConfidenceInterval.Upper, 80.0)
}

func TestApplyRules_GrowthLimitIsDocumentedNoOp(t *testing.T) {
	preds := []ForecastPrediction{{PredictedValue: 100}, {PredictedValue: 500}}
	out, warnings := ApplyRules(preds, []BusinessRule{
		{Type: RuleGrowthLimit, Condition: RuleCondition{MaxGrowthRate: 0.1}, Enabled: true},
	})

	assert.Equal(t, 500.0, out[1].PredictedValue)
	assert.Equal(t, []string{"business rule GROWTH_LIMIT is not enforced"}, warnings)
}

func TestApplyRules_SeasonalAdjustment(t *testing.T) {
	dec := time.Date(2025, time.December, 1, 0, 0, 0, 0, time.UTC)
	jan := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	preds := []ForecastPrediction{
		{Period: dec, PredictedValue: 100, ConfidenceInterval: ConfidenceInterval{Lower: 90, Upper: 110}},
		{Period: jan, PredictedValue: 100, ConfidenceInterval: ConfidenceInterval{Lower: 90, Upper: 110}},
	}

	out, warnings := ApplyRules(preds, []BusinessRule{
		{Type: RuleSeasonalAdjustment, Condition: RuleCondition{Factor: 1.5, Months: []int{11, 12}}, Enabled: true},
		{Type: RuleSeasonalAdjustment, Condition: RuleCondition{Factor: 0}, Enabled: true},
		{Type: "HOLIDAY_BOOST", Enabled: true},
	})

	assert.Equal(t, 150.0, out[0].PredictedValue)
	assert.Equal(t, 135.0, out[0].ConfidenceInterval.Lower)
	assert.Equal(t, 165.0, out[0].ConfidenceInterval.Upper)
	assert.Equal(t, 100.0, out[1].PredictedValue)
	assert.Len(t, warnings, 2)
}

func TestDecayConfidence_Monotonic(t *testing.T) {
	preds := make([]ForecastPrediction, 30)
	for i := range preds {
		preds[i] = ForecastPrediction{ConfidenceInterval: ConfidenceInterval{Confidence: 0.95}, Reliability: 0.8}
	}

	for _, level := range []analytics.VolatilityLevel{analytics.VolatilityLow, analytics.VolatilityMedium, analytics.VolatilityHigh} {
		out := DecayConfidence(preds, level)
		for i := 1; i < len(out); i++ {
			assert.LessOrEqual(t, out[i].ConfidenceInterval.Confidence, out[i-1].ConfidenceInterval.Confidence)
			assert.LessOrEqual(t, out[i].Reliability, out[i-1].Reliability)
		}
		assert.InDelta(t, 0.95*VolatilityFactor(level), out[0].ConfidenceInterval.Confidence, 1e-9)
		assert.InDelta(t, 0.95*0.3*VolatilityFactor(level), out[29].ConfidenceInterval.Confidence, 1e-9)
	}
	assert.Equal(t, 0.95, preds[0].ConfidenceInterval.Confidence, "input must not be modified")
}

func TestHorizonFactor(t *testing.T) {
	assert.Equal(t, 1.0, HorizonFactor(0))
	assert.InDelta(t, 0.5, HorizonFactor(10), 1e-9)
	assert.InDelta(t, 0.3, HorizonFactor(14), 1e-9)
	assert.Equal(t, 0.3, HorizonFactor(100))
	assert.False(t, math.IsNaN(HorizonFactor(-1)))
}
