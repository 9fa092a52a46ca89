package ml

import (
	"fmt"
	"math"
	"time"

	"forecasting-engine/analytics"
)

const (
	minRegressionConfidence = 0.3
	arimaConfidence         = 0.75
	smoothingConfidence     = 0.7
	prophetConfidence       = 0.8
	ensembleConfidenceBoost = 0.1
	ensembleConfidenceCap   = 0.9
	prophetAmplitude        = 0.1

	defaultAlpha       = 0.3
	defaultAROrder     = 2
	defaultDifferences = 1
)

// Input is everything a model needs to forecast one period
type Input struct {
	Values      []float64
	Step        int // periods past the last observation, starting at 1
	Target      time.Time
	Seasonality analytics.Seasonality
}

// Output is one model's prediction for one period
type Output struct {
	Algorithm  Algorithm `json:"algorithm"`
	Value      float64   `json:"value"`
	Confidence float64   `json:"confidence"`
}

type predictFunc func(m ForecastModel, in Input) (value, confidence float64)

var predictors = map[Algorithm]predictFunc{
	LinearRegression:     predictLinearRegression,
	ARIMA:                predictARIMA,
	ExponentialSmoothing: predictExponentialSmoothing,
	ProphetLike:          predictProphetLike,
	Ensemble:             predictEnsemble,
}

// PredictOne runs a single model for a single target period. Values are never negative.
func PredictOne(m ForecastModel, in Input) (Output, error) {
	predict, ok := predictors[m.Algorithm]
	if !ok {
		return Output{}, fmt.Errorf("unsupported algorithm %s", m.Algorithm)
	}
	if len(in.Values) == 0 {
		return Output{}, fmt.Errorf("%s: empty series", m.Algorithm)
	}
	if in.Step < 1 {
		in.Step = 1
	}

	value, confidence := predict(m, in)
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return Output{}, fmt.Errorf("%s produced a non-finite value", m.Algorithm)
	}
	return Output{Algorithm: m.Algorithm, Value: math.Max(0, value), Confidence: confidence}, nil
}

func predictLinearRegression(_ ForecastModel, in Input) (float64, float64) {
	fit := analytics.FitLine(in.Values)
	x := float64(len(in.Values) - 1 + in.Step)
	return fit.At(x), math.Max(minRegressionConfidence, fit.RSquared)
}

// predictARIMA differences d times, extends the differenced series with a
// linearly weighted average of its last p values, then integrates back up.
func predictARIMA(m ForecastModel, in Input) (float64, float64) {
	p := int(m.Param(ParamAROrder, defaultAROrder))
	d := int(m.Param(ParamDifferencing, defaultDifferences))
	if p < 1 {
		p = 1
	}

	series := append([]float64(nil), in.Values...)
	var anchors []float64
	for i := 0; i < d && len(series) > 1; i++ {
		anchors = append(anchors, series[len(series)-1])
		series = difference(series)
	}

	for s := 0; s < in.Step; s++ {
		series = append(series, weightedTail(series, p))
	}
	forecasts := series[len(series)-in.Step:]

	for level := len(anchors) - 1; level >= 0; level-- {
		acc := anchors[level]
		integrated := make([]float64, len(forecasts))
		for k, diff := range forecasts {
			acc += diff
			integrated[k] = acc
		}
		forecasts = integrated
	}

	value := forecasts[len(forecasts)-1]
	if m.Seasonal() {
		value *= in.Seasonality.SeasonalIndex(in.Target.Month())
	}
	return value, arimaConfidence
}

func difference(values []float64) []float64 {
	out := make([]float64, len(values)-1)
	for i := 1; i < len(values); i++ {
		out[i-1] = values[i] - values[i-1]
	}
	return out
}

// weightedTail averages the last p values with weights 1..p, most recent heaviest
func weightedTail(values []float64, p int) float64 {
	if len(values) == 0 {
		return 0
	}
	if p > len(values) {
		p = len(values)
	}
	tail := values[len(values)-p:]

	var sum, weights float64
	for i, v := range tail {
		w := float64(i + 1)
		sum += w * v
		weights += w
	}
	return sum / weights
}

func predictExponentialSmoothing(m ForecastModel, in Input) (float64, float64) {
	alpha := m.Param(ParamAlpha, defaultAlpha)
	if alpha <= 0 || alpha > 1 {
		alpha = defaultAlpha
	}

	level := in.Values[0]
	for _, v := range in.Values[1:] {
		level = alpha*v + (1-alpha)*level
	}
	return level, smoothingConfidence
}

func predictProphetLike(m ForecastModel, in Input) (float64, float64) {
	trend, _ := predictLinearRegression(m, in)
	month := float64(in.Target.Month())
	return trend * (1 + prophetAmplitude*math.Sin(2*math.Pi*month/12)), prophetConfidence
}

// predictEnsemble averages the four base methods at their default parameters
func predictEnsemble(_ ForecastModel, in Input) (float64, float64) {
	base := []predictFunc{predictLinearRegression, predictARIMA, predictExponentialSmoothing, predictProphetLike}

	var values, confidences float64
	for _, predict := range base {
		v, c := predict(ForecastModel{}, in)
		values += math.Max(0, v)
		confidences += c
	}
	n := float64(len(base))
	return values / n, math.Min(ensembleConfidenceCap, confidences/n+ensembleConfidenceBoost)
}
