package analytics

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// LinearFit is an ordinary least-squares line over index vs. value
type LinearFit struct {
	Slope     float64 `json:"slope"`
	Intercept float64 `json:"intercept"`
	RSquared  float64 `json:"r_squared"`
}

// At evaluates the line at index x
func (f LinearFit) At(x float64) float64 {
	return f.Intercept + f.Slope*x
}

// FitLine regresses values against their index 0..n-1
func FitLine(values []float64) LinearFit {
	n := len(values)
	if n == 0 {
		return LinearFit{}
	}
	if n == 1 {
		return LinearFit{Intercept: values[0]}
	}

	x := make([]float64, n)
	floats.Span(x, 0, float64(n-1))

	alpha, beta := stat.LinearRegression(x, values, nil, false)
	r2 := stat.RSquared(x, values, nil, alpha, beta)
	if math.IsNaN(r2) || math.IsInf(r2, 0) {
		r2 = 0
	}
	return LinearFit{Slope: beta, Intercept: alpha, RSquared: r2}
}

// Mean returns the arithmetic mean, 0 for an empty slice
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return stat.Mean(values, nil)
}

// PopStdDev returns the population standard deviation
func PopStdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	_, std := stat.PopMeanStdDev(values, nil)
	return std
}

// PopVariance returns the population variance
func PopVariance(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	return stat.PopVariance(values, nil)
}

// StdError is the standard error of the mean of values
func StdError(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	return stat.StdDev(values, nil) / math.Sqrt(float64(len(values)))
}

// Autocorrelation is the Pearson correlation between the series and itself shifted by lag
func Autocorrelation(values []float64, lag int) float64 {
	if lag <= 0 || lag >= len(values)-1 {
		return 0
	}
	c := stat.Correlation(values[:len(values)-lag], values[lag:], nil)
	if math.IsNaN(c) {
		return 0
	}
	return c
}

// percentile interpolates linearly between the closest ranks of sorted data
func percentile(sortedData []float64, p float64) float64 {
	if len(sortedData) == 0 {
		return 0
	}
	if len(sortedData) == 1 {
		return sortedData[0]
	}

	index := (p / 100.0) * float64(len(sortedData)-1)
	lower := int(math.Floor(index))
	upper := int(math.Ceil(index))

	if lower == upper {
		return sortedData[lower]
	}

	weight := index - float64(lower)
	return sortedData[lower]*(1-weight) + sortedData[upper]*weight
}
