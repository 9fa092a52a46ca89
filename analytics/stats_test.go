package analytics

import (
	"math"
	"testing"
)

func TestPercentileCalculation(t *testing.T) {
	data := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

	q1 := percentile(data, 25)
	q2 := percentile(data, 50)
	q3 := percentile(data, 75)

	if q2 != 5.5 {
		t.Errorf("Expected median 5.5, got %f", q2)
	}
	if q1 != 3.25 || q3 != 7.75 {
		t.Errorf("Expected quartiles 3.25/7.75, got %f/%f", q1, q3)
	}

	if result := percentile([]float64{42}, 50); result != 42 {
		t.Errorf("Expected 42, got %f", result)
	}
	if result := percentile([]float64{}, 50); result != 0 {
		t.Errorf("Expected 0 for empty slice, got %f", result)
	}
}

func TestFitLine(t *testing.T) {
	values := []float64{1, 3, 5, 7, 9}
	fit := FitLine(values)

	if math.Abs(fit.Slope-2) > 1e-9 {
		t.Errorf("Expected slope 2, got %f", fit.Slope)
	}
	if math.Abs(fit.Intercept-1) > 1e-9 {
		t.Errorf("Expected intercept 1, got %f", fit.Intercept)
	}
	if math.Abs(fit.RSquared-1) > 1e-9 {
		t.Errorf("Expected R² 1, got %f", fit.RSquared)
	}
	if next := fit.At(5); math.Abs(next-11) > 1e-9 {
		t.Errorf("Expected extrapolation 11, got %f", next)
	}
}

func TestFitLine_Degenerate(t *testing.T) {
	if fit := FitLine(nil); fit != (LinearFit{}) {
		t.Errorf("Expected zero fit for empty input, got %+v", fit)
	}

	fit := FitLine([]float64{5, 5, 5, 5})
	if fit.Slope != 0 {
		t.Errorf("Expected zero slope for constant input, got %f", fit.Slope)
	}
	if math.IsNaN(fit.RSquared) {
		t.Error("R² should never be NaN")
	}
}

func TestDispersionHelpers(t *testing.T) {
	values := []float64{2, 4, 4, 4, 5, 5, 7, 9}

	if m := Mean(values); m != 5 {
		t.Errorf("Expected mean 5, got %f", m)
	}
	if sd := PopStdDev(values); math.Abs(sd-2) > 1e-9 {
		t.Errorf("Expected population stddev 2, got %f", sd)
	}
	if v := PopVariance(values); math.Abs(v-4) > 1e-9 {
		t.Errorf("Expected population variance 4, got %f", v)
	}
	if se := StdError([]float64{1}); se != 0 {
		t.Errorf("Expected zero standard error for a single value, got %f", se)
	}
}

func TestAutocorrelation(t *testing.T) {
	values := make([]float64, 40)
	for i := range values {
		values[i] = math.Sin(2 * math.Pi * float64(i) / 8)
	}

	if c := Autocorrelation(values, 8); c < 0.99 {
		t.Errorf("Expected strong positive correlation at full period, got %f", c)
	}
	if c := Autocorrelation(values, 4); c > -0.99 {
		t.Errorf("Expected strong negative correlation at half period, got %f", c)
	}
	if c := Autocorrelation(values, 0); c != 0 {
		t.Errorf("Expected 0 for non-positive lag, got %f", c)
	}
	if c := Autocorrelation(values, 39); c != 0 {
		t.Errorf("Expected 0 when lag leaves fewer than two pairs, got %f", c)
	}
}
