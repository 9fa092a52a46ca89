package analytics

import (
	"math"
	"testing"
	"time"
)

func TestPatternAnalyzer_IncreasingTrend(t *testing.T) {
	points := monthlySeries(100000, 105000, 110000, 108000, 115000, 120000, 118000, 125000, 130000, 135000, 128000, 140000)

	patterns := NewPatternAnalyzer().Analyze(points, UnitMonth)

	if patterns.Trend.LongTerm != TrendIncreasing {
		t.Errorf("Expected INCREASING long-term trend, got %s", patterns.Trend.LongTerm)
	}
	if patterns.Trend.Slope <= 0 {
		t.Errorf("Expected positive slope, got %f", patterns.Trend.Slope)
	}
	if patterns.Trend.ShortTerm != TrendIncreasing {
		t.Errorf("Expected INCREASING short-term trend, got %s", patterns.Trend.ShortTerm)
	}
}

func TestPatternAnalyzer_TrendDirections(t *testing.T) {
	analyzer := NewPatternAnalyzer()

	down := analyzer.Analyze(monthlySeries(200, 190, 180, 170, 160, 150, 140, 130), UnitMonth)
	if down.Trend.LongTerm != TrendDecreasing || down.Trend.ShortTerm != TrendDecreasing {
		t.Errorf("Expected DECREASING trends, got %s/%s", down.Trend.LongTerm, down.Trend.ShortTerm)
	}

	flat := analyzer.Analyze(monthlySeries(50, 50, 50, 50, 50, 50), UnitMonth)
	if flat.Trend.LongTerm != TrendStable || flat.Trend.ShortTerm != TrendStable {
		t.Errorf("Expected STABLE trends, got %s/%s", flat.Trend.LongTerm, flat.Trend.ShortTerm)
	}

	// long-term rise that reverses at the end
	reversal := analyzer.Analyze(monthlySeries(10, 20, 30, 40, 50, 60, 70, 80, 90, 100, 60, 20), UnitMonth)
	if reversal.Trend.LongTerm != TrendIncreasing {
		t.Errorf("Expected INCREASING long-term trend, got %s", reversal.Trend.LongTerm)
	}
	if reversal.Trend.ShortTerm != TrendDecreasing {
		t.Errorf("Expected DECREASING short-term trend, got %s", reversal.Trend.ShortTerm)
	}
}

func TestPatternAnalyzer_ChangePoints(t *testing.T) {
	values := make([]float64, 40)
	for i := range values {
		values[i] = 100
		if i >= 20 {
			values[i] = 200
		}
	}

	patterns := NewPatternAnalyzer().Analyze(monthlySeries(values...), UnitMonth)

	if len(patterns.Trend.ChangePoints) == 0 {
		t.Fatal("Expected change points around the level shift")
	}
	for _, cp := range patterns.Trend.ChangePoints {
		if cp.Index < 16 || cp.Index > 24 {
			t.Errorf("Change point at %d is far from the shift at 20", cp.Index)
		}
		if cp.Magnitude <= 0.2 {
			t.Errorf("Change point magnitude %f should exceed threshold", cp.Magnitude)
		}
	}
}

func TestPatternAnalyzer_Seasonality(t *testing.T) {
	values := make([]float64, 36)
	for i := range values {
		values[i] = 100
		if i%12 >= 9 {
			values[i] = 160
		}
	}

	patterns := NewPatternAnalyzer().Analyze(monthlySeries(values...), UnitMonth)
	season := patterns.Seasonality

	if !season.Detected {
		t.Fatal("Expected seasonality to be detected")
	}
	if season.Period != 12 {
		t.Errorf("Expected period 12, got %d", season.Period)
	}
	if season.Strength <= 0 || season.Strength > 1 {
		t.Errorf("Strength %f outside (0, 1]", season.Strength)
	}
	if len(season.Peaks) != 1 || season.Peaks[0] != "Q4" {
		t.Errorf("Expected Q4 peak, got %v", season.Peaks)
	}
	if season.SeasonalIndex(time.December) <= 1 {
		t.Errorf("Expected December index above 1, got %f", season.SeasonalIndex(time.December))
	}
	if season.SeasonalIndex(time.March) >= 1 {
		t.Errorf("Expected March index below 1, got %f", season.SeasonalIndex(time.March))
	}
}

func TestPatternAnalyzer_SeasonalityRequirements(t *testing.T) {
	analyzer := NewPatternAnalyzer()
	values := make([]float64, 24)
	for i := range values {
		values[i] = 100 + 50*float64(i%12)
	}

	if s := analyzer.Analyze(monthlySeries(values...), UnitDay).Seasonality; s.Detected {
		t.Error("Seasonality should require monthly cadence")
	}
	if s := analyzer.Analyze(monthlySeries(values[:11]...), UnitMonth).Seasonality; s.Detected {
		t.Error("Seasonality should require at least 12 points")
	}
	if idx := (Seasonality{}).SeasonalIndex(time.June); idx != 1 {
		t.Errorf("Undetected seasonality should have index 1, got %f", idx)
	}
}

func TestPatternAnalyzer_Volatility(t *testing.T) {
	analyzer := NewPatternAnalyzer()

	high := analyzer.Analyze(monthlySeries(10, 100, 10, 100, 10, 100), UnitMonth)
	if high.Volatility.Level != VolatilityHigh {
		t.Errorf("Expected HIGH volatility, got %s (cv=%f)", high.Volatility.Level, high.Volatility.Coefficient)
	}

	medium := analyzer.Analyze(monthlySeries(80, 120, 80, 120, 80, 120), UnitMonth)
	if medium.Volatility.Level != VolatilityMedium {
		t.Errorf("Expected MEDIUM volatility, got %s (cv=%f)", medium.Volatility.Level, medium.Volatility.Coefficient)
	}

	values := make([]float64, 20)
	for i := range values {
		values[i] = 100
	}
	values[10] = 200
	spiky := analyzer.Analyze(monthlySeries(values...), UnitMonth)
	if len(spiky.Volatility.Periods) != 1 {
		t.Fatalf("Expected exactly one volatile period, got %d", len(spiky.Volatility.Periods))
	}
	if spiky.Volatility.Periods[0].Value != 200 {
		t.Errorf("Expected the spike to be flagged, got %f", spiky.Volatility.Periods[0].Value)
	}
}

func TestPatternAnalyzer_Cyclical(t *testing.T) {
	values := make([]float64, 48)
	for i := range values {
		values[i] = 100 + 20*math.Sin(2*math.Pi*float64(i)/8)
	}

	cycle := NewPatternAnalyzer().Analyze(monthlySeries(values...), UnitMonth).Cyclical
	if !cycle.Detected {
		t.Fatal("Expected a cycle to be detected")
	}
	if cycle.Amplitude < 0.9 || cycle.Amplitude > 1+1e-9 {
		t.Errorf("Expected amplitude near 1, got %f", cycle.Amplitude)
	}
	if cycle.Period%4 != 0 {
		t.Errorf("Expected period on a multiple of the half cycle, got %d", cycle.Period)
	}
}

func TestPatternAnalyzer_ShortSeriesNotDetected(t *testing.T) {
	patterns := NewPatternAnalyzer().Analyze(monthlySeries(10, 20), UnitMonth)

	if patterns.Seasonality.Detected || patterns.Cyclical.Detected {
		t.Error("Short series should report nothing detected")
	}
	if len(patterns.Trend.ChangePoints) != 0 {
		t.Error("Short series should have no change points")
	}
}
