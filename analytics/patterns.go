package analytics

import (
	"math"
	"time"
)

// TrendDirection classifies the sign of a fitted slope
type TrendDirection string

const (
	TrendIncreasing TrendDirection = "INCREASING"
	TrendDecreasing TrendDirection = "DECREASING"
	TrendStable     TrendDirection = "STABLE"
)

// VolatilityLevel buckets the coefficient of variation
type VolatilityLevel string

const (
	VolatilityLow    VolatilityLevel = "LOW"
	VolatilityMedium VolatilityLevel = "MEDIUM"
	VolatilityHigh   VolatilityLevel = "HIGH"
)

const (
	trendThreshold         = 0.1
	changePointThreshold   = 0.20
	minChangePointWindow   = 3
	seasonalityMinPoints   = 12
	seasonalityRatioCutoff = 0.1
	monthsPerYear          = 12
	volatilityHighCutoff   = 0.3
	volatilityMediumCutoff = 0.1
	volatilePeriodSigmas   = 2.0
	minCyclePeriod         = 4
	cycleCorrelationCutoff = 0.3
)

// HistoricalPatterns is everything the analyzer detected in a prepared series
type HistoricalPatterns struct {
	Trend       Trend       `json:"trend"`
	Seasonality Seasonality `json:"seasonality"`
	Volatility  Volatility  `json:"volatility"`
	Cyclical    Cyclical    `json:"cyclical"`
}

// Trend describes long and short term direction plus abrupt level shifts
type Trend struct {
	LongTerm       TrendDirection `json:"long_term"`
	ShortTerm      TrendDirection `json:"short_term"`
	Slope          float64        `json:"slope"`
	ShortTermSlope float64        `json:"short_term_slope"`
	ChangePoints   []ChangePoint  `json:"change_points"`
}

// ChangePoint marks a timestamp where the local mean shifted beyond the threshold
type ChangePoint struct {
	Timestamp time.Time `json:"timestamp"`
	Index     int       `json:"index"`
	LeftMean  float64   `json:"left_mean"`
	RightMean float64   `json:"right_mean"`
	Magnitude float64   `json:"magnitude"`
}

// Seasonality describes month-of-year structure
type Seasonality struct {
	Detected     bool      `json:"detected"`
	Strength     float64   `json:"strength"`
	Period       int       `json:"period,omitempty"`
	Peaks        []string  `json:"peaks,omitempty"`
	Troughs      []string  `json:"troughs,omitempty"`
	MonthlyIndex []float64 `json:"monthly_index,omitempty"`
}

// SeasonalIndex returns the multiplicative index for a calendar month, 1 when unknown
func (s Seasonality) SeasonalIndex(month time.Month) float64 {
	if !s.Detected || len(s.MonthlyIndex) != monthsPerYear {
		return 1
	}
	idx := s.MonthlyIndex[int(month)-1]
	if idx <= 0 {
		return 1
	}
	return idx
}

// Volatility describes dispersion of the series around its mean
type Volatility struct {
	Level       VolatilityLevel  `json:"level"`
	Coefficient float64          `json:"coefficient"`
	Periods     []VolatilePeriod `json:"periods,omitempty"`
}

// VolatilePeriod is a point more than two standard deviations from the mean
type VolatilePeriod struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
	Deviation float64   `json:"deviation"`
}

// Cyclical describes the strongest autocorrelation cycle
type Cyclical struct {
	Detected  bool    `json:"detected"`
	Period    int     `json:"period,omitempty"`
	Amplitude float64 `json:"amplitude"`
}

// PatternAnalyzer detects trend, seasonality, volatility and cycles.
// Each detector tolerates short series by reporting "not detected".
type PatternAnalyzer struct{}

// NewPatternAnalyzer creates a pattern analyzer
func NewPatternAnalyzer() *PatternAnalyzer {
	return &PatternAnalyzer{}
}

// Analyze runs all four detectors over a prepared series
func (pa *PatternAnalyzer) Analyze(points []DataPoint, unit HorizonUnit) HistoricalPatterns {
	values := Values(points)
	return HistoricalPatterns{
		Trend:       pa.analyzeTrend(points, values),
		Seasonality: pa.analyzeSeasonality(points, values, unit),
		Volatility:  pa.analyzeVolatility(points, values),
		Cyclical:    pa.analyzeCyclical(values),
	}
}

func classifySlope(slope float64) TrendDirection {
	switch {
	case slope > trendThreshold:
		return TrendIncreasing
	case slope < -trendThreshold:
		return TrendDecreasing
	default:
		return TrendStable
	}
}

func (pa *PatternAnalyzer) analyzeTrend(points []DataPoint, values []float64) Trend {
	trend := Trend{LongTerm: TrendStable, ShortTerm: TrendStable, ChangePoints: []ChangePoint{}}
	if len(values) < 2 {
		return trend
	}

	fit := FitLine(values)
	trend.Slope = fit.Slope
	trend.LongTerm = classifySlope(fit.Slope)

	// final quarter, endpoint to endpoint
	start := len(values) - len(values)/4
	if len(values)-start < 2 {
		start = len(values) - 2
	}
	recent := values[start:]
	trend.ShortTermSlope = (recent[len(recent)-1] - recent[0]) / float64(len(recent)-1)
	trend.ShortTerm = classifySlope(trend.ShortTermSlope)

	trend.ChangePoints = detectChangePoints(points, values)
	return trend
}

func detectChangePoints(points []DataPoint, values []float64) []ChangePoint {
	window := len(values) / 10
	if window < minChangePointWindow {
		window = minChangePointWindow
	}

	changes := []ChangePoint{}
	for i := window; i+window <= len(values); i++ {
		left := Mean(values[i-window : i])
		right := Mean(values[i : i+window])
		if left == 0 {
			continue
		}
		shift := math.Abs(right-left) / math.Abs(left)
		if shift > changePointThreshold {
			changes = append(changes, ChangePoint{
				Timestamp: points[i].Timestamp,
				Index:     i,
				LeftMean:  left,
				RightMean: right,
				Magnitude: shift,
			})
		}
	}
	return changes
}

func (pa *PatternAnalyzer) analyzeSeasonality(points []DataPoint, values []float64, unit HorizonUnit) Seasonality {
	if len(values) < seasonalityMinPoints || unit != UnitMonth {
		return Seasonality{}
	}

	overallVariance := PopVariance(values)
	if overallVariance == 0 {
		return Seasonality{}
	}

	var sums [monthsPerYear]float64
	var counts [monthsPerYear]int
	for _, p := range points {
		m := int(p.Timestamp.Month()) - 1
		sums[m] += p.Value
		counts[m]++
	}

	monthly := make([]float64, 0, monthsPerYear)
	var averages [monthsPerYear]float64
	for m := 0; m < monthsPerYear; m++ {
		if counts[m] == 0 {
			continue
		}
		averages[m] = sums[m] / float64(counts[m])
		monthly = append(monthly, averages[m])
	}

	ratio := PopVariance(monthly) / overallVariance
	if ratio <= seasonalityRatioCutoff {
		return Seasonality{Strength: ratio}
	}

	mean := Mean(values)
	index := make([]float64, monthsPerYear)
	for m := 0; m < monthsPerYear; m++ {
		if counts[m] == 0 || mean == 0 {
			index[m] = 1
			continue
		}
		index[m] = averages[m] / mean
	}

	return Seasonality{
		Detected:     true,
		Strength:     math.Min(ratio, 1),
		Period:       monthsPerYear,
		Peaks:        []string{"Q4"},
		Troughs:      []string{"Q1", "Q2"},
		MonthlyIndex: index,
	}
}

func (pa *PatternAnalyzer) analyzeVolatility(points []DataPoint, values []float64) Volatility {
	vol := Volatility{Level: VolatilityLow}
	if len(values) < 2 {
		return vol
	}

	mean := Mean(values)
	sigma := PopStdDev(values)
	switch {
	case sigma == 0:
		vol.Coefficient = 0
	case mean == 0:
		vol.Coefficient = math.Inf(1)
	default:
		vol.Coefficient = sigma / math.Abs(mean)
	}

	switch {
	case vol.Coefficient > volatilityHighCutoff:
		vol.Level = VolatilityHigh
	case vol.Coefficient > volatilityMediumCutoff:
		vol.Level = VolatilityMedium
	}
	if math.IsInf(vol.Coefficient, 0) {
		// keep the result JSON-encodable
		vol.Coefficient = math.MaxFloat64
	}

	if sigma == 0 {
		return vol
	}
	for _, p := range points {
		deviation := math.Abs(p.Value-mean) / sigma
		if deviation > volatilePeriodSigmas {
			vol.Periods = append(vol.Periods, VolatilePeriod{
				Timestamp: p.Timestamp,
				Value:     p.Value,
				Deviation: deviation,
			})
		}
	}
	return vol
}

func (pa *PatternAnalyzer) analyzeCyclical(values []float64) Cyclical {
	maxPeriod := len(values) / 4
	best := Cyclical{}
	for lag := minCyclePeriod; lag <= maxPeriod; lag++ {
		corr := math.Abs(Autocorrelation(values, lag))
		if corr > cycleCorrelationCutoff && corr > best.Amplitude {
			best = Cyclical{Detected: true, Period: lag, Amplitude: corr}
		}
	}
	return best
}
