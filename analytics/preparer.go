package analytics

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// ErrInsufficientData is returned when fewer than MinimumPoints survive preparation
var ErrInsufficientData = errors.New("insufficient historical data")

const (
	// MinimumPoints is the hard floor for producing any derived entity
	MinimumPoints = 3

	iqrMultiplier          = 1.5
	gapCadenceMultiplier   = 1.5
	interpolatedConfidence = 0.7
	outlierPenaltyWeight   = 0.2
	gapPenaltyWeight       = 0.3
	stalenessPenalty       = 0.1
	minQualityScore        = 0.3
	defaultStaleAfter      = 30 * 24 * time.Hour
)

// PreparedSeries is the cleaned series plus the quality bookkeeping of how it was produced
type PreparedSeries struct {
	Points          []DataPoint `json:"points"`
	Unit            HorizonUnit `json:"unit"`
	QualityScore    float64     `json:"quality_score"`
	OriginalCount   int         `json:"original_count"`
	OutliersRemoved int         `json:"outliers_removed"`
	GapsFilled      int         `json:"gaps_filled"`
	Stale           bool        `json:"stale"`
	LowerFence      float64     `json:"lower_fence"`
	UpperFence      float64     `json:"upper_fence"`
	Warnings        []string    `json:"warnings,omitempty"`
}

// Values returns the value column of the prepared points
func (ps *PreparedSeries) Values() []float64 {
	return Values(ps.Points)
}

// Last returns the most recent prepared point
func (ps *PreparedSeries) Last() DataPoint {
	return ps.Points[len(ps.Points)-1]
}

// Preparer cleans raw series and scores their quality
type Preparer struct {
	staleAfter time.Duration
	now        func() time.Time
}

// NewPreparer creates a preparer. staleAfter <= 0 uses 30 days.
func NewPreparer(staleAfter time.Duration, now func() time.Time) *Preparer {
	if staleAfter <= 0 {
		staleAfter = defaultStaleAfter
	}
	if now == nil {
		now = time.Now
	}
	return &Preparer{staleAfter: staleAfter, now: now}
}

// Prepare sorts, removes extreme outliers, fills temporal gaps and scores the series.
// The input slice is never modified.
func (p *Preparer) Prepare(raw []DataPoint, unit HorizonUnit) (*PreparedSeries, error) {
	if len(raw) < MinimumPoints {
		return nil, fmt.Errorf("%w: got %d points, need at least %d", ErrInsufficientData, len(raw), MinimumPoints)
	}

	sorted := make([]DataPoint, len(raw))
	copy(sorted, raw)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	filtered, lower, upper := filterOutliers(sorted)
	if len(filtered) < MinimumPoints {
		return nil, fmt.Errorf("%w: only %d points remain after outlier filtering", ErrInsufficientData, len(filtered))
	}

	filled, gaps := fillGaps(filtered, unit.Cadence())

	result := &PreparedSeries{
		Points:          filled,
		Unit:            unit,
		OriginalCount:   len(raw),
		OutliersRemoved: len(sorted) - len(filtered),
		GapsFilled:      gaps,
		LowerFence:      lower,
		UpperFence:      upper,
	}

	score := 1.0
	outlierRatio := float64(result.OutliersRemoved) / float64(len(raw))
	score -= outlierRatio * outlierPenaltyWeight
	if result.OutliersRemoved > 0 {
		result.Warnings = append(result.Warnings, fmt.Sprintf("%d outlier point(s) excluded outside [%.2f, %.2f]", result.OutliersRemoved, lower, upper))
	}

	gapRatio := float64(gaps) / float64(len(filtered)-1)
	score -= gapRatio * gapPenaltyWeight
	if gaps > 0 {
		result.Warnings = append(result.Warnings, fmt.Sprintf("%d temporal gap(s) filled by midpoint interpolation", gaps))
	}

	if p.now().Sub(filtered[len(filtered)-1].Timestamp) > p.staleAfter {
		result.Stale = true
		score -= stalenessPenalty
		result.Warnings = append(result.Warnings, fmt.Sprintf("most recent data point is older than %s", p.staleAfter))
	}

	if score < minQualityScore {
		score = minQualityScore
	}
	result.QualityScore = score

	return result, nil
}

// filterOutliers drops points outside the Tukey fence [Q1-1.5*IQR, Q3+1.5*IQR]
func filterOutliers(points []DataPoint) ([]DataPoint, float64, float64) {
	values := Values(points)
	sort.Float64s(values)

	q1 := percentile(values, 25)
	q3 := percentile(values, 75)
	iqr := q3 - q1
	lower := q1 - iqrMultiplier*iqr
	upper := q3 + iqrMultiplier*iqr

	kept := make([]DataPoint, 0, len(points))
	for _, point := range points {
		if point.Value < lower || point.Value > upper {
			continue
		}
		kept = append(kept, point)
	}
	return kept, lower, upper
}

// fillGaps inserts one midpoint between neighbors spaced more than 1.5x the cadence apart
func fillGaps(points []DataPoint, cadence time.Duration) ([]DataPoint, int) {
	if cadence <= 0 {
		return points, 0
	}
	threshold := time.Duration(float64(cadence) * gapCadenceMultiplier)

	out := make([]DataPoint, 0, len(points))
	gaps := 0
	for i, point := range points {
		if i > 0 {
			prev := points[i-1]
			interval := point.Timestamp.Sub(prev.Timestamp)
			if interval > threshold {
				out = append(out, DataPoint{
					Timestamp: prev.Timestamp.Add(interval / 2),
					Value:     (prev.Value + point.Value) / 2,
					Metadata: DataPointMetadata{
						Source:       "interpolated",
						Confidence:   interpolatedConfidence,
						Interpolated: true,
					},
				})
				gaps++
			}
		}
		out = append(out, point)
	}
	return out, gaps
}
