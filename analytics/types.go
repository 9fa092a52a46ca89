// Series primitives shared by the forecasting pipeline stages
package analytics

import (
	"fmt"
	"strings"
	"time"
)

// DataPoint represents a single observation of a business metric
type DataPoint struct {
	Timestamp time.Time         `json:"timestamp"`
	Value     float64           `json:"value"`
	Metadata  DataPointMetadata `json:"metadata"`
}

// DataPointMetadata describes where a point came from and how much it can be trusted
type DataPointMetadata struct {
	Source         string   `json:"source,omitempty"`
	Confidence     float64  `json:"confidence" validate:"gte=0,lte=1"`
	Adjustments    []string `json:"adjustments,omitempty"`
	ExternalEvents []string `json:"external_events,omitempty"`
	Interpolated   bool     `json:"interpolated,omitempty"`
}

// HorizonUnit is the calendar unit of a series and its forecast horizon
type HorizonUnit string

const (
	UnitDay     HorizonUnit = "DAY"
	UnitWeek    HorizonUnit = "WEEK"
	UnitMonth   HorizonUnit = "MONTH"
	UnitQuarter HorizonUnit = "QUARTER"
	UnitYear    HorizonUnit = "YEAR"
)

// UnitPolicy holds the per-unit limits enforced by validation and quality checks
type UnitPolicy struct {
	Unit              HorizonUnit   `json:"unit"`
	Cadence           time.Duration `json:"cadence"`
	MinimumDataPoints int           `json:"minimum_data_points"`
	MaxHorizon        int           `json:"max_horizon"`
}

var unitPolicies = map[HorizonUnit]UnitPolicy{
	UnitDay:     {Unit: UnitDay, Cadence: 24 * time.Hour, MinimumDataPoints: 90, MaxHorizon: 365},
	UnitWeek:    {Unit: UnitWeek, Cadence: 7 * 24 * time.Hour, MinimumDataPoints: 52, MaxHorizon: 104},
	UnitMonth:   {Unit: UnitMonth, Cadence: 30 * 24 * time.Hour, MinimumDataPoints: 12, MaxHorizon: 36},
	UnitQuarter: {Unit: UnitQuarter, Cadence: 91 * 24 * time.Hour, MinimumDataPoints: 8, MaxHorizon: 12},
	UnitYear:    {Unit: UnitYear, Cadence: 365 * 24 * time.Hour, MinimumDataPoints: 5, MaxHorizon: 10},
}

// SupportedUnits lists units in ascending cadence order
var SupportedUnits = []HorizonUnit{UnitDay, UnitWeek, UnitMonth, UnitQuarter, UnitYear}

// ParseUnit normalizes a unit name such as "month" or "MONTHS"
func ParseUnit(s string) (HorizonUnit, error) {
	u := HorizonUnit(strings.TrimSuffix(strings.ToUpper(strings.TrimSpace(s)), "S"))
	if _, ok := unitPolicies[u]; !ok {
		return "", fmt.Errorf("unsupported horizon unit %q", s)
	}
	return u, nil
}

// PolicyFor returns the policy for a unit
func PolicyFor(unit HorizonUnit) (UnitPolicy, bool) {
	p, ok := unitPolicies[unit]
	return p, ok
}

// Cadence returns the expected spacing between points for the unit
func (u HorizonUnit) Cadence() time.Duration {
	return unitPolicies[u].Cadence
}

// Step advances t by n calendar units
func (u HorizonUnit) Step(t time.Time, n int) time.Time {
	switch u {
	case UnitDay:
		return t.AddDate(0, 0, n)
	case UnitWeek:
		return t.AddDate(0, 0, 7*n)
	case UnitMonth:
		return t.AddDate(0, n, 0)
	case UnitQuarter:
		return t.AddDate(0, 3*n, 0)
	case UnitYear:
		return t.AddDate(n, 0, 0)
	default:
		return t.Add(time.Duration(n) * u.Cadence())
	}
}

// Values extracts the value column of a series
func Values(points []DataPoint) []float64 {
	values := make([]float64, len(points))
	for i, p := range points {
		values[i] = p.Value
	}
	return values
}
