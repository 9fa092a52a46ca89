package forecasting

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"forecasting-engine/analytics"
	"forecasting-engine/insights"
)

var seriesStart = time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC)

var scenarioA = []float64{100000, 105000, 110000, 108000, 115000, 120000, 118000, 125000, 130000, 135000, 128000, 140000}

func monthly(values ...float64) []analytics.DataPoint {
	points := make([]analytics.DataPoint, len(values))
	for i, v := range values {
		points[i] = analytics.DataPoint{
			Timestamp: seriesStart.AddDate(0, i, 0),
			Value:     v,
			Metadata:  analytics.DataPointMetadata{Source: "ledger", Confidence: 1},
		}
	}
	return points
}

func newRequest(periods int, values ...float64) *ForecastRequest {
	return &ForecastRequest{
		ID:              "req-1",
		Owner:           OwnerIDs{OrganizationID: "org-1", UserID: "user-1"},
		TargetMetric:    "revenue",
		HistoricalData:  monthly(values...),
		ForecastHorizon: ForecastHorizon{Periods: periods, Unit: analytics.UnitMonth},
	}
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

// clock sits shortly after the last point of a 12-month series so results are not stale
func clock() time.Time {
	return time.Date(2024, time.January, 10, 0, 0, 0, 0, time.UTC)
}

func newTestEngine(t *testing.T, deps Dependencies) *Engine {
	t.Helper()
	if deps.Logger == nil {
		deps.Logger = quietLogger()
	}
	e := NewEngine(Options{Now: clock, MaxWorkers: 4}, deps)
	t.Cleanup(func() { _ = e.Stop() })
	return e
}

type stubProvider struct {
	calls atomic.Int32
	reply string
	err   error
	delay time.Duration
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) Generate(ctx context.Context, system, prompt string) (string, error) {
	s.calls.Add(1)
	if s.delay > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(s.delay):
		}
	}
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}

func newGenerator(p insights.Provider, timeout time.Duration) *insights.Generator {
	return insights.NewGenerator(p, insights.Config{Timeout: timeout, RetryBackoff: time.Millisecond}, quietLogger())
}
