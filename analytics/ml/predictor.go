package ml

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"forecasting-engine/analytics"
)

// PeriodForecast groups every model output for one target period
type PeriodForecast struct {
	Period  time.Time `json:"period"`
	Step    int       `json:"step"`
	Outputs []Output  `json:"outputs"`
}

// Predictor fans out one prediction per period per model
type Predictor struct {
	maxWorkers int
	logger     *logrus.Logger
}

// NewPredictor creates a predictor. maxWorkers <= 0 uses GOMAXPROCS.
func NewPredictor(maxWorkers int, logger *logrus.Logger) *Predictor {
	if maxWorkers <= 0 {
		maxWorkers = runtime.GOMAXPROCS(0)
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Predictor{maxWorkers: maxWorkers, logger: logger}
}

// Forecast predicts periods steps past the end of the series with every model.
// Results come back in chronological order with outputs in model order.
func (p *Predictor) Forecast(ctx context.Context, series *analytics.PreparedSeries, patterns analytics.HistoricalPatterns, models []ForecastModel, periods int) ([]PeriodForecast, error) {
	if len(models) == 0 {
		return nil, fmt.Errorf("no models selected")
	}
	if periods <= 0 {
		return nil, fmt.Errorf("invalid horizon: %d periods", periods)
	}

	values := series.Values()
	last := series.Last().Timestamp

	results := make([]PeriodForecast, periods)
	for i := range results {
		results[i] = PeriodForecast{
			Period:  series.Unit.Step(last, i+1),
			Step:    i + 1,
			Outputs: make([]Output, len(models)),
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.maxWorkers)

	for i := range results {
		for j, model := range models {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				out, err := PredictOne(model, Input{
					Values:      values,
					Step:        results[i].Step,
					Target:      results[i].Period,
					Seasonality: patterns.Seasonality,
				})
				if err != nil {
					return fmt.Errorf("period %d: %w", i+1, err)
				}
				results[i].Outputs[j] = out
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	p.logger.WithFields(logrus.Fields{
		"periods": periods,
		"models":  len(models),
		"workers": p.maxWorkers,
	}).Debug("Model fan-out complete")

	return results, nil
}
