// Forecasting model registry, per-algorithm predictors and the ensemble combiner
package ml

import (
	"fmt"
	"sync"
)

// Algorithm names a forecasting method
type Algorithm string

const (
	LinearRegression     Algorithm = "LINEAR_REGRESSION"
	ARIMA                Algorithm = "ARIMA"
	ExponentialSmoothing Algorithm = "EXPONENTIAL_SMOOTHING"
	ProphetLike          Algorithm = "PROPHET_LIKE"
	Ensemble             Algorithm = "ENSEMBLE"
)

// Algorithms lists every supported method in registration order
var Algorithms = []Algorithm{LinearRegression, ARIMA, ExponentialSmoothing, ProphetLike, Ensemble}

// Parameter keys understood by the built-in models
const (
	ParamAlpha          = "alpha"
	ParamAROrder        = "p"
	ParamDifferencing   = "d"
	ParamSeasonalPeriod = "seasonal_period"
)

// ForecastAlgorithm is the declarative configuration of one method in a request
type ForecastAlgorithm struct {
	Name       Algorithm          `json:"name" validate:"required"`
	Weight     float64            `json:"weight" validate:"gte=0"`
	Parameters map[string]float64 `json:"parameters,omitempty"`
	Enabled    bool               `json:"enabled"`
}

// Accuracy holds trailing performance statistics for a registered model
type Accuracy struct {
	MAPE float64 `json:"mape"`
	MAE  float64 `json:"mae"`
	RMSE float64 `json:"rmse"`
	R2   float64 `json:"r2"`
}

// ForecastModel is a registered algorithm instance
type ForecastModel struct {
	Algorithm  Algorithm          `json:"algorithm"`
	Parameters map[string]float64 `json:"parameters,omitempty"`
	Accuracy   Accuracy           `json:"accuracy"`
	IsActive   bool               `json:"is_active"`
}

// Param returns a parameter value or def when unset
func (m ForecastModel) Param(key string, def float64) float64 {
	if v, ok := m.Parameters[key]; ok {
		return v
	}
	return def
}

// Seasonal reports whether the model runs its seasonal variant
func (m ForecastModel) Seasonal() bool {
	return m.Param(ParamSeasonalPeriod, 0) > 0
}

// WithParameters returns a copy with overrides merged over the model's own parameters
func (m ForecastModel) WithParameters(overrides map[string]float64) ForecastModel {
	merged := make(map[string]float64, len(m.Parameters)+len(overrides))
	for k, v := range m.Parameters {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}
	m.Parameters = merged
	return m
}

// Registry holds the models available to an engine. It is initialized once and
// read concurrently by requests.
type Registry struct {
	mu     sync.RWMutex
	order  []Algorithm
	models map[Algorithm]ForecastModel
}

// NewRegistry creates a registry preloaded with the built-in models
func NewRegistry() *Registry {
	r := &Registry{models: make(map[Algorithm]ForecastModel)}
	for _, m := range defaultModels() {
		r.Register(m)
	}
	return r
}

func defaultModels() []ForecastModel {
	return []ForecastModel{
		{
			Algorithm: LinearRegression,
			Accuracy:  Accuracy{MAPE: 0.15, MAE: 0.12, RMSE: 0.18, R2: 0.72},
			IsActive:  true,
		},
		{
			Algorithm:  ARIMA,
			Parameters: map[string]float64{ParamAROrder: 2, ParamDifferencing: 1},
			Accuracy:   Accuracy{MAPE: 0.12, MAE: 0.10, RMSE: 0.15, R2: 0.78},
			IsActive:   true,
		},
		{
			Algorithm:  ExponentialSmoothing,
			Parameters: map[string]float64{ParamAlpha: 0.3},
			Accuracy:   Accuracy{MAPE: 0.14, MAE: 0.11, RMSE: 0.17, R2: 0.74},
			IsActive:   true,
		},
		{
			Algorithm: ProphetLike,
			Accuracy:  Accuracy{MAPE: 0.10, MAE: 0.08, RMSE: 0.13, R2: 0.82},
			IsActive:  true,
		},
		{
			Algorithm: Ensemble,
			Accuracy:  Accuracy{MAPE: 0.08, MAE: 0.07, RMSE: 0.11, R2: 0.86},
			IsActive:  true,
		},
	}
}

// Register adds or replaces a model. New algorithms are appended to the registration order.
func (r *Registry) Register(m ForecastModel) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.models[m.Algorithm]; !exists {
		r.order = append(r.order, m.Algorithm)
	}
	r.models[m.Algorithm] = m
}

// Get returns a registered model
func (r *Registry) Get(name Algorithm) (ForecastModel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.models[name]
	return m, ok
}

// SetActive toggles a model without removing it
func (r *Registry) SetActive(name Algorithm, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.models[name]
	if !ok {
		return fmt.Errorf("model %s not registered", name)
	}
	m.IsActive = active
	r.models[name] = m
	return nil
}

// Active returns active models in registration order
func (r *Registry) Active() []ForecastModel {
	r.mu.RLock()
	defer r.mu.RUnlock()

	active := make([]ForecastModel, 0, len(r.order))
	for _, name := range r.order {
		if m := r.models[name]; m.IsActive {
			active = append(active, m)
		}
	}
	return active
}

// Names returns every registered algorithm in registration order
func (r *Registry) Names() []Algorithm {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]Algorithm, len(r.order))
	copy(names, r.order)
	return names
}
