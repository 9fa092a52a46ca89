package ml

import (
	"forecasting-engine/analytics"
)

const fallbackModelCount = 3

// SelectModels picks the models to run for a series with the given patterns.
//
// Candidates are the active registered models, narrowed to the enabled
// requested algorithms when any are requested. Seasonal series prefer
// PROPHET_LIKE and the seasonal ARIMA variant, trending series the
// trend-sensitive models and stable series exponential smoothing. ENSEMBLE is
// always added when it is a candidate. When nothing qualifies the first three
// candidates are used, or the first three active models when no requested
// algorithm is available.
func SelectModels(patterns analytics.HistoricalPatterns, requested []ForecastAlgorithm, registry *Registry) []ForecastModel {
	candidates := candidateModels(requested, registry)

	byName := make(map[Algorithm]ForecastModel, len(candidates))
	for _, m := range candidates {
		byName[m.Algorithm] = m
	}

	var selected []ForecastModel
	seen := make(map[Algorithm]bool)
	add := func(name Algorithm, seasonal bool) {
		m, ok := byName[name]
		if !ok || seen[name] {
			return
		}
		if seasonal && name == ARIMA && !m.Seasonal() {
			m = m.WithParameters(map[string]float64{ParamSeasonalPeriod: float64(patterns.Seasonality.Period)})
		}
		seen[name] = true
		selected = append(selected, m)
	}

	if patterns.Seasonality.Detected {
		add(ProphetLike, true)
		add(ARIMA, true)
	}
	if patterns.Trend.LongTerm != analytics.TrendStable {
		add(LinearRegression, false)
		add(ARIMA, false)
		add(ProphetLike, false)
	} else {
		add(ExponentialSmoothing, false)
	}

	if len(selected) == 0 {
		pool := candidates
		if len(pool) == 0 {
			pool = registry.Active()
			for _, m := range pool {
				byName[m.Algorithm] = m
			}
		}
		for _, m := range pool {
			if len(selected) == fallbackModelCount {
				break
			}
			add(m.Algorithm, false)
		}
	}

	add(Ensemble, false)
	return selected
}

func candidateModels(requested []ForecastAlgorithm, registry *Registry) []ForecastModel {
	active := registry.Active()
	if len(requested) == 0 {
		return active
	}

	wanted := make(map[Algorithm]ForecastAlgorithm, len(requested))
	for _, alg := range requested {
		if alg.Enabled {
			wanted[alg.Name] = alg
		}
	}

	candidates := make([]ForecastModel, 0, len(wanted))
	for _, m := range active {
		if alg, ok := wanted[m.Algorithm]; ok {
			candidates = append(candidates, m.WithParameters(alg.Parameters))
		}
	}
	return candidates
}
