package forecasting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"forecasting-engine/analytics"
	"forecasting-engine/analytics/ml"
	"forecasting-engine/analytics/risk"
	"forecasting-engine/insights"
	"forecasting-engine/metrics"
	"forecasting-engine/storage"
)

const (
	// DefaultCacheTTL is the validity window of a cached result
	DefaultCacheTTL = 24 * time.Hour

	degradedConfidenceFactor = 0.9
)

// DefaultSupportedMetrics are the business metrics advertised by GetForecastingCapabilities
var DefaultSupportedMetrics = []string{
	"revenue",
	"expenses",
	"profit",
	"cash_flow",
	"billable_hours",
	"utilization_rate",
	"headcount",
	"client_count",
	"pipeline_value",
	"churn_rate",
}

// Options tunes the engine. Zero values fall back to defaults.
type Options struct {
	CacheTTL          time.Duration
	CacheMaxEntries   int
	CleanupInterval   time.Duration
	MaxWorkers        int
	StaleAfter        time.Duration
	SupportedMetrics  []string
	DefaultAlgorithms []ml.Algorithm
	Now               func() time.Time
}

// Dependencies are the collaborators shared with the rest of the process.
// Every field is optional.
type Dependencies struct {
	Registry *ml.Registry
	Store    *storage.ResultStore
	Insights *insights.Generator
	Metrics  *metrics.Recorder
	Logger   *logrus.Logger
}

// Engine runs forecasts. It is created once per process and is safe for concurrent use.
type Engine struct {
	options   Options
	registry  *ml.Registry
	store     *storage.ResultStore
	insights  *insights.Generator
	metrics   *metrics.Recorder
	logger    *logrus.Logger
	validator *Validator
	preparer  *analytics.Preparer
	analyzer  *analytics.PatternAnalyzer
	predictor *ml.Predictor

	flights      singleflight.Group
	pipelineRuns atomic.Int64
}

// NewEngine wires an engine. A nil store gets an in-memory store honoring CacheTTL.
func NewEngine(opts Options, deps Dependencies) *Engine {
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultCacheTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if len(opts.SupportedMetrics) == 0 {
		opts.SupportedMetrics = DefaultSupportedMetrics
	}

	logger := deps.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	registry := deps.Registry
	if registry == nil {
		registry = ml.NewRegistry()
	}
	store := deps.Store
	if store == nil {
		store = storage.NewResultStore(storage.Config{
			MaxEntries:      opts.CacheMaxEntries,
			TTL:             opts.CacheTTL,
			CleanupInterval: opts.CleanupInterval,
		}, nil, logger)
	}

	return &Engine{
		options:   opts,
		registry:  registry,
		store:     store,
		insights:  deps.Insights,
		metrics:   deps.Metrics,
		logger:    logger,
		validator: NewValidator(),
		preparer:  analytics.NewPreparer(opts.StaleAfter, opts.Now),
		analyzer:  analytics.NewPatternAnalyzer(),
		predictor: ml.NewPredictor(opts.MaxWorkers, logger),
	}
}

// Start launches background cache maintenance
func (e *Engine) Start() {
	e.store.Start()
}

// Stop halts background work and closes the cache tiers
func (e *Engine) Stop() error {
	return e.store.Stop()
}

// Health reports whether the cache tiers are reachable
func (e *Engine) Health(ctx context.Context) error {
	return e.store.Ping(ctx)
}

// CacheStats reports cache tier usage
func (e *Engine) CacheStats() storage.Stats {
	return e.store.Stats()
}

// CachedResults lists hot cache entries stored for an organization
func (e *Engine) CachedResults(organizationID string) []storage.EntryInfo {
	return e.store.Entries(map[string]string{"organization_id": organizationID})
}

// Invalidate drops a cached result from every tier
func (e *Engine) Invalidate(ctx context.Context, fingerprint string) error {
	return e.store.Invalidate(ctx, fingerprint)
}

// InvalidateOwned drops a cached result only when it was stored for organizationID.
// It reports false when the organization has no such hot entry.
func (e *Engine) InvalidateOwned(ctx context.Context, organizationID, fingerprint string) (bool, error) {
	for _, entry := range e.CachedResults(organizationID) {
		if entry.Key == fingerprint {
			return true, e.store.Invalidate(ctx, fingerprint)
		}
	}
	return false, nil
}

// ClearCache drops the hot entries of one organization, or every tier entirely
// when organizationID is empty
func (e *Engine) ClearCache(ctx context.Context, organizationID string) (int, error) {
	if organizationID == "" {
		removed, err := e.store.Clear(ctx)
		if err == nil {
			e.logger.WithField("removed", removed).Info("Cleared result cache")
		}
		return removed, err
	}

	removed := 0
	for _, entry := range e.CachedResults(organizationID) {
		if err := e.store.Invalidate(ctx, entry.Key); err != nil {
			return removed, err
		}
		removed++
	}
	e.logger.WithFields(logrus.Fields{
		"organization_id": organizationID,
		"removed":         removed,
	}).Info("Cleared organization results")
	return removed, nil
}

// PipelineRuns is the number of full pipeline executions since start
func (e *Engine) PipelineRuns() int64 {
	return e.pipelineRuns.Load()
}

// Validate checks a request without running it
func (e *Engine) Validate(req *ForecastRequest) error {
	return e.validator.Validate(req)
}

type flightResult struct {
	data   []byte
	cached bool
}

// GenerateForecast validates the request, serves it from cache when possible and
// otherwise runs the pipeline once per fingerprint however many callers are waiting.
func (e *Engine) GenerateForecast(ctx context.Context, req *ForecastRequest) (*ForecastResult, error) {
	if err := e.validator.Validate(req); err != nil {
		e.metrics.Request("invalid")
		return nil, err
	}

	fingerprint := Fingerprint(req)
	log := e.logger.WithFields(logrus.Fields{
		"request_id":  req.ID,
		"fingerprint": fingerprint[:12],
		"metric":      req.TargetMetric,
	})
	if !slices.Contains(e.options.SupportedMetrics, req.TargetMetric) {
		log.Debug("Target metric is not in the supported list, forecasting anyway")
	}

	if data, ok := e.lookup(ctx, fingerprint, log); ok {
		return e.decode(data, true)
	}

	leader := false
	v, err, _ := e.flights.Do(fingerprint, func() (interface{}, error) {
		leader = true
		// a flight for this key may have completed between the lookup and Do
		if data, ok := e.lookup(ctx, fingerprint, log); ok {
			return flightResult{data: data, cached: true}, nil
		}

		// one caller going away must not fail the others sharing this flight
		runCtx := context.WithoutCancel(ctx)
		result, err := e.run(runCtx, req, fingerprint, log)
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(result)
		if err != nil {
			return nil, pipelineError("encode result", err)
		}
		labels := map[string]string{
			"organization_id": req.Owner.OrganizationID,
			"metric":          req.TargetMetric,
		}
		if err := e.store.Set(runCtx, fingerprint, data, labels); err != nil {
			log.WithError(err).Warn("Failed to store forecast result")
		}
		return flightResult{data: data}, nil
	})
	if err != nil {
		e.metrics.Request("error")
		log.WithError(err).Error("Forecast failed")
		return nil, err
	}

	fr := v.(flightResult)
	cached := fr.cached || !leader
	if cached {
		log.Debug("Forecast shared from in-flight computation")
	}
	return e.decode(fr.data, cached)
}

func (e *Engine) lookup(ctx context.Context, fingerprint string, log *logrus.Entry) ([]byte, bool) {
	data, tier, ok := e.store.Get(ctx, fingerprint)
	if !ok {
		e.metrics.CacheLookup("any", false)
		return nil, false
	}
	e.metrics.CacheLookup(string(tier), true)
	log.WithField("tier", tier).Debug("Forecast cache hit")
	return data, true
}

// decode gives every caller its own copy of the stored result
func (e *Engine) decode(data []byte, cached bool) (*ForecastResult, error) {
	var result ForecastResult
	if err := json.Unmarshal(data, &result); err != nil {
		e.metrics.Request("error")
		return nil, pipelineError("decode result", err)
	}
	result.Cached = cached
	if cached {
		e.metrics.Request("cached")
	} else {
		e.metrics.Request("computed")
	}
	return &result, nil
}

func (e *Engine) run(ctx context.Context, req *ForecastRequest, fingerprint string, log *logrus.Entry) (*ForecastResult, error) {
	start := time.Now()
	unit, err := analytics.ParseUnit(string(req.ForecastHorizon.Unit))
	if err != nil {
		return nil, invalid("forecast_horizon.unit", "%v", err)
	}
	policy, _ := analytics.PolicyFor(unit)
	periods := req.ForecastHorizon.Periods

	prepared, err := e.preparer.Prepare(req.HistoricalData, unit)
	if err != nil {
		if errors.Is(err, analytics.ErrInsufficientData) {
			return nil, invalid("historical_data", "historical data has too few usable points: %v", err)
		}
		return nil, pipelineError("prepare", err)
	}
	log.WithFields(logrus.Fields{
		"points":        len(prepared.Points),
		"outliers":      prepared.OutliersRemoved,
		"gaps":          prepared.GapsFilled,
		"quality_score": prepared.QualityScore,
	}).Debug("Series prepared")

	warnings := append([]string{}, prepared.Warnings...)
	confidenceFactor := 1.0
	degraded := false
	if prepared.OriginalCount < policy.MinimumDataPoints {
		degraded = true
		confidenceFactor *= degradedConfidenceFactor
		warnings = append(warnings, fmt.Sprintf("historical data has %d points; %d are recommended for reliable %s forecasts",
			prepared.OriginalCount, policy.MinimumDataPoints, unit))
		log.WithField("points", prepared.OriginalCount).Warn("Forecasting with fewer points than recommended")
	}

	patterns := e.analyzer.Analyze(prepared.Points, unit)
	if req.ModelConfiguration.SeasonalityMode == SeasonalityNone {
		patterns.Seasonality = analytics.Seasonality{}
	}
	log.WithFields(logrus.Fields{
		"trend":       patterns.Trend.LongTerm,
		"seasonality": patterns.Seasonality.Detected,
		"volatility":  patterns.Volatility.Level,
		"cyclical":    patterns.Cyclical.Detected,
	}).Debug("Patterns analyzed")

	values := prepared.Values()
	external := req.hasExternalSignals()

	var predictions []ml.ForecastPrediction
	var used []ModelSummary
	if analytics.PopVariance(values) == 0 {
		degraded = true
		warnings = append(warnings, "series has zero variance; forecasting by carrying the last value forward")
		log.Warn("Zero-variance series, using naive carry-forward")

		combiner := ml.NewCombiner(nil, patterns, values, external)
		last := prepared.Last()
		for i := 1; i <= periods; i++ {
			predictions = append(predictions, combiner.Naive(unit.Step(last.Timestamp, i), last.Value))
		}
		used = []ModelSummary{{Algorithm: NaiveAlgorithm, Weight: 1}}
	} else {
		models := ml.SelectModels(patterns, e.requestedAlgorithms(req), e.registry)
		if len(models) == 0 {
			return nil, pipelineError("select", errors.New("no active models available"))
		}

		fan, err := e.predictor.Forecast(ctx, prepared, patterns, models, periods)
		if err != nil {
			return nil, pipelineError("predict", err)
		}

		combiner := ml.NewCombiner(models, patterns, values, external)
		for _, pf := range fan {
			predictions = append(predictions, combiner.Combine(pf.Period, pf.Outputs))
		}
		used = summarize(models)
	}

	predictions, ruleWarnings := ml.ApplyRules(predictions, req.ModelConfiguration.BusinessRules)
	warnings = append(warnings, ruleWarnings...)
	predictions = ml.DecayConfidence(predictions, patterns.Volatility.Level)
	if !req.Preferences.IncludeModelOutputs {
		for i := range predictions {
			predictions[i].ModelOutputs = nil
		}
	}

	assessment := risk.AssessRisk(predictions, patterns, risk.Context{
		QualityScore:        prepared.QualityScore,
		RequestedAlgorithms: len(req.ModelConfiguration.Algorithms),
		MarketThreats:       req.marketThreats(),
		Values:              values,
	})

	var scenarios []risk.ScenarioAnalysis
	if req.Preferences.IncludeScenarios {
		scenarios = risk.BuildScenarios(predictions, req.Preferences.ScenarioProbabilities)
	}

	var narrative *insights.Response
	if req.Preferences.IncludeInsights {
		var penalty float64
		narrative, penalty, warnings = e.generateInsights(ctx, req, prepared, patterns, predictions, warnings, log)
		confidenceFactor *= penalty
	}

	confidence := clampUnit(meanReliability(predictions) * confidenceFactor)
	if target := req.ModelConfiguration.ConfidenceTarget; target > 0 && confidence < target {
		warnings = append(warnings, fmt.Sprintf("forecast confidence %.2f is below the requested target %.2f", confidence, target))
	}

	e.pipelineRuns.Add(1)
	elapsed := time.Since(start)
	e.metrics.PipelineRun(elapsed)
	log.WithFields(logrus.Fields{
		"periods":    periods,
		"confidence": confidence,
		"risk":       assessment.OverallRisk,
		"duration":   elapsed,
	}).Info("Forecast generated")

	return &ForecastResult{
		ID:             uuid.NewString(),
		RequestID:      req.ID,
		OrganizationID: req.Owner.OrganizationID,
		TargetMetric:   req.TargetMetric,
		Horizon:        ForecastHorizon{Periods: periods, Unit: unit},
		GeneratedAt:    e.options.Now().UTC(),
		Predictions:    predictions,
		Patterns:       patterns,
		ModelsUsed:     used,
		QualityAssessment: QualityAssessment{
			Score:            prepared.QualityScore,
			OriginalCount:    prepared.OriginalCount,
			PreparedCount:    len(prepared.Points),
			OutliersRemoved:  prepared.OutliersRemoved,
			GapsFilled:       prepared.GapsFilled,
			Stale:            prepared.Stale,
			RecommendedCount: policy.MinimumDataPoints,
			Degraded:         degraded,
			Warnings:         prepared.Warnings,
		},
		Confidence:       confidence,
		RiskAssessment:   assessment,
		Scenarios:        scenarios,
		Insights:         narrative,
		Warnings:         warnings,
		Fingerprint:      fingerprint,
		ProcessingTimeMs: elapsed.Milliseconds(),
	}, nil
}

// generateInsights returns the narrative, a confidence multiplier and the updated warnings.
// Insight problems are never fatal.
func (e *Engine) generateInsights(ctx context.Context, req *ForecastRequest, prepared *analytics.PreparedSeries, patterns analytics.HistoricalPatterns, predictions []ml.ForecastPrediction, warnings []string, log *logrus.Entry) (*insights.Response, float64, []string) {
	if e.insights == nil {
		return nil, 1, append(warnings, "insight generation is not configured")
	}

	resp, err := e.insights.Generate(ctx, insights.Input{
		TargetMetric:   req.TargetMetric,
		Periods:        req.ForecastHorizon.Periods,
		Unit:           prepared.Unit,
		Patterns:       patterns,
		LastValue:      prepared.Last().Value,
		FinalForecast:  predictions[len(predictions)-1].PredictedValue,
		QualityScore:   prepared.QualityScore,
		MarketThreats:  req.marketThreats(),
		Opportunities:  req.marketOpportunities(),
		PlannedActions: req.plannedInitiatives(),
	})
	switch {
	case errors.Is(err, insights.ErrEmptyResponse):
		log.Warn("Insight provider returned an empty response")
		return nil, 1, append(warnings, "insight response was empty and has been ignored")
	case err != nil:
		e.metrics.InsightFailure()
		log.WithError(err).Warn("Insight generation failed, continuing without insights")
		return nil, degradedConfidenceFactor, append(warnings, fmt.Sprintf("insight generation skipped: %v", err))
	}
	return resp, 1, warnings
}

func (e *Engine) requestedAlgorithms(req *ForecastRequest) []ml.ForecastAlgorithm {
	if len(req.ModelConfiguration.Algorithms) > 0 {
		return req.ModelConfiguration.Algorithms
	}
	defaults := make([]ml.ForecastAlgorithm, 0, len(e.options.DefaultAlgorithms))
	for _, name := range e.options.DefaultAlgorithms {
		defaults = append(defaults, ml.ForecastAlgorithm{Name: name, Enabled: true})
	}
	return defaults
}

func summarize(models []ml.ForecastModel) []ModelSummary {
	weights := ml.Weights(models)
	out := make([]ModelSummary, 0, len(models))
	for _, m := range models {
		out = append(out, ModelSummary{
			Algorithm: m.Algorithm,
			Weight:    weights[m.Algorithm],
			Seasonal:  m.Seasonal(),
			Accuracy:  m.Accuracy,
		})
	}
	return out
}

func meanReliability(predictions []ml.ForecastPrediction) float64 {
	if len(predictions) == 0 {
		return 0
	}
	var sum float64
	for _, p := range predictions {
		sum += p.Reliability
	}
	return sum / float64(len(predictions))
}

func clampUnit(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
