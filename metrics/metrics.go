// Prometheus instrumentation for the forecasting engine and its HTTP surface
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder owns a private registry so several engines can coexist in one process.
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	registry *prometheus.Registry

	requestsTotal    *prometheus.CounterVec
	cacheLookups     *prometheus.CounterVec
	pipelineRuns     prometheus.Counter
	pipelineDuration prometheus.Histogram
	insightFailures  prometheus.Counter
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
}

// NewRecorder creates and registers all collectors
func NewRecorder() *Recorder {
	m := &Recorder{
		registry: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "forecast_requests_total",
			Help: "Forecast requests by outcome (success, cached, invalid, error).",
		}, []string{"outcome"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "forecast_cache_lookups_total",
			Help: "Result cache lookups by tier and result.",
		}, []string{"tier", "result"}),
		pipelineRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "forecast_pipeline_runs_total",
			Help: "Full pipeline executions (cache misses that computed a result).",
		}),
		pipelineDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "forecast_pipeline_duration_seconds",
			Help:    "Histogram of pipeline durations.",
			Buckets: prometheus.DefBuckets,
		}),
		insightFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "forecast_insight_failures_total",
			Help: "Insight generation calls that failed or timed out.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total count of HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}

	m.registry.MustRegister(
		m.requestsTotal,
		m.cacheLookups,
		m.pipelineRuns,
		m.pipelineDuration,
		m.insightFailures,
		m.httpRequests,
		m.httpDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Registry exposes the underlying registry
func (m *Recorder) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Recorder) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Recorder) Request(outcome string) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(outcome).Inc()
}

func (m *Recorder) CacheLookup(tier string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(tier, result).Inc()
}

func (m *Recorder) PipelineRun(duration time.Duration) {
	if m == nil {
		return
	}
	m.pipelineRuns.Inc()
	m.pipelineDuration.Observe(duration.Seconds())
}

func (m *Recorder) InsightFailure() {
	if m == nil {
		return
	}
	m.insightFailures.Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// WrapHandler counts requests and observes latency for a route
func (m *Recorder) WrapHandler(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(recorder, r)

		if m != nil {
			m.httpRequests.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
			m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		}
	})
}
