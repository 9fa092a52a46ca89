package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forecasting-engine/analytics"
	"forecasting-engine/forecasting"
)

type capturedRequests struct {
	mu       sync.Mutex
	forecast []forecasting.ForecastRequest
	paths    []string
	auth     string
}

func (c *capturedRequests) forecasts() []forecasting.ForecastRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]forecasting.ForecastRequest(nil), c.forecast...)
}

func (c *capturedRequests) visited() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.paths...)
}

func (c *capturedRequests) authorization() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.auth
}

// newForecastServer answers like the forecasting API and records what it was sent
func newForecastServer(t *testing.T, status int) (*httptest.Server, *capturedRequests) {
	t.Helper()
	captured := &capturedRequests{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.mu.Lock()
		captured.paths = append(captured.paths, r.URL.Path)
		captured.auth = r.Header.Get("Authorization")
		captured.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":"invalid forecast_horizon: periods must be positive"}`))
			return
		}

		switch r.URL.Path {
		case "/api/v1/forecasts", "/api/v1/forecasts/validate":
			var req forecasting.ForecastRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			captured.mu.Lock()
			captured.forecast = append(captured.forecast, req)
			captured.mu.Unlock()

			_ = json.NewEncoder(w).Encode(forecasting.ForecastResult{
				TargetMetric: req.TargetMetric,
				Confidence:   0.8,
				Fingerprint:  forecasting.Fingerprint(&req),
			})
		default:
			_, _ = w.Write([]byte(`{"status":"healthy","uptime":"1s","pipeline_runs":1}`))
		}
	}))
	t.Cleanup(server.Close)
	return server, captured
}

func TestHandleForecast_FromValues(t *testing.T) {
	server, captured := newForecastServer(t, http.StatusOK)
	config := CLIConfig{ServerURL: server.URL, Token: "abc"}

	err := handleForecast(config, []string{
		"--metric", "revenue",
		"--values", "100,105,110",
		"--unit", "MONTH",
		"--periods", "6",
		"--org", "acme",
		"--scenarios",
	})
	require.NoError(t, err)

	sent := captured.forecasts()
	require.Len(t, sent, 1)
	req := sent[0]
	assert.Equal(t, "revenue", req.TargetMetric)
	assert.Equal(t, "acme", req.Owner.OrganizationID)
	assert.Equal(t, "cli", req.Owner.UserID)
	assert.Equal(t, 6, req.ForecastHorizon.Periods)
	assert.Equal(t, analytics.UnitMonth, req.ForecastHorizon.Unit)
	assert.True(t, req.Preferences.IncludeScenarios)
	assert.False(t, req.Preferences.IncludeInsights)

	require.Len(t, req.HistoricalData, 3)
	assert.Equal(t, []float64{100, 105, 110}, analytics.Values(req.HistoricalData))
	for i := 1; i < len(req.HistoricalData); i++ {
		want := analytics.UnitMonth.Step(req.HistoricalData[i-1].Timestamp, 1)
		assert.True(t, want.Equal(req.HistoricalData[i].Timestamp), "point %d", i)
	}
	assert.Equal(t, "Bearer abc", captured.authorization())
}

func TestHandleForecast_FromFile(t *testing.T) {
	server, captured := newForecastServer(t, http.StatusOK)

	start := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	req := forecasting.ForecastRequest{
		Owner:        forecasting.OwnerIDs{OrganizationID: "org-file", UserID: "u"},
		TargetMetric: "expenses",
		HistoricalData: []analytics.DataPoint{
			{Timestamp: start, Value: 10},
			{Timestamp: start.AddDate(0, 1, 0), Value: 11},
			{Timestamp: start.AddDate(0, 2, 0), Value: 12},
		},
		ForecastHorizon: forecasting.ForecastHorizon{Periods: 2, Unit: analytics.UnitMonth},
	}
	data, err := json.Marshal(req)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "request.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	require.NoError(t, handleForecast(CLIConfig{ServerURL: server.URL}, []string{"--file", path}))

	sent := captured.forecasts()
	require.Len(t, sent, 1)
	assert.Equal(t, "expenses", sent[0].TargetMetric)
	assert.Equal(t, "org-file", sent[0].Owner.OrganizationID)
	assert.Len(t, sent[0].HistoricalData, 3)
}

func TestHandleForecast_ArgumentErrors(t *testing.T) {
	server, captured := newForecastServer(t, http.StatusOK)
	config := CLIConfig{ServerURL: server.URL}

	tests := []struct {
		name string
		args []string
	}{
		{"no values", []string{"--metric", "revenue"}},
		{"unknown flag", []string{"--values", "1,2,3", "--colour", "red"}},
		{"bad value", []string{"--values", "1,x,3"}},
		{"bad unit", []string{"--values", "1,2,3", "--unit", "FORTNIGHT"}},
		{"bad periods", []string{"--values", "1,2,3", "--periods", "six"}},
		{"missing file", []string{"--file", filepath.Join(t.TempDir(), "absent.json")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, handleForecast(config, tt.args))
		})
	}
	assert.Empty(t, captured.forecasts())
}

func TestHandleForecast_ServerRejection(t *testing.T) {
	server, _ := newForecastServer(t, http.StatusBadRequest)

	err := handleForecast(CLIConfig{ServerURL: server.URL}, []string{"--values", "1,2,3"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
	assert.Contains(t, err.Error(), "periods must be positive")
}

func TestHandleValidate(t *testing.T) {
	server, captured := newForecastServer(t, http.StatusOK)

	require.NoError(t, handleValidate(CLIConfig{ServerURL: server.URL}, []string{"--values", "5,6,7", "--unit", "quarter"}))
	sent := captured.forecasts()
	require.Len(t, sent, 1)
	assert.Equal(t, analytics.UnitQuarter, sent[0].ForecastHorizon.Unit)
	assert.Contains(t, captured.visited(), "/api/v1/forecasts/validate")
}

func TestHandleDemo(t *testing.T) {
	server, captured := newForecastServer(t, http.StatusOK)

	require.NoError(t, handleDemo(CLIConfig{ServerURL: server.URL}, []string{"--months", "24", "--periods", "3"}))

	sent := captured.forecasts()
	require.Len(t, sent, 1)
	assert.Len(t, sent[0].HistoricalData, 24)
	assert.Equal(t, 3, sent[0].ForecastHorizon.Periods)
	assert.Equal(t, analytics.UnitMonth, sent[0].ForecastHorizon.Unit)
	assert.True(t, sent[0].Preferences.IncludeScenarios)

	assert.Error(t, handleDemo(CLIConfig{ServerURL: server.URL}, []string{"--months", "2"}))
}

func TestHandleBenchmark(t *testing.T) {
	server, captured := newForecastServer(t, http.StatusOK)

	require.NoError(t, handleBenchmark(CLIConfig{ServerURL: server.URL}, []string{"--concurrency", "4"}))

	sent := captured.forecasts()
	require.Len(t, sent, 4)
	for _, req := range sent[1:] {
		assert.Equal(t, sent[0].ID, req.ID)
	}
	assert.Contains(t, captured.visited(), "/api/v1/cache/stats")

	assert.Error(t, handleBenchmark(CLIConfig{ServerURL: server.URL}, []string{"--concurrency", "0"}))
}

func TestSeriesPoints(t *testing.T) {
	now := time.Date(2025, time.May, 17, 15, 30, 0, 0, time.UTC)

	quarterly := seriesPoints([]float64{1, 2, 3}, analytics.UnitQuarter, now)
	assert.Equal(t, time.Date(2024, time.November, 1, 0, 0, 0, 0, time.UTC), quarterly[0].Timestamp)
	assert.Equal(t, time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC), quarterly[1].Timestamp)
	assert.Equal(t, time.Date(2025, time.May, 1, 0, 0, 0, 0, time.UTC), quarterly[2].Timestamp)

	daily := seriesPoints([]float64{1, 2}, analytics.UnitDay, now)
	assert.Equal(t, time.Date(2025, time.May, 16, 0, 0, 0, 0, time.UTC), daily[0].Timestamp)
	assert.Equal(t, time.Date(2025, time.May, 17, 0, 0, 0, 0, time.UTC), daily[1].Timestamp)
}
