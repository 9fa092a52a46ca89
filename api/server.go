package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"forecasting-engine/forecasting"
	"forecasting-engine/metrics"
)

const maxRequestBytes = 8 << 20

// Server exposes the forecasting engine over HTTP
type Server struct {
	router    *mux.Router
	engine    *forecasting.Engine
	metrics   *metrics.Recorder
	auth      *AuthMiddleware
	logger    *logrus.Logger
	startTime time.Time
}

// NewServer creates the API server. auth may be nil to serve without authentication.
func NewServer(engine *forecasting.Engine, recorder *metrics.Recorder, auth *AuthMiddleware, logger *logrus.Logger) *Server {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	server := &Server{
		router:    mux.NewRouter(),
		engine:    engine,
		metrics:   recorder,
		auth:      auth,
		logger:    logger,
		startTime: time.Now(),
	}

	server.setupRoutes()
	return server
}

// ServeHTTP implements the http.Handler interface
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()
	if s.auth != nil {
		api.Use(s.auth.RequireAuth)
	}

	api.Handle("/forecasts", s.metrics.WrapHandler("forecast", http.HandlerFunc(s.generateForecast))).Methods(http.MethodPost)
	api.Handle("/forecasts/validate", s.metrics.WrapHandler("validate", http.HandlerFunc(s.validateForecast))).Methods(http.MethodPost)
	api.Handle("/forecasts/capabilities", s.metrics.WrapHandler("capabilities", http.HandlerFunc(s.capabilities))).Methods(http.MethodGet)
	api.Handle("/forecasts/{fingerprint}", s.metrics.WrapHandler("invalidate", http.HandlerFunc(s.invalidateForecast))).Methods(http.MethodDelete)
	api.Handle("/cache/stats", s.metrics.WrapHandler("cache_stats", http.HandlerFunc(s.cacheStats))).Methods(http.MethodGet)
	api.Handle("/cache", s.metrics.WrapHandler("cache_clear", http.HandlerFunc(s.clearCache))).Methods(http.MethodDelete)
	api.Handle("/cache/entries", s.metrics.WrapHandler("cache_entries", http.HandlerFunc(s.cacheEntries))).Methods(http.MethodGet)

	s.router.HandleFunc("/health", s.healthCheck).Methods(http.MethodGet)
	s.router.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	s.router.HandleFunc("/", s.rootHandler).Methods(http.MethodGet)
}

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message, field string) {
	writeJSON(w, status, errorResponse{Error: message, Field: field})
}

// decodeRequest reads a forecast request and binds it to the caller's organization
func (s *Server) decodeRequest(w http.ResponseWriter, r *http.Request) (*forecasting.ForecastRequest, bool) {
	var req forecasting.ForecastRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %v", err), "")
		return nil, false
	}

	if claims, ok := ClaimsFromContext(r.Context()); ok {
		if req.Owner.OrganizationID == "" {
			req.Owner.OrganizationID = claims.OrganizationID
		}
		if req.Owner.UserID == "" {
			req.Owner.UserID = claims.UserID
		}
		if req.Owner.OrganizationID != claims.OrganizationID {
			writeError(w, http.StatusForbidden, "organization does not match token", "owner_ids.organization_id")
			return nil, false
		}
	}
	return &req, true
}

func (s *Server) generateForecast(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeRequest(w, r)
	if !ok {
		return
	}

	result, err := s.engine.GenerateForecast(r.Context(), req)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) validateForecast(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeRequest(w, r)
	if !ok {
		return
	}
	if err := s.engine.Validate(req); err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"valid":       true,
		"fingerprint": forecasting.Fingerprint(req),
	})
}

func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	var ve *forecasting.ValidationError
	if errors.As(err, &ve) {
		writeError(w, http.StatusBadRequest, ve.Error(), ve.Field)
		return
	}
	s.logger.WithError(err).Error("Forecast request failed")
	writeError(w, http.StatusInternalServerError, "forecast generation failed", "")
}

func (s *Server) capabilities(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.GetForecastingCapabilities())
}

func (s *Server) cacheStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"cache":         s.engine.CacheStats(),
		"pipeline_runs": s.engine.PipelineRuns(),
	})
}

func (s *Server) cacheEntries(w http.ResponseWriter, r *http.Request) {
	organizationID := r.URL.Query().Get("organization_id")
	if claims, ok := ClaimsFromContext(r.Context()); ok {
		organizationID = claims.OrganizationID
	}
	if organizationID == "" {
		writeError(w, http.StatusBadRequest, "Missing 'organization_id' parameter", "organization_id")
		return
	}

	entries := s.engine.CachedResults(organizationID)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
	})
}

func (s *Server) invalidateForecast(w http.ResponseWriter, r *http.Request) {
	fingerprint := mux.Vars(r)["fingerprint"]

	var err error
	if claims, ok := ClaimsFromContext(r.Context()); ok {
		var found bool
		found, err = s.engine.InvalidateOwned(r.Context(), claims.OrganizationID, fingerprint)
		if err == nil && !found {
			writeError(w, http.StatusNotFound, "cached forecast not found", "fingerprint")
			return
		}
	} else {
		err = s.engine.Invalidate(r.Context(), fingerprint)
	}
	if err != nil {
		s.logger.WithError(err).WithField("fingerprint", fingerprint).Error("Failed to invalidate forecast")
		writeError(w, http.StatusInternalServerError, "failed to invalidate cached forecast", "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// clearCache drops the caller's cached results. Without authentication an
// organization_id parameter scopes the flush; omitting it clears everything.
func (s *Server) clearCache(w http.ResponseWriter, r *http.Request) {
	organizationID := r.URL.Query().Get("organization_id")
	if claims, ok := ClaimsFromContext(r.Context()); ok {
		organizationID = claims.OrganizationID
	}

	removed, err := s.engine.ClearCache(r.Context(), organizationID)
	if err != nil {
		s.logger.WithError(err).Error("Failed to clear result cache")
		writeError(w, http.StatusInternalServerError, "failed to clear result cache", "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"removed": removed,
	})
}

func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status, code, cache := "healthy", http.StatusOK, "healthy"
	if err := s.engine.Health(ctx); err != nil {
		s.logger.WithError(err).Warn("Health check failed")
		status, code, cache = "degraded", http.StatusServiceUnavailable, err.Error()
	}

	writeJSON(w, code, map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.startTime).String(),
		"services": map[string]string{
			"cache": cache,
		},
	})
}

func (s *Server) rootHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"name":        "Forecasting Engine",
		"version":     "0.1.0",
		"description": "Multi-model business metric forecasting with risk and scenario analysis",
		"endpoints": map[string]string{
			"POST /api/v1/forecasts":                 "Generate a forecast",
			"POST /api/v1/forecasts/validate":        "Validate a forecast request",
			"DELETE /api/v1/forecasts/{fingerprint}": "Drop a cached forecast",
			"GET /api/v1/forecasts/capabilities":     "Supported metrics, algorithms and limits",
			"GET /api/v1/cache/stats":                "Result cache statistics",
			"GET /api/v1/cache/entries":              "Cached forecasts of an organization",
			"DELETE /api/v1/cache":                   "Clear cached forecasts",
			"GET /health":                            "Health check",
			"GET /metrics":                           "Prometheus metrics",
		},
	})
}
