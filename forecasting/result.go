package forecasting

import (
	"time"

	"forecasting-engine/analytics"
	"forecasting-engine/analytics/ml"
	"forecasting-engine/analytics/risk"
	"forecasting-engine/insights"
)

// NaiveAlgorithm marks results produced by last-value carry-forward
const NaiveAlgorithm ml.Algorithm = "NAIVE"

// QualityAssessment explains how the input series was cleaned and how far it can be trusted
type QualityAssessment struct {
	Score            float64  `json:"score"`
	OriginalCount    int      `json:"original_count"`
	PreparedCount    int      `json:"prepared_count"`
	OutliersRemoved  int      `json:"outliers_removed"`
	GapsFilled       int      `json:"gaps_filled"`
	Stale            bool     `json:"stale"`
	RecommendedCount int      `json:"recommended_count"`
	Degraded         bool     `json:"degraded"`
	Warnings         []string `json:"warnings,omitempty"`
}

// ModelSummary describes a model that contributed to the forecast
type ModelSummary struct {
	Algorithm ml.Algorithm `json:"algorithm"`
	Weight    float64      `json:"weight"`
	Seasonal  bool         `json:"seasonal,omitempty"`
	Accuracy  ml.Accuracy  `json:"accuracy"`
}

// ForecastResult is the complete output envelope. It is never modified after it is returned.
type ForecastResult struct {
	ID                string                      `json:"id"`
	RequestID         string                      `json:"request_id,omitempty"`
	OrganizationID    string                      `json:"organization_id"`
	TargetMetric      string                      `json:"target_metric"`
	Horizon           ForecastHorizon             `json:"forecast_horizon"`
	GeneratedAt       time.Time                   `json:"generated_at"`
	Predictions       []ml.ForecastPrediction     `json:"predictions"`
	Patterns          analytics.HistoricalPatterns `json:"patterns"`
	ModelsUsed        []ModelSummary              `json:"models_used"`
	QualityAssessment QualityAssessment           `json:"quality_assessment"`
	Confidence        float64                     `json:"confidence"`
	RiskAssessment    risk.Assessment             `json:"risk_assessment"`
	Scenarios         []risk.ScenarioAnalysis     `json:"scenarios,omitempty"`
	Insights          *insights.Response          `json:"insights,omitempty"`
	Warnings          []string                    `json:"warnings,omitempty"`
	Cached            bool                        `json:"cached"`
	Fingerprint       string                      `json:"fingerprint"`
	ProcessingTimeMs  int64                       `json:"processing_time_ms"`
}
