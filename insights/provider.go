// Narrative insight generation through a hosted text model. Failures here are
// reported to the caller and never abort a forecast.
package insights

import (
	"context"
	"fmt"
	"strings"
	"time"

	"forecasting-engine/analytics"
)

// Provider is a hosted text-generation backend
type Provider interface {
	Name() string
	Generate(ctx context.Context, systemPrompt, prompt string) (string, error)
}

// Insight is one narrative observation about a forecast
type Insight struct {
	Type        string  `json:"type"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Impact      string  `json:"impact,omitempty"`
	Confidence  float64 `json:"confidence"`
}

// Response is the parsed collaborator output
type Response struct {
	Summary    string    `json:"summary"`
	Confidence float64   `json:"confidence"`
	Insights   []Insight `json:"insights"`
	Provider   string    `json:"provider,omitempty"`
}

// Input summarizes a forecast for the prompt
type Input struct {
	TargetMetric   string
	Periods        int
	Unit           analytics.HorizonUnit
	Patterns       analytics.HistoricalPatterns
	LastValue      float64
	FinalForecast  float64
	QualityScore   float64
	MarketThreats  []string
	Opportunities  []string
	PlannedActions []string
}

const systemPrompt = `You are a financial planning analyst for a professional-services firm.
Explain forecasts in plain business language. Respond with JSON only, using the shape
{"summary": string, "confidence": number between 0 and 1, "insights": [{"type": string, "title": string, "description": string, "impact": "LOW"|"MEDIUM"|"HIGH", "confidence": number}]}.`

// BuildPrompt renders the structured summary sent to the provider
func BuildPrompt(in Input) string {
	p := in.Patterns
	var b strings.Builder

	fmt.Fprintf(&b, "Target metric: %s\n", in.TargetMetric)
	fmt.Fprintf(&b, "Horizon: %d %s period(s)\n", in.Periods, strings.ToLower(string(in.Unit)))
	fmt.Fprintf(&b, "Last observed value: %.2f\n", in.LastValue)
	fmt.Fprintf(&b, "Forecast at end of horizon: %.2f\n", in.FinalForecast)
	fmt.Fprintf(&b, "Trend: long-term %s, short-term %s, slope %.4f, %d change point(s)\n",
		p.Trend.LongTerm, p.Trend.ShortTerm, p.Trend.Slope, len(p.Trend.ChangePoints))
	if p.Seasonality.Detected {
		fmt.Fprintf(&b, "Seasonality: detected, strength %.2f, period %d, peaks %s, troughs %s\n",
			p.Seasonality.Strength, p.Seasonality.Period, strings.Join(p.Seasonality.Peaks, "/"), strings.Join(p.Seasonality.Troughs, "/"))
	} else {
		b.WriteString("Seasonality: not detected\n")
	}
	fmt.Fprintf(&b, "Volatility: %s (coefficient of variation %.3f)\n", p.Volatility.Level, p.Volatility.Coefficient)
	if p.Cyclical.Detected {
		fmt.Fprintf(&b, "Cycle: period %d, strength %.2f\n", p.Cyclical.Period, p.Cyclical.Amplitude)
	}
	fmt.Fprintf(&b, "Data quality score: %.2f\n", in.QualityScore)

	if len(in.MarketThreats) > 0 {
		fmt.Fprintf(&b, "Market threats: %s\n", strings.Join(in.MarketThreats, "; "))
	}
	if len(in.Opportunities) > 0 {
		fmt.Fprintf(&b, "Market opportunities: %s\n", strings.Join(in.Opportunities, "; "))
	}
	if len(in.PlannedActions) > 0 {
		fmt.Fprintf(&b, "Planned initiatives: %s\n", strings.Join(in.PlannedActions, "; "))
	}

	b.WriteString("\nGive 2-4 insights covering the trend, risks and recommended actions.")
	return b.String()
}

// Config controls the collaborator call
type Config struct {
	Timeout           time.Duration
	MaxRetries        int
	RetryBackoff      time.Duration
	RequestsPerSecond float64
	Burst             int
}
