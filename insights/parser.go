package insights

import (
	"encoding/json"
	"errors"
	"math"
	"strings"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
)

// ErrEmptyResponse is returned when the provider answered with no usable text
var ErrEmptyResponse = errors.New("empty insight response")

const unstructuredConfidence = 0.5

// ParseResponse reads the provider's reply. Malformed JSON is repaired when possible;
// text that is not JSON at all becomes a single narrative insight.
func ParseResponse(text string) (*Response, error) {
	trimmed := stripCodeFence(strings.TrimSpace(text))
	if trimmed == "" {
		return nil, ErrEmptyResponse
	}

	resp, ok := decode(trimmed)
	if !ok && json.Valid([]byte(trimmed)) {
		// well-formed but carries no summary or insights
		return nil, ErrEmptyResponse
	}
	if !ok {
		if repaired, err := jsonrepair.RepairJSON(trimmed); err == nil {
			resp, ok = decode(repaired)
		}
	}
	if !ok {
		return &Response{
			Summary:    trimmed,
			Confidence: unstructuredConfidence,
			Insights: []Insight{{
				Type:        "NARRATIVE",
				Title:       "Forecast commentary",
				Description: trimmed,
				Confidence:  unstructuredConfidence,
			}},
		}, nil
	}

	resp.Confidence = normalizeConfidence(resp.Confidence)
	kept := resp.Insights[:0]
	for _, in := range resp.Insights {
		if strings.TrimSpace(in.Description) == "" && strings.TrimSpace(in.Title) == "" {
			continue
		}
		if in.Type == "" {
			in.Type = "GENERAL"
		}
		in.Confidence = normalizeConfidence(in.Confidence)
		kept = append(kept, in)
	}
	resp.Insights = kept

	if resp.Summary == "" && len(resp.Insights) == 0 {
		return nil, ErrEmptyResponse
	}
	return resp, nil
}

// decode accepts either the documented object or a bare array of insights
func decode(s string) (*Response, bool) {
	var resp Response
	if err := json.Unmarshal([]byte(s), &resp); err == nil {
		if resp.Summary != "" || len(resp.Insights) > 0 {
			return &resp, true
		}
	}

	var list []Insight
	if err := json.Unmarshal([]byte(s), &list); err == nil && len(list) > 0 {
		return &Response{Insights: list}, true
	}
	return nil, false
}

func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.Index(s, "\n"); nl >= 0 {
		s = s[nl+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}

// normalizeConfidence maps missing or out-of-range values into [0,1]
func normalizeConfidence(c float64) float64 {
	switch {
	case math.IsNaN(c) || c <= 0:
		return unstructuredConfidence
	case c > 1 && c <= 100:
		return c / 100
	case c > 1:
		return 1
	default:
		return c
	}
}
