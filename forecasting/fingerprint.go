package forecasting

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"forecasting-engine/analytics"
)

// Fingerprint is the cache key of a request: target metric, horizon, organization,
// a content hash of the historical series and a hash of the options that shape the result.
// Point order in the request does not matter.
func Fingerprint(req *ForecastRequest) string {
	unit, err := analytics.ParseUnit(string(req.ForecastHorizon.Unit))
	if err != nil {
		unit = req.ForecastHorizon.Unit
	}

	parts := []string{
		strings.TrimSpace(req.TargetMetric),
		strconv.Itoa(req.ForecastHorizon.Periods),
		string(unit),
		req.Owner.OrganizationID,
		seriesHash(req.HistoricalData),
		optionsHash(req),
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

func seriesHash(points []analytics.DataPoint) string {
	sorted := make([]analytics.DataPoint, len(points))
	copy(sorted, points)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].Timestamp.Equal(sorted[j].Timestamp) {
			return sorted[i].Timestamp.Before(sorted[j].Timestamp)
		}
		return sorted[i].Value < sorted[j].Value
	})

	h := sha256.New()
	for _, p := range sorted {
		h.Write([]byte(strconv.FormatInt(p.Timestamp.UnixNano(), 10)))
		h.Write([]byte{':'})
		h.Write([]byte(strconv.FormatFloat(p.Value, 'g', -1, 64)))
		h.Write([]byte{';'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// optionsHash covers model configuration, contextual data and preferences.
// encoding/json sorts map keys, so equal options always hash equally.
func optionsHash(req *ForecastRequest) string {
	data, err := json.Marshal(struct {
		Models      ModelConfiguration `json:"m"`
		Context     *ContextualData    `json:"c"`
		Preferences Preferences        `json:"p"`
	}{req.ModelConfiguration, req.ContextualData, req.Preferences})
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
