package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"forecasting-engine/analytics"
	"forecasting-engine/forecasting"
)

const (
	defaultServerURL = "http://localhost:8080"
	version          = "0.1.0"
)

type CLIConfig struct {
	ServerURL string
	Token     string
	Verbose   bool
}

// seriesOptions are the flags shared by every command that builds a request from values
type seriesOptions struct {
	metric    *string
	org       *string
	user      *string
	unit      *string
	periods   *int
	scenarios *bool
	insights  *bool
}

func main() {
	var (
		serverURL = flag.String("server", defaultServerURL, "Forecasting server URL")
		token     = flag.String("token", os.Getenv("FORECAST_TOKEN"), "Bearer token")
		verbose   = flag.Bool("v", false, "Verbose output")
		help      = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	args := flag.Args()
	if *help || len(args) == 0 {
		showHelp()
		return
	}

	config := CLIConfig{
		ServerURL: strings.TrimRight(*serverURL, "/"),
		Token:     *token,
		Verbose:   *verbose,
	}

	command, rest := args[0], args[1:]

	var err error
	switch command {
	case "forecast":
		err = handleForecast(config, rest)
	case "validate":
		err = handleValidate(config, rest)
	case "capabilities":
		err = handleCapabilities(config)
	case "stats":
		err = handleStats(config)
	case "health":
		err = handleHealth(config)
	case "demo":
		err = handleDemo(config, rest)
	case "benchmark":
		err = handleBenchmark(config, rest)
	default:
		fmt.Printf("Unknown command: %s\n", command)
		showHelp()
		os.Exit(1)
	}

	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func showHelp() {
	fmt.Printf(`Forecasting Engine CLI v%s

USAGE:
    forecast-cli [options] <command> [command options]

COMMANDS:
    forecast     - Generate a forecast
    validate     - Validate a forecast request without running it
    capabilities - Show supported metrics, algorithms and limits
    stats        - Show result cache statistics
    health       - Check service health
    demo         - Forecast a generated seasonal series
    benchmark    - Send concurrent identical requests

FORECASTING:
    forecast-cli forecast --file request.json
    forecast-cli forecast --metric revenue --values "100,105,110,108,115,120" --unit MONTH --periods 6
    forecast-cli forecast --metric revenue --values "..." --org acme --scenarios --insights

OPTIONS:
    --server   Server URL (default: http://localhost:8080)
    --token    Bearer token (default: $FORECAST_TOKEN)
    --v        Verbose output
    --help     Show this help message

EXAMPLES:
    forecast-cli demo --months 36 --periods 12
    forecast-cli benchmark --concurrency 20
    forecast-cli --server http://forecast:8080 capabilities

`, version)
}

func newFlagSet(name string) *flag.FlagSet {
	return flag.NewFlagSet(name, flag.ContinueOnError)
}

func addSeriesFlags(fs *flag.FlagSet, periods int) seriesOptions {
	return seriesOptions{
		metric:    fs.String("metric", "revenue", "Target metric"),
		org:       fs.String("org", "demo-org", "Organization id"),
		user:      fs.String("user", "cli", "User id"),
		unit:      fs.String("unit", "MONTH", "Series and horizon unit (DAY, WEEK, MONTH, QUARTER, YEAR)"),
		periods:   fs.Int("periods", periods, "Number of periods to forecast"),
		scenarios: fs.Bool("scenarios", false, "Include scenario analysis"),
		insights:  fs.Bool("insights", false, "Include narrative insights"),
	}
}

// requestFromArgs builds a request from --file or from --values and the series flags
func requestFromArgs(name string, args []string) (*forecasting.ForecastRequest, error) {
	fs := newFlagSet(name)
	file := fs.String("file", "", "Forecast request JSON file")
	values := fs.String("values", "", "Comma separated historical values, oldest first")
	opts := addSeriesFlags(fs, 6)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if *file != "" {
		data, err := os.ReadFile(*file)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", *file, err)
		}
		var req forecasting.ForecastRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", *file, err)
		}
		return &req, nil
	}

	parsed, err := parseValues(*values)
	if err != nil {
		return nil, err
	}
	return buildRequest(opts, parsed, time.Now())
}

func buildRequest(opts seriesOptions, values []float64, now time.Time) (*forecasting.ForecastRequest, error) {
	unit, err := analytics.ParseUnit(*opts.unit)
	if err != nil {
		return nil, err
	}
	return &forecasting.ForecastRequest{
		Owner: forecasting.OwnerIDs{
			OrganizationID: *opts.org,
			UserID:         *opts.user,
		},
		TargetMetric:   *opts.metric,
		HistoricalData: seriesPoints(values, unit, now),
		ForecastHorizon: forecasting.ForecastHorizon{
			Periods: *opts.periods,
			Unit:    unit,
		},
		Preferences: forecasting.Preferences{
			IncludeScenarios: *opts.scenarios,
			IncludeInsights:  *opts.insights,
		},
	}, nil
}

func handleForecast(config CLIConfig, args []string) error {
	req, err := requestFromArgs("forecast", args)
	if err != nil {
		return err
	}
	return postForecast(config, req)
}

func handleValidate(config CLIConfig, args []string) error {
	req, err := requestFromArgs("validate", args)
	if err != nil {
		return err
	}

	body, err := doRequest(config, http.MethodPost, "/api/v1/forecasts/validate", req)
	if err != nil {
		return err
	}
	fmt.Printf("✓ Request is valid: %s\n", strings.TrimSpace(string(body)))
	return nil
}

func postForecast(config CLIConfig, req *forecasting.ForecastRequest) error {
	body, err := doRequest(config, http.MethodPost, "/api/v1/forecasts", req)
	if err != nil {
		return err
	}

	var result forecasting.ForecastResult
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	printForecast(&result)

	if config.Verbose {
		printPretty(body)
	}
	return nil
}

func printForecast(result *forecasting.ForecastResult) {
	fmt.Printf("📈 Forecast for %s (confidence %.2f, risk %s, cached %v)\n",
		result.TargetMetric, result.Confidence, result.RiskAssessment.OverallRisk, result.Cached)
	fmt.Printf("Trend: %s  Seasonality: %v (%.2f)  Volatility: %s\n",
		result.Patterns.Trend.LongTerm, result.Patterns.Seasonality.Detected,
		result.Patterns.Seasonality.Strength, result.Patterns.Volatility.Level)

	fmt.Println("\nPeriod       Value          Lower          Upper          Conf  Risk")
	for _, p := range result.Predictions {
		fmt.Printf("%-12s %-14.2f %-14.2f %-14.2f %.2f  %s\n",
			p.Period.Format("2006-01-02"), p.PredictedValue,
			p.ConfidenceInterval.Lower, p.ConfidenceInterval.Upper,
			p.ConfidenceInterval.Confidence, p.RiskLevel)
	}

	if len(result.Scenarios) > 0 {
		fmt.Println("\nScenarios:")
		for _, s := range result.Scenarios {
			fmt.Printf("  %-12s p=%.2f total=%.2f\n", s.Name, s.Probability, s.Impact.TotalValue)
		}
	}
	for _, w := range result.Warnings {
		fmt.Printf("⚠️  %s\n", w)
	}
}

func handleCapabilities(config CLIConfig) error {
	body, err := doRequest(config, http.MethodGet, "/api/v1/forecasts/capabilities", nil)
	if err != nil {
		return fmt.Errorf("getting capabilities: %w", err)
	}
	printPretty(body)
	return nil
}

func handleStats(config CLIConfig) error {
	body, err := doRequest(config, http.MethodGet, "/api/v1/cache/stats", nil)
	if err != nil {
		return fmt.Errorf("getting stats: %w", err)
	}
	fmt.Println("📊 Cache Statistics")
	printPretty(body)
	return nil
}

func handleHealth(config CLIConfig) error {
	body, err := doRequest(config, http.MethodGet, "/health", nil)
	if err != nil {
		fmt.Println("❌ Health check failed")
		return err
	}

	var health map[string]interface{}
	if err := json.Unmarshal(body, &health); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	fmt.Printf("✅ Service is %v (uptime %v)\n", health["status"], health["uptime"])
	if config.Verbose {
		printPretty(body)
	}
	return nil
}

func handleDemo(config CLIConfig, args []string) error {
	fs := newFlagSet("demo")
	months := fs.Int("months", 36, "Months of generated history")
	opts := addSeriesFlags(fs, 12)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *months < analytics.MinimumPoints {
		return fmt.Errorf("--months must be at least %d", analytics.MinimumPoints)
	}

	fmt.Printf("🚀 Generating %d months of seasonal revenue...\n", *months)
	values := make([]float64, *months)
	for i := range values {
		trend := 100000 + 2500*float64(i)
		season := 1 + 0.15*math.Sin(2*math.Pi*float64(i%12)/12)
		noise := 1 + (rand.Float64()-0.5)*0.04
		values[i] = math.Round(trend * season * noise)
	}

	*opts.unit = string(analytics.UnitMonth)
	*opts.scenarios = true
	req, err := buildRequest(opts, values, time.Now())
	if err != nil {
		return err
	}
	return postForecast(config, req)
}

func handleBenchmark(config CLIConfig, args []string) error {
	fs := newFlagSet("benchmark")
	concurrency := fs.Int("concurrency", 10, "Number of identical concurrent requests")
	opts := addSeriesFlags(fs, 6)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *concurrency <= 0 {
		return fmt.Errorf("--concurrency must be a positive integer")
	}

	values := []float64{100000, 105000, 110000, 108000, 115000, 120000, 118000, 125000, 130000, 135000, 128000, 140000}
	req, err := buildRequest(opts, values, time.Now())
	if err != nil {
		return err
	}
	req.ID = fmt.Sprintf("bench-%d", time.Now().UnixNano())

	fmt.Printf("🏁 Sending %d identical forecast requests...\n", *concurrency)
	start := time.Now()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok       int
		failures int
	)
	for i := 0; i < *concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := doRequest(config, http.MethodPost, "/api/v1/forecasts", req)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures++
				return
			}
			ok++
		}()
	}
	wg.Wait()

	elapsed := time.Since(start)
	fmt.Printf("✓ %d succeeded, %d failed in %v (%.1f req/s)\n",
		ok, failures, elapsed, float64(*concurrency)/elapsed.Seconds())
	if failures > 0 {
		return fmt.Errorf("%d of %d requests failed", failures, *concurrency)
	}
	return handleStats(config)
}

// doRequest sends a JSON request and returns the body of a 200 response
func doRequest(config CLIConfig, method, path string, payload interface{}) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, config.ServerURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+config.Token)
	}

	client := &http.Client{Timeout: 60 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return body, fmt.Errorf("request failed (%d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}

func printPretty(body []byte) {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, body, "", "  "); err != nil {
		fmt.Println(string(body))
		return
	}
	fmt.Println(pretty.String())
}

// seriesPoints lays values out one unit apart, the last one at the start of the current period
func seriesPoints(values []float64, unit analytics.HorizonUnit, now time.Time) []analytics.DataPoint {
	now = now.UTC()
	end := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	switch unit {
	case analytics.UnitMonth, analytics.UnitQuarter, analytics.UnitYear:
		end = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	}

	points := make([]analytics.DataPoint, len(values))
	for i, v := range values {
		points[i] = analytics.DataPoint{Timestamp: unit.Step(end, i-len(values)+1), Value: v}
	}
	return points
}

func parseValues(s string) ([]float64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, fmt.Errorf("--values or --file is required")
	}
	var values []float64
	for _, part := range strings.Split(s, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid value %q: %w", part, err)
		}
		values = append(values, v)
	}
	return values, nil
}
