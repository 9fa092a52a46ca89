package insights

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	defaultTimeout      = 10 * time.Second
	defaultRetryBackoff = 500 * time.Millisecond
)

// Generator calls a provider with a bounded timeout, a rate limit and a small retry budget
type Generator struct {
	provider Provider
	config   Config
	limiter  *rate.Limiter
	logger   *logrus.Logger
}

// NewGenerator wraps provider. A non-positive RequestsPerSecond disables rate limiting.
func NewGenerator(provider Provider, config Config, logger *logrus.Logger) *Generator {
	if config.Timeout <= 0 {
		config.Timeout = defaultTimeout
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	if config.RetryBackoff <= 0 {
		config.RetryBackoff = defaultRetryBackoff
	}
	if config.Burst <= 0 {
		config.Burst = 1
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	limit := rate.Inf
	if config.RequestsPerSecond > 0 {
		limit = rate.Limit(config.RequestsPerSecond)
	}

	return &Generator{
		provider: provider,
		config:   config,
		limiter:  rate.NewLimiter(limit, config.Burst),
		logger:   logger,
	}
}

// Provider returns the wrapped provider's name
func (g *Generator) Provider() string {
	return g.provider.Name()
}

// Generate produces insights for a forecast. An empty reply yields ErrEmptyResponse;
// parse failures never surface because unparsable text is kept as narrative.
func (g *Generator) Generate(ctx context.Context, in Input) (*Response, error) {
	prompt := BuildPrompt(in)

	var lastErr error
	for attempt := 0; attempt <= g.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * g.config.RetryBackoff
			g.logger.WithFields(logrus.Fields{
				"provider": g.provider.Name(),
				"attempt":  attempt + 1,
				"backoff":  backoff,
			}).WithError(lastErr).Warn("Retrying insight generation")

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		text, err := g.call(ctx, prompt)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}

		resp, err := ParseResponse(text)
		if err != nil {
			return nil, err
		}
		resp.Provider = g.provider.Name()
		return resp, nil
	}

	return nil, fmt.Errorf("insight generation failed after %d attempt(s): %w", g.config.MaxRetries+1, lastErr)
}

func (g *Generator) call(ctx context.Context, prompt string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, g.config.Timeout)
	defer cancel()

	if err := g.limiter.Wait(callCtx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	start := time.Now()
	text, err := g.provider.Generate(callCtx, systemPrompt, prompt)
	if err != nil {
		if callCtx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("%s timed out after %s: %w", g.provider.Name(), g.config.Timeout, callCtx.Err())
		}
		return "", err
	}

	g.logger.WithFields(logrus.Fields{
		"provider": g.provider.Name(),
		"duration": time.Since(start),
		"bytes":    len(text),
	}).Debug("Insight generation complete")
	return text, nil
}
