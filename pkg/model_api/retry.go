package api

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/alantheprice/yardcheck/pkg/utils"
)

// RetryGateway retries rate-limited calls on behalf of a caller that opted in.
// Every other failure is returned untouched.
type RetryGateway struct {
	next       Gateway
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	logger     *utils.Logger
	sleep      func(ctx context.Context, d time.Duration) error
}

// NewRetryGateway wraps next with sensible backoff defaults.
func NewRetryGateway(next Gateway, maxRetries int, logger *utils.Logger) *RetryGateway {
	return &RetryGateway{
		next:       next,
		MaxRetries: maxRetries,
		BaseDelay:  2 * time.Second,
		MaxDelay:   60 * time.Second,
		logger:     logger,
		sleep:      sleepContext,
	}
}

func (g *RetryGateway) Invoke(ctx context.Context, req Request) (string, error) {
	for attempt := 0; ; attempt++ {
		text, err := g.next.Invoke(ctx, req)
		if err == nil {
			return text, nil
		}

		var apiErr *RemoteAPIError
		if !errors.As(err, &apiErr) || !apiErr.IsRateLimited() || attempt >= g.MaxRetries {
			return "", err
		}

		delay := g.backoff(apiErr, attempt)
		g.logger.Logf("Gateway: rate limited by %s (attempt %d/%d), retrying in %s", req.Model.ID, attempt+1, g.MaxRetries, delay)
		if sleepErr := g.sleep(ctx, delay); sleepErr != nil {
			return "", classifyTransport("waiting for rate limit", sleepErr, ctx)
		}
	}
}

func (g *RetryGateway) backoff(apiErr *RemoteAPIError, attempt int) time.Duration {
	if apiErr.RetryAfter > 0 {
		return g.capDelay(apiErr.RetryAfter)
	}
	return g.capDelay(time.Duration(float64(g.BaseDelay) * math.Pow(2, float64(attempt))))
}

func (g *RetryGateway) capDelay(d time.Duration) time.Duration {
	if g.MaxDelay > 0 && d > g.MaxDelay {
		return g.MaxDelay
	}
	return d
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
