package monitor

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter paces outbound calls to a rate-limited provider API
type RateLimiter struct {
	logger     *slog.Logger
	providerID string
	limiter    *rate.Limiter
}

// NewRateLimiter creates a limiter allowing perSecond calls with the given
// burst. A non-positive perSecond disables limiting.
func NewRateLimiter(logger *slog.Logger, providerID string, perSecond float64, burst int) *RateLimiter {
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		logger:     logger,
		providerID: providerID,
		limiter:    rate.NewLimiter(limit, burst),
	}
}

// Wait blocks until a call is permitted or ctx is done
func (r *RateLimiter) Wait(ctx context.Context) error {
	if r == nil {
		return nil
	}
	start := time.Now()
	if err := r.limiter.Wait(ctx); err != nil {
		return err
	}
	if waited := time.Since(start); waited > 100*time.Millisecond {
		r.logger.Debug("Rate limiter delayed outbound call",
			"provider", r.providerID,
			"waited", waited)
		RateLimitWaits.WithLabelValues(r.providerID).Inc()
	}
	return nil
}
