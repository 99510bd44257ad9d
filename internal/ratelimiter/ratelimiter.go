// Package ratelimiter bounds the sustained request rate of the API
// surface using a token bucket.
//
// Signing and STS calls are comparatively expensive, so the limiter sits
// in front of the HTTP handlers and sheds load before any backend work
// happens. Bursts up to the bucket capacity are allowed; sustained
// traffic above the configured rate is rejected.
package ratelimiter

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter wraps golang.org/x/time/rate with the zero-means-unlimited
// convention used by the server configuration.
type RateLimiter struct {
	limiter *rate.Limiter
}

// effectively unlimited when no rate is configured
const unlimitedRate = 1_000_000_000

// New creates a limiter allowing requestsPerSecond sustained with bursts
// up to burst. A zero rate disables limiting.
func New(requestsPerSecond, burst uint) *RateLimiter {
	if requestsPerSecond == 0 {
		requestsPerSecond = unlimitedRate
		burst = unlimitedRate
	}
	if burst == 0 {
		burst = requestsPerSecond
	}

	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), int(burst)),
	}
}

// Allow reports whether one request may proceed right now, consuming a
// token when it may. It never blocks; callers reject the request when it
// returns false.
func (r *RateLimiter) Allow() bool {
	return r.limiter.Allow()
}

// Wait blocks until a token is available or the context is cancelled.
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}

// Tokens returns the number of tokens currently available. Useful for
// tests and debugging only; the value is stale as soon as it returns.
func (r *RateLimiter) Tokens() float64 {
	return r.limiter.TokensAt(time.Now())
}
