package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/marmos91/filegate/internal/logger"
	"github.com/marmos91/filegate/internal/ratelimiter"
	"github.com/marmos91/filegate/pkg/identity"
	"github.com/marmos91/filegate/pkg/metrics"
	"github.com/marmos91/filegate/pkg/store/object"
)

// Identity propagation headers. An upstream authentication layer is
// expected to populate these on every call.
const (
	headerUserID    = "x-user-id"
	headerPartition = "data-partition-id"
)

// identityMiddleware extracts the caller's identity and partition from
// request headers into the request context. Requests without a partition
// are rejected; every record and address in the service is partition
// scoped, so there is nothing meaningful to do without one.
func identityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		partition := r.Header.Get(headerPartition)
		if partition == "" {
			writeError(w, &object.StoreError{
				Code:    object.ErrMalformedLocation,
				Message: "missing " + headerPartition + " header",
			})
			return
		}

		principal := identity.Principal{
			UserID:    r.Header.Get(headerUserID),
			Partition: partition,
		}
		next.ServeHTTP(w, r.WithContext(identity.NewContext(r.Context(), principal)))
	})
}

// requestLogger logs each completed request with its status and duration.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(wrapped, r)

		logger.Debug("%s %s -> %d (%s)", r.Method, r.URL.Path, wrapped.Status(), time.Since(start))
	})
}

// rateLimitMiddleware sheds requests above the configured rate before
// any handler work happens. Rejected requests get a 429 and never reach
// the signing backends.
func rateLimitMiddleware(limiter *ratelimiter.RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				writeJSON(w, http.StatusTooManyRequests, errorResponse{
					Code:    "TooManyRequests",
					Message: "request rate limit exceeded",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// metricsMiddleware records request counts, durations, and in-flight
// gauges per route pattern.
func metricsMiddleware(m metrics.APIMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			route := r.URL.Path
			m.RecordRequestStart(route)
			defer m.RecordRequestEnd(route)

			next.ServeHTTP(wrapped, r)

			// Prefer the chi route pattern to keep label cardinality bounded.
			if pattern := chi.RouteContext(r.Context()).RoutePattern(); pattern != "" {
				route = pattern
			}
			m.RecordRequest(route, r.Method, wrapped.Status(), time.Since(start))
		})
	}
}
