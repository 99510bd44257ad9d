package metrics

import "time"

// APIMetrics provides observability for the HTTP API surface.
//
// Implementations can collect metrics about inbound requests, grant
// issuance, and commit outcomes. This interface is optional - if not
// provided to the router, a no-op implementation is used with zero
// overhead.
type APIMetrics interface {
	// RecordRequest records a completed request with its route, method,
	// response status, and duration.
	RecordRequest(route, method string, status int, duration time.Duration)

	// RecordRequestStart increments the in-flight request counter.
	RecordRequestStart(route string)

	// RecordRequestEnd decrements the in-flight request counter.
	RecordRequestEnd(route string)

	// RecordGrant records an issued signed-access grant.
	//
	// Parameters:
	//   - mode: "presigned" or "credential"
	//   - intent: "read" or "write"
	RecordGrant(mode, intent string)

	// RecordCommit records the outcome of one commit item.
	//
	// Parameters:
	//   - outcome: "success" or "failure"
	RecordCommit(outcome string)
}

// NewNoopAPIMetrics returns an APIMetrics implementation that discards
// everything.
func NewNoopAPIMetrics() APIMetrics {
	return noopAPIMetrics{}
}

type noopAPIMetrics struct{}

func (noopAPIMetrics) RecordRequest(route, method string, status int, duration time.Duration) {}
func (noopAPIMetrics) RecordRequestStart(route string)                                        {}
func (noopAPIMetrics) RecordRequestEnd(route string)                                          {}
func (noopAPIMetrics) RecordGrant(mode, intent string)                                        {}
func (noopAPIMetrics) RecordCommit(outcome string)                                            {}
