// Package healthmonitor polls dependency probes on a timer, merges the
// results with circuit breaker states and degradation buckets, and
// publishes immutable system health snapshots. It also backs the liveness
// and readiness endpoints.
//
// The monitor is the conservative aggregator: a service is reported
// unavailable when its probe fails, its breaker is open, or its
// degradation bucket says so, whichever is worse.
package healthmonitor
