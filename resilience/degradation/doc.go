// Package degradation is the single entry point application code uses to
// call unreliable dependencies. Service.Execute routes every operation
// through a circuit breaker, bounds it with a timeout, retries with
// backoff, and substitutes a configured fallback when all attempts fail.
//
// Each dependency carries a health bucket (healthy, degraded, unavailable)
// settled from operation outcomes: a failing service with a working
// fallback is degraded, one without is unavailable, and a degraded service
// needs a full window of consecutive successes before it is healthy again.
package degradation
