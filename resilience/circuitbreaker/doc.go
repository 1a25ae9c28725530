// Package circuitbreaker provides a registry of per-dependency circuit
// breakers with forced-open overrides, state persistence, and state-change
// notification.
//
// Use NewRegistry to create the registry, then run calls through
// Registry.Call so failures are tracked consistently across callers. Calls
// rejected while a breaker is open fail with ErrCircuitOpen without
// touching the dependency.
package circuitbreaker
