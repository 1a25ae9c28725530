package events

import (
	"github.com/thinkwithmahesh/Hasivu-sub009/resilience/circuitbreaker"
)

// BreakerStateListener bridges circuit breaker transitions into
// circuit.state.changed events. Register the returned listener on a
// circuitbreaker.Registry next to stores and monitors; delivery runs through
// the notifier so the breaker path never waits on a sink.
func BreakerStateListener(notifier *Notifier) circuitbreaker.ListenerFunc {
	return func(service string, from, to circuitbreaker.State) {
		notifier.Notify(NewBreakerStateChanged(service, string(from), string(to)))
	}
}
