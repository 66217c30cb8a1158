package observability

import (
	"github.com/xraph/conductor/internal/events"
)

// Source is anything that delivers lifecycle events, usually a registry.
type Source interface {
	On(event string, listener events.Listener) *events.Subscription
}

// JobCounter reports the number of live scheduled jobs.
type JobCounter interface {
	JobCount() int
}

// detach returns a func that unsubscribes every subscription once.
func detach(subs []*events.Subscription) func() {
	return func() {
		for _, sub := range subs {
			sub.Unsubscribe()
		}
	}
}
