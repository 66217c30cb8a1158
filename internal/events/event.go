package events

import (
	"time"
)

// Built-in event names.
const (
	Registered  = "registered"
	Resolved    = "resolved"
	Constructed = "constructed"
	Cleared     = "cleared"
	Telemetry   = "telemetry"
)

// Service kinds carried by RegisteredPayload.
const (
	KindClass   = "class"
	KindFactory = "factory"
)

// Event is one notification delivered to listeners.
type Event struct {
	ID      string
	Name    string
	Time    time.Time
	Payload any
}

// Listener handles an event. A returned error is logged and isolated.
type Listener func(evt Event) error

// RegisteredPayload accompanies Registered.
type RegisteredPayload struct {
	Token     any
	Name      string
	Singleton bool
	Kind      string
}

// ResolvedPayload accompanies Resolved.
type ResolvedPayload struct {
	Token     any
	Name      string
	Instance  any
	Singleton bool
	FromCache bool
}

// ConstructedPayload accompanies Constructed.
type ConstructedPayload struct {
	Token     any
	Name      string
	Instance  any
	Overrides map[int]any
}

// ClearedPayload accompanies Cleared.
type ClearedPayload struct {
	Count int
}

// Invocation describes one call of an intercepted method. It is the payload
// of Telemetry and of every publish event.
type Invocation struct {
	Class  string
	Method string
	// Event is the target event name; empty for telemetry.
	Event string
	// Phase is "before" for pre-call emissions and "after" otherwise.
	Phase  string
	Args   []any
	Start  time.Time
	End    time.Time
	Result any
	Err    error
}

// Duration returns the elapsed time between Start and End.
func (i Invocation) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// Failed reports whether the invocation carries an error.
func (i Invocation) Failed() bool {
	return i.Err != nil
}
