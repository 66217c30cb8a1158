package events

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/xraph/conductor/logger"
)

// Bus is an observer registry keyed by event name. Listeners of one event run
// in registration order; a failing listener does not affect the others.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string][]*Subscription
	logger logger.Logger
	now    func() time.Time
}

// Subscription identifies one listener registration.
type Subscription struct {
	ID       string
	Event    string
	listener Listener
	bus      *Bus
	once     sync.Once
}

// Unsubscribe removes the listener. It is safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.bus.Off(s.Event, s.ID)
	})
}

// NewBus creates a bus that logs listener failures through l.
func NewBus(l logger.Logger) *Bus {
	if l == nil {
		l = logger.NewNoopLogger()
	}
	return &Bus{
		subs:   make(map[string][]*Subscription),
		logger: l,
		now:    time.Now,
	}
}

// On registers listener for event.
func (b *Bus) On(event string, listener Listener) *Subscription {
	sub := &Subscription{
		ID:       uuid.NewString(),
		Event:    event,
		listener: listener,
		bus:      b,
	}

	b.mu.Lock()
	b.subs[event] = append(b.subs[event], sub)
	b.mu.Unlock()

	return sub
}

// Off removes the subscription id from event. It reports whether anything was removed.
func (b *Bus) Off(event, id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subs[event]
	idx := slices.IndexFunc(subs, func(s *Subscription) bool { return s.ID == id })
	if idx < 0 {
		return false
	}

	// copy so in-flight Emit snapshots stay intact
	next := slices.Delete(slices.Clone(subs), idx, idx+1)
	if len(next) == 0 {
		delete(b.subs, event)
	} else {
		b.subs[event] = next
	}
	return true
}

// Listeners returns the number of listeners registered for event.
func (b *Bus) Listeners(event string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[event])
}

// Emit delivers payload to every listener of event, synchronously and in
// registration order.
func (b *Bus) Emit(event string, payload any) {
	b.mu.RLock()
	subs := b.subs[event]
	b.mu.RUnlock()

	if len(subs) == 0 {
		return
	}

	evt := Event{
		ID:      uuid.NewString(),
		Name:    event,
		Time:    b.now(),
		Payload: payload,
	}

	for _, sub := range subs {
		if err := b.deliver(sub, evt); err != nil {
			b.logger.Warn("event listener failed",
				logger.String("event", event),
				logger.String("subscription", sub.ID),
				logger.Error(err),
			)
		}
	}
}

func (b *Bus) deliver(sub *Subscription, evt Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("listener panicked: %v", r)
		}
	}()
	return sub.listener(evt)
}
