package events

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xraph/conductor/logger"
)

func newObservedBus() (*Bus, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return NewBus(logger.NewFromZap(zap.New(core))), logs
}

func TestBus_DeliversInRegistrationOrder(t *testing.T) {
	bus, _ := newObservedBus()

	var order []string
	for _, name := range []string{"first", "second", "third"} {
		bus.On("resolved", func(evt Event) error {
			order = append(order, name)
			return nil
		})
	}

	bus.Emit("resolved", ResolvedPayload{Name: "Mailer"})

	assert.Equal(t, []string{"first", "second", "third"}, order)
}

func TestBus_EventEnvelope(t *testing.T) {
	bus, _ := newObservedBus()
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	bus.now = func() time.Time { return fixed }

	var got Event
	bus.On("cleared", func(evt Event) error {
		got = evt
		return nil
	})

	bus.Emit("cleared", ClearedPayload{Count: 3})

	assert.NotEmpty(t, got.ID)
	assert.Equal(t, "cleared", got.Name)
	assert.Equal(t, fixed, got.Time)
	assert.Equal(t, ClearedPayload{Count: 3}, got.Payload)
}

func TestBus_FailingListenerIsIsolated(t *testing.T) {
	bus, logs := newObservedBus()

	var calls []string
	bus.On("telemetry", func(Event) error {
		calls = append(calls, "erroring")
		return errors.New("listener broke")
	})
	bus.On("telemetry", func(Event) error {
		calls = append(calls, "panicking")
		panic("listener exploded")
	})
	bus.On("telemetry", func(Event) error {
		calls = append(calls, "healthy")
		return nil
	})

	assert.NotPanics(t, func() { bus.Emit("telemetry", Invocation{}) })

	assert.Equal(t, []string{"erroring", "panicking", "healthy"}, calls)

	warnings := logs.FilterMessage("event listener failed").All()
	require.Len(t, warnings, 2)
	assert.Equal(t, "listener broke", warnings[0].ContextMap()["error"])
	assert.Contains(t, warnings[1].ContextMap()["error"], "listener exploded")
}

func TestBus_OffAndUnsubscribe(t *testing.T) {
	bus, _ := newObservedBus()

	var a, b int
	subA := bus.On("evt", func(Event) error { a++; return nil })
	subB := bus.On("evt", func(Event) error { b++; return nil })
	assert.Equal(t, 2, bus.Listeners("evt"))

	bus.Emit("evt", nil)

	assert.True(t, bus.Off("evt", subA.ID))
	assert.False(t, bus.Off("evt", subA.ID))
	assert.False(t, bus.Off("other", subB.ID))

	bus.Emit("evt", nil)

	subB.Unsubscribe()
	subB.Unsubscribe()
	assert.Equal(t, 0, bus.Listeners("evt"))

	bus.Emit("evt", nil)

	assert.Equal(t, 1, a)
	assert.Equal(t, 2, b)
}

func TestBus_UnsubscribeDuringEmit(t *testing.T) {
	bus, _ := newObservedBus()

	var second int
	var first *Subscription
	first = bus.On("evt", func(Event) error {
		first.Unsubscribe()
		return nil
	})
	bus.On("evt", func(Event) error { second++; return nil })

	bus.Emit("evt", nil)
	bus.Emit("evt", nil)

	assert.Equal(t, 2, second)
	assert.Equal(t, 1, bus.Listeners("evt"))
}

func TestBus_EmitWithoutListeners(t *testing.T) {
	bus, _ := newObservedBus()
	assert.NotPanics(t, func() { bus.Emit("nobody", 1) })
}

func TestBus_ConcurrentEmit(t *testing.T) {
	bus := NewBus(nil)

	var mu sync.Mutex
	count := 0
	bus.On("evt", func(Event) error {
		mu.Lock()
		count++
		mu.Unlock()
		return nil
	})

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bus.Emit("evt", nil)
		}()
	}
	wg.Wait()

	assert.Equal(t, 20, count)
}

func TestInvocation(t *testing.T) {
	start := time.Now()
	inv := Invocation{Start: start, End: start.Add(15 * time.Millisecond)}
	assert.Equal(t, 15*time.Millisecond, inv.Duration())
	assert.False(t, inv.Failed())

	inv.Err = errors.New("x")
	assert.True(t, inv.Failed())
}
