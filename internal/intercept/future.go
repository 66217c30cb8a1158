package intercept

import (
	"context"
	"fmt"
)

// Deferred is a result that settles later. An intercepted method whose first
// return value implements Deferred is observed asynchronously: the wrapper
// returns the value untouched and emits once it settles.
type Deferred interface {
	Done() <-chan struct{}
	Result() (any, error)
}

// Future is a Deferred settled by a single producer.
type Future struct {
	done  chan struct{}
	value any
	err   error
}

// Go runs fn on a new goroutine and returns a Future for its outcome. A panic
// in fn rejects the future with a *PanicError.
func Go(fn func() (any, error)) *Future {
	f := &Future{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		defer func() {
			if r := recover(); r != nil {
				f.err = &PanicError{Value: r}
			}
		}()
		f.value, f.err = fn()
	}()
	return f
}

// Resolved returns a future already fulfilled with v.
func Resolved(v any) *Future {
	f := &Future{done: make(chan struct{}), value: v}
	close(f.done)
	return f
}

// Rejected returns a future already failed with err.
func Rejected(err error) *Future {
	f := &Future{done: make(chan struct{}), err: err}
	close(f.done)
	return f
}

// Done is closed once the future settles.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Result returns the outcome. It blocks until the future settles.
func (f *Future) Result() (any, error) {
	<-f.done
	return f.value, f.err
}

// Await waits for the outcome or for ctx to end.
func (f *Future) Await(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// PanicError carries a recovered panic value in event payloads.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap exposes the panic value when it is itself an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
