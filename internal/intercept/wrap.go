package intercept

import (
	"fmt"
	"reflect"
	"time"

	"github.com/fatih/color"

	"github.com/xraph/conductor/internal/events"
	"github.com/xraph/conductor/internal/metadata"
	"github.com/xraph/conductor/logger"
)

// Emitter receives invocation events.
type Emitter interface {
	Emit(event string, payload any)
}

// Options identifies the wrapped method and selects what the wrapper emits.
type Options struct {
	Class  string
	Method string
	// Event is the target event. Telemetry forces events.Telemetry.
	Event string
	Phase metadata.Phase
	// Logging prints one line per invocation through Logger.
	Logging bool
	Logger  logger.Logger
}

var (
	errorType    = reflect.TypeFor[error]()
	deferredType = reflect.TypeFor[Deferred]()

	statusOK    = color.New(color.FgGreen).SprintFunc()
	statusError = color.New(color.FgRed).SprintFunc()
)

// Telemetry wraps fn so every call emits one events.Telemetry event once the
// call settles.
func Telemetry(fn reflect.Value, emitter Emitter, opts Options) (reflect.Value, error) {
	opts.Event = events.Telemetry
	opts.Phase = metadata.PhaseAfter
	return Wrap(fn, emitter, opts)
}

// Publish wraps fn so calls emit opts.Event according to opts.Phase.
func Publish(fn reflect.Value, emitter Emitter, opts Options) (reflect.Value, error) {
	if opts.Event == "" {
		return reflect.Value{}, fmt.Errorf("publish %s.%s: event name is required", opts.Class, opts.Method)
	}
	return Wrap(fn, emitter, opts)
}

// Wrap returns a function with the same signature as fn. Return values,
// returned errors and panics of fn reach the caller unchanged.
func Wrap(fn reflect.Value, emitter Emitter, opts Options) (reflect.Value, error) {
	if !fn.IsValid() || fn.Kind() != reflect.Func || fn.IsNil() {
		return reflect.Value{}, fmt.Errorf("wrap %s.%s: not a function", opts.Class, opts.Method)
	}
	if opts.Phase == "" {
		opts.Phase = metadata.PhaseAfter
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNoopLogger()
	}

	w := &wrapper{fn: fn, fnType: fn.Type(), emitter: emitter, opts: opts}
	return reflect.MakeFunc(w.fnType, w.call), nil
}

type wrapper struct {
	fn      reflect.Value
	fnType  reflect.Type
	emitter Emitter
	opts    Options
}

func (w *wrapper) call(in []reflect.Value) (out []reflect.Value) {
	start := time.Now()
	args := argsOf(in, w.fnType.IsVariadic())

	if w.opts.Phase.EmitsBefore() {
		w.emit(events.Invocation{
			Class:  w.opts.Class,
			Method: w.opts.Method,
			Event:  w.eventLabel(),
			Phase:  string(metadata.PhaseBefore),
			Args:   args,
			Start:  start,
			End:    time.Now(),
		})
	}

	returned := false
	defer func() {
		if returned {
			return
		}
		r := recover()
		if r == nil {
			// runtime.Goexit, nothing to report
			return
		}
		w.settle(args, start, nil, &PanicError{Value: r})
		panic(r)
	}()

	if w.fnType.IsVariadic() {
		out = w.fn.CallSlice(in)
	} else {
		out = w.fn.Call(in)
	}
	returned = true

	result, err := w.split(out)
	if err == nil {
		if d := deferredOf(out); d != nil {
			go func() {
				<-d.Done()
				value, err := d.Result()
				w.settle(args, start, value, err)
			}()
			return out
		}
	}

	w.settle(args, start, result, err)
	return out
}

func (w *wrapper) settle(args []any, start time.Time, result any, err error) {
	end := time.Now()

	if w.opts.Phase.EmitsAfter() {
		inv := events.Invocation{
			Class:  w.opts.Class,
			Method: w.opts.Method,
			Event:  w.eventLabel(),
			Phase:  string(metadata.PhaseAfter),
			Args:   args,
			Start:  start,
			End:    end,
			Err:    err,
		}
		if err == nil {
			inv.Result = result
		}
		w.emit(inv)
	}

	if w.opts.Logging {
		w.log(end.Sub(start), err)
	}
}

func (w *wrapper) emit(inv events.Invocation) {
	if w.emitter != nil {
		w.emitter.Emit(w.opts.Event, inv)
	}
}

// eventLabel is empty for telemetry so payloads only name user events.
func (w *wrapper) eventLabel() string {
	if w.opts.Event == events.Telemetry {
		return ""
	}
	return w.opts.Event
}

func (w *wrapper) log(elapsed time.Duration, err error) {
	target := ""
	if label := w.eventLabel(); label != "" {
		target = " -> " + label
	}
	ms := float64(elapsed.Microseconds()) / 1000

	fields := []logger.Field{
		logger.String("class", w.opts.Class),
		logger.String("method", w.opts.Method),
		logger.Float64("elapsed_ms", ms),
	}
	if target != "" {
		fields = append(fields, logger.String("event", w.eventLabel()))
	}

	if err != nil {
		fields = append(fields, logger.Error(err))
		w.opts.Logger.Warn(fmt.Sprintf("%s.%s%s %s (%.2fms)", w.opts.Class, w.opts.Method, target, statusError("error"), ms), fields...)
		return
	}
	w.opts.Logger.Info(fmt.Sprintf("%s.%s%s %s (%.2fms)", w.opts.Class, w.opts.Method, target, statusOK("ok"), ms), fields...)
}

// split separates a trailing error from the other return values. A single
// remaining value is returned as is; several are returned as []any.
func (w *wrapper) split(out []reflect.Value) (any, error) {
	values := out
	var err error

	if n := len(out); n > 0 && w.fnType.Out(n-1).Implements(errorType) {
		values = out[:n-1]
		if last := out[n-1]; !isNil(last) {
			err = last.Interface().(error)
		}
	}

	switch len(values) {
	case 0:
		return nil, err
	case 1:
		return values[0].Interface(), err
	default:
		result := make([]any, len(values))
		for i, v := range values {
			result[i] = v.Interface()
		}
		return result, err
	}
}

func deferredOf(out []reflect.Value) Deferred {
	if len(out) == 0 || isNil(out[0]) || !out[0].Type().Implements(deferredType) {
		return nil
	}
	d, _ := out[0].Interface().(Deferred)
	return d
}

func argsOf(in []reflect.Value, variadic bool) []any {
	args := make([]any, 0, len(in))
	for i, v := range in {
		if variadic && i == len(in)-1 {
			for j := range v.Len() {
				args = append(args, v.Index(j).Interface())
			}
			continue
		}
		args = append(args, v.Interface())
	}
	return args
}

func isNil(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func:
		return v.IsNil()
	default:
		return false
	}
}
