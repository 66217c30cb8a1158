package metadata

import (
	"maps"
	"reflect"
	"slices"
)

// Sides returns the static side (the struct type) and the instance side (the
// pointer type) of t.
func Sides(t reflect.Type) (static, instance reflect.Type) {
	if t.Kind() == reflect.Pointer {
		return t.Elem(), t
	}
	return t, reflect.PointerTo(t)
}

// merged copies the static side record first and the instance side record
// over it, so instance-side keys win.
func merged[K comparable, V any](s *Store, t reflect.Type, kind Kind) map[K]V {
	out := make(map[K]V)
	if t == nil {
		return out
	}
	static, instance := Sides(t)
	for _, side := range []reflect.Type{static, instance} {
		if v, ok := s.Get(side, kind); ok {
			if m, ok := v.(map[K]V); ok {
				maps.Copy(out, m)
			}
		}
	}
	return out
}

// Params returns constructor parameter injections for t.
func Params(s *Store, t reflect.Type) map[int]any {
	return merged[int, any](s, t, KindParams)
}

// Properties returns field injections for t.
func Properties(s *Store, t reflect.Type) map[string]any {
	return merged[string, any](s, t, KindProperties)
}

// Telemetry returns telemetry-wrapped methods for t.
func Telemetry(s *Store, t reflect.Type) map[string]TelemetryOptions {
	return merged[string, TelemetryOptions](s, t, KindTelemetry)
}

// TelemetryListeners returns methods subscribed to telemetry events for t.
func TelemetryListeners(s *Store, t reflect.Type) map[string]bool {
	return merged[string, bool](s, t, KindTelemetryListeners)
}

// Publishers returns publish-wrapped methods for t.
func Publishers(s *Store, t reflect.Type) map[string]PublishOptions {
	return merged[string, PublishOptions](s, t, KindPublish)
}

// Subscriptions returns event name to subscriber methods for t.
func Subscriptions(s *Store, t reflect.Type) map[string][]string {
	return merged[string, []string](s, t, KindSubscribe)
}

// Schedules returns scheduled methods for t.
func Schedules(s *Store, t reflect.Type) map[string]ScheduleSpec {
	return merged[string, ScheduleSpec](s, t, KindSchedule)
}

// SortedKeys returns the keys of m in ascending order.
func SortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}

// put stores k=v inside the map recorded for (t, kind), copying on write so
// maps handed out by merged stay immutable.
func put[K comparable, V any](s *Store, t reflect.Type, kind Kind, k K, v V) {
	s.Update(t, kind, func(current any) any {
		next := make(map[K]V)
		if m, ok := current.(map[K]V); ok {
			maps.Copy(next, m)
		}
		next[k] = v
		return next
	})
}
