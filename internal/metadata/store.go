package metadata

import (
	"reflect"
	"sync"
)

// Kind names a category of metadata attached to a type.
type Kind string

const (
	// KindParams maps constructor parameter positions to injection tokens.
	KindParams Kind = "inject:params"
	// KindProperties maps struct field names to injection tokens.
	KindProperties Kind = "inject:properties"
	// KindTelemetry maps method names to TelemetryOptions.
	KindTelemetry Kind = "telemetry"
	// KindTelemetryListeners marks methods that receive telemetry events.
	KindTelemetryListeners Kind = "telemetry:listeners"
	// KindPublish maps method names to PublishOptions.
	KindPublish Kind = "publish"
	// KindSubscribe maps event names to subscriber method names.
	KindSubscribe Kind = "subscribe"
	// KindSchedule maps method names to ScheduleSpec.
	KindSchedule Kind = "schedule"
)

type key struct {
	target reflect.Type
	kind   Kind
}

// Store is an associative store keyed by (type, kind). It holds data only.
type Store struct {
	mu      sync.RWMutex
	records map[key]any
}

var defaultStore = NewStore()

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{records: make(map[key]any)}
}

// Default returns the process-wide store.
func Default() *Store {
	return defaultStore
}

// Get returns the value recorded for (target, kind).
func (s *Store) Get(target reflect.Type, kind Kind) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.records[key{target, kind}]
	return v, ok
}

// Set records value for (target, kind), replacing any previous value.
func (s *Store) Set(target reflect.Type, kind Kind, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[key{target, kind}] = value
}

// Has reports whether a value is recorded for (target, kind).
func (s *Store) Has(target reflect.Type, kind Kind) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.records[key{target, kind}]
	return ok
}

// Delete removes the value recorded for (target, kind).
func (s *Store) Delete(target reflect.Type, kind Kind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key{target, kind})
}

// Update replaces the value for (target, kind) with fn(current) atomically.
// current is nil when nothing is recorded.
func (s *Store) Update(target reflect.Type, kind Kind, fn func(current any) any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key{target, kind}
	s.records[k] = fn(s.records[k])
}

// Len returns the number of records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
