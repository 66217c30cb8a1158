package observability

import (
	"fmt"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/xraph/conductor/config"
	"github.com/xraph/conductor/internal/events"
)

// Metrics turns lifecycle events into Prometheus series.
type Metrics struct {
	config     config.MetricsConfig
	registerer prometheus.Registerer

	registrations *prometheus.CounterVec
	resolutions   *prometheus.CounterVec
	constructions *prometheus.CounterVec
	clears        prometheus.Counter
	cleared       prometheus.Counter
	invocations   *prometheus.CounterVec
	duration      *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// uses prometheus.DefaultRegisterer. When metrics are disabled nothing is
// registered and Attach does nothing.
func NewMetrics(reg prometheus.Registerer, cfg config.MetricsConfig) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{config: cfg, registerer: reg}
	if !cfg.Enabled {
		return m, nil
	}

	namespace := cfg.Namespace
	subsystem := cfg.Subsystem

	m.registrations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "registrations_total",
			Help:      "Total number of service registrations",
		},
		[]string{"kind", "lifecycle"},
	)

	m.resolutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "resolutions_total",
			Help:      "Total number of service resolutions",
		},
		[]string{"service", "cached"},
	)

	m.constructions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "constructions_total",
			Help:      "Total number of explicit constructions",
		},
		[]string{"service"},
	)

	m.clears = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "clears_total",
		Help:      "Total number of registry clears",
	})

	m.cleared = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "cleared_services_total",
		Help:      "Total number of definitions dropped by clears",
	})

	m.invocations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "invocations_total",
			Help:      "Total number of intercepted method invocations",
		},
		[]string{"class", "method", "outcome"},
	)

	m.duration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "invocation_duration_seconds",
			Help:      "Intercepted method invocation duration in seconds",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"class", "method"},
	)

	for _, c := range []prometheus.Collector{
		m.registrations, m.resolutions, m.constructions,
		m.clears, m.cleared, m.invocations, m.duration,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
	}

	return m, nil
}

// Enabled reports whether the collectors are registered.
func (m *Metrics) Enabled() bool {
	return m.config.Enabled
}

// Attach subscribes to source and returns the func that detaches again.
func (m *Metrics) Attach(source Source) func() {
	if !m.Enabled() {
		return func() {}
	}

	subs := []*events.Subscription{
		source.On(events.Registered, m.onRegistered),
		source.On(events.Resolved, m.onResolved),
		source.On(events.Constructed, m.onConstructed),
		source.On(events.Cleared, m.onCleared),
		source.On(events.Telemetry, m.onTelemetry),
	}
	return detach(subs)
}

// WatchJobs exposes counter as the active_jobs gauge.
func (m *Metrics) WatchJobs(counter JobCounter) error {
	if !m.Enabled() {
		return nil
	}

	gauge := prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: m.config.Namespace,
			Subsystem: m.config.Subsystem,
			Name:      "active_jobs",
			Help:      "Number of live scheduled jobs",
		},
		func() float64 { return float64(counter.JobCount()) },
	)
	if err := m.registerer.Register(gauge); err != nil {
		return fmt.Errorf("failed to register job gauge: %w", err)
	}
	return nil
}

func (m *Metrics) onRegistered(evt events.Event) error {
	p, ok := evt.Payload.(events.RegisteredPayload)
	if !ok {
		return nil
	}

	lifecycle := "transient"
	if p.Singleton {
		lifecycle = "singleton"
	}
	m.registrations.WithLabelValues(p.Kind, lifecycle).Inc()
	return nil
}

func (m *Metrics) onResolved(evt events.Event) error {
	if p, ok := evt.Payload.(events.ResolvedPayload); ok {
		m.resolutions.WithLabelValues(p.Name, strconv.FormatBool(p.FromCache)).Inc()
	}
	return nil
}

func (m *Metrics) onConstructed(evt events.Event) error {
	if p, ok := evt.Payload.(events.ConstructedPayload); ok {
		m.constructions.WithLabelValues(p.Name).Inc()
	}
	return nil
}

func (m *Metrics) onCleared(evt events.Event) error {
	m.clears.Inc()
	if p, ok := evt.Payload.(events.ClearedPayload); ok {
		m.cleared.Add(float64(p.Count))
	}
	return nil
}

func (m *Metrics) onTelemetry(evt events.Event) error {
	inv, ok := evt.Payload.(events.Invocation)
	if !ok {
		return nil
	}

	outcome := "ok"
	if inv.Failed() {
		outcome = "error"
	}
	m.invocations.WithLabelValues(inv.Class, inv.Method, outcome).Inc()
	m.duration.WithLabelValues(inv.Class, inv.Method).Observe(inv.Duration().Seconds())
	return nil
}
