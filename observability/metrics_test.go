package observability

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/conductor/config"
	"github.com/xraph/conductor/internal/di"
	"github.com/xraph/conductor/internal/events"
	"github.com/xraph/conductor/internal/metadata"
)

type ledger struct{}

func newLedger() *ledger { return &ledger{} }

func (l *ledger) Post(amount int) error {
	if amount < 0 {
		return errors.New("negative amount")
	}
	return nil
}

func (l *ledger) Reconcile() {}

func newRegistry(t *testing.T) (*di.Registry, *metadata.Store) {
	t.Helper()
	store := metadata.NewStore()
	r := di.New(di.WithMetadata(store))
	t.Cleanup(r.Clear)
	return r, store
}

func testMetricsConfig() config.MetricsConfig {
	return config.MetricsConfig{Enabled: true, Namespace: "conductor", Subsystem: "test"}
}

func TestMetrics_LifecycleCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg, testMetricsConfig())
	require.NoError(t, err)

	r, _ := newRegistry(t)
	stop := m.Attach(r)

	require.NoError(t, r.Register(newLedger))
	require.NoError(t, r.RegisterFactory("dsn", func() string { return "" }, di.Transient()))

	_, err = r.Resolve(newLedger)
	require.NoError(t, err)
	_, err = r.Resolve(newLedger)
	require.NoError(t, err)
	_, err = r.Construct(newLedger, nil)
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.registrations.WithLabelValues("class", "singleton")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.registrations.WithLabelValues("factory", "transient")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.resolutions.WithLabelValues("ledger", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.resolutions.WithLabelValues("ledger", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.constructions.WithLabelValues("ledger")))

	r.Clear()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.clears))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.cleared))

	stop()
	require.NoError(t, r.Register(newLedger))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.registrations.WithLabelValues("class", "singleton")))
}

func TestMetrics_Invocations(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg, testMetricsConfig())
	require.NoError(t, err)

	r, store := newRegistry(t)
	metadata.Describe(store, reflect.TypeFor[ledger]()).Telemetry("Post")
	defer m.Attach(r)()

	require.NoError(t, r.Register(newLedger))
	l, err := r.Resolve(newLedger)
	require.NoError(t, err)

	_, err = r.Invoke(l, "Post", 10)
	require.NoError(t, err)
	_, err = r.Invoke(l, "Post", -1)
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.invocations.WithLabelValues("ledger", "Post", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.invocations.WithLabelValues("ledger", "Post", "error")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.duration))
}

func TestMetrics_WatchJobs(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg, testMetricsConfig())
	require.NoError(t, err)

	r, store := newRegistry(t)
	metadata.Describe(store, reflect.TypeFor[ledger]()).Every("Reconcile", time.Hour)
	require.NoError(t, m.WatchJobs(r))

	require.NoError(t, r.Register(newLedger))
	_, err = r.Resolve(newLedger)
	require.NoError(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)

	var active float64 = -1
	for _, mf := range families {
		if mf.GetName() == "conductor_test_active_jobs" {
			active = mf.GetMetric()[0].GetGauge().GetValue()
		}
	}
	assert.Equal(t, 1.0, active)

	r.StopSchedules()
	assert.Equal(t, 0, r.JobCount())
}

func TestMetrics_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewMetrics(reg, testMetricsConfig())
	require.NoError(t, err)

	_, err = NewMetrics(reg, testMetricsConfig())
	assert.Error(t, err)
}

func TestMetrics_Disabled(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg, config.MetricsConfig{})
	require.NoError(t, err)
	assert.False(t, m.Enabled())

	r, _ := newRegistry(t)
	m.Attach(r)()
	require.NoError(t, m.WatchJobs(r))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.Empty(t, families)
}

func TestMetrics_IgnoresForeignPayloads(t *testing.T) {
	m, err := NewMetrics(prometheus.NewRegistry(), testMetricsConfig())
	require.NoError(t, err)

	evt := events.Event{Name: events.Telemetry, Payload: "not an invocation"}
	assert.NoError(t, m.onTelemetry(evt))
	assert.NoError(t, m.onResolved(evt))
	assert.Equal(t, 0, testutil.CollectAndCount(m.invocations))
}
