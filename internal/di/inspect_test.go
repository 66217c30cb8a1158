package di

import (
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/conductor/internal/metadata"
)

func TestInspect(t *testing.T) {
	r, store, _ := newTestRegistry(t)
	metadata.Describe(store, reflect.TypeFor[Orders]()).
		Telemetry("Place").
		Publish("Place", "order.placed").
		Every("Count", time.Hour)

	require.NoError(t, r.Register(NewMailer))
	require.NoError(t, r.Register(NewRepo, Transient()))
	require.NoError(t, r.Register(NewOrders))
	require.NoError(t, r.RegisterFactory("dsn", func() string { return "" }))

	repo := r.Inspect(NewRepo)
	assert.Equal(t, "Repo", repo.Name)
	assert.Equal(t, "*di.Repo", repo.Token)
	assert.Equal(t, "class", repo.Kind)
	assert.Equal(t, "transient", repo.Lifecycle)
	assert.Equal(t, []string{"*di.Mailer"}, repo.Dependencies)
	assert.False(t, repo.Instantiated)

	orders := r.Inspect("Orders")
	assert.Equal(t, []string{"Place"}, orders.Telemetry)
	assert.Equal(t, []string{"Place -> order.placed"}, orders.Publishes)
	assert.Equal(t, []string{"Count @ every 1h0m0s"}, orders.Schedules)

	dsn := r.Inspect("dsn")
	assert.Equal(t, "factory", dsn.Kind)
	assert.Equal(t, "singleton", dsn.Lifecycle)
	assert.Equal(t, "string", dsn.Type)

	_, err := r.Resolve(NewMailer)
	require.NoError(t, err)
	assert.True(t, r.Inspect(NewMailer).Instantiated)

	missing := r.Inspect("Nope")
	assert.Equal(t, ServiceInfo{Name: "Nope"}, missing)
	assert.Equal(t, ServiceInfo{}, r.Inspect(42))
}

func TestServices_RegistrationOrder(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	require.NoError(t, r.Register(NewRepo))
	require.NoError(t, r.Register(NewMailer))
	require.NoError(t, r.RegisterFactory("dsn", func() string { return "" }))

	var got []string
	for _, info := range r.Services() {
		got = append(got, info.Name)
	}
	assert.Equal(t, []string{"Repo", "Mailer", "dsn"}, got)
}

func TestSnapshot(t *testing.T) {
	r, store, _ := newTestRegistry(t)
	metadata.Describe(store, reflect.TypeFor[Heartbeat]()).Every("Beat", time.Hour)

	require.NoError(t, r.Register(NewMailer))
	require.NoError(t, r.Register(NewHeartbeat))
	_, err := r.Resolve(NewHeartbeat)
	require.NoError(t, err)

	data, err := r.Snapshot()
	require.NoError(t, err)

	var snap Snapshot
	require.NoError(t, json.Unmarshal(data, &snap))

	require.Len(t, snap.Services, 2)
	assert.Equal(t, "Mailer", snap.Services[0].Name)
	assert.False(t, snap.Services[0].Instantiated)
	assert.True(t, snap.Services[1].Instantiated)

	require.Len(t, snap.Jobs, 1)
	assert.Equal(t, "Heartbeat.Beat", snap.Jobs[0].Name)
	assert.Equal(t, "every 1h0m0s", snap.Jobs[0].Spec)
	assert.NotEmpty(t, snap.Jobs[0].ID)
	assert.Zero(t, snap.Jobs[0].Runs)
}

func TestSnapshot_Empty(t *testing.T) {
	r, _, _ := newTestRegistry(t)

	data, err := r.Snapshot()
	require.NoError(t, err)
	assert.JSONEq(t, `{"services":[],"jobs":[]}`, string(data))
}
