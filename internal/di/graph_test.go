package di

import (
	"context"
	"reflect"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/conductor/internal/errors"
	"github.com/xraph/conductor/internal/metadata"
)

func testDef(name string) *definition {
	return &definition{name: name, token: name}
}

func names(defs []*definition) []string {
	out := make([]string, len(defs))
	for i, d := range defs {
		out[i] = d.name
	}
	return out
}

func TestDependencyGraph_TopologicalSort_Simple(t *testing.T) {
	a, b, c := testDef("a"), testDef("b"), testDef("c")

	g := newDependencyGraph()
	g.addNode(c, []*definition{b})
	g.addNode(b, []*definition{a})
	g.addNode(a, nil)

	result, err := g.topologicalSort()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, names(result))
}

func TestDependencyGraph_TopologicalSort_Diamond(t *testing.T) {
	a, b, c, d := testDef("a"), testDef("b"), testDef("c"), testDef("d")

	g := newDependencyGraph()
	g.addNode(a, nil)
	g.addNode(b, []*definition{a})
	g.addNode(c, []*definition{a})
	g.addNode(d, []*definition{b, c})

	result, err := g.topologicalSort()
	require.NoError(t, err)

	order := names(result)
	assert.Less(t, slices.Index(order, "a"), slices.Index(order, "b"))
	assert.Less(t, slices.Index(order, "a"), slices.Index(order, "c"))
	assert.Less(t, slices.Index(order, "b"), slices.Index(order, "d"))
	assert.Less(t, slices.Index(order, "c"), slices.Index(order, "d"))
}

func TestDependencyGraph_TopologicalSort_Cycle(t *testing.T) {
	a, b, c := testDef("a"), testDef("b"), testDef("c")

	g := newDependencyGraph()
	g.addNode(a, []*definition{b})
	g.addNode(b, []*definition{c})
	g.addNode(c, []*definition{b})

	_, err := g.topologicalSort()
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrCircularDependencySentinel)
	assert.Contains(t, err.Error(), "b -> c -> b")
}

func TestDependencyGraph_TopologicalSort_SelfReference(t *testing.T) {
	a := testDef("a")

	g := newDependencyGraph()
	g.addNode(a, []*definition{a})

	_, err := g.topologicalSort()
	assert.ErrorIs(t, err, errors.ErrCircularDependencySentinel)
	assert.Contains(t, err.Error(), "a -> a")
}

func TestValidate(t *testing.T) {
	t.Run("complete graph", func(t *testing.T) {
		r, _, _ := newTestRegistry(t)
		require.NoError(t, r.Register(NewBilling))
		require.NoError(t, r.Register(NewRepo))
		require.NoError(t, r.Register(NewMailer))

		assert.NoError(t, r.Validate())
		assert.False(t, r.Inspect(NewMailer).Instantiated)
	})

	t.Run("missing dependency", func(t *testing.T) {
		r, _, _ := newTestRegistry(t)
		require.NoError(t, r.Register(NewRepo))

		err := r.Validate()
		require.Error(t, err)
		assert.True(t, errors.IsServiceNotFound(err))
		assert.Contains(t, err.Error(), "service Repo: validate")
	})

	t.Run("declared token missing", func(t *testing.T) {
		r, store, _ := newTestRegistry(t)
		metadata.Describe(store, reflect.TypeFor[Billing]()).Inject(1, "rate")
		require.NoError(t, r.Register(NewMailer))
		require.NoError(t, r.Register(NewRepo))
		require.NoError(t, r.Register(NewBilling))

		err := r.Validate()
		assert.Contains(t, err.Error(), "'rate'")
	})

	t.Run("cycle", func(t *testing.T) {
		r, _, _ := newTestRegistry(t)
		require.NoError(t, r.Register(newCycA))
		require.NoError(t, r.Register(newCycB))

		err := r.Validate()
		assert.True(t, errors.IsCircularDependency(err))
		assert.Contains(t, err.Error(), "cycA -> cycB -> cycA")
	})
}

func TestWarmUp(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	require.NoError(t, r.Register(NewBilling))
	require.NoError(t, r.Register(NewRepo))
	require.NoError(t, r.Register(NewMailer))
	require.NoError(t, r.Register(NewOrders, Transient()))

	require.NoError(t, r.WarmUp(context.Background()))

	assert.True(t, r.Inspect(NewBilling).Instantiated)
	assert.True(t, r.Inspect(NewRepo).Instantiated)
	assert.True(t, r.Inspect(NewMailer).Instantiated)
	assert.False(t, r.Inspect(NewOrders).Instantiated)
}

func TestWarmUp_Errors(t *testing.T) {
	t.Run("cycle", func(t *testing.T) {
		r, _, _ := newTestRegistry(t)
		require.NoError(t, r.Register(newCycA))
		require.NoError(t, r.Register(newCycB))

		assert.True(t, errors.IsCircularDependency(r.WarmUp(context.Background())))
	})

	t.Run("constructor failure", func(t *testing.T) {
		r, _, _ := newTestRegistry(t)
		require.NoError(t, r.Register(func() (*Mailer, error) { return nil, errors.New("boom") }))

		err := r.WarmUp(context.Background())
		assert.True(t, errors.IsConstructionFailed(err))
		assert.Contains(t, err.Error(), "service Mailer: warmup")
	})

	t.Run("cancelled context", func(t *testing.T) {
		r, _, _ := newTestRegistry(t)
		require.NoError(t, r.Register(NewMailer))

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		assert.ErrorIs(t, r.WarmUp(ctx), context.Canceled)
		assert.False(t, r.Inspect(NewMailer).Instantiated)
	})
}
