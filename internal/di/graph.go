package di

import (
	"context"

	"github.com/xraph/conductor/internal/errors"
)

// dependencyGraph orders definitions so dependencies come before dependents.
type dependencyGraph struct {
	nodes map[*definition][]*definition
	order []*definition // registration order
}

func newDependencyGraph() *dependencyGraph {
	return &dependencyGraph{
		nodes: make(map[*definition][]*definition),
	}
}

// addNode adds def with its dependencies. Nodes without dependencies keep
// the order they were added in.
func (g *dependencyGraph) addNode(def *definition, deps []*definition) {
	if _, ok := g.nodes[def]; !ok {
		g.order = append(g.order, def)
	}
	g.nodes[def] = deps
}

// topologicalSort returns the definitions in dependency order, or a
// circular dependency error carrying the full cycle.
func (g *dependencyGraph) topologicalSort() ([]*definition, error) {
	visited := make(map[*definition]bool)
	visiting := make(map[*definition]bool)
	result := make([]*definition, 0, len(g.nodes))

	for _, def := range g.order {
		if err := g.visit(def, visited, visiting, nil, &result); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (g *dependencyGraph) visit(def *definition, visited, visiting map[*definition]bool, path []*definition, result *[]*definition) error {
	if visited[def] {
		return nil
	}

	if visiting[def] {
		st := &stack{}
		for i, d := range path {
			if d == def {
				st.defs = path[i:]
				break
			}
		}
		return errors.ErrCircularDependency(st.chain(def))
	}

	deps, ok := g.nodes[def]
	if !ok {
		return nil
	}

	visiting[def] = true
	path = append(path, def)

	for _, dep := range deps {
		if err := g.visit(dep, visited, visiting, path, result); err != nil {
			return err
		}
	}

	visiting[def] = false
	visited[def] = true
	*result = append(*result, def)
	return nil
}

// graph builds the declared dependency graph of the current definitions.
// Dependencies that are not registered are returned separately.
func (r *Registry) graph() (*dependencyGraph, []error) {
	g := newDependencyGraph()
	var missing []error

	for _, def := range r.definitions() {
		var deps []*definition
		for _, token := range def.dependencies(r.store) {
			k, err := keyOf(token)
			if err != nil {
				missing = append(missing, errors.NewServiceError(def.name, "validate", err))
				continue
			}
			dep, ok := r.lookup(k)
			if !ok {
				missing = append(missing, errors.NewServiceError(def.name, "validate", errors.ErrServiceNotFound(k.String())))
				continue
			}
			deps = append(deps, dep)
		}
		g.addNode(def, deps)
	}
	return g, missing
}

// Validate checks the declared constructor dependencies of every definition
// without building anything: every dependency must be registered and the
// graph must be acyclic.
func (r *Registry) Validate() error {
	g, errs := r.graph()
	if _, err := g.topologicalSort(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// WarmUp resolves every singleton in dependency order.
func (r *Registry) WarmUp(ctx context.Context) error {
	g, _ := r.graph()
	order, err := g.topologicalSort()
	if err != nil {
		return err
	}

	for _, def := range order {
		if !def.singleton {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := r.Resolve(def.token); err != nil {
			return errors.NewServiceError(def.name, "warmup", err)
		}
	}
	return nil
}
