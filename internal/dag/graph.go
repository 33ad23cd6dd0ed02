package dag

import (
	"github.com/vk/buildgrid/internal/target"
)

// DefaultWorkers is the number of target bodies that may run at once when
// WithWorkers is not given.
const DefaultWorkers = 4

// Graph owns all targets of a build.
type Graph struct {
	targets map[string]*target.Target
	order   []string
	workers int
	hooks   Hooks
}

// Option configures a Graph.
type Option func(*Graph)

// WithWorkers bounds how many target bodies run concurrently. Values below 1
// are ignored.
func WithWorkers(n int) Option {
	return func(g *Graph) {
		if n > 0 {
			g.workers = n
		}
	}
}

// WithHooks installs run observers.
func WithHooks(h Hooks) Option {
	return func(g *Graph) {
		g.hooks = h
	}
}

// New creates an empty graph.
func New(opts ...Option) *Graph {
	g := &Graph{
		targets: make(map[string]*target.Target),
		workers: DefaultWorkers,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Register adds a built target.
func (g *Graph) Register(t *target.Target) error {
	if _, exists := g.targets[t.Name()]; exists {
		return &DuplicateTargetError{Name: t.Name()}
	}
	g.targets[t.Name()] = t
	g.order = append(g.order, t.Name())
	return nil
}

// Add builds the draft and registers the result.
func (g *Graph) Add(b *target.Builder) error {
	t, err := b.Build()
	if err != nil {
		return &InvalidTargetError{Name: b.Name(), Err: err}
	}
	return g.Register(t)
}

// Target looks up a registered target.
func (g *Graph) Target(name string) (*target.Target, bool) {
	t, ok := g.targets[name]
	return t, ok
}

// Targets returns all targets in registration order.
func (g *Graph) Targets() []*target.Target {
	out := make([]*target.Target, 0, len(g.order))
	for _, name := range g.order {
		out = append(out, g.targets[name])
	}
	return out
}

// Defaults returns the names of default targets in registration order.
func (g *Graph) Defaults() []string {
	var out []string
	for _, name := range g.order {
		if g.targets[name].IsDefault() {
			out = append(out, name)
		}
	}
	return out
}

// Validate checks that every edge points at a registered target and that the
// dependency relation is acyclic.
func (g *Graph) Validate() error {
	for _, name := range g.order {
		for _, dep := range g.targets[name].Dependencies() {
			if _, ok := g.targets[dep.Name]; !ok {
				return &UnknownTargetError{Name: dep.Name, Referrer: name}
			}
		}
	}
	return g.detectCycles()
}

// detectCycles runs a depth-first search keeping the current path, so a
// back edge can be reported as the full cycle.
func (g *Graph) detectCycles() error {
	visiting := make(map[string]bool)
	visited := make(map[string]bool)
	var path []string

	var visit func(name string) error
	visit = func(name string) error {
		visiting[name] = true
		path = append(path, name)
		for _, dep := range g.targets[name].Dependencies() {
			if visiting[dep.Name] {
				return &CyclicDependencyError{Cycle: cycleFrom(path, dep.Name)}
			}
			if !visited[dep.Name] {
				if err := visit(dep.Name); err != nil {
					return err
				}
			}
		}
		path = path[:len(path)-1]
		delete(visiting, name)
		visited[name] = true
		return nil
	}

	for _, name := range g.order {
		if !visited[name] {
			if err := visit(name); err != nil {
				return err
			}
		}
	}
	return nil
}

func cycleFrom(path []string, start string) []string {
	for i, name := range path {
		if name == start {
			cycle := append([]string(nil), path[i:]...)
			return append(cycle, start)
		}
	}
	return []string{start, start}
}

// Resolve returns the dependency closure of names in an order where every
// dependency comes before its dependents. Ties follow declaration order.
func (g *Graph) Resolve(names ...string) ([]string, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	for _, name := range names {
		if _, ok := g.targets[name]; !ok {
			return nil, &UnknownTargetError{Name: name}
		}
	}

	seen := make(map[string]bool)
	var order []string
	var visit func(name string)
	visit = func(name string) {
		if seen[name] {
			return
		}
		seen[name] = true
		for _, dep := range g.targets[name].Dependencies() {
			visit(dep.Name)
		}
		order = append(order, name)
	}
	for _, name := range names {
		visit(name)
	}
	return order, nil
}
