package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/vk/buildgrid/internal/session"
)

// Module is the interface that all task kind modules implement to be
// registered.
type Module interface {
	Register(r *Registry)
}

// RegisteredTask holds the compiled Go parts of a task kind.
type RegisteredTask struct {
	Description string
	// NewInput returns a pointer to a fresh, zero-valued input struct whose
	// fields carry `hcl` tags.
	NewInput func() any
	Fn       func(ctx context.Context, sess *session.Session, input any) error
}

// Registry holds every registered task kind of one application instance.
type Registry struct {
	tasks map[string]*RegisteredTask
}

// New creates a registry and registers the given modules.
func New(modules ...Module) *Registry {
	r := &Registry{tasks: make(map[string]*RegisteredTask)}
	for _, m := range modules {
		m.Register(r)
	}
	return r
}

// RegisterTask registers the handler for a task kind. Registering a kind
// twice is a programming error and panics.
func (r *Registry) RegisterTask(kind string, handler *RegisteredTask) {
	if _, exists := r.tasks[kind]; exists {
		panic(fmt.Sprintf("task kind '%s' already registered", kind))
	}
	if handler == nil || handler.NewInput == nil || handler.Fn == nil {
		panic(fmt.Sprintf("task kind '%s' registered without input constructor or handler", kind))
	}
	slog.Debug("Registering task kind.", "kind", kind)
	r.tasks[kind] = handler
}

// Task returns the handler registered for kind.
func (r *Registry) Task(kind string) (*RegisteredTask, bool) {
	h, ok := r.tasks[kind]
	return h, ok
}

// Kinds returns all registered kinds in sorted order.
func (r *Registry) Kinds() []string {
	kinds := make([]string, 0, len(r.tasks))
	for k := range r.tasks {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}
