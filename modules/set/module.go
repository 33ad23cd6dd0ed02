package set

import (
	"context"
	"sort"

	"github.com/vk/buildgrid/internal/ctxlog"
	"github.com/vk/buildgrid/internal/registry"
	"github.com/vk/buildgrid/internal/session"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for the set task.
type Input struct {
	Values map[string]string `hcl:"values"`
}

// OnRunSet stores every value in the session property bag, replacing
// existing properties of the same name.
func OnRunSet(ctx context.Context, sess *session.Session, input *Input) error {
	names := make([]string, 0, len(input.Values))
	for name, v := range input.Values {
		sess.Props.Put(name, v)
		names = append(names, name)
	}
	sort.Strings(names)
	ctxlog.FromContext(ctx).Debug("Properties set.", "names", names)
	return nil
}

// Register registers the handler with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterTask("set", registry.Handler("Sets build properties.", OnRunSet))
}
