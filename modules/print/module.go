package print

import (
	"context"
	"fmt"
	"sort"

	"github.com/vk/buildgrid/internal/ctxlog"
	"github.com/vk/buildgrid/internal/registry"
	"github.com/vk/buildgrid/internal/session"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for the print task.
type Input struct {
	Message string            `hcl:"message"`
	Values  map[string]string `hcl:"values,optional"`
}

// OnRunPrint writes the message, then each value as an indented key = "value"
// line in key order, to the session output.
func OnRunPrint(ctx context.Context, sess *session.Session, input *Input) error {
	ctxlog.FromContext(ctx).Debug("Printing message.", "values", len(input.Values))

	if err := sess.WriteLine(input.Message); err != nil {
		return err
	}

	// Sort keys for consistent output
	keys := make([]string, 0, len(input.Values))
	for k := range input.Values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if err := sess.WriteLine(fmt.Sprintf("      %s = %q", k, input.Values[k])); err != nil {
			return err
		}
	}
	return nil
}

// Register registers the handler with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterTask("print", registry.Handler("Prints a message and optional values.", OnRunPrint))
}
