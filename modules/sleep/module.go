package sleep

import (
	"context"
	"fmt"
	"time"

	"github.com/vk/buildgrid/internal/ctxlog"
	"github.com/vk/buildgrid/internal/registry"
	"github.com/vk/buildgrid/internal/session"
	"github.com/xhit/go-str2duration/v2"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for the sleep task.
type Input struct {
	// Duration accepts Go durations plus days and weeks, e.g. "1m30s" or "1d".
	Duration string `hcl:"duration"`
}

// OnRunSleep waits for the duration or until the context is cancelled.
func OnRunSleep(ctx context.Context, _ *session.Session, input *Input) error {
	d, err := str2duration.ParseDuration(input.Duration)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", input.Duration, err)
	}
	ctxlog.FromContext(ctx).Debug("Sleeping.", "duration", d)

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Register registers the handler with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterTask("sleep", registry.Handler("Waits for a duration.", OnRunSleep))
}
