package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/vk/buildgrid/internal/ctxlog"
	"github.com/vk/buildgrid/internal/dag"
)

// Run executes the requested targets, or the default targets when none are
// named, and writes the run report to the output writer. The report is
// returned alongside any run error so callers can inspect per-target status.
func (a *App) Run(ctx context.Context, targets ...string) (*dag.Report, error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	if err := a.startStatusServer(ctx); err != nil {
		return nil, err
	}
	defer a.closeStatusServer(ctx)

	b, err := a.load(ctx)
	if err != nil {
		return nil, err
	}
	if err := checkRequestable(b.graph, targets); err != nil {
		return nil, err
	}

	a.logger.Info("Starting build.", "runID", b.sess.RunID, "targets", targets, "workers", a.config.Workers)
	report, err := b.graph.Run(ctx, b.sess, targets...)
	if report != nil {
		renderReport(a.outW, report)
	}
	if err != nil {
		a.logger.Debug("App.Run method finished with errors.")
		return report, err
	}
	a.logger.Debug("App.Run method finished.")
	return report, nil
}

// checkRequestable rejects hidden targets named directly. Unknown names are
// left to the graph, which reports them with its own error.
func checkRequestable(g *dag.Graph, names []string) error {
	for _, name := range names {
		if t, ok := g.Target(name); ok && t.Hidden() {
			return &ConfigError{Err: fmt.Errorf("target '%s' is hidden and can only run as a dependency", name)}
		}
	}
	return nil
}

// List writes the declared targets. Hidden targets are included only when
// all is set.
func (a *App) List(ctx context.Context, all bool) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	b, err := a.load(ctx)
	if err != nil {
		return err
	}

	var rows [][]string
	for _, t := range b.graph.Targets() {
		if t.Hidden() && !all {
			continue
		}
		var flags []string
		if t.IsDefault() {
			flags = append(flags, "default")
		}
		if t.Hidden() {
			flags = append(flags, "hidden")
		}
		deps := make([]string, 0, len(t.Dependencies()))
		for _, d := range t.Dependencies() {
			deps = append(deps, d.String())
		}
		rows = append(rows, []string{t.Name(), t.Description(), strings.Join(flags, ","), strings.Join(deps, ", ")})
	}
	renderTable(a.outW, []string{"TARGET", "DESCRIPTION", "FLAGS", "DEPENDS ON"}, rows, nil)
	return nil
}

// Plan writes the order targets would run in, without running them.
func (a *App) Plan(ctx context.Context, targets ...string) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	b, err := a.load(ctx)
	if err != nil {
		return err
	}
	if err := checkRequestable(b.graph, targets); err != nil {
		return err
	}
	if len(targets) == 0 {
		targets = b.graph.Defaults()
		if len(targets) == 0 {
			return &dag.NoTargetError{}
		}
	}

	order, err := b.graph.Resolve(targets...)
	if err != nil {
		return err
	}
	rows := make([][]string, 0, len(order))
	for i, name := range order {
		t, _ := b.graph.Target(name)
		rows = append(rows, []string{fmt.Sprintf("%d", i+1), name, fmt.Sprintf("%d", len(t.Steps()))})
	}
	renderTable(a.outW, []string{"#", "TARGET", "STEPS"}, rows, nil)
	return nil
}
