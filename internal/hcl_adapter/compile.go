package hcl_adapter

import (
	"context"
	"fmt"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/vk/buildgrid/internal/args"
	"github.com/vk/buildgrid/internal/config"
	"github.com/vk/buildgrid/internal/ctxlog"
	"github.com/vk/buildgrid/internal/registry"
	"github.com/vk/buildgrid/internal/session"
	"github.com/vk/buildgrid/internal/target"
	"github.com/vk/buildgrid/internal/task"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
)

// Declarations converts declared properties into resolver declarations.
func Declarations(props []*config.Property) ([]args.Declaration, error) {
	decls := make([]args.Declaration, 0, len(props))
	for _, p := range props {
		d := args.Declaration{
			Name:        p.Name,
			Description: p.Description,
			EnvVar:      p.Env,
			Convert:     coerceTo(p.Type),
		}
		if p.Default != nil {
			def, err := ctyToNative(*p.Default)
			if err != nil {
				return nil, fmt.Errorf("default of property '%s': %w", p.Name, err)
			}
			d.Default = def
		}
		decls = append(decls, d)
	}
	return decls, nil
}

// Compiler turns a config model into target builders. Task kinds are looked
// up in the registry and their arguments are schema-checked up front.
type Compiler struct {
	reg   *registry.Registry
	props map[string]any
	funcs map[string]function.Function
	model *config.Model
	// using tracks templates being expanded, to reject recursive use.
	using map[string]bool
}

// NewCompiler creates a compiler. props are the resolved property values
// used for configuration-time expressions such as for_each; baseDir anchors
// the glob and file functions.
func NewCompiler(reg *registry.Registry, props map[string]any, baseDir string) *Compiler {
	return &Compiler{
		reg:   reg,
		props: props,
		funcs: buildFunctions(baseDir),
		using: make(map[string]bool),
	}
}

// Compile produces one builder per declared target, in declaration order.
func (c *Compiler) Compile(ctx context.Context, model *config.Model) ([]*target.Builder, error) {
	c.model = model
	builders := make([]*target.Builder, 0, len(model.Targets))
	for _, decl := range model.Targets {
		b, err := c.compileTarget(ctx, decl)
		if err != nil {
			return nil, fmt.Errorf("target '%s' (%s): %w", decl.Name, decl.DeclRange, err)
		}
		builders = append(builders, b)
	}
	ctxlog.FromContext(ctx).Debug("Compiled build targets.", "count", len(builders))
	return builders, nil
}

func (c *Compiler) compileTarget(ctx context.Context, decl *config.Target) (*target.Builder, error) {
	b := target.New(decl.Name).
		Describe(decl.Description).
		DependsOn(decl.DependsOn...).
		DependsOnAsync(decl.DependsOnAsync...)
	if decl.Hidden {
		b.Hidden()
	}
	if decl.Default {
		b.Default()
	}
	if decl.TolerateDependencyFailures {
		b.TolerateDependencyFailures()
	}

	base := scope{target: decl.Name}
	if decl.ForEach == nil {
		steps, err := c.compileSteps(ctx, decl.Steps, base)
		if err != nil {
			return nil, err
		}
		return b.AddStep(steps...), nil
	}

	evalCtx, err := c.staticContext(base)
	if err != nil {
		return nil, err
	}
	val, diags := decl.ForEach.Value(evalCtx)
	if diags.HasErrors() {
		return nil, fmt.Errorf("evaluating for_each: %w", diags)
	}
	items, err := expandForEach(val)
	if err != nil {
		return nil, err
	}

	var firstErr error
	target.ForEach(b, items, func(item eachItem, b *target.Builder) {
		if firstErr != nil {
			return
		}
		sc := base
		sc.each = &item
		steps, err := c.compileSteps(ctx, decl.Steps, sc)
		if err != nil {
			firstErr = err
			return
		}
		b.AddStep(steps...)
	})
	return b, firstErr
}

func (c *Compiler) compileSteps(ctx context.Context, decls []*config.Step, sc scope) ([]task.Step, error) {
	var steps []task.Step
	for _, s := range decls {
		switch s.Kind {
		case config.StepTask:
			t, err := c.compileTask(ctx, s.Task, sc)
			if err != nil {
				return nil, err
			}
			steps = append(steps, t)
		case config.StepGroup:
			g, err := c.compileGroup(ctx, s.Group, sc)
			if err != nil {
				return nil, err
			}
			steps = append(steps, g)
		case config.StepUse:
			used, err := c.compileUse(ctx, s.Use, sc)
			if err != nil {
				return nil, err
			}
			steps = append(steps, used...)
		}
	}
	return steps, nil
}

// compileUse expands a template. Parameters are evaluated once, at
// configuration time, in the scope of the using step.
func (c *Compiler) compileUse(ctx context.Context, use *config.Use, sc scope) ([]task.Step, error) {
	tpl, ok := c.model.Templates[use.Template]
	if !ok {
		return nil, fmt.Errorf("%s: unknown template '%s'", use.DeclRange, use.Template)
	}
	if c.using[tpl.Name] {
		return nil, fmt.Errorf("%s: template '%s' uses itself", use.DeclRange, tpl.Name)
	}

	declared := make(map[string]bool, len(tpl.Params))
	for _, p := range tpl.Params {
		declared[p] = true
	}
	var unknown []string
	for name := range use.Args {
		if !declared[name] {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("%s: template '%s' has no parameter(s) %v", use.DeclRange, tpl.Name, unknown)
	}

	evalCtx, err := c.staticContext(sc)
	if err != nil {
		return nil, err
	}
	params := make(map[string]cty.Value, len(tpl.Params))
	for _, p := range tpl.Params {
		expr, ok := use.Args[p]
		if !ok {
			return nil, fmt.Errorf("%s: missing parameter '%s' for template '%s'", use.DeclRange, p, tpl.Name)
		}
		val, diags := expr.Value(evalCtx)
		if diags.HasErrors() {
			return nil, fmt.Errorf("parameter '%s': %w", p, diags)
		}
		params[p] = val
	}

	inner := scope{target: sc.target, each: sc.each, params: params}
	c.using[tpl.Name] = true
	defer delete(c.using, tpl.Name)

	steps, err := c.compileSteps(ctx, tpl.Steps, inner)
	if err != nil {
		return nil, fmt.Errorf("in template '%s': %w", tpl.Name, err)
	}
	return steps, nil
}

func (c *Compiler) compileTask(ctx context.Context, decl *config.Task, sc scope) (*task.Task, error) {
	handler, ok := c.reg.Task(decl.Kind)
	if !ok {
		return nil, fmt.Errorf("%s: unknown task kind '%s'", decl.DeclRange, decl.Kind)
	}
	if err := checkArguments(decl, handler); err != nil {
		return nil, err
	}

	name := decl.Kind
	if decl.Name != nil {
		evalCtx, err := c.staticContext(sc)
		if err != nil {
			return nil, err
		}
		if name, err = evalString(decl.Name, evalCtx); err != nil {
			return nil, fmt.Errorf("task name: %w", err)
		}
	}

	t := task.New(name, c.taskFunc(decl, handler, sc)).Retry(decl.RetryCount, decl.RetryDelay)
	if decl.NoLog {
		t.NoLog()
	}
	if decl.DoNotFailOnError {
		t.DoNotFailOnError()
	}
	if decl.When != nil {
		t.When(c.guard(decl.When, sc))
	}
	if decl.OnError != nil {
		hook, err := c.compileTask(ctx, decl.OnError, sc)
		if err != nil {
			return nil, fmt.Errorf("in on_error: %w", err)
		}
		t.OnError(errorHook(hook))
	}
	if decl.Finally != nil {
		hook, err := c.compileTask(ctx, decl.Finally, sc)
		if err != nil {
			return nil, fmt.Errorf("in finally: %w", err)
		}
		t.Finally(finallyHook(hook))
	}
	return t, nil
}

func (c *Compiler) compileGroup(ctx context.Context, decl *config.Group, sc scope) (*task.Group, error) {
	g := task.NewGroup(decl.Name)
	for _, td := range decl.Tasks {
		t, err := c.compileTask(ctx, td, sc)
		if err != nil {
			return nil, fmt.Errorf("in group '%s': %w", decl.Name, err)
		}
		g.Add(t)
	}
	if decl.When != nil {
		g.When(c.guard(decl.When, sc))
	}
	if decl.OnError != nil {
		hook, err := c.compileTask(ctx, decl.OnError, sc)
		if err != nil {
			return nil, fmt.Errorf("in on_error of group '%s': %w", decl.Name, err)
		}
		g.OnError(errorHook(hook))
	}
	if decl.Finally != nil {
		hook, err := c.compileTask(ctx, decl.Finally, sc)
		if err != nil {
			return nil, fmt.Errorf("in finally of group '%s': %w", decl.Name, err)
		}
		g.Finally(finallyHook(hook))
	}
	return g, nil
}

// checkArguments validates the task body against the input struct schema
// without evaluating any expression.
func checkArguments(decl *config.Task, handler *registry.RegisteredTask) error {
	schema, partial := gohcl.ImpliedBodySchema(handler.NewInput())
	if partial {
		return fmt.Errorf("internal error: input of task kind '%s' has a remain field", decl.Kind)
	}
	if _, diags := decl.Body.Content(schema); diags.HasErrors() {
		return fmt.Errorf("arguments of task '%s': %w", decl.Kind, diags)
	}
	return nil
}

// taskFunc decodes the arguments against the live session and calls the
// handler.
func (c *Compiler) taskFunc(decl *config.Task, handler *registry.RegisteredTask, sc scope) task.Func {
	body := decl.Body
	kind := decl.Kind
	return func(ctx context.Context, sess *session.Session) error {
		evalCtx, err := c.runtimeContext(ctx, sess, sc)
		if err != nil {
			return err
		}
		input := handler.NewInput()
		if diags := gohcl.DecodeBody(body, evalCtx, input); diags.HasErrors() {
			return fmt.Errorf("decoding arguments of task '%s': %w", kind, diags)
		}
		return handler.Fn(ctx, sess, input)
	}
}

func (c *Compiler) guard(expr hcl.Expression, sc scope) task.Guard {
	return func(ctx context.Context, sess *session.Session) (bool, error) {
		evalCtx, err := c.runtimeContext(ctx, sess, sc)
		if err != nil {
			return false, err
		}
		return evalBool(expr, evalCtx)
	}
}

// errorHook and finallyHook detach the handler task from cancellation so
// cleanup still runs after an interrupt.
func errorHook(hook *task.Task) task.ErrorHook {
	return func(ctx context.Context, sess *session.Session, cause error) {
		if _, err := hook.Execute(withFailure(context.WithoutCancel(ctx), cause), sess); err != nil {
			ctxlog.FromContext(ctx).Error("On-error handler failed.", "handler", hook.Name(), "error", err)
		}
	}
}

func finallyHook(hook *task.Task) task.Hook {
	return func(ctx context.Context, sess *session.Session) {
		if _, err := hook.Execute(context.WithoutCancel(ctx), sess); err != nil {
			ctxlog.FromContext(ctx).Error("Finally handler failed.", "handler", hook.Name(), "error", err)
		}
	}
}
