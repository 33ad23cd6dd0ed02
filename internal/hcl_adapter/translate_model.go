package hcl_adapter

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/vk/buildgrid/internal/config"
	"github.com/xhit/go-str2duration/v2"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// translateProperty parses the declared type and the default value. The
// default is evaluated without variables and converted to the declared type.
func translateProperty(ctx context.Context, p *propertyBlock) (*config.Property, error) {
	ty := cty.DynamicPseudoType
	if isExprDefined(ctx, p.Type, "type") {
		parsed, err := typeExprToCtyType(ctx, p.Type)
		if err != nil {
			return nil, fmt.Errorf("in property '%s': %w", p.Name, err)
		}
		ty = parsed
	}

	prop := &config.Property{
		Name:        p.Name,
		Description: p.Description,
		Type:        ty,
		Env:         p.Env,
		DeclRange:   p.DeclRange,
	}

	if isExprDefined(ctx, p.Default, "default") {
		val, diags := p.Default.Value(&hcl.EvalContext{Functions: coreFunctions()})
		if diags.HasErrors() {
			return nil, fmt.Errorf("invalid default value for property '%s': %w", p.Name, diags)
		}
		if !val.IsNull() {
			converted, err := convert.Convert(val, ty)
			if err != nil {
				return nil, fmt.Errorf("default value for property '%s' is not a valid %s: %w", p.Name, ty.FriendlyName(), err)
			}
			prop.Default = &converted
		}
	}
	return prop, nil
}

func translateTarget(ctx context.Context, tb *targetBlock) (*config.Target, error) {
	steps, err := translateSteps(ctx, tb.Body)
	if err != nil {
		return nil, fmt.Errorf("in target '%s': %w", tb.Name, err)
	}
	t := &config.Target{
		Name:                       tb.Name,
		Description:                tb.Description,
		Hidden:                     tb.Hidden,
		Default:                    tb.Default,
		DependsOn:                  tb.DependsOn,
		DependsOnAsync:             tb.DependsOnAsync,
		TolerateDependencyFailures: tb.TolerateDependencyFailures,
		Steps:                      steps,
		DeclRange:                  tb.DeclRange,
	}
	if isExprDefined(ctx, tb.ForEach, "for_each") {
		t.ForEach = tb.ForEach
	}
	return t, nil
}

func translateTemplate(ctx context.Context, tb *templateBlock) (*config.Template, error) {
	steps, err := translateSteps(ctx, tb.Body)
	if err != nil {
		return nil, fmt.Errorf("in template '%s': %w", tb.Name, err)
	}
	return &config.Template{
		Name:      tb.Name,
		Params:    tb.Params,
		Steps:     steps,
		DeclRange: tb.DeclRange,
	}, nil
}

// translateSteps reads task, group and use blocks in source order.
func translateSteps(ctx context.Context, body hcl.Body) ([]*config.Step, error) {
	content, diags := body.Content(stepSchema)
	if diags.HasErrors() {
		return nil, diags
	}

	steps := make([]*config.Step, 0, len(content.Blocks))
	for _, block := range content.Blocks {
		switch block.Type {
		case "task":
			t, err := translateTask(ctx, block)
			if err != nil {
				return nil, err
			}
			steps = append(steps, &config.Step{Kind: config.StepTask, Task: t})
		case "group":
			g, err := translateGroup(ctx, block)
			if err != nil {
				return nil, err
			}
			steps = append(steps, &config.Step{Kind: config.StepGroup, Group: g})
		case "use":
			attrs, diags := block.Body.JustAttributes()
			if diags.HasErrors() {
				return nil, fmt.Errorf("in use of template '%s': %w", block.Labels[0], diags)
			}
			args := make(map[string]hcl.Expression, len(attrs))
			for name, attr := range attrs {
				args[name] = attr.Expr
			}
			steps = append(steps, &config.Step{Kind: config.StepUse, Use: &config.Use{
				Template:  block.Labels[0],
				Args:      args,
				DeclRange: block.DefRange,
			}})
		}
	}
	return steps, nil
}

func translateTask(ctx context.Context, block *hcl.Block) (*config.Task, error) {
	kind := block.Labels[0]
	var tb taskBlock
	if diags := gohcl.DecodeBody(block.Body, nil, &tb); diags.HasErrors() {
		return nil, fmt.Errorf("in task '%s': %w", kind, diags)
	}

	t := &config.Task{
		Kind:             kind,
		NoLog:            tb.NoLog,
		DoNotFailOnError: tb.DoNotFailOnError,
		Body:             tb.Args,
		DeclRange:        block.DefRange,
	}
	if isExprDefined(ctx, tb.Name, "name") {
		t.Name = tb.Name
	}
	if isExprDefined(ctx, tb.When, "when") {
		t.When = tb.When
	}
	if err := applyRetry(t, tb.Retry); err != nil {
		return nil, fmt.Errorf("in task '%s': %w", kind, err)
	}

	var err error
	if t.OnError, err = translateHook(ctx, tb.OnError); err != nil {
		return nil, fmt.Errorf("in on_error of task '%s': %w", kind, err)
	}
	if t.Finally, err = translateHook(ctx, tb.Finally); err != nil {
		return nil, fmt.Errorf("in finally of task '%s': %w", kind, err)
	}
	return t, nil
}

// translateHook turns an on_error or finally block into a task declaration.
func translateHook(ctx context.Context, hb *hookBlock) (*config.Task, error) {
	if hb == nil {
		return nil, nil
	}
	t := &config.Task{
		Kind:      hb.Kind,
		NoLog:     hb.NoLog,
		Body:      hb.Args,
		DeclRange: hb.DeclRange,
	}
	if isExprDefined(ctx, hb.Name, "name") {
		t.Name = hb.Name
	}
	if err := applyRetry(t, hb.Retry); err != nil {
		return nil, err
	}
	return t, nil
}

func applyRetry(t *config.Task, rb *retryBlock) error {
	if rb == nil {
		return nil
	}
	if rb.Count < 0 {
		return fmt.Errorf("retry count must not be negative, got %d", rb.Count)
	}
	t.RetryCount = rb.Count
	if rb.Delay != "" {
		d, err := str2duration.ParseDuration(rb.Delay)
		if err != nil {
			return fmt.Errorf("invalid retry delay %q: %w", rb.Delay, err)
		}
		t.RetryDelay = d
	}
	return nil
}

func translateGroup(ctx context.Context, block *hcl.Block) (*config.Group, error) {
	name := block.Labels[0]
	var gb groupBlock
	if diags := gohcl.DecodeBody(block.Body, nil, &gb); diags.HasErrors() {
		return nil, fmt.Errorf("in group '%s': %w", name, diags)
	}
	content, diags := gb.Body.Content(groupSchema)
	if diags.HasErrors() {
		return nil, fmt.Errorf("in group '%s': %w", name, diags)
	}

	g := &config.Group{Name: name, DeclRange: block.DefRange}
	if isExprDefined(ctx, gb.When, "when") {
		g.When = gb.When
	}
	for _, tblock := range content.Blocks {
		t, err := translateTask(ctx, tblock)
		if err != nil {
			return nil, fmt.Errorf("in group '%s': %w", name, err)
		}
		g.Tasks = append(g.Tasks, t)
	}

	var err error
	if g.OnError, err = translateHook(ctx, gb.OnError); err != nil {
		return nil, fmt.Errorf("in on_error of group '%s': %w", name, err)
	}
	if g.Finally, err = translateHook(ctx, gb.Finally); err != nil {
		return nil, fmt.Errorf("in finally of group '%s': %w", name, err)
	}
	return g, nil
}
