package hcl_adapter

import (
	"github.com/hashicorp/hcl/v2"
)

// fileRoot decodes every top-level block a build file may contain.
type fileRoot struct {
	Properties []*propertyBlock `hcl:"property,block"`
	Targets    []*targetBlock   `hcl:"target,block"`
	Templates  []*templateBlock `hcl:"template,block"`
}

type propertyBlock struct {
	Name        string         `hcl:"name,label"`
	Description string         `hcl:"description,optional"`
	Type        hcl.Expression `hcl:"type,optional"`
	Default     hcl.Expression `hcl:"default,optional"`
	Env         string         `hcl:"env,optional"`
	DeclRange   hcl.Range      `hcl:",def_range"`
}

type targetBlock struct {
	Name                       string         `hcl:"name,label"`
	Description                string         `hcl:"description,optional"`
	Hidden                     bool           `hcl:"hidden,optional"`
	Default                    bool           `hcl:"default,optional"`
	DependsOn                  []string       `hcl:"depends_on,optional"`
	DependsOnAsync             []string       `hcl:"depends_on_async,optional"`
	TolerateDependencyFailures bool           `hcl:"tolerate_dependency_failures,optional"`
	ForEach                    hcl.Expression `hcl:"for_each,optional"`
	Body                       hcl.Body       `hcl:",remain"`
	DeclRange                  hcl.Range      `hcl:",def_range"`
}

type templateBlock struct {
	Name      string    `hcl:"name,label"`
	Params    []string  `hcl:"params,optional"`
	Body      hcl.Body  `hcl:",remain"`
	DeclRange hcl.Range `hcl:",def_range"`
}

// taskBlock is the body of `task "<kind>" { ... }`. The kind label is read
// from the enclosing hcl.Block. Everything not listed here is a kind-specific
// argument left in Args.
type taskBlock struct {
	Name             hcl.Expression `hcl:"name,optional"`
	When             hcl.Expression `hcl:"when,optional"`
	NoLog            bool           `hcl:"no_log,optional"`
	DoNotFailOnError bool           `hcl:"do_not_fail_on_error,optional"`
	Retry            *retryBlock    `hcl:"retry,block"`
	OnError          *hookBlock     `hcl:"on_error,block"`
	Finally          *hookBlock     `hcl:"finally,block"`
	Args             hcl.Body       `hcl:",remain"`
}

// hookBlock is `on_error "<kind>" { ... }` or `finally "<kind>" { ... }`.
type hookBlock struct {
	Kind      string         `hcl:"kind,label"`
	Name      hcl.Expression `hcl:"name,optional"`
	NoLog     bool           `hcl:"no_log,optional"`
	Retry     *retryBlock    `hcl:"retry,block"`
	Args      hcl.Body       `hcl:",remain"`
	DeclRange hcl.Range      `hcl:",def_range"`
}

type retryBlock struct {
	Count int    `hcl:"count"`
	Delay string `hcl:"delay,optional"`
}

type groupBlock struct {
	When    hcl.Expression `hcl:"when,optional"`
	OnError *hookBlock     `hcl:"on_error,block"`
	Finally *hookBlock     `hcl:"finally,block"`
	Body    hcl.Body       `hcl:",remain"`
}

// stepSchema lists the blocks allowed in a target or template body. Content
// returns them in source order, which is the execution order.
var stepSchema = &hcl.BodySchema{
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "task", LabelNames: []string{"kind"}},
		{Type: "group", LabelNames: []string{"name"}},
		{Type: "use", LabelNames: []string{"template"}},
	},
}

// groupSchema lists the blocks allowed in a group body.
var groupSchema = &hcl.BodySchema{
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "task", LabelNames: []string{"kind"}},
	},
}
