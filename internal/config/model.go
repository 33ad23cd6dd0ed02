package config

import (
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
)

// Model is the unified representation of every loaded build file.
type Model struct {
	Properties []*Property
	Targets    []*Target
	Templates  map[string]*Template
}

// Property is a declared build property.
type Property struct {
	Name        string
	Description string
	Type        cty.Type
	// Default is nil when the property has no default.
	Default *cty.Value
	// Env overrides the environment variable the property is read from.
	Env       string
	DeclRange hcl.Range
}

// Target is the declaration of a build target.
type Target struct {
	Name                       string
	Description                string
	Hidden                     bool
	Default                    bool
	DependsOn                  []string
	DependsOnAsync             []string
	TolerateDependencyFailures bool
	// ForEach, when set, fans the step list out once per element.
	ForEach   hcl.Expression
	Steps     []*Step
	DeclRange hcl.Range
}

// Template is a named, parameterized list of steps applied with a Use step.
type Template struct {
	Name      string
	Params    []string
	Steps     []*Step
	DeclRange hcl.Range
}

// StepKind tells which field of a Step is set.
type StepKind int

const (
	StepTask StepKind = iota
	StepGroup
	StepUse
)

// Step is one entry of an ordered step list.
type Step struct {
	Kind  StepKind
	Task  *Task
	Group *Group
	Use   *Use
}

// Task is a task declaration. Body holds the kind-specific arguments.
type Task struct {
	Kind             string
	Name             hcl.Expression
	When             hcl.Expression
	NoLog            bool
	DoNotFailOnError bool
	RetryCount       int
	RetryDelay       time.Duration
	OnError          *Task
	Finally          *Task
	Body             hcl.Body
	DeclRange        hcl.Range
}

// Group is a group declaration.
type Group struct {
	Name      string
	When      hcl.Expression
	Tasks     []*Task
	OnError   *Task
	Finally   *Task
	DeclRange hcl.Range
}

// Use applies a template with the given parameter expressions.
type Use struct {
	Template  string
	Args      map[string]hcl.Expression
	DeclRange hcl.Range
}
