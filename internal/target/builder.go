package target

import (
	"context"
	"errors"
	"fmt"

	"github.com/vk/buildgrid/internal/session"
	"github.com/vk/buildgrid/internal/task"
)

// Template is a reusable set of steps applied to a builder. Templates are
// plain closures, so they capture their parameters with static types.
type Template func(b *Builder)

// Builder assembles a Target. Its methods mutate an internal draft and return
// the builder so calls can be chained.
type Builder struct {
	draft Target
	doSeq int
}

// New starts a target named name.
func New(name string) *Builder {
	return &Builder{draft: Target{name: name}}
}

// Name returns the name of the target under construction.
func (b *Builder) Name() string { return b.draft.name }

func (b *Builder) Describe(description string) *Builder {
	b.draft.description = description
	return b
}

// Hidden marks the target as internal: it is not listed and cannot be
// requested directly, but other targets may depend on it.
func (b *Builder) Hidden() *Builder {
	b.draft.hidden = true
	return b
}

// Default marks the target to run when no target is requested.
func (b *Builder) Default() *Builder {
	b.draft.isDefault = true
	return b
}

// DependsOn adds sync dependencies, run in the given order.
func (b *Builder) DependsOn(names ...string) *Builder {
	for _, n := range names {
		b.draft.deps = append(b.draft.deps, Dependency{Name: n})
	}
	return b
}

// DependsOnAsync adds dependencies that run concurrently with each other.
func (b *Builder) DependsOnAsync(names ...string) *Builder {
	for _, n := range names {
		b.draft.deps = append(b.draft.deps, Dependency{Name: n, Async: true})
	}
	return b
}

// TolerateDependencyFailures lets the body run even when dependencies fail.
func (b *Builder) TolerateDependencyFailures() *Builder {
	b.draft.tolerateDependencyFailures = true
	return b
}

func (b *Builder) AddTask(t *task.Task) *Builder {
	return b.AddStep(t)
}

func (b *Builder) AddGroup(g *task.Group) *Builder {
	return b.AddStep(g)
}

// AddStep appends any step implementation.
func (b *Builder) AddStep(steps ...task.Step) *Builder {
	b.draft.steps = append(b.draft.steps, steps...)
	return b
}

// Do appends an inline task running fn.
func (b *Builder) Do(fn task.Func) *Builder {
	return b.AddTask(task.New(b.nextDoName(), fn))
}

func (b *Builder) nextDoName() string {
	b.doSeq++
	return fmt.Sprintf("%s.do[%d]", b.draft.name, b.doSeq)
}

// Use applies templates in order.
func (b *Builder) Use(templates ...Template) *Builder {
	for _, tpl := range templates {
		if tpl != nil {
			tpl(b)
		}
	}
	return b
}

// DoWith appends an inline task whose work function receives param.
func DoWith[P any](b *Builder, param P, fn func(ctx context.Context, sess *session.Session, param P) error) *Builder {
	return b.Do(func(ctx context.Context, sess *session.Session) error {
		return fn(ctx, sess, param)
	})
}

// ForEach calls fn once per item while the target is being configured, so a
// single definition can fan out over a list discovered up front.
func ForEach[T any](b *Builder, items []T, fn func(item T, b *Builder)) *Builder {
	for _, item := range items {
		fn(item, b)
	}
	return b
}

// Build validates the draft and returns an immutable Target.
func (b *Builder) Build() (*Target, error) {
	d := b.draft
	if d.name == "" {
		return nil, errors.New("target name must not be empty")
	}
	seen := make(map[string]bool, len(d.deps))
	for _, dep := range d.deps {
		if dep.Name == d.name {
			return nil, fmt.Errorf("target '%s' depends on itself", d.name)
		}
		if seen[dep.Name] {
			return nil, fmt.Errorf("target '%s' declares dependency '%s' more than once", d.name, dep.Name)
		}
		seen[dep.Name] = true
	}
	d.steps = append([]task.Step(nil), d.steps...)
	d.deps = append([]Dependency(nil), d.deps...)
	return &d, nil
}

// MustBuild is like Build but panics on error. It is meant for targets
// declared in Go code where a bad definition is a programming error.
func (b *Builder) MustBuild() *Target {
	t, err := b.Build()
	if err != nil {
		panic(err)
	}
	return t
}
