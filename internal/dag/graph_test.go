package dag

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/buildgrid/internal/session"
	"github.com/vk/buildgrid/internal/target"
)

func noop(context.Context, *session.Session) error { return nil }

// mustGraph registers every builder and fails the test on error.
func mustGraph(t *testing.T, builders ...*target.Builder) *Graph {
	t.Helper()
	g := New()
	for _, b := range builders {
		require.NoError(t, g.Add(b))
	}
	return g
}

func indexOf(order []string, name string) int {
	for i, n := range order {
		if n == name {
			return i
		}
	}
	return -1
}

func TestResolve_DependenciesPrecedeDependents(t *testing.T) {
	// Arrange
	g := mustGraph(t,
		target.New("clean"),
		target.New("restore"),
		target.New("compile").DependsOn("clean", "restore"),
		target.New("lint").DependsOn("restore"),
		target.New("test").DependsOn("compile"),
		target.New("package").DependsOn("test").DependsOnAsync("lint", "docs"),
		target.New("docs"),
		target.New("unrelated"),
	)

	// Act
	order, err := g.Resolve("package")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, []string{"clean", "restore", "compile", "test", "lint", "docs", "package"}, order)
	assert.NotContains(t, order, "unrelated")
	for _, tg := range g.Targets() {
		if indexOf(order, tg.Name()) < 0 {
			continue
		}
		for _, dep := range tg.Dependencies() {
			assert.Less(t, indexOf(order, dep.Name), indexOf(order, tg.Name()),
				"%s must precede %s", dep.Name, tg.Name())
		}
	}
}

func TestResolve_SharedDependencyAppearsOnce(t *testing.T) {
	g := mustGraph(t,
		target.New("base"),
		target.New("a").DependsOn("base"),
		target.New("b").DependsOn("base"),
	)

	order, err := g.Resolve("a", "b")

	require.NoError(t, err)
	assert.Equal(t, []string{"base", "a", "b"}, order)
}

func TestRegister_DuplicateTarget(t *testing.T) {
	g := New()
	require.NoError(t, g.Add(target.New("build")))

	err := g.Add(target.New("build"))

	var dupErr *DuplicateTargetError
	require.ErrorAs(t, err, &dupErr)
	assert.Equal(t, "build", dupErr.Name)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestAdd_InvalidTarget(t *testing.T) {
	err := New().Add(target.New("loop").DependsOn("loop"))

	var invalid *InvalidTargetError
	require.ErrorAs(t, err, &invalid)
	assert.ErrorIs(t, err, ErrConfiguration)
	assert.ErrorContains(t, err, "depends on itself")
}

func TestValidate_UnknownDependency(t *testing.T) {
	g := mustGraph(t, target.New("deploy").DependsOnAsync("package"))

	err := g.Validate()

	var unknown *UnknownTargetError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "package", unknown.Name)
	assert.Equal(t, "deploy", unknown.Referrer)
	assert.ErrorIs(t, err, ErrConfiguration)
	assert.EqualError(t, err, "target 'deploy' depends on unknown target 'package'")
}

func TestResolve_UnknownRequestedTarget(t *testing.T) {
	g := mustGraph(t, target.New("build"))

	_, err := g.Resolve("biuld")

	assert.EqualError(t, err, "unknown target 'biuld'")
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestValidate_Cycles(t *testing.T) {
	testCases := []struct {
		name      string
		builders  []*target.Builder
		wantCycle []string
	}{
		{
			name: "three node cycle",
			builders: []*target.Builder{
				target.New("a").DependsOn("b"),
				target.New("b").DependsOn("c"),
				target.New("c").DependsOn("a"),
			},
			wantCycle: []string{"a", "b", "c", "a"},
		},
		{
			name: "cycle through async edge",
			builders: []*target.Builder{
				target.New("root").DependsOn("x"),
				target.New("x").DependsOnAsync("y"),
				target.New("y").DependsOn("x"),
			},
			wantCycle: []string{"x", "y", "x"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := mustGraph(t, tc.builders...).Validate()

			var cycleErr *CyclicDependencyError
			require.ErrorAs(t, err, &cycleErr)
			assert.Equal(t, tc.wantCycle, cycleErr.Cycle)
			assert.ErrorIs(t, err, ErrConfiguration)
		})
	}
}

func TestDefaultsAndTargets(t *testing.T) {
	g := mustGraph(t,
		target.New("build").Default(),
		target.New("internal").Hidden(),
		target.New("test").Default(),
	)

	assert.Equal(t, []string{"build", "test"}, g.Defaults())
	require.Len(t, g.Targets(), 3)
	assert.Equal(t, "internal", g.Targets()[1].Name())
	tg, ok := g.Target("internal")
	require.True(t, ok)
	assert.True(t, tg.Hidden())
	_, ok = g.Target("nope")
	assert.False(t, ok)
}

func TestGraphError_Unwrap(t *testing.T) {
	a, b := errors.New("a broke"), errors.New("b broke")
	err := &GraphError{Failures: []TargetFailure{{Target: "a", Err: a}, {Target: "b", Err: b}}}

	assert.ErrorIs(t, err, a)
	assert.ErrorIs(t, err, b)
	assert.EqualError(t, err, "build failed, 2 target(s) did not succeed: a: a broke; b: b broke")
}
