package integration_tests

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/buildgrid/internal/app"
)

const joinBuild = `
target "a" {
	task "sleeper" {
		id       = "a"
		duration = "%s"
	}
}

target "b" {
	task "sleeper" {
		id       = "b"
		duration = "%s"
	}
}

target "join" {
	default          = true
	depends_on_async = ["a", "b"]
	task "sleeper" {
		id       = "join"
		duration = "1ms"
	}
}
`

// Test for: the dependent body starts only after every async dependency
// finished, whichever finishes first.
func TestDagConcurrency_AsyncJoinWaitsForAll(t *testing.T) {
	testCases := []struct {
		name string
		aDur string
		bDur string
	}{
		{name: "a is slower", aDur: "150ms", bDur: "20ms"},
		{name: "b is slower", aDur: "20ms", bDur: "150ms"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// --- Arrange ---
			m := newRecorderModule()
			files := map[string]string{"build.hcl": fmt.Sprintf(joinBuild, tc.aDur, tc.bDur)}
			testApp, _ := app.SetupAppTest(t, app.Config{Workers: 4}, files, m)

			// --- Act ---
			report, err := testApp.Run(context.Background())

			// --- Assert ---
			require.NoError(t, err)
			assert.True(t, report.Succeeded())

			a, okA := m.rec.Record("a")
			b, okB := m.rec.Record("b")
			join, okJoin := m.rec.Record("join")
			require.True(t, okA && okB && okJoin, "all three targets must have run")

			assert.False(t, join.Start.Before(a.End), "join started before a finished")
			assert.False(t, join.Start.Before(b.End), "join started before b finished")
			assert.True(t, a.Start.Before(b.End) && b.Start.Before(a.End), "async dependencies should overlap")
		})
	}
}

// Test for: the worker limit bounds how many target bodies run at once.
func TestDagConcurrency_WorkerLimitSerializesBodies(t *testing.T) {
	// --- Arrange ---
	m := newRecorderModule()
	files := map[string]string{"build.hcl": fmt.Sprintf(joinBuild, "40ms", "40ms")}
	testApp, _ := app.SetupAppTest(t, app.Config{Workers: 1}, files, m)

	// --- Act ---
	_, err := testApp.Run(context.Background())

	// --- Assert ---
	require.NoError(t, err)
	a, _ := m.rec.Record("a")
	b, _ := m.rec.Record("b")
	overlap := a.Start.Before(b.End) && b.Start.Before(a.End)
	assert.False(t, overlap, "with one worker the bodies must not overlap")
}

// Test for: sync dependencies run one after another in declared order, all
// before the dependent body.
func TestDagConcurrency_SyncChainIsSequential(t *testing.T) {
	// --- Arrange ---
	m := newRecorderModule()
	files := map[string]string{"build.hcl": `
		target "restore" {
			task "sleeper" {
				id       = "restore"
				duration = "30ms"
			}
		}

		target "compile" {
			task "sleeper" {
				id       = "compile"
				duration = "10ms"
			}
		}

		target "test" {
			depends_on = ["restore", "compile"]
			task "sleeper" {
				id       = "test"
				duration = "1ms"
			}
		}
	`}
	testApp, _ := app.SetupAppTest(t, app.Config{Workers: 4}, files, m)

	// --- Act ---
	_, err := testApp.Run(context.Background(), "test")

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, []string{"restore", "compile", "test"}, m.rec.Order())
}

// Test for: a target reached through several paths runs once.
func TestDagConcurrency_SharedDependencyRunsOnce(t *testing.T) {
	// --- Arrange ---
	m := newRecorderModule()
	files := map[string]string{"build.hcl": `
		target "version" {
			task "sleeper" {
				id = "version"
			}
		}

		target "pack_api" {
			depends_on = ["version"]
			task "sleeper" {
				id = "pack_api"
			}
		}

		target "pack_worker" {
			depends_on = ["version"]
			task "sleeper" {
				id = "pack_worker"
			}
		}

		target "release" {
			default          = true
			depends_on_async = ["pack_api", "pack_worker"]
		}
	`}
	testApp, _ := app.SetupAppTest(t, app.Config{Workers: 4}, files, m)

	// --- Act ---
	_, err := testApp.Run(context.Background())

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, 1, m.rec.Calls("version"))
	assert.Equal(t, 1, m.rec.Calls("pack_api"))
	assert.Equal(t, 1, m.rec.Calls("pack_worker"))
}
