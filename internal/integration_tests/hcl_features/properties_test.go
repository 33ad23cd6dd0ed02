package integration_tests

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/buildgrid/internal/app"
	"github.com/vk/buildgrid/internal/dag"
)

const propertiesBuild = `
property "configuration" {
	type    = string
	default = "Debug"
}

property "projects" {
	type    = list(string)
	default = ["api"]
}

property "publish" {
	type    = bool
	default = false
}

template "pack" {
	params = ["project"]
	task "sleeper" {
		id       = "pack-${param.project}-${prop.configuration}"
		duration = "1ms"
	}
}

target "build" {
	default  = true
	for_each = prop.projects
	use "pack" {
		project = each.value
	}
	task "sleeper" {
		when     = prop.publish
		id       = "publish-${each.value}"
		duration = "1ms"
	}
}
`

// Test for: declared defaults drive for_each, templates and guards.
func TestHclFeatures_Defaults(t *testing.T) {
	// --- Arrange ---
	m := newRecorderModule()
	testApp, _ := app.SetupAppTest(t, app.Config{}, map[string]string{"build.hcl": propertiesBuild}, m)

	// --- Act ---
	_, err := testApp.Run(context.Background())

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, []string{"pack-api-Debug"}, m.rec.Order())
}

// Test for: explicit overrides beat the config file, which beats the env
// file, which beats declared defaults.
func TestHclFeatures_PropertySources(t *testing.T) {
	// --- Arrange ---
	files := map[string]string{
		"build.hcl":  propertiesBuild,
		"props.yaml": "projects: [api, worker]\nconfiguration: Staging\n",
		".env":       "BUILDGRID_CONFIGURATION=FromEnvFile\nBUILDGRID_PUBLISH=true\n",
	}
	m := newRecorderModule()
	cfg := app.Config{
		ConfigFile: "props.yaml",
		EnvFile:    ".env",
		Overrides:  map[string]string{"configuration": "Release"},
	}
	testApp, _ := app.SetupAppTest(t, cfg, files, m)

	// --- Act ---
	_, err := testApp.Run(context.Background())

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, []string{
		"pack-api-Release",
		"publish-api",
		"pack-worker-Release",
		"publish-worker",
	}, m.rec.Order())
}

// Test for: a property value of the wrong type is a configuration error.
func TestHclFeatures_PropertyTypeMismatch(t *testing.T) {
	// --- Arrange ---
	m := newRecorderModule()
	cfg := app.Config{Overrides: map[string]string{"publish": "sometimes"}}
	testApp, _ := app.SetupAppTest(t, cfg, map[string]string{"build.hcl": propertiesBuild}, m)

	// --- Act ---
	_, err := testApp.Run(context.Background())

	// --- Assert ---
	require.Error(t, err)
	assert.ErrorIs(t, err, dag.ErrConfiguration)
	assert.Contains(t, err.Error(), "property 'publish'")
	assert.Empty(t, m.rec.Order())
}

// Test for: build files in one directory are merged, so targets may depend
// on targets declared in another file.
func TestHclFeatures_MultiFileBuild(t *testing.T) {
	// --- Arrange ---
	m := newRecorderModule()
	files := map[string]string{
		"a_version.hcl": `
			target "version" {
				task "sleeper" {
					id = "version"
				}
			}
		`,
		"b_pack.hcl": `
			target "pack" {
				default    = true
				depends_on = ["version"]
				task "sleeper" {
					id = "pack"
				}
			}
		`,
		".git/ignored.hcl": `this is not valid hcl {`,
	}
	testApp, _ := app.SetupAppTest(t, app.Config{}, files, m)

	// --- Act ---
	_, err := testApp.Run(context.Background())

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, []string{"version", "pack"}, m.rec.Order())
}
