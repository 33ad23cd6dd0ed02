package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/vk/buildgrid/internal/hcl_adapter"
	"github.com/vk/buildgrid/internal/registry"
	"github.com/vk/buildgrid/internal/testutil"
)

// SetupAppTest writes files (name to content) into a fresh directory and
// creates an app for system testing that builds from it. Relative ConfigFile
// and EnvFile paths refer to files in that directory. Without modules the
// core modules are registered.
func SetupAppTest(t *testing.T, cfg Config, files map[string]string, modules ...registry.Module) (*App, *testutil.SafeBuffer) {
	t.Helper()

	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("failed to create directory for %s: %v", name, err)
		}
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}
	if len(cfg.BuildPaths) == 0 {
		cfg.BuildPaths = []string{dir}
	}
	if cfg.ConfigFile != "" && !filepath.IsAbs(cfg.ConfigFile) {
		cfg.ConfigFile = filepath.Join(dir, cfg.ConfigFile)
	}
	if cfg.EnvFile != "" && !filepath.IsAbs(cfg.EnvFile) {
		cfg.EnvFile = filepath.Join(dir, cfg.EnvFile)
	}
	if cfg.Workers == 0 {
		cfg.Workers = 2
	}
	cfg.LogLevel = "debug"

	appConfig, err := NewConfig(cfg)
	if err != nil {
		t.Fatalf("invalid test config: %v", err)
	}

	logBuffer := &testutil.SafeBuffer{}
	testApp := NewApp(logBuffer, appConfig, hcl_adapter.NewLoader(), modules...)

	t.Cleanup(func() {
		if os.Getenv("BUILDGRID_TEST_LOGS") == "true" {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logBuffer.String())
		}
	})

	return testApp, logBuffer
}
