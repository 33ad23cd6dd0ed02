package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vk/buildgrid/internal/args"
	"github.com/vk/buildgrid/internal/config"
	"github.com/vk/buildgrid/internal/ctxlog"
	"github.com/vk/buildgrid/internal/dag"
	"github.com/vk/buildgrid/internal/hcl_adapter"
	"github.com/vk/buildgrid/internal/session"
)

// build is everything prepared for one invocation.
type build struct {
	model *config.Model
	graph *dag.Graph
	sess  *session.Session
}

// load reads the build files, resolves properties and compiles a validated
// graph. Every error it returns is a ConfigError.
func (a *App) load(ctx context.Context) (*build, error) {
	logger := ctxlog.FromContext(ctx)

	model, err := a.loader.Load(ctx, a.config.BuildPaths...)
	if err != nil {
		return nil, &ConfigError{Err: fmt.Errorf("failed to load build files: %w", err)}
	}
	logger.Debug("Build files loaded.", "targets", len(model.Targets), "properties", len(model.Properties))

	decls, err := hcl_adapter.Declarations(model.Properties)
	if err != nil {
		return nil, &ConfigError{Err: err}
	}
	resolution, err := args.Resolve(ctx, args.Options{
		Declarations: decls,
		Explicit:     a.config.Overrides,
		ConfigFile:   a.config.ConfigFile,
		DotEnvFile:   a.config.EnvFile,
	})
	if err != nil {
		return nil, &ConfigError{Err: fmt.Errorf("failed to resolve properties: %w", err)}
	}
	for _, name := range resolution.Names() {
		logger.Debug("Property resolved.", "name", name, "source", resolution.Sources[name])
	}

	rootDir, err := projectRoot(a.config.BuildPaths[0])
	if err != nil {
		return nil, &ConfigError{Err: err}
	}
	sess := session.New(session.Options{
		Logger:  a.logger,
		Args:    resolution,
		WorkDir: rootDir,
		Out:     a.outW,
	})

	builders, err := hcl_adapter.NewCompiler(a.registry, resolution.Values, rootDir).Compile(ctx, model)
	if err != nil {
		return nil, &ConfigError{Err: err}
	}

	graph := dag.New(dag.WithWorkers(a.config.Workers), dag.WithHooks(a.metrics.hooks()))
	for _, b := range builders {
		if err := graph.Add(b); err != nil {
			return nil, err
		}
	}
	if err := graph.Validate(); err != nil {
		return nil, err
	}
	logger.Debug("Target graph built.", "targets", len(builders))
	return &build{model: model, graph: graph, sess: sess}, nil
}

// projectRoot is the directory relative paths in build files refer to: the
// build directory itself, or the directory holding the build file.
func projectRoot(buildPath string) (string, error) {
	abs, err := filepath.Abs(buildPath)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return abs, nil
	}
	return filepath.Dir(abs), nil
}
