// Package hcl_adapter reads HCL build files into the config model and
// compiles that model into target builders.
package hcl_adapter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/spf13/afero"
	"github.com/vk/buildgrid/internal/config"
	"github.com/vk/buildgrid/internal/ctxlog"
	"github.com/vk/buildgrid/internal/fsutil"
)

// Loader is the HCL-specific implementation of the config.Loader interface.
type Loader struct{}

// NewLoader creates a new HCL build file loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load parses every .hcl file found under paths and merges all blocks into
// one model. Files are processed in lexical order within each directory.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL loader started.", "path_count", len(paths))

	model := &config.Model{Templates: make(map[string]*config.Template)}

	hclFiles, err := l.findAllHCLFiles(paths)
	if err != nil {
		return nil, err
	}
	if len(hclFiles) == 0 {
		return nil, fmt.Errorf("no .hcl build files found in %v", paths)
	}
	logger.Debug("Discovered HCL files.", "count", len(hclFiles))

	parser := hclparse.NewParser()
	for _, file := range hclFiles {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse HCL file %s: %w", file, diags)
		}

		var root fileRoot
		if diags := gohcl.DecodeBody(hclFile.Body, nil, &root); diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode HCL file %s: %w", file, diags)
		}

		for _, p := range root.Properties {
			prop, err := translateProperty(ctx, p)
			if err != nil {
				return nil, err
			}
			model.Properties = append(model.Properties, prop)
		}
		for _, tb := range root.Templates {
			if existing, dup := model.Templates[tb.Name]; dup {
				return nil, fmt.Errorf("template '%s' declared at %s is already declared at %s", tb.Name, tb.DeclRange, existing.DeclRange)
			}
			tpl, err := translateTemplate(ctx, tb)
			if err != nil {
				return nil, err
			}
			model.Templates[tpl.Name] = tpl
		}
		for _, tb := range root.Targets {
			t, err := translateTarget(ctx, tb)
			if err != nil {
				return nil, err
			}
			model.Targets = append(model.Targets, t)
		}
	}

	logger.Debug("HCL loading complete.", "properties", len(model.Properties), "targets", len(model.Targets), "templates", len(model.Templates))
	return model, nil
}

// findAllHCLFiles expands files and directories into a flat, de-duplicated
// list of .hcl files. Missing paths are an error.
func (l *Loader) findAllHCLFiles(paths []string) ([]string, error) {
	var allFiles []string
	seen := make(map[string]struct{})
	add := func(p string) {
		if _, wasSeen := seen[p]; !wasSeen {
			allFiles = append(allFiles, p)
			seen[p] = struct{}{}
		}
	}

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("error accessing path %s: %w", path, err)
		}
		if !info.IsDir() {
			if filepath.Ext(path) != ".hcl" {
				return nil, fmt.Errorf("build file %s does not have the .hcl extension", path)
			}
			add(path)
			continue
		}
		found, err := fsutil.FindFilesByExtension(afero.NewOsFs(), path, ".hcl")
		if err != nil {
			return nil, err
		}
		for _, f := range found {
			add(f)
		}
	}
	return allFiles, nil
}
