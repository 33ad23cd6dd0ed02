package env_vars

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"github.com/vk/buildgrid/internal/ctxlog"
	"github.com/vk/buildgrid/internal/registry"
	"github.com/vk/buildgrid/internal/session"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for the env_vars task.
type Input struct {
	// File is a .env file to read. Without it the process environment is used.
	File string `hcl:"file,optional"`
	// Prefix selects variables starting with it. The prefix is stripped and
	// the remainder lowercased to form the property name.
	Prefix string `hcl:"prefix,optional"`
	// Names selects variables by exact name; they are stored unchanged.
	Names []string `hcl:"names,optional"`
}

// OnRunEnvVars copies environment variables into the property bag.
func OnRunEnvVars(ctx context.Context, sess *session.Session, input *Input) error {
	vars, err := readVars(sess, input.File)
	if err != nil {
		return err
	}

	wanted := make(map[string]struct{}, len(input.Names))
	for _, n := range input.Names {
		wanted[n] = struct{}{}
	}

	var stored []string
	for name, value := range vars {
		if _, ok := wanted[name]; ok {
			sess.Props.Put(name, value)
			stored = append(stored, name)
			continue
		}
		if input.Prefix != "" && strings.HasPrefix(name, input.Prefix) {
			prop := strings.ToLower(strings.TrimPrefix(name, input.Prefix))
			if prop == "" {
				continue
			}
			sess.Props.Put(prop, value)
			stored = append(stored, prop)
		}
	}
	sort.Strings(stored)
	ctxlog.FromContext(ctx).Info("Environment variables loaded.", "source", sourceName(input.File), "properties", stored)
	return nil
}

func readVars(sess *session.Session, file string) (map[string]string, error) {
	if file == "" {
		envMap := make(map[string]string)
		for _, e := range os.Environ() {
			if k, v, ok := strings.Cut(e, "="); ok {
				envMap[k] = v
			}
		}
		return envMap, nil
	}

	f, err := sess.FS.Open(sess.Path(file))
	if err != nil {
		return nil, fmt.Errorf("failed to open env file: %w", err)
	}
	defer f.Close()
	vars, err := godotenv.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse env file %s: %w", file, err)
	}
	return vars, nil
}

func sourceName(file string) string {
	if file == "" {
		return "process"
	}
	return file
}

// Register registers the handler with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterTask("env_vars", registry.Handler("Loads environment variables into properties.", OnRunEnvVars))
}
