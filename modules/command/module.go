// Package command provides the exec task kind, which runs an external
// program and streams its output through the session.
package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"

	"github.com/google/shlex"
	"github.com/vk/buildgrid/internal/ctxlog"
	"github.com/vk/buildgrid/internal/registry"
	"github.com/vk/buildgrid/internal/session"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for the exec task.
type Input struct {
	// Command is split with shell quoting rules; no shell is involved.
	Command string            `hcl:"command"`
	Args    []string          `hcl:"args,optional"`
	Dir     string            `hcl:"dir,optional"`
	Env     map[string]string `hcl:"env,optional"`
	// OutputProperty, when set, receives the trimmed stdout of the command.
	OutputProperty string `hcl:"output_property,optional"`
	// Quiet suppresses forwarding of the command output.
	Quiet bool `hcl:"quiet,optional"`
}

// OnRunExec runs the command and fails when it exits non-zero.
func OnRunExec(ctx context.Context, sess *session.Session, input *Input) error {
	argv, err := shlex.Split(input.Command)
	if err != nil {
		return fmt.Errorf("failed to parse command %q: %w", input.Command, err)
	}
	if len(argv) == 0 {
		return errors.New("command must not be empty")
	}
	argv = append(argv, input.Args...)

	logger := ctxlog.FromContext(ctx).With("program", argv[0])
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = sess.WorkDir
	if input.Dir != "" {
		cmd.Dir = sess.Path(input.Dir)
	}
	cmd.Env = mergeEnv(os.Environ(), input.Env)

	var captured bytes.Buffer
	var stdout, stderr io.Writer = io.Discard, io.Discard
	if !input.Quiet {
		out := sess.LineWriter("  | ")
		defer out.Close()
		stdout, stderr = out, out
	}
	if input.OutputProperty != "" {
		stdout = io.MultiWriter(stdout, &captured)
	}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	logger.Info("Running command.", "args", argv[1:], "dir", cmd.Dir)
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return fmt.Errorf("command '%s' exited with code %d", argv[0], exitErr.ExitCode())
		}
		return fmt.Errorf("failed to run command '%s': %w", argv[0], err)
	}

	if input.OutputProperty != "" {
		sess.Props.Put(input.OutputProperty, strings.TrimSpace(captured.String()))
		logger.Debug("Stored command output.", "property", input.OutputProperty)
	}
	return nil
}

// mergeEnv overlays extra on base. Keys are applied in sorted order so the
// result is stable.
func mergeEnv(base []string, extra map[string]string) []string {
	if len(extra) == 0 {
		return base
	}
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(base)+len(extra))
	for _, kv := range base {
		name, _, _ := strings.Cut(kv, "=")
		if _, overridden := extra[name]; !overridden {
			out = append(out, kv)
		}
	}
	for _, k := range keys {
		out = append(out, k+"="+extra[k])
	}
	return out
}

// Register registers the handler with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterTask("exec", registry.Handler("Runs an external program.", OnRunExec))
}
