package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/vk/buildgrid/internal/app"
	"github.com/vk/buildgrid/internal/args"
	"github.com/vk/buildgrid/internal/dag"
)

// Command names the action an invocation performs.
type Command string

const (
	CommandRun  Command = "run"
	CommandList Command = "list"
	CommandPlan Command = "plan"
)

// Exit codes returned by the binary.
const (
	ExitOK          = 0
	ExitRunFailed   = 1
	ExitConfigError = 2
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Invocation is a parsed command line.
type Invocation struct {
	Command Command
	Config  *app.Config
	// Targets requested on the command line, without key=value overrides.
	Targets []string
	// All lists hidden targets too.
	All bool
}

// flags holds the values bound to the persistent flags.
type flags struct {
	files      []string
	configFile string
	envFile    string
	logLevel   string
	logFormat  string
	workers    int
	statusPort int
}

// Parse processes command-line arguments. It returns the parsed invocation,
// a boolean indicating if the program should exit cleanly (help was shown),
// or an ExitError.
func Parse(argv []string, output io.Writer) (*Invocation, bool, error) {
	slog.Debug("CLI parser started.")
	var (
		f   flags
		inv *Invocation
		all bool
	)

	// build turns positional arguments into an invocation once cobra has
	// matched a command.
	build := func(command Command) func(*cobra.Command, []string) error {
		return func(_ *cobra.Command, positional []string) error {
			overrides, targets := args.ParseOverrides(positional)
			if command == CommandList && len(targets) > 0 {
				return fmt.Errorf("list does not accept targets, got %v", targets)
			}
			cfg, err := app.NewConfig(app.Config{
				BuildPaths: f.files,
				ConfigFile: f.configFile,
				EnvFile:    f.envFile,
				Overrides:  overrides,
				LogFormat:  f.logFormat,
				LogLevel:   f.logLevel,
				Workers:    f.workers,
				StatusPort: f.statusPort,
			})
			if err != nil {
				return err
			}
			inv = &Invocation{Command: command, Config: cfg, Targets: targets, All: all}
			return nil
		}
	}

	root := &cobra.Command{
		Use:   "buildgrid [targets...] [key=value...]",
		Short: "buildgrid - a declarative, concurrent build orchestrator.",
		Long: `buildgrid runs build targets declared in HCL files.

Targets are executed after their dependencies. Without target names the
targets marked as default run. Arguments of the form key=value override
build properties.`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          build(CommandRun),
	}
	root.SetArgs(argv)
	root.SetOut(output)
	root.SetErr(output)

	pf := root.PersistentFlags()
	pf.StringArrayVarP(&f.files, "file", "f", []string{"."}, "Build file or directory of .hcl files. Repeatable.")
	pf.StringVar(&f.configFile, "config", "", "YAML file of property values.")
	pf.StringVar(&f.envFile, "env-file", "", "A .env file read beneath the process environment.")
	pf.StringVar(&f.logLevel, "log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	pf.StringVar(&f.logFormat, "log-format", "text", "Log output format. Options: 'text', 'json' or 'pretty'.")
	pf.IntVar(&f.workers, "workers", 4, "Maximum number of targets running at once.")
	pf.IntVar(&f.statusPort, "status-port", 0, "Port for the /health and /metrics server. 0 is disabled.")

	runCmd := &cobra.Command{
		Use:   "run [targets...] [key=value...]",
		Short: "Run targets and their dependencies (default command).",
		Args:  cobra.ArbitraryArgs,
		RunE:  build(CommandRun),
	}
	listCmd := &cobra.Command{
		Use:   "list [key=value...]",
		Short: "List declared targets.",
		Args:  cobra.ArbitraryArgs,
		RunE:  build(CommandList),
	}
	listCmd.Flags().BoolVar(&all, "all", false, "Include hidden targets.")
	planCmd := &cobra.Command{
		Use:   "plan [targets...] [key=value...]",
		Short: "Print the order targets would run in without running them.",
		Args:  cobra.ArbitraryArgs,
		RunE:  build(CommandPlan),
	}
	root.AddCommand(runCmd, listCmd, planCmd)

	if err := root.Execute(); err != nil {
		return nil, false, &ExitError{Code: ExitConfigError, Message: err.Error()}
	}
	if inv == nil {
		// Help or version output was printed.
		return nil, true, nil
	}

	slog.Debug("CLI parser finished successfully.", "command", inv.Command, "targets", inv.Targets)
	return inv, false, nil
}

// AsExitError maps an application error to the process exit code:
// configuration problems exit with 2, everything else with 1.
func AsExitError(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr
	}
	if errors.Is(err, dag.ErrConfiguration) {
		return &ExitError{Code: ExitConfigError, Message: err.Error()}
	}
	return &ExitError{Code: ExitRunFailed, Message: err.Error()}
}
