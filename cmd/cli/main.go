package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/vk/buildgrid/internal/app"
	"github.com/vk/buildgrid/internal/cli"
	"github.com/vk/buildgrid/internal/hcl_adapter"
)

// main is the entrypoint for the buildgrid application.
func main() {
	// Use a minimal logger until the full one is configured.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Stdout, os.Args[1:])
	stop()

	// The real main function handles errors and exit codes.
	if err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.ExitRunFailed)
	}
}

// run encapsulates the main application logic for easier testing and error handling.
func run(ctx context.Context, outW io.Writer, args []string) (err error) {
	inv, shouldExit, err := cli.Parse(args, outW)
	if err != nil {
		return err
	}
	if shouldExit {
		return nil
	}

	// Task handlers run third-party code; a panic becomes a run failure
	// instead of a crash without a report.
	defer func() {
		if r := recover(); r != nil {
			err = &cli.ExitError{Code: cli.ExitRunFailed, Message: fmt.Sprintf("application panicked: %v", r)}
		}
	}()

	// Instantiate the concrete HCL loader to pass to the app.
	loader := hcl_adapter.NewLoader()
	buildgridApp := app.NewApp(outW, inv.Config, loader)

	switch inv.Command {
	case cli.CommandList:
		err = buildgridApp.List(ctx, inv.All)
	case cli.CommandPlan:
		err = buildgridApp.Plan(ctx, inv.Targets...)
	default:
		_, err = buildgridApp.Run(ctx, inv.Targets...)
	}
	return cli.AsExitError(err)
}
