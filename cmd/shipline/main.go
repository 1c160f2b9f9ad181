package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/Nr18/shipline/internal/app"
	"github.com/Nr18/shipline/internal/cli"
	"github.com/Nr18/shipline/internal/run"
	"github.com/Nr18/shipline/internal/trigger"
)

// main is the entrypoint for the shipline daemon.
func main() {
	if err := realMain(os.Stdout, os.Args[1:]); err != nil {
		if exitErr, ok := err.(*cli.ExitError); ok {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// realMain encapsulates the application logic for easier testing and
// error handling.
func realMain(outW io.Writer, args []string) error {
	opts, shouldExit, err := cli.Parse(args, outW)
	if err != nil {
		return err
	}
	if shouldExit {
		return nil
	}

	cfg, err := app.LoadFileConfig(opts.ConfigPath)
	if err != nil {
		return err
	}
	applyOverrides(cfg, opts)

	a, err := app.New(outW, cfg, nil)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.Serve {
		return a.Serve(ctx)
	}

	kind := run.TriggerPullRequest
	if opts.Event == "push" {
		kind, err = trigger.ClassifyPush(opts.Ref)
		if err != nil {
			return &cli.ExitError{Code: 2, Message: err.Error()}
		}
	}

	result, err := a.Run(ctx, trigger.Event{Kind: kind, Ref: opts.Ref, Commit: opts.Commit})
	if err != nil {
		return err
	}
	if result.Failed() {
		return result.Err()
	}
	return nil
}

// applyOverrides lets flags win over the config file.
func applyOverrides(cfg *app.FileConfig, opts *cli.Options) {
	if opts.LogFormat != "" {
		cfg.LogFormat = opts.LogFormat
	}
	if opts.LogLevel != "" {
		cfg.LogLevel = opts.LogLevel
	}
	if opts.Workers > 0 {
		cfg.Workers = opts.Workers
	}
	if opts.Listen != "" {
		cfg.Listen = opts.Listen
	}
}
