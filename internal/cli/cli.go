package cli

import (
	"flag"
	"fmt"
	"io"
	"strings"
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

// Options is the parsed command line.
type Options struct {
	ConfigPath string

	// Serve selects daemon mode; otherwise a single event is processed.
	Serve bool

	// One-shot event description.
	Event  string
	Ref    string
	Commit string

	// Overrides applied on top of the config file. Empty or zero means
	// the file's value wins.
	LogFormat string
	LogLevel  string
	Workers   int
	Listen    string
}

// Parse processes command-line arguments. It returns the populated
// options, a boolean indicating if the program should exit cleanly, or an
// ExitError.
func Parse(args []string, output io.Writer) (*Options, bool, error) {
	flagSet := flag.NewFlagSet("shipline", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
shipline - a build-test-release pipeline orchestrator.

Usage:
  shipline [options] CONFIG_PATH

Arguments:
  CONFIG_PATH
    Path to the daemon's YAML configuration file.

Modes:
  -serve starts the webhook daemon. Without it, exactly one event
  (-event, -ref, -commit) is processed and the process exits with the
  run's status.

Options:
`)
		flagSet.PrintDefaults()
	}

	configFlag := flagSet.String("config", "", "Path to the configuration file.")
	cFlag := flagSet.String("c", "", "Path to the configuration file (shorthand).")
	serveFlag := flagSet.Bool("serve", false, "Run the webhook daemon instead of a one-shot event.")
	eventFlag := flagSet.String("event", "", "One-shot event kind. Options: 'pull_request' or 'push'.")
	refFlag := flagSet.String("ref", "", "Full git ref of the one-shot event, e.g. refs/tags/v1.4.0.")
	commitFlag := flagSet.String("commit", "", "Commit SHA of the one-shot event.")
	listenFlag := flagSet.String("listen", "", "Listen address for the webhook server, overrides the config file.")
	workersFlag := flagSet.Int("workers", 0, "Number of concurrent workers, overrides the config file.")
	logFormatFlag := flagSet.String("log-format", "", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "", "Logging level. Options: 'debug', 'info', 'warn', 'error'.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	path := ""
	if *configFlag != "" {
		path = *configFlag
	} else if *cFlag != "" {
		path = *cFlag
	} else if flagSet.NArg() > 0 {
		path = flagSet.Arg(0)
	}
	if path == "" {
		flagSet.Usage()
		return nil, true, nil
	}

	logFormat := strings.ToLower(*logFormatFlag)
	switch logFormat {
	case "", "text", "json":
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	opts := &Options{
		ConfigPath: path,
		Serve:      *serveFlag,
		Event:      *eventFlag,
		Ref:        *refFlag,
		Commit:     *commitFlag,
		LogFormat:  logFormat,
		LogLevel:   logLevel,
		Workers:    *workersFlag,
		Listen:     *listenFlag,
	}

	if !opts.Serve {
		switch opts.Event {
		case "pull_request", "push":
		case "":
			return nil, false, &ExitError{Code: 2, Message: "one-shot mode requires -event (or pass -serve)"}
		default:
			return nil, false, &ExitError{Code: 2, Message: "invalid event: must be 'pull_request' or 'push'"}
		}
		if opts.Ref == "" || opts.Commit == "" {
			return nil, false, &ExitError{Code: 2, Message: "one-shot mode requires -ref and -commit"}
		}
	}

	return opts, false, nil
}
