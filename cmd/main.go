package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	triage "github.com/dartlab/dart-triage"
	"github.com/dartlab/dart-triage/flags"
)

var (
	Version   = "v0.3.0"
	GitCommit = ""
	GitDate   = ""
)

func main() {
	app := cli.NewApp()
	app.Version = fmt.Sprintf("%s-%s-%s", Version, GitCommit, GitDate)
	app.Name = "dart-triage"
	app.Usage = "Dart test runner triage tool"
	app.Description = "dart-triage runs Dart test packages, reconstructs the JSON reporter event stream and writes a YAML report of failed and skipped tests"
	app.Flags = flags.Flags
	app.Action = run
	app.ExitErrHandler = func(c *cli.Context, err error) {
		var exitErr cli.ExitCoder
		if errors.As(err, &exitErr) {
			cli.HandleExitCoder(exitErr)
		} else if err != nil {
			// Propagates the external test process's exit status when the run
			// died without structured output.
			cli.HandleExitCoder(cli.Exit(err.Error(), triage.ExitCode(err)))
		}
	}

	if err := app.Run(os.Args); err != nil {
		log.Crit("Application failed", "message", err)
	}
}

func run(ctx *cli.Context) error {
	logger, err := newLogger(ctx.String(flags.LogLevel.Name))
	if err != nil {
		return triage.NewRuntimeError(err)
	}
	log.SetDefault(logger)

	if err := flags.CheckRequired(ctx); err != nil {
		return triage.NewRuntimeError(err)
	}

	cfg, err := triage.NewConfig(ctx, logger)
	if err != nil {
		return triage.NewRuntimeError(fmt.Errorf("failed to create config: %w", err))
	}

	t, err := triage.New(cfg, Version)
	if err != nil {
		return triage.NewRuntimeError(fmt.Errorf("failed to create triage: %w", err))
	}

	return t.Run(ctx.Context)
}

func newLogger(level string) (log.Logger, error) {
	lvl, err := levelFromString(level)
	if err != nil {
		return nil, err
	}
	handler := log.NewTerminalHandlerWithLevel(os.Stderr, lvl, false)
	return log.NewLogger(handler), nil
}

func levelFromString(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return log.LevelTrace, nil
	case "debug":
		return log.LevelDebug, nil
	case "info":
		return log.LevelInfo, nil
	case "warn":
		return log.LevelWarn, nil
	case "error":
		return log.LevelError, nil
	case "crit":
		return log.LevelCrit, nil
	default:
		return log.LevelInfo, fmt.Errorf("unknown log level: %q", level)
	}
}
