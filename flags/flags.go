package flags

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

const EnvVarPrefix = "DART_TRIAGE"

func prefixEnvVars(name string) []string {
	return []string{EnvVarPrefix + "_" + name}
}

var (
	Packages = &cli.StringSliceFlag{
		Name:    "package",
		Value:   cli.NewStringSlice("."),
		EnvVars: prefixEnvVars("PACKAGES"),
		Usage:   "Package directory to run tests in (repeatable)",
	}
	ReportFile = &cli.StringFlag{
		Name:    "report",
		Value:   "test_report.yaml",
		EnvVars: prefixEnvVars("REPORT"),
		Usage:   "Path of the YAML triage report (written only when tests failed or were skipped)",
	}
	LogDir = &cli.StringFlag{
		Name:    "logdir",
		Value:   "logs",
		EnvVars: prefixEnvVars("LOGDIR"),
		Usage:   "Directory for per-run artifacts (raw event streams, summary, metrics snapshot)",
	}
	DartBinary = &cli.StringFlag{
		Name:    "dart-binary",
		Value:   "dart",
		EnvVars: prefixEnvVars("DART_BINARY"),
		Usage:   "Path to the Dart binary to use for running tests",
	}
	RunnerCommand = &cli.StringFlag{
		Name:    "runner-command",
		Value:   "",
		EnvVars: prefixEnvVars("RUNNER_COMMAND"),
		Usage:   "Full test command override (eg. 'fvm dart test'); must support the JSON reporter flags",
	}
	Concurrency = &cli.IntFlag{
		Name:    "concurrency",
		Value:   0,
		EnvVars: prefixEnvVars("CONCURRENCY"),
		Usage:   "Test concurrency passed to the runner; 0 keeps the runner's default",
	}
	LogLevel = &cli.StringFlag{
		Name:    "log.level",
		Value:   "info",
		EnvVars: prefixEnvVars("LOG_LEVEL"),
		Usage:   "Log level (debug, info, warn, error)",
	}
)

var requiredFlags = []cli.Flag{}

var optionalFlags = []cli.Flag{
	Packages,
	ReportFile,
	LogDir,
	DartBinary,
	RunnerCommand,
	Concurrency,
	LogLevel,
}

var Flags []cli.Flag

func init() {
	Flags = append(requiredFlags, optionalFlags...)
}

func CheckRequired(ctx *cli.Context) error {
	for _, f := range requiredFlags {
		if !ctx.IsSet(f.Names()[0]) {
			return fmt.Errorf("flag %s is required", f.Names()[0])
		}
	}
	return nil
}
