package triage

import (
	"errors"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	"github.com/dartlab/dart-triage/flags"
)

// Config holds the triage tool configuration
type Config struct {
	Packages      []string
	ReportFile    string
	LogDir        string
	DartBinary    string
	RunnerCommand string
	Concurrency   int

	Log log.Logger
}

// NewConfig creates a new Config from CLI flags
func NewConfig(ctx *cli.Context, logger log.Logger) (*Config, error) {
	packages := ctx.StringSlice(flags.Packages.Name)
	if len(packages) == 0 {
		return nil, errors.New("at least one package directory is required")
	}
	for _, pkg := range packages {
		info, err := os.Stat(pkg)
		if err != nil {
			return nil, fmt.Errorf("package directory %q: %w", pkg, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("package path %q is not a directory", pkg)
		}
	}

	concurrency := ctx.Int(flags.Concurrency.Name)
	if concurrency < 0 {
		return nil, fmt.Errorf("concurrency must be non-negative, got %d", concurrency)
	}

	reportFile := ctx.String(flags.ReportFile.Name)
	if reportFile == "" {
		return nil, errors.New("report file path must not be empty")
	}

	return &Config{
		Packages:      packages,
		ReportFile:    reportFile,
		LogDir:        ctx.String(flags.LogDir.Name),
		DartBinary:    ctx.String(flags.DartBinary.Name),
		RunnerCommand: ctx.String(flags.RunnerCommand.Name),
		Concurrency:   concurrency,
		Log:           logger,
	}, nil
}
