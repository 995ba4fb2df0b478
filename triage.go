// Package triage orchestrates a full triage run: invoke the test runner per
// package, fold the event streams, merge the results and emit the report.
package triage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/dartlab/dart-triage/logging"
	"github.com/dartlab/dart-triage/metrics"
	"github.com/dartlab/dart-triage/reporting"
	"github.com/dartlab/dart-triage/runner"
	"github.com/dartlab/dart-triage/tree"
)

const metricsSnapshotFilename = "metrics.prom"

// Triage runs Dart test packages and triages their results.
type Triage struct {
	config  *Config
	version string
	runID   string

	fileLogger *logging.FileLogger
	runner     runner.TestRunner

	result *tree.Result
	report *reporting.Report
}

// New creates a Triage instance from the given config.
func New(config *Config, version string) (*Triage, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}

	runID := uuid.New().String()
	config.Log.Debug("Creating triage run",
		"run_id", runID,
		"packages", config.Packages,
		"report", config.ReportFile,
		"concurrency", config.Concurrency)

	fileLogger, err := logging.NewFileLogger(config.LogDir, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to create file logger: %w", err)
	}

	testRunner, err := runner.NewTestRunner(runner.Config{
		Log:         config.Log,
		DartBinary:  config.DartBinary,
		Command:     config.RunnerCommand,
		Concurrency: config.Concurrency,
		FileLogger:  fileLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create test runner: %w", err)
	}

	return &Triage{
		config:     config,
		version:    version,
		runID:      runID,
		fileLogger: fileLogger,
		runner:     testRunner,
	}, nil
}

// Run executes the tests, writes the report and returns a TestFailureError
// when any test failed.
func (t *Triage) Run(ctx context.Context) error {
	t.config.Log.Info("Running test packages", "run_id", t.runID, "packages", t.config.Packages)

	result, err := t.runner.RunAll(ctx, t.config.Packages)
	if err != nil {
		metrics.RecordError("run_failed")
		return NewRuntimeError(err)
	}
	t.result = result

	t.report = reporting.NewSummaryBuilder(t.config.Log).Build(result)
	written, err := reporting.WriteYAMLReport(t.report, t.config.ReportFile)
	if err != nil {
		metrics.RecordError("report_write_failed")
		return NewRuntimeError(err)
	}
	if written {
		t.config.Log.Info("Wrote triage report", "path", t.config.ReportFile)
	} else {
		t.config.Log.Info("All green, no triage report written")
	}

	t.printResultsTable()
	fmt.Println(t.result.String())

	t.recordRunArtifacts()

	t.config.Log.Info("Triage run completed", "run_id", t.runID, "status", t.result.Status())
	if len(t.result.Failed) > 0 {
		return NewTestFailureError(t.result.String())
	}
	return nil
}

// Result returns the merged categorization of the last run.
func (t *Triage) Result() *tree.Result {
	return t.result
}

// Report returns the report built by the last run.
func (t *Triage) Report() *reporting.Report {
	return t.report
}

// recordRunArtifacts persists the run summary and the metrics snapshot into
// the run's log directory. Neither failure is fatal to the run.
func (t *Triage) recordRunArtifacts() {
	metrics.RecordRun(
		t.runID,
		t.result.Status(),
		t.result.Total(),
		len(t.result.Succeeded),
		len(t.result.Failed),
		len(t.result.Skipped),
		t.result.Duration,
	)

	snapshot := filepath.Join(t.fileLogger.RunDir(), metricsSnapshotFilename)
	if err := metrics.WriteSnapshot(snapshot); err != nil {
		t.config.Log.Warn("Failed to write metrics snapshot", "error", err)
	}
	if err := t.fileLogger.WriteSummary(t.result.String() + "\n"); err != nil {
		t.config.Log.Warn("Failed to write run summary", "error", err)
	}
}

// printResultsTable prints the triage results to the console.
func (t *Triage) printResultsTable() {
	w := table.NewWriter()
	w.SetOutputMirror(os.Stdout)
	w.SetTitle(fmt.Sprintf("Test Triage Results (%s)", formatDuration(t.result.Duration)))

	w.AppendHeader(table.Row{"Status", "Test", "File", "Line", "Detail"})
	w.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Test", WidthMax: 60, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Line", Align: text.AlignRight},
		{Name: "Detail", WidthMax: 80, WidthMaxEnforcer: text.WrapSoft},
	})

	for _, failed := range t.report.Failed {
		detail := ""
		if len(failed.Errors) > 0 {
			detail = firstLine(failed.Errors[0].Error)
		}
		w.AppendRow(table.Row{
			getResultString("fail"),
			failed.Name,
			failed.File,
			failed.Line,
			detail,
		})
	}
	for _, skipped := range t.report.Skipped {
		reason := ""
		if skipped.Reason != nil {
			reason = *skipped.Reason
		}
		w.AppendRow(table.Row{
			getResultString("skip"),
			skipped.Name,
			skipped.File,
			skipped.Line,
			reason,
		})
	}

	switch t.result.Status() {
	case "pass":
		w.SetStyle(table.StyleColoredBlackOnGreenWhite)
	case "skip":
		w.SetStyle(table.StyleColoredBlackOnYellowWhite)
	default:
		w.SetStyle(table.StyleColoredBlackOnRedWhite)
	}

	w.AppendFooter(table.Row{
		"TOTAL",
		fmt.Sprintf("%d tests", t.result.Total()),
		"",
		"",
		fmt.Sprintf("%d passed, %d failed, %d skipped",
			len(t.result.Succeeded), len(t.result.Failed), len(t.result.Skipped)),
	})

	w.Render()
}

// firstLine extracts the most pertinent part of an error message for display
func firstLine(message string) string {
	if idx := strings.Index(message, "\n"); idx != -1 {
		return message[:idx]
	}
	if len(message) > 80 {
		return message[:70] + "..."
	}
	return message
}

// getResultString returns a glyphed string representing the test result
func getResultString(status string) string {
	switch status {
	case "pass":
		return "✓ pass"
	case "skip":
		return "- skip"
	default:
		return "✗ fail"
	}
}

// formatDuration formats a duration to seconds with 1 decimal place
func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%.1fs", d.Seconds())
}
