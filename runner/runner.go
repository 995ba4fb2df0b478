// Package runner invokes the external Dart test command and folds its JSON
// reporter stream into categorized results.
package runner

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
	shellwords "github.com/mattn/go-shellwords"

	"github.com/dartlab/dart-triage/logging"
	"github.com/dartlab/dart-triage/tree"
	"github.com/dartlab/dart-triage/types"
)

// Scanner buffer sized for reporter lines carrying full stack traces.
const maxEventLineSize = 1024 * 1024

// MissingOutputError indicates the structured-output sink never appeared
// after the external test process exited. ExitCode carries the process's own
// exit status so the caller can surface it.
type MissingOutputError struct {
	Path     string
	ExitCode int
}

func (e *MissingOutputError) Error() string {
	return fmt.Sprintf("test runner produced no structured output at %s (exit status %d)", e.Path, e.ExitCode)
}

// IsMissingOutputError checks if the error is or wraps a MissingOutputError.
func IsMissingOutputError(err error) bool {
	var missingErr *MissingOutputError
	return err != nil && errors.As(err, &missingErr)
}

// Config configures a TestRunner.
type Config struct {
	Log        log.Logger
	DartBinary string // Path to the dart binary (default "dart")
	Command    string // Full command override, e.g. "fvm dart test"
	// Concurrency is passed to the runner via --concurrency when positive;
	// zero leaves the runner's own default in place.
	Concurrency int
	FileLogger  *logging.FileLogger // Optional raw event stream archive
}

// TestRunner runs test packages and returns categorized results.
type TestRunner interface {
	// RunPackage runs one package's tests and folds its event stream.
	RunPackage(ctx context.Context, dir string) (*tree.Result, error)
	// RunAll runs every package concurrently and merges the results.
	RunAll(ctx context.Context, dirs []string) (*tree.Result, error)
}

type packageRunner struct {
	cfg Config
}

// NewTestRunner creates a TestRunner from the given config.
func NewTestRunner(cfg Config) (TestRunner, error) {
	if cfg.Log == nil {
		cfg.Log = log.New()
	}
	if cfg.DartBinary == "" {
		cfg.DartBinary = "dart"
	}
	if cfg.Concurrency < 0 {
		return nil, fmt.Errorf("concurrency must be non-negative, got %d", cfg.Concurrency)
	}
	if cfg.Command != "" {
		if _, err := shellwords.Parse(cfg.Command); err != nil {
			return nil, fmt.Errorf("invalid runner command %q: %w", cfg.Command, err)
		}
	}
	return &packageRunner{cfg: cfg}, nil
}

// buildArgs assembles the test command argv for the given sink path.
func (r *packageRunner) buildArgs(sink string) ([]string, error) {
	var argv []string
	if r.cfg.Command != "" {
		parsed, err := shellwords.Parse(r.cfg.Command)
		if err != nil {
			return nil, fmt.Errorf("invalid runner command %q: %w", r.cfg.Command, err)
		}
		if len(parsed) == 0 {
			return nil, fmt.Errorf("runner command %q is empty", r.cfg.Command)
		}
		argv = parsed
	} else {
		argv = []string{r.cfg.DartBinary, "test"}
	}

	argv = append(argv, "--reporter", "json", "--file-reporter", "json:"+sink)
	if r.cfg.Concurrency > 0 {
		argv = append(argv, "--concurrency", strconv.Itoa(r.cfg.Concurrency))
	}
	return argv, nil
}

func (r *packageRunner) RunPackage(ctx context.Context, dir string) (*tree.Result, error) {
	sink := filepath.Join(os.TempDir(), fmt.Sprintf("dart-triage-%s.jsonl", uuid.NewString()))
	defer func() {
		_ = os.Remove(sink)
	}()

	argv, err := r.buildArgs(sink)
	if err != nil {
		return nil, err
	}

	r.cfg.Log.Info("Running test package", "package", dir)
	r.cfg.Log.Debug("Test command", "command", argv, "sink", sink)

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	exitCode := 0
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			// A non-zero exit is expected when tests fail; the event stream
			// decides whether this run actually failed.
			exitCode = exitErr.ExitCode()
			r.cfg.Log.Debug("Test process exited non-zero", "package", dir, "exit_code", exitCode)
		} else {
			return nil, fmt.Errorf("failed to run test command in %s: %w", dir, err)
		}
	}

	file, err := os.Open(sink)
	if err != nil {
		if os.IsNotExist(err) {
			r.cfg.Log.Debug("Structured output missing", "package", dir, "output", output.String())
			return nil, &MissingOutputError{Path: sink, ExitCode: exitCode}
		}
		return nil, fmt.Errorf("failed to open structured output %s: %w", sink, err)
	}
	defer func() {
		_ = file.Close()
	}()

	// Archive before parsing so the raw stream survives for re-triage even
	// when a malformed line aborts the fold below.
	r.archiveRawEvents(dir, sink)

	builder := tree.NewBuilder(r.cfg.Log)
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), maxEventLineSize)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		event, err := types.ParseEvent(line)
		if err != nil {
			return nil, fmt.Errorf("package %s: %w", dir, err)
		}
		builder.Apply(event)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read structured output %s: %w", sink, err)
	}

	result := tree.Categorize(builder.Registry(), builder.Duration(), r.cfg.Log)
	r.cfg.Log.Info("Package run complete",
		"package", dir,
		"passed", len(result.Succeeded),
		"failed", len(result.Failed),
		"skipped", len(result.Skipped))
	return result, nil
}

func (r *packageRunner) RunAll(ctx context.Context, dirs []string) (*tree.Result, error) {
	results := make([]*tree.Result, len(dirs))
	errs := make([]error, len(dirs))

	var wg sync.WaitGroup
	for i, dir := range dirs {
		wg.Add(1)
		go func(i int, dir string) {
			defer wg.Done()
			results[i], errs[i] = r.RunPackage(ctx, dir)
		}(i, dir)
	}
	wg.Wait()

	// One package failing to produce output does not abort the others; it
	// contributes an empty result. Only a run where every package failed is
	// fatal.
	failures := 0
	var firstErr error
	for i, err := range errs {
		if err == nil {
			continue
		}
		failures++
		if firstErr == nil {
			firstErr = err
		}
		r.cfg.Log.Warn("Package produced no results", "package", dirs[i], "error", err)
		results[i] = &tree.Result{Duration: tree.UnknownDuration}
	}
	if len(dirs) > 0 && failures == len(dirs) {
		return nil, firstErr
	}

	return tree.Merge(results...), nil
}

// archiveRawEvents copies the sink into the run's log directory for later
// re-triage. Archival failures are logged, never fatal.
func (r *packageRunner) archiveRawEvents(dir, sink string) {
	if r.cfg.FileLogger == nil {
		return
	}
	src, err := os.Open(sink)
	if err != nil {
		r.cfg.Log.Warn("Failed to reopen structured output for archival", "error", err)
		return
	}
	defer func() {
		_ = src.Close()
	}()
	if err := r.cfg.FileLogger.SaveRawEvents(dir, src); err != nil {
		r.cfg.Log.Warn("Failed to archive raw events", "package", dir, "error", err)
	}
}
