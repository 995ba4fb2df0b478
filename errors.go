package triage

import (
	"errors"
	"fmt"

	"github.com/dartlab/dart-triage/exitcodes"
	"github.com/dartlab/dart-triage/runner"
)

// RuntimeError is an operational failure of the triage run itself: bad
// configuration, a test process that could not be spawned, a malformed event
// stream. The tests never got a verdict.
type RuntimeError struct {
	Err error
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("runtime error: %v", e.Err)
}

// Unwrap implements the errors.Unwrap interface
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// NewRuntimeError creates a new RuntimeError
func NewRuntimeError(err error) *RuntimeError {
	return &RuntimeError{Err: err}
}

// IsRuntimeError checks if the error is or wraps a RuntimeError
func IsRuntimeError(err error) bool {
	var runtimeErr *RuntimeError
	return err != nil && errors.As(err, &runtimeErr)
}

// TestFailureError means the run itself worked and at least one test failed.
type TestFailureError struct {
	Message string
}

func (e *TestFailureError) Error() string {
	return fmt.Sprintf("test failure: %s", e.Message)
}

// NewTestFailureError creates a new TestFailureError
func NewTestFailureError(message string) *TestFailureError {
	return &TestFailureError{Message: message}
}

// IsTestFailureError checks if the error is or wraps a TestFailureError
func IsTestFailureError(err error) bool {
	var testErr *TestFailureError
	return err != nil && errors.As(err, &testErr)
}

// ExitCode resolves the process exit code for a run error. When the external
// test process exited non-zero without producing structured output, its own
// exit status is propagated; test failures map to exitcodes.TestFailure and
// everything else to exitcodes.RuntimeErr.
func ExitCode(err error) int {
	if err == nil {
		return exitcodes.Success
	}
	var missing *runner.MissingOutputError
	if errors.As(err, &missing) && missing.ExitCode != 0 {
		return missing.ExitCode
	}
	if IsTestFailureError(err) {
		return exitcodes.TestFailure
	}
	return exitcodes.RuntimeErr
}
