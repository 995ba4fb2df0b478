package types

import (
	"encoding/json"
	"fmt"
)

// Event kind constants matching the `type` discriminant emitted by the Dart
// test runner's JSON reporter.
// See https://github.com/dart-lang/test/blob/master/pkgs/test/doc/json_reporter.md
const (
	EventStart     = "start"
	EventAllSuites = "allSuites"
	EventSuite     = "suite"
	EventGroup     = "group"
	EventTestStart = "testStart"
	EventPrint     = "print"
	EventError     = "error"
	EventTestDone  = "testDone"
	EventDone      = "done"
)

// Event is one decoded line of the reporter's event stream.
type Event interface {
	// Kind returns the event's `type` discriminant.
	Kind() string
}

// MalformedEventError indicates a line that is not valid JSON or carries no
// recognizable `type` discriminant. Unlike unknown-but-well-formed event
// kinds (which decode to IgnoredEvent), a malformed line is fatal to stream
// processing: skipping it silently would corrupt duration and count accuracy.
type MalformedEventError struct {
	Line string
	Err  error
}

func (e *MalformedEventError) Error() string {
	return fmt.Sprintf("malformed test event %q: %v", e.Line, e.Err)
}

// Unwrap implements the errors.Unwrap interface
func (e *MalformedEventError) Unwrap() error {
	return e.Err
}

// Metadata carries the skip annotations attached to groups and tests.
type Metadata struct {
	Skip       bool    `json:"skip"`
	SkipReason *string `json:"skipReason"`
}

// StartEvent announces a test run.
type StartEvent struct {
	ProtocolVersion string `json:"protocolVersion"`
	RunnerVersion   string `json:"runnerVersion"`
	PID             int    `json:"pid"`
	Time            int64  `json:"time"`
}

func (e *StartEvent) Kind() string { return EventStart }

// AllSuitesEvent declares how many suites the run will load.
type AllSuitesEvent struct {
	Count int   `json:"count"`
	Time  int64 `json:"time"`
}

func (e *AllSuitesEvent) Kind() string { return EventAllSuites }

// SuiteInfo describes one test file.
type SuiteInfo struct {
	ID       int    `json:"id"`
	Platform string `json:"platform"`
	Path     string `json:"path"`
}

// SuiteEvent declares a suite.
type SuiteEvent struct {
	Suite SuiteInfo `json:"suite"`
	Time  int64     `json:"time"`
}

func (e *SuiteEvent) Kind() string { return EventSuite }

// GroupInfo describes a group() block within a suite.
type GroupInfo struct {
	ID        int      `json:"id"`
	SuiteID   int      `json:"suiteID"`
	ParentID  *int     `json:"parentID"`
	Name      string   `json:"name"`
	Metadata  Metadata `json:"metadata"`
	TestCount int      `json:"testCount"`
	Line      *int     `json:"line"`
	Column    *int     `json:"column"`
	URL       *string  `json:"url"`
}

// GroupEvent declares a group.
type GroupEvent struct {
	Group GroupInfo `json:"group"`
	Time  int64     `json:"time"`
}

func (e *GroupEvent) Kind() string { return EventGroup }

// TestInfo describes a single test case. The root_* fields carry the test's
// true originating location when an adapter reports a synthetic wrapper
// location in the plain fields; root values win when both are present.
type TestInfo struct {
	ID         int      `json:"id"`
	Name       string   `json:"name"`
	SuiteID    *int     `json:"suiteID"`
	GroupIDs   []int    `json:"groupIDs"`
	Metadata   Metadata `json:"metadata"`
	Line       *int     `json:"line"`
	Column     *int     `json:"column"`
	URL        *string  `json:"url"`
	RootLine   *int     `json:"root_line"`
	RootColumn *int     `json:"root_column"`
	RootURL    *string  `json:"root_url"`
}

// TestStartEvent declares that a test has begun running.
type TestStartEvent struct {
	Test TestInfo `json:"test"`
	Time int64    `json:"time"`
}

func (e *TestStartEvent) Kind() string { return EventTestStart }

// PrintEvent carries a message printed while a test was running.
type PrintEvent struct {
	TestID      int    `json:"testID"`
	MessageType string `json:"messageType"`
	Message     string `json:"message"`
	Time        int64  `json:"time"`
}

func (e *PrintEvent) Kind() string { return EventPrint }

// ErrorEvent carries an error raised while a test was running.
type ErrorEvent struct {
	TestID     int    `json:"testID"`
	Error      string `json:"error"`
	StackTrace string `json:"stackTrace"`
	IsFailure  bool   `json:"isFailure"`
	Time       int64  `json:"time"`
}

func (e *ErrorEvent) Kind() string { return EventError }

// TestDoneEvent carries a test's terminal outcome.
type TestDoneEvent struct {
	TestID  int    `json:"testID"`
	Result  string `json:"result"`
	Skipped bool   `json:"skipped"`
	Hidden  bool   `json:"hidden"`
	Time    int64  `json:"time"`
}

func (e *TestDoneEvent) Kind() string { return EventTestDone }

// DoneEvent signals the end of the run. Time is milliseconds since the run
// started.
type DoneEvent struct {
	Success *bool `json:"success"`
	Time    int64 `json:"time"`
}

func (e *DoneEvent) Kind() string { return EventDone }

// IgnoredEvent preserves an event whose discriminant this consumer does not
// understand. The protocol may add kinds over time; ignoring unknown kinds
// is required for forward compatibility.
type IgnoredEvent struct {
	Type string
}

func (e *IgnoredEvent) Kind() string { return e.Type }

// ParseEvent decodes one line of the reporter's stream into exactly one
// tagged event record. Lines that are not valid JSON objects, or that lack a
// string `type` field, yield a *MalformedEventError.
func ParseEvent(line []byte) (Event, error) {
	var envelope struct {
		Type *string `json:"type"`
	}
	if err := json.Unmarshal(line, &envelope); err != nil {
		return nil, &MalformedEventError{Line: string(line), Err: err}
	}
	if envelope.Type == nil {
		return nil, &MalformedEventError{Line: string(line), Err: fmt.Errorf("missing type discriminant")}
	}

	var event Event
	switch *envelope.Type {
	case EventStart:
		event = &StartEvent{}
	case EventAllSuites:
		event = &AllSuitesEvent{}
	case EventSuite:
		event = &SuiteEvent{}
	case EventGroup:
		event = &GroupEvent{}
	case EventTestStart:
		event = &TestStartEvent{}
	case EventPrint:
		event = &PrintEvent{}
	case EventError:
		event = &ErrorEvent{}
	case EventTestDone:
		event = &TestDoneEvent{}
	case EventDone:
		event = &DoneEvent{}
	default:
		return &IgnoredEvent{Type: *envelope.Type}, nil
	}

	if err := json.Unmarshal(line, event); err != nil {
		return nil, &MalformedEventError{Line: string(line), Err: err}
	}
	return event, nil
}
