package types

import "time"

// Outcome result classifications reported by testDone events.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultError   = "error"
)

// Node is an entry in the stream registry. Suite, group and test ids share
// one id space per stream, so consumers must type-check a lookup before
// treating it as a specific kind.
type Node interface {
	NodeID() int
}

// Suite represents one test file executed by the runner. Children holds the
// suite's direct groups in discovery order.
type Suite struct {
	ID       int
	Platform string
	Path     string
	Children []Node
}

func (s *Suite) NodeID() int { return s.ID }

// AddChild appends a node to the suite's child list, preserving first-seen
// order.
func (s *Suite) AddChild(n Node) {
	s.Children = append(s.Children, n)
}

// Group represents a named subdivision within a suite. Parent is the owning
// Suite or Group once resolved; a group whose parent id was unknown at
// creation time stays unattached.
type Group struct {
	ID        int
	SuiteID   int
	ParentID  *int
	Name      string
	Metadata  Metadata
	TestCount int
	Line      *int
	Column    *int
	URL       *string

	Parent   Node
	Children []Node
}

func (g *Group) NodeID() int { return g.ID }

// AddChild appends a node to the group's child list, preserving first-seen
// order.
func (g *Group) AddChild(n Node) {
	g.Children = append(g.Children, n)
}

// TestError is one accumulated error on a test, in arrival order.
type TestError struct {
	Message    string
	StackTrace string
}

// Outcome is a test's terminal result, attached when its testDone event
// arrives. Time is the event's offset from the start of the run.
type Outcome struct {
	Result  string
	Skipped bool
	Hidden  bool
	Time    time.Duration
}

// Test represents one executable test case. Suite and Groups are resolved
// references into the registry; either may be nil/empty when the stream
// referenced ids not yet known. A test with a nil Outcome never completed.
type Test struct {
	ID       int
	Name     string
	SuiteID  *int
	Metadata Metadata

	Line       *int
	Column     *int
	URL        *string
	RootLine   *int
	RootColumn *int
	RootURL    *string

	Suite  *Suite
	Groups []*Group

	Prints  []string
	Errors  []TestError
	Outcome *Outcome
}

func (t *Test) NodeID() int { return t.ID }

// AddPrint appends a print message in arrival order.
func (t *Test) AddPrint(message string) {
	t.Prints = append(t.Prints, message)
}

// AddError appends an error in arrival order.
func (t *Test) AddError(message, stackTrace string) {
	t.Errors = append(t.Errors, TestError{Message: message, StackTrace: stackTrace})
}

// Failed reports whether the test completed with an error or failure result.
// Failure classification takes priority over the skipped flag.
func (t *Test) Failed() bool {
	return t.Outcome != nil && (t.Outcome.Result == ResultError || t.Outcome.Result == ResultFailure)
}

// SkippedOutcome reports whether the test completed as skipped without
// failing.
func (t *Test) SkippedOutcome() bool {
	return t.Outcome != nil && !t.Failed() && t.Outcome.Skipped
}
