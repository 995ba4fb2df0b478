// Package tree reconstructs the suite → group → test hierarchy that the
// Dart test runner's JSON reporter encodes as flat, ID-linked events.
package tree

import (
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/dartlab/dart-triage/types"
)

// UnknownDuration is the sentinel reported when a stream never produced a
// `done` event.
const UnknownDuration = time.Duration(-1) * time.Second

// Registry is the id → node mapping maintained during tree construction.
// Suite, group and test ids share one id space; entries are append-only for
// the duration of one stream and iteration order is insertion order, which
// keeps report output deterministic across runs of the same suite.
type Registry struct {
	nodes map[int]types.Node
	order []int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{nodes: make(map[int]types.Node)}
}

// Add registers a node under its id. A duplicate id replaces the node but
// keeps its original position in iteration order; the protocol promises
// unique ids so this is a tolerance, not a feature.
func (r *Registry) Add(n types.Node) {
	id := n.NodeID()
	if _, exists := r.nodes[id]; !exists {
		r.order = append(r.order, id)
	}
	r.nodes[id] = n
}

// Get returns the node registered under id, or nil.
func (r *Registry) Get(id int) types.Node {
	return r.nodes[id]
}

// Suite returns the node under id iff it is a Suite.
func (r *Registry) Suite(id int) (*types.Suite, bool) {
	s, ok := r.nodes[id].(*types.Suite)
	return s, ok
}

// Group returns the node under id iff it is a Group.
func (r *Registry) Group(id int) (*types.Group, bool) {
	g, ok := r.nodes[id].(*types.Group)
	return g, ok
}

// Test returns the node under id iff it is a Test.
func (r *Registry) Test(id int) (*types.Test, bool) {
	t, ok := r.nodes[id].(*types.Test)
	return t, ok
}

// Len returns the number of registered nodes.
func (r *Registry) Len() int {
	return len(r.order)
}

// Nodes returns all registered nodes in insertion order.
func (r *Registry) Nodes() []types.Node {
	nodes := make([]types.Node, 0, len(r.order))
	for _, id := range r.order {
		nodes = append(nodes, r.nodes[id])
	}
	return nodes
}

// Builder folds a stream of events into a registry, wiring parent/child
// links as they become resolvable. Events must be applied strictly in
// arrival order; the registry is mutated without synchronization.
//
// References to unknown or wrong-kind ids never raise: the protocol does not
// guarantee referential ordering across all fields, so dangling references
// are absorbed as no-ops rather than surfaced as errors.
type Builder struct {
	registry *Registry
	duration time.Duration
	log      log.Logger
}

// NewBuilder creates a builder with a fresh registry.
func NewBuilder(logger log.Logger) *Builder {
	if logger == nil {
		logger = log.New()
	}
	return &Builder{
		registry: NewRegistry(),
		duration: UnknownDuration,
		log:      logger,
	}
}

// Registry returns the builder's registry.
func (b *Builder) Registry() *Registry {
	return b.registry
}

// Duration returns the run duration reported by the stream's done event, or
// UnknownDuration if none arrived.
func (b *Builder) Duration() time.Duration {
	return b.duration
}

// Apply folds one event into the registry.
func (b *Builder) Apply(event types.Event) {
	switch ev := event.(type) {
	case *types.StartEvent, *types.AllSuitesEvent:
		// Informational only; no tree effect.
	case *types.SuiteEvent:
		b.applySuite(ev)
	case *types.GroupEvent:
		b.applyGroup(ev)
	case *types.TestStartEvent:
		b.applyTestStart(ev)
	case *types.TestDoneEvent:
		b.applyTestDone(ev)
	case *types.PrintEvent:
		b.applyPrint(ev)
	case *types.ErrorEvent:
		b.applyError(ev)
	case *types.DoneEvent:
		// Last write wins if the stream produces more than one.
		b.duration = time.Duration(ev.Time) * time.Millisecond
	case *types.IgnoredEvent:
		b.log.Debug("Ignoring unknown event kind", "type", ev.Type)
	}
}

func (b *Builder) applySuite(ev *types.SuiteEvent) {
	b.registry.Add(&types.Suite{
		ID:       ev.Suite.ID,
		Platform: ev.Suite.Platform,
		Path:     ev.Suite.Path,
	})
}

func (b *Builder) applyGroup(ev *types.GroupEvent) {
	group := &types.Group{
		ID:        ev.Group.ID,
		SuiteID:   ev.Group.SuiteID,
		ParentID:  ev.Group.ParentID,
		Name:      ev.Group.Name,
		Metadata:  ev.Group.Metadata,
		TestCount: ev.Group.TestCount,
		Line:      ev.Group.Line,
		Column:    ev.Group.Column,
		URL:       ev.Group.URL,
	}

	parentID := ev.Group.SuiteID
	if ev.Group.ParentID != nil {
		parentID = *ev.Group.ParentID
	}
	switch parent := b.registry.Get(parentID).(type) {
	case *types.Suite:
		group.Parent = parent
		parent.AddChild(group)
	case *types.Group:
		group.Parent = parent
		parent.AddChild(group)
	default:
		// Parent not yet known; the group stays orphaned.
		b.log.Debug("Group parent not resolvable", "group", group.ID, "parent", parentID)
	}

	b.registry.Add(group)
}

func (b *Builder) applyTestStart(ev *types.TestStartEvent) {
	test := &types.Test{
		ID:         ev.Test.ID,
		Name:       ev.Test.Name,
		SuiteID:    ev.Test.SuiteID,
		Metadata:   ev.Test.Metadata,
		Line:       ev.Test.Line,
		Column:     ev.Test.Column,
		URL:        ev.Test.URL,
		RootLine:   ev.Test.RootLine,
		RootColumn: ev.Test.RootColumn,
		RootURL:    ev.Test.RootURL,
	}

	if ev.Test.SuiteID != nil {
		if suite, ok := b.registry.Suite(*ev.Test.SuiteID); ok {
			test.Suite = suite
		}
	}
	for _, groupID := range ev.Test.GroupIDs {
		if group, ok := b.registry.Group(groupID); ok {
			test.Groups = append(test.Groups, group)
		}
	}

	b.registry.Add(test)
}

func (b *Builder) applyTestDone(ev *types.TestDoneEvent) {
	test, ok := b.registry.Test(ev.TestID)
	if !ok {
		b.log.Debug("Dropping testDone for unknown test", "test_id", ev.TestID)
		return
	}
	test.Outcome = &types.Outcome{
		Result:  ev.Result,
		Skipped: ev.Skipped,
		Hidden:  ev.Hidden,
		Time:    time.Duration(ev.Time) * time.Millisecond,
	}
}

func (b *Builder) applyPrint(ev *types.PrintEvent) {
	test, ok := b.registry.Test(ev.TestID)
	if !ok {
		b.log.Debug("Dropping print for unknown test", "test_id", ev.TestID)
		return
	}
	test.AddPrint(ev.Message)
}

func (b *Builder) applyError(ev *types.ErrorEvent) {
	test, ok := b.registry.Test(ev.TestID)
	if !ok {
		b.log.Debug("Dropping error for unknown test", "test_id", ev.TestID)
		return
	}
	test.AddError(ev.Error, ev.StackTrace)
}
