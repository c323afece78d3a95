package domain

import (
	"context"
)

// Node is one unit of computation in a graph. Tag is the stable identity
// persisted in snapshots; the instance's exported fields are its payload and
// must round-trip through JSON so the registry can reconstruct the node.
type Node interface {
	Tag() string
	Step(ctx context.Context, run *RunContext) StepResult
}

// ResumeValidator is implemented by nodes that need caller-supplied data
// before they can run again after a suspension. The engine checks it on the
// reconstructed node before stepping it.
type ResumeValidator interface {
	ValidateResume() error
}

type stepKind int

const (
	stepAdvance stepKind = iota
	stepInterrupted
	stepCompleted
	stepFailed
)

// StepResult is the closed outcome of stepping one node: advance to a next
// node, suspend, complete the run, or fail it. Built only through the
// constructors below so the runner never sees a malformed variant.
type StepResult struct {
	kind   stepKind
	next   Node
	result any
	err    error
}

// Advance continues the run at next.
func Advance(next Node) StepResult {
	return StepResult{kind: stepAdvance, next: next}
}

// Complete terminates the run with a final result.
func Complete(result any) StepResult {
	return StepResult{kind: stepCompleted, result: result}
}

// Fail terminates the run with a node-logic error.
func Fail(err error) StepResult {
	return StepResult{kind: stepFailed, err: err}
}

func (r StepResult) Advanced() (Node, bool) {
	return r.next, r.kind == stepAdvance
}

func (r StepResult) Completed() (any, bool) {
	return r.result, r.kind == stepCompleted
}

func (r StepResult) Failed() (error, bool) {
	return r.err, r.kind == stepFailed
}

func (r StepResult) Interrupted() bool {
	return r.kind == stepInterrupted
}

// InterruptPoint marks a safe suspension boundary in the graph. It carries
// no business logic; when the runner reaches one it suspends the run and
// persists the point's single outgoing edge (registered on the definition)
// as the resume target. Payload is staged data for the node that runs after
// resumption, typically completed by caller input at resume time.
type InterruptPoint struct {
	NodeTag string         `json:"-"`
	Payload map[string]any `json:"payload,omitempty"`
}

// NewInterruptPoint builds an interrupt value for the given registered tag.
func NewInterruptPoint(tag string) *InterruptPoint {
	return &InterruptPoint{NodeTag: tag}
}

// With stages payload for the post-interrupt node and returns the point for
// chaining inside Advance calls.
func (n *InterruptPoint) With(payload map[string]any) *InterruptPoint {
	merged, err := MergeInput(n.Payload, payload)
	if err != nil {
		// map-into-map merges cannot fail; keep the staged payload if one ever does
		return n
	}
	n.Payload = merged
	return n
}

func (n *InterruptPoint) Tag() string {
	return n.NodeTag
}

// Step never does work. The runner suspends before invoking anything on an
// interrupt point; this exists so the type satisfies Node for authors and
// tests that drive steps directly.
func (n *InterruptPoint) Step(ctx context.Context, run *RunContext) StepResult {
	return StepResult{kind: stepInterrupted}
}
