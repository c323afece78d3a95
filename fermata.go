// Package fermata provides durable, interruptible execution of node graphs.
//
// A run advances node by node until it reaches an interrupt point, at which
// point execution suspends and a snapshot of the run is persisted. The run
// can be resumed later — after a process restart, on another worker, or
// after an arbitrarily long wait for external input — and continues at the
// node after the interrupt point exactly once. Basic usage:
//
//	def := fermata.NewDefinition(logger)
//	fermata.Register[Greet](def)
//	fermata.Register[Goodbye](def)
//	def.RegisterInterrupt("await-name", "goodbye")
//
//	store := fermata.NewMemoryStore(logger)
//	engine := fermata.New(def, store)
//
//	outcome, err := engine.Resume(ctx, "run-1",
//	    fermata.WithStart(&Greet{}, map[string]any{"messages": []any{}}))
//	// outcome.Suspended() — collect input, then later:
//	outcome, err = engine.Resume(ctx, "run-1",
//	    fermata.WithInput(map[string]any{"user_name": "Bobby"}))
//
// Resume is the only entry point: it starts fresh runs, continues suspended
// ones, and replays the stored outcome of finished ones without re-running
// any node logic.
package fermata

import (
	"log/slog"

	"github.com/fermata-io/fermata/internal/adapters/memory"
	"github.com/fermata-io/fermata/internal/adapters/storage"
	"github.com/fermata-io/fermata/internal/codec"
	"github.com/fermata-io/fermata/internal/domain"
	"github.com/fermata-io/fermata/internal/engine"
	"github.com/fermata-io/fermata/internal/ports"
	"github.com/fermata-io/fermata/internal/registry"
)

// Node is one unit of computation in a graph. Tag identifies the node type
// in snapshots; the instance's exported fields are its payload.
type Node = domain.Node

// StepResult is the outcome of stepping one node, built with Advance,
// Complete, or Fail.
type StepResult = domain.StepResult

// RunContext carries the mutable state of one run through its nodes.
type RunContext = domain.RunContext

// Outcome describes how a resume invocation ended: suspended, completed,
// or failed.
type Outcome = domain.Outcome

// Snapshot is the durable serialized checkpoint of a run.
type Snapshot = domain.Snapshot

// SnapshotMeta describes a stored snapshot for operational inspection.
type SnapshotMeta = domain.SnapshotMeta

// FailureRecord is the structured error stored on a failed snapshot.
type FailureRecord = domain.FailureRecord

// Status is the lifecycle state recorded on a snapshot.
type Status = domain.Status

// InterruptPoint marks a safe suspension boundary in the graph.
type InterruptPoint = domain.InterruptPoint

// ResumeValidator lets a node require caller-supplied data before it runs
// again after a suspension.
type ResumeValidator = domain.ResumeValidator

// Persistence is the storage contract for snapshots.
type Persistence = ports.Persistence

// Filter narrows Persistence.List results.
type Filter = ports.Filter

// Definition is the static graph definition: registered node tags, their
// factories, and interrupt edges.
type Definition = registry.Definition

// Factory rebuilds a node instance from its persisted payload.
type Factory = registry.Factory

// Engine drives runs against a definition and a persistence adapter.
type Engine = engine.Engine

// ResumeOption configures a single Resume invocation.
type ResumeOption = engine.ResumeOption

const (
	StatusRunning     = domain.StatusRunning
	StatusInterrupted = domain.StatusInterrupted
	StatusCompleted   = domain.StatusCompleted
	StatusFailed      = domain.StatusFailed

	// SchemaVersion is the persisted snapshot layout major version.
	SchemaVersion = domain.SchemaVersion
)

// Advance continues the run at next.
func Advance(next Node) StepResult { return domain.Advance(next) }

// Complete terminates the run with a final result.
func Complete(result any) StepResult { return domain.Complete(result) }

// Fail terminates the run with a node-logic error.
func Fail(err error) StepResult { return domain.Fail(err) }

// Interrupt builds an interrupt point value for a tag registered with
// Definition.RegisterInterrupt. Nodes advance into it to suspend the run.
func Interrupt(tag string) *InterruptPoint { return domain.NewInterruptPoint(tag) }

// NewDefinition creates an empty graph definition.
func NewDefinition(logger *slog.Logger) *Definition { return registry.New(logger) }

// Register binds the node type T to its tag, taken from a zero value, with
// a factory that decodes persisted payloads into T's exported fields.
func Register[T any, PT interface {
	*T
	Node
}](def *Definition) error {
	var zero T
	tag := PT(&zero).Tag()
	return def.Register(tag, func(payload codec.RawMessage) (domain.Node, error) {
		node := PT(new(T))
		if len(payload) > 0 {
			if err := codec.Unmarshal(payload, node); err != nil {
				return nil, domain.NewDefinitionError(tag, "payload does not decode: "+err.Error())
			}
		}
		return node, nil
	})
}

// New creates an engine for a definition and persistence adapter.
func New(def *Definition, store Persistence, opts ...Option) *Engine {
	cfg := Config{}
	for _, opt := range opts {
		opt(&cfg)
	}
	return engine.New(def, store, cfg.StepBudget, cfg.Logger)
}

// NewMemoryStore creates an in-process persistence adapter, mainly for
// tests and single-process embedding.
func NewMemoryStore(logger *slog.Logger) *memory.Store {
	return memory.NewStore(logger)
}

// OpenBadgerStore opens (or creates) a badger-backed persistence adapter
// at dir. Callers own its Close.
func OpenBadgerStore(dir string, logger *slog.Logger) (*storage.Store, error) {
	return storage.Open(dir, logger)
}

// Resume invocation options.

// WithStart provides the initial node and state for a fresh run; ignored
// when the run already has a snapshot.
func WithStart(start Node, state map[string]any) ResumeOption {
	return engine.WithStart(start, state)
}

// WithInput merges caller data into the pending node's payload before the
// run continues.
func WithInput(input map[string]any) ResumeOption { return engine.WithInput(input) }

// WithStepBudget caps the number of steps for one invocation; exhausting it
// suspends the run with StatusRunning.
func WithStepBudget(budget int) ResumeOption { return engine.WithStepBudget(budget) }
