package engine

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/fermata-io/fermata/internal/codec"
	"github.com/fermata-io/fermata/internal/domain"
	"github.com/fermata-io/fermata/internal/ports"
	"github.com/fermata-io/fermata/internal/registry"
)

// Engine is the resume controller: the sole entry point for both starting a
// run fresh and continuing it from its last snapshot.
type Engine struct {
	def    *registry.Definition
	store  ports.Persistence
	runner *Runner
	budget int
	logger *slog.Logger
}

func New(def *registry.Definition, store ports.Persistence, budget int, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		def:    def,
		store:  store,
		runner: NewRunner(def, logger),
		budget: budget,
		logger: logger.With("component", "engine"),
	}
}

// Resume starts or continues the run identified by runID.
//
// No snapshot: WithStart is required and a fresh run begins (an empty runID
// gets a generated one, readable from the outcome's snapshot). A running or
// interrupted snapshot: the run continues from it and any WithStart data is
// ignored. A completed or failed snapshot: the stored outcome is returned
// without executing anything.
//
// The terminal snapshot is persisted before the outcome is returned, so a
// crash after Resume returns implies the snapshot is already durable. When
// the save itself fails, the outcome is still returned alongside the error:
// the in-memory result is not lost, it is just not durable.
func (e *Engine) Resume(ctx context.Context, runID string, opts ...ResumeOption) (*domain.Outcome, error) {
	var options resumeOptions
	for _, opt := range opts {
		opt(&options)
	}

	budget := e.budget
	if options.budgetSet {
		budget = options.budget
	}

	if runID == "" {
		if options.start == nil {
			return nil, domain.ErrMissingStart
		}
		runID = uuid.NewString()
		e.logger.Debug("generated run id", "run_id", runID)
	}

	prior, err := e.store.Load(ctx, runID)
	if err != nil && !domain.IsNotFound(err) {
		if domain.IsPersistenceError(err) || domain.IsSerializationError(err) {
			return nil, err
		}
		return nil, domain.NewPersistenceError("load", err)
	}
	if prior != nil {
		// schema gate: unknown majors are rejected, never guessed at
		if err := prior.Validate(); err != nil {
			return nil, domain.NewPersistenceError("load", err)
		}
	}

	var rc *domain.RunContext
	switch {
	case prior == nil:
		if options.start == nil {
			return nil, domain.ErrMissingStart
		}
		rc = domain.NewRunContext(runID, options.start, options.startState)
		e.logger.Info("starting fresh run", "run_id", runID, "start", options.start.Tag())

	case prior.Status.Terminal():
		e.logger.Debug("run already finished, replaying outcome",
			"run_id", runID,
			"status", string(prior.Status),
		)
		return replayOutcome(prior), nil

	default:
		rc, err = e.reconstruct(prior, options.input)
		if err != nil {
			return nil, err
		}
		e.logger.Info("continuing run from snapshot",
			"run_id", runID,
			"resume_at", prior.CurrentNodeTag,
			"steps", len(prior.History),
		)
	}

	outcome, err := e.runner.Run(ctx, rc, budget)
	if err != nil {
		return outcome, err
	}

	if prior != nil {
		outcome.Snapshot.CreatedAt = prior.CreatedAt
	}

	if err := e.store.Save(ctx, outcome.Snapshot); err != nil {
		if domain.IsConflict(err) || domain.IsPersistenceError(err) || domain.IsSerializationError(err) {
			return outcome, err
		}
		return outcome, domain.NewPersistenceError("save", err)
	}

	return outcome, nil
}

// reconstruct turns a suspended snapshot back into a live run context,
// folding resume input into the pending node's payload first.
func (e *Engine) reconstruct(snap *domain.Snapshot, input map[string]any) (*domain.RunContext, error) {
	payload := snap.CurrentNodePayload
	if len(input) > 0 {
		staged, err := codec.ToMap(payload)
		if err != nil {
			return nil, domain.NewSerializationError("node payload", err)
		}
		merged, err := domain.MergeInput(staged, input)
		if err != nil {
			return nil, err
		}
		raw, err := codec.Marshal(merged)
		if err != nil {
			return nil, domain.NewSerializationError("node payload", err)
		}
		payload = raw
	}

	node, err := e.def.Resolve(snap.CurrentNodeTag, payload)
	if err != nil {
		return nil, err
	}

	if validator, ok := node.(domain.ResumeValidator); ok {
		if err := validator.ValidateResume(); err != nil {
			return nil, domain.NewNodeError(snap.CurrentNodeTag, err)
		}
	}

	var state map[string]any
	if len(snap.State) > 0 {
		if err := codec.Unmarshal(snap.State, &state); err != nil {
			return nil, domain.NewSerializationError("state", err)
		}
	}

	return domain.RestoreRunContext(snap.RunID, node, state, snap.History), nil
}

// replayOutcome derives the outcome of a finished run from its snapshot.
// No node executes; re-resuming a finished run is a read, never a re-run.
func replayOutcome(snap *domain.Snapshot) *domain.Outcome {
	outcome := &domain.Outcome{
		Status:   snap.Status,
		Snapshot: snap,
		Result:   snap.Result,
	}
	if snap.Status == domain.StatusFailed && snap.Error != nil {
		outcome.Err = domain.NewNodeError(snap.Error.NodeTag, errors.New(snap.Error.Message))
	}
	return outcome
}
