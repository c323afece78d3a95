// Package engine drives runs: the Runner advances a RunContext node by node
// until the run suspends, completes, or fails, and the Engine wraps that
// loop with snapshot load/save so every invocation is durably resumable.
package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/fermata-io/fermata/internal/codec"
	"github.com/fermata-io/fermata/internal/domain"
	"github.com/fermata-io/fermata/internal/registry"
)

type Runner struct {
	def    *registry.Definition
	logger *slog.Logger
}

func NewRunner(def *registry.Definition, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		def:    def,
		logger: logger.With("component", "runner"),
	}
}

// Run executes rc until it reaches an interrupt point, exhausts budget,
// completes, or fails. budget <= 0 means unbounded. Node-logic failures
// come back inside the Outcome; engine failures (definition mismatch,
// serialization, cancelled context) come back as the error return.
func (r *Runner) Run(ctx context.Context, rc *domain.RunContext, budget int) (*domain.Outcome, error) {
	steps := 0

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		node := rc.Current()
		tag := node.Tag()

		if point, ok := node.(*domain.InterruptPoint); ok {
			return r.suspendAt(rc, point)
		}

		r.logger.Debug("stepping node", "run_id", rc.RunID(), "tag", tag, "step", rc.Steps())
		result := node.Step(ctx, rc)

		if next, ok := result.Advanced(); ok {
			if next == nil {
				return nil, domain.NewDefinitionError(tag, "node advanced to nil")
			}
			rc.Record(tag)
			rc.AdvanceTo(next)
			steps++
			if budget > 0 && steps >= budget {
				return r.suspendBudget(rc, next)
			}
			continue
		}

		if final, ok := result.Completed(); ok {
			rc.Record(tag)
			return r.complete(rc, tag, final)
		}

		if stepErr, ok := result.Failed(); ok {
			// the failing step is not recorded; history keeps only completed steps
			return r.fail(rc, tag, stepErr)
		}

		if result.Interrupted() {
			point, ok := node.(*domain.InterruptPoint)
			if !ok {
				return nil, domain.NewDefinitionError(tag, "only interrupt points may report interruption")
			}
			return r.suspendAt(rc, point)
		}

		return nil, domain.NewDefinitionError(tag, "node returned an empty step result")
	}
}

// suspendAt stops the run at an interrupt point. The snapshot's current
// node is the point's static outgoing edge, so resumption enters the node
// after the interrupt exactly once and never re-enters the point itself.
func (r *Runner) suspendAt(rc *domain.RunContext, point *domain.InterruptPoint) (*domain.Outcome, error) {
	next, ok := r.def.ResumeTarget(point.Tag())
	if !ok {
		return nil, domain.NewDefinitionError(point.Tag(), "interrupt point has no registered resume edge")
	}

	var payload codec.RawMessage
	if len(point.Payload) > 0 {
		raw, err := codec.Marshal(point.Payload)
		if err != nil {
			return nil, domain.NewSerializationError("interrupt payload", err)
		}
		payload = raw
	}

	rc.Record(point.Tag())

	snap, err := r.snapshot(rc, domain.StatusInterrupted, next, payload, nil, nil)
	if err != nil {
		return nil, err
	}

	r.logger.Info("run suspended at interrupt point",
		"run_id", rc.RunID(),
		"interrupt", point.Tag(),
		"resume_at", next,
	)
	return &domain.Outcome{Status: domain.StatusInterrupted, Snapshot: snap}, nil
}

// suspendBudget stops the run after the step budget is spent. The next node
// has not executed; it is persisted whole so resumption picks it up as if
// the loop had never paused.
func (r *Runner) suspendBudget(rc *domain.RunContext, next domain.Node) (*domain.Outcome, error) {
	payload, err := codec.Marshal(next)
	if err != nil {
		return nil, domain.NewSerializationError("node payload", err)
	}

	snap, err := r.snapshot(rc, domain.StatusRunning, next.Tag(), payload, nil, nil)
	if err != nil {
		return nil, err
	}

	r.logger.Info("run suspended on step budget",
		"run_id", rc.RunID(),
		"resume_at", next.Tag(),
		"steps", rc.Steps(),
	)
	return &domain.Outcome{Status: domain.StatusRunning, Snapshot: snap}, nil
}

func (r *Runner) complete(rc *domain.RunContext, tag string, final any) (*domain.Outcome, error) {
	result, err := codec.Marshal(final)
	if err != nil {
		return nil, domain.NewSerializationError("result", err)
	}

	snap, err := r.snapshot(rc, domain.StatusCompleted, "", nil, result, nil)
	if err != nil {
		return nil, err
	}

	r.logger.Info("run completed", "run_id", rc.RunID(), "last_node", tag, "steps", rc.Steps())
	return &domain.Outcome{Status: domain.StatusCompleted, Snapshot: snap, Result: result}, nil
}

func (r *Runner) fail(rc *domain.RunContext, tag string, stepErr error) (*domain.Outcome, error) {
	nodeErr := domain.NewNodeError(tag, stepErr)
	record := &domain.FailureRecord{NodeTag: tag, Message: stepErr.Error()}

	snap, err := r.snapshot(rc, domain.StatusFailed, "", nil, nil, record)
	if err != nil {
		return nil, err
	}

	r.logger.Error("run failed",
		"run_id", rc.RunID(),
		"tag", tag,
		"error", stepErr.Error(),
	)
	return &domain.Outcome{Status: domain.StatusFailed, Snapshot: snap, Err: nodeErr}, nil
}

func (r *Runner) snapshot(
	rc *domain.RunContext,
	status domain.Status,
	currentTag string,
	payload codec.RawMessage,
	result codec.RawMessage,
	failure *domain.FailureRecord,
) (*domain.Snapshot, error) {
	state, err := codec.Marshal(rc.State)
	if err != nil {
		return nil, domain.NewSerializationError("state", err)
	}

	now := time.Now().UTC()
	return &domain.Snapshot{
		RunID:              rc.RunID(),
		Status:             status,
		CurrentNodeTag:     currentTag,
		CurrentNodePayload: payload,
		State:              state,
		History:            rc.History(),
		Result:             result,
		Error:              failure,
		Version:            domain.SchemaVersion,
		CreatedAt:          now,
		UpdatedAt:          now,
	}, nil
}
