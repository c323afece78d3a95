package engine

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fermata-io/fermata/internal/codec"
	"github.com/fermata-io/fermata/internal/domain"
	"github.com/fermata-io/fermata/internal/registry"
)

var finishExecutions atomic.Int64

// greetNode increments count and advances into the "pause" interrupt,
// staging a note for the node that runs after resumption.
type greetNode struct{}

func (n *greetNode) Tag() string { return "greet" }

func (n *greetNode) Step(ctx context.Context, run *domain.RunContext) domain.StepResult {
	count, _ := run.State["count"].(float64)
	run.State["count"] = count + 1
	return domain.Advance(domain.NewInterruptPoint("pause").With(map[string]any{"note": "staged"}))
}

// finishNode increments count and completes the run with the state.
type finishNode struct {
	Note string `json:"note"`
}

func (n *finishNode) Tag() string { return "finish" }

func (n *finishNode) Step(ctx context.Context, run *domain.RunContext) domain.StepResult {
	finishExecutions.Add(1)
	count, _ := run.State["count"].(float64)
	run.State["count"] = count + 1
	if n.Note != "" {
		run.State["note"] = n.Note
	}
	return domain.Complete(run.State)
}

// chainNode advances to itself until Remaining reaches zero.
type chainNode struct {
	Remaining int `json:"remaining"`
}

func (n *chainNode) Tag() string { return "chain" }

func (n *chainNode) Step(ctx context.Context, run *domain.RunContext) domain.StepResult {
	hops, _ := run.State["hops"].(float64)
	run.State["hops"] = hops + 1
	if n.Remaining <= 1 {
		return domain.Complete(run.State)
	}
	return domain.Advance(&chainNode{Remaining: n.Remaining - 1})
}

type boomNode struct{}

func (n *boomNode) Tag() string { return "boom" }

func (n *boomNode) Step(ctx context.Context, run *domain.RunContext) domain.StepResult {
	return domain.Fail(errors.New("boom"))
}

type needsInputNode struct {
	UserName string `json:"user_name"`
}

func (n *needsInputNode) Tag() string { return "needs-input" }

func (n *needsInputNode) ValidateResume() error {
	if n.UserName == "" {
		return errors.New("user_name is required")
	}
	return nil
}

func (n *needsInputNode) Step(ctx context.Context, run *domain.RunContext) domain.StepResult {
	run.State["user_name"] = n.UserName
	return domain.Complete(run.State)
}

type nilAdvanceNode struct{}

func (n *nilAdvanceNode) Tag() string { return "nil-advance" }

func (n *nilAdvanceNode) Step(ctx context.Context, run *domain.RunContext) domain.StepResult {
	return domain.Advance(nil)
}

func factory[T any, PT interface {
	*T
	domain.Node
}](tag string) registry.Factory {
	return func(payload codec.RawMessage) (domain.Node, error) {
		node := PT(new(T))
		if len(payload) > 0 {
			if err := codec.Unmarshal(payload, node); err != nil {
				return nil, domain.NewDefinitionError(tag, "payload does not decode: "+err.Error())
			}
		}
		return node, nil
	}
}

func testDefinition(t *testing.T) *registry.Definition {
	t.Helper()
	def := registry.New(nil)
	require.NoError(t, def.Register("greet", factory[greetNode]("greet")))
	require.NoError(t, def.Register("finish", factory[finishNode]("finish")))
	require.NoError(t, def.Register("chain", factory[chainNode]("chain")))
	require.NoError(t, def.Register("boom", factory[boomNode]("boom")))
	require.NoError(t, def.Register("needs-input", factory[needsInputNode]("needs-input")))
	require.NoError(t, def.Register("nil-advance", factory[nilAdvanceNode]("nil-advance")))
	require.NoError(t, def.RegisterInterrupt("pause", "finish"))
	return def
}

func TestRunnerCompletesLinearRun(t *testing.T) {
	runner := NewRunner(testDefinition(t), nil)
	rc := domain.NewRunContext("r1", &chainNode{Remaining: 3}, nil)

	outcome, err := runner.Run(context.Background(), rc, 0)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusCompleted, outcome.Status)
	assert.True(t, outcome.Completed())
	assert.Equal(t, []string{"chain", "chain", "chain"}, outcome.Snapshot.History)
	assert.Empty(t, outcome.Snapshot.CurrentNodeTag)

	var result map[string]any
	require.NoError(t, outcome.DecodeResult(&result))
	assert.Equal(t, float64(3), result["hops"])
}

func TestRunnerSuspendsAtInterrupt(t *testing.T) {
	runner := NewRunner(testDefinition(t), nil)
	rc := domain.NewRunContext("r1", &greetNode{}, nil)

	outcome, err := runner.Run(context.Background(), rc, 0)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusInterrupted, outcome.Status)
	assert.True(t, outcome.Suspended())

	snap := outcome.Snapshot
	require.NoError(t, snap.Validate())
	assert.Equal(t, "finish", snap.CurrentNodeTag, "resume target is the node after the interrupt")
	assert.Equal(t, []string{"greet", "pause"}, snap.History)

	staged, err := codec.ToMap(snap.CurrentNodePayload)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"note": "staged"}, staged)
}

func TestRunnerInterruptWithoutEdge(t *testing.T) {
	def := registry.New(nil)
	require.NoError(t, def.Register("greet", factory[greetNode]("greet")))

	runner := NewRunner(def, nil)
	rc := domain.NewRunContext("r1", &greetNode{}, nil)

	_, err := runner.Run(context.Background(), rc, 0)
	require.Error(t, err)
	assert.True(t, domain.IsDefinitionError(err))
	assert.Contains(t, err.Error(), "no registered resume edge")
}

func TestRunnerFailureKeepsHistoryClean(t *testing.T) {
	runner := NewRunner(testDefinition(t), nil)
	rc := domain.NewRunContext("r1", &boomNode{}, map[string]any{"count": float64(7)})

	outcome, err := runner.Run(context.Background(), rc, 0)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusFailed, outcome.Status)
	assert.True(t, outcome.Failed())
	assert.True(t, domain.IsNodeError(outcome.Err))

	snap := outcome.Snapshot
	assert.Empty(t, snap.History, "failing step is not recorded as advanced")
	require.NotNil(t, snap.Error)
	assert.Equal(t, "boom", snap.Error.NodeTag)
	assert.Equal(t, "boom", snap.Error.Message)

	state, err := codec.ToMap(snap.State)
	require.NoError(t, err)
	assert.Equal(t, float64(7), state["count"], "state before the failing step is preserved")
}

func TestRunnerStepBudgetSuspends(t *testing.T) {
	runner := NewRunner(testDefinition(t), nil)
	rc := domain.NewRunContext("r1", &chainNode{Remaining: 5}, nil)

	outcome, err := runner.Run(context.Background(), rc, 2)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusRunning, outcome.Status)
	assert.True(t, outcome.Suspended())

	snap := outcome.Snapshot
	require.NoError(t, snap.Validate())
	assert.Equal(t, "chain", snap.CurrentNodeTag)
	assert.Len(t, snap.History, 2)

	// the suspended node has not executed: its payload still shows the
	// remaining hops it was constructed with
	pending, err := codec.ToMap(snap.CurrentNodePayload)
	require.NoError(t, err)
	assert.Equal(t, float64(3), pending["remaining"])
}

func TestRunnerNilAdvance(t *testing.T) {
	runner := NewRunner(testDefinition(t), nil)
	rc := domain.NewRunContext("r1", &nilAdvanceNode{}, nil)

	_, err := runner.Run(context.Background(), rc, 0)
	require.Error(t, err)
	assert.True(t, domain.IsDefinitionError(err))
}

func TestRunnerHonorsContextCancellation(t *testing.T) {
	runner := NewRunner(testDefinition(t), nil)
	rc := domain.NewRunContext("r1", &chainNode{Remaining: 5}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := runner.Run(ctx, rc, 0)
	assert.ErrorIs(t, err, context.Canceled)
}
