package domain

// RunContext is the full mutable state of one logical run, owned exclusively
// by the runner for the duration of a single invocation. State belongs to
// the graph author and is opaque to the engine; history is append-only and
// records node tags in execution order.
type RunContext struct {
	runID   string
	State   map[string]any
	history []string
	current Node
}

// NewRunContext builds the context for a fresh run.
func NewRunContext(runID string, start Node, state map[string]any) *RunContext {
	if state == nil {
		state = make(map[string]any)
	}
	return &RunContext{
		runID:   runID,
		State:   state,
		current: start,
	}
}

// RestoreRunContext rebuilds a context from persisted parts. The history is
// copied so the stored snapshot can never be rewritten through the live run.
func RestoreRunContext(runID string, current Node, state map[string]any, history []string) *RunContext {
	rc := NewRunContext(runID, current, state)
	if len(history) > 0 {
		rc.history = make([]string, len(history))
		copy(rc.history, history)
	}
	return rc
}

func (rc *RunContext) RunID() string {
	return rc.runID
}

func (rc *RunContext) Current() Node {
	return rc.current
}

// Record appends a visited node tag. Together with AdvanceTo these are the
// only mutation entry points, keeping history and current node consistent.
func (rc *RunContext) Record(tag string) {
	rc.history = append(rc.history, tag)
}

// AdvanceTo moves the run to the next node. There is at most one current
// node at any time.
func (rc *RunContext) AdvanceTo(next Node) {
	rc.current = next
}

// History returns a copy of the visited tags in execution order.
func (rc *RunContext) History() []string {
	out := make([]string, len(rc.history))
	copy(out, rc.history)
	return out
}

// Steps is the number of recorded steps.
func (rc *RunContext) Steps() int {
	return len(rc.history)
}

// Write folds partial writes into the run state. Nested maps are merged
// rather than replaced, so a node can update one key of a sub-map without
// clobbering its siblings. Direct assignment into State remains fine for
// flat writes.
func (rc *RunContext) Write(writes map[string]any) error {
	return MergeState(rc.State, writes)
}
