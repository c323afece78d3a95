package engine

import (
	"github.com/fermata-io/fermata/internal/domain"
)

type resumeOptions struct {
	start      domain.Node
	startState map[string]any
	input      map[string]any
	budget     int
	budgetSet  bool
}

// ResumeOption configures a single resume invocation.
type ResumeOption func(*resumeOptions)

// WithStart provides the initial node and state for a fresh run. Ignored
// when a snapshot already exists for the run ID, so a stale caller can
// never restart a run that has progress.
func WithStart(start domain.Node, state map[string]any) ResumeOption {
	return func(o *resumeOptions) {
		o.start = start
		o.startState = state
	}
}

// WithInput merges caller data into the pending node's payload before it is
// reconstructed, completing values the run was suspended to wait for.
func WithInput(input map[string]any) ResumeOption {
	return func(o *resumeOptions) {
		o.input = input
	}
}

// WithStepBudget caps the number of steps for this invocation. When the
// budget runs out the run suspends with status running instead of dropping
// state. Zero or negative means unbounded.
func WithStepBudget(budget int) ResumeOption {
	return func(o *resumeOptions) {
		o.budget = budget
		o.budgetSet = true
	}
}
