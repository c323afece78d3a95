package domain

import (
	"github.com/fermata-io/fermata/internal/codec"
)

// Outcome is what a resume invocation returns to the caller: suspended with
// a snapshot, completed with a result, or failed with an error. It is
// derived from the terminal snapshot and never persisted itself.
type Outcome struct {
	Status   Status
	Snapshot *Snapshot
	Result   codec.RawMessage
	Err      error
}

// Suspended reports whether the run stopped at an interrupt point or
// exhausted its step budget and can be resumed later.
func (o *Outcome) Suspended() bool {
	return o.Status == StatusInterrupted || o.Status == StatusRunning
}

func (o *Outcome) Completed() bool {
	return o.Status == StatusCompleted
}

func (o *Outcome) Failed() bool {
	return o.Status == StatusFailed
}

// DecodeResult unmarshals the final result into v. Only meaningful on a
// completed outcome.
func (o *Outcome) DecodeResult(v any) error {
	if len(o.Result) == 0 {
		return nil
	}
	if err := codec.Unmarshal(o.Result, v); err != nil {
		return NewSerializationError("result", err)
	}
	return nil
}
