package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrSnapshotNotFound is returned by persistence loads for unknown run IDs.
	ErrSnapshotNotFound = errors.New("snapshot not found")

	// ErrSnapshotConflict signals that another writer advanced the run since
	// this invocation loaded its snapshot. Two resumers racing on one run ID
	// must never both win the save.
	ErrSnapshotConflict = errors.New("snapshot conflict: run advanced by another writer")

	// ErrMissingStart is returned when a run has no snapshot and the caller
	// did not provide a start node.
	ErrMissingStart = errors.New("no snapshot for run and no start node provided")
)

// NodeError wraps a failure raised by a node's own step logic. The engine
// never retries these; retry policy belongs to the caller.
type NodeError struct {
	Tag string
	Err error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("node %s: %v", e.Tag, e.Err)
}

func (e *NodeError) Unwrap() error {
	return e.Err
}

func NewNodeError(tag string, err error) *NodeError {
	return &NodeError{Tag: tag, Err: err}
}

// DefinitionError reports a graph definition problem: a bad registration, or
// a persisted tag that no longer resolves against the current definition.
// Fatal; the stored snapshot is never mutated on this path.
type DefinitionError struct {
	Tag    string
	Reason string
}

func (e *DefinitionError) Error() string {
	return fmt.Sprintf("graph definition: node %q: %s", e.Tag, e.Reason)
}

func NewDefinitionError(tag, reason string) *DefinitionError {
	return &DefinitionError{Tag: tag, Reason: reason}
}

// PersistenceError wraps a load/save/list failure from the snapshot store,
// kept distinct from NodeError so callers can retry persistence transiently
// without re-running node logic that already had side effects.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func NewPersistenceError(op string, err error) *PersistenceError {
	return &PersistenceError{Op: op, Err: err}
}

// SerializationError reports state or payload that could not be encoded or
// decoded. Fatal at the point of save: the in-memory outcome still reaches
// the caller, but the run cannot be durably resumed until fixed.
type SerializationError struct {
	What string
	Err  error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("serialize %s: %v", e.What, e.Err)
}

func (e *SerializationError) Unwrap() error {
	return e.Err
}

func NewSerializationError(what string, err error) *SerializationError {
	return &SerializationError{What: what, Err: err}
}

func IsNodeError(err error) bool {
	var nodeErr *NodeError
	return errors.As(err, &nodeErr)
}

func IsDefinitionError(err error) bool {
	var defErr *DefinitionError
	return errors.As(err, &defErr)
}

func IsPersistenceError(err error) bool {
	var persErr *PersistenceError
	return errors.As(err, &persErr)
}

func IsSerializationError(err error) bool {
	var serErr *SerializationError
	return errors.As(err, &serErr)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrSnapshotNotFound)
}

func IsConflict(err error) bool {
	return errors.Is(err, ErrSnapshotConflict)
}
