package domain

import (
	"fmt"
	"time"

	"github.com/fermata-io/fermata/internal/codec"
)

// SchemaVersion is the current major version of the persisted snapshot
// layout. Loaders reject snapshots written with any other major version
// rather than guessing at field semantics.
const SchemaVersion = 1

type Status string

const (
	StatusRunning     Status = "running"
	StatusInterrupted Status = "interrupted"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
)

// Terminal reports whether the run is finished and must never execute again.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

func (s Status) Valid() bool {
	switch s {
	case StatusRunning, StatusInterrupted, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Snapshot is the durable projection of a run at a suspension or completion
// point. The persistence adapter owns the stored copy; everything in memory
// is a transient reconstruction of it.
type Snapshot struct {
	RunID              string           `json:"run_id"`
	Status             Status           `json:"status"`
	CurrentNodeTag     string           `json:"current_node_tag,omitempty"`
	CurrentNodePayload codec.RawMessage `json:"current_node_payload,omitempty"`
	State              codec.RawMessage `json:"state,omitempty"`
	History            []string         `json:"history"`
	Result             codec.RawMessage `json:"result,omitempty"`
	Error              *FailureRecord   `json:"error,omitempty"`
	Version            int              `json:"version"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
}

// FailureRecord is the structured error stored on a failed snapshot.
type FailureRecord struct {
	NodeTag string `json:"node_tag,omitempty"`
	Message string `json:"message"`
}

// Validate checks the structural invariants of a snapshot: known schema
// major, non-empty run ID, a resume target on suspended snapshots and no
// current node on completed ones.
func (s *Snapshot) Validate() error {
	if s.Version != SchemaVersion {
		return fmt.Errorf("unsupported snapshot version %d (supported: %d)", s.Version, SchemaVersion)
	}
	if s.RunID == "" {
		return fmt.Errorf("snapshot has empty run_id")
	}
	if !s.Status.Valid() {
		return fmt.Errorf("snapshot has unknown status %q", s.Status)
	}
	switch s.Status {
	case StatusRunning, StatusInterrupted:
		if s.CurrentNodeTag == "" {
			return fmt.Errorf("suspended snapshot for run %s has no current node tag", s.RunID)
		}
	case StatusCompleted:
		if s.CurrentNodeTag != "" {
			return fmt.Errorf("completed snapshot for run %s still carries current node %q", s.RunID, s.CurrentNodeTag)
		}
	case StatusFailed:
		if s.Error == nil {
			return fmt.Errorf("failed snapshot for run %s has no error record", s.RunID)
		}
	}
	return nil
}

// Clone returns a deep copy so adapters never share mutable payloads or
// history slices with their callers.
func (s *Snapshot) Clone() *Snapshot {
	out := *s
	out.CurrentNodePayload = codec.Clone(s.CurrentNodePayload)
	out.State = codec.Clone(s.State)
	out.Result = codec.Clone(s.Result)
	if s.History != nil {
		out.History = make([]string, len(s.History))
		copy(out.History, s.History)
	}
	if s.Error != nil {
		errCopy := *s.Error
		out.Error = &errCopy
	}
	return &out
}

// Meta projects the snapshot into the lightweight form returned by List.
func (s *Snapshot) Meta() SnapshotMeta {
	return SnapshotMeta{
		RunID:     s.RunID,
		Status:    s.Status,
		Steps:     len(s.History),
		UpdatedAt: s.UpdatedAt,
	}
}

// SnapshotMeta describes a stored snapshot for operational inspection.
type SnapshotMeta struct {
	RunID     string    `json:"run_id"`
	Status    Status    `json:"status"`
	Steps     int       `json:"steps"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HistoryExtends reports whether next is a prefix-extension of prev: no
// prior entry rewritten, length never shrinking. Adapters use this to detect
// a concurrent writer before accepting a save.
func HistoryExtends(prev, next []string) bool {
	if len(next) < len(prev) {
		return false
	}
	for i := range prev {
		if next[i] != prev[i] {
			return false
		}
	}
	return true
}
