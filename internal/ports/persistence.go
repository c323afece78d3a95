package ports

import (
	"context"
	"strings"

	"github.com/fermata-io/fermata/internal/domain"
)

// Persistence owns the durable copy of run snapshots, keyed by run ID.
//
// Save must provide at-most-one-active-writer semantics per run: when a
// stored snapshot shows the run already advanced past (or diverged from)
// the incoming one, the adapter returns domain.ErrSnapshotConflict instead
// of overwriting. Load returns domain.ErrSnapshotNotFound for unknown runs.
//
// The engine never holds an adapter open across suspensions: each resume
// performs one load and at most one save.
type Persistence interface {
	Load(ctx context.Context, runID string) (*domain.Snapshot, error)
	Save(ctx context.Context, snapshot *domain.Snapshot) error

	// List returns snapshot metadata for operational inspection. Not used
	// on the hot path.
	List(ctx context.Context, filter Filter) ([]domain.SnapshotMeta, error)
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Status domain.Status
	Prefix string
}

// Matches reports whether a snapshot passes the filter.
func (f Filter) Matches(s *domain.Snapshot) bool {
	if f.Status != "" && s.Status != f.Status {
		return false
	}
	if f.Prefix != "" && !strings.HasPrefix(s.RunID, f.Prefix) {
		return false
	}
	return true
}
