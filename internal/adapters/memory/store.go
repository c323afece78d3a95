// Package memory provides an in-process Persistence adapter. Snapshots are
// deep-copied on the way in and out, so it behaves like a real store with
// respect to aliasing; suitable for tests and single-process embedding.
package memory

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/fermata-io/fermata/internal/domain"
	"github.com/fermata-io/fermata/internal/ports"
)

type Store struct {
	mu        sync.RWMutex
	snapshots map[string]*domain.Snapshot
	logger    *slog.Logger
}

func NewStore(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		snapshots: make(map[string]*domain.Snapshot),
		logger:    logger.With("component", "store", "type", "memory"),
	}
}

func (s *Store) Load(ctx context.Context, runID string) (*domain.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.NewPersistenceError("load", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, exists := s.snapshots[runID]
	if !exists {
		s.logger.Debug("snapshot not found", "run_id", runID)
		return nil, domain.ErrSnapshotNotFound
	}
	return snap.Clone(), nil
}

func (s *Store) Save(ctx context.Context, snapshot *domain.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return domain.NewPersistenceError("save", err)
	}
	if err := snapshot.Validate(); err != nil {
		return domain.NewPersistenceError("save", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if stored, exists := s.snapshots[snapshot.RunID]; exists {
		if err := checkOverwrite(stored, snapshot); err != nil {
			s.logger.Warn("rejected conflicting save",
				"run_id", snapshot.RunID,
				"stored_steps", len(stored.History),
				"incoming_steps", len(snapshot.History),
			)
			return err
		}
	}

	s.snapshots[snapshot.RunID] = snapshot.Clone()
	s.logger.Debug("snapshot saved",
		"run_id", snapshot.RunID,
		"status", string(snapshot.Status),
		"steps", len(snapshot.History),
	)
	return nil
}

func (s *Store) List(ctx context.Context, filter ports.Filter) ([]domain.SnapshotMeta, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.NewPersistenceError("list", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	metas := make([]domain.SnapshotMeta, 0, len(s.snapshots))
	for _, snap := range s.snapshots {
		if filter.Matches(snap) {
			metas = append(metas, snap.Meta())
		}
	}

	sort.Slice(metas, func(i, j int) bool { return metas[i].RunID < metas[j].RunID })
	return metas, nil
}

// checkOverwrite enforces at-most-one-active-writer per run: a finished run
// never changes again, and an incoming snapshot must extend the stored
// history rather than rewrite it.
func checkOverwrite(stored, incoming *domain.Snapshot) error {
	if stored.Status.Terminal() {
		return domain.ErrSnapshotConflict
	}
	if !domain.HistoryExtends(stored.History, incoming.History) {
		return domain.ErrSnapshotConflict
	}
	return nil
}
