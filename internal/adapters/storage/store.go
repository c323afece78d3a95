// Package storage provides the badger-backed Persistence adapter. One key
// per run; the conflict check and the write happen inside a single badger
// transaction, giving the at-most-one-active-writer guarantee the engine
// relies on.
package storage

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"github.com/dgraph-io/badger/v3"

	"github.com/fermata-io/fermata/internal/codec"
	"github.com/fermata-io/fermata/internal/domain"
	"github.com/fermata-io/fermata/internal/ports"
)

const snapshotPrefix = "snapshot:"

type Store struct {
	db     *badger.DB
	logger *slog.Logger
}

// NewStore wraps an already-open badger database.
func NewStore(db *badger.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		db:     db,
		logger: logger.With("component", "store", "type", "badger"),
	}
}

// Open opens (or creates) a badger database at dir and wraps it.
func Open(dir string, logger *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, domain.NewPersistenceError("open", err)
	}
	return NewStore(db, logger), nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Load(ctx context.Context, runID string) (*domain.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.NewPersistenceError("load", err)
	}

	var snap domain.Snapshot
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(snapshotKey(runID))
		if err != nil {
			return err
		}
		return item.Value(func(value []byte) error {
			return codec.Unmarshal(value, &snap)
		})
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			s.logger.Debug("snapshot not found", "run_id", runID)
			return nil, domain.ErrSnapshotNotFound
		}
		return nil, domain.NewPersistenceError("load", err)
	}

	return &snap, nil
}

func (s *Store) Save(ctx context.Context, snapshot *domain.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return domain.NewPersistenceError("save", err)
	}
	if err := snapshot.Validate(); err != nil {
		return domain.NewPersistenceError("save", err)
	}

	value, err := codec.Marshal(snapshot)
	if err != nil {
		return domain.NewSerializationError("snapshot", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(snapshotKey(snapshot.RunID))
		if err == nil {
			var stored domain.Snapshot
			if err := item.Value(func(v []byte) error {
				return codec.Unmarshal(v, &stored)
			}); err != nil {
				return err
			}
			if stored.Status.Terminal() {
				return domain.ErrSnapshotConflict
			}
			if !domain.HistoryExtends(stored.History, snapshot.History) {
				return domain.ErrSnapshotConflict
			}
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		return txn.Set(snapshotKey(snapshot.RunID), value)
	})
	if err != nil {
		if domain.IsConflict(err) {
			s.logger.Warn("rejected conflicting save", "run_id", snapshot.RunID)
			return err
		}
		return domain.NewPersistenceError("save", err)
	}

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

	var metas []domain.SnapshotMeta
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(snapshotPrefix + filter.Prefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var snap domain.Snapshot
			if err := it.Item().Value(func(v []byte) error {
				return codec.Unmarshal(v, &snap)
			}); err != nil {
				return err
			}
			if filter.Matches(&snap) {
				metas = append(metas, snap.Meta())
			}
		}
		return nil
	})
	if err != nil {
		return nil, domain.NewPersistenceError("list", err)
	}

	sort.Slice(metas, func(i, j int) bool { return metas[i].RunID < metas[j].RunID })
	return metas, nil
}

func snapshotKey(runID string) []byte {
	return []byte(snapshotPrefix + runID)
}
