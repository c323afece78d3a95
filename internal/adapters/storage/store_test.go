package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fermata-io/fermata/internal/codec"
	"github.com/fermata-io/fermata/internal/domain"
	"github.com/fermata-io/fermata/internal/ports"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func snapshot(runID string, status domain.Status, history ...string) *domain.Snapshot {
	now := time.Now().UTC()
	snap := &domain.Snapshot{
		RunID:     runID,
		Status:    status,
		State:     codec.RawMessage(`{"count":1}`),
		History:   history,
		Version:   domain.SchemaVersion,
		CreatedAt: now,
		UpdatedAt: now,
	}
	switch status {
	case domain.StatusRunning, domain.StatusInterrupted:
		snap.CurrentNodeTag = "next"
		snap.CurrentNodePayload = codec.RawMessage(`{"note":"staged"}`)
	case domain.StatusCompleted:
		snap.Result = codec.RawMessage(`{"count":1}`)
	case domain.StatusFailed:
		snap.Error = &domain.FailureRecord{NodeTag: "boom", Message: "boom"}
	}
	return snap
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	saved := snapshot("r1", domain.StatusInterrupted, "greet", "pause")
	require.NoError(t, store.Save(ctx, saved))

	loaded, err := store.Load(ctx, "r1")
	require.NoError(t, err)

	assert.Equal(t, saved.RunID, loaded.RunID)
	assert.Equal(t, saved.Status, loaded.Status)
	assert.Equal(t, saved.CurrentNodeTag, loaded.CurrentNodeTag)
	assert.JSONEq(t, string(saved.CurrentNodePayload), string(loaded.CurrentNodePayload))
	assert.JSONEq(t, string(saved.State), string(loaded.State))
	assert.Equal(t, saved.History, loaded.History)
	assert.Equal(t, saved.Version, loaded.Version)
	assert.True(t, saved.UpdatedAt.Equal(loaded.UpdatedAt))
}

func TestLoadMissing(t *testing.T) {
	store := openStore(t)

	_, err := store.Load(context.Background(), "ghost")
	assert.ErrorIs(t, err, domain.ErrSnapshotNotFound)
}

func TestSaveRejectsInvalidSnapshot(t *testing.T) {
	store := openStore(t)

	bad := snapshot("r1", domain.StatusInterrupted, "greet")
	bad.Version = domain.SchemaVersion + 1

	err := store.Save(context.Background(), bad)
	require.Error(t, err)
	assert.True(t, domain.IsPersistenceError(err))
}

func TestSaveConflicts(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, snapshot("done", domain.StatusCompleted, "a", "b")))
	err := store.Save(ctx, snapshot("done", domain.StatusInterrupted, "a", "b", "c"))
	assert.ErrorIs(t, err, domain.ErrSnapshotConflict, "terminal snapshots never change")

	require.NoError(t, store.Save(ctx, snapshot("live", domain.StatusInterrupted, "a", "b")))
	err = store.Save(ctx, snapshot("live", domain.StatusInterrupted, "x"))
	assert.ErrorIs(t, err, domain.ErrSnapshotConflict, "history must extend, not rewrite")

	// a retried identical save and a genuine extension both go through
	require.NoError(t, store.Save(ctx, snapshot("live", domain.StatusInterrupted, "a", "b")))
	require.NoError(t, store.Save(ctx, snapshot("live", domain.StatusCompleted, "a", "b", "c")))
}

func TestList(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, snapshot("order-2", domain.StatusCompleted, "a")))
	require.NoError(t, store.Save(ctx, snapshot("order-1", domain.StatusInterrupted, "a")))
	require.NoError(t, store.Save(ctx, snapshot("invoice-1", domain.StatusInterrupted, "a")))

	all, err := store.List(ctx, ports.Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "invoice-1", all[0].RunID)
	assert.Equal(t, "order-1", all[1].RunID)
	assert.Equal(t, "order-2", all[2].RunID)

	orders, err := store.List(ctx, ports.Filter{Prefix: "order-"})
	require.NoError(t, err)
	require.Len(t, orders, 2)

	interrupted, err := store.List(ctx, ports.Filter{Status: domain.StatusInterrupted, Prefix: "order-"})
	require.NoError(t, err)
	require.Len(t, interrupted, 1)
	assert.Equal(t, "order-1", interrupted[0].RunID)
}

func TestSnapshotsSurviveReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := Open(dir, nil)
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, snapshot("r1", domain.StatusInterrupted, "greet", "pause")))
	require.NoError(t, store.Close())

	reopened, err := Open(dir, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	loaded, err := reopened.Load(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInterrupted, loaded.Status)
	assert.Equal(t, []string{"greet", "pause"}, loaded.History)
	assert.Equal(t, "next", loaded.CurrentNodeTag)
}
