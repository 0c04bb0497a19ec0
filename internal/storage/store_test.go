package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"topolens/internal/models"
)

func snapshotFixture(network, name string, status models.SnapshotStatus) *models.Snapshot {
	return &models.Snapshot{
		Network:         network,
		Name:            name,
		Status:          status,
		ConfigFileCount: 2,
		DeviceCount:     2,
		ParseErrors:     []models.ParseError{},
		CreatedAt:       time.Now().UTC().Truncate(time.Millisecond),
	}
}

func runStoreContract(t *testing.T, store Store) {
	ctx := context.Background()

	_, err := store.GetSnapshot(ctx, "prod", "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	snap := snapshotFixture("prod", "baseline", models.SnapshotComplete)
	require.NoError(t, store.SaveSnapshot(ctx, snap))
	require.NoError(t, store.SaveSnapshot(ctx, snapshotFixture("prod", "second", models.SnapshotFailed)))
	require.NoError(t, store.SaveSnapshot(ctx, snapshotFixture("lab", "other", models.SnapshotComplete)))

	got, err := store.GetSnapshot(ctx, "prod", "baseline")
	require.NoError(t, err)
	assert.Equal(t, snap.Status, got.Status)
	assert.Equal(t, snap.ConfigFileCount, got.ConfigFileCount)
	assert.True(t, snap.CreatedAt.Equal(got.CreatedAt))

	// overwrite updates in place
	snap.Status = models.SnapshotDeleted
	require.NoError(t, store.SaveSnapshot(ctx, snap))
	got, err = store.GetSnapshot(ctx, "prod", "baseline")
	require.NoError(t, err)
	assert.Equal(t, models.SnapshotDeleted, got.Status)

	all, err := store.ListSnapshots(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	prod, err := store.ListSnapshots(ctx, "prod")
	require.NoError(t, err)
	assert.Len(t, prod, 2)

	none, err := store.ListSnapshots(ctx, "nowhere")
	require.NoError(t, err)
	assert.Empty(t, none)

	// physical removal
	require.NoError(t, store.DeleteSnapshot(ctx, "prod", "second"))
	_, err = store.GetSnapshot(ctx, "prod", "second")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, store.DeleteSnapshot(ctx, "prod", "second"), ErrNotFound)

	remaining, err := store.ListSnapshots(ctx, "")
	require.NoError(t, err)
	assert.Len(t, remaining, 2)
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	runStoreContract(t, store)
}

func TestBadgerStore(t *testing.T) {
	store, err := NewBadgerStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()
	runStoreContract(t, store)
}

func TestBadgerStoreSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := NewBadgerStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.SaveSnapshot(ctx, snapshotFixture("prod", "durable", models.SnapshotComplete)))
	require.NoError(t, store.Close())

	reopened, err := NewBadgerStore(dir)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.GetSnapshot(ctx, "prod", "durable")
	require.NoError(t, err)
	assert.Equal(t, models.SnapshotComplete, got.Status)
}
