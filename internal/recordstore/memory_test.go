package recordstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snaptab/snaptab/internal/models"
)

func testRecord(pin string) Record {
	return Record{
		PIN: pin,
		Document: models.SplitDocument{
			Items:  []models.Item{{ID: "i1", Name: "Pizza", Price: 20, Quantity: 2}},
			Users:  []models.Participant{{ID: "u1", Name: "Alice", Color: "#f94144"}},
			HostID: "u1",
			Status: models.StatusWaiting,
		},
	}
}

func TestMemoryStoreCreateGet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, "4821", testRecord("4821")))

	got, err := store.Get(ctx, "4821")
	require.NoError(t, err)
	assert.Equal(t, "4821", got.PIN)
	assert.Equal(t, models.StatusWaiting, got.Document.Status)
	require.Len(t, got.Document.Items, 1)
	assert.Equal(t, "Pizza", got.Document.Items[0].Name)
}

func TestMemoryStoreCreateConflict(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, "4821", testRecord("4821")))
	assert.ErrorIs(t, store.Create(ctx, "4821", testRecord("4821")), ErrConflict)
}

func TestMemoryStoreGetMissing(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.Get(context.Background(), "0000")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreOverwriteMissing(t *testing.T) {
	store := NewMemoryStore()

	err := store.Overwrite(context.Background(), "0000", testRecord("0000"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreGetReturnsCopy(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, "4821", testRecord("4821")))

	first, err := store.Get(ctx, "4821")
	require.NoError(t, err)
	first.Document.Items[0].Name = "Tampered"

	second, err := store.Get(ctx, "4821")
	require.NoError(t, err)
	assert.Equal(t, "Pizza", second.Document.Items[0].Name)
}

func TestMemoryStoreWatchFanOut(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, "4821", testRecord("4821")))

	subA, err := store.Watch(ctx, "4821")
	require.NoError(t, err)
	defer subA.Close()
	subB, err := store.Watch(ctx, "4821")
	require.NoError(t, err)
	defer subB.Close()

	rec := testRecord("4821")
	rec.Document.Status = models.StatusActive
	rec.OriginID = "client-1"
	rec.OriginSeq = 1
	require.NoError(t, store.Overwrite(ctx, "4821", rec))

	for name, sub := range map[string]Subscription{"A": subA, "B": subB} {
		select {
		case got := <-sub.Updates():
			assert.Equal(t, models.StatusActive, got.Document.Status, "watcher %s", name)
			assert.Equal(t, "client-1", got.OriginID, "watcher %s", name)
			assert.Equal(t, uint64(1), got.OriginSeq, "watcher %s", name)
		case <-time.After(time.Second):
			t.Fatalf("watcher %s received no notification", name)
		}
	}
}

func TestMemoryStoreWatchCloseIdempotent(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, "4821", testRecord("4821")))

	sub, err := store.Watch(ctx, "4821")
	require.NoError(t, err)

	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())

	// A write after close must not panic on the closed channel.
	require.NoError(t, store.Overwrite(ctx, "4821", testRecord("4821")))

	_, open := <-sub.Updates()
	assert.False(t, open, "updates channel should be closed")
}
