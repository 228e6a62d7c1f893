package recordstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snaptab/snaptab/internal/models"
)

func setupTestRedis(t *testing.T) *RedisStore {
	t.Helper()
	s := miniredis.RunT(t)
	store, err := NewRedisStore("redis://"+s.Addr(), 0)
	if err != nil {
		t.Fatalf("failed to create redis store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRedisStoreRoundTrip(t *testing.T) {
	store := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, "4821", testRecord("4821")))

	got, err := store.Get(ctx, "4821")
	require.NoError(t, err)
	assert.Equal(t, "4821", got.PIN)
	require.Len(t, got.Document.Users, 1)
	assert.Equal(t, "Alice", got.Document.Users[0].Name)
}

func TestRedisStoreCreateConflict(t *testing.T) {
	store := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, "4821", testRecord("4821")))
	assert.ErrorIs(t, store.Create(ctx, "4821", testRecord("4821")), ErrConflict)
}

func TestRedisStoreGetMissing(t *testing.T) {
	store := setupTestRedis(t)

	_, err := store.Get(context.Background(), "0000")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStoreWatch(t *testing.T) {
	store := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, "4821", testRecord("4821")))

	sub, err := store.Watch(ctx, "4821")
	require.NoError(t, err)
	defer sub.Close()

	rec := testRecord("4821")
	rec.Document.Status = models.StatusActive
	rec.OriginID = "client-1"
	rec.OriginSeq = 3
	require.NoError(t, store.Overwrite(ctx, "4821", rec))

	select {
	case got := <-sub.Updates():
		assert.Equal(t, models.StatusActive, got.Document.Status)
		assert.Equal(t, "client-1", got.OriginID)
		assert.Equal(t, uint64(3), got.OriginSeq)
	case <-time.After(2 * time.Second):
		t.Fatal("no notification received")
	}
}

func TestRedisStoreWatchCloseIdempotent(t *testing.T) {
	store := setupTestRedis(t)
	ctx := context.Background()

	sub, err := store.Watch(ctx, "4821")
	require.NoError(t, err)

	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())
}

func TestRedisStoreExpiry(t *testing.T) {
	s := miniredis.RunT(t)
	store, err := NewRedisStore("redis://"+s.Addr(), time.Minute)
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.Create(ctx, "4821", testRecord("4821")))

	s.FastForward(2 * time.Minute)

	_, err = store.Get(ctx, "4821")
	assert.ErrorIs(t, err, ErrNotFound)
}
