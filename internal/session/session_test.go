package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	store := NewMemory[string](0)

	_, err := store.Get(ctx, 1)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Set(ctx, 1, "first"))
	require.NoError(t, store.Set(ctx, 1, "second"))

	got, err := store.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "second", got, "last writer wins")
	assert.Equal(t, 1, store.Len())

	require.NoError(t, store.Delete(ctx, 1))
	require.NoError(t, store.Delete(ctx, 1))

	_, err = store.Get(ctx, 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemory_KeysAreIndependent(t *testing.T) {
	ctx := context.Background()
	store := NewMemory[int](0)

	require.NoError(t, store.Set(ctx, 100, 1))
	require.NoError(t, store.Set(ctx, 200, 2))
	require.NoError(t, store.Delete(ctx, 100))

	got, err := store.Get(ctx, 200)
	require.NoError(t, err)
	assert.Equal(t, 2, got)
}

func TestMemory_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	store := NewMemory[string](time.Minute)

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	require.NoError(t, store.Set(ctx, 1, "stale"))
	now = now.Add(30 * time.Second)
	require.NoError(t, store.Set(ctx, 2, "fresh"))

	now = now.Add(45 * time.Second)

	_, err := store.Get(ctx, 1)
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := store.Get(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "fresh", got)

	assert.Equal(t, 1, store.Sweep())
	assert.Equal(t, 1, store.Len())
}

func TestMemory_NoTTLNeverExpires(t *testing.T) {
	ctx := context.Background()
	store := NewMemory[string](0)

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	require.NoError(t, store.Set(ctx, 1, "kept"))

	now = now.Add(365 * 24 * time.Hour)

	_, err := store.Get(ctx, 1)
	assert.NoError(t, err)
	assert.Equal(t, 0, store.Sweep())
}

func TestMemory_RunStopsOnCancel(t *testing.T) {
	store := NewMemory[string](time.Second)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- store.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
