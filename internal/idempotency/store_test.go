package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/ayo6706/wallet-ledger/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreReserveFinalizeLookup(t *testing.T) {
	ctx := context.Background()
	store := NewStore(nil, memory.New(), time.Minute)

	_, err := store.Lookup(ctx, "k1", "h1")
	require.ErrorIs(t, err, ErrNotFound)

	reserved, err := store.Reserve(ctx, "k1", "h1", "POST", "/v1/swap")
	require.NoError(t, err)
	assert.True(t, reserved)

	reserved, err = store.Reserve(ctx, "k1", "h1", "POST", "/v1/swap")
	require.NoError(t, err)
	assert.False(t, reserved)

	_, err = store.Lookup(ctx, "k1", "h1")
	require.ErrorIs(t, err, ErrInProgress)
	_, err = store.Lookup(ctx, "k1", "other")
	require.ErrorIs(t, err, ErrHashMismatch)

	_, err = store.Finalize(ctx, "k1", "other", 200, []byte(`{}`), "application/json")
	require.ErrorIs(t, err, ErrNotFound)

	rec, err := store.Finalize(ctx, "k1", "h1", 201, []byte(`{"ok":true}`), "application/json")
	require.NoError(t, err)
	assert.Equal(t, 201, rec.Status)

	got, err := store.Lookup(ctx, "k1", "h1")
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, string(got.Body))
	assert.Equal(t, "database", got.ServedBy)
}

func TestWaitForCompletionHonoursContext(t *testing.T) {
	store := NewStore(nil, memory.New(), time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()

	_, err := store.Reserve(ctx, "k2", "h", "POST", "/v1/swap")
	require.NoError(t, err)

	_, err = store.WaitForCompletion(ctx, "k2", "h")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWaitForCompletionReturnsFinalizedRecord(t *testing.T) {
	store := NewStore(nil, memory.New(), time.Minute)
	ctx := context.Background()

	_, err := store.Reserve(ctx, "k3", "h", "POST", "/v1/swap")
	require.NoError(t, err)
	go func() {
		time.Sleep(60 * time.Millisecond)
		_, _ = store.Finalize(ctx, "k3", "h", 200, []byte(`done`), "text/plain")
	}()

	rec, err := store.WaitForCompletion(ctx, "k3", "h")
	require.NoError(t, err)
	assert.Equal(t, "done", string(rec.Body))
}

func TestReleaseAllowsRetry(t *testing.T) {
	store := NewStore(nil, memory.New(), time.Minute)
	ctx := context.Background()

	reserved, err := store.Reserve(ctx, "k4", "h", "POST", "/v1/swap")
	require.NoError(t, err)
	require.True(t, reserved)

	require.NoError(t, store.Release(ctx, "k4", "other"))
	_, err = store.Lookup(ctx, "k4", "h")
	require.ErrorIs(t, err, ErrInProgress)

	require.NoError(t, store.Release(ctx, "k4", "h"))
	_, err = store.Lookup(ctx, "k4", "h")
	require.ErrorIs(t, err, ErrNotFound)

	reserved, err = store.Reserve(ctx, "k4", "h", "POST", "/v1/swap")
	require.NoError(t, err)
	assert.True(t, reserved)

	_, err = store.Finalize(ctx, "k4", "h", 200, []byte(`{}`), "application/json")
	require.NoError(t, err)
	require.NoError(t, store.Release(ctx, "k4", "h"))
	_, err = store.Lookup(ctx, "k4", "h")
	require.NoError(t, err, "completed records are never released")
}
