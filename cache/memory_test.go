package cache_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/casemgmt/portal-gateway/cache"
	"github.com/casemgmt/portal-gateway/internal/errors"
)

func TestMemory_SetAndGet(t *testing.T) {
	memory := cache.NewMemory()

	require.NoError(t, memory.Set(t.Context(), "key", []byte("value"), 0))

	value, err := memory.Get(t.Context(), "key")
	require.NoError(t, err)
	require.Equal(t, []byte("value"), value)
}

func TestMemory_GetMissingKey(t *testing.T) {
	memory := cache.NewMemory()

	_, err := memory.Get(t.Context(), "absent")
	require.ErrorIs(t, err, errors.ErrNotFound)
}

func TestMemory_EntryExpires(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	currentTime := now
	memory := cache.NewMemory(cache.WithMemoryNowTime(func() time.Time { return currentTime }))

	require.NoError(t, memory.Set(t.Context(), "key", []byte("value"), time.Minute))

	currentTime = now.Add(59 * time.Second)
	_, err := memory.Get(t.Context(), "key")
	require.NoError(t, err)

	currentTime = now.Add(61 * time.Second)
	_, err = memory.Get(t.Context(), "key")
	require.ErrorIs(t, err, errors.ErrNotFound)
}

func TestMemory_ZeroTTLNeverExpires(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	currentTime := now
	memory := cache.NewMemory(cache.WithMemoryNowTime(func() time.Time { return currentTime }))

	require.NoError(t, memory.Set(t.Context(), "key", []byte("value"), 0))

	currentTime = now.Add(1000 * time.Hour)
	_, err := memory.Get(t.Context(), "key")
	require.NoError(t, err)
}

func TestMemory_Drop(t *testing.T) {
	memory := cache.NewMemory()

	require.NoError(t, memory.Set(t.Context(), "key", []byte("value"), 0))
	require.NoError(t, memory.Drop(t.Context(), "key"))

	_, err := memory.Get(t.Context(), "key")
	require.ErrorIs(t, err, errors.ErrNotFound)

	// Dropping an absent key is a no-op.
	require.NoError(t, memory.Drop(t.Context(), "absent"))
}

func TestMemory_StoredValueIsCopied(t *testing.T) {
	memory := cache.NewMemory()

	value := []byte("value")
	require.NoError(t, memory.Set(t.Context(), "key", value, 0))
	value[0] = 'X'

	stored, err := memory.Get(t.Context(), "key")
	require.NoError(t, err)
	require.Equal(t, []byte("value"), stored)
}
