package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLocalTTLStoreSetGet(t *testing.T) {
	store := NewLocalTTLStore(time.Hour)
	defer store.Close()
	ctx := context.Background()

	store.Set(ctx, "key", []byte("value"), 0)

	got, ok := store.Get(ctx, "key")
	assert.True(t, ok)
	assert.Equal(t, []byte("value"), got)

	_, ok = store.Get(ctx, "missing")
	assert.False(t, ok)
}

func TestLocalTTLStoreExpiry(t *testing.T) {
	store := NewLocalTTLStore(time.Hour)
	defer store.Close()
	ctx := context.Background()

	store.Set(ctx, "short", []byte("v"), 10*time.Millisecond)

	_, ok := store.Get(ctx, "short")
	assert.True(t, ok)

	time.Sleep(30 * time.Millisecond)

	_, ok = store.Get(ctx, "short")
	assert.False(t, ok)
}

func TestLocalTTLStoreDeleteAndClear(t *testing.T) {
	store := NewLocalTTLStore(time.Hour)
	defer store.Close()
	ctx := context.Background()

	store.Set(ctx, "a", []byte("1"), 0)
	store.Set(ctx, "b", []byte("2"), 0)

	store.Delete(ctx, "a")
	_, ok := store.Get(ctx, "a")
	assert.False(t, ok)

	store.Clear(ctx)
	_, ok = store.Get(ctx, "b")
	assert.False(t, ok)
}
