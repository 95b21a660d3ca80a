package cache

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getRedisClient(t *testing.T) *redis.Client {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestSessionRoundTrip(t *testing.T) {
	store := NewStore(getRedisClient(t))
	ctx := context.Background()
	id := uuid.NewString()

	require.NoError(t, store.PingContext(ctx))
	require.NoError(t, store.SaveSession(ctx, id, []byte(`{"role":"admin"}`), time.Minute))

	data, err := store.LoadSession(ctx, id)
	require.NoError(t, err)
	assert.JSONEq(t, `{"role":"admin"}`, string(data))

	require.NoError(t, store.DeleteSession(ctx, id))
	_, err = store.LoadSession(ctx, id)
	assert.ErrorIs(t, err, ErrMiss)
}

func TestClaimIdempotencyKey_Concurrent(t *testing.T) {
	store := NewStore(getRedisClient(t))
	ctx := context.Background()
	key := uuid.NewString()
	t.Cleanup(func() { store.ReleaseIdempotencyKey(ctx, key) })

	var wg sync.WaitGroup
	var claimed atomic.Int32
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := store.ClaimIdempotencyKey(ctx, key, time.Minute)
			if err == nil && ok {
				claimed.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), claimed.Load())
}

func TestReleaseIdempotencyKey(t *testing.T) {
	store := NewStore(getRedisClient(t))
	ctx := context.Background()
	key := uuid.NewString()

	ok, err := store.ClaimIdempotencyKey(ctx, key, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, store.ReleaseIdempotencyKey(ctx, key))

	ok, err = store.ClaimIdempotencyKey(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, store.ReleaseIdempotencyKey(ctx, key))
}
