package limitx_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/tramita/portal/pkg/limitx"
)

func newRedisStore(t *testing.T) (*limitx.RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return limitx.NewRedisStore(client), mr
}

func TestRedisStore(t *testing.T) {
	ctx := context.Background()

	t.Run("increments and counts", func(t *testing.T) {
		store, _ := newRedisStore(t)

		for want := int64(1); want <= 3; want++ {
			count, err := store.Increment(ctx, "login:k", window)
			require.NoError(t, err)
			require.Equal(t, want, count)
		}

		count, err := store.Count(ctx, "login:k")
		require.NoError(t, err)
		require.Equal(t, int64(3), count)
	})

	t.Run("missing bucket counts zero", func(t *testing.T) {
		store, _ := newRedisStore(t)

		count, err := store.Count(ctx, "login:nobody")
		require.NoError(t, err)
		require.Zero(t, count)
	})

	t.Run("first increment arms the TTL", func(t *testing.T) {
		store, mr := newRedisStore(t)

		_, err := store.Increment(ctx, "login:k", window)
		require.NoError(t, err)
		require.Equal(t, window, mr.TTL("rl:login:k"))

		// Later increments must not extend the window
		_, err = store.Increment(ctx, "login:k", window)
		require.NoError(t, err)
		require.Equal(t, window, mr.TTL("rl:login:k"))
	})

	t.Run("bucket expires with the window", func(t *testing.T) {
		store, mr := newRedisStore(t)

		for i := 0; i <= points; i++ {
			_, err := store.Increment(ctx, "login:k", window)
			require.NoError(t, err)
		}

		mr.FastForward(window)

		count, err := store.Increment(ctx, "login:k", window)
		require.NoError(t, err)
		require.Equal(t, int64(1), count)
	})

	t.Run("delete clears immediately", func(t *testing.T) {
		store, _ := newRedisStore(t)

		_, err := store.Increment(ctx, "login:k", window)
		require.NoError(t, err)
		require.NoError(t, store.Delete(ctx, "login:k"))

		count, err := store.Count(ctx, "login:k")
		require.NoError(t, err)
		require.Zero(t, count)
	})

	t.Run("limiter blocks over redis too", func(t *testing.T) {
		store, _ := newRedisStore(t)
		l := limitx.New(store)

		for i := 0; i < points; i++ {
			require.False(t, l.Check(ctx, "k", "login", points, window))
		}
		require.True(t, l.Check(ctx, "k", "login", points, window))
	})
}
