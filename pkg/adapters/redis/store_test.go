package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/ussdflow/pkg/adapters/redis"
	"github.com/aretw0/ussdflow/pkg/domain"
	"github.com/aretw0/ussdflow/pkg/ports"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisStore_Contract(t *testing.T) {
	_, client := newClient(t)

	store := redis.NewFromClient(client)
	ports.RunSessionStoreContract(t, store)
}

func TestRedisStore_TTL_Expiration(t *testing.T) {
	mr, client := newClient(t)
	store := redis.NewFromClient(client)
	ctx := context.Background()

	sess := domain.NewSession("session-ttl", "menu", time.Now())
	sess.Data["foo"] = "bar"

	require.NoError(t, store.Put(ctx, "session-ttl", sess, time.Second))
	assert.Equal(t, time.Second, mr.TTL(redis.DefaultPrefix+"s:session-ttl"))

	mr.FastForward(2 * time.Second)

	_, err := store.Get(ctx, "session-ttl")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestRedisStore_Prefix(t *testing.T) {
	mr, client := newClient(t)
	store := redis.NewFromClient(client, redis.WithPrefix("custom:app:"))
	ctx := context.Background()

	err := store.Put(ctx, "my-session", domain.NewSession("my-session", "menu", time.Now()), 0)
	require.NoError(t, err)

	assert.True(t, mr.Exists("custom:app:s:my-session"), "Expected key with custom prefix to exist")
	assert.True(t, mr.Exists("custom:app:idx"), "Expected index with custom prefix to exist")

	list, err := store.List(ctx)
	require.NoError(t, err)
	assert.Contains(t, list, "my-session")
}

func TestRedisStore_Unavailable(t *testing.T) {
	mr, client := newClient(t)
	store := redis.NewFromClient(client)
	mr.Close()

	_, err := store.Get(context.Background(), "any")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestRedisStore_SessionIDsCannotReachInternalKeys(t *testing.T) {
	_, client := newClient(t)
	store := redis.NewFromClient(client)
	locker := redis.NewLocker(client, redis.DefaultPrefix)
	ctx := context.Background()

	for _, id := range []string{"idx", "index", "lock:abc", "s:other"} {
		require.NoError(t, store.Put(ctx, id, domain.NewSession(id, "menu", time.Now()), time.Minute), id)
	}

	require.NoError(t, store.Put(ctx, "abc", domain.NewSession("abc", "menu", time.Now()), time.Minute))
	list, err := store.List(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"idx", "index", "lock:abc", "s:other", "abc"}, list)

	lockCtx, cancel := context.WithTimeout(ctx, 300*time.Millisecond)
	defer cancel()
	unlock, err := locker.Lock(lockCtx, "abc", time.Second)
	require.NoError(t, err)
	require.NoError(t, unlock(ctx))

	got, err := store.Get(ctx, "lock:abc")
	require.NoError(t, err)
	assert.Equal(t, "lock:abc", got.ID)
}
