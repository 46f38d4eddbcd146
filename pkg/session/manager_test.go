package session_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/ussdflow/pkg/adapters/memory"
	"github.com/aretw0/ussdflow/pkg/domain"
	"github.com/aretw0/ussdflow/pkg/ports"
	"github.com/aretw0/ussdflow/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type brokenStore struct{}

func (brokenStore) Get(context.Context, string) (domain.Session, error) {
	return domain.Session{}, errors.New("connection refused")
}
func (brokenStore) Put(context.Context, string, domain.Session, time.Duration) error {
	return errors.New("connection refused")
}
func (brokenStore) Delete(context.Context, string) error { return errors.New("connection refused") }

type failingLocker struct{}

func (failingLocker) Lock(context.Context, string, time.Duration) (ports.UnlockFunc, error) {
	return nil, errors.New("redis down")
}

type countingLocker struct {
	locks, unlocks atomic.Int32
}

func (l *countingLocker) Lock(context.Context, string, time.Duration) (ports.UnlockFunc, error) {
	l.locks.Add(1)
	return func(context.Context) error {
		l.unlocks.Add(1)
		return nil
	}, nil
}

func TestManager_LockLifecycle(t *testing.T) {
	mgr := session.NewManager(memory.NewStore())
	ctx := context.Background()

	for i := 0; i < 1000; i++ {
		sid := fmt.Sprintf("session-%d", i)
		err := mgr.WithLock(ctx, sid, func(ctx context.Context, tx session.Tx) error {
			return tx.Put(ctx, domain.NewSession(sid, "menu", time.Now()), time.Minute)
		})
		require.NoError(t, err)
		require.NoError(t, mgr.Delete(ctx, sid))
	}

	assert.Equal(t, 0, session.ActiveLocks(mgr), "locks must be released once unused")
}

func TestManager_SerializesSameSession(t *testing.T) {
	mgr := session.NewManager(memory.NewStore())
	ctx := context.Background()

	var inside, maxInside atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = mgr.WithLock(ctx, "same", func(context.Context, session.Tx) error {
				n := inside.Add(1)
				for {
					m := maxInside.Load()
					if n <= m || maxInside.CompareAndSwap(m, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				inside.Add(-1)
				return nil
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside.Load())
}

func TestManager_TxErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("Not Found Passes Through", func(t *testing.T) {
		mgr := session.NewManager(memory.NewStore())
		_, err := mgr.Load(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
		assert.NotErrorIs(t, err, domain.ErrStoreUnavailable)
	})

	t.Run("Backend Failure Is Unavailable", func(t *testing.T) {
		mgr := session.NewManager(brokenStore{})
		_, err := mgr.Load(ctx, "any")
		assert.ErrorIs(t, err, domain.ErrStoreUnavailable)

		err = mgr.WithLock(ctx, "any", func(ctx context.Context, tx session.Tx) error {
			return tx.Put(ctx, domain.Session{}, time.Minute)
		})
		assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
		assert.ErrorIs(t, mgr.Delete(ctx, "any"), domain.ErrStoreUnavailable)
	})

	t.Run("Locker Failure Is Unavailable", func(t *testing.T) {
		mgr := session.NewManager(memory.NewStore(), session.WithLocker(failingLocker{}))
		called := false
		err := mgr.WithLock(ctx, "any", func(context.Context, session.Tx) error {
			called = true
			return nil
		})
		assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
		assert.False(t, called)
		assert.Equal(t, 0, session.ActiveLocks(mgr))
	})
}

func TestManager_DistributedLocker(t *testing.T) {
	locker := &countingLocker{}
	mgr := session.NewManager(memory.NewStore(), session.WithLocker(locker), session.WithLockTTL(time.Second))

	for i := 0; i < 3; i++ {
		require.NoError(t, mgr.WithLock(context.Background(), "s", func(context.Context, session.Tx) error { return nil }))
	}

	assert.Equal(t, int32(3), locker.locks.Load())
	assert.Equal(t, int32(3), locker.unlocks.Load())
}

func TestManager_List(t *testing.T) {
	store := memory.NewStore()
	mgr := session.NewManager(store)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "b", domain.NewSession("b", "menu", time.Now()), time.Minute))
	require.NoError(t, store.Put(ctx, "a", domain.NewSession("a", "menu", time.Now()), time.Minute))

	ids, err := mgr.List(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, ids)

	_, err = session.NewManager(brokenStore{}).List(ctx)
	assert.Error(t, err)
}
