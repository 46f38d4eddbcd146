package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/ussdflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunSessionStoreContract runs a suite of tests to verify that a SessionStore
// implementation adheres to the defined interface contract.
func RunSessionStoreContract(t *testing.T, store SessionStore) {
	ctx := context.Background()
	sessionID := "contract-test-session-" + time.Now().Format("20060102150405.000000")
	now := time.Now().UTC().Truncate(time.Second)

	t.Run("Put and Get", func(t *testing.T) {
		sess := domain.NewSession(sessionID, "menu", now)
		sess.Language = "sw"
		sess.History = []string{"2"}
		sess.Data["recipient"] = "0712345678"
		sess.Data["amount"] = 250.5

		err := store.Put(ctx, sessionID, sess, time.Minute)
		require.NoError(t, err, "Put should not return error")

		loaded, err := store.Get(ctx, sessionID)
		require.NoError(t, err, "Get should not return error")
		assert.Equal(t, sess.State, loaded.State)
		assert.Equal(t, "sw", loaded.Language)
		assert.Equal(t, []string{"2"}, loaded.History)
		assert.Equal(t, "0712345678", loaded.Data["recipient"])
		// JSON persistence may turn numbers into float64; only check presence.
		assert.NotNil(t, loaded.Data["amount"])
		assert.True(t, sess.UpdatedAt.Equal(loaded.UpdatedAt))
	})

	t.Run("Last Writer Wins", func(t *testing.T) {
		first := domain.NewSession(sessionID, "menu", now)
		second := domain.NewSession(sessionID, "settings", now)

		require.NoError(t, store.Put(ctx, sessionID, first, time.Minute))
		require.NoError(t, store.Put(ctx, sessionID, second, time.Minute))

		loaded, err := store.Get(ctx, sessionID)
		require.NoError(t, err)
		assert.Equal(t, domain.StateID("settings"), loaded.State)
	})

	t.Run("Get Non-Existent", func(t *testing.T) {
		_, err := store.Get(ctx, "non-existent-"+sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.Put(ctx, sessionID, domain.NewSession(sessionID, "menu", now), time.Minute)
		require.NoError(t, err)

		err = store.Delete(ctx, sessionID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Get(ctx, sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "Get after Delete should return ErrSessionNotFound")

		assert.NoError(t, store.Delete(ctx, sessionID), "Deleting twice is not an error")
	})

	if lister, ok := store.(Lister); ok {
		t.Run("List", func(t *testing.T) {
			id1 := sessionID + "-1"
			id2 := sessionID + "-2"
			_ = store.Put(ctx, id1, domain.NewSession(id1, "menu", now), time.Minute)
			_ = store.Put(ctx, id2, domain.NewSession(id2, "menu", now), time.Minute)
			defer func() {
				_ = store.Delete(ctx, id1)
				_ = store.Delete(ctx, id2)
			}()

			sessions, err := lister.List(ctx)
			require.NoError(t, err)
			assert.Contains(t, sessions, id1)
			assert.Contains(t, sessions, id2)
		})
	}
}
