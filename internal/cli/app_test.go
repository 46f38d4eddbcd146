package cli

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/ussdflow/internal/config"
	"github.com/aretw0/ussdflow/internal/logging"
	"github.com/aretw0/ussdflow/pkg/domain"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenStore_Memory(t *testing.T) {
	b, err := OpenStore(config.Default())
	require.NoError(t, err)
	defer b.Close()

	assert.NotNil(t, b.Memory)
	assert.Nil(t, b.Locker)
	assert.Nil(t, b.Health)
}

func TestOpenStore_File(t *testing.T) {
	cfg := config.Default()
	cfg.Store.Backend = config.BackendFile
	cfg.Store.Dir = t.TempDir()

	b, err := OpenStore(cfg)
	require.NoError(t, err)
	defer b.Close()
	assert.Nil(t, b.Memory)

	ctx := context.Background()
	require.NoError(t, b.Store.Put(ctx, "s1", domain.NewSession("s1", "menu", time.Now()), time.Minute))

	reopened, err := OpenStore(cfg)
	require.NoError(t, err)
	_, err = reopened.Store.Get(ctx, "s1")
	assert.NoError(t, err, "file sessions survive reopening")
}

func TestOpenStore_RedisEncrypted(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := config.Default()
	cfg.Store.Backend = config.BackendRedis
	cfg.Store.Redis.Addr = mr.Addr()
	cfg.Store.Redis.Prefix = "test:"
	cfg.Store.EncryptionKey = base64.StdEncoding.EncodeToString([]byte(strings.Repeat("k", 32)))

	b, err := OpenStore(cfg)
	require.NoError(t, err)
	defer b.Close()

	ctx := context.Background()
	require.NotNil(t, b.Health)
	require.NoError(t, b.Health(ctx))
	assert.NotNil(t, b.Locker)
	assert.Nil(t, b.Memory)

	sess := domain.NewSession("s1", "menu", time.Now()).WithData("recipient", "0712345678")
	require.NoError(t, b.Store.Put(ctx, "s1", sess, time.Minute))

	raw, err := mr.Get("test:s:s1")
	require.NoError(t, err)
	assert.NotContains(t, raw, "0712345678")

	loaded, err := b.Store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "0712345678", loaded.Data["recipient"])
}

func TestNewApp_RecordsMetrics(t *testing.T) {
	app, err := NewApp(config.Default(), logging.NewNop())
	require.NoError(t, err)
	defer app.Backend.Close()

	ctx := context.Background()
	_, err = app.Service.Handle(ctx, domain.Turn{SessionID: "s1", RawInput: ""})
	require.NoError(t, err)
	_, err = app.Service.Handle(ctx, domain.Turn{SessionID: "s1", RawInput: "1"})
	require.NoError(t, err)

	count, err := testutil.GatherAndCount(app.Registry, "ussdflow_transitions_total")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, count, 1)
}

func TestNewApp_RejectsBadCatalogDir(t *testing.T) {
	cfg := config.Default()
	cfg.CatalogDir = t.TempDir()
	_, err := NewApp(cfg, logging.NewNop())
	assert.Error(t, err)
}
