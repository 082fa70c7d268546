package redis

import (
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/ChemMap/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ChemMap/internal/testutil"
	"github.com/turtacn/ChemMap/pkg/errors"
)

func TestNewClient_Standalone_Success(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewClient(&RedisConfig{Mode: "standalone", Addr: mr.Addr()}, logging.NewNopLogger())
	require.NoError(t, err)
	defer client.Close()

	assert.NoError(t, client.Ping(context.Background()))
	assert.False(t, client.IsCluster())
	assert.NotNil(t, client.PoolStats())
}

func TestClient_CloseLogsPoolStats(t *testing.T) {
	mr := miniredis.RunT(t)
	log := testutil.NewMockLogger()

	client, err := NewClient(&RedisConfig{Mode: "standalone", Addr: mr.Addr()}, log)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, client.Set(ctx, "k", "v", 0).Err())
	require.NoError(t, client.Get(ctx, "k").Err())

	require.NoError(t, client.Close())
	require.True(t, log.HasMessage("info", "closed redis client"))

	cluster, ok := log.Field("closed redis client", "cluster")
	require.True(t, ok)
	assert.Equal(t, false, cluster)
	hits, ok := log.Field("closed redis client", "pool_hits")
	require.True(t, ok)
	assert.Greater(t, hits.(int64), int64(0))
	_, ok = log.Field("closed redis client", "total_conns")
	assert.True(t, ok)

	// a second Close is a no-op and logs nothing more
	log.Clear()
	require.NoError(t, client.Close())
	assert.Empty(t, log.GetMessages())
}

func TestNewClient_UnknownModeFallsBack(t *testing.T) {
	mr := miniredis.RunT(t)
	log := testutil.NewMockLogger()

	client, err := NewClient(&RedisConfig{Mode: "mesh", Addr: mr.Addr()}, log)
	require.NoError(t, err)
	defer client.Close()

	assert.True(t, log.HasMessage("warn", "unknown redis mode, using standalone"))
}

func TestNewClient_ConnectionFailed(t *testing.T) {
	client, err := NewClient(&RedisConfig{
		Mode:        "standalone",
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	}, logging.NewNopLogger())

	assert.Nil(t, client)
	assert.True(t, errors.IsCode(err, errors.ErrCodeCacheError))
}

func TestApplyDefaults(t *testing.T) {
	cfg := &RedisConfig{}
	applyDefaults(cfg)

	assert.Equal(t, 10*runtime.GOMAXPROCS(0), cfg.PoolSize)
	assert.Equal(t, 5*time.Second, cfg.DialTimeout)
	assert.Equal(t, 3, cfg.MaxRetries)

	cfg = &RedisConfig{PoolSize: 4, MaxRetries: -1}
	applyDefaults(cfg)
	assert.Equal(t, 4, cfg.PoolSize)
	assert.Equal(t, -1, cfg.MaxRetries)
}

func TestBuildTLSConfig(t *testing.T) {
	tlsCfg, err := buildTLSConfig(&RedisConfig{})
	require.NoError(t, err)
	assert.Nil(t, tlsCfg)

	tlsCfg, err = buildTLSConfig(&RedisConfig{TLSEnabled: true, TLSInsecure: true})
	require.NoError(t, err)
	assert.True(t, tlsCfg.InsecureSkipVerify)

	_, err = buildTLSConfig(&RedisConfig{TLSEnabled: true, TLSCAFile: "/nonexistent/ca.pem"})
	assert.Error(t, err)
}

func TestClient_Close(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewClient(&RedisConfig{Mode: "standalone", Addr: mr.Addr()}, logging.NewNopLogger())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, client.Set(ctx, "foo", "bar", 0).Err())
	val, err := client.Get(ctx, "foo").Result()
	require.NoError(t, err)
	assert.Equal(t, "bar", val)

	assert.NoError(t, client.Close())
	assert.NoError(t, client.Close())

	assert.Equal(t, ErrClientClosed, client.Get(ctx, "foo").Err())
	assert.Equal(t, ErrClientClosed, client.Set(ctx, "foo", "baz", 0).Err())
	assert.Equal(t, ErrClientClosed, client.Del(ctx, "foo").Err())
	assert.Equal(t, ErrClientClosed, client.Ping(ctx))
}
