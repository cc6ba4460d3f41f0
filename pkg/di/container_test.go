package di

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/goliatone/go-record-cache/cache"
	"github.com/goliatone/go-record-cache/criteria"
	"github.com/goliatone/go-record-cache/entity"
	"github.com/goliatone/go-record-cache/pkg/testsupport"
	"github.com/goliatone/go-record-cache/record"
)

const usersSchema = `CREATE TABLE users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT,
	email TEXT,
	update_time TEXT
)`

var userDescriptor = record.Descriptor{Name: "User", SlimFields: []string{"id", "name"}}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Store.PrimaryDSN = testsupport.MemoryDSN()
	return cfg
}

func newTestContainer(t *testing.T, cfg Config, opts ...Option) *Container {
	t.Helper()
	c, err := NewContainer(cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	_, err = c.Pool().Primary().Exec(context.Background(), usersSchema)
	require.NoError(t, err)
	return c
}

func TestNewContainer(t *testing.T) {
	cfg := testConfig()
	cfg.Cache.QueryTTL = 5 * time.Minute

	c := newTestContainer(t, cfg)

	assert.NotNil(t, c.CacheService())
	assert.NotNil(t, c.KeySerializer())
	assert.NotNil(t, c.Pool())
	assert.NotNil(t, c.Logger())
	assert.Equal(t, 5*time.Minute, c.QueryCache().TTL())
	assert.Equal(t, cfg, c.Config())
}

func TestNewContainerWithDefaults(t *testing.T) {
	c, err := NewContainerWithDefaults()
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, DefaultConfig(), c.Config())
	assert.True(t, c.Pool().Primary().Writable())
	assert.False(t, c.Pool().Replica().Writable())
}

func TestNewContainer_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown cache backend", func(c *Config) { c.Cache.Backend = "memcached" }},
		{"short entity ttl", func(c *Config) { c.Cache.EntityTTL = time.Millisecond }},
		{"zero capacity", func(c *Config) { c.Cache.Capacity = 0 }},
		{"unknown driver", func(c *Config) { c.Store.Driver = "oracle" }},
		{"missing dsn", func(c *Config) { c.Store.PrimaryDSN = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)

			c, err := NewContainer(cfg)
			assert.Error(t, err)
			assert.Nil(t, c)
		})
	}
}

func TestContainer_NewUnitOfWork(t *testing.T) {
	cfg := testConfig()
	cfg.Cache.KeyPrefix = "app"
	cfg.Cache.EntityTTL = time.Minute
	c := newTestContainer(t, cfg)

	uow := c.NewUnitOfWork()
	assert.Equal(t, "app_users_1", uow.Key("users", 1))
	assert.Equal(t, time.Minute, uow.TTL())
	assert.True(t, uow.Buffer().Enabled())
	assert.NotSame(t, uow, c.NewUnitOfWork())

	cfg = testConfig()
	cfg.Cache.BufferEnabled = false
	c = newTestContainer(t, cfg)
	assert.False(t, c.NewUnitOfWork().Buffer().Enabled())
}

func TestContainer_NewModel(t *testing.T) {
	ctx := context.Background()
	c := newTestContainer(t, testConfig())

	m, err := c.NewModel(userDescriptor, nil)
	require.NoError(t, err)
	assert.Equal(t, "users", m.Table())

	id, err := m.New().Add(ctx, entity.Entity{"name": "ada", "email": "ada@example.com"})
	require.NoError(t, err)

	// a second unit of work reads the entity from the shared cache
	first, err := m.GetInstance(ctx, id, false)
	require.NoError(t, err)
	_, err = c.Pool().Primary().Exec(ctx, "UPDATE users SET name = 'changed'")
	require.NoError(t, err)

	other, err := c.NewModel(userDescriptor, c.NewUnitOfWork())
	require.NoError(t, err)
	second, err := other.GetInstance(ctx, id, false)
	require.NoError(t, err)
	assert.Equal(t, first.Entity(), second.Entity())

	idx, err := other.New().FetchAllCached(ctx, criteria.None(), record.FetchOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, idx.Len())
	assert.Equal(t, []string{"users"}, c.QueryCache().Tables())
}

func TestContainer_NewModelOverrides(t *testing.T) {
	cfg := testConfig()
	cfg.Store.ReplicaFirst = true
	c := newTestContainer(t, cfg)

	m, err := c.NewModel(userDescriptor, nil)
	require.NoError(t, err)
	assert.False(t, m.New().Writable())

	m, err = c.NewModel(userDescriptor, nil, record.WithReplicaFirst(false))
	require.NoError(t, err)
	assert.True(t, m.New().Writable())

	_, err = c.NewModel(record.Descriptor{}, nil)
	assert.Error(t, err)
}

func TestContainer_Logger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	c := newTestContainer(t, testConfig(), WithLogger(zap.New(core)))

	assert.Equal(t, 1, logs.FilterMessage("record container ready").Len())

	m, err := c.NewModel(userDescriptor, nil)
	require.NoError(t, err)
	_, err = m.New().UseReplica().Add(context.Background(), entity.Entity{"name": "x"})
	assert.ErrorIs(t, err, record.ErrReadOnly)
	assert.Equal(t, 1, logs.FilterMessage("write attempted on read only connection").Len())
}

func TestContainer_RedisBackend(t *testing.T) {
	ctx := context.Background()
	s := miniredis.RunT(t)

	cfg := testConfig()
	cfg.Cache.Backend = cache.BackendRedis
	cfg.Cache.Redis.Addr = s.Addr()
	c := newTestContainer(t, cfg)

	m, err := c.NewModel(userDescriptor, nil)
	require.NoError(t, err)

	id, err := m.New().Add(ctx, entity.Entity{"name": "grace"})
	require.NoError(t, err)
	_, err = m.GetInstance(ctx, id, false)
	require.NoError(t, err)

	key := c.NewUnitOfWork().Key("users", id)
	assert.True(t, s.Exists(key))
	assert.Equal(t, cfg.Cache.EntityTTL, s.TTL(key))

	r, err := m.GetInstance(ctx, id, false)
	require.NoError(t, err)
	require.NoError(t, r.Update(ctx, entity.Entity{"name": "hopper"}))
	assert.False(t, s.Exists(key))
}

func TestContainer_Close(t *testing.T) {
	c, err := NewContainer(testConfig())
	require.NoError(t, err)
	require.NoError(t, c.Close())

	_, err = c.Pool().Primary().Query(context.Background(), "SELECT 1")
	assert.Error(t, err)
}
