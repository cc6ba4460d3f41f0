package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-record-cache/entity"
)

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "missing driver", cfg: Config{PrimaryDSN: "x"}},
		{name: "unknown driver", cfg: Config{Driver: "mysql", PrimaryDSN: "x"}},
		{name: "missing dsn", cfg: Config{Driver: DriverSQLite}},
		{name: "negative pool", cfg: Config{Driver: DriverSQLite, PrimaryDSN: "x", MaxOpenConns: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.cfg.Validate())
		})
	}
}

func TestOpen_SharedReplica(t *testing.T) {
	ctx := context.Background()
	pool, err := Open(Config{Driver: DriverSQLite, PrimaryDSN: memoryDSN(), MaxOpenConns: 1}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close() })

	assert.True(t, pool.Primary().Writable())
	assert.Equal(t, "primary", pool.Primary().Name())
	assert.False(t, pool.Replica().Writable())
	assert.Equal(t, "replica", pool.Replica().Name())

	_, err = pool.Primary().Exec(ctx, tasksSchema)
	require.NoError(t, err)
	_, err = pool.Primary().Insert(ctx, "tasks", entity.Entity{"name": "x"}, "id")
	require.NoError(t, err)

	rows, err := pool.Replica().FetchAll(ctx, Select{Table: "tasks"})
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	assert.NoError(t, pool.Replica().Reconnect(ctx))
}

func TestOpen_SeparateReplica(t *testing.T) {
	pool, err := Open(Config{
		Driver:     DriverSQLite,
		PrimaryDSN: memoryDSN(),
		ReplicaDSN: memoryDSN(),
	}, nil)
	require.NoError(t, err)

	assert.NotSame(t, pool.primary.conn, pool.replica.conn)
	assert.NoError(t, pool.Close())
}

func TestOpen_InvalidConfig(t *testing.T) {
	_, err := Open(Config{}, nil)
	assert.Error(t, err)
}
