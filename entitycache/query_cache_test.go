package entitycache

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-record-cache/cache"
	"github.com/goliatone/go-record-cache/entity"
)

func TestQueryCache_Key(t *testing.T) {
	q := NewQueryCache(newCountingService())

	a := q.Key("tasks", map[string]any{"team": "ops"}, 10)
	b := q.Key("tasks", map[string]any{"team": "ops"}, 10)
	c := q.Key("tasks", map[string]any{"team": "dev"}, 10)
	d := q.Key("users", map[string]any{"team": "ops"}, 10)

	assert.True(t, strings.HasPrefix(a, "fetchAll_tasks_"))
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, strings.TrimPrefix(a, "fetchAll_tasks_"), strings.TrimPrefix(d, "fetchAll_users_"))
}

func TestQueryCache_Fetch(t *testing.T) {
	ctx := context.Background()
	shared := newCountingService()
	q := NewQueryCache(shared)
	key := q.Key("tasks", "all")

	calls := 0
	fetch := func(context.Context) (entity.List, error) {
		calls++
		return entity.List{{"id": int64(2)}, {"id": int64(1)}}, nil
	}

	first, err := q.Fetch(ctx, key, "tasks", fetch)
	require.NoError(t, err)
	second, err := q.Fetch(ctx, key, "tasks", fetch)
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Equal(t, first, second)
	assert.Equal(t, []any{int64(2), int64(1)}, second.Column("id"))
	assert.Equal(t, DefaultQueryTTL, shared.ttls[key])
}

func TestQueryCache_MemoryBackendHonorsQueryTTL(t *testing.T) {
	ctx := context.Background()
	shared, err := cache.NewCacheService(cache.DefaultConfig())
	require.NoError(t, err)
	q := NewQueryCache(shared, WithQueryTTL(50*time.Millisecond))
	key := q.Key("tasks", "all")

	calls := 0
	fetch := func(context.Context) (entity.List, error) {
		calls++
		return entity.List{{"id": int64(calls)}}, nil
	}

	_, err = q.Fetch(ctx, key, "tasks", fetch)
	require.NoError(t, err)
	cached, err := q.Fetch(ctx, key, "tasks", fetch)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, []any{int64(1)}, cached.Column("id"))

	time.Sleep(120 * time.Millisecond)

	fresh, err := q.Fetch(ctx, key, "tasks", fetch)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, []any{int64(2)}, fresh.Column("id"))
}

func TestQueryCache_FetchError(t *testing.T) {
	q := NewQueryCache(newCountingService())
	boom := errors.New("boom")

	_, err := q.Fetch(context.Background(), "k", "tasks", func(context.Context) (entity.List, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestQueryCache_Purge(t *testing.T) {
	ctx := context.Background()
	shared := newCountingService()
	q := NewQueryCache(shared)
	rows := func(context.Context) (entity.List, error) { return entity.List{{"id": int64(1)}}, nil }

	for _, key := range []string{q.Key("tasks", 1), q.Key("tasks", 2), q.Key("users", 1)} {
		table := strings.Split(key, "_")[1]
		_, err := q.Fetch(ctx, key, table, rows)
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"tasks", "users"}, q.Tables())

	n, err := q.Purge(ctx, "tasks")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, shared.data, 1)
	assert.Equal(t, []string{"users"}, q.Tables())

	require.NoError(t, q.PurgeAll(ctx))
	assert.Empty(t, shared.data)
	assert.Empty(t, q.Tables())
}

func TestQueryCache_PurgeAllByPrefix(t *testing.T) {
	ctx := context.Background()
	shared, err := cache.NewCacheService(cache.DefaultConfig())
	require.NoError(t, err)

	require.NoError(t, shared.Set(ctx, "fetchAll_tasks_foreign", []byte{0x90}, 0))
	require.NoError(t, shared.Set(ctx, "record_tasks_1", []byte{0x80}, 0))

	require.NoError(t, NewQueryCache(shared).PurgeAll(ctx))

	_, ok, _ := shared.Get(ctx, "fetchAll_tasks_foreign")
	assert.False(t, ok)
	_, ok, _ = shared.Get(ctx, "record_tasks_1")
	assert.True(t, ok)
}
