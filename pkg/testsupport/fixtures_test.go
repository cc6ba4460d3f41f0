package testsupport

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-record-cache/criteria"
	"github.com/goliatone/go-record-cache/entity"
	"github.com/goliatone/go-record-cache/store"
)

const tasksSchema = `CREATE TABLE tasks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT,
	team TEXT,
	counter REAL NOT NULL DEFAULT 0
)`

func TestFixturePath(t *testing.T) {
	assert.Equal(t, "testdata/tasks.json", FixturePath("tasks.json"))
}

func TestLoadFixtureJSON(t *testing.T) {
	var rows []map[string]any
	LoadFixtureJSON(t, FixturePath("tasks.json"), &rows)

	require.Len(t, rows, 3)
	assert.Equal(t, "deploy", rows[0]["name"])
}

func TestMemoryDSN_Unique(t *testing.T) {
	assert.NotEqual(t, MemoryDSN(), MemoryDSN())
}

func TestNewPool_Isolated(t *testing.T) {
	a := NewPool(t, tasksSchema)
	b := NewPool(t, tasksSchema)

	Seed(t, a.Primary(), "tasks", entity.Entity{"name": "only in a"})

	n, err := b.Primary().Count(context.Background(), "tasks", criteria.Predicate{})
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestSeedJSON(t *testing.T) {
	pool := NewPool(t, tasksSchema)

	ids := SeedJSON(t, pool.Primary(), "tasks", FixturePath("tasks.json"))
	assert.Equal(t, []any{int64(1), int64(2), int64(3)}, ids)

	rows, err := pool.Replica().FetchAll(context.Background(), store.Select{Table: "tasks", Order: "id"})
	require.NoError(t, err)
	assert.Equal(t, []any{"ops", "dev", "ops"}, rows.Column("team"))
	assert.Equal(t, 1.5, rows[2]["counter"])
}
