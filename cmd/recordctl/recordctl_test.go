package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-record-cache/criteria"
	"github.com/goliatone/go-record-cache/store"
)

const tasksSchema = `CREATE TABLE tasks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT,
	team TEXT,
	counter INTEGER NOT NULL DEFAULT 0,
	update_time TEXT
)`

// newWorkspace creates a sqlite file database with the tasks table and a
// config file pointing at it.
func newWorkspace(t *testing.T) (configPath, dsn string) {
	t.Helper()
	dir := t.TempDir()
	dsn = "file:" + filepath.Join(dir, "records.db")

	pool, err := store.Open(store.Config{Driver: store.DriverSQLite, PrimaryDSN: dsn}, nil)
	require.NoError(t, err)
	_, err = pool.Primary().Exec(context.Background(), tasksSchema)
	require.NoError(t, err)
	require.NoError(t, pool.Close())

	configPath = filepath.Join(dir, "recordctl.yaml")
	config := fmt.Sprintf(`cache:
  entity_ttl: 10m
store:
  primary_dsn: %q
tables:
  tasks:
    filter_fields: [name]
    slim_fields: [id, name]
`, dsn)
	require.NoError(t, os.WriteFile(configPath, []byte(config), 0o644))
	return configPath, dsn
}

func run(t *testing.T, configPath string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--config", configPath}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func mustRun(t *testing.T, configPath string, args ...string) string {
	t.Helper()
	out, err := run(t, configPath, args...)
	require.NoError(t, err, "recordctl %s", strings.Join(args, " "))
	return out
}

func decodeRow(t *testing.T, out string) map[string]any {
	t.Helper()
	var row map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &row))
	return row
}

func TestSetGetDelete(t *testing.T) {
	cfg, _ := newWorkspace(t)

	row := decodeRow(t, mustRun(t, cfg, "set", "tasks", `{"name":"de ploy","team":"ops"}`))
	assert.Equal(t, float64(1), row["id"])
	assert.Equal(t, "deploy", row["name"])

	row = decodeRow(t, mustRun(t, cfg, "set", "tasks", `{"id":1,"team":"dev","update_time":"ignored"}`))
	assert.Equal(t, "dev", row["team"])
	assert.Nil(t, row["update_time"])

	row = decodeRow(t, mustRun(t, cfg, "get", "tasks", "1"))
	assert.Equal(t, "dev", row["team"])

	slim := decodeRow(t, mustRun(t, cfg, "get", "tasks", "1", "--slim"))
	assert.Equal(t, map[string]any{"id": float64(1), "name": "deploy"}, slim)

	assert.Equal(t, "deleted tasks 1\n", mustRun(t, cfg, "delete", "tasks", "1"))

	_, err := run(t, cfg, "get", "tasks", "1", "--fresh")
	assert.ErrorContains(t, err, "entity not found")
}

func TestListAndCount(t *testing.T) {
	cfg, _ := newWorkspace(t)
	for _, payload := range []string{
		`{"name":"a","team":"ops"}`,
		`{"name":"b","team":"dev"}`,
		`{"name":"c","team":"ops"}`,
	} {
		mustRun(t, cfg, "set", "tasks", payload)
	}

	assert.Equal(t, "3\n", mustRun(t, cfg, "count", "tasks"))
	assert.Equal(t, "2\n", mustRun(t, cfg, "count", "tasks", "--where", "team=ops"))

	var rows []map[string]any
	out := mustRun(t, cfg, "list", "tasks", "-w", "team=ops", "--order", "id DESC")
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, "c", rows[0]["name"])

	out = mustRun(t, cfg, "list", "tasks", "--limit", "1", "--offset", "1", "--order", "id", "--cached")
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "b", rows[0]["name"])

	sql := mustRun(t, cfg, "list", "tasks", "-w", "team=ops", "--explain")
	assert.Contains(t, sql, `"team" = 'ops'`)
	assert.Contains(t, sql, "LIMIT 1000")

	_, err := run(t, cfg, "list", "tasks", "--where", "team")
	assert.ErrorContains(t, err, "want column=value")
}

func TestIncr(t *testing.T) {
	cfg, _ := newWorkspace(t)
	mustRun(t, cfg, "set", "tasks", `{"name":"a","counter":10}`)

	row := decodeRow(t, mustRun(t, cfg, "incr", "tasks", "1", "counter", "5"))
	assert.Equal(t, float64(15), row["counter"])

	row = decodeRow(t, mustRun(t, cfg, "incr", "tasks", "1", "counter"))
	assert.Equal(t, float64(16), row["counter"])

	_, err := run(t, cfg, "incr", "tasks", "1", "counter", "lots")
	assert.ErrorContains(t, err, "invalid step")
}

func TestEnvironmentOverride(t *testing.T) {
	_, dsn := newWorkspace(t)
	empty := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("{}\n"), 0o644))
	t.Setenv("RECORDCTL_STORE_PRIMARY_DSN", dsn)

	mustRun(t, empty, "set", "tasks", `{"name":"from env"}`)
	assert.Equal(t, "1\n", mustRun(t, empty, "count", "tasks"))
}

func TestInvalidConfig(t *testing.T) {
	cfg, _ := newWorkspace(t)

	_, err := run(t, cfg, "--cache", "memcached", "count", "tasks")
	assert.ErrorContains(t, err, "open record layer")

	_, err = run(t, filepath.Join(t.TempDir(), "missing.yaml"), "count", "tasks")
	assert.ErrorContains(t, err, "read config")
}

func TestContainerConfig(t *testing.T) {
	v := newViper()
	v.Set(keyEntityTTL, "90s")
	v.Set(keyReplicaFirst, true)
	v.Set(keyCacheBackend, "redis")
	v.Set(keyRedisAddr, "cache:6379")

	cfg := containerConfig(v)
	assert.Equal(t, 90*time.Second, cfg.Cache.EntityTTL)
	assert.Equal(t, time.Hour, cfg.Cache.QueryTTL)
	assert.True(t, cfg.Store.ReplicaFirst)
	assert.Equal(t, "redis", cfg.Cache.Backend)
	assert.Equal(t, "cache:6379", cfg.Cache.Redis.Addr)
	assert.Equal(t, store.DriverSQLite, cfg.Store.Driver)
}

func TestDescriptorFor(t *testing.T) {
	v := newViper()
	v.Set("tables.tokens", map[string]any{
		"primary_key":      "token",
		"key_generator":    "uuid",
		"protected_fields": []string{},
	})

	desc := descriptorFor(v, "tokens")
	assert.Equal(t, "token", desc.PrimaryKey)
	assert.NotNil(t, desc.KeyGenerator)
	assert.NotNil(t, desc.ProtectedFields)
	assert.Empty(t, desc.ProtectedFields)

	plain := descriptorFor(v, "tasks")
	assert.Equal(t, "tasks", plain.Table)
	assert.Empty(t, plain.PrimaryKey)
}

func TestParseHelpers(t *testing.T) {
	tests := []struct {
		in   string
		want any
	}{
		{"42", int64(42)},
		{"-1", int64(-1)},
		{"1.5", 1.5},
		{"null", nil},
		{"TRUE", true},
		{"ops", "ops"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseValue(tt.in), tt.in)
	}

	c, err := parseWhere(nil)
	require.NoError(t, err)
	assert.True(t, c.IsNone())

	c, err = parseWhere([]string{"team=ops", " counter = 3"})
	require.NoError(t, err)
	assert.Equal(t, criteria.Where(criteria.Map{"team": "ops", "counter": int64(3)}).CacheKeyPart(), c.CacheKeyPart())

	e, err := parseEntity(`{"id":3,"score":1.5,"name":"x"}`)
	require.NoError(t, err)
	assert.Equal(t, int64(3), e["id"])
	assert.Equal(t, 1.5, e["score"])

	_, err = parseEntity(`[1]`)
	assert.Error(t, err)
}
