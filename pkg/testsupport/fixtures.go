// Package testsupport provides sqlite backed stores and fixture loading for
// tests across the module.
package testsupport

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/goliatone/go-record-cache/entity"
	"github.com/goliatone/go-record-cache/store"
)

// LoadFixture reads a fixture file. The path is relative to the test package
// directory.
func LoadFixture(t testing.TB, path string) []byte {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to load fixture from %s: %v", path, err)
	}
	return data
}

// LoadFixtureJSON reads a JSON fixture file into dest.
func LoadFixtureJSON(t testing.TB, path string, dest any) {
	t.Helper()

	if err := json.Unmarshal(LoadFixture(t, path), dest); err != nil {
		t.Fatalf("failed to unmarshal JSON fixture from %s: %v", path, err)
	}
}

// FixturePath returns filename inside the package testdata directory.
func FixturePath(filename string) string {
	return filepath.Join("testdata", filename)
}

// MemoryDSN returns a sqlite DSN for a private in-memory database.
func MemoryDSN() string {
	return "file:" + uuid.NewString() + "?mode=memory&cache=shared"
}

// NewPool opens a private in-memory sqlite database, runs schema against it
// and closes it when the test ends. The pool uses a single connection so the
// database lives as long as the pool.
func NewPool(t testing.TB, schema ...string) *store.Pool {
	t.Helper()

	pool, err := store.Open(store.Config{
		Driver:       store.DriverSQLite,
		PrimaryDSN:   MemoryDSN(),
		MaxOpenConns: 1,
	}, nil)
	if err != nil {
		t.Fatalf("failed to open sqlite pool: %v", err)
	}
	t.Cleanup(func() { _ = pool.Close() })

	for _, stmt := range schema {
		if _, err := pool.Primary().Exec(context.Background(), stmt); err != nil {
			t.Fatalf("failed to apply schema %q: %v", stmt, err)
		}
	}
	return pool
}

// Seed inserts rows into table through client and returns their keys.
func Seed(t testing.TB, client store.Client, table string, rows ...entity.Entity) []any {
	t.Helper()

	ids := make([]any, 0, len(rows))
	for _, row := range rows {
		id, err := client.Insert(context.Background(), table, row, "id")
		if err != nil {
			t.Fatalf("failed to seed %s: %v", table, err)
		}
		ids = append(ids, id)
	}
	return ids
}

// SeedJSON inserts the rows of a JSON fixture holding an array of objects.
// JSON numbers are stored as float64 unless they are integral.
func SeedJSON(t testing.TB, client store.Client, table, path string) []any {
	t.Helper()

	var rows []map[string]any
	LoadFixtureJSON(t, path, &rows)

	seeded := make([]entity.Entity, len(rows))
	for i, row := range rows {
		e := make(entity.Entity, len(row))
		for k, v := range row {
			if f, ok := v.(float64); ok && f == float64(int64(f)) {
				v = int64(f)
			}
			e[k] = v
		}
		seeded[i] = e
	}
	return Seed(t, client, table, seeded...)
}
