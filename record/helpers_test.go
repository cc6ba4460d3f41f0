package record

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/goliatone/go-record-cache/cache"
	"github.com/goliatone/go-record-cache/criteria"
	"github.com/goliatone/go-record-cache/entity"
	"github.com/goliatone/go-record-cache/entitycache"
	"github.com/goliatone/go-record-cache/pkg/testsupport"
	"github.com/goliatone/go-record-cache/store"
)

var testSchema = []string{
	`CREATE TABLE tasks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT,
		team TEXT,
		status TEXT,
		counter INTEGER NOT NULL DEFAULT 0,
		update_time TEXT
	)`,
	`CREATE TABLE items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT,
		value INTEGER
	)`,
	`CREATE TABLE tokens (
		id TEXT PRIMARY KEY,
		label TEXT
	)`,
}

var taskDescriptor = Descriptor{
	Name:          "Task",
	FilterFields:  []string{"name"},
	SlimFields:    []string{"id", "name"},
	SimpleExclude: []string{"update_time"},
}

type hookRecorder struct {
	ids []any
	err error
}

func (h *hookRecorder) Refresh(_ context.Context, id any) error {
	h.ids = append(h.ids, id)
	return h.err
}

// spyClient counts the write calls reaching the store.
type spyClient struct {
	store.Client
	writes int
}

func (s *spyClient) Insert(ctx context.Context, table string, fields entity.Entity, pk string) (any, error) {
	s.writes++
	return s.Client.Insert(ctx, table, fields, pk)
}

func (s *spyClient) Update(ctx context.Context, table string, fields entity.Entity, where criteria.Predicate) (int64, error) {
	s.writes++
	return s.Client.Update(ctx, table, fields, where)
}

func (s *spyClient) Increment(ctx context.Context, table, column string, step any, where criteria.Predicate) (int64, error) {
	s.writes++
	return s.Client.Increment(ctx, table, column, step, where)
}

func (s *spyClient) Delete(ctx context.Context, table string, where criteria.Predicate) (int64, error) {
	s.writes++
	return s.Client.Delete(ctx, table, where)
}

type spyRouter struct {
	primary *spyClient
	replica *spyClient
}

func (r spyRouter) Primary() store.Client { return r.primary }
func (r spyRouter) Replica() store.Client { return r.replica }

type env struct {
	t      *testing.T
	pool   *store.Pool
	router spyRouter
	shared cache.CacheService
	uow    *entitycache.Manager
	hook   *hookRecorder
	logs   *observer.ObservedLogs
	logger *zap.Logger
}

func newEnv(t *testing.T) *env {
	t.Helper()

	pool := testsupport.NewPool(t, testSchema...)
	shared, err := cache.NewCacheService(cache.DefaultConfig())
	require.NoError(t, err)

	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)

	return &env{
		t:    t,
		pool: pool,
		router: spyRouter{
			primary: &spyClient{Client: pool.Primary()},
			replica: &spyClient{Client: pool.Replica()},
		},
		shared: shared,
		uow:    entitycache.NewManager(shared, entitycache.WithLogger(logger)),
		hook:   &hookRecorder{},
		logs:   logs,
		logger: logger,
	}
}

func (e *env) model(desc Descriptor, opts ...ModelOption) *Model {
	e.t.Helper()
	base := []ModelOption{
		WithEntityCache(e.uow),
		WithRefreshHook(e.hook),
		WithLogger(e.logger),
	}
	m, err := NewModel(desc, e.router, append(base, opts...)...)
	require.NoError(e.t, err)
	return m
}

func (e *env) tasks(opts ...ModelOption) *Model {
	return e.model(taskDescriptor, opts...)
}

func (e *env) seed(table string, rows ...entity.Entity) []any {
	e.t.Helper()
	return testsupport.Seed(e.t, e.pool.Primary(), table, rows...)
}

func (e *env) row(table string, id any) entity.Entity {
	e.t.Helper()
	where, err := e.pool.Primary().Builder().Build(table, criteria.Eq("id", id))
	require.NoError(e.t, err)
	row, err := e.pool.Primary().FetchOne(context.Background(), store.Select{Table: table, Where: where})
	require.NoError(e.t, err)
	return row
}

// cached reports whether the shared tier holds the keyed entry.
func (e *env) cached(table string, id any) bool {
	e.t.Helper()
	_, ok, err := e.shared.Get(context.Background(), e.uow.Key(table, id))
	require.NoError(e.t, err)
	return ok
}
