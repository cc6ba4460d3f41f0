package record

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/goliatone/go-record-cache/criteria"
	"github.com/goliatone/go-record-cache/entity"
	"github.com/goliatone/go-record-cache/entitycache"
	"github.com/goliatone/go-record-cache/store"
)

// DefaultFetchLimit caps FetchAll and FetchAllRaw when no limit is given.
const DefaultFetchLimit = 1000

// Model is the type level handle of one entity type: its descriptor, its
// connections, its caches and its refresh hook. Records are created through
// it.
type Model struct {
	desc         Descriptor
	router       store.Router
	entities     *entitycache.Manager
	queries      *entitycache.QueryCache
	hook         RefreshHook
	logger       *zap.Logger
	replicaFirst bool
	entityTTL    time.Duration
	fetchLimit   int

	// paused is shared by every copy of the model, see StopAutoRefresh.
	paused *atomic.Bool
}

// ModelOption configures a Model.
type ModelOption func(*Model)

// WithRefreshHook sets the hook called after every mutation.
func WithRefreshHook(hook RefreshHook) ModelOption {
	return func(m *Model) {
		m.hook = hook
	}
}

// WithEntityCache sets the unit of work cache manager.
func WithEntityCache(manager *entitycache.Manager) ModelOption {
	return func(m *Model) {
		if manager != nil {
			m.entities = manager
		}
	}
}

// WithQueryCache enables FetchAllCached caching.
func WithQueryCache(queries *entitycache.QueryCache) ModelOption {
	return func(m *Model) {
		m.queries = queries
	}
}

// WithLogger sets the model logger.
func WithLogger(logger *zap.Logger) ModelOption {
	return func(m *Model) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithReplicaFirst binds new records to the replica connection.
func WithReplicaFirst(on bool) ModelOption {
	return func(m *Model) {
		m.replicaFirst = on
	}
}

// WithEntityTTL sets the lifetime of entities cached by GetInstance. It
// defaults to the entity cache manager TTL.
func WithEntityTTL(ttl time.Duration) ModelOption {
	return func(m *Model) {
		m.entityTTL = ttl
	}
}

// WithFetchLimit overrides DefaultFetchLimit.
func WithFetchLimit(n int) ModelOption {
	return func(m *Model) {
		if n > 0 {
			m.fetchLimit = n
		}
	}
}

// NewModel validates desc and returns its Model. Without WithEntityCache the
// model gets a buffer only cache manager.
func NewModel(desc Descriptor, router store.Router, opts ...ModelOption) (*Model, error) {
	if err := desc.Validate(); err != nil {
		return nil, fmt.Errorf("record: invalid descriptor %q: %w", desc.Name, err)
	}
	if router == nil {
		return nil, fmt.Errorf("record: model %q needs a store router", desc.Name)
	}

	m := &Model{
		desc:       desc.withDefaults(),
		router:     router,
		logger:     zap.NewNop(),
		fetchLimit: DefaultFetchLimit,
		paused:     &atomic.Bool{},
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.entities == nil {
		m.entities = entitycache.NewManager(nil, entitycache.WithLogger(m.logger))
	}
	m.logger = m.logger.With(zap.String("table", m.desc.Table))
	return m, nil
}

// Descriptor returns the entity type configuration with defaults applied.
func (m *Model) Descriptor() Descriptor {
	return m.desc
}

// Table returns the table name.
func (m *Model) Table() string {
	return m.desc.Table
}

// EntityCache returns the cache manager used for keyed reads.
func (m *Model) EntityCache() *entitycache.Manager {
	return m.entities
}

// WithEntityCache returns a copy of the model bound to another unit of work.
// The copy shares the batch mode state of m.
func (m *Model) WithEntityCache(manager *entitycache.Manager) *Model {
	out := *m
	out.entities = manager
	return &out
}

// New returns an empty, unpersisted record.
func (m *Model) New() *Record {
	r := &Record{model: m, entity: entity.Entity{}}
	if m.replicaFirst {
		r.client = m.router.Replica()
	} else {
		r.client = m.router.Primary()
	}
	return r
}

// Construct loads the row identified by id straight from the store, never
// from the cache. A zero id yields an empty record.
func (m *Model) Construct(ctx context.Context, id any) (*Record, error) {
	r := m.New()
	if entity.IsZeroKey(id) {
		return r, nil
	}

	e, err := m.fetchByID(ctx, r.client, id)
	if err != nil {
		return nil, newError("construct", m.desc.Table, id, nil, err)
	}
	if e == nil {
		return nil, newError("construct", m.desc.Table, id, ErrEntityNotFound, nil)
	}
	r.entity = e
	return r, nil
}

// GetInstance returns the record identified by id, reading through the
// entity cache unless forceRefresh is set. Rows fetched from the store are
// cached in both tiers.
func (m *Model) GetInstance(ctx context.Context, id any, forceRefresh bool) (*Record, error) {
	r := m.New()
	e, err := m.loadEntity(ctx, r.client, id, !forceRefresh)
	if err != nil {
		return nil, err
	}
	r.entity = e
	return r, nil
}

// GetByID is GetInstance when useCache is set and Construct otherwise.
func (m *Model) GetByID(ctx context.Context, id any, useCache bool) (*Record, error) {
	if useCache {
		return m.GetInstance(ctx, id, false)
	}
	r, err := m.Construct(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.entity.Empty() {
		return nil, newError("get", m.desc.Table, id, ErrEntityNotFound, nil)
	}
	return r, nil
}

// GetEntityByID returns a copy of the entity identified by id. refresh
// bypasses the cache.
func (m *Model) GetEntityByID(ctx context.Context, id any, refresh bool) (entity.Entity, error) {
	client := m.router.Primary()
	if m.replicaFirst {
		client = m.router.Replica()
	}
	return m.loadEntity(ctx, client, id, !refresh)
}

// Invalidate drops the cached entities for ids. Use it after raw statements
// run through Exec.
func (m *Model) Invalidate(ctx context.Context, ids ...any) {
	for _, id := range ids {
		m.entities.Invalidate(ctx, m.desc.Table, id)
	}
}

// StopAutoRefresh suspends the refresh hook for every record of this model
// until RestartAutoRefresh. Keyed cache invalidation keeps running. Only one
// batch per model may be open at a time.
func (m *Model) StopAutoRefresh() {
	m.paused.Store(true)
}

// RestartAutoRefresh resumes the refresh hook.
func (m *Model) RestartAutoRefresh() {
	m.paused.Store(false)
}

// AutoRefresh reports whether the refresh hook runs after mutations.
func (m *Model) AutoRefresh() bool {
	return !m.paused.Load()
}

func (m *Model) loadEntity(ctx context.Context, client store.Client, id any, useCache bool) (entity.Entity, error) {
	if entity.IsZeroKey(id) {
		return nil, newError("get", m.desc.Table, id, ErrMissingPrimaryKey, nil)
	}
	if useCache {
		if e, ok := m.entities.Get(ctx, m.desc.Table, id); ok {
			return e, nil
		}
	}

	e, err := m.fetchByID(ctx, client, id)
	if err != nil {
		return nil, newError("get", m.desc.Table, id, nil, err)
	}
	if e == nil {
		return nil, newError("get", m.desc.Table, id, ErrEntityNotFound, nil)
	}
	m.entities.Put(ctx, m.desc.Table, id, e, m.entityTTL)
	return e.Clone(), nil
}

func (m *Model) fetchByID(ctx context.Context, client store.Client, id any) (entity.Entity, error) {
	where, err := client.Builder().Build(m.desc.Table, criteria.Eq(m.desc.PrimaryKey, id))
	if err != nil {
		return nil, err
	}
	return client.FetchOne(ctx, store.Select{Table: m.desc.Table, Where: where})
}

// refresh runs the hook unless batch mode is on. Hook failures are logged.
func (m *Model) refresh(ctx context.Context, id any) {
	if m.hook == nil || m.paused.Load() {
		return
	}
	if err := m.hook.Refresh(ctx, id); err != nil {
		m.logger.Warn("refresh hook failed", zap.Any("id", id), zap.Error(err))
	}
}
