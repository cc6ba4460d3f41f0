package entitycache

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/goliatone/go-record-cache/cache"
	"github.com/goliatone/go-record-cache/entity"
)

// DefaultEntityTTL is the lifetime of a keyed entity in the shared cache.
const DefaultEntityTTL = 4 * time.Hour

// DefaultKeyPrefix starts every keyed entity cache key.
const DefaultKeyPrefix = "record"

// Manager reads keyed entities through the buffer and the shared cache and
// removes them from both on invalidation. One Manager serves one unit of
// work; create a new one, or call Reset, at each unit of work boundary.
type Manager struct {
	shared cache.CacheService
	codec  cache.Codec
	buffer *Buffer
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger used for absorbed cache failures.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithBufferDisabled skips the unit of work tier entirely.
func WithBufferDisabled() Option {
	return func(m *Manager) {
		m.buffer.SetEnabled(false)
	}
}

// WithPrefix overrides DefaultKeyPrefix.
func WithPrefix(prefix string) Option {
	return func(m *Manager) {
		if prefix != "" {
			m.prefix = prefix
		}
	}
}

// WithTTL overrides DefaultEntityTTL.
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithCodec overrides the msgpack codec.
func WithCodec(codec cache.Codec) Option {
	return func(m *Manager) {
		if codec != nil {
			m.codec = codec
		}
	}
}

// NewManager returns a Manager backed by shared. A nil shared cache leaves
// the buffer as the only tier.
func NewManager(shared cache.CacheService, opts ...Option) *Manager {
	m := &Manager{
		shared: shared,
		codec:  cache.MsgpackCodec{},
		buffer: NewBuffer(),
		prefix: DefaultKeyPrefix,
		ttl:    DefaultEntityTTL,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Key returns "<prefix>_<table>_<pk>".
func (m *Manager) Key(table string, pk any) string {
	return m.prefix + "_" + table + "_" + entity.KeyString(pk)
}

// TTL returns the default entry lifetime.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Buffer exposes the unit of work tier.
func (m *Manager) Buffer() *Buffer {
	return m.buffer
}

// Get returns the cached entity for (table, pk). It always misses while the
// process is in force refresh mode. A shared cache hit is copied into the
// buffer.
func (m *Manager) Get(ctx context.Context, table string, pk any) (entity.Entity, bool) {
	if cache.ForceRefresh() {
		return nil, false
	}

	key := m.Key(table, pk)
	if e, ok := m.buffer.Get(key); ok {
		return e, true
	}
	if m.shared == nil {
		return nil, false
	}

	data, ok, err := m.shared.Get(ctx, key)
	if err != nil {
		m.warn("entity cache read failed", key, table, err)
		return nil, false
	}
	if !ok {
		return nil, false
	}

	var row map[string]any
	if err := m.codec.Unmarshal(data, &row); err != nil {
		m.warn("entity cache entry undecodable", key, table, err)
		return nil, false
	}

	e := entity.Entity(row)
	m.buffer.Put(key, e)
	return e, true
}

// Put stores e in both tiers. A non positive ttl uses the manager default.
func (m *Manager) Put(ctx context.Context, table string, pk any, e entity.Entity, ttl time.Duration) {
	key := m.Key(table, pk)
	m.buffer.Put(key, e)
	if m.shared == nil {
		return
	}
	if ttl <= 0 {
		ttl = m.ttl
	}

	data, err := m.codec.Marshal(map[string]any(e))
	if err != nil {
		m.warn("entity cache encode failed", key, table, err)
		return
	}
	if err := m.shared.Set(ctx, key, data, ttl); err != nil {
		m.warn("entity cache write failed", key, table, err)
	}
}

// Invalidate removes (table, pk) from both tiers. Shared cache failures are
// logged, never returned.
func (m *Manager) Invalidate(ctx context.Context, table string, pk any) {
	key := m.Key(table, pk)
	m.buffer.Delete(key)
	if m.shared == nil {
		return
	}
	if err := m.shared.Delete(ctx, key); err != nil {
		m.warn("entity cache invalidation failed", key, table, err)
	}
}

// Reset clears the buffer, ending the unit of work.
func (m *Manager) Reset() {
	m.buffer.Clear()
}

func (m *Manager) warn(msg, key, table string, err error) {
	m.logger.Warn(msg,
		zap.String("key", key),
		zap.String("table", table),
		zap.Error(err),
	)
}
