package entitycache

import (
	"context"
	"sort"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/zap"

	"github.com/goliatone/go-record-cache/cache"
	"github.com/goliatone/go-record-cache/entity"
)

// DefaultQueryTTL is the lifetime of a cached bulk query result.
const DefaultQueryTTL = time.Hour

// QueryKeyPrefix starts every bulk query cache key.
const QueryKeyPrefix = "fetchAll"

// QueryCache caches ordered bulk query results by a hash of their inputs.
// Writes never invalidate it; entries only expire with their TTL or through
// Purge. It is safe for concurrent use.
type QueryCache struct {
	shared     cache.CacheService
	codec      cache.Codec
	serializer cache.KeySerializer
	ttl        time.Duration
	logger     *zap.Logger

	// issued maps every key handed out by Fetch to its table.
	issued *xsync.MapOf[string, string]
}

// QueryOption configures a QueryCache.
type QueryOption func(*QueryCache)

// WithQueryTTL overrides DefaultQueryTTL.
func WithQueryTTL(ttl time.Duration) QueryOption {
	return func(q *QueryCache) {
		if ttl > 0 {
			q.ttl = ttl
		}
	}
}

// WithQueryLogger sets the logger used for absorbed cache failures.
func WithQueryLogger(logger *zap.Logger) QueryOption {
	return func(q *QueryCache) {
		if logger != nil {
			q.logger = logger
		}
	}
}

// WithKeySerializer overrides the default reflection serializer.
func WithKeySerializer(s cache.KeySerializer) QueryOption {
	return func(q *QueryCache) {
		if s != nil {
			q.serializer = s
		}
	}
}

// NewQueryCache returns a QueryCache storing results in shared.
func NewQueryCache(shared cache.CacheService, opts ...QueryOption) *QueryCache {
	q := &QueryCache{
		shared:     shared,
		codec:      cache.MsgpackCodec{},
		serializer: cache.NewDefaultKeySerializer(),
		ttl:        DefaultQueryTTL,
		logger:     zap.NewNop(),
		issued:     xsync.NewMapOf[string, string](),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Key returns "fetchAll_<table>_<hash>" where hash covers table and args.
func (q *QueryCache) Key(table string, args ...any) string {
	sum := xxhash.Sum64String(q.serializer.SerializeKey(table, args...))
	return QueryKeyPrefix + "_" + table + "_" + strconv.FormatUint(sum, 16)
}

// TTL returns the entry lifetime.
func (q *QueryCache) TTL() time.Duration {
	return q.ttl
}

// Fetch returns the rows cached under key, calling fetch on a miss. Cache
// failures fall through to fetch and are logged.
func (q *QueryCache) Fetch(ctx context.Context, key, table string, fetch func(context.Context) (entity.List, error)) (entity.List, error) {
	q.issued.Store(key, table)

	rows, err := cache.GetOrFetch(ctx, q.shared, q.codec, key, q.ttl,
		func(ctx context.Context) ([]map[string]any, error) {
			list, err := fetch(ctx)
			if err != nil {
				return nil, err
			}
			out := make([]map[string]any, len(list))
			for i, e := range list {
				out[i] = e
			}
			return out, nil
		},
		func(key string, err error) {
			q.logger.Warn("query cache failure",
				zap.String("key", key),
				zap.String("table", table),
				zap.Error(err),
			)
		},
	)
	if err != nil {
		return nil, err
	}

	list := make(entity.List, len(rows))
	for i, row := range rows {
		list[i] = entity.Entity(row)
	}
	return list, nil
}

// Purge deletes every key this cache issued for table and returns how many
// were removed.
func (q *QueryCache) Purge(ctx context.Context, table string) (int, error) {
	var keys []string
	q.issued.Range(func(key, t string) bool {
		if t == table {
			keys = append(keys, key)
		}
		return true
	})

	purged := 0
	for _, key := range keys {
		if err := q.shared.Delete(ctx, key); err != nil {
			return purged, err
		}
		q.issued.Delete(key)
		purged++
	}
	return purged, nil
}

// PurgeAll deletes every bulk query entry. Backends able to delete by prefix
// also drop entries written by other processes.
func (q *QueryCache) PurgeAll(ctx context.Context) error {
	if pd, ok := q.shared.(cache.PrefixDeleter); ok {
		if err := pd.DeleteByPrefix(ctx, QueryKeyPrefix+"_"); err != nil {
			return err
		}
		q.issued.Clear()
		return nil
	}

	var firstErr error
	q.issued.Range(func(key, _ string) bool {
		if err := q.shared.Delete(ctx, key); err != nil && firstErr == nil {
			firstErr = err
		}
		q.issued.Delete(key)
		return true
	})
	return firstErr
}

// Tables returns the tables with at least one issued key.
func (q *QueryCache) Tables() []string {
	seen := map[string]struct{}{}
	q.issued.Range(func(_, table string) bool {
		seen[table] = struct{}{}
		return true
	})
	out := make([]string, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
