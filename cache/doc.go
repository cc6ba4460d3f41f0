// Package cache defines the shared cache contract used by the record layer.
//
// A CacheService stores opaque bytes under string keys with a TTL. Two
// backends ship with the package and are selected through Config.Backend:
//
//   - "memory": an in-process sturdyc client. Each entry expires after its
//     own ttl, capped by the longer of EntityTTL and QueryTTL.
//   - "redis": a redigo pool. Entries expire individually and are visible to
//     every process using the same server.
//
// Values are encoded with a Codec, msgpack by default:
//
//	svc, err := cache.NewCacheService(cache.DefaultConfig())
//	rows, err := cache.GetOrFetch(ctx, svc, cache.MsgpackCodec{}, key, time.Hour,
//		func(ctx context.Context) ([]map[string]any, error) {
//			return loadRows(ctx)
//		}, nil)
//
// Cache failures are never fatal. GetOrFetch falls through to the fetch
// function when the backend errors and hands the error to its onError
// callback for logging.
//
// SetForceRefresh switches the whole process into "always fresh" mode where
// every cache read misses. Results fetched in that mode are still stored.
//
// KeySerializer builds deterministic keys from arbitrary arguments. Values
// implementing KeyPart supply their own key form.
package cache
