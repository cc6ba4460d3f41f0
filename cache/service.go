package cache

import (
	"context"
	"time"
)

// KeySerializer builds a cache key from a method name and arbitrary args.
// The same inputs must always produce the same key.
type KeySerializer interface {
	SerializeKey(method string, args ...any) string
}

// FetchFn loads a value from the source of truth on a cache miss.
type FetchFn[T any] func(ctx context.Context) (T, error)

// CacheService is the shared, cross-unit-of-work cache. Values are opaque
// bytes; callers encode them with a Codec. A miss is reported as ok == false
// with a nil error.
type CacheService interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// PrefixDeleter is implemented by backends that can drop every key sharing a
// prefix. Both bundled backends implement it.
type PrefixDeleter interface {
	DeleteByPrefix(ctx context.Context, prefix string) error
}

// GetOrFetch reads key from service, decoding it with codec. On a miss, on a
// decode failure, or when the force refresh flag is set, fetch is called and
// its result stored with ttl. Cache errors are returned alongside a valid
// value through onError so callers can log them without failing the read.
func GetOrFetch[T any](
	ctx context.Context,
	service CacheService,
	codec Codec,
	key string,
	ttl time.Duration,
	fetch FetchFn[T],
	onError func(key string, err error),
) (T, error) {
	report := func(err error) {
		if err != nil && onError != nil {
			onError(key, err)
		}
	}

	if !ForceRefresh() {
		data, ok, err := service.Get(ctx, key)
		report(err)
		if ok {
			var cached T
			decodeErr := codec.Unmarshal(data, &cached)
			if decodeErr == nil {
				return cached, nil
			}
			report(decodeErr)
		}
	}

	value, err := fetch(ctx)
	if err != nil {
		var zero T
		return zero, err
	}

	data, err := codec.Marshal(value)
	if err != nil {
		report(err)
		return value, nil
	}
	report(service.Set(ctx, key, data, ttl))
	return value, nil
}
