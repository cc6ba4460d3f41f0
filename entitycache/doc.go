// Package entitycache keeps keyed entities and bulk query results cached in
// front of the store.
//
// Keyed entities live in two tiers. A Buffer holds the entities seen by one
// unit of work and is discarded with it. The shared CacheService outlives
// units of work and may be shared by several processes. A Manager reads
// through both tiers and invalidates both on every write:
//
//	uow := entitycache.NewManager(shared, entitycache.WithLogger(logger))
//	if e, ok := uow.Get(ctx, "tasks", 42); ok {
//		return e
//	}
//	e := loadFromStore(ctx, 42)
//	uow.Put(ctx, "tasks", 42, e, 0)
//
// Bulk query results go through a QueryCache instead. Those entries are never
// invalidated by writes and only expire with their TTL.
package entitycache
