package di

import (
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/goliatone/go-record-cache/cache"
	"github.com/goliatone/go-record-cache/entitycache"
	"github.com/goliatone/go-record-cache/record"
	"github.com/goliatone/go-record-cache/store"
)

// Config groups the settings of every component the container builds.
type Config struct {
	Cache cache.Config
	Store store.Config
}

// DefaultConfig returns an in-memory cache over an in-memory sqlite database.
func DefaultConfig() Config {
	return Config{
		Cache: cache.DefaultConfig(),
		Store: store.DefaultConfig(),
	}
}

// Option configures a Container.
type Option func(*Container)

// WithLogger sets the logger handed to every component.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Container) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Container provides dependency injection for the record layer.
// It owns the process wide singletons (shared cache, key serializer,
// store pool and bulk query cache) and hands out per unit of work
// cache managers and models bound to them.
type Container struct {
	cacheService  cache.CacheService
	keySerializer cache.KeySerializer
	pool          *store.Pool
	queries       *entitycache.QueryCache
	logger        *zap.Logger
	config        Config
}

// NewContainer validates config, opens the store and builds the shared cache.
func NewContainer(config Config, opts ...Option) (*Container, error) {
	c := &Container{
		config: config,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	cacheService, err := cache.NewCacheService(config.Cache)
	if err != nil {
		return nil, err
	}

	pool, err := store.Open(config.Store, c.logger)
	if err != nil {
		closeService(cacheService)
		return nil, err
	}

	c.cacheService = cacheService
	c.keySerializer = cache.NewDefaultKeySerializer()
	c.pool = pool
	c.queries = entitycache.NewQueryCache(cacheService,
		entitycache.WithQueryTTL(config.Cache.QueryTTL),
		entitycache.WithKeySerializer(c.keySerializer),
		entitycache.WithQueryLogger(c.logger),
	)

	c.logger.Debug("record container ready",
		zap.String("cache_backend", config.Cache.Backend),
		zap.String("store_driver", config.Store.Driver),
	)
	return c, nil
}

// NewContainerWithDefaults creates a container using DefaultConfig.
func NewContainerWithDefaults(opts ...Option) (*Container, error) {
	return NewContainer(DefaultConfig(), opts...)
}

// CacheService returns the shared cache.
func (c *Container) CacheService() cache.CacheService {
	return c.cacheService
}

// KeySerializer returns the serializer used for bulk query keys.
func (c *Container) KeySerializer() cache.KeySerializer {
	return c.keySerializer
}

// Pool returns the primary and replica store clients.
func (c *Container) Pool() *store.Pool {
	return c.pool
}

// QueryCache returns the bulk query cache shared by every model.
func (c *Container) QueryCache() *entitycache.QueryCache {
	return c.queries
}

// Logger returns the container logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Config returns a copy of the configuration used by this container.
func (c *Container) Config() Config {
	return c.config
}

// NewUnitOfWork returns a fresh entity cache manager over the shared cache.
// Use one per request or job.
func (c *Container) NewUnitOfWork() *entitycache.Manager {
	opts := []entitycache.Option{
		entitycache.WithPrefix(c.config.Cache.KeyPrefix),
		entitycache.WithTTL(c.config.Cache.EntityTTL),
		entitycache.WithLogger(c.logger),
	}
	if !c.config.Cache.BufferEnabled {
		opts = append(opts, entitycache.WithBufferDisabled())
	}
	return entitycache.NewManager(c.cacheService, opts...)
}

// NewModel builds the model for desc bound to uow. A nil uow gets a fresh
// unit of work. Options given here override the container defaults.
func (c *Container) NewModel(desc record.Descriptor, uow *entitycache.Manager, opts ...record.ModelOption) (*record.Model, error) {
	if uow == nil {
		uow = c.NewUnitOfWork()
	}
	base := []record.ModelOption{
		record.WithEntityCache(uow),
		record.WithQueryCache(c.queries),
		record.WithLogger(c.logger),
		record.WithReplicaFirst(c.config.Store.ReplicaFirst),
		record.WithEntityTTL(c.config.Cache.EntityTTL),
	}
	return record.NewModel(desc, c.pool, append(base, opts...)...)
}

// Close releases the store connections and the shared cache.
func (c *Container) Close() error {
	var errs []error
	if err := c.pool.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}
	if closer, ok := c.cacheService.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close cache: %w", err))
		}
	}
	return errors.Join(errs...)
}

func closeService(service cache.CacheService) {
	if closer, ok := service.(io.Closer); ok {
		_ = closer.Close()
	}
}
