package cache

import (
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/goliatone/go-record-cache/internal/cacheinfra"
)

// Supported shared cache backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config holds the shared cache settings.
type Config struct {
	// Backend selects the CacheService implementation: "memory" (sturdyc,
	// in process) or "redis" (shared across processes).
	Backend string

	// KeyPrefix starts every keyed entity cache key.
	KeyPrefix string

	// EntityTTL is the lifetime of keyed entity entries.
	EntityTTL time.Duration

	// QueryTTL is the lifetime of bulk query results.
	QueryTTL time.Duration

	// BufferEnabled turns the per unit of work buffer on.
	BufferEnabled bool

	// ForceRefresh starts the process in "always fresh" mode.
	ForceRefresh bool

	Redis RedisConfig

	// Memory backend sizing. Each entry still expires after its own TTL.
	Capacity           int
	NumShards          int
	EvictionPercentage int
	EvictionInterval   time.Duration
}

// RedisConfig describes the redis server used by the redis backend.
type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	MaxIdle     int
	MaxActive   int
	IdleTimeout time.Duration
	DialTimeout time.Duration
}

// DefaultConfig returns the in-memory backend with a 4 hour entity TTL and a
// 1 hour query TTL.
func DefaultConfig() Config {
	memory := cacheinfra.DefaultMemoryConfig()
	return Config{
		Backend:            BackendMemory,
		KeyPrefix:          "record",
		EntityTTL:          memory.MaxTTL,
		QueryTTL:           time.Hour,
		BufferEnabled:      true,
		Redis:              RedisConfig{Addr: "127.0.0.1:6379"},
		Capacity:           memory.Capacity,
		NumShards:          memory.NumShards,
		EvictionPercentage: memory.EvictionPercentage,
		EvictionInterval:   memory.EvictionInterval,
	}
}

// Validate checks the public settings, then the selected backend's.
func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.Backend, validation.Required, validation.In(BackendMemory, BackendRedis)),
		validation.Field(&c.KeyPrefix, validation.Required),
		validation.Field(&c.EntityTTL, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.QueryTTL, validation.Required, validation.Min(time.Second)),
	)
	if err != nil {
		return err
	}

	switch c.Backend {
	case BackendRedis:
		return c.redisConfig().Validate()
	default:
		return c.memoryConfig().Validate()
	}
}

// NewCacheService builds the backend selected by cfg.
func NewCacheService(cfg Config) (CacheService, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("cache: invalid config: %w", err)
	}
	if cfg.ForceRefresh {
		SetForceRefresh(true)
	}

	switch cfg.Backend {
	case BackendRedis:
		return cacheinfra.NewRedisService(cacheinfra.NewRedisPool(cfg.redisConfig())), nil
	default:
		svc, err := cacheinfra.NewMemoryService(cfg.memoryConfig())
		if err != nil {
			return nil, err
		}
		return svc, nil
	}
}

func (c Config) redisConfig() cacheinfra.RedisConfig {
	return cacheinfra.RedisConfig{
		Addr:        c.Redis.Addr,
		Password:    c.Redis.Password,
		DB:          c.Redis.DB,
		MaxIdle:     c.Redis.MaxIdle,
		MaxActive:   c.Redis.MaxActive,
		IdleTimeout: c.Redis.IdleTimeout,
		DialTimeout: c.Redis.DialTimeout,
	}
}

// Entries carry their own deadline, so the client TTL only has to cover the
// longer of the two lifetimes.
func (c Config) memoryConfig() cacheinfra.MemoryConfig {
	maxTTL := c.EntityTTL
	if c.QueryTTL > maxTTL {
		maxTTL = c.QueryTTL
	}

	return cacheinfra.MemoryConfig{
		Capacity:           c.Capacity,
		NumShards:          c.NumShards,
		EvictionPercentage: c.EvictionPercentage,
		MaxTTL:             maxTTL,
		EvictionInterval:   c.EvictionInterval,
	}
}
