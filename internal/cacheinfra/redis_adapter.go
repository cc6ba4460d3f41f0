package cacheinfra

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gomodule/redigo/redis"
)

// RedisConfig describes how to reach the shared redis cache.
type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	MaxIdle     int
	MaxActive   int
	IdleTimeout time.Duration
	DialTimeout time.Duration
}

// Validate checks the redis settings.
func (c RedisConfig) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return &ConfigError{Field: "Redis.Addr", Message: "must not be empty"}
	}
	if c.DB < 0 {
		return &ConfigError{Field: "Redis.DB", Message: "must be non-negative"}
	}
	if c.MaxIdle < 0 || c.MaxActive < 0 {
		return &ConfigError{Field: "Redis.MaxIdle", Message: "pool sizes must be non-negative"}
	}
	return nil
}

// NewRedisPool builds a redigo pool from cfg.
func NewRedisPool(cfg RedisConfig) *redis.Pool {
	maxIdle := cfg.MaxIdle
	if maxIdle == 0 {
		maxIdle = 8
	}
	return &redis.Pool{
		MaxIdle:     maxIdle,
		MaxActive:   cfg.MaxActive,
		IdleTimeout: cfg.IdleTimeout,
		DialContext: func(ctx context.Context) (redis.Conn, error) {
			opts := []redis.DialOption{redis.DialDatabase(cfg.DB)}
			if cfg.Password != "" {
				opts = append(opts, redis.DialPassword(cfg.Password))
			}
			if cfg.DialTimeout > 0 {
				opts = append(opts, redis.DialConnectTimeout(cfg.DialTimeout))
			}
			return redis.DialContext(ctx, "tcp", cfg.Addr, opts...)
		},
	}
}

// RedisService stores cache entries in redis so every process sharing the
// server sees the same keyed entities and query results.
type RedisService struct {
	pool *redis.Pool
}

// NewRedisService wraps an existing pool.
func NewRedisService(pool *redis.Pool) *RedisService {
	return &RedisService{pool: pool}
}

// Get returns the stored bytes for key.
func (s *RedisService) Get(ctx context.Context, key string) ([]byte, bool, error) {
	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return nil, false, err
	}
	defer conn.Close()

	value, err := redis.Bytes(conn.Do("GET", key))
	if errors.Is(err, redis.ErrNil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// Set stores value under key, expiring after ttl when ttl is positive.
func (s *RedisService) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	if ttl > 0 {
		_, err = conn.Do("SET", key, value, "PX", ttl.Milliseconds())
	} else {
		_, err = conn.Do("SET", key, value)
	}
	return err
}

// Delete removes key.
func (s *RedisService) Delete(ctx context.Context, key string) error {
	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	_, err = conn.Do("DEL", key)
	return err
}

// DeleteByPrefix removes every key starting with prefix using SCAN.
func (s *RedisService) DeleteByPrefix(ctx context.Context, prefix string) error {
	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	pattern := globEscaper.Replace(prefix) + "*"
	cursor := 0
	for {
		values, err := redis.Values(conn.Do("SCAN", cursor, "MATCH", pattern, "COUNT", 200))
		if err != nil {
			return err
		}
		if cursor, err = redis.Int(values[0], nil); err != nil {
			return err
		}
		keys, err := redis.Strings(values[1], nil)
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			args := redis.Args{}.AddFlat(keys)
			if _, err := conn.Do("DEL", args...); err != nil {
				return err
			}
		}
		if cursor == 0 {
			return nil
		}
	}
}

// Close releases the pool.
func (s *RedisService) Close() error {
	return s.pool.Close()
}

var globEscaper = strings.NewReplacer(`*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)
