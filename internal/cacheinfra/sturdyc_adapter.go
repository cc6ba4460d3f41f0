package cacheinfra

import (
	"context"
	"encoding/binary"
	"strings"
	"time"

	"github.com/viccon/sturdyc"
)

// ConfigError reports a rejected backend setting.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field " + e.Field + ": " + e.Message
}

// MemoryConfig sizes the in-process sturdyc cache.
type MemoryConfig struct {
	Capacity           int
	NumShards          int
	EvictionPercentage int

	// MaxTTL bounds every entry. Entries stored with their own ttl expire
	// at whichever deadline comes first.
	MaxTTL time.Duration

	// EvictionInterval sets how often sturdyc sweeps expired entries. Zero
	// keeps the sturdyc default.
	EvictionInterval time.Duration
}

// DefaultMemoryConfig holds 10k entries for at most 4 hours.
func DefaultMemoryConfig() MemoryConfig {
	return MemoryConfig{
		Capacity:           10000,
		NumShards:          256,
		EvictionPercentage: 10,
		MaxTTL:             4 * time.Hour,
	}
}

// Validate checks the sizing values.
func (c MemoryConfig) Validate() error {
	switch {
	case c.Capacity <= 0:
		return &ConfigError{Field: "Capacity", Message: "must be greater than 0"}
	case c.NumShards <= 0:
		return &ConfigError{Field: "NumShards", Message: "must be greater than 0"}
	case c.NumShards > c.Capacity:
		return &ConfigError{Field: "NumShards", Message: "must not exceed Capacity"}
	case c.EvictionPercentage < 1 || c.EvictionPercentage > 100:
		return &ConfigError{Field: "EvictionPercentage", Message: "must be between 1 and 100"}
	case c.MaxTTL <= 0:
		return &ConfigError{Field: "MaxTTL", Message: "must be greater than 0"}
	case c.EvictionInterval < 0:
		return &ConfigError{Field: "EvictionInterval", Message: "must be non-negative"}
	}
	return nil
}

func (c MemoryConfig) options() []sturdyc.Option {
	if c.EvictionInterval > 0 {
		return []sturdyc.Option{sturdyc.WithEvictionInterval(c.EvictionInterval)}
	}
	return nil
}

// deadlineSize is the length of the expiry header stored before each value.
const deadlineSize = 8

// MemoryService is the in-process shared cache. Values are copied in and out
// so callers never share a buffer with the cache.
type MemoryService struct {
	client *sturdyc.Client[[]byte]
	now    func() time.Time
}

// NewMemoryService validates cfg and builds the sturdyc client.
func NewMemoryService(cfg MemoryConfig) (*MemoryService, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := sturdyc.New[[]byte](
		cfg.Capacity,
		cfg.NumShards,
		cfg.MaxTTL,
		cfg.EvictionPercentage,
		cfg.options()...,
	)
	return &MemoryService{client: client, now: time.Now}, nil
}

// Get returns the stored bytes for key. An entry past its own deadline is
// dropped and reported as a miss.
func (s *MemoryService) Get(ctx context.Context, key string) ([]byte, bool, error) {
	stored, ok := s.client.Get(key)
	if !ok || len(stored) < deadlineSize {
		return nil, false, nil
	}

	deadline := int64(binary.BigEndian.Uint64(stored[:deadlineSize]))
	if deadline != 0 && s.now().UnixNano() >= deadline {
		s.client.Delete(key)
		return nil, false, nil
	}
	return append([]byte(nil), stored[deadlineSize:]...), true, nil
}

// Set stores value under key. A positive ttl gives the entry its own
// deadline; otherwise it lives until the client MaxTTL.
func (s *MemoryService) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	stored := make([]byte, deadlineSize+len(value))
	if ttl > 0 {
		binary.BigEndian.PutUint64(stored, uint64(s.now().Add(ttl).UnixNano()))
	}
	copy(stored[deadlineSize:], value)
	s.client.Set(key, stored)
	return nil
}

// Delete removes key from the cache.
func (s *MemoryService) Delete(ctx context.Context, key string) error {
	s.client.Delete(key)
	return nil
}

// DeleteByPrefix removes every entry whose key starts with prefix.
func (s *MemoryService) DeleteByPrefix(ctx context.Context, prefix string) error {
	for _, key := range s.client.ScanKeys() {
		if strings.HasPrefix(key, prefix) {
			s.client.Delete(key)
		}
	}
	return nil
}
