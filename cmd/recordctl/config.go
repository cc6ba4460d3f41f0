package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/goliatone/go-record-cache/cache"
	"github.com/goliatone/go-record-cache/pkg/di"
	"github.com/goliatone/go-record-cache/record"
	"github.com/goliatone/go-record-cache/store"
)

const (
	configFileName = "recordctl"
	configFileType = "yaml"
	envPrefix      = "RECORDCTL"

	keyCacheBackend   = "cache.backend"
	keyCachePrefix    = "cache.key_prefix"
	keyEntityTTL      = "cache.entity_ttl"
	keyQueryTTL       = "cache.query_ttl"
	keyBuffer         = "cache.buffer"
	keyForceRefresh   = "cache.force_refresh"
	keyCapacity       = "cache.capacity"
	keyRedisAddr      = "cache.redis.addr"
	keyRedisPassword  = "cache.redis.password"
	keyRedisDB        = "cache.redis.db"
	keyStoreDriver    = "store.driver"
	keyStoreDSN       = "store.primary_dsn"
	keyReplicaDSN     = "store.replica_dsn"
	keyReplicaFirst   = "store.replica_first"
	keyMaxOpenConns   = "store.max_open_conns"
	keyMaxIdleConns   = "store.max_idle_conns"
	keyTables         = "tables"
	keyTableKeyColumn = "primary_key"
)

// newViper returns a viper instance holding the library defaults. Every key
// can be overridden by RECORDCTL_<SECTION>_<KEY> environment variables.
func newViper() *viper.Viper {
	defaults := di.DefaultConfig()

	v := viper.New()
	v.SetDefault(keyCacheBackend, defaults.Cache.Backend)
	v.SetDefault(keyCachePrefix, defaults.Cache.KeyPrefix)
	v.SetDefault(keyEntityTTL, defaults.Cache.EntityTTL)
	v.SetDefault(keyQueryTTL, defaults.Cache.QueryTTL)
	v.SetDefault(keyBuffer, defaults.Cache.BufferEnabled)
	v.SetDefault(keyForceRefresh, defaults.Cache.ForceRefresh)
	v.SetDefault(keyCapacity, defaults.Cache.Capacity)
	v.SetDefault(keyRedisAddr, defaults.Cache.Redis.Addr)
	v.SetDefault(keyRedisDB, defaults.Cache.Redis.DB)
	v.SetDefault(keyStoreDriver, defaults.Store.Driver)
	v.SetDefault(keyStoreDSN, defaults.Store.PrimaryDSN)
	v.SetDefault(keyMaxOpenConns, defaults.Store.MaxOpenConns)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// readConfig loads path, or recordctl.yaml from the working directory when
// path is empty. A missing default file is not an error.
func readConfig(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configFileName)
		v.SetConfigType(configFileType)
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// containerConfig maps the viper keys onto the library configuration.
func containerConfig(v *viper.Viper) di.Config {
	cfg := di.DefaultConfig()

	cfg.Cache.Backend = v.GetString(keyCacheBackend)
	cfg.Cache.KeyPrefix = v.GetString(keyCachePrefix)
	cfg.Cache.EntityTTL = v.GetDuration(keyEntityTTL)
	cfg.Cache.QueryTTL = v.GetDuration(keyQueryTTL)
	cfg.Cache.BufferEnabled = v.GetBool(keyBuffer)
	cfg.Cache.ForceRefresh = v.GetBool(keyForceRefresh)
	cfg.Cache.Capacity = v.GetInt(keyCapacity)
	cfg.Cache.Redis = cache.RedisConfig{
		Addr:     v.GetString(keyRedisAddr),
		Password: v.GetString(keyRedisPassword),
		DB:       v.GetInt(keyRedisDB),
	}

	cfg.Store = store.Config{
		Driver:       v.GetString(keyStoreDriver),
		PrimaryDSN:   v.GetString(keyStoreDSN),
		ReplicaDSN:   v.GetString(keyReplicaDSN),
		ReplicaFirst: v.GetBool(keyReplicaFirst),
		MaxOpenConns: v.GetInt(keyMaxOpenConns),
		MaxIdleConns: v.GetInt(keyMaxIdleConns),
	}
	return cfg
}

// descriptorFor reads tables.<table> from the config. Tables without an
// entry get the default descriptor.
func descriptorFor(v *viper.Viper, table string) record.Descriptor {
	desc := record.Descriptor{Table: table}

	sub := v.Sub(keyTables + "." + table)
	if sub == nil {
		return desc
	}
	desc.PrimaryKey = sub.GetString(keyTableKeyColumn)
	desc.FilterFields = sub.GetStringSlice("filter_fields")
	desc.SlimFields = sub.GetStringSlice("slim_fields")
	desc.SimpleExclude = sub.GetStringSlice("simple_exclude")
	if sub.IsSet("protected_fields") {
		desc.ProtectedFields = sub.GetStringSlice("protected_fields")
	}
	if sub.GetString("key_generator") == "uuid" {
		desc.KeyGenerator = record.UUIDKeys
	}
	return desc
}
