package store

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// Config describes the database connections.
type Config struct {
	Driver     string
	PrimaryDSN string

	// ReplicaDSN is optional. Without it the replica binding is a read only
	// view of the primary connection.
	ReplicaDSN string

	// ReplicaFirst binds new records to the replica by default.
	ReplicaFirst bool

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DefaultConfig returns an in-memory sqlite database.
func DefaultConfig() Config {
	return Config{
		Driver:       DriverSQLite,
		PrimaryDSN:   "file::memory:?cache=shared",
		MaxOpenConns: 1,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Driver, validation.Required, validation.In(DriverSQLite, DriverPostgres)),
		validation.Field(&c.PrimaryDSN, validation.Required),
		validation.Field(&c.MaxOpenConns, validation.Min(0)),
		validation.Field(&c.MaxIdleConns, validation.Min(0)),
	)
}
