package store

import (
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"
	"go.uber.org/zap"
)

// Pool is the default Router: one writable primary binding and one read only
// replica binding.
type Pool struct {
	primary *BunClient
	replica *BunClient
}

var _ Router = (*Pool)(nil)

// NewPool builds a pool from existing clients. A nil replica becomes a read
// only view of the primary connection.
func NewPool(primary, replica *BunClient) *Pool {
	if replica == nil {
		replica = primary.ReadOnly("replica")
	} else {
		replica = replica.ReadOnly("replica")
	}
	return &Pool{primary: primary, replica: replica}
}

// Open connects to the databases described by cfg.
func Open(cfg Config, logger *zap.Logger) (*Pool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("store: invalid config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	primary, err := openClient(cfg, cfg.PrimaryDSN, "primary", logger)
	if err != nil {
		return nil, err
	}
	if cfg.ReplicaDSN == "" {
		return NewPool(primary, nil), nil
	}

	replica, err := openClient(cfg, cfg.ReplicaDSN, "replica", logger)
	if err != nil {
		_ = primary.Close()
		return nil, err
	}
	return NewPool(primary, replica), nil
}

func (p *Pool) Primary() Client { return p.primary }
func (p *Pool) Replica() Client { return p.replica }

// Close closes every distinct connection of the pool.
func (p *Pool) Close() error {
	err := p.primary.Close()
	if p.replica.conn != p.primary.conn {
		err = errors.Join(err, p.replica.Close())
	}
	return err
}

func openClient(cfg Config, dsn, name string, logger *zap.Logger) (*BunClient, error) {
	open := func() (*bun.DB, error) {
		return openDB(cfg, dsn, logger.With(zap.String("binding", name)))
	}
	db, err := open()
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", name, err)
	}
	return NewClient(db,
		WithClientName(name),
		WithClientLogger(logger),
		withReopen(open),
	), nil
}

func openDB(cfg Config, dsn string, logger *zap.Logger) (*bun.DB, error) {
	sqldb, err := sql.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqldb.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if err := sqldb.Ping(); err != nil {
		_ = sqldb.Close()
		return nil, err
	}

	db := bun.NewDB(sqldb, dialectFor(cfg.Driver))
	db.AddQueryHook(queryLogger{logger: logger})
	return db, nil
}

func dialectFor(driver string) schema.Dialect {
	if driver == DriverPostgres {
		return pgdialect.New()
	}
	return sqlitedialect.New()
}
