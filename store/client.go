// Package store executes record operations against a relational database
// through uptrace/bun.
//
// Rows travel as entity.Entity column maps. Every filter arrives as a
// criteria.Predicate already built for the client's dialect, so the store
// never interprets criteria itself.
package store

import (
	"context"
	"errors"
	"iter"

	"github.com/goliatone/go-record-cache/criteria"
	"github.com/goliatone/go-record-cache/entity"
)

var (
	// ErrMissingPredicate guards against whole-table updates and deletes.
	ErrMissingPredicate = errors.New("store: update and delete require a predicate")

	// ErrReadOnly is returned when a write is sent to a read only client.
	ErrReadOnly = errors.New("store: client is read only")
)

// Select describes a row read. When Where.Query is set, Where.SQL is a full
// statement and Table is ignored. Order or Offset on a statement wrap it as a
// derived table so they apply to its result, together with Limit.
type Select struct {
	Table  string
	Where  criteria.Predicate
	Order  string
	Limit  int
	Offset int

	// MaxRows stops scanning after that many rows. It bounds statements
	// that cannot carry a LIMIT, such as templates.
	MaxRows int
}

// wrapped reports whether a statement read needs the derived table form.
func (s Select) wrapped() bool {
	return s.Where.Query && (s.Order != "" || s.Offset > 0)
}

// Client is a connection binding able to run record operations.
type Client interface {
	// Name identifies the binding, "primary" or "replica".
	Name() string
	Writable() bool
	Builder() *criteria.Builder

	// FetchOne returns the first matching row, or nil when there is none.
	FetchOne(ctx context.Context, sel Select) (entity.Entity, error)
	FetchAll(ctx context.Context, sel Select) (entity.List, error)
	Count(ctx context.Context, table string, where criteria.Predicate) (int64, error)
	Stream(ctx context.Context, sel Select) iter.Seq2[entity.Entity, error]

	// Insert adds a row and returns its key: the value of pk in fields when
	// present, else the key generated by the database.
	Insert(ctx context.Context, table string, fields entity.Entity, pk string) (any, error)
	// Upsert inserts a row or overwrites the row sharing its primary key.
	Upsert(ctx context.Context, table string, fields entity.Entity, pk string) (any, error)
	Update(ctx context.Context, table string, fields entity.Entity, where criteria.Predicate) (int64, error)
	// Increment runs column = column + step on the matching rows.
	Increment(ctx context.Context, table, column string, step any, where criteria.Predicate) (int64, error)
	Delete(ctx context.Context, table string, where criteria.Predicate) (int64, error)

	// Query runs a complete statement and returns its rows.
	Query(ctx context.Context, query string, args ...any) (entity.List, error)
	// Exec runs a complete statement and returns the affected row count.
	Exec(ctx context.Context, query string, args ...any) (int64, error)

	// Statement renders the SQL a Select would run, for debugging.
	Statement(sel Select) string
	// Render formats query with args inlined, for debugging.
	Render(query string, args ...any) string

	// Reconnect checks the connection and reopens it when it is gone.
	Reconnect(ctx context.Context) error
	Close() error
}

// Router hands out the primary (writable) and replica (read only) bindings.
type Router interface {
	Primary() Client
	Replica() Client
}
