package store

import (
	"context"
	"database/sql"
	"fmt"
	"iter"
	"sort"
	"sync"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"go.uber.org/zap"

	"github.com/goliatone/go-record-cache/criteria"
	"github.com/goliatone/go-record-cache/entity"
)

// conn is the database handle shared by the bindings of one Pool.
type conn struct {
	mu     sync.RWMutex
	db     *bun.DB
	reopen func() (*bun.DB, error)
}

func (c *conn) get() *bun.DB {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.db
}

// BunClient implements Client over a bun.DB.
type BunClient struct {
	conn     *conn
	name     string
	writable bool
	builder  *criteria.Builder
	logger   *zap.Logger
}

var _ Client = (*BunClient)(nil)

// ClientOption configures a BunClient.
type ClientOption func(*BunClient)

// WithClientName sets the binding name.
func WithClientName(name string) ClientOption {
	return func(c *BunClient) {
		c.name = name
	}
}

// WithClientLogger sets the logger used for connection events.
func WithClientLogger(logger *zap.Logger) ClientOption {
	return func(c *BunClient) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// withReopen lets Reconnect rebuild the database handle.
func withReopen(fn func() (*bun.DB, error)) ClientOption {
	return func(c *BunClient) {
		c.conn.reopen = fn
	}
}

// NewClient wraps db as a writable primary binding.
func NewClient(db *bun.DB, opts ...ClientOption) *BunClient {
	c := &BunClient{
		conn:     &conn{db: db},
		name:     "primary",
		writable: true,
		builder:  criteria.NewBuilder(db.Formatter()),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ReadOnly returns a read only binding sharing c's connection.
func (c *BunClient) ReadOnly(name string) *BunClient {
	out := *c
	out.name = name
	out.writable = false
	return &out
}

// DB exposes the underlying bun handle.
func (c *BunClient) DB() *bun.DB {
	return c.conn.get()
}

func (c *BunClient) Name() string               { return c.name }
func (c *BunClient) Writable() bool             { return c.writable }
func (c *BunClient) Builder() *criteria.Builder { return c.builder }

func (c *BunClient) FetchOne(ctx context.Context, sel Select) (entity.Entity, error) {
	if !sel.Where.Query || sel.wrapped() {
		sel.Limit = 1
	}
	sel.MaxRows = 1
	rows, err := c.FetchAll(ctx, sel)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

func (c *BunClient) FetchAll(ctx context.Context, sel Select) (entity.List, error) {
	rows, err := c.rows(ctx, sel)
	if err != nil {
		return nil, err
	}
	return collect(rows, sel.MaxRows)
}

func (c *BunClient) Stream(ctx context.Context, sel Select) iter.Seq2[entity.Entity, error] {
	return func(yield func(entity.Entity, error) bool) {
		rows, err := c.rows(ctx, sel)
		if err != nil {
			yield(nil, err)
			return
		}
		defer rows.Close()

		columns, err := rows.Columns()
		if err != nil {
			yield(nil, err)
			return
		}

		seen := 0
		for rows.Next() {
			if sel.MaxRows > 0 && seen >= sel.MaxRows {
				return
			}
			seen++
			row, err := scanRow(rows, columns)
			if !yield(row, err) || err != nil {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(nil, err)
		}
	}
}

func (c *BunClient) Count(ctx context.Context, table string, where criteria.Predicate) (int64, error) {
	db := c.conn.get()
	if where.Query {
		var n int64
		err := db.QueryRowContext(ctx, "SELECT count(*) FROM ("+where.SQL+") AS counted", where.Args...).Scan(&n)
		return n, err
	}

	q := db.NewSelect().TableExpr("?", bun.Ident(table))
	if !where.Empty() {
		q = q.Where(where.SQL, where.Args...)
	}
	n, err := q.Count(ctx)
	return int64(n), err
}

func (c *BunClient) Insert(ctx context.Context, table string, fields entity.Entity, pk string) (any, error) {
	if !c.writable {
		return nil, ErrReadOnly
	}
	db := c.conn.get()

	if len(fields) == 0 {
		if db.Dialect().Name() == dialect.PG {
			var id int64
			err := db.QueryRowContext(ctx, "INSERT INTO ? DEFAULT VALUES RETURNING ?", bun.Ident(table), bun.Ident(pk)).Scan(&id)
			return id, err
		}
		res, err := db.ExecContext(ctx, "INSERT INTO ? DEFAULT VALUES", bun.Ident(table))
		if err != nil {
			return nil, err
		}
		return res.LastInsertId()
	}

	values := map[string]any(fields.Clone())
	q := db.NewInsert().Model(&values).TableExpr("?", bun.Ident(table))
	return c.insert(ctx, db, q, fields, pk)
}

func (c *BunClient) Upsert(ctx context.Context, table string, fields entity.Entity, pk string) (any, error) {
	if !c.writable {
		return nil, ErrReadOnly
	}
	db := c.conn.get()

	values := map[string]any(fields.Clone())
	q := db.NewInsert().Model(&values).TableExpr("?", bun.Ident(table))

	columns := updatableColumns(fields, pk)
	if len(columns) == 0 {
		q = q.On("CONFLICT (?) DO NOTHING", bun.Ident(pk))
	} else {
		q = q.On("CONFLICT (?) DO UPDATE", bun.Ident(pk))
		for _, col := range columns {
			q = q.Set("? = EXCLUDED.?", bun.Ident(col), bun.Ident(col))
		}
	}
	return c.insert(ctx, db, q, fields, pk)
}

func (c *BunClient) insert(ctx context.Context, db *bun.DB, q *bun.InsertQuery, fields entity.Entity, pk string) (any, error) {
	if id, ok := fields.Lookup(pk); ok && !entity.IsZeroKey(id) {
		if _, err := q.Exec(ctx); err != nil {
			return nil, err
		}
		return id, nil
	}

	if db.Dialect().Name() == dialect.PG {
		var id int64
		if _, err := q.Returning("?", bun.Ident(pk)).Exec(ctx, &id); err != nil {
			return nil, err
		}
		return id, nil
	}

	res, err := q.Exec(ctx)
	if err != nil {
		return nil, err
	}
	return res.LastInsertId()
}

func (c *BunClient) Update(ctx context.Context, table string, fields entity.Entity, where criteria.Predicate) (int64, error) {
	if !c.writable {
		return 0, ErrReadOnly
	}
	if where.Empty() || where.Query {
		return 0, ErrMissingPredicate
	}
	if len(fields) == 0 {
		return 0, nil
	}

	q := c.conn.get().NewUpdate().TableExpr("?", bun.Ident(table))
	for _, col := range fields.Columns() {
		q = q.Set("? = ?", bun.Ident(col), fields[col])
	}
	res, err := q.Where(where.SQL, where.Args...).Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (c *BunClient) Increment(ctx context.Context, table, column string, step any, where criteria.Predicate) (int64, error) {
	if !c.writable {
		return 0, ErrReadOnly
	}
	if where.Empty() || where.Query {
		return 0, ErrMissingPredicate
	}

	res, err := c.conn.get().NewUpdate().
		TableExpr("?", bun.Ident(table)).
		Set("? = ? + ?", bun.Ident(column), bun.Ident(column), step).
		Where(where.SQL, where.Args...).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (c *BunClient) Delete(ctx context.Context, table string, where criteria.Predicate) (int64, error) {
	if !c.writable {
		return 0, ErrReadOnly
	}
	if where.Empty() || where.Query {
		return 0, ErrMissingPredicate
	}

	res, err := c.conn.get().NewDelete().
		TableExpr("?", bun.Ident(table)).
		Where(where.SQL, where.Args...).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (c *BunClient) Query(ctx context.Context, query string, args ...any) (entity.List, error) {
	rows, err := c.conn.get().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collect(rows, 0)
}

func (c *BunClient) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	if !c.writable {
		return 0, ErrReadOnly
	}
	res, err := c.conn.get().ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (c *BunClient) Statement(sel Select) string {
	if sel.Where.Query && !sel.wrapped() {
		return c.Render(sel.Where.SQL, sel.Where.Args...)
	}
	return c.selectQuery(sel).String()
}

func (c *BunClient) Render(query string, args ...any) string {
	return c.builder.Render(query, args...)
}

func (c *BunClient) Reconnect(ctx context.Context) error {
	db := c.conn.get()
	if err := db.PingContext(ctx); err == nil {
		return nil
	}
	if c.conn.reopen == nil {
		return fmt.Errorf("store: %s connection lost and cannot be reopened", c.name)
	}

	c.conn.mu.Lock()
	defer c.conn.mu.Unlock()
	if c.conn.db != db {
		return nil
	}

	fresh, err := c.conn.reopen()
	if err != nil {
		return fmt.Errorf("store: reconnect %s: %w", c.name, err)
	}
	_ = c.conn.db.Close()
	c.conn.db = fresh
	c.logger.Info("store connection reopened", zap.String("binding", c.name))
	return nil
}

func (c *BunClient) Close() error {
	return c.conn.get().Close()
}

func (c *BunClient) selectQuery(sel Select) *bun.SelectQuery {
	q := c.conn.get().NewSelect().ColumnExpr("*")
	switch {
	case sel.Where.Query:
		q = q.TableExpr("("+sel.Where.SQL+") AS paged", sel.Where.Args...)
	default:
		q = q.TableExpr("?", bun.Ident(sel.Table))
		if !sel.Where.Empty() {
			q = q.Where(sel.Where.SQL, sel.Where.Args...)
		}
	}
	if sel.Order != "" {
		q = q.OrderExpr(sel.Order)
	}
	if sel.Limit > 0 {
		q = q.Limit(sel.Limit)
		if sel.Offset > 0 {
			q = q.Offset(sel.Offset)
		}
	}
	return q
}

func (c *BunClient) rows(ctx context.Context, sel Select) (*sql.Rows, error) {
	if sel.Where.Query && !sel.wrapped() {
		return c.conn.get().QueryContext(ctx, sel.Where.SQL, sel.Where.Args...)
	}
	return c.selectQuery(sel).Rows(ctx)
}

func updatableColumns(fields entity.Entity, pk string) []string {
	columns := make([]string, 0, len(fields))
	for col := range fields {
		if col != pk {
			columns = append(columns, col)
		}
	}
	sort.Strings(columns)
	return columns
}
