package record

import (
	"context"
	"iter"

	"github.com/goliatone/go-record-cache/criteria"
	"github.com/goliatone/go-record-cache/entity"
	"github.com/goliatone/go-record-cache/store"
)

// FetchOptions shape a bulk read. A zero Limit means the model fetch limit
// (DefaultFetchLimit) for FetchAll and FetchAllRaw.
type FetchOptions struct {
	Order  string
	Limit  int
	Offset int
}

// FetchOne replaces the snapshot with the first row matching c and returns
// a copy of it. The snapshot is left alone when nothing matches.
func (r *Record) FetchOne(ctx context.Context, c criteria.Criteria, order string) (entity.Entity, error) {
	sel, err := r.selectFor("fetch one", c, FetchOptions{Order: order})
	if err != nil {
		return nil, err
	}
	e, err := r.client.FetchOne(ctx, sel)
	if err != nil {
		return nil, newError("fetch one", r.model.desc.Table, nil, nil, err)
	}
	if e == nil {
		return nil, newError("fetch one", r.model.desc.Table, nil, ErrEntityNotFound, nil)
	}
	r.entity = e
	return e.Clone(), nil
}

// Count returns the number of rows matching c. A template is counted as a
// subquery.
func (r *Record) Count(ctx context.Context, c criteria.Criteria) (int64, error) {
	where, err := r.build(c)
	if err != nil {
		return 0, newError("count", r.model.desc.Table, nil, nil, err)
	}
	n, err := r.client.Count(ctx, r.model.desc.Table, where)
	if err != nil {
		return 0, newError("count", r.model.desc.Table, nil, nil, err)
	}
	return n, nil
}

// FetchPage returns page (1-indexed) of size rows matching c.
func (r *Record) FetchPage(ctx context.Context, c criteria.Criteria, page, size int, order string) (entity.List, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = r.model.fetchLimit
	}
	return r.FetchAllRaw(ctx, c, FetchOptions{
		Order:  order,
		Limit:  size,
		Offset: (page - 1) * size,
	})
}

// FetchAll returns the rows matching c indexed by primary key. Without an
// explicit limit at most the model fetch limit rows are returned.
func (r *Record) FetchAll(ctx context.Context, c criteria.Criteria, opts FetchOptions) (*entity.Index, error) {
	rows, err := r.FetchAllRaw(ctx, c, opts)
	if err != nil {
		return nil, err
	}
	return entity.NewIndex(rows, r.model.desc.PrimaryKey), nil
}

// FetchAllRaw is FetchAll returning the rows in result order.
func (r *Record) FetchAllRaw(ctx context.Context, c criteria.Criteria, opts FetchOptions) (entity.List, error) {
	if opts.Limit <= 0 {
		opts.Limit = r.model.fetchLimit
	}
	sel, err := r.selectFor("fetch all", c, opts)
	if err != nil {
		return nil, err
	}
	rows, err := r.client.FetchAll(ctx, sel)
	if err != nil {
		return nil, newError("fetch all", r.model.desc.Table, nil, nil, err)
	}
	return rows, nil
}

// FetchAllCached is FetchAll served from the query cache. The read runs on
// the replica for the duration of the call and the previous binding is
// restored afterwards. Results may be stale up to the query cache TTL.
func (r *Record) FetchAllCached(ctx context.Context, c criteria.Criteria, opts FetchOptions) (*entity.Index, error) {
	prev := r.client
	r.client = r.model.router.Replica()
	defer func() { r.client = prev }()

	queries := r.model.queries
	if queries == nil {
		return r.FetchAll(ctx, c, opts)
	}

	if opts.Limit <= 0 {
		opts.Limit = r.model.fetchLimit
	}
	table := r.model.desc.Table
	key := queries.Key(table, c, opts)
	rows, err := queries.Fetch(ctx, key, table, func(ctx context.Context) (entity.List, error) {
		return r.FetchAllRaw(ctx, c, opts)
	})
	if err != nil {
		return nil, err
	}
	return entity.NewIndex(rows, r.model.desc.PrimaryKey), nil
}

// Query runs c without any row cap: a template as written, anything else as
// a SELECT over the table.
func (r *Record) Query(ctx context.Context, c criteria.Criteria) (entity.List, error) {
	sel, err := r.selectFor("query", c, FetchOptions{})
	if err != nil {
		return nil, err
	}
	rows, err := r.client.FetchAll(ctx, sel)
	if err != nil {
		return nil, newError("query", r.model.desc.Table, nil, nil, err)
	}
	return rows, nil
}

// Stream is Query as a lazy, single pass sequence. Rows are neither buffered
// nor cached. Stop ranging to release the connection early.
func (r *Record) Stream(ctx context.Context, c criteria.Criteria) iter.Seq2[entity.Entity, error] {
	sel, err := r.selectFor("stream", c, FetchOptions{})
	if err != nil {
		return func(yield func(entity.Entity, error) bool) {
			yield(nil, err)
		}
	}
	return r.client.Stream(ctx, sel)
}

// Exec runs a template statement and returns the affected row count. The
// keyed cache cannot know which rows changed; call Model.Invalidate for
// them.
func (r *Record) Exec(ctx context.Context, c criteria.Criteria) (int64, error) {
	if err := r.checkWritable("exec"); err != nil {
		return 0, err
	}
	where, err := r.build(c)
	if err != nil {
		return 0, newError("exec", r.model.desc.Table, nil, nil, err)
	}
	if !where.Query {
		return 0, newError("exec", r.model.desc.Table, nil, nil, errNotStatement)
	}
	n, err := r.client.Exec(ctx, where.SQL, where.Args...)
	if err != nil {
		return 0, r.writeError("exec", nil, err)
	}
	return n, nil
}

// Statement renders the SQL FetchAllRaw would run for c and opts.
func (r *Record) Statement(c criteria.Criteria, opts FetchOptions) (string, error) {
	if opts.Limit <= 0 {
		opts.Limit = r.model.fetchLimit
	}
	sel, err := r.selectFor("statement", c, opts)
	if err != nil {
		return "", err
	}
	return r.client.Statement(sel), nil
}

func (r *Record) selectFor(op string, c criteria.Criteria, opts FetchOptions) (store.Select, error) {
	where, err := r.build(c)
	if err != nil {
		return store.Select{}, newError(op, r.model.desc.Table, nil, nil, err)
	}
	sel := store.Select{
		Table:  r.model.desc.Table,
		Where:  where,
		Order:  opts.Order,
		Limit:  opts.Limit,
		Offset: opts.Offset,
	}
	if where.Query {
		sel.MaxRows = opts.Limit
	}
	return sel, nil
}
