package record

import (
	"context"
	"errors"
	"math"

	"go.uber.org/zap"

	"github.com/goliatone/go-record-cache/criteria"
	"github.com/goliatone/go-record-cache/entity"
	"github.com/goliatone/go-record-cache/store"
)

// Record is one entity snapshot bound to a connection. A Record belongs to a
// single unit of work and is not safe for concurrent use.
type Record struct {
	model  *Model
	client store.Client
	entity entity.Entity
}

// Model returns the model the record was created from.
func (r *Record) Model() *Model {
	return r.model
}

// Entity returns a copy of the current snapshot.
func (r *Record) Entity() entity.Entity {
	return r.entity.Clone()
}

// Get returns the value of column, or nil.
func (r *Record) Get(column string) any {
	return r.entity.Get(column)
}

// Set changes column in the snapshot. Nothing is written until Save.
func (r *Record) Set(column string, value any) {
	if r.entity == nil {
		r.entity = entity.Entity{}
	}
	r.entity.Set(column, value)
}

// ID returns the primary key value of the snapshot.
func (r *Record) ID() any {
	return r.entity.Get(r.model.desc.PrimaryKey)
}

// HasKey reports whether the snapshot carries a usable primary key.
func (r *Record) HasKey() bool {
	return !entity.IsZeroKey(r.ID())
}

// UsePrimary binds the record to the writable connection.
func (r *Record) UsePrimary() *Record {
	r.client = r.model.router.Primary()
	return r
}

// UseReplica binds the record to the read only connection. Mutations fail
// with ErrReadOnly until UsePrimary is called.
func (r *Record) UseReplica() *Record {
	r.client = r.model.router.Replica()
	return r
}

// Writable reports whether mutations are allowed on the current binding.
func (r *Record) Writable() bool {
	return r.client.Writable()
}

// Reconnect re-establishes the current binding's connection if it was lost.
func (r *Record) Reconnect(ctx context.Context) error {
	return r.client.Reconnect(ctx)
}

// Add inserts fields as a new row and replaces the snapshot with them plus
// the generated key.
func (r *Record) Add(ctx context.Context, fields entity.Entity) (any, error) {
	if err := r.checkWritable("add"); err != nil {
		return nil, err
	}

	d := r.model.desc
	row := entity.Strip(fields, d.FilterFields, d.FilterChars)
	if row == nil {
		row = entity.Entity{}
	}
	if d.KeyGenerator != nil && entity.IsZeroKey(row[d.PrimaryKey]) {
		row[d.PrimaryKey] = d.KeyGenerator()
	}

	id, err := r.client.Insert(ctx, d.Table, row, d.PrimaryKey)
	if err != nil {
		return nil, r.writeError("add", nil, err)
	}
	row[d.PrimaryKey] = id

	r.entity = row
	r.model.entities.Invalidate(ctx, d.Table, id)
	r.model.refresh(ctx, id)
	return id, nil
}

// Replace inserts fields or overwrites the row sharing their primary key,
// then reloads the snapshot.
func (r *Record) Replace(ctx context.Context, fields entity.Entity) (any, error) {
	if err := r.checkWritable("replace"); err != nil {
		return nil, err
	}

	d := r.model.desc
	row := entity.Strip(fields, d.FilterFields, d.FilterChars)
	if row == nil {
		row = entity.Entity{}
	}
	if d.KeyGenerator != nil && entity.IsZeroKey(row[d.PrimaryKey]) {
		row[d.PrimaryKey] = d.KeyGenerator()
	}

	id, err := r.client.Upsert(ctx, d.Table, row, d.PrimaryKey)
	if err != nil {
		return nil, r.writeError("replace", row[d.PrimaryKey], err)
	}

	r.model.entities.Invalidate(ctx, d.Table, id)
	if err := r.reload(ctx, "replace", id); err != nil {
		return nil, err
	}
	r.model.refresh(ctx, id)
	return id, nil
}

// Update writes fields to the row identified by the primary key in fields,
// or by the snapshot's key, then reloads the snapshot. Protected columns are
// dropped from fields and the primary key itself is never rewritten.
func (r *Record) Update(ctx context.Context, fields entity.Entity) error {
	if err := r.checkWritable("update"); err != nil {
		return err
	}

	d := r.model.desc
	row := r.updatePayload(fields)

	id := fields.Get(d.PrimaryKey)
	if entity.IsZeroKey(id) {
		id = r.ID()
	}
	if entity.IsZeroKey(id) {
		return newError("update", d.Table, nil, ErrMissingPrimaryKey, nil)
	}

	if len(row) > 0 {
		where, err := r.build(criteria.Eq(d.PrimaryKey, id))
		if err != nil {
			return newError("update", d.Table, id, nil, err)
		}
		if _, err := r.client.Update(ctx, d.Table, row, where); err != nil {
			return r.writeError("update", id, err)
		}
	}

	r.model.entities.Invalidate(ctx, d.Table, id)
	if err := r.reload(ctx, "update", id); err != nil {
		return err
	}
	r.model.refresh(ctx, id)
	return nil
}

// UpdateWhere writes fields to every row matching c. Without force it fails
// with ErrUnsafeBatchUpdate before touching the store. A None criteria
// targets the record's own row, like Update. Every matched key is
// invalidated and refreshed.
func (r *Record) UpdateWhere(ctx context.Context, fields entity.Entity, c criteria.Criteria, force bool) (int64, error) {
	if err := r.checkWritable("update"); err != nil {
		return 0, err
	}
	if c.IsNone() {
		if err := r.Update(ctx, fields); err != nil {
			return 0, err
		}
		return 1, nil
	}

	d := r.model.desc
	if !force {
		return 0, newError("update", d.Table, nil, ErrUnsafeBatchUpdate, nil)
	}

	where, err := r.build(c)
	if err != nil {
		return 0, newError("update", d.Table, nil, nil, err)
	}
	if where.Query {
		return 0, newError("update", d.Table, nil, ErrUnsafeBatchUpdate,
			errors.New("templates cannot select rows to update"))
	}

	row := r.updatePayload(fields)
	delete(row, d.PrimaryKey)
	if len(row) == 0 {
		return 0, nil
	}

	matched, err := r.client.FetchAll(ctx, store.Select{Table: d.Table, Where: where})
	if err != nil {
		return 0, newError("update", d.Table, nil, nil, err)
	}

	n, err := r.client.Update(ctx, d.Table, row, where)
	if err != nil {
		return 0, r.writeError("update", nil, err)
	}

	own := entity.KeyString(r.ID())
	reloadOwn := false
	for _, id := range matched.Column(d.PrimaryKey) {
		r.model.entities.Invalidate(ctx, d.Table, id)
		r.model.refresh(ctx, id)
		if r.HasKey() && entity.KeyString(id) == own {
			reloadOwn = true
		}
	}
	if reloadOwn {
		if err := r.reload(ctx, "update", r.ID()); err != nil {
			return n, err
		}
	}
	return n, nil
}

// Save adds the snapshot when it has no primary key and updates it
// otherwise.
func (r *Record) Save(ctx context.Context) error {
	if !r.HasKey() {
		_, err := r.Add(ctx, r.entity)
		return err
	}
	return r.Update(ctx, r.entity)
}

// Delete removes the record's own row and empties the snapshot.
func (r *Record) Delete(ctx context.Context) error {
	return r.DeleteByID(ctx, nil)
}

// DeleteByID removes the row identified by id, falling back to the
// snapshot's key when id is zero. Deleting a row that does not exist is not
// an error.
func (r *Record) DeleteByID(ctx context.Context, id any) error {
	if err := r.checkWritable("delete"); err != nil {
		return err
	}

	d := r.model.desc
	if entity.IsZeroKey(id) {
		id = r.ID()
	}
	if entity.IsZeroKey(id) {
		return newError("delete", d.Table, nil, ErrMissingPrimaryKey, nil)
	}

	where, err := r.build(criteria.Eq(d.PrimaryKey, id))
	if err != nil {
		return newError("delete", d.Table, id, nil, err)
	}
	if _, err := r.client.Delete(ctx, d.Table, where); err != nil {
		return r.writeError("delete", id, err)
	}

	r.model.entities.Invalidate(ctx, d.Table, id)
	if r.HasKey() && entity.KeyString(r.ID()) == entity.KeyString(id) {
		r.entity = entity.Entity{}
	}
	r.model.refresh(ctx, id)
	return nil
}

// Increase adds step to column at the store and reloads the snapshot. A
// record without a primary key is left untouched.
func (r *Record) Increase(ctx context.Context, column string, step float64) error {
	if err := r.checkWritable("increase"); err != nil {
		return err
	}
	if !r.HasKey() {
		return nil
	}

	d := r.model.desc
	id := r.ID()
	where, err := r.build(criteria.Eq(d.PrimaryKey, id))
	if err != nil {
		return newError("increase", d.Table, id, nil, err)
	}

	var delta any = step
	if step == math.Trunc(step) {
		delta = int64(step)
	}
	if _, err := r.client.Increment(ctx, d.Table, column, delta, where); err != nil {
		return r.writeError("increase", id, err)
	}

	r.model.entities.Invalidate(ctx, d.Table, id)
	if err := r.reload(ctx, "increase", id); err != nil {
		return err
	}
	r.model.refresh(ctx, id)
	return nil
}

func (r *Record) updatePayload(fields entity.Entity) entity.Entity {
	d := r.model.desc
	row := entity.Strip(fields, d.FilterFields, d.FilterChars)
	row = entity.Without(row, d.ProtectedFields)
	if row == nil {
		return entity.Entity{}
	}
	delete(row, d.PrimaryKey)
	return row
}

// reload replaces the snapshot with the stored row identified by id.
func (r *Record) reload(ctx context.Context, op string, id any) error {
	e, err := r.model.fetchByID(ctx, r.client, id)
	if err != nil {
		return newError(op, r.model.desc.Table, id, nil, err)
	}
	if e == nil {
		r.entity = entity.Entity{}
		return newError(op, r.model.desc.Table, id, ErrEntityNotFound, nil)
	}
	r.entity = e
	return nil
}

func (r *Record) build(c criteria.Criteria) (criteria.Predicate, error) {
	return r.client.Builder().Build(r.model.desc.Table, c)
}

func (r *Record) checkWritable(op string) error {
	if r.client.Writable() {
		return nil
	}
	r.model.logger.Error("write attempted on read only connection",
		zap.String("op", op),
		zap.String("binding", r.client.Name()),
		zap.Any("id", r.ID()),
	)
	return newError(op, r.model.desc.Table, r.ID(), ErrReadOnly, nil)
}

func (r *Record) writeError(op string, id any, err error) error {
	if errors.Is(err, store.ErrReadOnly) {
		return newError(op, r.model.desc.Table, id, ErrReadOnly, err)
	}
	return newError(op, r.model.desc.Table, id, ErrStoreWriteFailed, err)
}
