package record

import (
	"context"
	"errors"

	"github.com/goliatone/go-record-cache/entity"
)

var errNotStatement = errors.New("criteria is not a complete statement")

// Slim returns a new entity holding only columns, or the descriptor's
// SlimFields when none are given. Without either it returns a copy of e.
func (m *Model) Slim(e entity.Entity, columns ...string) entity.Entity {
	if len(columns) == 0 {
		columns = m.desc.SlimFields
	}
	if len(columns) == 0 {
		return e.Clone()
	}
	return entity.Slim(e, columns)
}

// Simple returns e without the descriptor's SimpleExclude columns.
func (m *Model) Simple(e entity.Entity) entity.Entity {
	return entity.Without(e, m.desc.SimpleExclude)
}

// Snapshot reloads the record's own row and returns its slim projection.
// A record without a key yields the slim projection of its current,
// unsaved snapshot.
func (r *Record) Snapshot(ctx context.Context) (entity.Entity, error) {
	return r.SnapshotByID(ctx, nil)
}

// SnapshotByID loads the row identified by id (or the record's own key when
// id is zero) into the snapshot and returns its slim projection. When no
// row matches, the current snapshot is used if it is not empty.
func (r *Record) SnapshotByID(ctx context.Context, id any) (entity.Entity, error) {
	if entity.IsZeroKey(id) {
		id = r.ID()
	}
	if !entity.IsZeroKey(id) {
		e, err := r.model.fetchByID(ctx, r.client, id)
		if err != nil {
			return nil, newError("snapshot", r.model.desc.Table, id, nil, err)
		}
		if e != nil {
			r.entity = e
			return r.model.Slim(e), nil
		}
	}
	if r.entity.Empty() {
		return nil, newError("snapshot", r.model.desc.Table, id, ErrEntityNotFound, nil)
	}
	return r.model.Slim(r.entity), nil
}
