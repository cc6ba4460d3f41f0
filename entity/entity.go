// Package entity holds the in-memory row snapshot used by the record layer.
//
// An Entity is a plain column to value mapping. Values are whatever the store
// driver or the cache codec produced: int64, float64, string, bool, []byte,
// time.Time or nil. Helpers in this package never mutate their input; they
// return fresh maps so a snapshot is only ever owned by one holder.
package entity

import (
	"fmt"
	"sort"
	"strings"
)

// Entity is the snapshot of a single row.
type Entity map[string]any

// Get returns the value stored for column, or nil.
func (e Entity) Get(column string) any {
	if e == nil {
		return nil
	}
	return e[column]
}

// Lookup returns the value stored for column and whether the column is present.
func (e Entity) Lookup(column string) (any, bool) {
	if e == nil {
		return nil, false
	}
	v, ok := e[column]
	return v, ok
}

// Set stores value under column. Calling Set on a nil Entity panics, use
// Record.Set or initialize the map first.
func (e Entity) Set(column string, value any) {
	e[column] = value
}

// Empty reports whether the entity carries no columns.
func (e Entity) Empty() bool {
	return len(e) == 0
}

// Clone returns a shallow copy of the entity.
func (e Entity) Clone() Entity {
	if e == nil {
		return nil
	}
	out := make(Entity, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

// Columns returns the sorted column names present in the entity.
func (e Entity) Columns() []string {
	cols := make([]string, 0, len(e))
	for k := range e {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}

// Slim returns a new entity holding exactly the given columns. Columns missing
// from e are present in the result with a nil value.
func Slim(e Entity, columns []string) Entity {
	out := make(Entity, len(columns))
	for _, col := range columns {
		out[col] = e.Get(col)
	}
	return out
}

// Without returns a copy of e with the given columns removed.
func Without(e Entity, columns []string) Entity {
	out := e.Clone()
	if out == nil {
		return nil
	}
	for _, col := range columns {
		delete(out, col)
	}
	return out
}

// Strip removes every occurrence of chars from the listed fields of e and
// returns the result as a copy. Only string and []byte values are touched.
func Strip(e Entity, fields []string, chars []string) Entity {
	out := e.Clone()
	if len(fields) == 0 || len(chars) == 0 || out == nil {
		return out
	}

	pairs := make([]string, 0, len(chars)*2)
	for _, c := range chars {
		pairs = append(pairs, c, "")
	}
	replacer := strings.NewReplacer(pairs...)

	for _, field := range fields {
		switch v := out[field].(type) {
		case string:
			out[field] = replacer.Replace(v)
		case []byte:
			out[field] = replacer.Replace(string(v))
		}
	}
	return out
}

// KeyString renders a primary-key value as used in cache keys and indexes.
func KeyString(v any) string {
	switch k := v.(type) {
	case nil:
		return ""
	case string:
		return k
	case []byte:
		return string(k)
	default:
		return fmt.Sprint(k)
	}
}

// IsZeroKey reports whether v cannot identify a persisted row: nil, an empty
// string or a numeric zero.
func IsZeroKey(v any) bool {
	switch k := v.(type) {
	case nil:
		return true
	case string:
		return k == ""
	case []byte:
		return len(k) == 0
	case int:
		return k == 0
	case int8:
		return k == 0
	case int16:
		return k == 0
	case int32:
		return k == 0
	case int64:
		return k == 0
	case uint:
		return k == 0
	case uint8:
		return k == 0
	case uint16:
		return k == 0
	case uint32:
		return k == 0
	case uint64:
		return k == 0
	case float32:
		return k == 0
	case float64:
		return k == 0
	}
	return false
}
