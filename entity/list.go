package entity

import (
	"fmt"
	"sort"
	"strings"
)

// List is an ordered sequence of row snapshots.
type List []Entity

// Column collects the values of column across all rows.
func (l List) Column(column string) []any {
	out := make([]any, 0, len(l))
	for _, e := range l {
		out = append(out, e.Get(column))
	}
	return out
}

// Clone copies every row of the list.
func (l List) Clone() List {
	if l == nil {
		return nil
	}
	out := make(List, len(l))
	for i, e := range l {
		out[i] = e.Clone()
	}
	return out
}

// Sort returns a copy of l ordered by column. Numeric values compare
// numerically, everything else compares by its string form.
func Sort(l List, column string, desc bool) List {
	out := make(List, len(l))
	copy(out, l)
	sort.SliceStable(out, func(i, j int) bool {
		c := compare(out[i].Get(column), out[j].Get(column))
		if desc {
			return c > 0
		}
		return c < 0
	})
	return out
}

func compare(a, b any) int {
	fa, okA := toFloat(a)
	fb, okB := toFloat(b)
	if okA && okB {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	}
	return strings.Compare(KeyString(a), KeyString(b))
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// Index is a list of rows addressable by primary-key value. When the rows do
// not carry the key column (custom projections) the index is unkeyed and only
// the ordered rows are available.
type Index struct {
	pk    string
	keys  []string
	byKey map[string]Entity
	rows  List
}

// NewIndex builds an index over rows using the pk column. Rows sharing a key
// collapse into the last one seen, keeping the position of the first.
func NewIndex(rows List, pk string) *Index {
	idx := &Index{pk: pk}
	if len(rows) == 0 {
		idx.byKey = map[string]Entity{}
		return idx
	}
	if IsZeroKey(rows[0].Get(pk)) {
		idx.rows = rows
		return idx
	}

	idx.byKey = make(map[string]Entity, len(rows))
	for _, row := range rows {
		k := KeyString(row.Get(pk))
		if _, seen := idx.byKey[k]; !seen {
			idx.keys = append(idx.keys, k)
		}
		idx.byKey[k] = row
	}
	return idx
}

// Keyed reports whether rows are addressable by primary key.
func (i *Index) Keyed() bool {
	return i.byKey != nil
}

// Len returns the number of rows in the index.
func (i *Index) Len() int {
	if i.Keyed() {
		return len(i.keys)
	}
	return len(i.rows)
}

// Keys returns the primary-key values in result order.
func (i *Index) Keys() []string {
	return append([]string(nil), i.keys...)
}

// Get returns the row whose primary key equals id.
func (i *Index) Get(id any) (Entity, bool) {
	if !i.Keyed() {
		return nil, false
	}
	e, ok := i.byKey[KeyString(id)]
	return e, ok
}

// Rows returns the rows in result order.
func (i *Index) Rows() List {
	if !i.Keyed() {
		return i.rows
	}
	out := make(List, 0, len(i.keys))
	for _, k := range i.keys {
		out = append(out, i.byKey[k])
	}
	return out
}

// String implements fmt.Stringer for debugging output.
func (i *Index) String() string {
	return fmt.Sprintf("entity.Index{pk:%s len:%d keyed:%t}", i.pk, i.Len(), i.Keyed())
}
