// Package criteria describes row filters and turns them into SQL predicates.
//
// # Overview
//
// A Criteria is one of four shapes:
//
//   - None: no filter, the operation targets the whole table
//   - Where: a structured column to value mapping joined with AND
//   - Raw: a predicate fragment used verbatim
//   - Template: a complete statement carrying the {table} token
//
// Structured values are always bound as query arguments and escaped by bun.
// The only ways to get unescaped text into a statement are the explicitly named
// Raw, Template and Unescaped escape hatches.
//
// # Structured values
//
//	criteria.Where(criteria.Map{
//		"team":   "ops",                       // "team" = 'ops'
//		"id":     []int64{1, 2, 3},            // "id" IN (1, 2, 3)
//		"closed": nil,                         // "closed" IS NULL
//		"score":  criteria.Op{">=": 10},       // "score" >= 10
//		"name":   criteria.Op{"like": "jo%"},  // "name" LIKE 'jo%'
//	})
//
// Entries are emitted sorted by column so the same mapping always yields the
// same predicate. An empty mapping degrades to None.
package criteria

import (
	"fmt"
	"strings"
)

// TableToken is replaced with the quoted table name inside templates.
const TableToken = "{table}"

// Kind identifies the shape of a Criteria.
type Kind uint8

const (
	KindNone Kind = iota
	KindWhere
	KindRaw
	KindTemplate
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindWhere:
		return "where"
	case KindRaw:
		return "raw"
	case KindTemplate:
		return "template"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Map is a structured filter: column to value, slice or Op.
type Map map[string]any

// Op holds operator to value comparisons for a single column, e.g.
// Op{">": 1, "<": 10}.
type Op map[string]any

type fragment struct {
	SQL  string
	Args []any
}

// Criteria is an immutable filter description. The zero value is None.
type Criteria struct {
	kind      Kind
	fields    Map
	fragments []fragment
	raw       string
	args      []any
	unescaped bool
}

// None returns a criteria that matches every row.
func None() Criteria {
	return Criteria{}
}

// Where returns a structured criteria. An empty mapping is None.
func Where(m Map) Criteria {
	if len(m) == 0 {
		return None()
	}
	fields := make(Map, len(m))
	for k, v := range m {
		fields[k] = v
	}
	return Criteria{kind: KindWhere, fields: fields}
}

// Eq is shorthand for Where(Map{column: value}).
func Eq(column string, value any) Criteria {
	return Where(Map{column: value})
}

// Raw returns a criteria whose predicate is fragment, verbatim. Placeholders in
// fragment are bound to args. The caller is responsible for its safety.
func Raw(fragment string, args ...any) Criteria {
	if strings.TrimSpace(fragment) == "" {
		return None()
	}
	return Criteria{kind: KindRaw, raw: fragment, args: args}
}

// Template returns a criteria holding a complete statement. Every TableToken in
// query is substituted with the quoted table name; the statement bypasses the
// record layer's own SELECT wrapping.
func Template(query string, args ...any) Criteria {
	return Criteria{kind: KindTemplate, raw: query, args: args}
}

// And appends a raw fragment to a None, Where or Raw criteria. Appending to a
// Template is reported by Build.
func (c Criteria) And(sql string, args ...any) Criteria {
	out := c
	if out.kind == KindNone {
		out.kind = KindWhere
	}
	out.fragments = append(append([]fragment(nil), c.fragments...), fragment{SQL: sql, Args: args})
	return out
}

// Unescaped returns a copy whose structured values are inlined rather than
// bound. Strings are quoted but not escaped.
func (c Criteria) Unescaped() Criteria {
	out := c
	out.unescaped = true
	return out
}

// Kind returns the criteria shape.
func (c Criteria) Kind() Kind {
	return c.kind
}

// IsNone reports whether the criteria matches every row.
func (c Criteria) IsNone() bool {
	return c.kind == KindNone
}

// IsTemplate reports whether the criteria is a complete statement.
func (c Criteria) IsTemplate() bool {
	return c.kind == KindTemplate
}

// CacheKeyPart renders a stable textual form used when hashing query cache keys.
func (c Criteria) CacheKeyPart() string {
	// fmt prints maps with sorted keys, which keeps this deterministic.
	return fmt.Sprintf("%s|%v|%v|%q|%v|%t", c.kind, c.fields, c.fragments, c.raw, c.args, c.unescaped)
}

// String implements fmt.Stringer.
func (c Criteria) String() string {
	return "criteria(" + c.CacheKeyPart() + ")"
}
