package criteria

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/schema"
)

// ErrUnknownOperator is returned for Op keys the builder does not understand.
var ErrUnknownOperator = errors.New("criteria: unknown operator")

// ErrTemplateFragment is returned when And was used on a Template.
var ErrTemplateFragment = errors.New("criteria: fragments cannot be appended to a template")

// Predicate is the store-executable form of a Criteria. SQL uses bun
// placeholders bound to Args. When Query is set SQL is a complete statement.
type Predicate struct {
	SQL   string
	Args  []any
	Query bool
}

// Empty reports whether the predicate filters nothing.
func (p Predicate) Empty() bool {
	return strings.TrimSpace(p.SQL) == ""
}

// Builder translates Criteria into Predicates for one SQL dialect.
type Builder struct {
	fmter schema.Formatter
}

// NewBuilder returns a Builder quoting identifiers with the given formatter,
// usually bun.DB.Formatter().
func NewBuilder(fmter schema.Formatter) *Builder {
	return &Builder{fmter: fmter}
}

// QuoteTable returns the dialect-quoted table identifier.
func (b *Builder) QuoteTable(table string) string {
	return b.fmter.FormatQuery("?", bun.Ident(table))
}

// Render formats a predicate or statement with its arguments inlined. It is
// meant for logging and debugging, never for execution.
func (b *Builder) Render(sql string, args ...any) string {
	return b.fmter.FormatQuery(sql, args...)
}

// Build turns c into a predicate over table.
func (b *Builder) Build(table string, c Criteria) (Predicate, error) {
	switch c.kind {
	case KindNone:
		return Predicate{}, nil
	case KindTemplate:
		if len(c.fragments) > 0 {
			return Predicate{}, ErrTemplateFragment
		}
		sql := strings.ReplaceAll(c.raw, TableToken, b.QuoteTable(table))
		return Predicate{SQL: sql, Args: c.args, Query: true}, nil
	case KindRaw:
		parts := []string{"(" + c.raw + ")"}
		args := append([]any(nil), c.args...)
		parts, args = appendFragments(parts, args, c.fragments)
		if len(parts) == 1 {
			return Predicate{SQL: c.raw, Args: args}, nil
		}
		return Predicate{SQL: strings.Join(parts, " AND "), Args: args}, nil
	case KindWhere:
		return b.buildWhere(c)
	}
	return Predicate{}, fmt.Errorf("criteria: unsupported kind %s", c.kind)
}

func (b *Builder) buildWhere(c Criteria) (Predicate, error) {
	columns := make([]string, 0, len(c.fields))
	for col := range c.fields {
		columns = append(columns, col)
	}
	sort.Strings(columns)

	var (
		parts []string
		args  []any
	)
	for _, col := range columns {
		value := c.fields[col]
		op, isOp := value.(Op)
		if !isOp {
			op = Op{"=": value}
		}

		operators := make([]string, 0, len(op))
		for k := range op {
			operators = append(operators, k)
		}
		sort.Strings(operators)

		for _, operator := range operators {
			sql, opArgs, err := comparison(col, operator, op[operator], c.unescaped)
			if err != nil {
				return Predicate{}, err
			}
			parts = append(parts, sql)
			args = append(args, opArgs...)
		}
	}

	parts, args = appendFragments(parts, args, c.fragments)
	if len(parts) == 0 {
		return Predicate{}, nil
	}
	return Predicate{SQL: strings.Join(parts, " AND "), Args: args}, nil
}

func appendFragments(parts []string, args []any, fragments []fragment) ([]string, []any) {
	for _, f := range fragments {
		if strings.TrimSpace(f.SQL) == "" {
			continue
		}
		parts = append(parts, "("+f.SQL+")")
		args = append(args, f.Args...)
	}
	return parts, args
}

func comparison(column, operator string, value any, unescaped bool) (string, []any, error) {
	ident := bun.Ident(column)
	op := strings.ToLower(strings.Join(strings.Fields(operator), " "))

	switch op {
	case "=", "==", "eq":
		if value == nil {
			return "? IS NULL", []any{ident}, nil
		}
		if isList(value) {
			return in(ident, "IN", value, unescaped)
		}
		return "? = ?", []any{ident, bind(value, unescaped)}, nil
	case "!=", "<>", "ne":
		if value == nil {
			return "? IS NOT NULL", []any{ident}, nil
		}
		if isList(value) {
			return in(ident, "NOT IN", value, unescaped)
		}
		return "? <> ?", []any{ident, bind(value, unescaped)}, nil
	case ">", ">=", "<", "<=":
		return "? " + op + " ?", []any{ident, bind(value, unescaped)}, nil
	case "like":
		return "? LIKE ?", []any{ident, bind(value, unescaped)}, nil
	case "not like":
		return "? NOT LIKE ?", []any{ident, bind(value, unescaped)}, nil
	case "in":
		return in(ident, "IN", value, unescaped)
	case "not in":
		return in(ident, "NOT IN", value, unescaped)
	}
	return "", nil, fmt.Errorf("%w %q on column %q", ErrUnknownOperator, operator, column)
}

func in(ident bun.Ident, op string, value any, unescaped bool) (string, []any, error) {
	if !isList(value) {
		value = []any{value}
	}
	rv := reflect.ValueOf(value)
	if rv.Len() == 0 {
		if op == "IN" {
			return "1 = 0", nil, nil
		}
		return "1 = 1", nil, nil
	}
	if unescaped {
		items := make([]string, rv.Len())
		for i := range items {
			items[i] = literal(rv.Index(i).Interface())
		}
		return "? " + op + " (?)", []any{ident, bun.Safe(strings.Join(items, ", "))}, nil
	}
	return "? " + op + " (?)", []any{ident, bun.In(value)}, nil
}

func bind(value any, unescaped bool) any {
	if !unescaped {
		return value
	}
	return bun.Safe(literal(value))
}

func literal(value any) string {
	switch v := value.(type) {
	case nil:
		return "NULL"
	case string:
		return "'" + v + "'"
	case []byte:
		return "'" + string(v) + "'"
	case bool:
		if v {
			return "TRUE"
		}
		return "FALSE"
	}
	return fmt.Sprint(value)
}

func isList(value any) bool {
	if value == nil {
		return false
	}
	if _, ok := value.([]byte); ok {
		return false
	}
	kind := reflect.TypeOf(value).Kind()
	return kind == reflect.Slice || kind == reflect.Array
}
