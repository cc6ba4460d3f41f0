package record

import (
	"context"
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
)

// DefaultPrimaryKey is the primary key column used when a Descriptor leaves
// it empty.
const DefaultPrimaryKey = "id"

// DefaultProtectedFields are never written by Update or UpdateWhere; the
// database maintains them.
var DefaultProtectedFields = []string{"update_time"}

// DefaultFilterChars are stripped from FilterFields before every write.
var DefaultFilterChars = []string{
	" ", "'", "\r", "\n", "\t", `"`,
	"(", ")", "（", "）", ",", "，", "“", "”",
}

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// KeyGenerator produces primary keys client side for tables without
// auto-increment.
type KeyGenerator func() any

// UUIDKeys generates random UUID string keys.
func UUIDKeys() any {
	return uuid.NewString()
}

// Descriptor is the static configuration of one entity type.
type Descriptor struct {
	// Name is the entity type name. It derives Table when Table is empty.
	Name string

	Table      string
	PrimaryKey string

	// FilterFields lose every FilterChars occurrence before a write.
	FilterFields []string
	FilterChars  []string

	// SlimFields is the default projection of Model.Slim.
	SlimFields []string

	// SimpleExclude lists the columns Model.Simple drops.
	SimpleExclude []string

	// ProtectedFields are stripped from update payloads.
	ProtectedFields []string

	KeyGenerator KeyGenerator
}

// RefreshHook lets an entity type refresh its own derived caches after a
// mutation of the row identified by id.
type RefreshHook interface {
	Refresh(ctx context.Context, id any) error
}

// RefreshFunc adapts a function to RefreshHook.
type RefreshFunc func(ctx context.Context, id any) error

// Refresh implements RefreshHook.
func (f RefreshFunc) Refresh(ctx context.Context, id any) error {
	return f(ctx, id)
}

// withDefaults fills the derived and default values.
func (d Descriptor) withDefaults() Descriptor {
	if d.Table == "" {
		d.Table = tableName(d.Name)
	}
	if d.PrimaryKey == "" {
		d.PrimaryKey = DefaultPrimaryKey
	}
	if d.ProtectedFields == nil {
		d.ProtectedFields = append([]string(nil), DefaultProtectedFields...)
	}
	if d.FilterChars == nil {
		d.FilterChars = append([]string(nil), DefaultFilterChars...)
	}
	return d
}

// Validate checks the descriptor after defaults are applied.
func (d Descriptor) Validate() error {
	d = d.withDefaults()
	return validation.ValidateStruct(&d,
		validation.Field(&d.Table, validation.Required, validation.Match(identifier)),
		validation.Field(&d.PrimaryKey, validation.Required, validation.Match(identifier)),
		validation.Field(&d.FilterFields, validation.Each(validation.Required, validation.Match(identifier))),
		validation.Field(&d.SlimFields, validation.Each(validation.Required, validation.Match(identifier))),
		validation.Field(&d.ProtectedFields, validation.Each(validation.Required, validation.Match(identifier))),
	)
}
