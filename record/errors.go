package record

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEntityNotFound means a keyed fetch matched no row.
	ErrEntityNotFound = errors.New("entity not found")

	// ErrReadOnly means a mutation was attempted on a replica binding.
	ErrReadOnly = errors.New("record is bound to a read only connection")

	// ErrUnsafeBatchUpdate means a criteria update was attempted without
	// the force flag.
	ErrUnsafeBatchUpdate = errors.New("criteria update requires force")

	// ErrMissingPrimaryKey means neither the payload nor the record carries
	// a primary key.
	ErrMissingPrimaryKey = errors.New("missing primary key")

	// ErrStoreWriteFailed means the store rejected an insert, update or
	// delete. The cause is wrapped alongside it.
	ErrStoreWriteFailed = errors.New("store write failed")
)

// Error carries the operation context of a failure. errors.Is matches both
// Kind and the wrapped cause.
type Error struct {
	Op    string
	Table string
	ID    any
	Kind  error
	Err   error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("record: ")
	b.WriteString(e.Op)
	if e.Table != "" {
		b.WriteString(" ")
		b.WriteString(e.Table)
	}
	if e.ID != nil {
		fmt.Fprintf(&b, " id=%v", e.ID)
	}
	if e.Kind != nil {
		b.WriteString(": ")
		b.WriteString(e.Kind.Error())
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes Kind and Err to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

func newError(op, table string, id any, kind, cause error) *Error {
	return &Error{Op: op, Table: table, ID: id, Kind: kind, Err: cause}
}
