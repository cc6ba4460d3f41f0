package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlim(t *testing.T) {
	e := Entity{"a": 1, "b": "two", "c": 3.0, "d": nil}

	got := Slim(e, []string{"a", "b"})
	assert.Equal(t, Entity{"a": 1, "b": "two"}, got)

	got["a"] = 99
	assert.Equal(t, 1, e["a"], "slim must not alias the source")

	missing := Slim(e, []string{"a", "zzz"})
	assert.Equal(t, Entity{"a": 1, "zzz": nil}, missing)
}

func TestStrip(t *testing.T) {
	chars := []string{" ", "'", "(", ")", "，"}
	e := Entity{
		"name":  "Jo hn's (x)，",
		"raw":   []byte("a b"),
		"count": 5,
		"other": "keep me",
	}

	got := Strip(e, []string{"name", "raw", "count"}, chars)

	assert.Equal(t, "Johnsx", got["name"])
	assert.Equal(t, "ab", got["raw"])
	assert.Equal(t, 5, got["count"])
	assert.Equal(t, "keep me", got["other"])
	assert.Equal(t, "Jo hn's (x)，", e["name"], "strip must not mutate input")
}

func TestWithout(t *testing.T) {
	e := Entity{"id": 1, "password": "x", "name": "n"}
	assert.Equal(t, Entity{"id": 1, "name": "n"}, Without(e, []string{"password"}))
	assert.Nil(t, Without(nil, []string{"x"}))
}

func TestIsZeroKey(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want bool
	}{
		{"nil", nil, true},
		{"empty string", "", true},
		{"zero int64", int64(0), true},
		{"zero float", 0.0, true},
		{"positive int", 7, false},
		{"uuid string", "c0ffee", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsZeroKey(tt.in))
		})
	}
}

func TestKeyString(t *testing.T) {
	assert.Equal(t, "42", KeyString(int64(42)))
	assert.Equal(t, "42", KeyString(42))
	assert.Equal(t, "abc", KeyString([]byte("abc")))
	assert.Equal(t, "", KeyString(nil))
}

func TestSort(t *testing.T) {
	rows := List{
		{"id": int64(1), "score": 10.5, "name": "b"},
		{"id": int64(2), "score": int64(3), "name": "c"},
		{"id": int64(3), "score": int64(20), "name": "a"},
	}

	asc := Sort(rows, "score", false)
	assert.Equal(t, []any{int64(2), int64(1), int64(3)}, asc.Column("id"))

	desc := Sort(rows, "name", true)
	assert.Equal(t, []any{int64(2), int64(1), int64(3)}, desc.Column("id"))

	assert.Equal(t, int64(1), rows[0]["id"], "sort must not reorder the input")
}

func TestIndex(t *testing.T) {
	rows := List{
		{"id": int64(5), "name": "five"},
		{"id": int64(3), "name": "three"},
		{"id": int64(5), "name": "five again"},
	}

	idx := NewIndex(rows, "id")
	require.True(t, idx.Keyed())
	assert.Equal(t, 2, idx.Len())
	assert.Equal(t, []string{"5", "3"}, idx.Keys())

	got, ok := idx.Get(5)
	require.True(t, ok)
	assert.Equal(t, "five again", got["name"])

	assert.Equal(t, []any{"five again", "three"}, idx.Rows().Column("name"))
}

func TestIndex_Unkeyed(t *testing.T) {
	rows := List{{"total": int64(3)}, {"total": int64(4)}}

	idx := NewIndex(rows, "id")
	assert.False(t, idx.Keyed())
	assert.Equal(t, 2, idx.Len())
	_, ok := idx.Get(1)
	assert.False(t, ok)
	assert.Equal(t, rows, idx.Rows())
}

func TestIndex_Empty(t *testing.T) {
	idx := NewIndex(nil, "id")
	assert.True(t, idx.Keyed())
	assert.Equal(t, 0, idx.Len())
	assert.Empty(t, idx.Rows())
}
