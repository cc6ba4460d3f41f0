package entitycache

import "github.com/goliatone/go-record-cache/entity"

// Buffer is the unit of work tier of the keyed entity cache. It is not safe
// for concurrent use.
type Buffer struct {
	enabled bool
	items   map[string]entity.Entity
}

// NewBuffer returns an enabled, empty buffer.
func NewBuffer() *Buffer {
	return &Buffer{enabled: true, items: make(map[string]entity.Entity)}
}

// Enabled reports whether the buffer stores anything.
func (b *Buffer) Enabled() bool {
	return b.enabled
}

// SetEnabled turns the buffer on or off. Turning it off drops its contents.
func (b *Buffer) SetEnabled(on bool) {
	b.enabled = on
	if !on {
		b.Clear()
	}
}

// Get returns a copy of the entity stored under key.
func (b *Buffer) Get(key string) (entity.Entity, bool) {
	if !b.enabled {
		return nil, false
	}
	e, ok := b.items[key]
	if !ok {
		return nil, false
	}
	return e.Clone(), true
}

// Put stores a copy of e under key.
func (b *Buffer) Put(key string, e entity.Entity) {
	if !b.enabled {
		return
	}
	b.items[key] = e.Clone()
}

// Delete removes key.
func (b *Buffer) Delete(key string) {
	delete(b.items, key)
}

// Clear drops every entry.
func (b *Buffer) Clear() {
	clear(b.items)
}

// Len returns the number of entries.
func (b *Buffer) Len() int {
	return len(b.items)
}
