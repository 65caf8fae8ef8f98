// Package cacher puts a typed, map-like facade with a write-back buffer in
// front of a shmht table.
//
// Reads go to the buffer first and fall back to the table; decoded values are
// kept in the buffer. Writes only touch the buffer until [Cacher.WriteBack]
// (or [Cacher.Close]) stores them in the table, so the table is not changed
// by Set until then.
package cacher

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/calvinalkan/shmht/pkg/shmht"
)

// ErrClosed indicates the [Cacher] has already been closed.
var ErrClosed = errors.New("cacher: closed")

// Cacher is a typed view over a table. It is safe for concurrent use within
// one process; it does not coordinate with other processes.
type Cacher[V any] struct {
	mu     sync.Mutex
	table  *shmht.Table
	codec  Codec[V]
	buf    map[string]V
	closed bool
}

// New returns a Cacher over table. The table stays owned by the caller.
func New[V any](table *shmht.Table, codec Codec[V]) *Cacher[V] {
	return &Cacher[V]{
		table: table,
		codec: codec,
		buf:   make(map[string]V),
	}
}

// Get returns the value for key. Returns an error matching
// [shmht.ErrNotFound] if neither the buffer nor the table holds it.
func (c *Cacher[V]) Get(key string) (V, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V

	if c.closed {
		return zero, ErrClosed
	}

	if v, ok := c.buf[key]; ok {
		return v, nil
	}

	data, err := c.table.Get([]byte(key))
	if err != nil {
		return zero, fmt.Errorf("get %q: %w", key, err)
	}

	v, err := c.codec.Unmarshal(data)
	if err != nil {
		return zero, fmt.Errorf("decode %q: %w", key, err)
	}

	c.buf[key] = v

	return v, nil
}

// Has reports whether key is present. The value is loaded into the buffer.
func (c *Cacher[V]) Has(key string) bool {
	_, err := c.Get(key)

	return err == nil
}

// Set buffers v under key. The table is written on [Cacher.WriteBack].
func (c *Cacher[V]) Set(key string, v V) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}

	c.buf[key] = v

	return nil
}

// Update buffers every entry of m.
func (c *Cacher[V]) Update(m map[string]V) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}

	maps.Copy(c.buf, m)

	return nil
}

// Delete removes key from the buffer and the table. Returns an error
// matching [shmht.ErrNotFound] only if neither held it.
func (c *Cacher[V]) Delete(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}

	_, buffered := c.buf[key]
	delete(c.buf, key)

	err := c.table.Remove([]byte(key))
	if err != nil {
		if buffered && errors.Is(err, shmht.ErrNotFound) {
			return nil
		}

		return fmt.Errorf("delete %q: %w", key, err)
	}

	return nil
}

// WriteBack encodes every buffered value and stores it in the table. It
// goes in key order and stops at the first failure; entries already written
// stay written.
func (c *Cacher[V]) WriteBack() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}

	return c.writeBackLocked()
}

func (c *Cacher[V]) writeBackLocked() error {
	for _, key := range slices.Sorted(maps.Keys(c.buf)) {
		data, err := c.codec.Marshal(c.buf[key])
		if err != nil {
			return fmt.Errorf("encode %q: %w", key, err)
		}

		err = c.table.Set([]byte(key), data)
		if err != nil {
			return fmt.Errorf("write back %q: %w", key, err)
		}
	}

	return nil
}

// ForEach writes back, then calls fn for every entry in the table in slot
// order. Iteration stops when fn returns false.
func (c *Cacher[V]) ForEach(fn func(key string, v V) bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}

	err := c.writeBackLocked()
	if err != nil {
		return err
	}

	for k, data := range c.table.All() {
		v, err := c.codec.Unmarshal(data)
		if err != nil {
			return fmt.Errorf("decode %q: %w", k, err)
		}

		if !fn(string(k), v) {
			return nil
		}
	}

	return nil
}

// ToMap writes back and returns every table entry decoded.
func (c *Cacher[V]) ToMap() (map[string]V, error) {
	m := make(map[string]V)

	err := c.ForEach(func(key string, v V) bool {
		m[key] = v

		return true
	})
	if err != nil {
		return nil, err
	}

	return m, nil
}

// Close writes back buffered values and releases the buffer. The table is
// not detached. Writing back is attempted once; the Cacher is closed even
// if it fails.
func (c *Cacher[V]) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}

	err := c.writeBackLocked()
	c.closed = true
	c.buf = nil

	return err
}
