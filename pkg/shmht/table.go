package shmht

import "fmt"

// Table is a handle on one attached region.
//
// A Table performs no locking and is not safe for concurrent use, Get
// included (see the package docs). Processes sharing a region must
// serialize all access to it.
type Table struct {
	region   []byte
	slots    slots
	capacity uint64
	detached bool
}

func newTable(region []byte, h *header) *Table {
	return &Table{
		region:   region,
		slots:    newSlots(region, h),
		capacity: h.Capacity,
	}
}

func (t *Table) size() uint64 {
	return byteOrder.Uint64(t.region[offSize:])
}

func (t *Table) setSize(n uint64) {
	byteOrder.PutUint64(t.region[offSize:], n)
}

// Len returns the number of stored entries.
func (t *Table) Len() int {
	if t.detached {
		return 0
	}

	return int(t.size())
}

// Cap returns the planned slot count. At most [MaxLoadFactor] of it can be
// filled with distinct keys.
func (t *Table) Cap() int {
	return int(t.capacity)
}

// Get returns a copy of the value stored for key.
// Returns [ErrNotFound] if key is absent.
func (t *Table) Get(key []byte) ([]byte, error) {
	if t.detached {
		return nil, ErrDetached
	}

	idx := t.resolve(key, false)
	if t.slots.flag(idx) != flagUsed {
		return nil, ErrNotFound
	}

	return cloneBytes(decodeRecord(t.slots.valueRecord(idx))), nil
}

// Has reports whether key is stored.
func (t *Table) Has(key []byte) bool {
	if t.detached {
		return false
	}

	return t.slots.flag(t.resolve(key, false)) == flagUsed
}

// Set stores value under key, overwriting any existing value in place.
//
// Returns [ErrItemTooLarge] if key is longer than [MaxKeyLen] or value is
// longer than [MaxValueLen], and [ErrTableOverloaded] if key is new and the
// table is already past [MaxLoadFactor]. Neither error changes the table.
func (t *Table) Set(key, value []byte) error {
	if t.detached {
		return ErrDetached
	}

	if !fitsRecord(len(key), keyRecordSize) || !fitsRecord(len(value), valueRecordSize) {
		return fmt.Errorf("key %d bytes (max %d), value %d bytes (max %d): %w",
			len(key), MaxKeyLen, len(value), MaxValueLen, ErrItemTooLarge)
	}

	idx := t.resolve(key, false)
	if t.slots.flag(idx) == flagUsed {
		encodeRecord(t.slots.valueRecord(idx), value)

		return nil
	}

	idx = t.resolve(key, true)

	size := t.size()
	if float64(t.capacity)*MaxLoadFactor < float64(size) {
		return fmt.Errorf("capacity=%d size=%d: %w", t.capacity, size, ErrTableOverloaded)
	}

	t.slots.setFlag(idx, flagUsed)
	encodeRecord(t.slots.keyRecord(idx), key)
	encodeRecord(t.slots.valueRecord(idx), value)
	t.setSize(size + 1)

	return nil
}

// Remove deletes key. The slot becomes a tombstone that later inserts reuse.
// Returns [ErrNotFound] if key is absent.
func (t *Table) Remove(key []byte) error {
	if t.detached {
		return ErrDetached
	}

	idx := t.resolve(key, false)
	if t.slots.flag(idx) != flagUsed {
		return ErrNotFound
	}

	t.slots.setFlag(idx, flagRemoved)

	if size := t.size(); size > 0 {
		t.setSize(size - 1)
	}

	return nil
}
