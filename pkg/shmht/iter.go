package shmht

import "iter"

// Entry is one stored key/value pair. Both slices are copies.
type Entry struct {
	Key   []byte
	Value []byte
}

// Iterator walks occupied slots in index order.
//
// It is single-pass and forward-only; create a new one to rescan. It reads
// live state: changes at slots past the cursor are observed, changes at
// slots already passed are not. There is no snapshot isolation.
type Iterator struct {
	table *Table
	pos   int64 // last visited index, -1 before the first Next
}

// Iter returns an iterator positioned before the first slot.
func (t *Table) Iter() *Iterator {
	return &Iterator{table: t, pos: -1}
}

// Next advances to the next used slot and returns its entry.
// It returns false once no used slot remains or the table was detached.
func (it *Iterator) Next() (Entry, bool) {
	t := it.table
	if t.detached {
		return Entry{}, false
	}

	for i := uint64(it.pos + 1); i < t.capacity; i++ {
		if t.slots.flag(i) != flagUsed {
			continue
		}

		it.pos = int64(i)

		return Entry{
			Key:   cloneBytes(decodeRecord(t.slots.keyRecord(i))),
			Value: cloneBytes(decodeRecord(t.slots.valueRecord(i))),
		}, true
	}

	it.pos = int64(t.capacity)

	return Entry{}, false
}

// All yields every stored key/value pair in slot order using a fresh
// [Iterator]. The same live-view caveats apply.
//
//	for k, v := range table.All() {
//	    fmt.Printf("%s=%s\n", k, v)
//	}
func (t *Table) All() iter.Seq2[[]byte, []byte] {
	return func(yield func([]byte, []byte) bool) {
		it := t.Iter()

		for {
			e, ok := it.Next()
			if !ok || !yield(e.Key, e.Value) {
				return
			}
		}
	}
}
