package shmht

import "bytes"

// djb2 hashes key with the DJB2 rolling hash (h = h*33 + b), accumulated in
// a 64-bit word and truncated to 32 bits.
func djb2(key []byte) uint32 {
	hash := uint64(5381)
	for _, b := range key {
		hash = (hash << 5) + hash + uint64(b)
	}

	return uint32(hash)
}

// resolve maps key to a single slot index: the slot holding key, or the
// slot where key would be inserted.
//
// Probing starts at djb2(key) mod capacity and advances by 1, 2, 3, ... slots.
// It stops at an empty slot, at a removed slot when treatRemovedAsEmpty is
// set, or at a used slot whose key matches exactly.
//
// If the probe sequence wraps back to its start without stopping, every flag
// is reset to empty, the size counter is reset to zero and the start index
// is returned. All stored entries are lost when that happens.
func (t *Table) resolve(key []byte, treatRemovedAsEmpty bool) uint64 {
	capacity := t.capacity
	start := uint64(djb2(key)) % capacity

	idx := start
	for step := uint64(1); ; step++ {
		switch t.slots.flag(idx) {
		case flagEmpty:
			return idx
		case flagRemoved:
			if treatRemovedAsEmpty {
				return idx
			}
		case flagUsed:
			if bytes.Equal(key, decodeRecord(t.slots.keyRecord(idx))) {
				return idx
			}
		}

		idx = (idx + step) % capacity
		if idx == start {
			t.slots.resetFlags()
			t.setSize(0)

			return start
		}
	}
}
