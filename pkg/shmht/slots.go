package shmht

// Slot flag values stored in the flag array.
const (
	flagEmpty   byte = 0
	flagUsed    byte = 1
	flagRemoved byte = 2
)

// slots gives bounds-checked access to the flag and bucket arrays of a
// region. Offsets are taken from the header once and never recomputed.
type slots struct {
	flags   []byte // one byte per slot
	buckets []byte // capacity * BucketSize bytes
}

func newSlots(region []byte, h *header) slots {
	return slots{
		flags:   region[h.FlagOffset : h.FlagOffset+h.Capacity],
		buckets: region[h.BucketOffset : h.BucketOffset+h.Capacity*BucketSize],
	}
}

func (s slots) flag(i uint64) byte {
	return s.flags[i]
}

func (s slots) setFlag(i uint64, f byte) {
	s.flags[i] = f
}

// resetFlags marks every slot empty.
func (s slots) resetFlags() {
	clear(s.flags)
}

func (s slots) bucket(i uint64) []byte {
	off := i * BucketSize
	return s.buckets[off : off+BucketSize : off+BucketSize]
}

// keyRecord returns the key record area of bucket i.
func (s slots) keyRecord(i uint64) []byte {
	return s.bucket(i)[:keyRecordSize]
}

// valueRecord returns the value record area of bucket i.
func (s slots) valueRecord(i uint64) []byte {
	return s.bucket(i)[keyRecordSize:]
}

// fitsRecord reports whether a payload of n bytes can be encoded into a
// record of the given budget. Prefix plus payload must be strictly smaller.
func fitsRecord(n, budget int) bool {
	return recordPrefixSize+n < budget
}

// encodeRecord writes a length-prefixed payload into rec.
// The caller has checked the payload fits with [fitsRecord].
func encodeRecord(rec, payload []byte) {
	byteOrder.PutUint32(rec, uint32(len(payload)))
	copy(rec[recordPrefixSize:], payload)
}

// decodeRecord returns the payload stored in rec without copying.
// A stored length larger than the record is clamped to it.
func decodeRecord(rec []byte) []byte {
	n := uint64(byteOrder.Uint32(rec))

	limit := uint64(len(rec) - recordPrefixSize)
	if n > limit {
		n = limit
	}

	return rec[recordPrefixSize : recordPrefixSize+n]
}

// cloneBytes copies b out of the region so callers never alias shared memory.
func cloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)

	return out
}
