package shmht

import (
	"encoding/binary"
	"fmt"
)

// magic marks an initialized region.
const magic uint32 = 0xBFBF

// Header field offsets (bytes from region start).
const (
	offMagic        = 0x00 // uint32
	offRefCount     = 0x08 // uint64
	offOrigCapacity = 0x10 // uint64
	offCapacity     = 0x18 // uint64
	offSize         = 0x20 // uint64
	offFlagOffset   = 0x28 // uint64
	offBucketOffset = 0x30 // uint64
	headerFieldsEnd = 0x38
)

// Compile-time check that the logical header fits its reserved span.
var _ [HeaderSize - headerFieldsEnd]struct{}

// byteOrder is native: regions are not portable across endianness.
var byteOrder = binary.NativeEndian

// header mirrors the control block fields.
type header struct {
	Magic        uint32
	RefCount     uint64
	OrigCapacity uint64
	Capacity     uint64
	Size         uint64
	FlagOffset   uint64
	BucketOffset uint64
}

// newHeader builds the control block of a freshly initialized table.
func newHeader(requested, capacity uint64) header {
	return header{
		Magic:        magic,
		RefCount:     0,
		OrigCapacity: requested,
		Capacity:     capacity,
		Size:         0,
		FlagOffset:   HeaderSize,
		BucketOffset: HeaderSize + flagSpan(capacity),
	}
}

// writeHeader encodes h into the first bytes of region.
func writeHeader(region []byte, h *header) {
	byteOrder.PutUint32(region[offMagic:], h.Magic)
	byteOrder.PutUint64(region[offRefCount:], h.RefCount)
	byteOrder.PutUint64(region[offOrigCapacity:], h.OrigCapacity)
	byteOrder.PutUint64(region[offCapacity:], h.Capacity)
	byteOrder.PutUint64(region[offSize:], h.Size)
	byteOrder.PutUint64(region[offFlagOffset:], h.FlagOffset)
	byteOrder.PutUint64(region[offBucketOffset:], h.BucketOffset)
}

// readHeader decodes the control block at the start of region.
func readHeader(region []byte) header {
	return header{
		Magic:        byteOrder.Uint32(region[offMagic:]),
		RefCount:     byteOrder.Uint64(region[offRefCount:]),
		OrigCapacity: byteOrder.Uint64(region[offOrigCapacity:]),
		Capacity:     byteOrder.Uint64(region[offCapacity:]),
		Size:         byteOrder.Uint64(region[offSize:]),
		FlagOffset:   byteOrder.Uint64(region[offFlagOffset:]),
		BucketOffset: byteOrder.Uint64(region[offBucketOffset:]),
	}
}

// Valid reports whether region starts with an initialized control block.
// Layout fields of a region that is not valid must not be trusted.
func Valid(region []byte) bool {
	if len(region) < HeaderSize {
		return false
	}

	return byteOrder.Uint32(region[offMagic:]) == magic
}

// checkLayout verifies that a valid header describes a layout that fits
// inside a region of regionLen bytes.
func (h *header) checkLayout(regionLen uint64) error {
	if h.Capacity == 0 || h.Capacity > primes[len(primes)-1] {
		return fmt.Errorf("stored capacity %d out of range: %w", h.Capacity, ErrInvalidRegion)
	}

	if h.Size > h.Capacity {
		return fmt.Errorf("stored size %d exceeds capacity %d: %w", h.Size, h.Capacity, ErrInvalidRegion)
	}

	if h.FlagOffset < HeaderSize || h.FlagOffset > regionLen || h.BucketOffset > regionLen {
		return fmt.Errorf("offsets flag=%d bucket=%d outside region of %d bytes: %w",
			h.FlagOffset, h.BucketOffset, regionLen, ErrInvalidRegion)
	}

	if h.FlagOffset+h.Capacity > h.BucketOffset {
		return fmt.Errorf("flag array [%d,+%d) overlaps buckets at %d: %w",
			h.FlagOffset, h.Capacity, h.BucketOffset, ErrInvalidRegion)
	}

	bucketsEnd := h.BucketOffset + h.Capacity*BucketSize
	if bucketsEnd > regionLen {
		return fmt.Errorf("bucket array ends at %d, region holds %d bytes: %w", bucketsEnd, regionLen, ErrInvalidRegion)
	}

	return nil
}

// initialize prepares region for use and takes one reference on it.
//
// With force, or when region is not [Valid], a fresh header is written and
// every flag is reset to empty. Otherwise the stored header is kept as is; a
// mismatch between requested and the stored capacity is not checked here.
func initialize(region []byte, requested uint64, force bool) (header, error) {
	if force || !Valid(region) {
		capacity, err := PlanCapacity(requested)
		if err != nil {
			return header{}, err
		}

		need := regionSizeFor(capacity)
		if uint64(len(region)) < need {
			return header{}, fmt.Errorf("region has %d bytes, capacity %d needs %d: %w",
				len(region), requested, need, ErrRegionTooSmall)
		}

		h := newHeader(requested, capacity)
		writeHeader(region, &h)
		clear(region[h.FlagOffset : h.FlagOffset+h.Capacity])
	}

	h := readHeader(region)

	err := h.checkLayout(uint64(len(region)))
	if err != nil {
		return header{}, err
	}

	h.RefCount++
	byteOrder.PutUint64(region[offRefCount:], h.RefCount)

	return h, nil
}
