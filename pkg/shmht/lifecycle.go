package shmht

import "fmt"

// Attach binds a table handle to region and takes one reference on it.
//
// If force is set, or region does not hold a valid table, region is
// initialized for requested entries: a fresh header is written and every
// slot becomes empty. Otherwise the existing table is reused as is, even if
// it was created with a different capacity; comparing capacities is the
// caller's job (see [Info.OrigCapacity]).
//
// region must stay valid and unmoved until [Table.Detach]. Returns
// [ErrConfig] for an unplannable capacity, [ErrRegionTooSmall] if region is
// shorter than [RegionSize], and [ErrInvalidRegion] if a valid magic guards a
// header that does not fit region.
//
// The reference count is a plain counter: concurrent Attach/Detach on the
// same region need external synchronization.
func Attach(region []byte, requested uint64, force bool) (*Table, error) {
	h, err := initialize(region, requested, force)
	if err != nil {
		return nil, fmt.Errorf("attach: %w", err)
	}

	return newTable(region, &h), nil
}

// AttachExisting binds a table handle to a region that already holds a
// valid table, without ever initializing it.
//
// Returns [ErrInvalidRegion] if the magic does not match or the stored
// layout does not fit region.
func AttachExisting(region []byte) (*Table, error) {
	if !Valid(region) {
		return nil, fmt.Errorf("attach existing: magic mismatch: %w", ErrInvalidRegion)
	}

	h, err := initialize(region, 0, false)
	if err != nil {
		return nil, fmt.Errorf("attach existing: %w", err)
	}

	return newTable(region, &h), nil
}

// Detach releases this handle's reference. last reports whether the
// reference count reached zero; only then may the backing storage be
// released. Any further use of t returns [ErrDetached].
func (t *Table) Detach() (last bool, err error) {
	if t.detached {
		return false, ErrDetached
	}

	t.detached = true

	refs := byteOrder.Uint64(t.region[offRefCount:])
	if refs > 0 {
		refs--
		byteOrder.PutUint64(t.region[offRefCount:], refs)
	}

	return refs == 0, nil
}

// Info is a snapshot of a table's control block.
type Info struct {
	OrigCapacity uint64 // capacity requested at initialization
	Capacity     uint64 // planned slot count
	Size         uint64 // stored entries
	RefCount     uint64 // attached handles
	FlagOffset   uint64
	BucketOffset uint64
	RegionSize   uint64 // bytes the layout occupies
}

// LoadFactor returns Size/Capacity.
func (i Info) LoadFactor() float64 {
	if i.Capacity == 0 {
		return 0
	}

	return float64(i.Size) / float64(i.Capacity)
}

// Info returns the current control block fields.
func (t *Table) Info() (Info, error) {
	if t.detached {
		return Info{}, ErrDetached
	}

	h := readHeader(t.region)

	return h.info(), nil
}

// ReadInfo decodes the control block at the start of region without
// attaching to it. Only the header bytes are needed; the stored layout is
// not checked against len(region).
//
// Returns [ErrInvalidRegion] if region does not start with a valid header.
func ReadInfo(region []byte) (Info, error) {
	if !Valid(region) {
		return Info{}, fmt.Errorf("read info: magic mismatch: %w", ErrInvalidRegion)
	}

	h := readHeader(region)

	return h.info(), nil
}

func (h *header) info() Info {
	return Info{
		OrigCapacity: h.OrigCapacity,
		Capacity:     h.Capacity,
		Size:         h.Size,
		RefCount:     h.RefCount,
		FlagOffset:   h.FlagOffset,
		BucketOffset: h.BucketOffset,
		RegionSize:   h.BucketOffset + h.Capacity*BucketSize,
	}
}
