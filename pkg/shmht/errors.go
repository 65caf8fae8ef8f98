package shmht

import "errors"

// Sentinel errors returned by shmht operations.
//
// Callers should use [errors.Is] to check error types:
//
//	if errors.Is(err, shmht.ErrTableOverloaded) {
//	    // recreate the table with a larger capacity
//	}
var (
	// ErrConfig indicates a capacity that cannot be planned: zero, or larger
	// than the largest tabulated prime allows.
	//
	// This is a programming error.
	ErrConfig = errors.New("shmht: invalid capacity")

	// ErrItemTooLarge indicates a key or value does not fit its record budget.
	// See [MaxKeyLen] and [MaxValueLen].
	ErrItemTooLarge = errors.New("shmht: item too large")

	// ErrTableOverloaded indicates the load factor threshold is reached and a
	// new key was refused. Overwriting existing keys still works.
	//
	// Recovery: recreate the table with a larger capacity. Tables never grow.
	ErrTableOverloaded = errors.New("shmht: table overloaded")

	// ErrNotFound indicates the key is not present.
	ErrNotFound = errors.New("shmht: not found")

	// ErrInvalidRegion indicates the region does not hold a valid table
	// (magic mismatch) or its header describes a layout that does not fit the
	// region.
	//
	// Recovery: attach with force to reinitialize, discarding the contents.
	ErrInvalidRegion = errors.New("shmht: invalid region")

	// ErrRegionTooSmall indicates the region is shorter than [RegionSize]
	// requires for the requested capacity.
	//
	// This is a programming error.
	ErrRegionTooSmall = errors.New("shmht: region too small")

	// ErrDetached indicates the [Table] handle has already been detached.
	//
	// This is a programming error.
	ErrDetached = errors.New("shmht: detached")
)
