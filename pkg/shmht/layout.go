package shmht

import "fmt"

// Region layout constants.
const (
	// HeaderSize is the span reserved for the control block at the start of
	// every region. The logical header is far smaller; the rest is reserved.
	HeaderSize = 1024

	// BucketSize is the fixed width of one bucket.
	BucketSize = 1280

	// keyRecordSize is the key record budget, including its length prefix.
	keyRecordSize = 256

	// valueRecordSize is the value record budget, including its length prefix.
	valueRecordSize = BucketSize - keyRecordSize

	// recordPrefixSize is the width of a record's length prefix.
	recordPrefixSize = 4

	// MaxKeyLen is the largest accepted key length in bytes.
	// Prefix plus payload must stay strictly below the key record budget.
	MaxKeyLen = keyRecordSize - recordPrefixSize - 1

	// MaxValueLen is the largest accepted value length in bytes.
	MaxValueLen = valueRecordSize - recordPrefixSize - 1

	// MaxLoadFactor is the occupancy above which new keys are refused.
	MaxLoadFactor = 0.65
)

// primes is the ascending table planned capacities are chosen from.
var primes = [...]uint64{
	53, 97, 193, 389,
	769, 1543, 3079, 6151,
	12289, 24593, 49157, 98317,
	196613, 393241, 786433, 1572869,
	3145739, 6291469, 12582917, 25165843,
	50331653, 100663319, 201326611, 402653189,
	805306457, 1610612741,
}

// MaxRequestedCapacity is the largest requested capacity [PlanCapacity]
// accepts.
const MaxRequestedCapacity = (1610612741 - 1) / 2

// PlanCapacity returns the slot count a table created for requested entries
// uses: the smallest tabulated prime strictly greater than 2*requested.
//
// Returns [ErrConfig] if requested is zero or exceeds [MaxRequestedCapacity].
func PlanCapacity(requested uint64) (uint64, error) {
	if requested == 0 {
		return 0, fmt.Errorf("capacity must be >= 1: %w", ErrConfig)
	}

	if requested > MaxRequestedCapacity {
		return 0, fmt.Errorf("capacity %d exceeds maximum %d: %w", requested, uint64(MaxRequestedCapacity), ErrConfig)
	}

	doubled := requested * 2
	for _, p := range primes {
		if p > doubled {
			return p, nil
		}
	}

	// Unreachable while MaxRequestedCapacity matches the table.
	return 0, fmt.Errorf("no prime above %d: %w", doubled, ErrConfig)
}

// RegionSize returns the number of bytes a region must hold for a table
// created with the requested capacity. Backing storage must be sized to at
// least this value before [Attach].
func RegionSize(requested uint64) (uint64, error) {
	capacity, err := PlanCapacity(requested)
	if err != nil {
		return 0, err
	}

	return regionSizeFor(capacity), nil
}

// NewRegion allocates a zeroed heap region large enough for requested.
func NewRegion(requested uint64) ([]byte, error) {
	size, err := RegionSize(requested)
	if err != nil {
		return nil, err
	}

	return make([]byte, size), nil
}

// regionSizeFor is the byte size of a region holding capacity slots.
func regionSizeFor(capacity uint64) uint64 {
	return HeaderSize + flagSpan(capacity) + capacity*BucketSize
}

// flagSpan is the size of the flag array rounded past a 4-byte boundary.
// It always reserves at least one padding byte.
func flagSpan(capacity uint64) uint64 {
	return (capacity/4 + 1) * 4
}
