// Package shmht implements a fixed-capacity key/value table laid out inside
// one contiguous byte region.
//
// The region can be a heap block or a memory-mapped file shared by several
// processes. Everything the table needs lives in the region itself, so
// unrelated processes mapping the same bytes see the same table without a
// server.
//
// # Basic Usage
//
//	region, err := shmht.NewRegion(1000) // or mmap RegionSize(1000) bytes
//	if err != nil {
//	    // capacity out of range
//	}
//
//	table, err := shmht.Attach(region, 1000, false)
//	if err != nil {
//	    // region too small or corrupt
//	}
//	defer table.Detach()
//
//	err = table.Set([]byte("k"), []byte("v"))
//	val, err := table.Get([]byte("k"))
//	err = table.Remove([]byte("k"))
//
//	for k, v := range table.All() {
//	    // slot order, live view
//	}
//
// # Layout
//
// A region holds a 1024-byte control block, one flag byte per slot and one
// 1280-byte bucket per slot. A bucket stores the key as a length-prefixed
// record in its first 256 bytes and the value in the remaining 1024. Integers
// use native byte order; regions are not portable across endianness.
//
// The slot count is a prime from a fixed table, more than twice the
// requested capacity. Tables never grow: once [MaxLoadFactor] of the slots
// are used, new keys are refused with [ErrTableOverloaded].
//
// # Concurrency
//
// The table does no locking. Every operation needs external
// synchronization, including [Attach] and [Table.Detach]: a lookup whose
// probe sequence wraps around resets the flag array, so even Get can write.
// The package mmfile provides file locks for tables shared between
// processes.
//
// # Durability
//
// None. Flushing a mapped region to disk is up to the owner of the mapping.
package shmht
