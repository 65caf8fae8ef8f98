package shmht

import "testing"

func Test_djb2_Matches_Reference_Values_When_Hashing_Known_Keys(t *testing.T) {
	t.Parallel()

	cases := []struct {
		key  string
		want uint32
	}{
		{"", 5381},
		{"a", 177670},
		{"b", 177671},
		{"ab", 177670*33 + 'b'},
	}

	for _, tc := range cases {
		if got := djb2([]byte(tc.key)); got != tc.want {
			t.Errorf("djb2(%q) = %d, want %d", tc.key, got, tc.want)
		}
	}

	// High bytes are unsigned.
	if got := djb2([]byte{0xff}); got != 5381*33+255 {
		t.Errorf("djb2(0xff) = %d, want %d", got, 5381*33+255)
	}
}

func Test_resolve_Steps_By_Growing_Increments_When_Slots_Collide(t *testing.T) {
	t.Parallel()

	table := attachFresh(t, 10)

	// Occupy the home slot of "a" (14) and its first two probe targets
	// (14+1=15, 15+2=17) with other keys.
	for _, idx := range []uint64{14, 15, 17} {
		table.slots.setFlag(idx, flagUsed)
		encodeRecord(table.slots.keyRecord(idx), []byte("other"))
	}

	if got := table.resolve([]byte("a"), false); got != 20 {
		t.Fatalf("resolve(a) = %d, want 20 (14 -> 15 -> 17 -> 20)", got)
	}

	table.slots.setFlag(15, flagRemoved)

	if got := table.resolve([]byte("a"), false); got != 20 {
		t.Fatalf("resolve(a, removed as used) = %d, want 20", got)
	}

	if got := table.resolve([]byte("a"), true); got != 15 {
		t.Fatalf("resolve(a, removed as empty) = %d, want 15", got)
	}
}

func Test_resolve_Resets_All_Slots_When_Probe_Sequence_Wraps(t *testing.T) {
	t.Parallel()

	table := attachFresh(t, 10)

	err := table.Set([]byte("a"), []byte("1"))
	if err != nil {
		t.Fatal(err)
	}

	for i := range table.capacity {
		if table.slots.flag(i) == flagEmpty {
			table.slots.setFlag(i, flagRemoved)
		}
	}

	// "zzz" never meets an empty slot or its own key.
	_, err = table.Get([]byte("zzz"))
	if err == nil {
		t.Fatal("Get(zzz) succeeded")
	}

	for i := range table.capacity {
		if f := table.slots.flag(i); f != flagEmpty {
			t.Fatalf("slot %d flag = %d after reset, want empty", i, f)
		}
	}

	if table.Len() != 0 {
		t.Fatalf("Len() = %d after reset, want 0", table.Len())
	}

	if table.Has([]byte("a")) {
		t.Fatal("entry survived reset")
	}
}

func Test_decodeRecord_Clamps_Length_When_Prefix_Is_Corrupt(t *testing.T) {
	t.Parallel()

	rec := make([]byte, keyRecordSize)
	byteOrder.PutUint32(rec, 1<<31)

	if got := len(decodeRecord(rec)); got != keyRecordSize-recordPrefixSize {
		t.Fatalf("decoded %d bytes, want %d", got, keyRecordSize-recordPrefixSize)
	}
}

func attachFresh(t *testing.T, requested uint64) *Table {
	t.Helper()

	region, err := NewRegion(requested)
	if err != nil {
		t.Fatal(err)
	}

	table, err := Attach(region, requested, false)
	if err != nil {
		t.Fatal(err)
	}

	return table
}
