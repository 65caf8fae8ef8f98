package shmht_test

import (
	"errors"
	"testing"

	"github.com/calvinalkan/shmht/pkg/shmht"
)

func Test_PlanCapacity_Returns_Smallest_Prime_Above_Double_When_Capacity_In_Range(t *testing.T) {
	t.Parallel()

	cases := []struct {
		requested uint64
		want      uint64
	}{
		{1, 53},
		{10, 53},
		{26, 53},
		{27, 97},
		{48, 97},
		{49, 193},
		{1000, 3079},
		{500000, 1572869},
		{shmht.MaxRequestedCapacity, 1610612741},
	}

	for _, tc := range cases {
		got, err := shmht.PlanCapacity(tc.requested)
		if err != nil {
			t.Fatalf("PlanCapacity(%d): unexpected error: %v", tc.requested, err)
		}

		if got != tc.want {
			t.Errorf("PlanCapacity(%d) = %d, want %d", tc.requested, got, tc.want)
		}

		if got <= 2*tc.requested {
			t.Errorf("PlanCapacity(%d) = %d, not above twice the request", tc.requested, got)
		}
	}
}

func Test_PlanCapacity_Returns_ErrConfig_When_Capacity_Unattainable(t *testing.T) {
	t.Parallel()

	for _, requested := range []uint64{0, shmht.MaxRequestedCapacity + 1, 1 << 40} {
		_, err := shmht.PlanCapacity(requested)
		if !errors.Is(err, shmht.ErrConfig) {
			t.Errorf("PlanCapacity(%d): got %v, want ErrConfig", requested, err)
		}

		_, err = shmht.RegionSize(requested)
		if !errors.Is(err, shmht.ErrConfig) {
			t.Errorf("RegionSize(%d): got %v, want ErrConfig", requested, err)
		}
	}
}

func Test_RegionSize_Covers_Header_Flags_And_Buckets_When_Planned(t *testing.T) {
	t.Parallel()

	for _, requested := range []uint64{1, 10, 27, 1000, 123456} {
		capacity, err := shmht.PlanCapacity(requested)
		if err != nil {
			t.Fatalf("PlanCapacity(%d): %v", requested, err)
		}

		size, err := shmht.RegionSize(requested)
		if err != nil {
			t.Fatalf("RegionSize(%d): %v", requested, err)
		}

		minimum := shmht.HeaderSize + capacity + capacity*shmht.BucketSize
		if size < minimum {
			t.Errorf("RegionSize(%d) = %d, below %d", requested, size, minimum)
		}

		again, _ := shmht.RegionSize(requested)
		if again != size {
			t.Errorf("RegionSize(%d) not deterministic: %d then %d", requested, size, again)
		}
	}
}

func Test_RegionSize_Matches_Fixed_Formula_When_Capacity_Is_10(t *testing.T) {
	t.Parallel()

	size, err := shmht.RegionSize(10)
	if err != nil {
		t.Fatal(err)
	}

	// 53 slots: 1024 header + 56 flag bytes + 53 buckets.
	want := uint64(1024 + 56 + 53*1280)
	if size != want {
		t.Fatalf("RegionSize(10) = %d, want %d", size, want)
	}

	region, err := shmht.NewRegion(10)
	if err != nil {
		t.Fatal(err)
	}

	if uint64(len(region)) != want {
		t.Fatalf("len(NewRegion(10)) = %d, want %d", len(region), want)
	}
}
