package cli

import "github.com/calvinalkan/shmht/pkg/shmht"

func printInfo(o *IO, path string, info shmht.Info) {
	o.Printf("path:          %s\n", path)
	o.Printf("capacity:      %d\n", info.OrigCapacity)
	o.Printf("slots:         %d\n", info.Capacity)
	o.Printf("size:          %d\n", info.Size)
	o.Printf("load factor:   %.4f (max %.2f)\n", info.LoadFactor(), shmht.MaxLoadFactor)
	o.Printf("ref count:     %d\n", info.RefCount)
	o.Printf("flag offset:   %d\n", info.FlagOffset)
	o.Printf("bucket offset: %d\n", info.BucketOffset)
	o.Printf("region size:   %d\n", info.RegionSize)
}
