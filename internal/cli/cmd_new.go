package cli

import (
	"context"
	"fmt"

	"github.com/calvinalkan/shmht/pkg/mmfile"
)

func newCmd(cfg *Config) *Command {
	flags := newFlagSet("new")
	capacity := flags.Uint64("capacity", cfg.Capacity, "Number of entries to plan for")
	force := flags.Bool("force", false, "Reinitialize an existing table, discarding its entries")

	return &Command{
		Flags: flags,
		Usage: "new [flags]",
		Short: "Create or initialize the table file",
		Long: "Create the table file and initialize it for --capacity entries.\n" +
			"An existing table with the same capacity is kept as is; use --force\n" +
			"to wipe it or to change its capacity.",
		Exec: func(ctx context.Context, o *IO, args []string) (err error) {
			if len(args) != 0 {
				return fmt.Errorf("%w: new takes no arguments", ErrArgs)
			}

			f, err := mmfile.Open(ctx, mmfile.Options{
				Path:        cfg.PathAbs,
				Capacity:    *capacity,
				Force:       *force,
				LockTimeout: cfg.LockTimeout,
			})
			if err != nil {
				return err
			}
			defer closeTable(f, &err)

			info, err := f.Table().Info()
			if err != nil {
				return err
			}

			o.Printf("%s: capacity %d, %d slots, %d entries, %d bytes\n",
				cfg.PathAbs, info.OrigCapacity, info.Capacity, info.Size, info.RegionSize)

			return nil
		},
	}
}

func infoCmd(cfg *Config) *Command {
	return &Command{
		Flags: newFlagSet("info"),
		Usage: "info",
		Short: "Show table header and load factor",
		Exec: func(ctx context.Context, o *IO, args []string) (err error) {
			if len(args) != 0 {
				return fmt.Errorf("%w: info takes no arguments", ErrArgs)
			}

			f, err := openTable(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeTable(f, &err)

			info, err := f.Table().Info()
			if err != nil {
				return err
			}

			printInfo(o, cfg.PathAbs, info)

			if isFull(info) {
				o.Warn("table is full", "new keys are refused; recreate with a larger --capacity")
			}

			return nil
		},
	}
}
