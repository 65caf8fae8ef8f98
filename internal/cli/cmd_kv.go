package cli

import (
	"context"
	"fmt"

	"github.com/calvinalkan/shmht/pkg/shmht"
)

func getCmd(cfg *Config) *Command {
	flags := newFlagSet("get")
	asHex := flags.Bool("hex", false, "Key is hex; print the value as hex")

	return &Command{
		Flags: flags,
		Usage: "get <key>",
		Short: "Print the value stored under key",
		Exec: func(ctx context.Context, o *IO, args []string) (err error) {
			if len(args) != 1 {
				return fmt.Errorf("%w: get takes <key>", ErrArgs)
			}

			key, err := parseBytes(args[0], *asHex)
			if err != nil {
				return err
			}

			f, err := openTable(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeTable(f, &err)

			return locked(ctx, f, func(t *shmht.Table) error {
				value, err := t.Get(key)
				if err != nil {
					return keyError(args[0], err)
				}

				o.Println(formatBytes(value, *asHex))

				return nil
			})
		},
	}
}

func setCmd(cfg *Config) *Command {
	flags := newFlagSet("set")
	asHex := flags.Bool("hex", false, "Key and value are hex")

	return &Command{
		Flags: flags,
		Usage: "set <key> <value>",
		Short: "Store value under key",
		Long: fmt.Sprintf("Store value under key, overwriting any previous value.\n"+
			"Keys hold up to %d bytes, values up to %d bytes.", shmht.MaxKeyLen, shmht.MaxValueLen),
		Exec: func(ctx context.Context, o *IO, args []string) (err error) {
			if len(args) != 2 {
				return fmt.Errorf("%w: set takes <key> <value>", ErrArgs)
			}

			key, err := parseBytes(args[0], *asHex)
			if err != nil {
				return err
			}

			value, err := parseBytes(args[1], *asHex)
			if err != nil {
				return err
			}

			f, err := openTable(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeTable(f, &err)

			return locked(ctx, f, func(t *shmht.Table) error {
				err := t.Set(key, value)
				if err != nil {
					return keyError(args[0], err)
				}

				return nil
			})
		},
	}
}

func rmCmd(cfg *Config) *Command {
	flags := newFlagSet("rm")
	asHex := flags.Bool("hex", false, "Key is hex")

	return &Command{
		Flags: flags,
		Usage: "rm <key>",
		Short: "Remove key",
		Exec: func(ctx context.Context, o *IO, args []string) (err error) {
			if len(args) != 1 {
				return fmt.Errorf("%w: rm takes <key>", ErrArgs)
			}

			key, err := parseBytes(args[0], *asHex)
			if err != nil {
				return err
			}

			f, err := openTable(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeTable(f, &err)

			return locked(ctx, f, func(t *shmht.Table) error {
				err := t.Remove(key)
				if err != nil {
					return keyError(args[0], err)
				}

				return nil
			})
		},
	}
}

func lsCmd(cfg *Config) *Command {
	flags := newFlagSet("ls")
	asHex := flags.Bool("hex", false, "Print keys and values as hex")
	limit := flags.Int("limit", 0, "Stop after `n` entries (0 = all)")

	return &Command{
		Flags: flags,
		Usage: "ls [flags]",
		Short: "List entries in slot order",
		Exec: func(ctx context.Context, o *IO, args []string) (err error) {
			if len(args) != 0 {
				return fmt.Errorf("%w: ls takes no arguments", ErrArgs)
			}

			if *limit < 0 {
				return fmt.Errorf("%w: --limit must be >= 0", ErrArgs)
			}

			f, err := openTable(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeTable(f, &err)

			return rlocked(ctx, f, func(t *shmht.Table) error {
				printEntries(o, t, *limit, *asHex)

				return nil
			})
		},
	}
}

func printEntries(o *IO, t *shmht.Table, limit int, asHex bool) {
	n := 0

	for key, value := range t.All() {
		if limit > 0 && n >= limit {
			return
		}

		o.Printf("%s\t%s\n", formatBytes(key, asHex), formatBytes(value, asHex))
		n++
	}
}

func keyError(key string, err error) error {
	return fmt.Errorf("key %q: %w", key, err)
}
