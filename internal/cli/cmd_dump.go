package cli

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/natefinch/atomic"
	"github.com/tailscale/hujson"

	"github.com/calvinalkan/shmht/pkg/cacher"
	"github.com/calvinalkan/shmht/pkg/shmht"
)

// dumpEntry is one exported entry. Hex is set when key or value is not
// valid UTF-8; both are then hex encoded.
type dumpEntry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
	Hex   bool   `json:"hex,omitempty"`
}

func newDumpEntry(key, value []byte) dumpEntry {
	if utf8.Valid(key) && utf8.Valid(value) {
		return dumpEntry{Key: string(key), Value: string(value)}
	}

	return dumpEntry{Key: hex.EncodeToString(key), Value: hex.EncodeToString(value), Hex: true}
}

func (e dumpEntry) decode() ([]byte, []byte, error) {
	key, err := parseBytes(e.Key, e.Hex)
	if err != nil {
		return nil, nil, err
	}

	value, err := parseBytes(e.Value, e.Hex)
	if err != nil {
		return nil, nil, err
	}

	return key, value, nil
}

func dumpCmd(cfg *Config) *Command {
	flags := newFlagSet("dump")
	output := flags.StringP("output", "o", "", "Write to `file` instead of stdout")

	return &Command{
		Flags: flags,
		Usage: "dump [flags]",
		Short: "Export entries as JSON",
		Long: "Export all entries as a JSON array of {key, value, hex} objects.\n" +
			"With -o the file is replaced atomically.",
		Exec: func(ctx context.Context, o *IO, args []string) (err error) {
			if len(args) != 0 {
				return fmt.Errorf("%w: dump takes no arguments", ErrArgs)
			}

			f, err := openTable(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeTable(f, &err)

			entries := []dumpEntry{}

			err = rlocked(ctx, f, func(t *shmht.Table) error {
				for key, value := range t.All() {
					entries = append(entries, newDumpEntry(key, value))
				}

				return nil
			})
			if err != nil {
				return err
			}

			data, err := json.MarshalIndent(entries, "", "  ")
			if err != nil {
				return fmt.Errorf("encode entries: %w", err)
			}

			data = append(data, '\n')

			if *output == "" {
				o.Printf("%s", data)

				return nil
			}

			path := resolvePath(cfg, *output)

			err = atomic.WriteFile(path, bytes.NewReader(data))
			if err != nil {
				return fmt.Errorf("write %s: %w", path, err)
			}

			o.Printf("dumped %d entries to %s\n", len(entries), path)

			return nil
		},
	}
}

func loadCmd(cfg *Config) *Command {
	return &Command{
		Flags: newFlagSet("load"),
		Usage: "load <file>",
		Short: "Import entries from a dump file",
		Long: "Import entries from a JSON (comments allowed) file written by dump.\n" +
			"Existing keys are overwritten.",
		Exec: func(ctx context.Context, o *IO, args []string) (err error) {
			if len(args) != 1 {
				return fmt.Errorf("%w: load takes <file>", ErrArgs)
			}

			entries, err := readDump(resolvePath(cfg, args[0]))
			if err != nil {
				return err
			}

			batch := make(map[string][]byte, len(entries))

			for i, e := range entries {
				key, value, err := e.decode()
				if err != nil {
					return fmt.Errorf("entry %d: %w", i, err)
				}

				batch[string(key)] = value
			}

			f, err := openTable(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeTable(f, &err)

			err = locked(ctx, f, func(t *shmht.Table) error {
				c := cacher.New[[]byte](t, cacher.Raw{})

				err := c.Update(batch)
				if err != nil {
					return err
				}

				return c.Close()
			})
			if err != nil {
				return err
			}

			o.Printf("loaded %d entries\n", len(batch))

			return nil
		},
	}
}

func readDump(path string) ([]dumpEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dump: %w", err)
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid JSONC: %w", path, err)
	}

	var entries []dumpEntry

	err = json.Unmarshal(standardized, &entries)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid JSON: %w", path, err)
	}

	return entries, nil
}

func resolvePath(cfg *Config, p string) string {
	if filepath.IsAbs(p) {
		return p
	}

	return filepath.Join(cfg.WorkDir, p)
}
