package cli

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"
	"unicode/utf8"

	"github.com/calvinalkan/shmht/pkg/mmfile"
	"github.com/calvinalkan/shmht/pkg/shmht"
)

// openTable opens the configured table file, which must already exist.
func openTable(ctx context.Context, cfg *Config) (*mmfile.File, error) {
	_, err := os.Stat(cfg.PathAbs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNoTable, cfg.PathAbs)
		}

		return nil, fmt.Errorf("stat table: %w", err)
	}

	f, err := mmfile.Open(ctx, mmfile.Options{
		Path:        cfg.PathAbs,
		LockTimeout: cfg.LockTimeout,
	})
	if errors.Is(err, mmfile.ErrCapacityRequired) {
		return nil, fmt.Errorf("%w: %s", ErrNoTable, cfg.PathAbs)
	}

	return f, err
}

// closeTable detaches and reports any error joined onto errp.
func closeTable(f *mmfile.File, errp *error) {
	_, err := f.Close()
	if err != nil {
		*errp = errors.Join(*errp, fmt.Errorf("close table: %w", err))
	}
}

// locked runs fn while holding the exclusive lock of f. Get needs it too:
// a lookup that wraps the probe sequence resets the flag array.
func locked(ctx context.Context, f *mmfile.File, fn func(t *shmht.Table) error) error {
	lock, err := f.Lock(ctx)
	if err != nil {
		return fmt.Errorf("lock table: %w", err)
	}

	err = fn(f.Table())

	return errors.Join(err, lock.Close())
}

// rlocked runs fn while holding the shared lock of f.
func rlocked(ctx context.Context, f *mmfile.File, fn func(t *shmht.Table) error) error {
	lock, err := f.RLock(ctx)
	if err != nil {
		return fmt.Errorf("lock table: %w", err)
	}

	err = fn(f.Table())

	return errors.Join(err, lock.Close())
}

// parseBytes converts a command-line key or value.
func parseBytes(s string, asHex bool) ([]byte, error) {
	if !asHex {
		return []byte(s), nil
	}

	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrHexInvalid, s, err)
	}

	return b, nil
}

// formatBytes renders a key or value for display. Without asHex, invalid
// UTF-8 is quoted.
func formatBytes(b []byte, asHex bool) string {
	if asHex {
		return hex.EncodeToString(b)
	}

	if !utf8.Valid(b) {
		return strconv.Quote(string(b))
	}

	return string(b)
}

// isFull reports whether the next new key would be refused.
func isFull(info shmht.Info) bool {
	return float64(info.Capacity)*shmht.MaxLoadFactor < float64(info.Size)
}
