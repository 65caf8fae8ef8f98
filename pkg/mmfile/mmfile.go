// Package mmfile backs shmht tables with memory-mapped files.
//
// A table file is created, grown and mapped MAP_SHARED, so every process that
// opens the same path works on the same bytes. Attach and detach run under an
// exclusive lock on "<path>.lock" so reference counts stay consistent across
// processes; callers that mutate a shared table take [File.Lock] themselves.
//
//	f, err := mmfile.Open(ctx, mmfile.Options{Path: "/dev/shm/sessions", Capacity: 10000})
//	if err != nil {
//	    return err
//	}
//	defer f.Close()
//
//	lock, err := f.Lock(ctx)
//	if err != nil {
//	    return err
//	}
//	err = f.Table().Set(key, value)
//	_ = lock.Close()
package mmfile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/calvinalkan/shmht/pkg/fs"
	"github.com/calvinalkan/shmht/pkg/shmht"
)

var (
	// ErrCapacityMismatch indicates the file already holds a table created
	// with a different capacity than requested.
	//
	// Recovery: open with Capacity 0 to use the stored one, or with Force to
	// reinitialize and discard the contents.
	ErrCapacityMismatch = errors.New("mmfile: capacity mismatch")

	// ErrCapacityRequired indicates no valid table exists yet and
	// [Options.Capacity] was zero.
	ErrCapacityRequired = errors.New("mmfile: capacity required")

	// ErrClosed indicates the [File] has already been closed.
	ErrClosed = errors.New("mmfile: closed")
)

// DefaultLockTimeout bounds how long Open and Close wait for the lock file.
const DefaultLockTimeout = 5 * time.Second

const (
	filePerm = 0o600
	dirPerm  = 0o750
)

var realFS = fs.NewReal()

// Options configure [Open].
type Options struct {
	// Path is the table file. Required.
	Path string

	// Capacity is the number of entries the table is planned for. Zero means
	// "use the capacity stored in the existing file".
	Capacity uint64

	// Force reinitializes the table even if the file holds a valid one.
	Force bool

	// LockTimeout bounds the wait for the lock file. Zero means
	// [DefaultLockTimeout].
	LockTimeout time.Duration

	// FS is used for the table and lock files. Nil means the real
	// filesystem.
	FS fs.FS
}

// File is an open, mapped table file.
//
// File methods are safe for concurrent use; the [shmht.Table] it hands out
// is not (see the shmht package docs).
type File struct {
	mu          sync.Mutex
	path        string
	file        fs.File
	data        []byte
	table       *shmht.Table
	locker      *fs.Locker
	lockTimeout time.Duration
	closed      bool
}

// LockPath returns the lock file guarding the table file at path.
func LockPath(path string) string {
	return path + ".lock"
}

// Open opens or creates the table file described by opts and attaches to it.
//
// If the file holds a valid table and opts.Force is not set, a non-zero
// opts.Capacity must equal the stored capacity, otherwise Open returns
// [ErrCapacityMismatch]. The file is grown to [shmht.RegionSize] when shorter;
// it is never shrunk.
func Open(ctx context.Context, opts Options) (*File, error) {
	if opts.Path == "" {
		return nil, errors.New("mmfile: path is required")
	}

	timeout := opts.LockTimeout
	if timeout <= 0 {
		timeout = DefaultLockTimeout
	}

	fsys := opts.FS
	if fsys == nil {
		fsys = realFS
	}

	locker := fs.NewLocker(fsys)

	err := fsys.MkdirAll(filepath.Dir(opts.Path), dirPerm)
	if err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}

	lock, err := locker.LockContext(ctx, LockPath(opts.Path), timeout)
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", opts.Path, err)
	}
	defer lock.Close()

	file, err := fsys.OpenFile(opts.Path, os.O_RDWR|os.O_CREATE, filePerm)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}

	f, err := mapAndAttach(file, opts)
	if err != nil {
		_ = file.Close()

		return nil, err
	}

	f.locker = locker
	f.lockTimeout = timeout

	return f, nil
}

func mapAndAttach(file fs.File, opts Options) (*File, error) {
	stat, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}

	size := stat.Size()
	capacity := opts.Capacity

	if !opts.Force && size >= shmht.HeaderSize {
		stored, found, err := readStoredCapacity(file)
		if err != nil {
			return nil, err
		}

		if found {
			if capacity != 0 && capacity != stored {
				return nil, fmt.Errorf("file has capacity %d, requested %d: %w", stored, capacity, ErrCapacityMismatch)
			}

			capacity = stored
		}
	}

	if capacity == 0 {
		return nil, fmt.Errorf("no table in %s: %w", opts.Path, ErrCapacityRequired)
	}

	need, err := shmht.RegionSize(capacity)
	if err != nil {
		return nil, err
	}

	if need > math.MaxInt {
		return nil, fmt.Errorf("region of %d bytes does not fit in memory: %w", need, shmht.ErrConfig)
	}

	if uint64(size) < need {
		err = file.Truncate(int64(need))
		if err != nil {
			return nil, fmt.Errorf("grow file to %d bytes: %w", need, err)
		}
	}

	data, err := unix.Mmap(int(file.Fd()), 0, int(need), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap: %w", err)
	}

	table, err := shmht.Attach(data, capacity, opts.Force)
	if err != nil {
		_ = unix.Munmap(data)

		return nil, err
	}

	return &File{
		path:  opts.Path,
		file:  file,
		data:  data,
		table: table,
	}, nil
}

// readStoredCapacity reads the header of an existing file and reports the
// capacity it was created with, if it holds a valid table.
func readStoredCapacity(file fs.File) (uint64, bool, error) {
	buf := make([]byte, shmht.HeaderSize)

	_, err := file.ReadAt(buf, 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return 0, false, fmt.Errorf("read header: %w", err)
	}

	info, err := shmht.ReadInfo(buf)
	if err != nil {
		return 0, false, nil //nolint:nilerr // not a table yet, initialize it
	}

	return info.OrigCapacity, true, nil
}

// Path returns the table file path.
func (f *File) Path() string {
	return f.path
}

// Table returns the attached table.
func (f *File) Table() *shmht.Table {
	return f.table
}

// Lock takes the cross-process exclusive lock for this table file. Hold it
// around Get, Set and Remove when other processes share the file.
func (f *File) Lock(ctx context.Context) (*fs.Lock, error) {
	return f.locker.LockContext(ctx, LockPath(f.path), f.lockTimeout)
}

// RLock takes the cross-process shared lock for this table file. It is
// enough for iteration and Info; Get can write and needs [File.Lock].
func (f *File) RLock(ctx context.Context) (*fs.Lock, error) {
	return f.locker.RLockContext(ctx, LockPath(f.path), f.lockTimeout)
}

// Sync flushes the mapping to the file synchronously.
func (f *File) Sync() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrClosed
	}

	err := unix.Msync(f.data, unix.MS_SYNC)
	if err != nil {
		return fmt.Errorf("msync: %w", err)
	}

	return nil
}

// Close detaches from the table, unmaps the file and closes it. last
// reports whether this was the final reference on the table.
//
// The table file is kept; use [Remove] to delete it. A second Close returns
// [ErrClosed].
func (f *File) Close() (last bool, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return false, ErrClosed
	}

	f.closed = true

	lock, lockErr := f.locker.LockContext(context.Background(), LockPath(f.path), f.lockTimeout)
	if lockErr == nil {
		defer lock.Close()
	} else {
		lockErr = fmt.Errorf("lock for detach: %w", lockErr)
	}

	last, detachErr := f.table.Detach()

	unmapErr := unix.Munmap(f.data)
	if unmapErr != nil {
		unmapErr = fmt.Errorf("munmap: %w", unmapErr)
	}

	f.data = nil

	closeErr := f.file.Close()
	if closeErr != nil {
		closeErr = fmt.Errorf("close file: %w", closeErr)
	}

	return last, errors.Join(lockErr, detachErr, unmapErr, closeErr)
}

// Remove deletes the table file at path and its lock file. Missing files
// are not an error.
func Remove(path string) error {
	var errs []error

	for _, p := range []string{path, LockPath(path)} {
		err := realFS.Remove(p)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
