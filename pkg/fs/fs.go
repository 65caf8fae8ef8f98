// Package fs provides the filesystem seam and advisory file locks used by
// file-backed tables.
//
// The main types are:
//   - [FS]: the filesystem operations the lock and mapping code needs
//   - [File]: an open file with a real OS descriptor (satisfied by [os.File])
//   - [Real]: production implementation using [os]
//   - [Locker]: flock(2)-based exclusive/shared locks on lock files
package fs

import (
	"io"
	"os"
)

// File is an OS-backed open file.
//
// This interface is satisfied by [os.File]. [File.Fd] must return a valid OS
// file descriptor usable with flock and mmap until the file is closed.
type File interface {
	io.ReadWriteCloser
	io.ReaderAt
	io.WriterAt

	// Fd returns the file descriptor. See [os.File.Fd].
	Fd() uintptr

	// Stat returns the [os.FileInfo] for this file. See [os.File.Stat].
	Stat() (os.FileInfo, error)

	// Sync commits the file's contents to disk. See [os.File.Sync].
	Sync() error

	// Truncate changes the size of the file. See [os.File.Truncate].
	Truncate(size int64) error
}

// FS defines the filesystem operations used by this module.
//
// All methods mirror their [os] package equivalents. Implementations must be
// safe for concurrent use by multiple goroutines.
type FS interface {
	// OpenFile opens a file with specified flags and permissions. See [os.OpenFile].
	OpenFile(path string, flag int, perm os.FileMode) (File, error)

	// MkdirAll creates a directory and all parents. See [os.MkdirAll].
	MkdirAll(path string, perm os.FileMode) error

	// Stat returns file info. See [os.Stat].
	Stat(path string) (os.FileInfo, error)

	// Remove deletes a file or empty directory. See [os.Remove].
	Remove(path string) error
}
