package fs

import (
	"errors"
	"fmt"
	"os"
	"sync"
)

// Op names an operation a [Faulty] can fail.
type Op string

// Operations a [Faulty] can fail. File-level operations apply to every file
// returned by [Faulty.OpenFile].
const (
	OpOpenFile Op = "open"
	OpMkdirAll Op = "mkdir"
	OpStat     Op = "stat"
	OpRemove   Op = "remove"
	OpReadAt   Op = "readat"
	OpTruncate Op = "truncate"
	OpSync     Op = "sync"
)

// InjectedError is returned by a [Faulty] in place of the real result.
// errors.Is/As see the wrapped Err.
type InjectedError struct {
	Op   Op
	Path string
	Err  error
}

func (e *InjectedError) Error() string {
	return fmt.Sprintf("injected %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *InjectedError) Unwrap() error {
	return e.Err
}

// IsInjected reports whether err (or any error it wraps) came from a [Faulty].
func IsInjected(err error) bool {
	var injected *InjectedError

	return errors.As(err, &injected)
}

// Faulty wraps an [FS] and fails selected operations on demand. It is meant
// for tests of error paths; with no faults armed it is a passthrough.
//
// Faulty is safe for concurrent use.
type Faulty struct {
	fs FS

	mu     sync.Mutex
	faults map[Op]fault
}

type fault struct {
	match func(path string) bool
	err   error
}

// NewFaulty returns a Faulty over fs with no faults armed.
func NewFaulty(fs FS) *Faulty {
	return &Faulty{fs: fs, faults: make(map[Op]fault)}
}

// Fail makes every later op on any path return err wrapped in an
// [InjectedError].
func (f *Faulty) Fail(op Op, err error) {
	f.FailPath(op, nil, err)
}

// FailPath is like [Faulty.Fail] but only for paths where match returns
// true. A nil match matches every path.
func (f *Faulty) FailPath(op Op, match func(path string) bool, err error) {
	if match == nil {
		match = func(string) bool { return true }
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.faults[op] = fault{match: match, err: err}
}

// Clear disarms op.
func (f *Faulty) Clear(op Op) {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.faults, op)
}

func (f *Faulty) check(op Op, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	ft, ok := f.faults[op]
	if !ok || !ft.match(path) {
		return nil
	}

	return &InjectedError{Op: op, Path: path, Err: ft.err}
}

func (f *Faulty) OpenFile(path string, flag int, perm os.FileMode) (File, error) {
	if err := f.check(OpOpenFile, path); err != nil {
		return nil, err
	}

	file, err := f.fs.OpenFile(path, flag, perm)
	if err != nil {
		return nil, err
	}

	return &faultyFile{File: file, owner: f, path: path}, nil
}

func (f *Faulty) MkdirAll(path string, perm os.FileMode) error {
	if err := f.check(OpMkdirAll, path); err != nil {
		return err
	}

	return f.fs.MkdirAll(path, perm)
}

func (f *Faulty) Stat(path string) (os.FileInfo, error) {
	if err := f.check(OpStat, path); err != nil {
		return nil, err
	}

	return f.fs.Stat(path)
}

func (f *Faulty) Remove(path string) error {
	if err := f.check(OpRemove, path); err != nil {
		return err
	}

	return f.fs.Remove(path)
}

type faultyFile struct {
	File

	owner *Faulty
	path  string
}

func (ff *faultyFile) ReadAt(p []byte, off int64) (int, error) {
	if err := ff.owner.check(OpReadAt, ff.path); err != nil {
		return 0, err
	}

	return ff.File.ReadAt(p, off)
}

func (ff *faultyFile) Truncate(size int64) error {
	if err := ff.owner.check(OpTruncate, ff.path); err != nil {
		return err
	}

	return ff.File.Truncate(size)
}

func (ff *faultyFile) Sync() error {
	if err := ff.owner.check(OpSync, ff.path); err != nil {
		return err
	}

	return ff.File.Sync()
}

var (
	_ FS   = (*Faulty)(nil)
	_ File = (*faultyFile)(nil)
)
