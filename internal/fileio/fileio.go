// Package fileio implements spec.md §4.11's file I/O helpers: mapping a
// page-aligned chunk range into memory for the encoder's blocking-worker
// construction step, creating a sparse destination file up front, and
// positional writes into it as chunks complete.
package fileio

import (
	"errors"
	"fmt"
	"os"

	"github.com/fountainlink/transfer/internal/wire"
	"golang.org/x/sys/unix"
)

var (
	ErrUnalignedOffset  = errors.New("fileio: offset is not page-aligned")
	ErrRangeExceedsFile = errors.New("fileio: range exceeds file size")
)

// Segment is a memory-mapped, read-only view of a byte range of a file.
// Callers must call Close to unmap it and must independently hash the
// bytes to validate integrity — mmap surfaces the bytes as they are on
// disk, corrupt or not.
type Segment struct {
	data []byte
}

// MmapSegment maps [offset, offset+length) of the file at path. offset
// must be a multiple of wire.PageSize and the range must not exceed the
// file's size.
func MmapSegment(path string, offset, length uint64) (*Segment, error) {
	if offset%wire.PageSize != 0 {
		return nil, ErrUnalignedOffset
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("fileio: open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("fileio: stat %s: %w", path, err)
	}
	if offset+length > uint64(info.Size()) {
		return nil, ErrRangeExceedsFile
	}
	if length == 0 {
		return &Segment{data: nil}, nil
	}

	data, err := unix.Mmap(int(f.Fd()), int64(offset), int(length), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("fileio: mmap %s at %d len %d: %w", path, offset, length, err)
	}
	return &Segment{data: data}, nil
}

// Bytes returns the mapped slice. It is only valid until Close.
func (s *Segment) Bytes() []byte {
	return s.data
}

// Close unmaps the segment.
func (s *Segment) Close() error {
	if s.data == nil {
		return nil
	}
	return unix.Munmap(s.data)
}

// CreateSparseFile creates (or truncates) the file at path and sets its
// length to length without writing any bytes, so it occupies no disk
// blocks until chunks are written into it.
func CreateSparseFile(path string, length uint64) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("fileio: create %s: %w", path, err)
	}
	defer f.Close()

	if err := f.Truncate(int64(length)); err != nil {
		return fmt.Errorf("fileio: truncate %s to %d: %w", path, length, err)
	}
	return nil
}

// WriteAt opens path without truncating and writes bytes at the given
// offset.
func WriteAt(path string, offset uint64, bytes []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("fileio: open %s: %w", path, err)
	}
	defer f.Close()

	if _, err := f.WriteAt(bytes, int64(offset)); err != nil {
		return fmt.Errorf("fileio: write at %d in %s: %w", offset, path, err)
	}
	return nil
}
