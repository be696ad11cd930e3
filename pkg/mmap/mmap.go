// Package mmap maps read-only files into memory and serves positioned reads
// from the mapping. A File satisfies io.ReaderAt, so it can stand in for an
// *os.File wherever reads are random access, such as fetching single column
// blocks from a large CLMN file.
package mmap

import (
	"errors"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/ajitpratap0/clmn/pkg/clmnerrors"
)

// ErrClosed is returned by reads on a closed File.
var ErrClosed = errors.New("mmap: file closed")

// File is a read-only memory-mapped file. It is safe for concurrent reads.
type File struct {
	mu     sync.RWMutex
	data   []byte
	size   int64
	closed bool

	bytesRead atomic.Int64
	reads     atomic.Int64
}

// Open maps the file at path. Empty files are valid and read as EOF.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, clmnerrors.Wrap(err, clmnerrors.ErrorTypeFile, "failed to open file").
			WithDetail("path", path)
	}
	// The mapping stays valid after the descriptor is closed.
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, clmnerrors.Wrap(err, clmnerrors.ErrorTypeFile, "failed to stat file").
			WithDetail("path", path)
	}
	size := info.Size()
	if size == 0 {
		return &File{}, nil
	}
	if int64(int(size)) != size {
		return nil, clmnerrors.Newf(clmnerrors.ErrorTypeFile, "file too large to map: %d bytes", size).
			WithDetail("path", path)
	}

	data, err := mapFile(f, int(size))
	if err != nil {
		return nil, clmnerrors.Wrap(err, clmnerrors.ErrorTypeFile, "failed to mmap file").
			WithDetail("path", path)
	}
	return &File{data: data, size: size}, nil
}

// ReadAt copies len(p) bytes starting at off.
func (m *File) ReadAt(p []byte, off int64) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return 0, ErrClosed
	}
	if off < 0 {
		return 0, errors.New("mmap: negative offset")
	}
	if off >= m.size {
		return 0, io.EOF
	}
	n := copy(p, m.data[off:])
	m.bytesRead.Add(int64(n))
	m.reads.Add(1)
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Len returns the mapped size in bytes.
func (m *File) Len() int64 {
	return m.size
}

// Stats returns the number of reads served and the bytes they copied.
func (m *File) Stats() (reads, bytesRead int64) {
	return m.reads.Load(), m.bytesRead.Load()
}

// Close unmaps the file. Further reads fail with ErrClosed.
func (m *File) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true
	if m.data == nil {
		return nil
	}
	err := unmap(m.data)
	m.data = nil
	return err
}
