// Package bufpool provides pooled byte buffers for clmn's encode and compress
// paths.
package bufpool

import (
	"sync"
)

// Buffer is an append-only byte buffer that implements io.Writer.
type Buffer struct {
	buf []byte
}

// NewBuffer creates a new buffer with the given capacity
func NewBuffer(capacity int) *Buffer {
	return &Buffer{
		buf: make([]byte, 0, capacity),
	}
}

// Write implements io.Writer interface
func (b *Buffer) Write(p []byte) (n int, err error) {
	b.buf = append(b.buf, p...)
	return len(p), nil
}

// Clone returns a copy of the buffered bytes that the caller owns.
func (b *Buffer) Clone() []byte {
	out := make([]byte, len(b.buf))
	copy(out, b.buf)
	return out
}

// Len returns the number of buffered bytes
func (b *Buffer) Len() int {
	return len(b.buf)
}

// Cap returns the capacity of the underlying buffer
func (b *Buffer) Cap() int {
	return cap(b.buf)
}

// Reset resets the buffer for reuse
func (b *Buffer) Reset() {
	b.buf = b.buf[:0]
}

// Size selects one of the buffer pools.
type Size int

const (
	Small  Size = iota // 1KB: file headers
	Medium             // 16KB: typical column blocks
	Large              // 256KB: wide or long columns
)

// maxPooledCap keeps oversized buffers out of the pools.
const maxPooledCap = 4 << 20

var pools = [...]*sync.Pool{
	Small:  {New: func() interface{} { return NewBuffer(1024) }},
	Medium: {New: func() interface{} { return NewBuffer(16 * 1024) }},
	Large:  {New: func() interface{} { return NewBuffer(256 * 1024) }},
}

// SizeFor picks the pool whose buffers best fit n bytes.
func SizeFor(n int) Size {
	switch {
	case n <= 1024:
		return Small
	case n <= 16*1024:
		return Medium
	default:
		return Large
	}
}

func poolFor(size Size) *sync.Pool {
	if size < Small || size > Large {
		return pools[Small]
	}
	return pools[size]
}

// Get retrieves an empty pooled buffer of the specified size
func Get(size Size) *Buffer {
	b := poolFor(size).Get().(*Buffer)
	b.Reset()
	return b
}

// Put returns a buffer to the appropriate pool
func Put(b *Buffer, size Size) {
	if b == nil || b.Cap() > maxPooledCap {
		return
	}
	b.Reset()
	poolFor(size).Put(b)
}
