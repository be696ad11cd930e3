// Package testutil provides testing utilities for clmn
package testutil

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

// TestLogger creates a test logger that writes to the test output.
// The logger is automatically cleaned up when the test completes.
func TestLogger(t *testing.T) *zap.Logger {
	return zaptest.NewLogger(t)
}

// ObservedLogger creates a logger whose entries at or above level can be
// inspected by the test.
func ObservedLogger(level zapcore.Level) (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return zap.New(core), logs
}

// TestContext creates a test context with a 30-second timeout.
// The caller must call the returned cancel function to avoid leaks.
func TestContext(_ *testing.T) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

// ReadRange is one positioned read observed by a RecordingReaderAt.
type ReadRange struct {
	Offset int64
	Length int
}

// End returns the offset one past the last requested byte.
func (r ReadRange) End() int64 {
	return r.Offset + int64(r.Length)
}

// RecordingReaderAt wraps an io.ReaderAt and records every ReadAt call.
// It is safe for concurrent use.
type RecordingReaderAt struct {
	r     io.ReaderAt
	mu    sync.Mutex
	reads []ReadRange
}

// NewRecordingReaderAt wraps r.
func NewRecordingReaderAt(r io.ReaderAt) *RecordingReaderAt {
	return &RecordingReaderAt{r: r}
}

// ReadAt implements io.ReaderAt.
func (rr *RecordingReaderAt) ReadAt(p []byte, off int64) (int, error) {
	rr.mu.Lock()
	rr.reads = append(rr.reads, ReadRange{Offset: off, Length: len(p)})
	rr.mu.Unlock()
	return rr.r.ReadAt(p, off)
}

// Reads returns the recorded reads in call order.
func (rr *RecordingReaderAt) Reads() []ReadRange {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	out := make([]ReadRange, len(rr.reads))
	copy(out, rr.reads)
	return out
}

// Reset forgets the recorded reads.
func (rr *RecordingReaderAt) Reset() {
	rr.mu.Lock()
	rr.reads = nil
	rr.mu.Unlock()
}

// Touched reports whether any recorded read overlaps [start, end).
func (rr *RecordingReaderAt) Touched(start, end int64) bool {
	for _, r := range rr.Reads() {
		if r.Length > 0 && r.Offset < end && r.End() > start {
			return true
		}
	}
	return false
}

// MaxEnd returns the highest offset any recorded read reached.
func (rr *RecordingReaderAt) MaxEnd() int64 {
	var max int64
	for _, r := range rr.Reads() {
		if r.End() > max {
			max = r.End()
		}
	}
	return max
}
