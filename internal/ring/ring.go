// Package ring provides a small bounded, drop-oldest byte ring used to
// capture a child process's stderr for diagnostics without letting a noisy
// or crash-looping agent grow memory without bound (§4.2, §5).
package ring

import "sync"

// Buffer is a fixed-capacity, drop-oldest byte ring. Safe for concurrent
// Write/String calls.
type Buffer struct {
	mu   sync.Mutex
	data []byte
	cap  int
}

// New returns a Buffer that retains at most capacity bytes, discarding the
// oldest bytes first once full.
func New(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = 1
	}
	return &Buffer{cap: capacity}
}

// Write appends p, trimming from the front if the buffer would exceed its
// capacity. Always returns len(p), nil — a diagnostics sink never fails.
func (b *Buffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.data = append(b.data, p...)
	if over := len(b.data) - b.cap; over > 0 {
		b.data = b.data[over:]
	}
	return len(p), nil
}

// String returns a snapshot of the currently retained bytes.
func (b *Buffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.data)
}

// Len returns the number of bytes currently retained.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data)
}
