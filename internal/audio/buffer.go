package audio

import (
	"sync"
)

// RingBuffer is a thread-safe byte ring that decouples a real-time capture
// callback from a frame reader. Writers never block: bytes that do not fit are
// dropped and counted. One slot is kept free to tell full from empty.
type RingBuffer struct {
	buffer  []byte
	size    int
	read    int
	write   int
	dropped int64
	ready   chan struct{}
	mu      sync.Mutex
}

// NewRingBuffer creates a new ring buffer with the specified size
func NewRingBuffer(size int) *RingBuffer {
	return &RingBuffer{
		buffer: make([]byte, size),
		size:   size,
		ready:  make(chan struct{}, 1),
	}
}

// Write copies as much of data as fits and wakes a waiting reader.
// Returns the number of bytes written.
func (rb *RingBuffer) Write(data []byte) int {
	rb.mu.Lock()
	space := rb.size - rb.used() - 1
	n := len(data)
	if n > space {
		rb.dropped += int64(n - space)
		n = space
	}

	first := n
	if tail := rb.size - rb.write; first > tail {
		first = tail
	}
	copy(rb.buffer[rb.write:], data[:first])
	copy(rb.buffer, data[first:n])
	rb.write = (rb.write + n) % rb.size
	rb.mu.Unlock()

	if n > 0 {
		select {
		case rb.ready <- struct{}{}:
		default:
		}
	}
	return n
}

// Read copies up to len(data) buffered bytes into data.
// Returns the number of bytes read.
func (rb *RingBuffer) Read(data []byte) int {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	n := rb.used()
	if n > len(data) {
		n = len(data)
	}

	first := n
	if tail := rb.size - rb.read; first > tail {
		first = tail
	}
	copy(data, rb.buffer[rb.read:rb.read+first])
	copy(data[first:n], rb.buffer)
	rb.read = (rb.read + n) % rb.size
	return n
}

// Ready is signalled after a write that stored at least one byte
func (rb *RingBuffer) Ready() <-chan struct{} {
	return rb.ready
}

// Available returns the number of bytes available to read
func (rb *RingBuffer) Available() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.used()
}

// Dropped returns how many bytes were discarded because the buffer was full
func (rb *RingBuffer) Dropped() int64 {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.dropped
}

// Clear clears the buffer
func (rb *RingBuffer) Clear() {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.read = 0
	rb.write = 0
}

// IsEmpty returns true if the buffer is empty
func (rb *RingBuffer) IsEmpty() bool {
	return rb.Available() == 0
}

// IsFull returns true if the buffer is full
func (rb *RingBuffer) IsFull() bool {
	return rb.Available() == rb.size-1
}

func (rb *RingBuffer) used() int {
	if rb.write >= rb.read {
		return rb.write - rb.read
	}
	return rb.size - rb.read + rb.write
}
