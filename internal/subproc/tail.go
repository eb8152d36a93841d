package subproc

import (
	"strings"
	"sync"
)

// Tail is an io.Writer that keeps only the last Limit bytes written to it.
// It is used as a subprocess stderr sink so diagnostics stay bounded.
type Tail struct {
	Limit int

	mu  sync.Mutex
	buf []byte
}

// NewTail returns a Tail keeping at most limit bytes
func NewTail(limit int) *Tail {
	return &Tail{Limit: limit}
}

func (t *Tail) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.Limit; t.Limit > 0 && over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(p), nil
}

// String returns the retained output with surrounding whitespace trimmed
func (t *Tail) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.TrimSpace(string(t.buf))
}
