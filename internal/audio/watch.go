package audio

import (
	"context"
	"sync"
)

// cancelWatch ties a stream's Close to its open context. The callback may
// fire before AfterFunc has returned, so the stop func lives behind a lock.
type cancelWatch struct {
	mu   sync.Mutex
	stop func() bool
}

func (w *cancelWatch) attach(ctx context.Context, f func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stop = context.AfterFunc(ctx, f)
}

func (w *cancelWatch) release() {
	w.mu.Lock()
	stop := w.stop
	w.mu.Unlock()
	if stop != nil {
		stop()
	}
}
