package listen

import (
	"context"
	"errors"
	"iter"
	"sync"
	"time"

	"github.com/lexiqai/voice-assistant/internal/audio"
	"github.com/lexiqai/voice-assistant/internal/stt"
)

type fakeSource struct {
	mu       sync.Mutex
	failures int // opens that fail before one succeeds
	opens    int
	frame    func(i int) audio.Frame
}

func (s *fakeSource) Open(ctx context.Context) (audio.Stream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.opens++
	if s.opens <= s.failures {
		return nil, &audio.CaptureError{Err: errors.New("device busy")}
	}
	return &fakeStream{frame: s.frame, done: make(chan struct{})}, nil
}

func (s *fakeSource) Opens() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opens
}

type fakeStream struct {
	frame func(i int) audio.Frame
	done  chan struct{}
	once  sync.Once
}

func (s *fakeStream) Frames() iter.Seq2[audio.Frame, error] {
	return func(yield func(audio.Frame, error) bool) {
		for i := 1; ; i++ {
			select {
			case <-s.done:
				return
			default:
			}

			frame := make(audio.Frame, 320)
			if s.frame != nil {
				frame = s.frame(i)
			}
			if !yield(frame, nil) {
				return
			}
		}
	}
}

func (s *fakeStream) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// fakeRecognizer returns scripted results keyed by the 1-based frame number
type fakeRecognizer struct {
	mu     sync.Mutex
	script func(i int) []stt.Result
	frames int
	clock  *fakeClock // advanced 100ms per frame when set
}

func (r *fakeRecognizer) Start(ctx context.Context) (stt.Stream, error) {
	return &fakeRecognition{r: r}, nil
}

func (r *fakeRecognizer) Frames() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

type fakeRecognition struct {
	r *fakeRecognizer
}

func (s *fakeRecognition) Accept(frame audio.Frame) ([]stt.Result, error) {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()

	s.r.frames++
	if s.r.clock != nil {
		s.r.clock.Advance(100 * time.Millisecond)
	}
	if s.r.script == nil {
		return nil, nil
	}
	return s.r.script(s.r.frames), nil
}

func (s *fakeRecognition) Close() error {
	return nil
}

func partial(text string) []stt.Result {
	return []stt.Result{{Kind: stt.Partial, Text: text}}
}

func final(text string) []stt.Result {
	return []stt.Result{{Kind: stt.Final, Text: text}}
}
