package tts

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"github.com/lexiqai/voice-assistant/internal/observability"
	"github.com/lexiqai/voice-assistant/internal/subproc"
)

// Playback outcomes
const (
	outcomeCompleted   = "completed"
	outcomeInterrupted = "interrupted"
	outcomeFallback    = "fallback"
)

var fallbackStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00ff9f"))

// Synthesizer speaks text through an external renderer, one utterance at a time.
// Starting a new utterance always kills the previous one first.
type Synthesizer struct {
	renderer *Renderer // nil means text output only
	out      io.Writer
	logger   zerolog.Logger

	mu      sync.Mutex
	current *playback
}

type playback struct {
	cmd     *exec.Cmd
	stderr  *subproc.Tail
	started time.Time
	exited  time.Time // set before done is closed
	waitErr error     // set before done is closed
	done    chan struct{}
	killed  atomic.Bool
}

func (p *playback) finished() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// NewSynthesizer creates a synthesizer. With a nil renderer every utterance
// is written to out instead of being spoken.
func NewSynthesizer(renderer *Renderer, out io.Writer) *Synthesizer {
	return &Synthesizer{
		renderer: renderer,
		out:      out,
		logger:   observability.Component("tts"),
	}
}

// Speak stops any current playback, then speaks text and blocks until it
// finishes, is stopped, or ctx is cancelled. Failures fall back to text.
func (s *Synthesizer) Speak(ctx context.Context, text string) {
	text = strings.TrimSpace(text)

	s.mu.Lock()
	s.stopLocked()
	if text == "" {
		s.mu.Unlock()
		return
	}

	p, err := s.start(text)
	if err != nil {
		s.mu.Unlock()
		if s.renderer != nil {
			s.logger.Warn().Err(err).Msg("Speech renderer unavailable, printing instead")
		}
		s.fallback(text)
		return
	}
	s.current = p
	s.mu.Unlock()

	select {
	case <-p.done:
		if p.waitErr != nil && !p.killed.Load() {
			s.logger.Warn().Err(p.waitErr).Str("stderr", p.stderr.String()).Msg("Speech renderer failed, printing instead")
			s.fallback(text)
		}
	case <-ctx.Done():
		s.Stop()
	}

	s.mu.Lock()
	if s.current == p {
		s.current = nil
	}
	s.mu.Unlock()
}

// Stop kills the current playback, if any, and waits for it to exit.
// It is safe to call at any time, any number of times.
func (s *Synthesizer) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

// Speaking reports whether a playback is in progress
func (s *Synthesizer) Speaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current != nil && !s.current.finished()
}

func (s *Synthesizer) stopLocked() {
	p := s.current
	if p == nil {
		return
	}
	s.current = nil
	if p.finished() {
		return
	}

	p.killed.Store(true)
	subproc.Kill(p.cmd)
	<-p.done
	observability.RecordPlayback(outcomeInterrupted)
	s.logger.Debug().Dur("played", p.exited.Sub(p.started)).Msg("Playback interrupted")
}

func (s *Synthesizer) start(text string) (*playback, error) {
	if s.renderer == nil {
		return nil, fmt.Errorf("no speech renderer configured")
	}

	cmd := s.renderer.command(text)
	subproc.Configure(cmd)
	stderr := subproc.NewTail(512)
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", s.renderer.Tool, err)
	}

	p := &playback{
		cmd:     cmd,
		stderr:  stderr,
		started: time.Now(),
		done:    make(chan struct{}),
	}
	go func() {
		p.waitErr = cmd.Wait()
		p.exited = time.Now()
		if p.waitErr == nil {
			observability.RecordPlayback(outcomeCompleted)
		}
		close(p.done)
	}()
	return p, nil
}

func (s *Synthesizer) fallback(text string) {
	observability.RecordPlayback(outcomeFallback)
	if s.out == nil {
		return
	}
	fmt.Fprintln(s.out, fallbackStyle.Render("assistant: "+text))
}
