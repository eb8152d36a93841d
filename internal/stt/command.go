package stt

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/lexiqai/voice-assistant/internal/audio"
	"github.com/lexiqai/voice-assistant/internal/observability"
	"github.com/lexiqai/voice-assistant/internal/subproc"
)

// CommandRecognizer runs a local recognizer process. The process reads raw
// PCM on stdin and prints one JSON object per line: {"partial": "..."} for
// provisional text and {"text": "..."} for a closed segment.
type CommandRecognizer struct {
	tool   string
	args   []string
	logger zerolog.Logger
}

// NewCommandRecognizer creates a recognizer from a whitespace separated command line
func NewCommandRecognizer(commandLine string) (*CommandRecognizer, error) {
	fields := strings.Fields(commandLine)
	if len(fields) == 0 {
		return nil, errors.New("recognizer command is empty")
	}
	return &CommandRecognizer{
		tool:   fields[0],
		args:   fields[1:],
		logger: observability.Component("stt"),
	}, nil
}

// Start launches one recognizer process. Cancelling ctx kills it, which
// also fails an Accept blocked on a child that stopped reading.
func (r *CommandRecognizer) Start(ctx context.Context) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cmd := exec.Command(r.tool, r.args...)
	subproc.Configure(cmd)
	stderr := subproc.NewTail(1024)
	cmd.Stderr = stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start recognizer %s: %w", r.tool, err)
	}

	s := &commandStream{
		cmd:     cmd,
		stdin:   stdin,
		stderr:  stderr,
		results: make(chan Result, resultQueueSize),
		exited:  make(chan struct{}),
		logger:  r.logger,
	}
	go s.readResults(stdout)

	s.procMu.Lock()
	s.stopWatch = context.AfterFunc(ctx, s.kill)
	s.procMu.Unlock()
	return s, nil
}

type commandStream struct {
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	stderr  *subproc.Tail
	results chan Result
	exited  chan struct{} // closed once stdout reaches EOF
	logger  zerolog.Logger

	mu        sync.Mutex // serializes stdin writes
	closed    atomic.Bool
	closeOnce sync.Once

	procMu    sync.Mutex // guards the process, never taken under mu
	reaped    bool
	stopWatch func() bool
}

// kill takes the process group down unless it has already been reaped
func (s *commandStream) kill() {
	s.procMu.Lock()
	defer s.procMu.Unlock()
	if !s.reaped {
		subproc.Kill(s.cmd)
	}
}

func (s *commandStream) readResults(stdout io.Reader) {
	defer close(s.exited)

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		result, ok := parseResultLine(scanner.Bytes())
		if !ok {
			continue
		}
		select {
		case s.results <- result:
		default:
			s.logger.Warn().Msg("Result queue full, dropping transcript")
		}
	}
}

func (s *commandStream) Accept(frame audio.Frame) ([]Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Load() {
		return nil, ErrStreamClosed
	}

	select {
	case <-s.exited:
		return drain(s.results), fmt.Errorf("recognizer exited: %s", s.stderr.String())
	default:
	}

	if _, err := s.stdin.Write(frame); err != nil {
		return drain(s.results), fmt.Errorf("write to recognizer: %w", err)
	}
	return drain(s.results), nil
}

func (s *commandStream) Close() error {
	s.closed.Store(true)

	s.closeOnce.Do(func() {
		s.procMu.Lock()
		stop := s.stopWatch
		s.procMu.Unlock()
		if stop != nil {
			stop()
		}

		s.stdin.Close()

		s.procMu.Lock()
		defer s.procMu.Unlock()
		subproc.Kill(s.cmd)
		s.cmd.Wait()
		s.reaped = true
	})
	return nil
}

type resultLine struct {
	Partial *string `json:"partial"`
	Text    *string `json:"text"`
}

// parseResultLine decodes one recognizer output line. Lines without text are skipped.
func parseResultLine(line []byte) (Result, bool) {
	var parsed resultLine
	if err := json.Unmarshal(line, &parsed); err != nil {
		return Result{}, false
	}

	switch {
	case parsed.Text != nil && strings.TrimSpace(*parsed.Text) != "":
		return Result{Kind: Final, Text: strings.TrimSpace(*parsed.Text)}, true
	case parsed.Partial != nil && strings.TrimSpace(*parsed.Partial) != "":
		return Result{Kind: Partial, Text: strings.TrimSpace(*parsed.Partial)}, true
	}
	return Result{}, false
}
