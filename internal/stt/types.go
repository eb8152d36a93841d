package stt

import (
	"context"
	"errors"

	"github.com/lexiqai/voice-assistant/internal/audio"
)

// ResultKind tells provisional results from closed segments
type ResultKind int

const (
	// Partial is provisional and superseded by the next result
	Partial ResultKind = iota
	// Final closes the current segment
	Final
)

func (k ResultKind) String() string {
	if k == Final {
		return "final"
	}
	return "partial"
}

// Result is one recognition result
type Result struct {
	Kind ResultKind
	Text string
}

// IsFinal reports whether the result closes its segment
func (r Result) IsFinal() bool {
	return r.Kind == Final
}

// Recognizer starts streaming recognition sessions
type Recognizer interface {
	Start(ctx context.Context) (Stream, error)
}

// Stream is one streaming recognition session fed frame by frame
type Stream interface {
	// Accept submits a frame and returns whatever results are ready,
	// without waiting for results the frame may still produce.
	Accept(frame audio.Frame) ([]Result, error)

	// Close ends the session and releases its connection or process
	Close() error
}

// ErrStreamClosed is returned by Accept after Close
var ErrStreamClosed = errors.New("recognition stream closed")

// resultQueueSize bounds results buffered between frames
const resultQueueSize = 100

// drain collects every queued result without blocking
func drain(results <-chan Result) []Result {
	var out []Result
	for {
		select {
		case r, ok := <-results:
			if !ok {
				return out
			}
			out = append(out, r)
		default:
			return out
		}
	}
}
