package audio

import (
	"context"
	"errors"
	"fmt"
	"iter"
)

// Frame is a fixed-size block of raw PCM owned by whoever received it
type Frame []byte

// Source opens live microphone streams
type Source interface {
	// Open starts capture. The stream is bound to ctx: cancelling it closes
	// the stream and ends its frame sequence cleanly.
	Open(ctx context.Context) (Stream, error)
}

// Stream is a single capture session. Once closed it cannot be reopened.
type Stream interface {
	// Frames yields frames until Close, or a single CaptureError if the
	// capture ends on its own.
	Frames() iter.Seq2[Frame, error]
	Close() error
}

var (
	// ErrClosed is yielded when Frames is called on a stream that was already closed
	ErrClosed = errors.New("audio stream closed")

	// ErrToolUnavailable means the capture tool or device cannot be used at all
	ErrToolUnavailable = errors.New("capture tool unavailable")
)

// CaptureError reports a capture that ended without being asked to
type CaptureError struct {
	Err    error
	Stderr string // tail of the capture tool's diagnostics, if any
}

func (e *CaptureError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("audio capture failed: %v (%s)", e.Err, e.Stderr)
	}
	return fmt.Sprintf("audio capture failed: %v", e.Err)
}

func (e *CaptureError) Unwrap() error {
	return e.Err
}

// IsCaptureError reports whether err is or wraps a CaptureError
func IsCaptureError(err error) bool {
	var captureErr *CaptureError
	return errors.As(err, &captureErr)
}
