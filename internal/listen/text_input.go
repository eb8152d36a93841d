package listen

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrInputClosed is returned once the text input reaches end of file
var ErrInputClosed = errors.New("input closed")

// TextInput reads utterances as lines of text, for running without audio
type TextInput struct {
	lines  chan string
	prompt io.Writer
}

// NewTextInput starts reading lines from r. The prompt marker is written to
// prompt before each read; pass nil to disable it.
func NewTextInput(r io.Reader, prompt io.Writer) *TextInput {
	t := &TextInput{
		lines:  make(chan string),
		prompt: prompt,
	}
	go t.scan(r)
	return t
}

func (t *TextInput) scan(r io.Reader) {
	defer close(t.lines)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		t.lines <- scanner.Text()
	}
}

// Capture returns the next line. Blank lines come back as "".
func (t *TextInput) Capture(ctx context.Context) (string, error) {
	if t.prompt != nil {
		fmt.Fprint(t.prompt, "> ")
	}

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case line, ok := <-t.lines:
		if !ok {
			return "", ErrInputClosed
		}
		return strings.TrimSpace(line), nil
	}
}
