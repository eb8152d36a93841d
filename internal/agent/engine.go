package agent

import (
	"context"
	"errors"
)

var (
	// ErrNotInitialized is returned by Send before a successful Initialize or after the connection dropped
	ErrNotInitialized = errors.New("agent session not initialized")

	// ErrBusy is returned by Send while another command is outstanding
	ErrBusy = errors.New("agent session busy with another command")

	// ErrUnauthorized means the engine rejected the credentials. Retrying will not help.
	ErrUnauthorized = errors.New("reasoning engine rejected credentials; check AGENT_TOKEN or GEMINI_API_KEY")

	// ErrConnectionLost means the engine connection dropped
	ErrConnectionLost = errors.New("reasoning engine connection lost")
)

// Setup is what an engine registers when connecting
type Setup struct {
	Instructions string
	Operations   *Registry
}

// Engine is a reasoning engine client. Events for a submitted prompt are
// delivered to the handler passed to Connect, one at a time and in order,
// ending with exactly one TurnComplete or TurnError.
type Engine interface {
	Connect(ctx context.Context, setup Setup, handler func(Event)) error
	Submit(ctx context.Context, prompt string) error
	Close() error
}
