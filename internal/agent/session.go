package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/lexiqai/voice-assistant/internal/observability"
)

// State is the connection state of a Session
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateReady
	StateBusy
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	case StateBusy:
		return "busy"
	default:
		return "disconnected"
	}
}

// Session keeps a reasoning engine connection and turns its asynchronous
// event stream into request/reply calls. One command may be outstanding at a time.
type Session struct {
	engine       Engine
	operations   *Registry
	instructions string
	logger       zerolog.Logger

	mu      sync.Mutex
	state   State
	pending *PendingCommand
}

// NewSession creates a disconnected session
func NewSession(engine Engine, operations *Registry, instructions string) *Session {
	if operations == nil {
		operations = NewRegistry()
	}
	return &Session{
		engine:       engine,
		operations:   operations,
		instructions: instructions,
		logger:       observability.Component("agent"),
	}
}

// State returns the current connection state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setStateLocked(state State) {
	if s.state == state {
		return
	}
	s.logger.Debug().Str("from", s.state.String()).Str("to", state.String()).Msg("Session state changed")
	s.state = state
	observability.SetSessionState(int(state))
}

// Initialize connects to the engine and registers the operations and
// instructions. Any existing connection is dropped first.
func (s *Session) Initialize(ctx context.Context) error {
	s.mu.Lock()
	stale := s.pending
	s.pending = nil
	wasConnected := s.state != StateDisconnected
	s.setStateLocked(StateConnecting)
	s.mu.Unlock()

	if stale != nil {
		stale.Resolve(ErrConnectionLost)
	}
	if wasConnected {
		s.engine.Close()
	}

	err := s.engine.Connect(ctx, Setup{Instructions: s.instructions, Operations: s.operations}, s.handleEvent)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.setStateLocked(StateDisconnected)
		return fmt.Errorf("initialize agent session: %w", err)
	}
	s.setStateLocked(StateReady)
	s.logger.Info().Int("operations", len(s.operations.List())).Msg("Agent session ready")
	return nil
}

// Send submits prompt and waits for the turn to finish, returning the last
// reply text seen (possibly empty). There is no timeout: a turn may run
// several operations. Cancelling ctx releases the caller but the turn keeps
// running, and the session stays busy until it ends.
func (s *Session) Send(ctx context.Context, prompt string) (string, error) {
	s.mu.Lock()
	switch {
	case s.state == StateDisconnected || s.state == StateConnecting:
		s.mu.Unlock()
		return "", ErrNotInitialized
	case s.pending != nil:
		s.mu.Unlock()
		return "", ErrBusy
	}
	cmd := newPendingCommand(prompt)
	s.pending = cmd
	s.setStateLocked(StateBusy)
	s.mu.Unlock()

	ctx, span := tracer.Start(ctx, "agent turn")
	defer span.End()
	span.SetAttributes(attribute.String("turn.id", cmd.ID))

	logger := s.logger.With().Str("turn_id", cmd.ID).Logger()
	logger.Info().Str("prompt", prompt).Msg("Dispatching command")

	if err := s.engine.Submit(ctx, prompt); err != nil {
		s.finish(cmd, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("submit prompt: %w", err)
	}

	select {
	case <-cmd.Done():
	case <-ctx.Done():
		logger.Warn().Msg("Caller stopped waiting; turn continues in the background")
		return "", ctx.Err()
	}

	reply, err := cmd.Result()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Warn().Err(err).Msg("Turn failed")
		return "", err
	}
	logger.Info().Str("reply", reply).Dur("latency", time.Since(cmd.Created)).Msg("Turn complete")
	return reply, nil
}

// handleEvent is the engine's event callback
func (s *Session) handleEvent(ev Event) {
	s.mu.Lock()
	cmd := s.pending
	s.mu.Unlock()

	switch e := ev.(type) {
	case ReplyContent:
		if cmd != nil {
			cmd.Record(e.Text)
		}
	case OperationInvoked:
		s.logger.Info().Str("operation", e.Name).Str("result", e.Result).Msg("Engine invoked operation")
	case TurnComplete:
		if cmd != nil {
			s.finish(cmd, nil)
		}
	case TurnError:
		err := e.Err
		if err == nil {
			err = errors.New("reasoning engine reported an error")
		}
		if cmd != nil {
			s.finish(cmd, err)
		}
		if errors.Is(err, ErrConnectionLost) {
			s.mu.Lock()
			s.setStateLocked(StateDisconnected)
			s.mu.Unlock()
		}
	default:
		s.logger.Debug().Int("kind", int(ev.Kind())).Msg("Ignoring unknown event")
	}
}

// finish resolves cmd and frees the session if cmd is still the pending command
func (s *Session) finish(cmd *PendingCommand, err error) {
	if !cmd.Resolve(err) {
		return
	}
	observability.RecordTurn(cmd.Created, err == nil)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending != cmd {
		return
	}
	s.pending = nil
	switch {
	case errors.Is(err, ErrConnectionLost):
		s.setStateLocked(StateDisconnected)
	case s.state == StateBusy:
		s.setStateLocked(StateReady)
	}
}

// Close drops the engine connection and fails any outstanding command
func (s *Session) Close() error {
	s.mu.Lock()
	cmd := s.pending
	s.pending = nil
	s.setStateLocked(StateDisconnected)
	s.mu.Unlock()

	if cmd != nil {
		cmd.Resolve(ErrConnectionLost)
	}
	return s.engine.Close()
}
