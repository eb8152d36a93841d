package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/invopop/jsonschema"
	"github.com/rs/zerolog"

	"github.com/lexiqai/voice-assistant/internal/observability"
)

const (
	setupTimeout = 10 * time.Second
	writeTimeout = 5 * time.Second
)

// EngineMessage is one JSON text frame of the engine protocol
type EngineMessage struct {
	Type         string          `json:"type"`
	ID           string          `json:"id,omitempty"`
	Text         string          `json:"text,omitempty"`
	Instructions string          `json:"instructions,omitempty"`
	Operations   []OperationSpec `json:"operations,omitempty"`
	CallID       string          `json:"call_id,omitempty"`
	Name         string          `json:"name,omitempty"`
	Arguments    json.RawMessage `json:"arguments,omitempty"`
	Result       string          `json:"result,omitempty"`
	Code         string          `json:"code,omitempty"`
	Message      string          `json:"message,omitempty"`
}

// OperationSpec is how an operation is advertised to the engine
type OperationSpec struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Parameters  *jsonschema.Schema `json:"parameters,omitempty"`
}

// WebSocketEngine talks to a remote reasoning engine over a websocket
type WebSocketEngine struct {
	url    string
	token  string
	dialer *websocket.Dialer
	logger zerolog.Logger

	mu         sync.Mutex // guards conn and serializes writes
	conn       *websocket.Conn
	operations *Registry
	handler    func(Event)
}

// NewWebSocketEngine creates an engine client for url. token, if set, is sent as a bearer token.
func NewWebSocketEngine(url, token string) *WebSocketEngine {
	return &WebSocketEngine{
		url:    url,
		token:  token,
		dialer: &websocket.Dialer{HandshakeTimeout: setupTimeout},
		logger: observability.Component("agent"),
	}
}

// Connect dials the engine, sends the session setup and waits for it to be accepted
func (e *WebSocketEngine) Connect(ctx context.Context, setup Setup, handler func(Event)) error {
	e.Close()

	header := http.Header{}
	if e.token != "" {
		header.Set("Authorization", "Bearer "+e.token)
	}

	conn, resp, err := e.dialer.DialContext(ctx, e.url, header)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return fmt.Errorf("%w (handshake status %d)", ErrUnauthorized, resp.StatusCode)
		}
		return fmt.Errorf("failed to dial reasoning engine at %s: %w", e.url, err)
	}

	operations := setup.Operations
	if operations == nil {
		operations = NewRegistry()
	}
	specs := make([]OperationSpec, 0)
	for _, op := range operations.List() {
		specs = append(specs, OperationSpec{Name: op.Name, Description: op.Description, Parameters: op.Parameters})
	}

	if err := writeMessage(conn, EngineMessage{
		Type:         "session.setup",
		Instructions: setup.Instructions,
		Operations:   specs,
	}); err != nil {
		conn.Close()
		return fmt.Errorf("failed to send session setup: %w", err)
	}

	if err := awaitReady(ctx, conn); err != nil {
		conn.Close()
		return err
	}

	e.mu.Lock()
	e.conn = conn
	e.operations = operations
	e.handler = handler
	e.mu.Unlock()

	go e.readLoop(conn)

	e.logger.Info().Str("url", e.url).Int("operations", len(specs)).Msg("Connected to reasoning engine")
	return nil
}

func awaitReady(ctx context.Context, conn *websocket.Conn) error {
	deadline := time.Now().Add(setupTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	conn.SetReadDeadline(deadline)
	defer conn.SetReadDeadline(time.Time{})

	// Unblock the read if ctx is cancelled mid-handshake
	stop := context.AfterFunc(ctx, func() { conn.SetReadDeadline(time.Now()) })
	defer stop()

	for {
		var msg EngineMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("waiting for session.ready: %w", err)
		}

		switch msg.Type {
		case "session.ready":
			return nil
		case "session.error":
			if msg.Code == "unauthorized" {
				return fmt.Errorf("%w: %s", ErrUnauthorized, msg.Message)
			}
			return fmt.Errorf("reasoning engine refused session: %s", msg.Message)
		}
	}
}

// Submit sends a prompt; its events arrive on the handler
func (e *WebSocketEngine) Submit(ctx context.Context, prompt string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.conn == nil {
		return ErrConnectionLost
	}
	if err := writeMessage(e.conn, EngineMessage{Type: "prompt", ID: uuid.New().String(), Text: prompt}); err != nil {
		return fmt.Errorf("%w: %v", ErrConnectionLost, err)
	}
	return nil
}

func (e *WebSocketEngine) readLoop(conn *websocket.Conn) {
	for {
		var msg EngineMessage
		if err := conn.ReadJSON(&msg); err != nil {
			e.connectionEnded(conn, err)
			return
		}

		e.mu.Lock()
		handler, operations := e.handler, e.operations
		e.mu.Unlock()

		switch msg.Type {
		case "assistant.message":
			handler(ReplyContent{Text: msg.Text})
		case "operation.call":
			result := operations.Invoke(context.Background(), msg.Name, msg.Arguments)
			handler(OperationInvoked{Name: msg.Name, Arguments: msg.Arguments, Result: result})
			e.reply(conn, EngineMessage{Type: "operation.result", CallID: msg.CallID, Result: result})
		case "turn.complete":
			handler(TurnComplete{})
		case "error":
			handler(TurnError{Err: fmt.Errorf("reasoning engine error: %s", msg.Message)})
		default:
			e.logger.Debug().Str("type", msg.Type).Msg("Ignoring engine message")
		}
	}
}

func (e *WebSocketEngine) reply(conn *websocket.Conn, msg EngineMessage) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.conn != conn {
		return
	}
	if err := writeMessage(conn, msg); err != nil {
		e.logger.Warn().Err(err).Str("type", msg.Type).Msg("Failed to write to reasoning engine")
	}
}

func (e *WebSocketEngine) connectionEnded(conn *websocket.Conn, err error) {
	e.mu.Lock()
	current := e.conn == conn
	handler := e.handler
	if current {
		e.conn = nil
	}
	e.mu.Unlock()

	// Replaced or deliberately closed connections are not reported
	if !current {
		return
	}

	e.logger.Warn().Err(err).Msg("Reasoning engine connection lost")
	handler(TurnError{Err: fmt.Errorf("%w: %v", ErrConnectionLost, err)})
}

// Close closes the connection, if any
func (e *WebSocketEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.conn == nil {
		return nil
	}
	conn := e.conn
	e.conn = nil

	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return conn.Close()
}

func writeMessage(conn *websocket.Conn, msg EngineMessage) error {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(msg)
}

var _ Engine = (*WebSocketEngine)(nil)
