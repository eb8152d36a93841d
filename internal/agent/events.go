package agent

import "encoding/json"

// EventKind tags the events delivered by an engine
type EventKind int

const (
	KindReplyContent EventKind = iota
	KindTurnComplete
	KindTurnError
	KindOperationInvoked
)

// Event is one item on an engine's event stream
type Event interface {
	Kind() EventKind
}

// ReplyContent carries reply text. Later content supersedes earlier content.
type ReplyContent struct {
	Text string
}

// TurnComplete ends a turn successfully
type TurnComplete struct{}

// TurnError ends a turn with a failure
type TurnError struct {
	Err error
}

// OperationInvoked reports an operation the engine ran during the turn
type OperationInvoked struct {
	Name      string
	Arguments json.RawMessage
	Result    string
}

func (ReplyContent) Kind() EventKind     { return KindReplyContent }
func (TurnComplete) Kind() EventKind     { return KindTurnComplete }
func (TurnError) Kind() EventKind        { return KindTurnError }
func (OperationInvoked) Kind() EventKind { return KindOperationInvoked }
