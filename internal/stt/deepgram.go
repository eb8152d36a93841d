package stt

import (
	"context"
	"fmt"
	"sync"

	websocketv1api "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket"
	msginterfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	listenClient "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
	"github.com/rs/zerolog"

	"github.com/lexiqai/voice-assistant/internal/audio"
	"github.com/lexiqai/voice-assistant/internal/observability"
)

// messageCallbackHandler implements the LiveMessageCallback interface
// It embeds the default handler and overrides only the methods we need to customize
type messageCallbackHandler struct {
	*websocketv1api.DefaultCallbackHandler
	handler      func(*msginterfaces.MessageResponse)
	errorHandler func(*msginterfaces.ErrorResponse)
}

// Message forwards transcription messages to the owning stream
func (m *messageCallbackHandler) Message(message *msginterfaces.MessageResponse) error {
	m.handler(message)
	return nil
}

// Error records the failure on the owning stream
func (m *messageCallbackHandler) Error(errorResponse *msginterfaces.ErrorResponse) error {
	m.errorHandler(errorResponse)
	return nil
}

// DeepgramOptions configures the Deepgram live recognizer
type DeepgramOptions struct {
	APIKey   string
	Model    string
	Language string
}

// liveConn is the part of the Deepgram websocket client a stream drives
type liveConn interface {
	Connect() bool
	Write(p []byte) (int, error)
	Stop()
}

type dialFunc func(ctx context.Context, apiKey string, tOptions *interfaces.LiveTranscriptionOptions, callback msginterfaces.LiveMessageCallback) (liveConn, error)

func dialDeepgram(ctx context.Context, apiKey string, tOptions *interfaces.LiveTranscriptionOptions, callback msginterfaces.LiveMessageCallback) (liveConn, error) {
	client, err := listenClient.NewWSUsingCallback(ctx, apiKey, nil, tOptions, callback)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// DeepgramRecognizer streams linear16 PCM to Deepgram's live API
type DeepgramRecognizer struct {
	opts   DeepgramOptions
	dial   dialFunc
	logger zerolog.Logger
}

// NewDeepgramRecognizer creates a Deepgram streaming recognizer
func NewDeepgramRecognizer(opts DeepgramOptions) *DeepgramRecognizer {
	return &DeepgramRecognizer{
		opts:   opts,
		dial:   dialDeepgram,
		logger: observability.Component("stt"),
	}
}

// Start opens a live transcription websocket
func (d *DeepgramRecognizer) Start(ctx context.Context) (Stream, error) {
	tOptions := &interfaces.LiveTranscriptionOptions{
		Model:          d.opts.Model,
		Language:       d.opts.Language,
		Punctuate:      true,
		InterimResults: true,
		Encoding:       "linear16",
		Channels:       audio.Channels,
		SampleRate:     audio.SampleRate,
	}

	stream := &deepgramStream{
		results: make(chan Result, resultQueueSize),
		logger:  d.logger,
	}

	callback := &messageCallbackHandler{
		DefaultCallbackHandler: websocketv1api.NewDefaultCallbackHandler(),
		handler:                stream.handleMessage,
		errorHandler:           stream.handleError,
	}

	client, err := d.dial(ctx, d.opts.APIKey, tOptions, callback)
	if err != nil {
		return nil, fmt.Errorf("failed to create Deepgram client: %w", err)
	}
	if !client.Connect() {
		client.Stop()
		return nil, fmt.Errorf("failed to connect to Deepgram")
	}
	stream.client = client

	d.logger.Debug().
		Str("model", d.opts.Model).
		Str("language", d.opts.Language).
		Msg("Deepgram stream started")
	return stream, nil
}

type deepgramStream struct {
	client  liveConn
	results chan Result
	logger  zerolog.Logger

	mu     sync.Mutex
	err    error
	closed bool
}

// handleMessage runs on the SDK's receive goroutine
func (s *deepgramStream) handleMessage(msg *msginterfaces.MessageResponse) {
	if msg == nil || len(msg.Channel.Alternatives) == 0 {
		return
	}

	text := msg.Channel.Alternatives[0].Transcript
	if text == "" {
		return
	}

	result := Result{Kind: Partial, Text: text}
	if msg.IsFinal {
		result.Kind = Final
	}

	select {
	case s.results <- result:
		s.logger.Debug().Str("kind", result.Kind.String()).Str("text", text).Msg("Transcript")
	default:
		s.logger.Warn().Msg("Result queue full, dropping transcript")
	}
}

func (s *deepgramStream) handleError(errorResponse *msginterfaces.ErrorResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		s.err = fmt.Errorf("deepgram error: %+v", errorResponse)
	}
}

func (s *deepgramStream) Accept(frame audio.Frame) ([]Result, error) {
	s.mu.Lock()
	closed, streamErr := s.closed, s.err
	s.mu.Unlock()

	if closed {
		return nil, ErrStreamClosed
	}
	if streamErr != nil {
		return drain(s.results), streamErr
	}

	if _, err := s.client.Write(frame); err != nil {
		return drain(s.results), fmt.Errorf("failed to send audio to Deepgram: %w", err)
	}
	return drain(s.results), nil
}

func (s *deepgramStream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	// Finish is a no-op on the callback client; Stop closes the socket
	s.client.Stop()
	return nil
}
