package listen

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/lexiqai/voice-assistant/internal/audio"
	"github.com/lexiqai/voice-assistant/internal/observability"
	"github.com/lexiqai/voice-assistant/internal/resilience"
	"github.com/lexiqai/voice-assistant/internal/stt"
)

var errStreamEnded = errors.New("capture stream ended")

// Spotter listens for the wake phrase on a live capture stream
type Spotter struct {
	source     audio.Source
	recognizer stt.Recognizer
	wake       *WakeWordConfig
	policy     resilience.RetryPolicy
	logger     zerolog.Logger
}

// NewSpotter creates a wake-word spotter. policy bounds capture retries.
func NewSpotter(source audio.Source, recognizer stt.Recognizer, wake *WakeWordConfig, policy resilience.RetryPolicy) *Spotter {
	return &Spotter{
		source:     source,
		recognizer: recognizer,
		wake:       wake,
		policy:     policy,
		logger:     observability.Component("wake"),
	}
}

// WaitForWakeWord blocks until the wake phrase is heard in a partial or final
// result. It returns false once the capture retry budget is spent or ctx is
// cancelled.
func (s *Spotter) WaitForWakeWord(ctx context.Context) bool {
	detected := false
	err := resilience.Retry(ctx, s.policy, func(ctx context.Context, attempt int) error {
		ok, err := s.listen(ctx)
		if err != nil {
			observability.RecordCaptureFailure("wake")
			s.logger.Warn().Err(err).Int("attempt", attempt).Msg("Wake word listening failed")
			return err
		}
		detected = ok
		return nil
	}, nil)

	switch {
	case err == nil:
		return detected
	case ctx.Err() != nil:
		s.logger.Debug().Msg("Wake word listening cancelled")
	default:
		s.logger.Error().Err(err).Msg("Wake word listening gave up")
	}
	return false
}

// listen runs one attempt on a freshly opened stream
func (s *Spotter) listen(ctx context.Context) (bool, error) {
	phrase := s.wake.Phrase()

	stream, err := s.source.Open(ctx)
	if err != nil {
		return false, err
	}
	defer stream.Close()

	recognition, err := s.recognizer.Start(ctx)
	if err != nil {
		return false, fmt.Errorf("start recognizer: %w", err)
	}
	defer recognition.Close()

	s.logger.Info().Str("phrase", phrase).Msg("Listening for wake word")

	for frame, err := range stream.Frames() {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return false, ctxErr
		}
		if err != nil {
			return false, err
		}

		results, err := recognition.Accept(frame)
		for _, result := range results {
			s.logger.Debug().Str("kind", result.Kind.String()).Str("text", result.Text).Msg("Heard")
			if ContainsPhrase(result.Text, phrase) {
				observability.RecordWakeDetection()
				s.logger.Info().Str("text", result.Text).Msg("Wake word detected")
				return true, nil
			}
		}
		if err != nil {
			return false, err
		}
	}

	if err := ctx.Err(); err != nil {
		return false, err
	}
	return false, errStreamEnded
}
