package listen

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/lexiqai/voice-assistant/internal/audio"
	"github.com/lexiqai/voice-assistant/internal/observability"
	"github.com/lexiqai/voice-assistant/internal/resilience"
	"github.com/lexiqai/voice-assistant/internal/stt"
)

// Endpointing defaults
const (
	DefaultSilenceTimeout = 2 * time.Second
	DefaultMaxDuration    = 30 * time.Second
)

// CaptureOptions configures utterance endpointing
type CaptureOptions struct {
	SilenceTimeout time.Duration          // trailing quiet after the last result
	MaxDuration    time.Duration          // hard cap regardless of speech
	Policy         resilience.RetryPolicy // retries for opening the stream
	VAD            *audio.VADConfig       // optional energy hold; nil disables
}

// Capturer records one utterance after the wake phrase
type Capturer struct {
	source     audio.Source
	recognizer stt.Recognizer
	opts       CaptureOptions
	now        func() time.Time
	logger     zerolog.Logger
}

// NewCapturer creates an utterance capturer
func NewCapturer(source audio.Source, recognizer stt.Recognizer, opts CaptureOptions) *Capturer {
	if opts.SilenceTimeout <= 0 {
		opts.SilenceTimeout = DefaultSilenceTimeout
	}
	if opts.MaxDuration <= 0 {
		opts.MaxDuration = DefaultMaxDuration
	}
	return &Capturer{
		source:     source,
		recognizer: recognizer,
		opts:       opts,
		now:        time.Now,
		logger:     observability.Component("capture"),
	}
}

// transcript keeps closed segments plus the latest provisional text
type transcript struct {
	finals  []string
	partial string
}

func (t *transcript) add(result stt.Result) bool {
	text := strings.TrimSpace(result.Text)
	if result.IsFinal() {
		t.partial = ""
		if text != "" {
			t.finals = append(t.finals, text)
		}
	} else {
		t.partial = text
	}
	return text != ""
}

func (t *transcript) String() string {
	parts := t.finals
	if t.partial != "" {
		parts = append(parts[:len(parts):len(parts)], t.partial)
	}
	return strings.Join(parts, " ")
}

// Capture streams recognition on a fresh capture stream until the speaker
// has been quiet for the silence timeout or the max duration passes. It
// returns "" with a nil error when nothing was said.
func (c *Capturer) Capture(ctx context.Context) (string, error) {
	var (
		stream      audio.Stream
		recognition stt.Stream
	)
	err := resilience.Retry(ctx, c.opts.Policy, func(ctx context.Context, attempt int) error {
		var err error
		stream, recognition, err = c.open(ctx)
		if err != nil {
			observability.RecordCaptureFailure("capture")
			c.logger.Warn().Err(err).Int("attempt", attempt).Msg("Failed to open capture")
		}
		return err
	}, nil)
	if err != nil {
		return "", err
	}
	defer stream.Close()
	defer recognition.Close()

	return c.run(ctx, stream, recognition)
}

func (c *Capturer) open(ctx context.Context) (audio.Stream, stt.Stream, error) {
	stream, err := c.source.Open(ctx)
	if err != nil {
		return nil, nil, err
	}
	recognition, err := c.recognizer.Start(ctx)
	if err != nil {
		stream.Close()
		return nil, nil, fmt.Errorf("start recognizer: %w", err)
	}
	return stream, recognition, nil
}

func (c *Capturer) run(ctx context.Context, stream audio.Stream, recognition stt.Stream) (string, error) {
	var (
		text      transcript
		heard     bool
		lastHeard time.Time
		vad       *audio.VADDetector
	)
	if c.opts.VAD != nil && c.opts.VAD.EnergyThreshold > 0 {
		vad = audio.NewVADDetector(c.opts.VAD)
	}

	start := c.now()
	// Enforces the cap even if the capture tool stops delivering frames
	capTimer := time.AfterFunc(c.opts.MaxDuration, func() { stream.Close() })
	defer capTimer.Stop()

	c.logger.Info().Msg("Capturing utterance")

	endpoint := "max_duration"
	var streamErr error
	for frame, err := range stream.Frames() {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		if err != nil {
			streamErr = err
			break
		}

		results, recErr := recognition.Accept(frame)
		now := c.now()
		for _, result := range results {
			if text.add(result) {
				heard = true
				lastHeard = now
			}
		}
		if recErr != nil {
			streamErr = recErr
			break
		}

		if vad != nil {
			if speaking, _, _ := vad.ProcessFrame(frame); speaking && heard {
				lastHeard = now
			}
		}

		if heard && now.Sub(lastHeard) >= c.opts.SilenceTimeout {
			endpoint = "silence"
			break
		}
		if now.Sub(start) >= c.opts.MaxDuration {
			break
		}
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	utterance := text.String()
	duration := c.now().Sub(start)
	if streamErr != nil {
		observability.RecordCaptureFailure("capture")
		if utterance == "" {
			return "", streamErr
		}
		// Keep what was heard before the stream broke
		c.logger.Warn().Err(streamErr).Msg("Capture ended early")
		endpoint = "stream_error"
	}

	observability.RecordUtterance(duration, utterance == "")
	c.logger.Info().
		Str("endpoint", endpoint).
		Dur("duration", duration).
		Bool("empty", utterance == "").
		Msg("Utterance captured")
	return utterance, nil
}
