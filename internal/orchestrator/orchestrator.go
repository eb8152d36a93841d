package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/lexiqai/voice-assistant/internal/agent"
	"github.com/lexiqai/voice-assistant/internal/listen"
	"github.com/lexiqai/voice-assistant/internal/observability"
	"github.com/lexiqai/voice-assistant/internal/resilience"
)

// Spoken status strings
const (
	MsgReady       = "Ready."
	MsgFarewell    = "Goodbye."
	MsgApology     = "Sorry, something went wrong. Please try again."
	MsgTrouble     = "I'm having trouble right now. Give me a moment."
	MsgInitFailure = "I can't reach the assistant service, so I'm shutting down."
)

// Agent is the reasoning engine session the loop dispatches to
type Agent interface {
	Initialize(ctx context.Context) error
	Send(ctx context.Context, prompt string) (string, error)
}

// WakeWaiter blocks until the wake phrase is heard. false means it gave up or ctx ended.
type WakeWaiter interface {
	WaitForWakeWord(ctx context.Context) bool
}

// UtteranceSource returns one user utterance; empty means nothing was said
type UtteranceSource interface {
	Capture(ctx context.Context) (string, error)
}

// Speaker plays text. Speak replaces any playback in progress.
type Speaker interface {
	Speak(ctx context.Context, text string)
	Stop()
}

// State is the loop phase
type State int32

const (
	StateStarting State = iota
	StateReady
	StateListening
	StateDispatching
	StateSpeaking
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateReady:
		return "ready"
	case StateListening:
		return "listening"
	case StateDispatching:
		return "dispatching"
	case StateSpeaking:
		return "speaking"
	default:
		return "stopped"
	}
}

// Options wires the loop's collaborators
type Options struct {
	Agent   Agent
	Wake    WakeWaiter // nil skips wake spotting (text-only mode)
	Input   UtteranceSource
	Speaker Speaker

	ExitPhrases []string
	InitPolicy  resilience.RetryPolicy

	// ErrorThreshold consecutive failures trigger a Cooldown pause
	ErrorThreshold int
	Cooldown       time.Duration
}

// Orchestrator runs the wake, capture, dispatch and speak loop
type Orchestrator struct {
	agent       Agent
	wake        WakeWaiter
	input       UtteranceSource
	speaker     Speaker
	exitPhrases map[string]struct{}
	initPolicy  resilience.RetryPolicy
	cooldown    time.Duration
	failures    *resilience.FailureCounter
	sleep       func(ctx context.Context, d time.Duration) error
	logger      zerolog.Logger

	state   atomic.Int32
	replies sync.WaitGroup
}

// New creates an orchestrator
func New(opts Options) *Orchestrator {
	if opts.InitPolicy.MaxAttempts == 0 {
		opts.InitPolicy = resilience.ExponentialPolicy(3, time.Second, 2*time.Minute)
	}
	if opts.ErrorThreshold <= 0 {
		opts.ErrorThreshold = 5
	}

	exits := make(map[string]struct{}, len(opts.ExitPhrases))
	for _, phrase := range opts.ExitPhrases {
		if p := listen.Normalize(phrase); p != "" {
			exits[p] = struct{}{}
		}
	}

	return &Orchestrator{
		agent:       opts.Agent,
		wake:        opts.Wake,
		input:       opts.Input,
		speaker:     opts.Speaker,
		exitPhrases: exits,
		initPolicy:  opts.InitPolicy,
		cooldown:    opts.Cooldown,
		failures:    resilience.NewFailureCounter(opts.ErrorThreshold),
		sleep:       resilience.Sleep,
		logger:      observability.Component("orchestrator"),
	}
}

// State returns the current loop phase
func (o *Orchestrator) State() State {
	return State(o.state.Load())
}

func (o *Orchestrator) setState(state State) {
	if prev := State(o.state.Swap(int32(state))); prev != state {
		o.logger.Debug().Str("from", prev.String()).Str("to", state.String()).Msg("Loop state changed")
	}
}

// Run initializes the agent and loops until ctx is cancelled or the user
// says an exit phrase, both of which return nil. It returns an error only
// when the agent cannot be initialized.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.setState(StateStarting)
	defer o.setState(StateStopped)
	defer func() {
		o.speaker.Stop()
		o.replies.Wait()
	}()

	if err := o.initialize(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		o.logger.Error().Err(err).Msg("Reasoning engine unavailable, stopping")
		o.say(ctx, MsgInitFailure)
		return fmt.Errorf("initialize agent: %w", err)
	}

	o.setState(StateReady)
	o.say(ctx, MsgReady)

	for ctx.Err() == nil {
		if o.cycle(ctx) {
			break
		}
	}

	o.logger.Info().Msg("Conversation loop stopped")
	return nil
}

func (o *Orchestrator) initialize(ctx context.Context) error {
	return resilience.Retry(ctx, o.initPolicy, func(ctx context.Context, attempt int) error {
		err := o.agent.Initialize(ctx)
		if err != nil {
			o.logger.Warn().Err(err).Int("attempt", attempt).Msg("Agent initialization failed")
		}
		return err
	}, func(err error) bool {
		return !errors.Is(err, agent.ErrUnauthorized)
	})
}

// cycle runs one wake, capture, dispatch, speak round. It reports whether the loop should stop.
func (o *Orchestrator) cycle(ctx context.Context) bool {
	logger := observability.WithCorrelationID(o.logger, "")

	if o.wake != nil {
		o.setState(StateListening)
		if !o.wake.WaitForWakeWord(ctx) {
			if ctx.Err() != nil {
				return true
			}
			o.fail(ctx, logger, "wake", errors.New("wake word spotting gave up"))
			return false
		}
		// Barge-in
		o.speaker.Stop()
	}

	o.setState(StateListening)
	text, err := o.input.Capture(ctx)
	if ctx.Err() != nil {
		return true
	}
	if errors.Is(err, listen.ErrInputClosed) {
		o.say(ctx, MsgFarewell)
		return true
	}
	if err != nil {
		o.fail(ctx, logger, "capture", err)
		return false
	}

	text = strings.TrimSpace(text)
	if text == "" {
		logger.Debug().Msg("Nothing heard")
		return false
	}
	if o.isExitPhrase(text) {
		logger.Info().Str("utterance", text).Msg("Exit phrase heard")
		o.say(ctx, MsgFarewell)
		return true
	}

	o.setState(StateDispatching)
	reply, err := o.dispatch(ctx, logger, text)
	if ctx.Err() != nil {
		return true
	}
	if err != nil {
		o.fail(ctx, logger, "dispatch", err)
		return false
	}
	o.failures.RecordSuccess()

	if reply != "" {
		o.speakReply(ctx, reply)
	}
	return false
}

// dispatch sends text, re-initializing the session once if it was not ready
func (o *Orchestrator) dispatch(ctx context.Context, logger zerolog.Logger, text string) (string, error) {
	reply, err := o.agent.Send(ctx, text)
	if !errors.Is(err, agent.ErrNotInitialized) {
		return reply, err
	}

	logger.Warn().Msg("Agent session not initialized, reconnecting")
	if err := o.agent.Initialize(ctx); err != nil {
		return "", err
	}
	return o.agent.Send(ctx, text)
}

func (o *Orchestrator) fail(ctx context.Context, logger zerolog.Logger, phase string, err error) {
	observability.RecordLoopFailure(phase)

	if !o.failures.RecordFailure() {
		logger.Warn().Err(err).Str("phase", phase).Int("consecutive", o.failures.Consecutive()).Msg("Cycle failed")
		o.say(ctx, MsgApology)
		return
	}

	logger.Error().Err(err).Str("phase", phase).Dur("cooldown", o.cooldown).Msg("Too many consecutive failures, cooling down")
	observability.RecordCooldown()
	o.say(ctx, MsgTrouble)
	if err := o.sleep(ctx, o.cooldown); err != nil {
		return
	}
	o.failures.Reset()
}

// speakReply plays a reply. With wake spotting enabled it plays in the
// background so the next wake detection can interrupt it.
func (o *Orchestrator) speakReply(ctx context.Context, reply string) {
	o.setState(StateSpeaking)
	if o.wake == nil {
		o.speaker.Speak(ctx, reply)
		return
	}

	o.replies.Add(1)
	go func() {
		defer o.replies.Done()
		o.speaker.Speak(ctx, reply)
	}()
}

// say plays a status string to completion
func (o *Orchestrator) say(ctx context.Context, text string) {
	o.speaker.Speak(ctx, text)
}

func (o *Orchestrator) isExitPhrase(text string) bool {
	_, ok := o.exitPhrases[listen.Normalize(text)]
	return ok
}
