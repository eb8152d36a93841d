package main

import (
	"runtime"
	"strings"

	"github.com/lexiqai/voice-assistant/internal/agent"
	"github.com/lexiqai/voice-assistant/internal/audio"
	"github.com/lexiqai/voice-assistant/internal/config"
	"github.com/lexiqai/voice-assistant/internal/observability"
	"github.com/lexiqai/voice-assistant/internal/stt"
	"github.com/lexiqai/voice-assistant/internal/tts"
)

// buildSource returns the capture source and a check that it can be used
func buildSource(cfg *config.Config) (audio.Source, func() error) {
	frame := ms(cfg.FrameMs)

	if cfg.CaptureBackend == config.CaptureBackendMalgo {
		source := audio.NewMalgoSource(frame)
		return source, source.Available
	}

	source := newCommandSource(cfg)
	return source, source.Available
}

func newCommandSource(cfg *config.Config) *audio.CommandSource {
	opts := audio.CommandOptions{
		Device:        cfg.CaptureDevice,
		FrameDuration: ms(cfg.FrameMs),
	}
	if strings.TrimSpace(cfg.CaptureTool) != "" {
		profile := audio.CustomProfile(cfg.CaptureTool)
		opts.Profile = &profile
	}
	return audio.NewCommandSource(opts)
}

func buildRecognizer(cfg *config.Config) (stt.Recognizer, error) {
	if cfg.Recognizer == config.RecognizerCommand {
		return stt.NewCommandRecognizer(cfg.RecognizerCommand)
	}
	return stt.NewDeepgramRecognizer(stt.DeepgramOptions{
		APIKey:   cfg.DeepgramAPIKey,
		Model:    cfg.DeepgramModel,
		Language: cfg.DeepgramLanguage,
	}), nil
}

// buildRenderer picks TTS_COMMAND or the first platform renderer found on PATH.
// nil means replies are printed.
func buildRenderer(cfg *config.Config) *tts.Renderer {
	logger := observability.Component("tts")

	if renderer, ok := tts.CustomRenderer(cfg.TTSCommand); ok {
		return &renderer
	}
	renderer, ok := tts.FindRenderer(tts.PlatformRenderers(runtime.GOOS, cfg.TTSVoice, cfg.TTSRate))
	if !ok {
		logger.Warn().Str("os", runtime.GOOS).Msg("No speech renderer found, replies will be printed")
		return nil
	}
	logger.Info().Str("renderer", renderer.Tool).Msg("Using speech renderer")
	return &renderer
}

func buildEngine(cfg *config.Config) agent.Engine {
	if cfg.AgentEngine == config.EngineGemini {
		return agent.NewGeminiEngine(cfg.GeminiAPIKey, cfg.GeminiModel)
	}
	return agent.NewWebSocketEngine(cfg.AgentURL, cfg.AgentToken)
}

func vadConfig(cfg *config.Config) *audio.VADConfig {
	if cfg.VADEnergyThreshold <= 0 {
		return nil
	}
	vad := audio.DefaultVADConfig()
	vad.EnergyThreshold = cfg.VADEnergyThreshold
	if cfg.VADSilenceFrames > 0 {
		vad.SilenceFrames = cfg.VADSilenceFrames
	}
	return vad
}
