package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Capture backends
const (
	CaptureBackendCommand = "command"
	CaptureBackendMalgo   = "malgo"
)

// Recognizer backends
const (
	RecognizerDeepgram = "deepgram"
	RecognizerCommand  = "command"
)

// Agent engines
const (
	EngineWebSocket = "websocket"
	EngineGemini    = "gemini"
)

// DefaultInstructions is the fixed preamble registered with the reasoning engine
const DefaultInstructions = "You are a voice assistant. Replies are spoken aloud, so answer in one or two short " +
	"sentences of plain text without markdown, lists or code. Use the available operations to read or change " +
	"state instead of guessing, and confirm what you did in a few words."

// Config holds all configuration for the voice assistant
type Config struct {
	// Admin HTTP server (health, readiness, metrics)
	AdminPort string `envconfig:"ADMIN_PORT" default:"9090"`

	// Conversation loop
	WakePhrase  string   `envconfig:"WAKE_PHRASE" default:"hey assistant"`
	ExitPhrases []string `envconfig:"EXIT_PHRASES" default:"goodbye,exit,quit,stop listening"`
	TextOnly    bool     `envconfig:"TEXT_ONLY" default:"false"` // Skip wake word, read utterances from stdin

	// Audio capture
	CaptureBackend       string `envconfig:"CAPTURE_BACKEND" default:"command"` // command, malgo
	CaptureTool          string `envconfig:"CAPTURE_TOOL" default:""`           // Override the platform capture tool
	CaptureDevice        string `envconfig:"CAPTURE_DEVICE" default:""`         // Skip probing and use this device
	FrameMs              int    `envconfig:"FRAME_MS" default:"100"`            // Milliseconds of audio per frame
	CaptureRetryAttempts int    `envconfig:"CAPTURE_RETRY_ATTEMPTS" default:"3"`
	CaptureRetryBaseMs   int    `envconfig:"CAPTURE_RETRY_BASE_MS" default:"500"`

	// Endpointing
	SilenceTimeoutMs   int     `envconfig:"SILENCE_TIMEOUT_MS" default:"2000"`
	MaxUtteranceMs     int     `envconfig:"MAX_UTTERANCE_MS" default:"30000"`
	VADEnergyThreshold float64 `envconfig:"VAD_ENERGY_THRESHOLD" default:"0"` // RMS threshold for energy hold (0 disables)
	VADSilenceFrames   int     `envconfig:"VAD_SILENCE_FRAMES" default:"5"`

	// Speech recognition
	Recognizer        string `envconfig:"RECOGNIZER" default:"deepgram"` // deepgram, command
	RecognizerCommand string `envconfig:"RECOGNIZER_COMMAND" default:""` // Reads PCM on stdin, writes JSON lines
	DeepgramAPIKey    string `envconfig:"DEEPGRAM_API_KEY"`
	DeepgramModel     string `envconfig:"DEEPGRAM_MODEL" default:"nova-2"`
	DeepgramLanguage  string `envconfig:"DEEPGRAM_LANGUAGE" default:"en"`

	// Speech synthesis
	TTSCommand string `envconfig:"TTS_COMMAND" default:""` // Override the platform renderer; text is appended
	TTSVoice   string `envconfig:"TTS_VOICE" default:""`
	TTSRate    int    `envconfig:"TTS_RATE" default:"0"`

	// Reasoning engine
	AgentEngine       string `envconfig:"AGENT_ENGINE" default:"websocket"` // websocket, gemini
	AgentURL          string `envconfig:"AGENT_URL" default:"ws://localhost:8765/session"`
	AgentToken        string `envconfig:"AGENT_TOKEN"`
	AgentHealthAddr   string `envconfig:"AGENT_HEALTH_ADDR" default:""` // Optional gRPC health endpoint
	AgentInstructions string `envconfig:"AGENT_INSTRUCTIONS" default:""`
	GeminiAPIKey      string `envconfig:"GEMINI_API_KEY"`
	GeminiModel       string `envconfig:"GEMINI_MODEL" default:"gemini-2.0-flash"`

	// Resilience configuration
	InitRetryAttempts int `envconfig:"INIT_RETRY_ATTEMPTS" default:"3"`
	InitRetryBaseMs   int `envconfig:"INIT_RETRY_BASE_MS" default:"1000"`
	InitRetryMaxMs    int `envconfig:"INIT_RETRY_MAX_MS" default:"120000"`
	ErrorThreshold    int `envconfig:"ERROR_THRESHOLD" default:"5"`       // Consecutive failures before cool-down
	ErrorCooldownMs   int `envconfig:"ERROR_COOLDOWN_MS" default:"30000"` // Cool-down pause

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`       // Log level: debug, info, warn, error
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`     // Pretty print logs (for development)
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"` // Enable Prometheus metrics
}

// Option adjusts the loaded configuration before it is validated
type Option func(*Config)

// WithTextOnly forces text-only mode, as the --text-only flag does
func WithTextOnly(textOnly bool) Option {
	return func(c *Config) {
		if textOnly {
			c.TextOnly = true
		}
	}
}

// Load reads configuration from environment variables
// It first attempts to load from .env file if it exists, then from environment
func Load(opts ...Option) (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	return LoadFromEnv(opts...)
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load .env file (useful for containerized deployments)
func LoadFromEnv(opts ...Option) (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that the selected backends have what they need
func (c *Config) Validate() error {
	switch c.AgentEngine {
	case EngineWebSocket:
		if c.AgentURL == "" {
			return fmt.Errorf("AGENT_URL is required for the websocket engine")
		}
	case EngineGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required for the gemini engine")
		}
	default:
		return fmt.Errorf("unknown AGENT_ENGINE %q (want websocket or gemini)", c.AgentEngine)
	}

	if c.TextOnly {
		return nil
	}

	switch c.Recognizer {
	case RecognizerDeepgram:
		if c.DeepgramAPIKey == "" {
			return fmt.Errorf("DEEPGRAM_API_KEY is required for the deepgram recognizer")
		}
	case RecognizerCommand:
		if strings.TrimSpace(c.RecognizerCommand) == "" {
			return fmt.Errorf("RECOGNIZER_COMMAND is required for the command recognizer")
		}
	default:
		return fmt.Errorf("unknown RECOGNIZER %q (want deepgram or command)", c.Recognizer)
	}

	switch c.CaptureBackend {
	case CaptureBackendCommand, CaptureBackendMalgo:
	default:
		return fmt.Errorf("unknown CAPTURE_BACKEND %q (want command or malgo)", c.CaptureBackend)
	}

	if c.FrameMs <= 0 {
		return fmt.Errorf("FRAME_MS must be positive")
	}

	return nil
}

// Instructions returns the instruction preamble for the reasoning engine
func (c *Config) Instructions() string {
	if strings.TrimSpace(c.AgentInstructions) != "" {
		return c.AgentInstructions
	}
	return DefaultInstructions
}

// SilenceTimeout returns the utterance trailing-silence timeout
func (c *Config) SilenceTimeout() time.Duration {
	return time.Duration(c.SilenceTimeoutMs) * time.Millisecond
}

// MaxUtterance returns the hard cap on utterance duration
func (c *Config) MaxUtterance() time.Duration {
	return time.Duration(c.MaxUtteranceMs) * time.Millisecond
}

// ErrorCooldown returns the pause taken after too many consecutive failures
func (c *Config) ErrorCooldown() time.Duration {
	return time.Duration(c.ErrorCooldownMs) * time.Millisecond
}

// GetEnv returns the value of an environment variable or a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
