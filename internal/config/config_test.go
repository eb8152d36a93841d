package config

import (
	"os"
	"testing"
)

var managedKeys = []string{
	"AGENT_ENGINE", "AGENT_URL", "GEMINI_API_KEY", "RECOGNIZER", "RECOGNIZER_COMMAND",
	"DEEPGRAM_API_KEY", "TEXT_ONLY", "CAPTURE_BACKEND", "EXIT_PHRASES", "LOG_LEVEL",
	"AGENT_INSTRUCTIONS", "FRAME_MS",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range managedKeys {
		os.Unsetenv(key)
	}
	t.Cleanup(func() {
		for _, key := range managedKeys {
			os.Unsetenv(key)
		}
	})
}

func TestLoad(t *testing.T) {
	clearEnv(t)
	os.Setenv("DEEPGRAM_API_KEY", "test-deepgram-key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.DeepgramAPIKey != "test-deepgram-key" {
		t.Errorf("Expected DeepgramAPIKey 'test-deepgram-key', got '%s'", cfg.DeepgramAPIKey)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	clearEnv(t)

	_, err := Load()
	if err == nil {
		t.Error("Expected error when DEEPGRAM_API_KEY is missing")
	}
}

func TestLoad_TextOnlySkipsAudioKeys(t *testing.T) {
	clearEnv(t)
	os.Setenv("TEXT_ONLY", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if !cfg.TextOnly {
		t.Error("Expected TextOnly true")
	}
}

func TestLoad_WithTextOnly(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(WithTextOnly(true))
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if !cfg.TextOnly {
		t.Error("Expected the option to force TextOnly")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	os.Setenv("DEEPGRAM_API_KEY", "test-deepgram-key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.WakePhrase != "hey assistant" {
		t.Errorf("Expected default WakePhrase 'hey assistant', got '%s'", cfg.WakePhrase)
	}

	if len(cfg.ExitPhrases) != 4 || cfg.ExitPhrases[0] != "goodbye" {
		t.Errorf("Expected 4 default exit phrases starting with 'goodbye', got %v", cfg.ExitPhrases)
	}

	if cfg.AgentEngine != EngineWebSocket {
		t.Errorf("Expected default AgentEngine '%s', got '%s'", EngineWebSocket, cfg.AgentEngine)
	}

	if cfg.CaptureBackend != CaptureBackendCommand {
		t.Errorf("Expected default CaptureBackend '%s', got '%s'", CaptureBackendCommand, cfg.CaptureBackend)
	}

	if cfg.SilenceTimeoutMs != 2000 {
		t.Errorf("Expected default SilenceTimeoutMs 2000, got %d", cfg.SilenceTimeoutMs)
	}

	if cfg.MaxUtteranceMs != 30000 {
		t.Errorf("Expected default MaxUtteranceMs 30000, got %d", cfg.MaxUtteranceMs)
	}

	if cfg.DeepgramModel != "nova-2" {
		t.Errorf("Expected default DeepgramModel 'nova-2', got '%s'", cfg.DeepgramModel)
	}

	if cfg.Instructions() != DefaultInstructions {
		t.Error("Expected default instructions")
	}
}

func TestConfig_ResilienceDefaults(t *testing.T) {
	clearEnv(t)
	os.Setenv("DEEPGRAM_API_KEY", "test-deepgram-key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.CaptureRetryAttempts != 3 {
		t.Errorf("Expected default CaptureRetryAttempts 3, got %d", cfg.CaptureRetryAttempts)
	}

	if cfg.InitRetryAttempts != 3 {
		t.Errorf("Expected default InitRetryAttempts 3, got %d", cfg.InitRetryAttempts)
	}

	if cfg.InitRetryBaseMs != 1000 || cfg.InitRetryMaxMs != 120000 {
		t.Errorf("Expected init backoff 1000ms..120000ms, got %d..%d", cfg.InitRetryBaseMs, cfg.InitRetryMaxMs)
	}

	if cfg.ErrorThreshold != 5 {
		t.Errorf("Expected default ErrorThreshold 5, got %d", cfg.ErrorThreshold)
	}
}

func TestConfig_ObservabilityDefaults(t *testing.T) {
	clearEnv(t)
	os.Setenv("DEEPGRAM_API_KEY", "test-deepgram-key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.LogLevel != "info" {
		t.Errorf("Expected default LogLevel 'info', got '%s'", cfg.LogLevel)
	}

	if cfg.LogPretty {
		t.Error("Expected default LogPretty false, got true")
	}

	if !cfg.MetricsEnabled {
		t.Error("Expected default MetricsEnabled true, got false")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name:    "gemini without key",
			cfg:     Config{AgentEngine: EngineGemini, TextOnly: true},
			wantErr: true,
		},
		{
			name:    "gemini with key",
			cfg:     Config{AgentEngine: EngineGemini, GeminiAPIKey: "k", TextOnly: true},
			wantErr: false,
		},
		{
			name:    "unknown engine",
			cfg:     Config{AgentEngine: "carrier-pigeon", TextOnly: true},
			wantErr: true,
		},
		{
			name: "command recognizer without command",
			cfg: Config{AgentEngine: EngineWebSocket, AgentURL: "ws://x", Recognizer: RecognizerCommand,
				CaptureBackend: CaptureBackendCommand, FrameMs: 100},
			wantErr: true,
		},
		{
			name: "command recognizer with command",
			cfg: Config{AgentEngine: EngineWebSocket, AgentURL: "ws://x", Recognizer: RecognizerCommand,
				RecognizerCommand: "vosk-stream", CaptureBackend: CaptureBackendMalgo, FrameMs: 100},
			wantErr: false,
		},
		{
			name: "unknown capture backend",
			cfg: Config{AgentEngine: EngineWebSocket, AgentURL: "ws://x", Recognizer: RecognizerDeepgram,
				DeepgramAPIKey: "k", CaptureBackend: "tape", FrameMs: 100},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Expected error=%v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestGetEnv(t *testing.T) {
	os.Setenv("TEST_KEY", "test-value")
	defer os.Unsetenv("TEST_KEY")

	value := GetEnv("TEST_KEY", "default")
	if value != "test-value" {
		t.Errorf("Expected 'test-value', got '%s'", value)
	}

	value = GetEnv("NON_EXISTENT_KEY", "default")
	if value != "default" {
		t.Errorf("Expected 'default', got '%s'", value)
	}
}
