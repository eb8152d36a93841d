package audio

// VADConfig holds configuration for energy-based voice activity detection
type VADConfig struct {
	EnergyThreshold float64 // RMS energy threshold for speech detection
	SilenceFrames   int     // Consecutive quiet frames before speech is considered over
}

// DefaultVADConfig returns a default VAD configuration tuned for 100ms frames
func DefaultVADConfig() *VADConfig {
	return &VADConfig{
		EnergyThreshold: 500.0,
		SilenceFrames:   5, // 500ms at 100ms frames
	}
}

// VADDetector tracks whether a stream of frames currently contains speech.
// It is not safe for concurrent use; each capture owns its own detector.
type VADDetector struct {
	config         VADConfig
	silenceCounter int
	isSpeaking     bool
}

// NewVADDetector creates a new VAD detector
func NewVADDetector(config *VADConfig) *VADDetector {
	if config == nil {
		config = DefaultVADConfig()
	}
	return &VADDetector{config: *config}
}

// ProcessFrame classifies one PCM frame.
// Returns: (isSpeaking, speechStarted, speechEnded)
func (v *VADDetector) ProcessFrame(frame Frame) (bool, bool, bool) {
	return v.ProcessSamples(BytesToSamples(frame))
}

// ProcessSamples classifies already decoded samples
func (v *VADDetector) ProcessSamples(samples []int16) (bool, bool, bool) {
	frameHasSpeech := CalculateRMS(samples) > v.config.EnergyThreshold

	var speechStarted, speechEnded bool
	if frameHasSpeech {
		v.silenceCounter = 0
		if !v.isSpeaking {
			speechStarted = true
			v.isSpeaking = true
		}
		return v.isSpeaking, speechStarted, speechEnded
	}

	v.silenceCounter++
	if v.isSpeaking && v.silenceCounter >= v.config.SilenceFrames {
		speechEnded = true
		v.isSpeaking = false
		v.silenceCounter = 0
	}
	return v.isSpeaking, speechStarted, speechEnded
}

// Reset resets the VAD detector state
func (v *VADDetector) Reset() {
	v.silenceCounter = 0
	v.isSpeaking = false
}

// IsSpeaking returns whether speech is currently detected
func (v *VADDetector) IsSpeaking() bool {
	return v.isSpeaking
}
