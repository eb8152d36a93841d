package audio

import (
	"encoding/binary"
	"math"
	"time"
)

// Capture format shared by every source: 16 kHz mono 16-bit little-endian PCM
const (
	SampleRate     = 16000
	Channels       = 1
	BytesPerSample = 2
)

// FrameBytes returns the size in bytes of a frame holding d of audio
func FrameBytes(d time.Duration) int {
	samples := int(int64(SampleRate) * int64(d) / int64(time.Second))
	if samples < 1 {
		samples = 1
	}
	return samples * Channels * BytesPerSample
}

// FrameDuration returns how much audio n bytes of PCM hold
func FrameDuration(n int) time.Duration {
	samples := n / (Channels * BytesPerSample)
	return time.Duration(samples) * time.Second / SampleRate
}

// BytesToSamples decodes little-endian 16-bit PCM. A trailing odd byte is ignored.
func BytesToSamples(pcm []byte) []int16 {
	samples := make([]int16, len(pcm)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}
	return samples
}

// CalculateRMS calculates the root mean square (RMS) of audio samples
// Useful for detecting audio levels and silence
func CalculateRMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0.0
	}

	sum := 0.0
	for _, sample := range samples {
		sum += float64(sample) * float64(sample)
	}

	return math.Sqrt(sum / float64(len(samples)))
}
