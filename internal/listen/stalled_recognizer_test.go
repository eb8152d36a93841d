//go:build !windows

package listen

import (
	"context"
	"testing"
	"time"

	"github.com/lexiqai/voice-assistant/internal/audio"
	"github.com/lexiqai/voice-assistant/internal/resilience"
	"github.com/lexiqai/voice-assistant/internal/stt"
)

// A recognizer process that never reads stdin fills the pipe within a few
// frames, after which every write blocks until the process is killed.
func stalledRecognizer(t *testing.T) *stt.CommandRecognizer {
	t.Helper()
	recognizer, err := stt.NewCommandRecognizer("sleep 30")
	if err != nil {
		t.Fatalf("NewCommandRecognizer failed: %v", err)
	}
	return recognizer
}

func largeFrames(int) audio.Frame {
	return make(audio.Frame, 32000)
}

func TestSpotter_CancelWhileRecognizerStalled(t *testing.T) {
	spotter := NewSpotter(&fakeSource{frame: largeFrames}, stalledRecognizer(t),
		NewWakeWordConfig("hey assistant"), resilience.LinearPolicy(3, time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(300*time.Millisecond, cancel)

	done := make(chan bool, 1)
	go func() { done <- spotter.WaitForWakeWord(ctx) }()

	select {
	case detected := <-done:
		if detected {
			t.Error("Expected false after cancellation")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("WaitForWakeWord still blocked after cancel")
	}
}

func TestCapture_CancelWhileRecognizerStalled(t *testing.T) {
	capturer := NewCapturer(&fakeSource{frame: largeFrames}, stalledRecognizer(t), CaptureOptions{
		SilenceTimeout: 5 * time.Second,
		MaxDuration:    30 * time.Second,
		Policy:         resilience.LinearPolicy(1, time.Millisecond),
	})

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(300*time.Millisecond, cancel)

	type outcome struct {
		text string
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		text, err := capturer.Capture(ctx)
		done <- outcome{text, err}
	}()

	select {
	case got := <-done:
		if got.err == nil {
			t.Errorf("Expected an error after cancellation, got text '%s'", got.text)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Capture still blocked after cancel")
	}
}
