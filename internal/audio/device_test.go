package audio

import (
	"context"
	"errors"
	"testing"
)

func TestParseDShowDevices_Tagged(t *testing.T) {
	output := `[dshow @ 0000021f] "Integrated Camera" (video)
[dshow @ 0000021f]   Alternative name "@device_pnp_\\?\usb#vid"
[dshow @ 0000021f] "Microphone Array (Realtek(R) Audio)" (audio)
[dshow @ 0000021f]   Alternative name "@device_cm_{33D9A762}\wave_{A1B2}"
[dshow @ 0000021f] "Headset Microphone (USB)" (audio)
dummy: Immediate exit requested`

	devices := ParseDShowDevices(output)
	if len(devices) != 2 {
		t.Fatalf("Expected 2 devices, got %d: %v", len(devices), devices)
	}
	if devices[0] != "Microphone Array (Realtek(R) Audio)" {
		t.Errorf("Unexpected first device: %s", devices[0])
	}
}

func TestParseDShowDevices_Sectioned(t *testing.T) {
	output := `[dshow @ 02c4] DirectShow video devices (some may be both video and audio devices)
[dshow @ 02c4]  "USB Camera"
[dshow @ 02c4] DirectShow audio devices
[dshow @ 02c4]  "Microphone (High Definition Audio Device)"
[dshow @ 02c4]     Alternative name "@device_cm_{33D9A762}"`

	devices := ParseDShowDevices(output)
	if len(devices) != 1 || devices[0] != "Microphone (High Definition Audio Device)" {
		t.Errorf("Expected single microphone, got %v", devices)
	}
}

func TestDeviceResolver_CacheAndInvalidate(t *testing.T) {
	probes := 0
	resolver := NewDeviceResolver(func(ctx context.Context) ([]string, error) {
		probes++
		return []string{"Mic A", "Mic B"}, nil
	})

	for i := 0; i < 3; i++ {
		device, err := resolver.Resolve(context.Background())
		if err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		if device != "Mic A" {
			t.Errorf("Expected 'Mic A', got '%s'", device)
		}
	}
	if probes != 1 {
		t.Errorf("Expected 1 probe, got %d", probes)
	}

	resolver.Invalidate()
	resolver.Resolve(context.Background())
	if probes != 2 {
		t.Errorf("Expected re-probe after Invalidate, got %d probes", probes)
	}
}

func TestDeviceResolver_NoDevice(t *testing.T) {
	resolver := NewDeviceResolver(func(ctx context.Context) ([]string, error) {
		return nil, nil
	})

	if _, err := resolver.Resolve(context.Background()); !errors.Is(err, ErrNoDevice) {
		t.Errorf("Expected ErrNoDevice, got %v", err)
	}
}
