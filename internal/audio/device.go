package audio

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"sync"
)

// ProbeFunc lists capture device names in preference order
type ProbeFunc func(ctx context.Context) ([]string, error)

// ErrNoDevice is returned when probing finds no capture device
var ErrNoDevice = errors.New("no capture device found")

// DeviceResolver caches the result of a device probe until invalidated
type DeviceResolver struct {
	probe ProbeFunc

	mu     sync.Mutex
	device string
}

// NewDeviceResolver creates a resolver around probe
func NewDeviceResolver(probe ProbeFunc) *DeviceResolver {
	return &DeviceResolver{probe: probe}
}

// Resolve returns the cached device, probing on first use
func (r *DeviceResolver) Resolve(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.device != "" {
		return r.device, nil
	}

	devices, err := r.probe(ctx)
	if err != nil {
		return "", err
	}
	if len(devices) == 0 {
		return "", ErrNoDevice
	}

	r.device = devices[0]
	return r.device, nil
}

// Invalidate clears the cache so the next Resolve probes again
func (r *DeviceResolver) Invalidate() {
	r.mu.Lock()
	r.device = ""
	r.mu.Unlock()
}

// DShowProbe lists DirectShow audio devices through ffmpeg
func DShowProbe(tool string) ProbeFunc {
	return func(ctx context.Context) ([]string, error) {
		if _, err := exec.LookPath(tool); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrToolUnavailable, tool, err)
		}

		var stderr bytes.Buffer
		cmd := exec.CommandContext(ctx, tool, "-hide_banner", "-list_devices", "true", "-f", "dshow", "-i", "dummy")
		cmd.Stderr = &stderr
		// ffmpeg always exits non-zero here since "dummy" is not a real input
		_ = cmd.Run()
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		return ParseDShowDevices(stderr.String()), nil
	}
}

var (
	dshowInlineAudio = regexp.MustCompile(`"([^"]+)"\s+\(audio\)`)
	dshowQuotedName  = regexp.MustCompile(`\]\s+"([^"]+)"\s*$`)
)

// ParseDShowDevices extracts audio device names from ffmpeg's device listing.
// Both the tagged "(audio)" layout and the older sectioned layout are understood.
func ParseDShowDevices(output string) []string {
	var devices []string
	inAudioSection := false

	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()

		if m := dshowInlineAudio.FindStringSubmatch(line); m != nil {
			devices = append(devices, m[1])
			continue
		}

		switch {
		case strings.Contains(line, "DirectShow audio devices"):
			inAudioSection = true
			continue
		case strings.Contains(line, "DirectShow video devices"):
			inAudioSection = false
			continue
		case strings.Contains(line, "Alternative name"):
			continue
		}

		if inAudioSection {
			if m := dshowQuotedName.FindStringSubmatch(line); m != nil {
				devices = append(devices, m[1])
			}
		}
	}

	return devices
}
