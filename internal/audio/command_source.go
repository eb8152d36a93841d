package audio

import (
	"context"
	"fmt"
	"io"
	"iter"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/lexiqai/voice-assistant/internal/observability"
	"github.com/lexiqai/voice-assistant/internal/subproc"
)

const stderrTailBytes = 2048

// Profile describes how to launch a capture tool that writes raw PCM to stdout
type Profile struct {
	Tool string
	// Args builds the argument list. device is empty when the default device is used.
	Args func(device string) []string
	// NeedsDevice is set on platforms without a usable default device
	NeedsDevice bool
}

// PlatformProfile returns the capture profile for the given GOOS
func PlatformProfile(goos string) Profile {
	switch goos {
	case "darwin":
		return Profile{
			Tool: "sox",
			Args: func(device string) []string {
				input := []string{"-d"}
				if device != "" {
					input = []string{"-t", "coreaudio", device}
				}
				return append(append([]string{"-q"}, input...),
					"-t", "raw", "-r", "16000", "-e", "signed-integer", "-b", "16", "-c", "1", "-")
			},
		}
	case "windows":
		return Profile{
			Tool: "ffmpeg",
			Args: func(device string) []string {
				return []string{"-hide_banner", "-loglevel", "error", "-f", "dshow", "-i", "audio=" + device,
					"-ac", "1", "-ar", "16000", "-f", "s16le", "-"}
			},
			NeedsDevice: true,
		}
	default:
		return Profile{
			Tool: "arecord",
			Args: func(device string) []string {
				args := []string{"-q", "-f", "S16_LE", "-r", "16000", "-c", "1", "-t", "raw"}
				if device != "" {
					args = append(args, "-D", device)
				}
				return args
			},
		}
	}
}

// CustomProfile builds a profile from a whitespace separated command line
func CustomProfile(commandLine string) Profile {
	fields := strings.Fields(commandLine)
	if len(fields) == 0 {
		return Profile{}
	}
	return Profile{
		Tool: fields[0],
		Args: func(string) []string { return fields[1:] },
	}
}

// CommandOptions configures a CommandSource
type CommandOptions struct {
	Profile       *Profile        // defaults to PlatformProfile(runtime.GOOS)
	Device        string          // explicit device; skips probing
	Resolver      *DeviceResolver // used when the profile needs a device and none is given
	FrameDuration time.Duration   // audio per frame, default 100ms
}

// CommandSource captures audio by supervising an external recording tool
type CommandSource struct {
	profile    Profile
	device     string
	resolver   *DeviceResolver
	frameBytes int
	logger     zerolog.Logger
}

// NewCommandSource creates a capture source for the current platform
func NewCommandSource(opts CommandOptions) *CommandSource {
	profile := PlatformProfile(runtime.GOOS)
	if opts.Profile != nil {
		profile = *opts.Profile
	}
	frameDuration := opts.FrameDuration
	if frameDuration <= 0 {
		frameDuration = 100 * time.Millisecond
	}
	resolver := opts.Resolver
	if resolver == nil && profile.NeedsDevice && opts.Device == "" {
		resolver = NewDeviceResolver(DShowProbe(profile.Tool))
	}

	return &CommandSource{
		profile:    profile,
		device:     opts.Device,
		resolver:   resolver,
		frameBytes: FrameBytes(frameDuration),
		logger:     observability.Component("audio"),
	}
}

// Resolver returns the device resolver, or nil when the default device is used
func (s *CommandSource) Resolver() *DeviceResolver {
	return s.resolver
}

// Tool returns the capture tool name
func (s *CommandSource) Tool() string {
	return s.profile.Tool
}

// Available reports whether the capture tool can be found on PATH
func (s *CommandSource) Available() error {
	if s.profile.Tool == "" {
		return fmt.Errorf("%w: no capture tool configured", ErrToolUnavailable)
	}
	if _, err := exec.LookPath(s.profile.Tool); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrToolUnavailable, s.profile.Tool, err)
	}
	return nil
}

// Open launches the capture tool
func (s *CommandSource) Open(ctx context.Context) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.Available(); err != nil {
		return nil, err
	}

	device := s.device
	if device == "" && s.profile.NeedsDevice {
		if s.resolver == nil {
			return nil, fmt.Errorf("%w: %s needs a capture device", ErrToolUnavailable, s.profile.Tool)
		}
		resolved, err := s.resolver.Resolve(ctx)
		if err != nil {
			return nil, &CaptureError{Err: fmt.Errorf("resolve capture device: %w", err)}
		}
		device = resolved
	}

	var args []string
	if s.profile.Args != nil {
		args = s.profile.Args(device)
	}
	cmd := exec.Command(s.profile.Tool, args...)
	subproc.Configure(cmd)
	stderr := subproc.NewTail(stderrTailBytes)
	cmd.Stderr = stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &CaptureError{Err: err}
	}
	if err := cmd.Start(); err != nil {
		s.invalidateDevice()
		return nil, &CaptureError{Err: fmt.Errorf("start %s: %w", s.profile.Tool, err)}
	}

	s.logger.Debug().
		Str("tool", s.profile.Tool).
		Str("device", device).
		Int("pid", cmd.Process.Pid).
		Msg("Capture process started")

	stream := &commandStream{
		cmd:        cmd,
		stdout:     stdout,
		stderr:     stderr,
		frameBytes: s.frameBytes,
		onFailure:  s.invalidateDevice,
	}
	stream.watch.attach(ctx, func() { stream.Close() })
	if err := ctx.Err(); err != nil {
		stream.Close()
		return nil, err
	}
	return stream, nil
}

// A failed launch may mean the probed device went away
func (s *CommandSource) invalidateDevice() {
	if s.resolver != nil && s.device == "" {
		s.resolver.Invalidate()
	}
}

type commandStream struct {
	cmd        *exec.Cmd
	stdout     io.ReadCloser
	stderr     *subproc.Tail
	frameBytes int
	onFailure  func()
	watch      cancelWatch

	closed   atomic.Bool
	reapOnce sync.Once
}

func (s *commandStream) Frames() iter.Seq2[Frame, error] {
	return func(yield func(Frame, error) bool) {
		if s.closed.Load() {
			yield(nil, ErrClosed)
			return
		}

		for {
			frame := make(Frame, s.frameBytes)
			n, err := io.ReadFull(s.stdout, frame)
			if err != nil {
				if s.closed.Load() {
					return
				}
				yield(nil, s.fail(n, err))
				return
			}
			if !yield(frame, nil) {
				return
			}
		}
	}
}

// fail tears the process down after an unrequested end of output
func (s *commandStream) fail(n int, readErr error) error {
	s.closed.Store(true)
	s.watch.release()
	s.reap()
	if s.onFailure != nil {
		s.onFailure()
	}

	cause := fmt.Errorf("capture output ended after %d of %d frame bytes: %w", n, s.frameBytes, readErr)
	if n == 0 {
		cause = fmt.Errorf("zero-byte read from capture process: %w", readErr)
	}
	return &CaptureError{Err: cause, Stderr: s.stderr.String()}
}

func (s *commandStream) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.watch.release()
	s.reap()
	return nil
}

func (s *commandStream) reap() {
	s.reapOnce.Do(func() {
		subproc.Kill(s.cmd)
		// Wait must not race a reader still blocked on the pipe
		s.stdout.Close()
		s.cmd.Wait()
	})
}
