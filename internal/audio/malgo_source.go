package audio

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"
	"time"

	"github.com/gen2brain/malgo"
	"github.com/rs/zerolog"

	"github.com/lexiqai/voice-assistant/internal/observability"
)

// DefaultStallTimeout is how long a native device may go without delivering data
const DefaultStallTimeout = 2 * time.Second

var errDeviceStopped = errors.New("capture device stopped")

// MalgoSource captures from the default input device in-process through miniaudio
type MalgoSource struct {
	frameBytes   int
	stallTimeout time.Duration
	captureCount func() (int, error)
	logger       zerolog.Logger
}

// NewMalgoSource creates a native capture source
func NewMalgoSource(frameDuration time.Duration) *MalgoSource {
	if frameDuration <= 0 {
		frameDuration = 100 * time.Millisecond
	}
	s := &MalgoSource{
		frameBytes:   FrameBytes(frameDuration),
		stallTimeout: DefaultStallTimeout,
		logger:       observability.Component("audio"),
	}
	s.captureCount = s.countCaptureDevices
	return s
}

// Available reports whether miniaudio can see at least one capture device
func (s *MalgoSource) Available() error {
	n, err := s.captureCount()
	if err != nil {
		return fmt.Errorf("%w: miniaudio: %v", ErrToolUnavailable, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %w", ErrToolUnavailable, ErrNoDevice)
	}
	return nil
}

func (s *MalgoSource) countCaptureDevices() (int, error) {
	audioCtx, err := s.initContext()
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = audioCtx.Uninit()
		audioCtx.Free()
	}()

	devices, err := audioCtx.Devices(malgo.Capture)
	if err != nil {
		return 0, err
	}
	return len(devices), nil
}

func (s *MalgoSource) initContext() (*malgo.AllocatedContext, error) {
	return malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		s.logger.Debug().Str("malgo", message).Msg("miniaudio")
	})
}

// Open initialises a capture device and starts it
func (s *MalgoSource) Open(ctx context.Context) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	audioCtx, err := s.initContext()
	if err != nil {
		return nil, fmt.Errorf("%w: miniaudio context: %v", ErrToolUnavailable, err)
	}

	stream := &malgoStream{
		audioCtx:     audioCtx,
		buffer:       NewRingBuffer(s.frameBytes * 20),
		frameBytes:   s.frameBytes,
		stallTimeout: s.stallTimeout,
		done:         make(chan struct{}),
		stopped:      make(chan struct{}),
	}

	format := malgo.FormatS16
	config := malgo.DefaultDeviceConfig(malgo.Capture)
	config.SampleRate = SampleRate
	config.Capture.Format = format
	config.Capture.Channels = Channels
	config.Alsa.NoMMap = 1
	bytesPerFrame := malgo.SampleSizeInBytes(format) * Channels

	stream.device, err = malgo.InitDevice(audioCtx.Context, config, malgo.DeviceCallbacks{
		Data: func(_, pInput []byte, frameCount uint32) {
			n := int(frameCount) * bytesPerFrame
			if len(pInput) < n || n == 0 {
				return
			}
			stream.buffer.Write(pInput[:n])
		},
		Stop: stream.deviceStopped,
	})
	if err != nil {
		stream.releaseContext()
		return nil, fmt.Errorf("%w: capture device: %v", ErrToolUnavailable, err)
	}

	if err := stream.device.Start(); err != nil {
		stream.device.Uninit()
		stream.releaseContext()
		return nil, &CaptureError{Err: fmt.Errorf("start capture device: %w", err)}
	}

	stream.watch.attach(ctx, func() { stream.Close() })
	if err := ctx.Err(); err != nil {
		stream.Close()
		return nil, err
	}
	return stream, nil
}

type malgoStream struct {
	audioCtx     *malgo.AllocatedContext
	device       *malgo.Device
	buffer       *RingBuffer
	frameBytes   int
	stallTimeout time.Duration
	watch        cancelWatch

	done        chan struct{} // closed by Close
	stopped     chan struct{} // closed when the device stops on its own
	closeOnce   sync.Once
	stoppedOnce sync.Once
}

func (s *malgoStream) deviceStopped() {
	s.stoppedOnce.Do(func() { close(s.stopped) })
}

func (s *malgoStream) Frames() iter.Seq2[Frame, error] {
	return func(yield func(Frame, error) bool) {
		select {
		case <-s.done:
			yield(nil, ErrClosed)
			return
		default:
		}

		for {
			frame, err := s.nextFrame()
			if err != nil {
				if errors.Is(err, ErrClosed) {
					return
				}
				yield(nil, err)
				return
			}
			if !yield(frame, nil) {
				return
			}
		}
	}
}

func (s *malgoStream) nextFrame() (Frame, error) {
	frame := make(Frame, s.frameBytes)
	filled := 0
	stall := time.NewTimer(s.stallTimeout)
	defer stall.Stop()

	for filled < len(frame) {
		if n := s.buffer.Read(frame[filled:]); n > 0 {
			filled += n
			if !stall.Stop() {
				select {
				case <-stall.C:
				default:
				}
			}
			stall.Reset(s.stallTimeout)
			continue
		}

		select {
		case <-s.done:
			return nil, ErrClosed
		case <-s.stopped:
			// Uninit in Close also fires the stop callback
			select {
			case <-s.done:
				return nil, ErrClosed
			default:
			}
			return nil, &CaptureError{Err: errDeviceStopped}
		case <-stall.C:
			return nil, &CaptureError{Err: fmt.Errorf("no audio from capture device for %s", s.stallTimeout)}
		case <-s.buffer.Ready():
		}
	}
	return frame, nil
}

func (s *malgoStream) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.watch.release()
		s.device.Uninit()
		s.releaseContext()
	})
	return nil
}

func (s *malgoStream) releaseContext() {
	_ = s.audioCtx.Uninit()
	s.audioCtx.Free()
}
