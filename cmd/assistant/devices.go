package main

import (
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/lexiqai/voice-assistant/internal/audio"
	"github.com/lexiqai/voice-assistant/internal/config"
	"github.com/lexiqai/voice-assistant/internal/observability"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "Show the capture tool and resolve the capture device",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(config.WithTextOnly(true))
		if err != nil {
			return err
		}
		observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
		out := cmd.OutOrStdout()

		if cfg.CaptureBackend == config.CaptureBackendMalgo {
			fmt.Fprintln(out, "backend: malgo (default input device)")
			return nil
		}

		source := newCommandSource(cfg)
		fmt.Fprintf(out, "platform: %s\n", runtime.GOOS)
		fmt.Fprintf(out, "tool:     %s\n", source.Tool())
		if err := source.Available(); err != nil {
			return err
		}

		switch {
		case cfg.CaptureDevice != "":
			fmt.Fprintf(out, "device:   %s (CAPTURE_DEVICE)\n", cfg.CaptureDevice)
		case source.Resolver() == nil:
			fmt.Fprintln(out, "device:   system default")
		default:
			ctx := cmd.Context()
			start := time.Now()
			device, err := source.Resolver().Resolve(ctx)
			if errors.Is(err, audio.ErrNoDevice) {
				return fmt.Errorf("%s lists no audio input devices; connect one or set CAPTURE_DEVICE", source.Tool())
			}
			if err != nil {
				return fmt.Errorf("probe capture devices: %w", err)
			}
			fmt.Fprintf(out, "device:   %s (probed in %s)\n", device, time.Since(start).Round(time.Millisecond))
		}
		return nil
	},
}
