package main

import (
	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "assistant",
	Short: "Voice assistant: wake word, capture, reasoning engine, speech",
	Long: `Voice assistant that listens for a wake phrase, captures one utterance,
sends it to a reasoning engine and speaks the reply.

Set WAKE_PHRASE, RECOGNIZER, AGENT_ENGINE and related variables to configure it.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(devicesCmd)
}
