// Command assistant runs the always-on voice assistant loop.
//
// Usage:
//
//	assistant run [--text-only]
//	assistant devices
//
// Configuration is read from the environment and an optional .env file.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
