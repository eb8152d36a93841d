package tts

import (
	"os/exec"
	"strconv"
	"strings"
)

// Renderer describes an external program that speaks text and exits when done
type Renderer struct {
	Tool  string
	Args  []string
	Stdin bool // text goes to stdin instead of being appended as the last argument
}

func (r Renderer) command(text string) *exec.Cmd {
	args := append([]string(nil), r.Args...)
	if !r.Stdin {
		args = append(args, text)
	}
	cmd := exec.Command(r.Tool, args...)
	if r.Stdin {
		cmd.Stdin = strings.NewReader(text)
	}
	return cmd
}

// CustomRenderer builds a renderer from a command line; text is appended as the last argument
func CustomRenderer(commandLine string) (Renderer, bool) {
	fields := strings.Fields(commandLine)
	if len(fields) == 0 {
		return Renderer{}, false
	}
	return Renderer{Tool: fields[0], Args: fields[1:]}, true
}

// PlatformRenderers lists the renderers to try on goos, in preference order
func PlatformRenderers(goos, voice string, rate int) []Renderer {
	switch goos {
	case "darwin":
		args := []string{"-f", "-"}
		if voice != "" {
			args = append(args, "-v", voice)
		}
		if rate > 0 {
			args = append(args, "-r", strconv.Itoa(rate))
		}
		return []Renderer{{Tool: "say", Args: args, Stdin: true}}

	case "windows":
		script := "Add-Type -AssemblyName System.Speech; " +
			"$s = New-Object System.Speech.Synthesis.SpeechSynthesizer; "
		if voice != "" {
			script += "$s.SelectVoice('" + strings.ReplaceAll(voice, "'", "''") + "'); "
		}
		script += "$s.Speak([Console]::In.ReadToEnd())"
		return []Renderer{{Tool: "powershell", Args: []string{"-NoProfile", "-NonInteractive", "-Command", script}, Stdin: true}}

	default:
		espeakArgs := []string{"--stdin"}
		if voice != "" {
			espeakArgs = append(espeakArgs, "-v", voice)
		}
		if rate > 0 {
			espeakArgs = append(espeakArgs, "-s", strconv.Itoa(rate))
		}
		return []Renderer{
			{Tool: "espeak-ng", Args: espeakArgs, Stdin: true},
			{Tool: "espeak", Args: espeakArgs, Stdin: true},
			{Tool: "spd-say", Args: []string{"-w", "--"}},
		}
	}
}

// FindRenderer returns the first candidate whose tool is installed
func FindRenderer(candidates []Renderer) (Renderer, bool) {
	for _, r := range candidates {
		if _, err := exec.LookPath(r.Tool); err == nil {
			return r, true
		}
	}
	return Renderer{}, false
}
