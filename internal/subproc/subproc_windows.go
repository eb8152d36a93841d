//go:build windows

package subproc

import (
	"os/exec"
	"strconv"
)

// Configure is a no-op on Windows; Kill walks the tree with taskkill instead.
func Configure(cmd *exec.Cmd) {}

// Kill terminates the command and every child it spawned.
func Kill(cmd *exec.Cmd) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	kill := exec.Command("taskkill", "/T", "/F", "/PID", strconv.Itoa(cmd.Process.Pid))
	if err := kill.Run(); err != nil {
		return cmd.Process.Kill()
	}
	return nil
}
