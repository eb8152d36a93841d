//go:build !windows

package subproc

import (
	"os/exec"
	"syscall"
)

// Configure places the command in its own process group so Kill can take
// down any helpers it forks (shell wrappers, audio players).
func Configure(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
}

// Kill sends SIGKILL to the command's process group.
// It is a no-op for commands that were never started.
func Kill(cmd *exec.Cmd) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	pid := cmd.Process.Pid
	if err := syscall.Kill(-pid, syscall.SIGKILL); err != nil {
		// Group may already be gone; fall back to the leader
		return cmd.Process.Kill()
	}
	return nil
}
