//go:build !windows

package shell

import (
	"os/exec"
	"syscall"
)

// setProcessGroup puts the child in its own process group so the group
// kill reaches every descendant.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// killProcessGroup kills the child's whole process group. The negative
// pid addresses the group; SIGKILL is deliberate, a timed-out command
// gets no chance to ignore the signal.
func killProcessGroup(cmd *exec.Cmd) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	if err == syscall.ESRCH {
		return nil
	}
	return err
}
