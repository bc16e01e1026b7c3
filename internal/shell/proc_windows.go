//go:build windows

package shell

import (
	"os/exec"
	"strconv"
)

// setProcessGroup is a no-op on Windows; tree kill goes through taskkill.
func setProcessGroup(cmd *exec.Cmd) {}

// killProcessGroup kills the child and its descendants. taskkill /T walks
// the tree; if taskkill itself fails the immediate child is still killed.
func killProcessGroup(cmd *exec.Cmd) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	kill := exec.Command("taskkill", "/T", "/F", "/PID", strconv.Itoa(cmd.Process.Pid))
	if err := kill.Run(); err != nil {
		return cmd.Process.Kill()
	}
	return nil
}
