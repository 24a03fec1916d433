//go:build unix && !linux

package sandbox

import (
	"os/exec"
	"syscall"
)

func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// waitExited has no non-reaping wait here; the guard waits with cmd.Wait.
func waitExited(cmd *exec.Cmd) bool { return false }
