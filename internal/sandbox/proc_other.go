//go:build !unix

package sandbox

import "os/exec"

func setProcessGroup(cmd *exec.Cmd) {}

func killProcessGroup(cmd *exec.Cmd) {
	if cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
}

// waitExited has no non-reaping wait here; the guard waits with cmd.Wait.
func waitExited(cmd *exec.Cmd) bool { return false }
