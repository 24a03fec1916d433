//go:build linux

package sandbox

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// setProcessGroup also sets Pdeathsig, which follows the spawning thread:
// callers keep that thread locked until the child is reaped.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid:   true,
		Pdeathsig: syscall.SIGKILL,
	}
}

// waitExited waits for the leader without reaping it, so its pid and
// process group stay reserved until cmd.Wait.
func waitExited(cmd *exec.Cmd) bool {
	if cmd.Process == nil {
		return false
	}
	var info unix.Siginfo
	for {
		err := unix.Waitid(unix.P_PID, cmd.Process.Pid, &info, unix.WEXITED|unix.WNOWAIT, nil)
		if err != unix.EINTR {
			return err == nil
		}
	}
}
