package sandbox

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os/exec"
	goruntime "runtime"
	"strings"
	"sync/atomic"
	"time"

	"sandgate/pkg/utils/logger"

	"go.uber.org/zap"
)

// waitDelay bounds how long Wait keeps draining pipes after the kill.
const waitDelay = 2 * time.Second

// stopTimeout bounds a "docker kill" style request to the engine.
const stopTimeout = 10 * time.Second

// process is a fully resolved command line ready to spawn.
type process struct {
	path  string
	args  []string
	env   []string // nil inherits the parent environment
	dir   string
	stdin io.Reader
	// stop runs after the group was killed, for work owned by a daemon.
	stop func(ctx context.Context)
}

// runProcess spawns p in its own process group and collects its output.
// The whole group gets SIGKILL once timeout elapses or ctx is cancelled.
func runProcess(ctx context.Context, p process, timeout time.Duration) (CommandOutput, error) {
	// Pdeathsig is bound to the spawning thread.
	goruntime.LockOSThread()
	defer goruntime.UnlockOSThread()

	cmd := exec.Command(p.path, p.args...)
	cmd.Dir = p.dir
	cmd.Env = p.env
	cmd.Stdin = p.stdin
	cmd.WaitDelay = waitDelay
	setProcessGroup(cmd)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return CommandOutput{}, ExecutionFailed("spawn "+p.path, err)
	}

	guard := NewProcessGuard(cmd)
	var timedOut atomic.Bool
	done := make(chan struct{})
	go func() {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		select {
		case <-timer.C:
			if guard.Kill() {
				timedOut.Store(true)
			}
		case <-ctx.Done():
			guard.Kill()
		case <-done:
		}
	}()

	exited, waitErr := guard.Wait()
	close(done)

	if !exited {
		if p.stop != nil {
			p.stop(ctx)
		}
		if timedOut.Load() {
			return CommandOutput{}, Timeout(timeout)
		}
		return CommandOutput{}, ExecutionFailed("cancelled", ctx.Err())
	}

	out := CommandOutput{Stdout: stdout.String(), Stderr: stderr.String()}
	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) && !errors.Is(waitErr, exec.ErrWaitDelay) {
			return CommandOutput{}, ExecutionFailed("wait "+p.path, waitErr)
		}
	}
	if code := cmd.ProcessState.ExitCode(); code >= 0 {
		out.ExitCode = &code
	}
	return out, nil
}

const (
	guardRunning int32 = iota
	guardExited
	guardKilled
)

// ProcessGuard orders a timeout kill against the leader's own exit. Only
// one of them wins, and the group is never signalled once Wait has seen
// the leader exit.
type ProcessGuard struct {
	cmd   *exec.Cmd
	state atomic.Int32
}

// NewProcessGuard guards a started cmd.
func NewProcessGuard(cmd *exec.Cmd) *ProcessGuard {
	return &ProcessGuard{cmd: cmd}
}

// Kill sends SIGKILL to the group unless the leader already exited.
// It reports whether the signal was sent.
func (g *ProcessGuard) Kill() bool {
	if !g.state.CompareAndSwap(guardRunning, guardKilled) {
		return false
	}
	killProcessGroup(g.cmd)
	return true
}

// Wait waits for cmd and reports whether the leader exited before Kill.
// On Linux the exit is observed before the leader is reaped, so Kill can
// never hit a recycled pid.
func (g *ProcessGuard) Wait() (bool, error) {
	if waitExited(g.cmd) {
		exited := g.state.CompareAndSwap(guardRunning, guardExited)
		return exited, g.cmd.Wait()
	}
	err := g.cmd.Wait()
	return g.state.CompareAndSwap(guardRunning, guardExited), err
}

// StopContainer runs "<binary> <verb> <name>" to stop a container the
// engine daemon owns. Killing the CLI client does not reach it.
func StopContainer(ctx context.Context, binary, verb, name string) error {
	if name == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), stopTimeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, binary, verb, name).CombinedOutput()
	if err != nil {
		return ExecutionFailed(binary+" "+verb+" "+name+": "+strings.TrimSpace(string(out)), err)
	}
	logger.Info(ctx, "stopped container after timeout", zap.String("container", name))
	return nil
}

// runCheck runs a short availability check and reports whether it exited 0.
func runCheck(ctx context.Context, path string, args ...string) bool {
	if _, err := exec.LookPath(path); err != nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard
	return cmd.Run() == nil
}

const checkTimeout = 10 * time.Second

// PrepareCommand places cmd in its own process group so that
// KillProcessGroup reaches every descendant.
func PrepareCommand(cmd *exec.Cmd) {
	setProcessGroup(cmd)
}

// KillProcessGroup sends SIGKILL to the group started by cmd.
func KillProcessGroup(cmd *exec.Cmd) {
	killProcessGroup(cmd)
}
