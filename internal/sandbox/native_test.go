//go:build unix

package sandbox_test

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"testing"
	"time"

	"sandgate/internal/sandbox"
	appErr "sandgate/pkg/errors"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestNativeExecute(t *testing.T) {
	requireShell(t)
	t.Parallel()
	dir := t.TempDir()
	rt := sandbox.NewNativeRuntime()
	cfg := sandbox.NewContainerConfig().WithWorkdir(dir).WithEnv("GREETING", "hello")

	out, err := rt.Execute(context.Background(), `echo "$GREETING"; pwd; echo oops >&2; exit 3`, cfg)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if out.ExitCode == nil || *out.ExitCode != 3 || out.Success() {
		t.Fatalf("unexpected exit code %v", out.ExitCode)
	}
	lines := strings.Split(strings.TrimSpace(out.Stdout), "\n")
	resolved, _ := filepath.EvalSymlinks(dir)
	if len(lines) != 2 || lines[0] != "hello" || (lines[1] != dir && lines[1] != resolved) {
		t.Fatalf("unexpected stdout %q", out.Stdout)
	}
	if strings.TrimSpace(out.Stderr) != "oops" {
		t.Fatalf("unexpected stderr %q", out.Stderr)
	}
}

func TestNativeTimeoutKillsProcessGroup(t *testing.T) {
	requireShell(t)
	if _, err := exec.LookPath("sleep"); err != nil {
		t.Skip("sleep not available")
	}
	t.Parallel()
	pidFile := filepath.Join(t.TempDir(), "pid")
	rt := sandbox.NewNativeRuntime()
	cfg := sandbox.NewContainerConfig().WithTimeout(time.Second)

	start := time.Now()
	_, err := rt.Execute(context.Background(), "sleep 10 & echo $! > "+pidFile+"; wait", cfg)
	elapsed := time.Since(start)

	if !appErr.Is(err, appErr.RuntimeTimeout) {
		t.Fatalf("expected timeout error, got %v", err)
	}
	if d, ok := sandbox.TimeoutOf(err); !ok || d != time.Second {
		t.Fatalf("timeout duration = %v, %v", d, ok)
	}
	if elapsed > 5*time.Second {
		t.Fatalf("timeout took too long: %v", elapsed)
	}

	data, readErr := os.ReadFile(pidFile)
	if readErr != nil {
		t.Fatalf("read pid file: %v", readErr)
	}
	pid, convErr := strconv.Atoi(strings.TrimSpace(string(data)))
	if convErr != nil {
		t.Fatalf("parse pid: %v", convErr)
	}
	deadline := time.Now().Add(3 * time.Second)
	for {
		if err := syscall.Kill(pid, 0); errors.Is(err, syscall.ESRCH) {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("background sleep %d still running after timeout", pid)
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func TestNativeRejectsNegativeTimeout(t *testing.T) {
	t.Parallel()
	_, err := sandbox.NewNativeRuntime().Execute(context.Background(), "true", sandbox.NewContainerConfig().WithTimeout(-time.Second))
	if !appErr.Is(err, appErr.RuntimeExecutionFailed) {
		t.Fatalf("expected execution failed, got %v", err)
	}
}

func TestNativeIsAlwaysAvailable(t *testing.T) {
	t.Parallel()
	rt := sandbox.NewNativeRuntime()
	if rt.Name() != "native" || !rt.IsAvailable(context.Background()) {
		t.Fatalf("native runtime must always be available")
	}
}
