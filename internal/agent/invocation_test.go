package agent_test

import (
	"context"
	"os"
	"path/filepath"
	goruntime "runtime"
	"strings"
	"testing"

	"sandgate/internal/agent"
	appErr "sandgate/pkg/errors"
)

func hostDirs(t *testing.T, withConfig bool) agent.HostDirs {
	t.Helper()
	dirs, err := agent.PrepareHostDirs(filepath.Join(t.TempDir(), "data"))
	if err != nil {
		t.Fatalf("prepare host dirs: %v", err)
	}
	if withConfig {
		if err := os.WriteFile(dirs.Config, []byte("{}"), 0o600); err != nil {
			t.Fatalf("write config: %v", err)
		}
	}
	return dirs
}

func equalArgs(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("arg count mismatch:\nwant %q\ngot  %q", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("arg %d mismatch: want %q got %q\nfull: %q", i, want[i], got[i], got)
		}
	}
}

func TestBuildDockerInvocation(t *testing.T) {
	t.Parallel()
	dirs := hostDirs(t, true)
	cfg := agent.DefaultContainerAgentConfig()
	cfg.Image = "sandgate:test"
	providers := agent.ProvidersConfig{Anthropic: agent.ProviderConfig{APIKey: "secret-anthropic-key"}}

	inv, err := agent.BuildDockerInvocation(context.Background(), cfg, providers, dirs)
	if err != nil {
		t.Fatalf("build docker invocation: %v", err)
	}
	if inv.Binary != "docker" || inv.TempDir != "" || inv.StopCommand != "kill" || !strings.HasPrefix(inv.Name, "sandgate-") {
		t.Fatalf("unexpected invocation: %+v", inv)
	}
	equalArgs(t, inv.Args, []string{
		"run", "--rm", "-i", "--name", inv.Name, "--network", "none",
		"--memory", "1g", "--cpus", "2.0",
		"-v", dirs.Workspace + ":/data/.sandgate/workspace",
		"-v", dirs.Sessions + ":/data/.sandgate/sessions",
		"-v", dirs.Config + ":/data/.sandgate/config.json:ro",
		"-e", "SANDGATE_PROVIDERS_ANTHROPIC_API_KEY",
		"-e", "HOME",
		"-e", "SANDGATE_AGENTS_DEFAULTS_WORKSPACE",
		"sandgate:test", "sandgate", "agent-stdin",
	})
	for _, arg := range inv.Args {
		if strings.Contains(arg, "secret-anthropic-key") {
			t.Fatalf("secret leaked into args: %q", inv.Args)
		}
	}
	found := false
	for _, e := range inv.Env {
		if e.Name == "SANDGATE_PROVIDERS_ANTHROPIC_API_KEY" && e.Value == "secret-anthropic-key" {
			found = true
		}
	}
	if !found {
		t.Fatalf("secret missing from process env: %+v", inv.Env)
	}
}

func TestBuildDockerInvocationOptionalParts(t *testing.T) {
	t.Parallel()
	dirs := hostDirs(t, false)
	cfg := agent.DefaultContainerAgentConfig()
	cfg.MemoryLimit = ""
	cfg.CPULimit = ""
	cfg.Network = "bridge"
	cfg.DockerBinary = "podman"
	cfg.ExtraMounts = []string{"/srv/shared:/data/shared:ro"}

	inv, err := agent.BuildDockerInvocation(context.Background(), cfg, agent.ProvidersConfig{}, dirs)
	if err != nil {
		t.Fatalf("build docker invocation: %v", err)
	}
	if inv.Binary != "podman" {
		t.Fatalf("expected podman, got %s", inv.Binary)
	}
	equalArgs(t, inv.Args, []string{
		"run", "--rm", "-i", "--name", inv.Name, "--network", "bridge",
		"-v", dirs.Workspace + ":/data/.sandgate/workspace",
		"-v", dirs.Sessions + ":/data/.sandgate/sessions",
		"-e", "HOME",
		"-e", "SANDGATE_AGENTS_DEFAULTS_WORKSPACE",
		"-v", "/srv/shared:/data/shared:ro",
		"sandgate:latest", "sandgate", "agent-stdin",
	})
}

func TestBuildDockerInvocationRejections(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name    string
		mutate  func(*agent.ContainerAgentConfig)
		code    appErr.ErrorCode
		message string
	}{
		{
			name:    "temp binary",
			mutate:  func(c *agent.ContainerAgentConfig) { c.DockerBinary = "/tmp/fake-docker" },
			code:    appErr.BinaryRejected,
			message: "temporary directory",
		},
		{
			name:    "relative binary",
			mutate:  func(c *agent.ContainerAgentConfig) { c.DockerBinary = "bin/docker" },
			code:    appErr.BinaryRejected,
			message: "absolute path",
		},
		{
			name:    "ssh mount",
			mutate:  func(c *agent.ContainerAgentConfig) { c.ExtraMounts = []string{"/home/user/.ssh:/x/.ssh"} },
			code:    appErr.MountBlocked,
			message: ".ssh",
		},
		{
			name:    "relative container path",
			mutate:  func(c *agent.ContainerAgentConfig) { c.ExtraMounts = []string{"/srv/data:data"} },
			code:    appErr.MountInvalid,
			message: "Invalid container",
		},
		{
			name: "missing allowlist",
			mutate: func(c *agent.ContainerAgentConfig) {
				c.ExtraMounts = []string{"/srv/data:/data/extra"}
				c.MountAllowlistPath = "/nonexistent/sandgate/allowlist.json"
			},
			code:    appErr.AllowlistInvalid,
			message: "not found",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := agent.DefaultContainerAgentConfig()
			tc.mutate(&cfg)
			_, err := agent.BuildDockerInvocation(context.Background(), cfg, agent.ProvidersConfig{}, hostDirs(t, false))
			if !appErr.Is(err, tc.code) {
				t.Fatalf("expected code %d, got %v", tc.code, err)
			}
			if !strings.Contains(err.Error(), tc.message) {
				t.Fatalf("expected %q in %q", tc.message, err.Error())
			}
		})
	}
}

func TestBuildAppleInvocation(t *testing.T) {
	t.Parallel()
	dirs := hostDirs(t, true)
	cfg := agent.DefaultContainerAgentConfig()
	cfg.ExtraMounts = []string{"/srv/ro:/data/ro:ro", "/srv/rw:/data/rw"}
	providers := agent.ProvidersConfig{OpenAI: agent.ProviderConfig{APIKey: "it's-secret"}}

	inv, err := agent.BuildAppleInvocation(context.Background(), cfg, providers, dirs)
	if err != nil {
		t.Fatalf("build apple invocation: %v", err)
	}
	defer inv.Cleanup(context.Background())

	if inv.Binary != "container" || len(inv.Env) != 0 || inv.TempDir == "" {
		t.Fatalf("unexpected invocation: %+v", inv)
	}
	if inv.StopCommand != "stop" || inv.Args[3] != "--name" || inv.Args[4] != inv.Name || !strings.HasPrefix(inv.Name, "sandgate-") {
		t.Fatalf("expected generated container name, got %q", inv.Args)
	}
	args := append(append([]string(nil), inv.Args[:3]...), inv.Args[5:]...)
	equalArgs(t, args, []string{
		"run", "--rm", "-i",
		"-v", dirs.Workspace + ":/data/.sandgate/workspace",
		"-v", dirs.Sessions + ":/data/.sandgate/sessions",
		"--mount", "type=bind,source=" + dirs.Config + ",target=/data/.sandgate/config.json,readonly",
		"--mount", "type=bind,source=/srv/ro,target=/data/ro,readonly",
		"-v", "/srv/rw:/data/rw",
		"--mount", "type=bind,source=" + inv.TempDir + ",target=/tmp/sandgate-env,readonly",
		"sandgate:latest",
		"sh", "-c", ". /tmp/sandgate-env/env.sh && exec sandgate agent-stdin",
	})

	script, err := os.ReadFile(filepath.Join(inv.TempDir, "env.sh"))
	if err != nil {
		t.Fatalf("read env script: %v", err)
	}
	for _, want := range []string{
		"export SANDGATE_PROVIDERS_OPENAI_API_KEY='it'\\''s-secret'\n",
		"export HOME='/data'\n",
		"export SANDGATE_AGENTS_DEFAULTS_WORKSPACE='/data/.sandgate/workspace'\n",
	} {
		if !strings.Contains(string(script), want) {
			t.Fatalf("env script missing %q:\n%s", want, script)
		}
	}

	dir := inv.TempDir
	inv.Cleanup(context.Background())
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatalf("temp dir not removed: %v", err)
	}
}

func TestPrepareHostDirsIsIdempotent(t *testing.T) {
	t.Parallel()
	root := filepath.Join(t.TempDir(), "data")
	for i := 0; i < 2; i++ {
		dirs, err := agent.PrepareHostDirs(root)
		if err != nil {
			t.Fatalf("prepare host dirs: %v", err)
		}
		for _, dir := range []string{dirs.Workspace, dirs.Sessions} {
			if info, err := os.Stat(dir); err != nil || !info.IsDir() {
				t.Fatalf("expected directory %s: %v", dir, err)
			}
		}
	}
}

func TestCollectEnvSkipsBlankCredentials(t *testing.T) {
	t.Parallel()
	env := agent.CollectEnv(agent.ProvidersConfig{
		Anthropic:  agent.ProviderConfig{APIKey: "   ", APIBase: "https://proxy.internal"},
		OpenRouter: agent.ProviderConfig{APIKey: "or-key"},
	})
	var names []string
	for _, e := range env {
		names = append(names, e.Name)
	}
	want := []string{
		"SANDGATE_PROVIDERS_ANTHROPIC_API_BASE",
		"SANDGATE_PROVIDERS_OPENROUTER_API_KEY",
		"HOME",
		"SANDGATE_AGENTS_DEFAULTS_WORKSPACE",
	}
	equalArgs(t, names, want)
}

func TestResolveBackend(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	got, err := agent.ResolveBackend(ctx, agent.ContainerAgentConfig{Backend: agent.BackendDocker})
	if err != nil || got != agent.BackendDocker {
		t.Fatalf("expected docker, got %q, %v", got, err)
	}
	if _, err := agent.ResolveBackend(ctx, agent.ContainerAgentConfig{Backend: "lxc"}); !appErr.Is(err, appErr.ConfigInvalid) {
		t.Fatalf("expected ConfigInvalid, got %v", err)
	}
	if goruntime.GOOS != "darwin" {
		_, err := agent.ResolveBackend(ctx, agent.ContainerAgentConfig{Backend: agent.BackendApple, AllowExperimental: true})
		if !appErr.Is(err, appErr.BackendUnavailable) {
			t.Fatalf("expected BackendUnavailable off macOS, got %v", err)
		}
	}
	_, err = agent.ResolveBackend(ctx, agent.ContainerAgentConfig{Backend: agent.BackendApple})
	if !appErr.Is(err, appErr.BackendUnavailable) {
		t.Fatalf("expected apple without opt-in to be refused, got %v", err)
	}
}
