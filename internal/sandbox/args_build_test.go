package sandbox_test

import (
	"reflect"
	"strings"
	"testing"

	"sandgate/internal/sandbox"

	"gopkg.in/yaml.v3"
)

func TestDockerBuildArgs(t *testing.T) {
	t.Parallel()
	rt := sandbox.NewDockerRuntime("alpine:3.20",
		sandbox.WithExtraMounts([]sandbox.Mount{{HostPath: "/srv/data", ContainerPath: "/data", ReadOnly: true}}))
	cfg := sandbox.NewContainerConfig().
		WithWorkdir("/work").
		WithMount("/home/u/ws", "/work", false).
		WithMount("/home/u/cfg", "/cfg", true).
		WithEnv("TOKEN", "secret").
		WithEnv("A", "1")

	got := rt.BuildArgs("sandgate-test", "echo hi", cfg)
	want := []string{
		"run", "--rm", "--name", "sandgate-test", "--network", "none",
		"--memory", "512m", "--cpus", "1.0",
		"-w", "/work",
		"-v", "/home/u/ws:/work",
		"-v", "/home/u/cfg:/cfg:ro",
		"-e", "A", "-e", "TOKEN",
		"-v", "/srv/data:/data:ro",
		"alpine:3.20", "sh", "-c", "echo hi",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("args mismatch\n got: %q\nwant: %q", got, want)
	}
	for _, a := range got {
		if strings.Contains(a, "secret") {
			t.Fatalf("env value leaked into args: %q", got)
		}
	}
}

func TestDockerBuildArgsWithoutLimits(t *testing.T) {
	t.Parallel()
	rt := sandbox.NewDockerRuntime("", sandbox.WithoutLimits(), sandbox.WithNetwork("bridge"))
	got := rt.BuildArgs("", "ls", sandbox.NewContainerConfig())
	want := []string{"run", "--rm", "--network", "bridge", "alpine:latest", "sh", "-c", "ls"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("args mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestAppleBuildArgs(t *testing.T) {
	t.Parallel()
	rt := sandbox.NewAppleContainerRuntime("alpine:latest")
	cfg := sandbox.NewContainerConfig().
		WithWorkdir("/w").
		WithMount("/h/ws", "/w", false).
		WithMount("/h/cfg", "/cfg", true)

	got := rt.BuildArgs("sandgate-test", "pwd", cfg, "/tmp/envdir")
	want := []string{
		"run", "--rm", "--name", "sandgate-test", "--workdir", "/w",
		"--mount", "type=bind,source=/h/ws,target=/w",
		"--mount", "type=bind,source=/h/cfg,target=/cfg,readonly",
		"--mount", "type=bind,source=/tmp/envdir,target=/tmp/sandgate-env,readonly",
		"alpine:latest", "sh", "-c", ". /tmp/sandgate-env/env.sh && pwd",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("args mismatch\n got: %q\nwant: %q", got, want)
	}

	plain := rt.BuildArgs("", "pwd", sandbox.NewContainerConfig(), "")
	if plain[len(plain)-1] != "pwd" {
		t.Fatalf("command should not source env script without env: %q", plain)
	}
}

func TestContainerNameIsUnique(t *testing.T) {
	t.Parallel()
	a, b := sandbox.ContainerName(), sandbox.ContainerName()
	if !strings.HasPrefix(a, "sandgate-") || a == b {
		t.Fatalf("unexpected container names %q, %q", a, b)
	}
}

func TestFirejailBuildArgs(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		cfg  sandbox.FirejailConfig
		want []string
	}{
		{
			name: "no profile",
			cfg:  sandbox.FirejailConfig{},
			want: []string{"--noprofile", "--", "sh", "-c", "echo hello"},
		},
		{
			name: "profile and extra args",
			cfg:  sandbox.FirejailConfig{Profile: "/etc/firejail/default.profile", ExtraArgs: sandbox.ArgList{"--net=none", "--private"}},
			want: []string{"--profile=/etc/firejail/default.profile", "--net=none", "--private", "--", "sh", "-c", "echo hello"},
		},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			got := sandbox.NewFirejailRuntime(tc.cfg).BuildArgs("echo hello")
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("args mismatch\n got: %q\nwant: %q", got, tc.want)
			}
		})
	}
}

func TestBubblewrapBuildArgs(t *testing.T) {
	t.Parallel()
	rt := sandbox.NewBubblewrapRuntime(sandbox.BubblewrapConfig{
		ROBinds:   []string{"/usr", "/lib"},
		DevBind:   true,
		ProcBind:  true,
		ExtraArgs: sandbox.ArgList{"--unshare-net"},
	})
	got := rt.BuildArgs("id", "/ws")
	want := []string{
		"--ro-bind", "/usr", "/usr",
		"--ro-bind", "/lib", "/lib",
		"--dev", "/dev",
		"--proc", "/proc",
		"--bind", "/ws", "/ws",
		"--bind", "/tmp", "/tmp",
		"--unshare-net",
		"sh", "-c", "id",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("args mismatch\n got: %q\nwant: %q", got, want)
	}

	minimal := sandbox.NewBubblewrapRuntime(sandbox.BubblewrapConfig{}).BuildArgs("id", "")
	if !reflect.DeepEqual(minimal, []string{"--bind", "/tmp", "/tmp", "sh", "-c", "id"}) {
		t.Fatalf("tmp must always be writable: %q", minimal)
	}
}

func TestLandlockBuildArgs(t *testing.T) {
	t.Parallel()
	rt := sandbox.NewLandlockRuntime(sandbox.LandlockConfig{
		ReadDirs:       []string{"/usr"},
		WriteDirs:      []string{"/tmp"},
		SeccompProfile: "/etc/sandgate/seccomp.json",
	})
	got := rt.BuildArgs("ls", "/ws")
	want := []string{
		"--ro", "/usr", "--rw", "/tmp", "--rw", "/ws",
		"--seccomp-profile", "/etc/sandgate/seccomp.json",
		"--", "sh", "-c", "ls",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("args mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestArgListYAML(t *testing.T) {
	t.Parallel()
	var cfg struct {
		A sandbox.ArgList `yaml:"a"`
		B sandbox.ArgList `yaml:"b"`
	}
	doc := "a: \"--net=none --whitelist='/srv/my dir'\"\nb: [--x, --y]\n"
	if err := yaml.Unmarshal([]byte(doc), &cfg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !reflect.DeepEqual([]string(cfg.A), []string{"--net=none", "--whitelist=/srv/my dir"}) {
		t.Fatalf("unexpected string form %q", cfg.A)
	}
	if !reflect.DeepEqual([]string(cfg.B), []string{"--x", "--y"}) {
		t.Fatalf("unexpected list form %q", cfg.B)
	}
}

func TestEnvScriptEscapesQuotes(t *testing.T) {
	t.Parallel()
	got := sandbox.EnvScript(map[string]string{"B": "it's", "A": "plain"})
	want := "#!/bin/sh\nexport A='plain'\nexport B='it'\\''s'\n"
	if got != want {
		t.Fatalf("env script mismatch\n got: %q\nwant: %q", got, want)
	}
}
