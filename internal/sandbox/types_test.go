package sandbox_test

import (
	"testing"
	"time"

	"sandgate/internal/sandbox"
)

func intPtr(v int) *int { return &v }

func TestCommandOutputSuccess(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		code *int
		want bool
	}{
		{name: "zero", code: intPtr(0), want: true},
		{name: "non zero", code: intPtr(2), want: false},
		{name: "signal", code: nil, want: false},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			out := sandbox.CommandOutput{ExitCode: tc.code}
			if got := out.Success(); got != tc.want {
				t.Fatalf("Success() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestCommandOutputCombined(t *testing.T) {
	t.Parallel()
	if got := (sandbox.CommandOutput{Stdout: "a", Stderr: "b"}).Combined(); got != "a\nb" {
		t.Fatalf("unexpected combined output %q", got)
	}
	if got := (sandbox.CommandOutput{Stderr: "b"}).Combined(); got != "b" {
		t.Fatalf("unexpected combined output %q", got)
	}
}

func TestContainerConfigBuilderKeepsOrder(t *testing.T) {
	t.Parallel()
	base := sandbox.NewContainerConfig().WithMount("/a", "/x", false)
	cfg := base.WithMount("/b", "/y", true).WithEnv("K", "v").WithTimeout(5 * time.Second)

	if len(base.Mounts) != 1 {
		t.Fatalf("builder mutated receiver: %v", base.Mounts)
	}
	if len(cfg.Mounts) != 2 || cfg.Mounts[0].HostPath != "/a" || cfg.Mounts[1].String() != "/b:/y:ro" {
		t.Fatalf("unexpected mounts %v", cfg.Mounts)
	}
	if cfg.Env["K"] != "v" || cfg.Timeout != 5*time.Second {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if sandbox.NewContainerConfig().Timeout != sandbox.DefaultTimeout {
		t.Fatalf("default timeout not applied")
	}
}
