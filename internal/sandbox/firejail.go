package sandbox

import (
	"context"
	"os"
	"os/exec"
)

// FirejailConfig configures the firejail backend.
type FirejailConfig struct {
	// Profile is a firejail profile path; empty means --noprofile.
	Profile   string  `yaml:"profile"`
	ExtraArgs ArgList `yaml:"extraArgs"`
}

// FirejailRuntime wraps commands with firejail.
type FirejailRuntime struct {
	cfg FirejailConfig
}

func NewFirejailRuntime(cfg FirejailConfig) *FirejailRuntime {
	return &FirejailRuntime{cfg: cfg}
}

func (r *FirejailRuntime) Name() string { return "firejail" }

func (r *FirejailRuntime) IsAvailable(ctx context.Context) bool {
	if !FeatureEnabled(FeatureFirejail) {
		return false
	}
	_, err := exec.LookPath("firejail")
	return err == nil
}

// BuildArgs returns the argument vector after the firejail binary.
func (r *FirejailRuntime) BuildArgs(command string) []string {
	args := make([]string, 0, len(r.cfg.ExtraArgs)+5)
	if r.cfg.Profile != "" {
		args = append(args, "--profile="+r.cfg.Profile)
	} else {
		args = append(args, "--noprofile")
	}
	args = append(args, r.cfg.ExtraArgs...)
	return append(args, "--", "sh", "-c", command)
}

func (r *FirejailRuntime) Execute(ctx context.Context, command string, cfg ContainerConfig) (CommandOutput, error) {
	if err := requireFeature(FeatureFirejail, "Firejail"); err != nil {
		return CommandOutput{}, err
	}
	timeout, err := cfg.effectiveTimeout()
	if err != nil {
		return CommandOutput{}, err
	}
	var env []string
	if len(cfg.Env) > 0 {
		env = cfg.envList(os.Environ())
	}
	return runProcess(ctx, process{
		path: "firejail",
		args: r.BuildArgs(command),
		env:  env,
		dir:  cfg.Workdir,
	}, timeout)
}
