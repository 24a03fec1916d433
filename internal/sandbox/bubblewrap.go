package sandbox

import (
	"context"
	"os"
	"os/exec"
)

// BubblewrapConfig configures the bwrap backend.
type BubblewrapConfig struct {
	ROBinds   []string `yaml:"roBinds"`
	DevBind   bool     `yaml:"devBind"`
	ProcBind  bool     `yaml:"procBind"`
	ExtraArgs ArgList  `yaml:"extraArgs"`
}

// DefaultBubblewrapConfig binds the usual system directories read-only.
func DefaultBubblewrapConfig() BubblewrapConfig {
	return BubblewrapConfig{
		ROBinds:  []string{"/usr", "/lib", "/lib64", "/bin", "/etc"},
		DevBind:  true,
		ProcBind: true,
	}
}

// BubblewrapRuntime runs commands inside a bwrap namespace sandbox.
type BubblewrapRuntime struct {
	cfg BubblewrapConfig
}

func NewBubblewrapRuntime(cfg BubblewrapConfig) *BubblewrapRuntime {
	return &BubblewrapRuntime{cfg: cfg}
}

func (r *BubblewrapRuntime) Name() string { return "bubblewrap" }

func (r *BubblewrapRuntime) IsAvailable(ctx context.Context) bool {
	if !FeatureEnabled(FeatureBubblewrap) {
		return false
	}
	_, err := exec.LookPath("bwrap")
	return err == nil
}

// BuildArgs returns the argument vector after the bwrap binary.
// workspace is bound read-write when set; /tmp is always writable.
func (r *BubblewrapRuntime) BuildArgs(command, workspace string) []string {
	var args []string
	for _, p := range r.cfg.ROBinds {
		args = append(args, "--ro-bind", p, p)
	}
	if r.cfg.DevBind {
		args = append(args, "--dev", "/dev")
	}
	if r.cfg.ProcBind {
		args = append(args, "--proc", "/proc")
	}
	if workspace != "" {
		args = append(args, "--bind", workspace, workspace)
	}
	args = append(args, "--bind", "/tmp", "/tmp")
	args = append(args, r.cfg.ExtraArgs...)
	return append(args, "sh", "-c", command)
}

func (r *BubblewrapRuntime) Execute(ctx context.Context, command string, cfg ContainerConfig) (CommandOutput, error) {
	if err := requireFeature(FeatureBubblewrap, "Bubblewrap"); err != nil {
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
		path: "bwrap",
		args: r.BuildArgs(command, cfg.Workdir),
		env:  env,
		dir:  cfg.Workdir,
	}, timeout)
}
