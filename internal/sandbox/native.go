package sandbox

import (
	"context"
	"os"
)

// NativeRuntime runs commands directly on the host with no isolation.
// Mounts are ignored.
type NativeRuntime struct{}

func NewNativeRuntime() *NativeRuntime {
	return &NativeRuntime{}
}

func (r *NativeRuntime) Name() string { return "native" }

func (r *NativeRuntime) IsAvailable(ctx context.Context) bool { return true }

func (r *NativeRuntime) Execute(ctx context.Context, command string, cfg ContainerConfig) (CommandOutput, error) {
	timeout, err := cfg.effectiveTimeout()
	if err != nil {
		return CommandOutput{}, err
	}
	var env []string
	if len(cfg.Env) > 0 {
		env = cfg.envList(os.Environ())
	}
	return runProcess(ctx, process{
		path: "sh",
		args: []string{"-c", command},
		env:  env,
		dir:  cfg.Workdir,
	}, timeout)
}
