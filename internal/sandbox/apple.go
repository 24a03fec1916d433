package sandbox

import (
	"context"
	"fmt"
	"os"
	goruntime "runtime"

	"sandgate/pkg/utils/logger"

	"go.uber.org/zap"
)

// AppleContainerRuntime drives Apple's "container" CLI on macOS.
// It is experimental: the CLI ignores -e, so env is passed through a
// sourced script mounted read-only.
type AppleContainerRuntime struct {
	binary      string
	image       string
	extraMounts []Mount
}

func NewAppleContainerRuntime(image string) *AppleContainerRuntime {
	if image == "" {
		image = DefaultDockerImage
	}
	return &AppleContainerRuntime{binary: "container", image: image}
}

// WithExtraMounts appends mounts already validated against the allowlist.
func (r *AppleContainerRuntime) WithExtraMounts(mounts []Mount) *AppleContainerRuntime {
	r.extraMounts = append([]Mount(nil), mounts...)
	return r
}

func (r *AppleContainerRuntime) Name() string { return "apple" }

// IsAvailable requires macOS, a working "container --version" and a
// "run" subcommand.
func (r *AppleContainerRuntime) IsAvailable(ctx context.Context) bool {
	if goruntime.GOOS != "darwin" {
		return false
	}
	return runCheck(ctx, r.binary, "--version") && runCheck(ctx, r.binary, "run", "--help")
}

// BuildArgs returns the argument vector after the container binary. name
// is omitted when empty. envDir is the host directory holding env.sh, or
// empty when cfg.Env is empty.
func (r *AppleContainerRuntime) BuildArgs(name, command string, cfg ContainerConfig, envDir string) []string {
	args := []string{"run", "--rm"}
	if name != "" {
		args = append(args, "--name", name)
	}
	if cfg.Workdir != "" {
		args = append(args, "--workdir", cfg.Workdir)
	}
	for _, m := range cfg.Mounts {
		args = append(args, "--mount", bindMountSpec(m))
	}
	for _, m := range r.extraMounts {
		args = append(args, "--mount", bindMountSpec(m))
	}
	if envDir != "" {
		args = append(args, "--mount", bindMountSpec(Mount{HostPath: envDir, ContainerPath: EnvMountDir, ReadOnly: true}))
		command = fmt.Sprintf(". %s/%s && %s", EnvMountDir, EnvScriptName, command)
	}
	return append(args, r.image, "sh", "-c", command)
}

// bindMountSpec renders the --mount value used by Apple's CLI.
func bindMountSpec(m Mount) string {
	spec := "type=bind,source=" + m.HostPath + ",target=" + m.ContainerPath
	if m.ReadOnly {
		spec += ",readonly"
	}
	return spec
}

func (r *AppleContainerRuntime) Execute(ctx context.Context, command string, cfg ContainerConfig) (CommandOutput, error) {
	timeout, err := cfg.effectiveTimeout()
	if err != nil {
		return CommandOutput{}, err
	}
	logger.Warn(ctx, "apple container runtime is experimental", zap.String("image", r.image))

	envDir := ""
	if len(cfg.Env) > 0 {
		envDir, err = WriteEnvScript(cfg.Env)
		if err != nil {
			return CommandOutput{}, ExecutionFailed("write env script", err)
		}
		defer func() {
			_ = os.RemoveAll(envDir)
		}()
	}
	name := ContainerName()
	return runProcess(ctx, process{
		path: r.binary,
		args: r.BuildArgs(name, command, cfg, envDir),
		stop: func(ctx context.Context) {
			if err := StopContainer(ctx, r.binary, "stop", name); err != nil {
				logger.Warn(ctx, "failed to stop timed out container", zap.String("container", name), zap.Error(err))
			}
		},
	}, timeout)
}
