package sandbox

import (
	"context"
	"os"

	"sandgate/pkg/utils/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultDockerImage   = "alpine:latest"
	DefaultDockerMemory  = "512m"
	DefaultDockerCPUs    = "1.0"
	DefaultDockerNetwork = "none"
)

// DockerRuntime runs each command in a throwaway container.
type DockerRuntime struct {
	binary      string
	image       string
	memoryLimit string
	cpuLimit    string
	network     string
	extraMounts []Mount
}

// DockerOption customises a DockerRuntime.
type DockerOption func(*DockerRuntime)

func WithDockerBinary(binary string) DockerOption {
	return func(r *DockerRuntime) { r.binary = binary }
}

func WithMemoryLimit(limit string) DockerOption {
	return func(r *DockerRuntime) { r.memoryLimit = limit }
}

func WithCPULimit(limit string) DockerOption {
	return func(r *DockerRuntime) { r.cpuLimit = limit }
}

func WithNetwork(network string) DockerOption {
	return func(r *DockerRuntime) { r.network = network }
}

// WithExtraMounts appends mounts that were already validated against the allowlist.
func WithExtraMounts(mounts []Mount) DockerOption {
	return func(r *DockerRuntime) { r.extraMounts = append([]Mount(nil), mounts...) }
}

// WithoutLimits clears the memory and cpu limits.
func WithoutLimits() DockerOption {
	return func(r *DockerRuntime) {
		r.memoryLimit = ""
		r.cpuLimit = ""
	}
}

// NewDockerRuntime returns a runtime with default limits and no network.
func NewDockerRuntime(image string, opts ...DockerOption) *DockerRuntime {
	if image == "" {
		image = DefaultDockerImage
	}
	r := &DockerRuntime{
		binary:      "docker",
		image:       image,
		memoryLimit: DefaultDockerMemory,
		cpuLimit:    DefaultDockerCPUs,
		network:     DefaultDockerNetwork,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.network == "" {
		r.network = DefaultDockerNetwork
	}
	return r
}

func (r *DockerRuntime) Name() string { return "docker" }

func (r *DockerRuntime) Image() string { return r.image }

// IsAvailable reports whether the daemon answers "docker info".
func (r *DockerRuntime) IsAvailable(ctx context.Context) bool {
	return runCheck(ctx, r.binary, "info")
}

// BuildArgs returns the argument vector after the docker binary. name is
// the container name, omitted when empty. Env values are not part of it;
// only "-e NAME" is emitted.
func (r *DockerRuntime) BuildArgs(name, command string, cfg ContainerConfig) []string {
	args := []string{"run", "--rm"}
	if name != "" {
		args = append(args, "--name", name)
	}
	args = append(args, "--network", r.network)
	if r.memoryLimit != "" {
		args = append(args, "--memory", r.memoryLimit)
	}
	if r.cpuLimit != "" {
		args = append(args, "--cpus", r.cpuLimit)
	}
	if cfg.Workdir != "" {
		args = append(args, "-w", cfg.Workdir)
	}
	for _, m := range cfg.Mounts {
		args = append(args, "-v", m.String())
	}
	for _, name := range cfg.sortedEnvNames() {
		args = append(args, "-e", name)
	}
	for _, m := range r.extraMounts {
		args = append(args, "-v", m.String())
	}
	return append(args, r.image, "sh", "-c", command)
}

func (r *DockerRuntime) Execute(ctx context.Context, command string, cfg ContainerConfig) (CommandOutput, error) {
	timeout, err := cfg.effectiveTimeout()
	if err != nil {
		return CommandOutput{}, err
	}
	var env []string
	if len(cfg.Env) > 0 {
		env = cfg.envList(os.Environ())
	}
	name := ContainerName()
	return runProcess(ctx, process{
		path: r.binary,
		args: r.BuildArgs(name, command, cfg),
		env:  env,
		stop: func(ctx context.Context) {
			if err := StopContainer(ctx, r.binary, "kill", name); err != nil {
				logger.Warn(ctx, "failed to kill timed out container", zap.String("container", name), zap.Error(err))
			}
		},
	}, timeout)
}

// ContainerName returns a fresh "sandgate-<uuid>" container name.
func ContainerName() string {
	return "sandgate-" + uuid.NewString()
}
