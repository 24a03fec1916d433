// Package sandbox runs shell commands through interchangeable isolation
// backends: plain processes, container engines and Linux sandbox tools.
package sandbox

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// DefaultTimeout applies when ContainerConfig.Timeout is zero.
const DefaultTimeout = 30 * time.Second

// Runtime executes a shell command under one isolation backend.
type Runtime interface {
	// Name returns the stable backend identifier ("native", "docker", ...).
	Name() string
	// IsAvailable checks the host without side effects.
	IsAvailable(ctx context.Context) bool
	// Execute runs command via "sh -c". The process group is killed when
	// cfg.Timeout elapses and a RuntimeTimeout error is returned.
	Execute(ctx context.Context, command string, cfg ContainerConfig) (CommandOutput, error)
}

// Mount binds a host path into the sandbox.
type Mount struct {
	HostPath      string `yaml:"hostPath" json:"host_path"`
	ContainerPath string `yaml:"containerPath" json:"container_path"`
	ReadOnly      bool   `yaml:"readOnly" json:"read_only"`
}

// String renders the docker-style "host:container[:ro]" form.
func (m Mount) String() string {
	if m.ReadOnly {
		return m.HostPath + ":" + m.ContainerPath + ":ro"
	}
	return m.HostPath + ":" + m.ContainerPath
}

// ContainerConfig describes a single execution.
// Mount order is preserved in generated argument lists.
type ContainerConfig struct {
	Workdir string
	Mounts  []Mount
	Env     map[string]string
	Timeout time.Duration
}

// NewContainerConfig returns a config with the default timeout.
func NewContainerConfig() ContainerConfig {
	return ContainerConfig{Timeout: DefaultTimeout}
}

func (c ContainerConfig) WithWorkdir(dir string) ContainerConfig {
	c.Workdir = dir
	return c
}

func (c ContainerConfig) WithMount(host, container string, readOnly bool) ContainerConfig {
	mounts := make([]Mount, len(c.Mounts), len(c.Mounts)+1)
	copy(mounts, c.Mounts)
	c.Mounts = append(mounts, Mount{HostPath: host, ContainerPath: container, ReadOnly: readOnly})
	return c
}

func (c ContainerConfig) WithEnv(name, value string) ContainerConfig {
	env := make(map[string]string, len(c.Env)+1)
	for k, v := range c.Env {
		env[k] = v
	}
	env[name] = value
	c.Env = env
	return c
}

func (c ContainerConfig) WithTimeout(d time.Duration) ContainerConfig {
	c.Timeout = d
	return c
}

// effectiveTimeout validates the timeout, substituting the default for zero.
func (c ContainerConfig) effectiveTimeout() (time.Duration, error) {
	switch {
	case c.Timeout < 0:
		return 0, ExecutionFailed(fmt.Sprintf("invalid timeout %s", c.Timeout), nil)
	case c.Timeout == 0:
		return DefaultTimeout, nil
	default:
		return c.Timeout, nil
	}
}

// sortedEnvNames returns env names in a stable order for argument building.
func (c ContainerConfig) sortedEnvNames() []string {
	names := make([]string, 0, len(c.Env))
	for k := range c.Env {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// envList renders cfg.Env as KEY=VALUE pairs appended to base.
func (c ContainerConfig) envList(base []string) []string {
	out := append([]string(nil), base...)
	for _, k := range c.sortedEnvNames() {
		out = append(out, k+"="+c.Env[k])
	}
	return out
}

// CommandOutput is the captured result of a finished command.
type CommandOutput struct {
	Stdout string
	Stderr string
	// ExitCode is nil when the process was terminated by a signal.
	ExitCode *int
}

// Success reports whether the command exited with status 0.
func (o CommandOutput) Success() bool {
	return o.ExitCode != nil && *o.ExitCode == 0
}

// Combined joins stdout and stderr with a newline when both are set.
func (o CommandOutput) Combined() string {
	switch {
	case o.Stdout == "":
		return o.Stderr
	case o.Stderr == "":
		return o.Stdout
	default:
		return o.Stdout + "\n" + o.Stderr
	}
}
