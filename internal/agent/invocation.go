package agent

import (
	"context"
	"os"
	"path/filepath"

	"sandgate/internal/sandbox"
	"sandgate/internal/security"
	appErr "sandgate/pkg/errors"
	"sandgate/pkg/utils/logger"

	"go.uber.org/zap"
)

// Entrypoint is the command the agent image runs for one request.
var Entrypoint = []string{"sandgate", "agent-stdin"}

// Invocation is one fully resolved container command. TempDir, when set,
// is removed by Cleanup. Name and StopCommand let Stop reach a container
// that outlives its CLI client.
type Invocation struct {
	Binary      string
	Args        []string
	Env         []EnvVar
	TempDir     string
	Name        string
	StopCommand string
}

// Stop runs "<binary> <StopCommand> <Name>". Failures are logged only.
func (inv *Invocation) Stop(ctx context.Context) {
	if inv == nil || inv.Name == "" || inv.StopCommand == "" {
		return
	}
	if err := sandbox.StopContainer(ctx, inv.Binary, inv.StopCommand, inv.Name); err != nil {
		logger.Warn(ctx, "failed to stop timed out container", zap.String("container", inv.Name), zap.Error(err))
	}
}

// Cleanup removes the temp directory. Safe to call more than once.
func (inv *Invocation) Cleanup(ctx context.Context) {
	if inv == nil || inv.TempDir == "" {
		return
	}
	if err := os.RemoveAll(inv.TempDir); err != nil {
		logger.Warn(ctx, "failed to clean up temp env dir", zap.String("dir", inv.TempDir), zap.Error(err))
		return
	}
	inv.TempDir = ""
}

// HostDirs are the host paths mounted into the agent container.
type HostDirs struct {
	Workspace string
	Sessions  string
	// Config is mounted read-only only when the file exists.
	Config string
}

// PrepareHostDirs creates workspace and sessions under dataDir.
func PrepareHostDirs(dataDir string) (HostDirs, error) {
	root := security.ExpandHome(dataDir)
	dirs := HostDirs{
		Workspace: filepath.Join(root, "workspace"),
		Sessions:  filepath.Join(root, "sessions"),
		Config:    filepath.Join(root, "config.json"),
	}
	for _, dir := range []string{root, dirs.Workspace, dirs.Sessions} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return HostDirs{}, appErr.Wrapf(err, appErr.ContainerSpawn, "failed to create %s: %v", dir, err)
		}
	}
	return dirs, nil
}

func (d HostDirs) hasConfig() bool {
	info, err := os.Stat(d.Config)
	return err == nil && !info.IsDir()
}

// extraMounts validates configured mounts. Every entry is checked against
// the sensitive-path blocklist; with an allowlist configured the
// normalised allowlist result is used instead of the raw strings.
func extraMounts(cfg ContainerAgentConfig) ([]security.MountSpec, error) {
	out := make([]security.MountSpec, 0, len(cfg.ExtraMounts))
	for _, raw := range cfg.ExtraMounts {
		if err := security.ValidateMountNotBlocked(raw); err != nil {
			return nil, err
		}
		m, err := security.ParseMountSpec(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if cfg.MountAllowlistPath == "" || len(out) == 0 {
		return out, nil
	}
	return security.ValidateExtraMounts(cfg.ExtraMounts, cfg.MountAllowlistPath)
}

// BuildDockerInvocation builds
//
//	run --rm -i --name sandgate-<uuid> --network N [--memory M] [--cpus C] -v ws -v sessions [-v config:ro]
//	-e NAME... [-v extra...] IMAGE sandgate agent-stdin
//
// Secret values travel in the process environment, never in args.
func BuildDockerInvocation(ctx context.Context, cfg ContainerAgentConfig, providers ProvidersConfig, dirs HostDirs) (*Invocation, error) {
	binary, err := security.ValidateDockerBinary(ctx, cfg.DockerBinary)
	if err != nil {
		return nil, err
	}
	extras, err := extraMounts(cfg)
	if err != nil {
		return nil, err
	}

	name := sandbox.ContainerName()
	args := []string{"run", "--rm", "-i", "--name", name, "--network", cfg.Network}
	if cfg.MemoryLimit != "" {
		args = append(args, "--memory", cfg.MemoryLimit)
	}
	if cfg.CPULimit != "" {
		args = append(args, "--cpus", cfg.CPULimit)
	}
	args = append(args,
		"-v", dirs.Workspace+":"+ContainerWorkspaceDir,
		"-v", dirs.Sessions+":"+ContainerSessionsDir,
	)
	if dirs.hasConfig() {
		args = append(args, "-v", dirs.Config+":"+ContainerConfigPath+":ro")
	}

	env := CollectEnv(providers)
	for _, e := range env {
		args = append(args, "-e", e.Name)
	}
	for _, m := range extras {
		args = append(args, "-v", m.String())
	}
	args = append(args, cfg.Image)
	args = append(args, Entrypoint...)

	return &Invocation{Binary: binary, Args: args, Env: env, Name: name, StopCommand: "kill"}, nil
}

// BuildAppleInvocation builds the Apple Container command. Its -e flag
// does not work, so env is written to env.sh in a temp dir that is mounted
// read-only and sourced before exec. The caller must Cleanup.
func BuildAppleInvocation(ctx context.Context, cfg ContainerAgentConfig, providers ProvidersConfig, dirs HostDirs) (*Invocation, error) {
	extras, err := extraMounts(cfg)
	if err != nil {
		return nil, err
	}

	name := sandbox.ContainerName()
	args := []string{
		"run", "--rm", "-i",
		"--name", name,
		"-v", dirs.Workspace + ":" + ContainerWorkspaceDir,
		"-v", dirs.Sessions + ":" + ContainerSessionsDir,
	}
	if dirs.hasConfig() {
		args = append(args, "--mount", bindMount(dirs.Config, ContainerConfigPath, true))
	}
	for _, m := range extras {
		if m.ReadOnly {
			args = append(args, "--mount", bindMount(m.Host, m.Container, true))
			continue
		}
		args = append(args, "-v", m.String())
	}

	tempDir, err := sandbox.WriteEnvScript(envMap(CollectEnv(providers)))
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.ContainerSpawn, "failed to write env file: %v", err)
	}
	args = append(args,
		"--mount", bindMount(tempDir, sandbox.EnvMountDir, true),
		cfg.Image,
		"sh", "-c", ". "+sandbox.EnvMountDir+"/"+sandbox.EnvScriptName+" && exec sandgate agent-stdin",
	)
	logger.Warn(ctx, "apple container backend is experimental", zap.String("image", cfg.Image))

	return &Invocation{Binary: "container", Args: args, TempDir: tempDir, Name: name, StopCommand: "stop"}, nil
}

func bindMount(source, target string, readOnly bool) string {
	spec := "type=bind,source=" + source + ",target=" + target
	if readOnly {
		spec += ",readonly"
	}
	return spec
}
