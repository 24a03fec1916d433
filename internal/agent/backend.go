package agent

import (
	"context"
	goruntime "runtime"
	"strings"

	"sandgate/internal/sandbox"
	appErr "sandgate/pkg/errors"
	"sandgate/pkg/utils/logger"

	"go.uber.org/zap"
)

// ResolveBackend turns the configured backend into docker or apple.
// Auto prefers Apple Container on macOS when experimental backends are
// allowed, then Docker.
func ResolveBackend(ctx context.Context, cfg ContainerAgentConfig) (Backend, error) {
	switch cfg.Backend {
	case BackendDocker:
		return BackendDocker, nil
	case BackendApple:
		if err := checkApple(cfg); err != nil {
			return "", err
		}
		return BackendApple, nil
	case BackendAuto, "":
		return autoDetect(ctx, cfg)
	default:
		return "", appErr.Newf(appErr.ConfigInvalid, "unknown container backend %q", cfg.Backend)
	}
}

func checkApple(cfg ContainerAgentConfig) error {
	if goruntime.GOOS != "darwin" {
		return appErr.Newf(appErr.BackendUnavailable, "Apple Container is only available on macOS")
	}
	if !cfg.AllowExperimental {
		return appErr.Newf(appErr.BackendUnavailable,
			"Apple Container backend is experimental; set allowExperimental to enable it")
	}
	return nil
}

func autoDetect(ctx context.Context, cfg ContainerAgentConfig) (Backend, error) {
	if checkApple(cfg) == nil && BackendAvailable(ctx, cfg, BackendApple) {
		logger.Info(ctx, "container backend detected", zap.String("backend", string(BackendApple)))
		return BackendApple, nil
	}
	if BackendAvailable(ctx, cfg, BackendDocker) {
		logger.Info(ctx, "container backend detected", zap.String("backend", string(BackendDocker)))
		return BackendDocker, nil
	}
	return "", appErr.Newf(appErr.BackendUnavailable,
		"no container backend available. Install Docker or Apple Container (macOS 15+)")
}

// BackendAvailable checks the engine CLI for a resolved backend.
func BackendAvailable(ctx context.Context, cfg ContainerAgentConfig, backend Backend) bool {
	switch backend {
	case BackendApple:
		return sandbox.NewAppleContainerRuntime(cfg.Image).IsAvailable(ctx)
	case BackendDocker:
		// Probing only; the spawn path validates the binary.
		binary := strings.TrimSpace(cfg.DockerBinary)
		if binary == "" {
			binary = "docker"
		}
		return sandbox.NewDockerRuntime(cfg.Image, sandbox.WithDockerBinary(binary)).IsAvailable(ctx)
	default:
		return false
	}
}
