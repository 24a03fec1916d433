package sandbox

import (
	"context"
	"fmt"
	goruntime "runtime"

	"sandgate/internal/security"
	appErr "sandgate/pkg/errors"
	"sandgate/pkg/utils/logger"

	"go.uber.org/zap"
)

// NewRuntime builds the runtime selected by cfg.Type and checks that it
// can run on this host. With AllowFallbackToNative an unavailable backend
// degrades to NativeRuntime; security errors never fall back.
func NewRuntime(ctx context.Context, cfg RuntimeConfig) (Runtime, error) {
	rt, err := newRuntime(ctx, cfg)
	if err == nil {
		return rt, nil
	}
	if cfg.AllowFallbackToNative && appErr.Is(err, appErr.RuntimeNotAvailable) {
		logger.Warn(ctx, "runtime unavailable, falling back to native",
			zap.String("runtime", string(cfg.Type)), zap.Error(err))
		return NewNativeRuntime(), nil
	}
	return nil, err
}

func newRuntime(ctx context.Context, cfg RuntimeConfig) (Runtime, error) {
	switch cfg.Type {
	case TypeNative, "":
		return NewNativeRuntime(), nil
	case TypeDocker:
		return newDocker(ctx, cfg)
	case TypeApple:
		return newApple(ctx, cfg)
	case TypeLandlock:
		if goruntime.GOOS != "linux" {
			return nil, NotAvailable("Landlock is only available on Linux")
		}
		if err := requireFeature(FeatureLandlock, "Landlock"); err != nil {
			return nil, err
		}
		return NewLandlockRuntime(cfg.Landlock), nil
	case TypeFirejail:
		if err := requireFeature(FeatureFirejail, "Firejail"); err != nil {
			return nil, err
		}
		rt := NewFirejailRuntime(cfg.Firejail)
		if !rt.IsAvailable(ctx) {
			return nil, NotAvailable("firejail is not installed; install it or pick another runtime")
		}
		return rt, nil
	case TypeBubblewrap:
		if err := requireFeature(FeatureBubblewrap, "Bubblewrap"); err != nil {
			return nil, err
		}
		rt := NewBubblewrapRuntime(cfg.Bubblewrap)
		if !rt.IsAvailable(ctx) {
			return nil, NotAvailable("bwrap is not installed; install bubblewrap or pick another runtime")
		}
		return rt, nil
	default:
		return nil, appErr.Newf(appErr.RuntimeUnknown, "unknown runtime type %q", cfg.Type)
	}
}

func newDocker(ctx context.Context, cfg RuntimeConfig) (Runtime, error) {
	binary, err := security.ValidateDockerBinary(ctx, cfg.Docker.Binary)
	if err != nil {
		return nil, err
	}
	extra, err := resolveExtraMounts(cfg.Docker.ExtraMounts, cfg.MountAllowlistPath)
	if err != nil {
		return nil, err
	}
	opts := []DockerOption{WithDockerBinary(binary), WithoutLimits(), WithExtraMounts(extra)}
	if cfg.Docker.MemoryLimit != "" {
		opts = append(opts, WithMemoryLimit(cfg.Docker.MemoryLimit))
	}
	if cfg.Docker.CPULimit != "" {
		opts = append(opts, WithCPULimit(cfg.Docker.CPULimit))
	}
	if cfg.Docker.Network != "" {
		opts = append(opts, WithNetwork(cfg.Docker.Network))
	}
	rt := NewDockerRuntime(cfg.Docker.Image, opts...)
	if !rt.IsAvailable(ctx) {
		return nil, NotAvailable("Docker is not installed or not running")
	}
	return rt, nil
}

func newApple(ctx context.Context, cfg RuntimeConfig) (Runtime, error) {
	if goruntime.GOOS != "darwin" {
		return nil, NotAvailable("Apple Container is only available on macOS")
	}
	if !cfg.Apple.AllowExperimental {
		return nil, NotAvailable("Apple Container runtime is experimental; set runtime.apple.allowExperimental to true to use it")
	}
	extra, err := resolveExtraMounts(cfg.Apple.ExtraMounts, cfg.MountAllowlistPath)
	if err != nil {
		return nil, err
	}
	rt := NewAppleContainerRuntime(cfg.Apple.Image).WithExtraMounts(extra)
	if !rt.IsAvailable(ctx) {
		return nil, NotAvailable("Apple Container CLI not found or 'container run' unsupported; requires macOS 15+")
	}
	return rt, nil
}

func resolveExtraMounts(specs []string, allowlistPath string) ([]Mount, error) {
	validated, err := security.ValidateExtraMounts(specs, allowlistPath)
	if err != nil {
		return nil, err
	}
	mounts := make([]Mount, 0, len(validated))
	for _, m := range validated {
		mounts = append(mounts, Mount{HostPath: m.Host, ContainerPath: m.Container, ReadOnly: m.ReadOnly})
	}
	return mounts, nil
}

// AvailableRuntimes lists the backends usable on this host, native first.
func AvailableRuntimes(ctx context.Context, cfg RuntimeConfig) []string {
	out := []string{string(TypeNative)}
	candidates := []Runtime{
		NewDockerRuntime(cfg.Docker.Image),
		NewAppleContainerRuntime(cfg.Apple.Image),
		NewLandlockRuntime(cfg.Landlock),
		NewFirejailRuntime(cfg.Firejail),
		NewBubblewrapRuntime(cfg.Bubblewrap),
	}
	for _, rt := range candidates {
		if rt.IsAvailable(ctx) {
			out = append(out, rt.Name())
		}
	}
	return out
}

// Describe renders a one line summary of a runtime for logs.
func Describe(rt Runtime) string {
	switch r := rt.(type) {
	case *DockerRuntime:
		return fmt.Sprintf("docker(image=%s, network=%s)", r.image, r.network)
	case *AppleContainerRuntime:
		return fmt.Sprintf("apple(image=%s, experimental)", r.image)
	case *LandlockRuntime:
		return fmt.Sprintf("landlock(abi=%d)", r.ABIVersion())
	default:
		return rt.Name()
	}
}
