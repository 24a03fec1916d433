package sandbox

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	goruntime "runtime"
	"time"

	"sandgate/pkg/utils/logger"

	"go.uber.org/zap"
)

// DefaultLandlockLauncher is looked up on PATH when no launcher path is set.
const DefaultLandlockLauncher = "landlock-init"

// LandlockConfig configures the landlock backend.
type LandlockConfig struct {
	ReadDirs       []string `yaml:"readDirs"`
	WriteDirs      []string `yaml:"writeDirs"`
	LauncherPath   string   `yaml:"launcherPath"`
	SeccompProfile string   `yaml:"seccompProfile"`
}

func DefaultLandlockConfig() LandlockConfig {
	return LandlockConfig{
		ReadDirs:     []string{"/usr", "/bin", "/lib", "/lib64", "/etc", "/dev", "/proc"},
		WriteDirs:    []string{"/tmp"},
		LauncherPath: DefaultLandlockLauncher,
	}
}

// LandlockRuntime restricts the command with Landlock filesystem rules.
//
// The rules are applied by the launcher binary to itself right before it
// execs "sh -c command", so this process is never restricted. Kernels
// without Landlock run the command unrestricted: IsAvailable only says the
// backend was compiled in, not that rules are enforced. Use ABIVersion to
// check enforcement.
type LandlockRuntime struct {
	cfg LandlockConfig
}

func NewLandlockRuntime(cfg LandlockConfig) *LandlockRuntime {
	if cfg.LauncherPath == "" {
		cfg.LauncherPath = DefaultLandlockLauncher
	}
	return &LandlockRuntime{cfg: cfg}
}

func (r *LandlockRuntime) Name() string { return "landlock" }

func (r *LandlockRuntime) IsAvailable(ctx context.Context) bool {
	return FeatureEnabled(FeatureLandlock)
}

// ABIVersion returns the kernel Landlock ABI, 0 when unsupported.
func (r *LandlockRuntime) ABIVersion() int {
	return landlockABI()
}

// BuildArgs returns the launcher arguments. The workdir, when set, joins
// the read-write set.
func (r *LandlockRuntime) BuildArgs(command, workdir string) []string {
	var args []string
	for _, d := range r.cfg.ReadDirs {
		args = append(args, "--ro", d)
	}
	for _, d := range r.cfg.WriteDirs {
		args = append(args, "--rw", d)
	}
	if workdir != "" {
		args = append(args, "--rw", workdir)
	}
	if r.cfg.SeccompProfile != "" {
		args = append(args, "--seccomp-profile", r.cfg.SeccompProfile)
	}
	return append(args, "--", "sh", "-c", command)
}

type landlockResult struct {
	out CommandOutput
	err error
}

func (r *LandlockRuntime) Execute(ctx context.Context, command string, cfg ContainerConfig) (CommandOutput, error) {
	if err := requireFeature(FeatureLandlock, "Landlock"); err != nil {
		return CommandOutput{}, err
	}
	timeout, err := cfg.effectiveTimeout()
	if err != nil {
		return CommandOutput{}, err
	}
	launcher, err := exec.LookPath(r.cfg.LauncherPath)
	if err != nil {
		return CommandOutput{}, NotAvailable(fmt.Sprintf("landlock launcher %q not found; install cmd/landlock-init or set runtime.landlock.launcherPath", r.cfg.LauncherPath))
	}
	if r.ABIVersion() == 0 {
		logger.Warn(ctx, "landlock unsupported by kernel, command runs unrestricted")
	}

	var env []string
	if len(cfg.Env) > 0 {
		env = cfg.envList(os.Environ())
	}
	p := process{
		path: launcher,
		args: r.BuildArgs(command, cfg.Workdir),
		env:  env,
		dir:  cfg.Workdir,
	}

	results := make(chan landlockResult, 1)
	go func() {
		// Pdeathsig follows the spawning thread, so the child must be
		// started and reaped on one thread that dies with this goroutine.
		goruntime.LockOSThread()
		out, err := runProcess(ctx, p, timeout)
		results <- landlockResult{out: out, err: err}
	}()

	guard := time.NewTimer(timeout + waitDelay + time.Second)
	defer guard.Stop()
	select {
	case res := <-results:
		return res.out, res.err
	case <-guard.C:
		logger.Error(ctx, "landlock worker did not report back", zap.Duration("timeout", timeout))
		return CommandOutput{}, Timeout(timeout)
	}
}
