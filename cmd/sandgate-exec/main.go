// Command sandgate-exec runs one shell command through a sandbox runtime.
//
//	sandgate-exec [--config f] [--runtime docker] [--mount h:c[:ro]] [--env K=V] -- 'cmd'
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"sandgate/internal/sandbox"
	"sandgate/internal/security"
	appErr "sandgate/pkg/errors"
	"sandgate/pkg/utils/logger"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

const (
	defaultConfigPath = "configs/sandgate.yaml"
	exitTimeout       = 124
	exitFailure       = 125
)

type options struct {
	configPath string
	runtime    string
	workdir    string
	timeout    time.Duration
	env        []string
	mounts     []string
	extraArgs  string
	fallback   bool
	list       bool
	features   bool
	command    string
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "sandgate-exec: %v\n", err)
		return 2
	}

	appCfg, err := loadAppConfig(opts.configPath, opts.configPath != defaultConfigPath)
	if err != nil {
		fmt.Fprintf(stderr, "load app config failed: %v\n", err)
		return exitFailure
	}
	if err := logger.Init(appCfg.Logger); err != nil {
		fmt.Fprintf(stderr, "init logger failed: %v\n", err)
		return exitFailure
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := appCfg.Runtime
	if err := applyOverrides(&cfg, opts); err != nil {
		fmt.Fprintf(stderr, "sandgate-exec: %v\n", err)
		return 2
	}

	switch {
	case opts.features:
		fmt.Fprintf(stdout, "compiled features: %s\n", strings.Join(orNone(sandbox.Features()), ", "))
		return 0
	case opts.list:
		for _, name := range sandbox.AvailableRuntimes(ctx, cfg) {
			fmt.Fprintln(stdout, name)
		}
		return 0
	}

	if opts.command == "" {
		fmt.Fprintln(stderr, "sandgate-exec: a command is required")
		return 2
	}

	execCfg := sandbox.NewContainerConfig().WithWorkdir(opts.workdir)
	if opts.timeout != 0 {
		execCfg = execCfg.WithTimeout(opts.timeout)
	}
	env, err := parseEnv(opts.env)
	if err != nil {
		fmt.Fprintf(stderr, "sandgate-exec: %v\n", err)
		return 2
	}
	execCfg.Env = env
	mounts, err := parseMounts(opts.mounts, cfgAllowlist(cfg, opts))
	if err != nil {
		fmt.Fprintf(stderr, "sandgate-exec: %v\n", err)
		return exitFailure
	}
	execCfg.Mounts = mounts

	rt, err := sandbox.NewRuntime(ctx, cfg)
	if err != nil {
		fmt.Fprintf(stderr, "sandgate-exec: %v\n", err)
		return exitFailure
	}
	logger.Info(ctx, "runtime selected", zap.String("runtime", sandbox.Describe(rt)))

	start := time.Now()
	out, err := rt.Execute(ctx, opts.command, execCfg)
	logger.Debug(ctx, "command finished", zap.String("runtime", rt.Name()), logger.ElapsedField(start), zap.Error(err))
	if err != nil {
		fmt.Fprintf(stderr, "sandgate-exec: %v\n", err)
		if appErr.Is(err, appErr.RuntimeTimeout) {
			return exitTimeout
		}
		return exitFailure
	}
	_, _ = io.WriteString(stdout, out.Stdout)
	_, _ = io.WriteString(stderr, out.Stderr)
	if out.ExitCode == nil {
		return exitFailure
	}
	return *out.ExitCode
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options
	fs := pflag.NewFlagSet("sandgate-exec", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVarP(&opts.configPath, "config", "c", defaultConfigPath, "path to config file")
	fs.StringVarP(&opts.runtime, "runtime", "r", "", "runtime override (native, docker, apple, landlock, firejail, bubblewrap)")
	fs.StringVarP(&opts.workdir, "workdir", "w", "", "working directory for the command")
	fs.DurationVarP(&opts.timeout, "timeout", "t", 0, "command timeout (default 30s)")
	fs.StringArrayVarP(&opts.env, "env", "e", nil, "environment variable NAME=VALUE (repeatable)")
	fs.StringArrayVarP(&opts.mounts, "mount", "m", nil, "extra mount host:container[:ro] (repeatable)")
	fs.StringVar(&opts.extraArgs, "extra-args", "", "shell-quoted extra arguments for firejail or bwrap")
	fs.BoolVar(&opts.fallback, "fallback-native", false, "fall back to native when the runtime is unavailable")
	fs.BoolVar(&opts.list, "list", false, "list runtimes available on this host")
	fs.BoolVar(&opts.features, "features", false, "list optional runtimes compiled into this binary")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	opts.command = strings.Join(fs.Args(), " ")
	return opts, nil
}

func applyOverrides(cfg *sandbox.RuntimeConfig, opts options) error {
	if opts.runtime != "" {
		cfg.Type = sandbox.RuntimeType(opts.runtime)
	}
	if opts.fallback {
		cfg.AllowFallbackToNative = true
	}
	if opts.extraArgs != "" {
		extra, err := sandbox.ParseArgList(opts.extraArgs)
		if err != nil {
			return err
		}
		cfg.Firejail.ExtraArgs = append(cfg.Firejail.ExtraArgs, extra...)
		cfg.Bubblewrap.ExtraArgs = append(cfg.Bubblewrap.ExtraArgs, extra...)
	}
	return nil
}

// cfgAllowlist returns the allowlist enforced for --mount. The default
// location only applies when the file is present.
func cfgAllowlist(cfg sandbox.RuntimeConfig, opts options) string {
	if len(opts.mounts) == 0 {
		return ""
	}
	if cfg.MountAllowlistPath == sandbox.DefaultMountAllowlistPath {
		if _, err := os.Stat(security.ExpandHome(cfg.MountAllowlistPath)); err != nil {
			return ""
		}
	}
	return cfg.MountAllowlistPath
}

func orNone(list []string) []string {
	if len(list) == 0 {
		return []string{"none"}
	}
	return list
}
