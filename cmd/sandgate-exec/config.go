package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"sandgate/internal/sandbox"
	"sandgate/internal/security"
	"sandgate/pkg/utils/logger"

	"gopkg.in/yaml.v3"
)

// AppConfig holds sandgate-exec configuration.
type AppConfig struct {
	Logger  logger.Config         `yaml:"logger"`
	Runtime sandbox.RuntimeConfig `yaml:"runtime"`
}

// loadAppConfig reads path when it exists. A missing default config is
// not an error; the native runtime is used.
func loadAppConfig(path string, required bool) (*AppConfig, error) {
	cfg := AppConfig{Logger: logger.Config{Level: "warn"}}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file failed: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist) && !required:
	default:
		return nil, fmt.Errorf("read config file failed: %w", err)
	}
	cfg.Runtime.ApplyDefaults()
	return &cfg, nil
}

// parseEnv turns NAME=VALUE flags into a map. Later entries win.
func parseEnv(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	env := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid env %q: expected NAME=VALUE", pair)
		}
		env[name] = value
	}
	return env, nil
}

// parseMounts checks every mount against the sensitive path blocklist and,
// when allowlistPath is set, the allowlist.
func parseMounts(specs []string, allowlistPath string) ([]sandbox.Mount, error) {
	if len(specs) == 0 {
		return nil, nil
	}
	for _, spec := range specs {
		if err := security.ValidateMountNotBlocked(spec); err != nil {
			return nil, err
		}
	}
	var parsed []security.MountSpec
	if allowlistPath != "" {
		validated, err := security.ValidateExtraMounts(specs, allowlistPath)
		if err != nil {
			return nil, err
		}
		parsed = validated
	} else {
		for _, spec := range specs {
			m, err := security.ParseMountSpec(spec)
			if err != nil {
				return nil, err
			}
			parsed = append(parsed, m)
		}
	}
	mounts := make([]sandbox.Mount, 0, len(parsed))
	for _, m := range parsed {
		mounts = append(mounts, sandbox.Mount{HostPath: m.Host, ContainerPath: m.Container, ReadOnly: m.ReadOnly})
	}
	return mounts, nil
}
