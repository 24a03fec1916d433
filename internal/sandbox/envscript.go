package sandbox

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	// EnvScriptName is the file written by WriteEnvScript.
	EnvScriptName = "env.sh"
	// EnvMountDir is where the script directory is mounted in the guest.
	EnvMountDir = "/tmp/sandgate-env"
)

// EnvScript renders env as a POSIX shell script of export lines.
// Values are single-quoted; embedded quotes become '\''.
func EnvScript(env map[string]string) string {
	names := make([]string, 0, len(env))
	for k := range env {
		names = append(names, k)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("#!/bin/sh\n")
	for _, name := range names {
		b.WriteString("export ")
		b.WriteString(name)
		b.WriteString("='")
		b.WriteString(strings.ReplaceAll(env[name], "'", `'\''`))
		b.WriteString("'\n")
	}
	return b.String()
}

// WriteEnvScript creates a private temp dir holding env.sh.
// The caller owns the returned directory and must remove it.
func WriteEnvScript(env map[string]string) (string, error) {
	dir, err := os.MkdirTemp("", "sandgate-env-")
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, EnvScriptName)
	if err := os.WriteFile(path, []byte(EnvScript(env)), 0o600); err != nil {
		_ = os.RemoveAll(dir)
		return "", err
	}
	return dir, nil
}
