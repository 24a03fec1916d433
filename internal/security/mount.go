// Package security holds the host-side policy checks applied before any
// path or binary reaches a sandbox backend.
package security

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	appErr "sandgate/pkg/errors"
)

// DefaultBlockedPatterns are matched case-insensitively against host paths.
var DefaultBlockedPatterns = []string{
	".ssh",
	".gnupg",
	".gpg",
	".aws",
	".azure",
	".gcloud",
	".kube",
	".docker",
	"credentials",
	".env",
	".netrc",
	"id_rsa",
	"id_ed25519",
	"private_key",
}

// MountSpec is a parsed "host:container[:ro]" string.
type MountSpec struct {
	Host      string
	Container string
	ReadOnly  bool
}

func (m MountSpec) String() string {
	if m.ReadOnly {
		return m.Host + ":" + m.Container + ":ro"
	}
	return m.Host + ":" + m.Container
}

// ParseMountSpec splits a docker style volume string. Only the "ro" mode
// is accepted.
func ParseMountSpec(spec string) (MountSpec, error) {
	parts := strings.Split(spec, ":")
	switch {
	case len(parts) == 2:
		return MountSpec{Host: parts[0], Container: parts[1]}, nil
	case len(parts) == 3 && parts[2] == "ro":
		return MountSpec{Host: parts[0], Container: parts[1], ReadOnly: true}, nil
	case len(parts) == 3:
		return MountSpec{}, appErr.Security(appErr.MountInvalid,
			"invalid mount mode '%s'; only 'ro' is supported", parts[2])
	default:
		return MountSpec{}, appErr.Security(appErr.MountInvalid,
			"invalid mount format '%s'; expected 'host:container' or 'host:container:ro'", spec)
	}
}

// ValidateMountNotBlocked rejects a mount whose host path matches a
// sensitive pattern or whose paths are not safe to pass to a container
// engine.
func ValidateMountNotBlocked(spec string) error {
	m, err := ParseMountSpec(spec)
	if err != nil {
		return err
	}
	if err := validateContainerPath(m.Container, spec); err != nil {
		return err
	}
	if pattern, ok := matchBlocked(ExpandHome(m.Host), DefaultBlockedPatterns); ok {
		return appErr.Security(appErr.MountBlocked,
			"mount '%s' blocked by sensitive pattern '%s'", spec, pattern).
			WithDetail("pattern", pattern)
	}
	if strings.Contains(m.Host, "..") {
		return appErr.Security(appErr.MountInvalid,
			"mount host path '%s' contains path traversal", m.Host)
	}
	return nil
}

func validateContainerPath(container, spec string) error {
	if container == "" || !strings.HasPrefix(container, "/") || strings.Contains(container, "..") {
		return appErr.Security(appErr.MountInvalid,
			"Invalid container mount path '%s' in '%s'", container, spec)
	}
	return nil
}

func matchBlocked(path string, patterns []string) (string, bool) {
	lower := strings.ToLower(path)
	for _, p := range patterns {
		if p == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(p)) {
			return p, true
		}
	}
	return "", false
}

// AllowedRoot is one entry of the allowlist file.
type AllowedRoot struct {
	Path           string `json:"path"`
	AllowReadWrite bool   `json:"allowReadWrite"`
}

// Allowlist is the JSON document restricting extra mounts.
type Allowlist struct {
	AllowedRoots    []AllowedRoot `json:"allowedRoots"`
	BlockedPatterns []string      `json:"blockedPatterns"`
}

// LoadAllowlist reads and parses the allowlist file. A missing or
// malformed file is an error, never an empty policy.
func LoadAllowlist(path string) (*Allowlist, error) {
	path = ExpandHome(path)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, appErr.Security(appErr.AllowlistInvalid, "mount allowlist not found at '%s'", path)
		}
		return nil, appErr.Security(appErr.AllowlistInvalid, "failed to read mount allowlist '%s': %v", path, err)
	}
	var list Allowlist
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, appErr.Security(appErr.AllowlistInvalid, "invalid mount allowlist JSON at '%s': %v", path, err)
	}
	return &list, nil
}

// ValidateExtraMounts checks every mount against the allowlist and returns
// them normalised: canonical host path, read-only unless the matching root
// allows writes. Any rejected entry fails the whole list.
func ValidateExtraMounts(mounts []string, allowlistPath string) ([]MountSpec, error) {
	if len(mounts) == 0 {
		return nil, nil
	}
	list, err := LoadAllowlist(allowlistPath)
	if err != nil {
		return nil, err
	}
	if len(list.AllowedRoots) == 0 {
		return nil, appErr.Security(appErr.AllowlistInvalid, "mount allowlist has no allowedRoots entries")
	}

	patterns := append(append([]string(nil), DefaultBlockedPatterns...), list.BlockedPatterns...)
	out := make([]MountSpec, 0, len(mounts))
	for _, raw := range mounts {
		m, err := ParseMountSpec(raw)
		if err != nil {
			return nil, err
		}
		if err := validateContainerPath(m.Container, raw); err != nil {
			return nil, err
		}
		if pattern, ok := matchBlocked(ExpandHome(m.Host), patterns); ok {
			return nil, appErr.Security(appErr.MountBlocked,
				"mount '%s' blocked by pattern '%s'", raw, pattern).
				WithDetail("pattern", pattern)
		}
		// Checked again after symlinks are resolved.
		host, err := canonicalize(ExpandHome(m.Host))
		if err != nil {
			return nil, err
		}
		if pattern, ok := matchBlocked(host, patterns); ok {
			return nil, appErr.Security(appErr.MountBlocked,
				"mount '%s' blocked by pattern '%s'", host, pattern).
				WithDetail("pattern", pattern)
		}
		root, ok := findRoot(host, list.AllowedRoots)
		if !ok {
			return nil, appErr.Security(appErr.MountNotAllowed,
				"mount '%s' is outside allowedRoots in '%s'", host, ExpandHome(allowlistPath))
		}
		out = append(out, MountSpec{
			Host:      host,
			Container: m.Container,
			ReadOnly:  m.ReadOnly || !root.AllowReadWrite,
		})
	}
	return out, nil
}

func findRoot(host string, roots []AllowedRoot) (AllowedRoot, bool) {
	for _, root := range roots {
		rootPath, err := canonicalize(ExpandHome(root.Path))
		if err != nil {
			continue
		}
		if isUnder(host, rootPath) {
			return root, true
		}
	}
	return AllowedRoot{}, false
}

func isUnder(path, root string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

func canonicalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", appErr.Security(appErr.MountInvalid, "mount path '%s' is invalid: %v", path, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", appErr.Security(appErr.MountInvalid, "mount path '%s' is invalid or does not exist: %v", path, err)
	}
	return resolved, nil
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if path == "~" {
		return home
	}
	return filepath.Join(home, path[2:])
}
