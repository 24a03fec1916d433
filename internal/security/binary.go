package security

import (
	"context"
	"os"
	"path/filepath"
	goruntime "runtime"
	"strings"

	appErr "sandgate/pkg/errors"
	"sandgate/pkg/utils/logger"

	"go.uber.org/zap"
)

// AllowedDockerBinaries are accepted by name and resolved through PATH.
var AllowedDockerBinaries = []string{"docker", "podman"}

// tempPrefixes lists directories any local user may be able to write to.
func tempPrefixes() []string {
	prefixes := []string{"/tmp", "/var/tmp"}
	if goruntime.GOOS == "darwin" {
		prefixes = append(prefixes, "/private/tmp", "/private/var/tmp")
	}
	if dir := filepath.Clean(os.TempDir()); filepath.IsAbs(dir) && dir != "/" {
		prefixes = append(prefixes, strings.ToLower(dir))
	}
	return prefixes
}

// ValidateDockerBinary resolves the configured container engine binary.
// Blank means "docker". Anything other than a well-known name must be an
// absolute path to an executable file outside temporary directories.
func ValidateDockerBinary(ctx context.Context, configured string) (string, error) {
	binary := strings.TrimSpace(configured)
	if binary == "" {
		return "docker", nil
	}
	for _, name := range AllowedDockerBinaries {
		if binary == name {
			return binary, nil
		}
	}
	if !filepath.IsAbs(binary) {
		return "", appErr.Security(appErr.BinaryRejected,
			"docker binary '%s' must be an absolute path or one of %v", binary, AllowedDockerBinaries)
	}

	lowered := strings.ToLower(filepath.Clean(binary))
	for _, prefix := range tempPrefixes() {
		if lowered == prefix || strings.HasPrefix(lowered, prefix+"/") {
			return "", appErr.Security(appErr.BinaryRejected,
				"docker binary '%s' is in a temporary directory; this is not allowed", binary)
		}
	}

	info, err := os.Stat(binary)
	if err != nil {
		return "", appErr.Security(appErr.BinaryRejected, "docker binary '%s' does not exist", binary)
	}
	if !info.Mode().IsRegular() || info.Mode().Perm()&0o111 == 0 {
		return "", appErr.Security(appErr.BinaryRejected, "docker binary '%s' is not an executable file", binary)
	}

	logger.Warn(ctx, "using non-default docker binary from configuration", zap.String("docker_binary", binary))
	return binary, nil
}
