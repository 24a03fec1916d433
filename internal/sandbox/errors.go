package sandbox

import (
	"fmt"
	"time"

	appErr "sandgate/pkg/errors"
)

const detailTimeout = "timeout"

// Timeout returns a RuntimeTimeout error carrying d.
func Timeout(d time.Duration) error {
	return appErr.Newf(appErr.RuntimeTimeout, "command timed out after %s", d).
		WithDetail(detailTimeout, d)
}

// ExecutionFailed wraps an OS level failure (spawn, pipes, wait).
func ExecutionFailed(msg string, cause error) error {
	if cause == nil {
		return appErr.Newf(appErr.RuntimeExecutionFailed, "execution failed: %s", msg)
	}
	return appErr.Wrapf(cause, appErr.RuntimeExecutionFailed, "execution failed: %s: %v", msg, cause)
}

// NotAvailable reports a backend that cannot run here. msg names the remedy.
func NotAvailable(msg string) error {
	return appErr.Newf(appErr.RuntimeNotAvailable, "runtime not available: %s", msg)
}

// notCompiled is returned by backends left out of the build.
func notCompiled(backend, tag string) error {
	return NotAvailable(fmt.Sprintf("%s support is not compiled in. Rebuild with -tags %s to use the %s runtime", backend, tag, backend))
}

// TimeoutOf extracts the configured duration from a RuntimeTimeout error.
func TimeoutOf(err error) (time.Duration, bool) {
	if !appErr.Is(err, appErr.RuntimeTimeout) {
		return 0, false
	}
	v, ok := appErr.GetError(err).Detail(detailTimeout)
	if !ok {
		return 0, false
	}
	d, ok := v.(time.Duration)
	return d, ok
}
