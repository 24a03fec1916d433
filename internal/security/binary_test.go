//go:build unix

package security_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"sandgate/internal/security"
	appErr "sandgate/pkg/errors"
)

func TestValidateDockerBinary(t *testing.T) {
	t.Parallel()
	missing := filepath.Join("/nonexistent-dir", "docker")
	cases := []struct {
		name    string
		input   string
		want    string
		wantErr string
	}{
		{name: "empty", input: "", want: "docker"},
		{name: "blank", input: "   ", want: "docker"},
		{name: "docker", input: "docker", want: "docker"},
		{name: "podman", input: "podman", want: "podman"},
		{name: "padded name", input: "  podman ", want: "podman"},
		{name: "absolute existing", input: "/bin/sh", want: "/bin/sh"},
		{name: "absolute missing", input: missing, wantErr: "does not exist"},
		{name: "not executable", input: "/etc/passwd", wantErr: "not an executable file"},
		{name: "directory", input: "/etc", wantErr: "not an executable file"},
		{name: "relative", input: "./docker", wantErr: "must be an absolute path"},
		{name: "bare other name", input: "nerdctl", wantErr: "must be an absolute path"},
		{name: "tmp", input: "/tmp/fake-docker", wantErr: "temporary directory"},
		{name: "var tmp", input: "/var/tmp/docker", wantErr: "temporary directory"},
		{name: "tmp mixed case", input: "/TMP/docker", wantErr: "temporary directory"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			got, err := security.ValidateDockerBinary(context.Background(), tc.input)
			if tc.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
					t.Fatalf("expected error containing %q, got %q, %v", tc.wantErr, got, err)
				}
				if !appErr.Is(err, appErr.BinaryRejected) {
					t.Fatalf("expected binary rejected code, got %d", appErr.GetCode(err))
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}
