//go:build !sandbox_firejail && !sandbox_bubblewrap && !sandbox_landlock

package sandbox_test

import (
	"context"
	"strings"
	"testing"

	"sandgate/internal/sandbox"
	appErr "sandgate/pkg/errors"
)

func TestOptionalBackendsNotCompiled(t *testing.T) {
	t.Parallel()
	if got := sandbox.Features(); len(got) != 0 {
		t.Fatalf("expected no optional features, got %v", got)
	}
	cases := []struct {
		name string
		rt   sandbox.Runtime
		typ  sandbox.RuntimeType
		tag  string
	}{
		{name: "landlock", rt: sandbox.NewLandlockRuntime(sandbox.DefaultLandlockConfig()), typ: sandbox.TypeLandlock, tag: "sandbox_landlock"},
		{name: "firejail", rt: sandbox.NewFirejailRuntime(sandbox.FirejailConfig{}), typ: sandbox.TypeFirejail, tag: "sandbox_firejail"},
		{name: "bubblewrap", rt: sandbox.NewBubblewrapRuntime(sandbox.DefaultBubblewrapConfig()), typ: sandbox.TypeBubblewrap, tag: "sandbox_bubblewrap"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			if tc.rt.IsAvailable(context.Background()) {
				t.Fatalf("%s must not report available", tc.name)
			}
			_, err := tc.rt.Execute(context.Background(), "true", sandbox.NewContainerConfig())
			if !appErr.Is(err, appErr.RuntimeNotAvailable) || !strings.Contains(err.Error(), "-tags "+tc.tag) {
				t.Fatalf("expected rebuild hint for %s, got %v", tc.tag, err)
			}

			cfg := sandbox.DefaultRuntimeConfig()
			cfg.Type = tc.typ
			if _, err := sandbox.NewRuntime(context.Background(), cfg); !appErr.Is(err, appErr.RuntimeNotAvailable) {
				t.Fatalf("factory: expected not available, got %v", err)
			}

			cfg.AllowFallbackToNative = true
			rt, err := sandbox.NewRuntime(context.Background(), cfg)
			if err != nil || rt.Name() != "native" {
				t.Fatalf("expected native fallback, got %v, %v", rt, err)
			}
		})
	}
}
