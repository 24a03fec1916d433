package agent_test

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"sandgate/internal/agent"
	"sandgate/internal/bus"
	"sandgate/internal/session"
)

const (
	helperModeEnv = "SANDGATE_TEST_HELPER_MODE"
	helperDirEnv  = "SANDGATE_TEST_HELPER_DIR"
)

// TestMain turns the test binary into a fake agent container when the
// helper env var is set.
func TestMain(m *testing.M) {
	// "<binary> kill <name>" as issued by Invocation.Stop; name is a
	// marker path here.
	if len(os.Args) == 3 && (os.Args[1] == "kill" || os.Args[1] == "stop") {
		if err := os.WriteFile(os.Args[2], []byte(os.Args[1]), 0o600); err != nil {
			os.Exit(1)
		}
		os.Exit(0)
	}
	if mode := os.Getenv(helperModeEnv); mode != "" {
		os.Exit(runHelper(mode))
	}
	os.Exit(m.Run())
}

func runHelper(mode string) int {
	switch mode {
	case "sleep":
		time.Sleep(time.Minute)
		return 0
	case "exit":
		fmt.Fprintln(os.Stderr, "boom")
		return 3
	case "garbage":
		_, _ = io.Copy(io.Discard, os.Stdin)
		fmt.Println("no markers here")
		return 0
	}

	req, err := agent.ReadRequest(os.Stdin)
	if err != nil {
		_ = agent.WriteResponse(os.Stdout, agent.ErrorResponse("", agent.ErrCodeInvalidRequest, err.Error()))
		return 0
	}
	if mode == "gate" {
		dir := os.Getenv(helperDirEnv)
		_ = os.WriteFile(filepath.Join(dir, "started-"+req.RequestID), nil, 0o600)
		deadline := time.Now().Add(30 * time.Second)
		for time.Now().Before(deadline) {
			if _, err := os.Stat(filepath.Join(dir, "release")); err == nil {
				break
			}
			time.Sleep(10 * time.Millisecond)
		}
	}
	if mode == "agent-error" {
		_ = agent.WriteResponse(os.Stdout, agent.ErrorResponse(req.RequestID, agent.ErrCodeProcessError, "model unavailable"))
		return 0
	}

	s := req.Session
	if s == nil {
		s = session.New(req.Message.SessionKey())
	}
	if mode == "spoof" {
		s = session.New("telegram:someone-else")
	}
	content := "echo: " + req.Message.Content
	s.AddMessage(session.RoleUser, req.Message.Content)
	s.AddMessage(session.RoleAssistant, content)

	fmt.Println("agent log line before the response")
	_ = agent.WriteResponse(os.Stdout, agent.SuccessResponse(req.RequestID, content, s))
	fmt.Println("trailing output")
	return 0
}

// helperProcess makes the proxy spawn this test binary in the given mode.
func helperProcess(t *testing.T, mode string, extra ...agent.EnvVar) agent.Option {
	t.Helper()
	return helperInvocation(t, mode, nil, extra...)
}

// helperInvocation is helperProcess with a hook to adjust each invocation.
func helperInvocation(t *testing.T, mode string, adjust func(*agent.Invocation) error, extra ...agent.EnvVar) agent.Option {
	t.Helper()
	exe, err := os.Executable()
	if err != nil {
		t.Fatalf("resolve test executable: %v", err)
	}
	return agent.WithInvocationBuilder(func(context.Context) (*agent.Invocation, error) {
		env := append([]agent.EnvVar{{Name: helperModeEnv, Value: mode}}, extra...)
		inv := &agent.Invocation{Binary: exe, Env: env}
		if adjust != nil {
			if err := adjust(inv); err != nil {
				return nil, err
			}
		}
		return inv, nil
	})
}

type harness struct {
	proxy *agent.Proxy
	bus   *bus.MemoryBus
}

func startProxy(t *testing.T, cfg agent.ContainerAgentConfig, opts ...agent.Option) harness {
	t.Helper()
	b := bus.NewMemoryBus(0)
	p, err := agent.NewProxy(cfg, agent.BackendDocker, b, opts...)
	if err != nil {
		t.Fatalf("new proxy: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Start(ctx) }()
	waitFor(t, "proxy running", p.IsRunning)

	t.Cleanup(func() {
		p.Stop()
		cancel()
		if err := <-done; err != nil {
			t.Errorf("proxy start returned %v", err)
		}
		p.Wait()
		_ = b.Close()
	})
	return harness{proxy: p, bus: b}
}

func (h harness) send(t *testing.T, channel, chatID, content string) {
	t.Helper()
	msg := bus.InboundMessage{Channel: channel, SenderID: "user-1", ChatID: chatID, Content: content}
	if err := h.bus.PublishInbound(context.Background(), msg); err != nil {
		t.Fatalf("publish inbound: %v", err)
	}
}

func (h harness) reply(t *testing.T) bus.OutboundMessage {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	out, err := h.bus.ConsumeOutbound(ctx)
	if err != nil {
		t.Fatalf("consume outbound: %v", err)
	}
	return out
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func newStore(t *testing.T) *session.Manager {
	t.Helper()
	codec, err := session.NewCodec(false)
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	return session.NewManager(session.NewMemoryBackend(), codec)
}

func testConfig() agent.ContainerAgentConfig {
	cfg := agent.DefaultContainerAgentConfig()
	cfg.Timeout = 20 * time.Second
	return cfg
}
