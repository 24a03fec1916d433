package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"sandgate/internal/agent"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sandgate.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppConfigDefaults(t *testing.T) {
	t.Parallel()
	cfg, err := loadAppConfig(writeConfig(t, "containerAgent:\n  backend: docker\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ContainerAgent.Backend != agent.BackendDocker || cfg.ContainerAgent.Timeout != 300*time.Second {
		t.Fatalf("unexpected container agent config: %+v", cfg.ContainerAgent)
	}
	if cfg.Bus.Type != busMemory || cfg.Health.Addr != defaultHealthAddr {
		t.Fatalf("unexpected defaults: bus=%+v health=%+v", cfg.Bus, cfg.Health)
	}
	if cfg.Agent.Model == "" {
		t.Fatalf("agent defaults not applied")
	}
}

func TestLoadAppConfigFileSessionDir(t *testing.T) {
	t.Parallel()
	data := t.TempDir()
	cfg, err := loadAppConfig(writeConfig(t, "containerAgent:\n  dataDir: "+data+"\nsession:\n  backend: file\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Session.Dir != filepath.Join(data, "gateway", "sessions") {
		t.Fatalf("unexpected session dir %q", cfg.Session.Dir)
	}
}

func TestLoadAppConfigRejects(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		"unknown bus":      "bus:\n  type: nats\n",
		"kafka no brokers": "bus:\n  type: kafka\n",
		"bad backend":      "containerAgent:\n  backend: lxc\n",
		"malformed yaml":   "containerAgent: [\n",
		"negative timeout": "containerAgent:\n  timeout: -1s\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			if _, err := loadAppConfig(writeConfig(t, body)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
	if _, err := loadAppConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil || !strings.Contains(err.Error(), "read config") {
		t.Fatalf("expected read error, got %v", err)
	}
}

func TestLoadSampleConfig(t *testing.T) {
	t.Parallel()
	cfg, err := loadAppConfig(filepath.Join("..", "..", "configs", "sandgate.yaml"))
	if err != nil {
		t.Fatalf("load sample config: %v", err)
	}
	if cfg.Bus.Topics.InboundTopic != "sandgate.inbound" || cfg.ContainerAgent.MaxConcurrent != 5 {
		t.Fatalf("unexpected sample config: %+v", cfg)
	}
	if !filepath.IsAbs(cfg.Session.Dir) {
		t.Fatalf("session dir not expanded: %q", cfg.Session.Dir)
	}
	if cfg.Session.CacheLimit != 1024 || cfg.Session.CacheTTL != 5*time.Minute {
		t.Fatalf("unexpected session cache settings: %+v", cfg.Session)
	}
}
