package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"sandgate/internal/agent"
	"sandgate/internal/bus"
	"sandgate/internal/common/mq"
	"sandgate/internal/health"
	"sandgate/internal/security"
	"sandgate/internal/session"
	"sandgate/pkg/utils/logger"

	"gopkg.in/yaml.v3"
)

const (
	defaultHealthAddr      = "127.0.0.1:8090"
	defaultReadTimeout     = 5 * time.Second
	defaultWriteTimeout    = 10 * time.Second
	defaultShutdownTimeout = 10 * time.Second
)

// Bus types accepted in BusConfig.Type.
const (
	busMemory = "memory"
	busKafka  = "kafka"
)

// BusConfig selects the message bus.
type BusConfig struct {
	Type       string          `yaml:"type"`
	BufferSize int             `yaml:"bufferSize"`
	Kafka      mq.KafkaConfig  `yaml:"kafka"`
	Topics     bus.KafkaConfig `yaml:"topics"`
}

// AppConfig holds sandgate-gateway configuration.
type AppConfig struct {
	Logger         logger.Config              `yaml:"logger"`
	ContainerAgent agent.ContainerAgentConfig `yaml:"containerAgent"`
	Providers      agent.ProvidersConfig      `yaml:"providers"`
	Agent          agent.AgentDefaults        `yaml:"agent"`
	Bus            BusConfig                  `yaml:"bus"`
	Session        session.Config             `yaml:"session"`
	Health         health.Config              `yaml:"health"`
}

func loadYAML(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file failed: %w", err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse config file failed: %w", err)
	}
	return nil
}

func loadAppConfig(path string) (*AppConfig, error) {
	var cfg AppConfig
	if err := loadYAML(path, &cfg); err != nil {
		return nil, err
	}

	cfg.ContainerAgent.ApplyDefaults()
	if err := cfg.ContainerAgent.Validate(); err != nil {
		return nil, err
	}
	if cfg.Agent == (agent.AgentDefaults{}) {
		cfg.Agent = agent.DefaultAgentDefaults()
	}

	if cfg.Bus.Type == "" {
		cfg.Bus.Type = busMemory
	}
	switch cfg.Bus.Type {
	case busMemory:
		if cfg.Bus.BufferSize <= 0 {
			cfg.Bus.BufferSize = bus.DefaultBufferSize
		}
	case busKafka:
		if len(cfg.Bus.Kafka.Brokers) == 0 {
			return nil, fmt.Errorf("bus.kafka.brokers is required for the kafka bus")
		}
		cfg.Bus.Topics.ApplyDefaults()
	default:
		return nil, fmt.Errorf("unknown bus type %q", cfg.Bus.Type)
	}

	if cfg.Session.Backend == session.BackendFile {
		if cfg.Session.Dir == "" {
			cfg.Session.Dir = filepath.Join(cfg.ContainerAgent.DataDir, "gateway", "sessions")
		}
		cfg.Session.Dir = security.ExpandHome(cfg.Session.Dir)
	}

	if cfg.Health.Addr == "" {
		cfg.Health.Addr = defaultHealthAddr
	}
	if cfg.Health.ReadTimeout == 0 {
		cfg.Health.ReadTimeout = defaultReadTimeout
	}
	if cfg.Health.WriteTimeout == 0 {
		cfg.Health.WriteTimeout = defaultWriteTimeout
	}
	return &cfg, nil
}
