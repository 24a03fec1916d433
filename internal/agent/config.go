// Package agent runs each inbound chat message through a short-lived
// container that hosts the agent, exchanging one request and one response
// over stdio.
package agent

import (
	"time"

	appErr "sandgate/pkg/errors"
)

// Backend selects the container engine.
type Backend string

const (
	BackendAuto   Backend = "auto"
	BackendDocker Backend = "docker"
	BackendApple  Backend = "apple"
)

// ContainerAgentConfig configures the container agent proxy.
type ContainerAgentConfig struct {
	Backend      Backend       `yaml:"backend"`
	Image        string        `yaml:"image"`
	DockerBinary string        `yaml:"dockerBinary"`
	MemoryLimit  string        `yaml:"memoryLimit"`
	CPULimit     string        `yaml:"cpuLimit"`
	Timeout      time.Duration `yaml:"timeout"`
	Network      string        `yaml:"network"`
	ExtraMounts  []string      `yaml:"extraMounts"`
	// MountAllowlistPath, when set, additionally requires extra mounts to
	// sit under an allowlisted root.
	MountAllowlistPath string `yaml:"mountAllowlistPath"`
	MaxConcurrent      int    `yaml:"maxConcurrent"`
	AllowExperimental  bool   `yaml:"allowExperimental"`
	// DataDir is the host directory holding workspace/, sessions/ and
	// config.json. Defaults to ~/.sandgate.
	DataDir string `yaml:"dataDir"`
}

// DefaultContainerAgentConfig returns the stock proxy settings.
func DefaultContainerAgentConfig() ContainerAgentConfig {
	return ContainerAgentConfig{
		Backend:       BackendAuto,
		Image:         "sandgate:latest",
		MemoryLimit:   "1g",
		CPULimit:      "2.0",
		Timeout:       300 * time.Second,
		Network:       "none",
		MaxConcurrent: 5,
		DataDir:       "~/.sandgate",
	}
}

// ApplyDefaults fills zero values. Empty limits stay empty: they are
// optional and omitted from the docker command line.
func (c *ContainerAgentConfig) ApplyDefaults() {
	d := DefaultContainerAgentConfig()
	if c.Backend == "" {
		c.Backend = d.Backend
	}
	if c.Image == "" {
		c.Image = d.Image
	}
	if c.Timeout == 0 {
		c.Timeout = d.Timeout
	}
	if c.Network == "" {
		c.Network = d.Network
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = d.MaxConcurrent
	}
	if c.DataDir == "" {
		c.DataDir = d.DataDir
	}
}

func (c ContainerAgentConfig) Validate() error {
	switch c.Backend {
	case BackendAuto, BackendDocker, BackendApple:
	default:
		return appErr.InvalidParam("containerAgent.backend", "must be auto, docker or apple")
	}
	if c.Timeout < 0 {
		return appErr.InvalidParam("containerAgent.timeout", "must not be negative")
	}
	return nil
}

// ProviderConfig holds credentials for one LLM provider.
type ProviderConfig struct {
	APIKey  string `yaml:"apiKey" json:"api_key,omitempty"`
	APIBase string `yaml:"apiBase" json:"api_base,omitempty"`
}

// ProvidersConfig lists the providers whose credentials are forwarded.
type ProvidersConfig struct {
	Anthropic  ProviderConfig `yaml:"anthropic"`
	OpenAI     ProviderConfig `yaml:"openai"`
	OpenRouter ProviderConfig `yaml:"openrouter"`
}

// AgentDefaults is the agent configuration sent with every request.
type AgentDefaults struct {
	Workspace         string  `yaml:"workspace" json:"workspace"`
	Model             string  `yaml:"model" json:"model"`
	MaxTokens         int     `yaml:"maxTokens" json:"max_tokens"`
	Temperature       float64 `yaml:"temperature" json:"temperature"`
	MaxToolIterations int     `yaml:"maxToolIterations" json:"max_tool_iterations"`
}

func DefaultAgentDefaults() AgentDefaults {
	return AgentDefaults{
		Workspace:         "~/.sandgate/workspace",
		Model:             "claude-sonnet-4-5-20250929",
		MaxTokens:         8192,
		Temperature:       0.7,
		MaxToolIterations: 20,
	}
}
