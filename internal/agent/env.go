package agent

import "strings"

// Paths inside the agent container.
const (
	ContainerWorkspaceDir = "/data/.sandgate/workspace"
	ContainerSessionsDir  = "/data/.sandgate/sessions"
	ContainerConfigPath   = "/data/.sandgate/config.json"
	ContainerHome         = "/data"
)

// EnvVar is one environment entry. Order is kept for the command line.
type EnvVar struct {
	Name  string
	Value string
}

// CollectEnv returns the variables forwarded into the container: non-blank
// provider credentials followed by the container-internal paths.
func CollectEnv(p ProvidersConfig) []EnvVar {
	var env []EnvVar
	add := func(name, value string) {
		if strings.TrimSpace(value) != "" {
			env = append(env, EnvVar{Name: name, Value: value})
		}
	}
	providers := []struct {
		prefix string
		cfg    ProviderConfig
	}{
		{"SANDGATE_PROVIDERS_ANTHROPIC", p.Anthropic},
		{"SANDGATE_PROVIDERS_OPENAI", p.OpenAI},
		{"SANDGATE_PROVIDERS_OPENROUTER", p.OpenRouter},
	}
	for _, provider := range providers {
		add(provider.prefix+"_API_KEY", provider.cfg.APIKey)
		add(provider.prefix+"_API_BASE", provider.cfg.APIBase)
	}
	env = append(env,
		EnvVar{Name: "HOME", Value: ContainerHome},
		EnvVar{Name: "SANDGATE_AGENTS_DEFAULTS_WORKSPACE", Value: ContainerWorkspaceDir},
	)
	return env
}

func envMap(env []EnvVar) map[string]string {
	m := make(map[string]string, len(env))
	for _, e := range env {
		m[e.Name] = e.Value
	}
	return m
}
