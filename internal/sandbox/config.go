package sandbox

// RuntimeType selects a backend.
type RuntimeType string

const (
	TypeNative     RuntimeType = "native"
	TypeDocker     RuntimeType = "docker"
	TypeApple      RuntimeType = "apple"
	TypeLandlock   RuntimeType = "landlock"
	TypeFirejail   RuntimeType = "firejail"
	TypeBubblewrap RuntimeType = "bubblewrap"
)

// DefaultMountAllowlistPath is read when extra mounts are configured.
const DefaultMountAllowlistPath = "~/.sandgate/mount-allowlist.json"

// DockerConfig holds docker backend settings.
type DockerConfig struct {
	Image string `yaml:"image"`
	// Binary is "docker", "podman" or an absolute path outside temp dirs.
	Binary      string   `yaml:"binary"`
	ExtraMounts []string `yaml:"extraMounts"`
	MemoryLimit string   `yaml:"memoryLimit"`
	CPULimit    string   `yaml:"cpuLimit"`
	Network     string   `yaml:"network"`
}

// AppleConfig holds Apple Container backend settings.
type AppleConfig struct {
	Image             string   `yaml:"image"`
	ExtraMounts       []string `yaml:"extraMounts"`
	AllowExperimental bool     `yaml:"allowExperimental"`
}

// RuntimeConfig is the factory input.
type RuntimeConfig struct {
	Type                  RuntimeType      `yaml:"type"`
	AllowFallbackToNative bool             `yaml:"allowFallbackToNative"`
	MountAllowlistPath    string           `yaml:"mountAllowlistPath"`
	Docker                DockerConfig     `yaml:"docker"`
	Apple                 AppleConfig      `yaml:"apple"`
	Landlock              LandlockConfig   `yaml:"landlock"`
	Firejail              FirejailConfig   `yaml:"firejail"`
	Bubblewrap            BubblewrapConfig `yaml:"bubblewrap"`
}

// DefaultRuntimeConfig selects the native backend.
func DefaultRuntimeConfig() RuntimeConfig {
	return RuntimeConfig{
		Type:               TypeNative,
		MountAllowlistPath: DefaultMountAllowlistPath,
		Docker: DockerConfig{
			Image:       DefaultDockerImage,
			MemoryLimit: DefaultDockerMemory,
			CPULimit:    DefaultDockerCPUs,
			Network:     DefaultDockerNetwork,
		},
		Landlock:   DefaultLandlockConfig(),
		Bubblewrap: DefaultBubblewrapConfig(),
	}
}

// ApplyDefaults fills unset fields from DefaultRuntimeConfig.
// Docker limits are left empty when unset so no limit flag is emitted.
func (c *RuntimeConfig) ApplyDefaults() {
	def := DefaultRuntimeConfig()
	if c.Type == "" {
		c.Type = def.Type
	}
	if c.MountAllowlistPath == "" {
		c.MountAllowlistPath = def.MountAllowlistPath
	}
	if c.Docker.Image == "" {
		c.Docker.Image = def.Docker.Image
	}
	if c.Docker.Network == "" {
		c.Docker.Network = def.Docker.Network
	}
	if len(c.Landlock.ReadDirs) == 0 && len(c.Landlock.WriteDirs) == 0 {
		c.Landlock.ReadDirs = def.Landlock.ReadDirs
		c.Landlock.WriteDirs = def.Landlock.WriteDirs
	}
	if c.Landlock.LauncherPath == "" {
		c.Landlock.LauncherPath = def.Landlock.LauncherPath
	}
	if len(c.Bubblewrap.ROBinds) == 0 {
		c.Bubblewrap.ROBinds = def.Bubblewrap.ROBinds
	}
}
