package hooks

// Config is the top-level configuration for hooks loaded from .docchat.hooks.yml.
type Config struct {
	Version int         `yaml:"version"`
	Hooks   HooksConfig `yaml:"hooks"`
}

// HooksConfig lists the commands run when a reply ends, by how it ended.
type HooksConfig struct {
	OnComplete []*HookConfig `yaml:"on_complete"`
	OnStop     []*HookConfig `yaml:"on_stop"`
	OnFail     []*HookConfig `yaml:"on_fail"`
}

// HookConfig defines a single hook's configuration.
type HookConfig struct {
	Command string `yaml:"command"`
	Timeout int    `yaml:"timeout"` // seconds, default 30
}

// DefaultTimeout is the default timeout for hook execution in seconds.
const DefaultTimeout = 30
