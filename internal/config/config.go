// Package config provides centralized configuration management using Viper.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/braindrive/docchat/internal/braindrive"
	"github.com/braindrive/docchat/internal/logger"
	"github.com/braindrive/docchat/internal/scroll"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	appName    = "docchat"
	envPrefix  = "DOCCHAT"
	configFile = "docchat.yml"

	DefaultBackendURL       = "http://localhost:8005"
	DefaultConversationType = "chat-with-documents"
)

// ScrollSettings tunes transcript auto-follow. Distances are in terminal lines.
type ScrollSettings struct {
	AnchorOffset                int           `mapstructure:"anchor_offset" yaml:"anchor_offset"`
	MinVisibleLastMessageHeight int           `mapstructure:"min_visible_last_message_height" yaml:"min_visible_last_message_height"`
	NearBottomEpsilon           int           `mapstructure:"near_bottom_epsilon" yaml:"near_bottom_epsilon"`
	StrictBottomEpsilon         int           `mapstructure:"strict_bottom_epsilon" yaml:"strict_bottom_epsilon"`
	UserIntentGrace             time.Duration `mapstructure:"user_intent_grace" yaml:"user_intent_grace"`
	DebounceDelay               time.Duration `mapstructure:"debounce_delay" yaml:"debounce_delay"`
}

// BreakerSettings tunes the backend circuit breaker.
type BreakerSettings struct {
	MaxFailures uint32        `mapstructure:"max_failures" yaml:"max_failures"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Interval    time.Duration `mapstructure:"interval" yaml:"interval"`
}

// Config holds all configuration values for docchat.
type Config struct {
	BackendURL       string `mapstructure:"backend_url" yaml:"backend_url"`
	APIToken         string `mapstructure:"api_token" yaml:"api_token,omitempty"`
	UserID           string `mapstructure:"user_id" yaml:"user_id,omitempty"`
	Model            string `mapstructure:"model" yaml:"model"`
	Persona          string `mapstructure:"persona" yaml:"persona,omitempty"`
	CollectionID     string `mapstructure:"collection_id" yaml:"collection_id,omitempty"`
	ConversationType string `mapstructure:"conversation_type" yaml:"conversation_type"`
	UseStreaming     bool   `mapstructure:"use_streaming" yaml:"use_streaming"`
	DataDir          string `mapstructure:"data_dir" yaml:"data_dir"`
	LogLevel         string `mapstructure:"log_level" yaml:"log_level"`
	LogFile          string `mapstructure:"log_file" yaml:"log_file"`

	// ProgressInterval spaces stream_progress events on the bus.
	ProgressInterval time.Duration `mapstructure:"progress_interval" yaml:"progress_interval"`

	Scroll  ScrollSettings  `mapstructure:"scroll" yaml:"scroll"`
	Breaker BreakerSettings `mapstructure:"breaker" yaml:"breaker"`
}

// envKeys are bound explicitly so nested keys and bools parse from the environment.
var envKeys = []string{
	"backend_url",
	"api_token",
	"user_id",
	"model",
	"persona",
	"collection_id",
	"conversation_type",
	"use_streaming",
	"data_dir",
	"log_level",
	"log_file",
	"progress_interval",
	"scroll.anchor_offset",
	"scroll.min_visible_last_message_height",
	"scroll.near_bottom_epsilon",
	"scroll.strict_bottom_epsilon",
	"scroll.user_intent_grace",
	"scroll.debounce_delay",
	"breaker.max_failures",
	"breaker.timeout",
	"breaker.interval",
}

// Load loads configuration with full precedence:
// CLI flags > ENV vars > project config > XDG global config > defaults
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigName(appName)

	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range envKeys {
		env := envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("binding %s env: %w", key, err)
		}
	}

	globalPath := GlobalPath()
	if fileExists(globalPath) {
		v.SetConfigFile(globalPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading global config: %w", err)
		}
	}

	projectPath := ProjectPath()
	if fileExists(projectPath) {
		v.SetConfigFile(projectPath)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("merging project config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("backend_url", d.BackendURL)
	v.SetDefault("api_token", "")
	v.SetDefault("user_id", "")
	v.SetDefault("model", "")
	v.SetDefault("persona", "")
	v.SetDefault("collection_id", "")
	v.SetDefault("conversation_type", d.ConversationType)
	v.SetDefault("use_streaming", d.UseStreaming)
	v.SetDefault("data_dir", d.DataDir)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_file", "")
	v.SetDefault("progress_interval", d.ProgressInterval)

	v.SetDefault("scroll.anchor_offset", d.Scroll.AnchorOffset)
	v.SetDefault("scroll.min_visible_last_message_height", d.Scroll.MinVisibleLastMessageHeight)
	v.SetDefault("scroll.near_bottom_epsilon", d.Scroll.NearBottomEpsilon)
	v.SetDefault("scroll.strict_bottom_epsilon", d.Scroll.StrictBottomEpsilon)
	v.SetDefault("scroll.user_intent_grace", d.Scroll.UserIntentGrace)
	v.SetDefault("scroll.debounce_delay", d.Scroll.DebounceDelay)

	v.SetDefault("breaker.max_failures", d.Breaker.MaxFailures)
	v.SetDefault("breaker.timeout", d.Breaker.Timeout)
	v.SetDefault("breaker.interval", d.Breaker.Interval)
}

// Default returns the built-in configuration.
func Default() *Config {
	sc := scroll.TerminalConfig()
	return &Config{
		BackendURL:       DefaultBackendURL,
		ConversationType: DefaultConversationType,
		UseStreaming:     true,
		DataDir:          DefaultDataDir(),
		LogLevel:         "info",
		ProgressInterval: 250 * time.Millisecond,
		Scroll: ScrollSettings{
			AnchorOffset:                sc.AnchorOffset,
			MinVisibleLastMessageHeight: sc.MinVisibleLastMessageHeight,
			NearBottomEpsilon:           sc.NearBottomEpsilon,
			StrictBottomEpsilon:         sc.StrictBottomEpsilon,
			UserIntentGrace:             sc.UserIntentGrace,
			DebounceDelay:               sc.DebounceDelay,
		},
		Breaker: BreakerSettings{
			MaxFailures: 5,
			Timeout:     30 * time.Second,
			Interval:    60 * time.Second,
		},
	}
}

// Validate checks the values a command needs before talking to the backend.
func (c *Config) Validate() error {
	var errs []error

	if c.BackendURL == "" {
		errs = append(errs, errors.New("backend_url is required"))
	} else if u, err := url.Parse(c.BackendURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("backend_url %q must be an http(s) URL", c.BackendURL))
	}
	if c.ConversationType == "" {
		errs = append(errs, errors.New("conversation_type is required"))
	}
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}

	s := c.Scroll
	if s.AnchorOffset < 0 || s.MinVisibleLastMessageHeight < 0 || s.NearBottomEpsilon < 0 || s.StrictBottomEpsilon < 0 {
		errs = append(errs, errors.New("scroll distances must not be negative"))
	}
	if s.UserIntentGrace < 0 || s.DebounceDelay < 0 {
		errs = append(errs, errors.New("scroll durations must not be negative"))
	}
	if c.ProgressInterval <= 0 {
		errs = append(errs, errors.New("progress_interval must be positive"))
	}
	if c.Breaker.Timeout < 0 || c.Breaker.Interval < 0 {
		errs = append(errs, errors.New("breaker durations must not be negative"))
	}

	return errors.Join(errs...)
}

// ScrollConfig returns the scroll controller configuration.
func (c *Config) ScrollConfig() scroll.Config {
	return scroll.Config{
		AnchorOffset:                c.Scroll.AnchorOffset,
		MinVisibleLastMessageHeight: c.Scroll.MinVisibleLastMessageHeight,
		NearBottomEpsilon:           c.Scroll.NearBottomEpsilon,
		StrictBottomEpsilon:         c.Scroll.StrictBottomEpsilon,
		UserIntentGrace:             c.Scroll.UserIntentGrace,
		DebounceDelay:               c.Scroll.DebounceDelay,
	}
}

// ClientOptions returns the backend client options.
func (c *Config) ClientOptions() braindrive.Options {
	return braindrive.Options{
		BaseURL: c.BackendURL,
		Token:   c.APIToken,
		UserID:  c.UserID,
		Breaker: braindrive.BreakerConfig{
			MaxFailures: c.Breaker.MaxFailures,
			Timeout:     c.Breaker.Timeout,
			Interval:    c.Breaker.Interval,
		},
	}
}

// Exists returns true if any config file exists (global or project).
func Exists() bool {
	return fileExists(GlobalPath()) || fileExists(ProjectPath())
}

// GlobalPath returns the XDG global config path.
// Returns ~/.config/docchat/docchat.yml or $XDG_CONFIG_HOME/docchat/docchat.yml.
func GlobalPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appName, configFile)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", appName, configFile)
}

// ProjectPath returns the project-local config path.
func ProjectPath() string {
	return configFile
}

// DefaultDataDir returns $XDG_DATA_HOME/docchat or ~/.local/share/docchat.
func DefaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, appName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "." + appName
	}
	return filepath.Join(home, ".local", "share", appName)
}

// WriteGlobal writes the config to the XDG global location.
func WriteGlobal(cfg *Config) error {
	path := GlobalPath()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	return write(path, cfg)
}

// WriteProject writes the config to the project-local location.
func WriteProject(cfg *Config) error {
	return write(ProjectPath(), cfg)
}

func write(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	// The file may hold an API token.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
