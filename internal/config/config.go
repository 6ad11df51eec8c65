// Package config defines the tellergate configuration schema and loader.
// The file lives at ~/.tellergate/config.yaml; every field has a documented
// default so a missing file is a working local setup.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// ServerConfig configures the protocol server.
type ServerConfig struct {
	Addr        string        `yaml:"addr"`        // HTTP + WebSocket listen address
	WSQueueSize int           `yaml:"wsQueueSize"` // per-connection outbound queue bound
	RateLimit   float64       `yaml:"rateLimit"`   // messages/sec per connection
	RateBurst   int           `yaml:"rateBurst"`
	IdleTimeout time.Duration `yaml:"idleTimeout"` // HTTP server idle timeout
}

// BankConfig configures the domain-service adapter.
type BankConfig struct {
	BaseURL string        `yaml:"baseUrl"` // empty = in-memory local mode
	Timeout time.Duration `yaml:"timeout"`
}

// SessionConfig configures session storage and expiry.
type SessionConfig struct {
	Dir           string        `yaml:"dir"`
	IdleTimeout   time.Duration `yaml:"idleTimeout"`
	SweepInterval time.Duration `yaml:"sweepInterval"`
}

// ExecutorConfig configures deadlines and the transient-retry policy.
type ExecutorConfig struct {
	CallDeadline time.Duration `yaml:"callDeadline"`
	ReadRetries  int           `yaml:"readRetries"`
	RetryBackoff time.Duration `yaml:"retryBackoff"`
	BatchWorkers int           `yaml:"batchWorkers"`
}

// TelegramConfig configures the Telegram chat collaborator.
type TelegramConfig struct {
	Enabled   bool     `yaml:"enabled"`
	Token     string   `yaml:"token"`
	AllowFrom []string `yaml:"allowFrom"`
}

// SlackConfig configures the Slack chat collaborator (Socket Mode).
type SlackConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BotToken string `yaml:"botToken"`
	AppToken string `yaml:"appToken"`
}

// ChannelsConfig groups the chat collaborators.
type ChannelsConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
	Slack    SlackConfig    `yaml:"slack"`
}

// Config is the root configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Bank     BankConfig     `yaml:"bank"`
	Sessions SessionConfig  `yaml:"sessions"`
	Executor ExecutorConfig `yaml:"executor"`
	Channels ChannelsConfig `yaml:"channels"`
}

// DataDir returns the tellergate data directory: ~/.tellergate.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".tellergate"
	}
	return filepath.Join(home, ".tellergate")
}

// ConfigPath returns the default configuration file path.
func ConfigPath() string {
	return filepath.Join(DataDir(), "config.yaml")
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Addr:        ":8480",
			WSQueueSize: 64,
			RateLimit:   10,
			RateBurst:   20,
			IdleTimeout: 2 * time.Minute,
		},
		Bank: BankConfig{
			Timeout: 30 * time.Second,
		},
		Sessions: SessionConfig{
			Dir:           filepath.Join(DataDir(), "sessions"),
			IdleTimeout:   30 * time.Minute,
			SweepInterval: time.Minute,
		},
		Executor: ExecutorConfig{
			CallDeadline: 15 * time.Second,
			ReadRetries:  2,
			RetryBackoff: 200 * time.Millisecond,
			BatchWorkers: 4,
		},
	}
}

// Load reads and parses the config file at path. If path is empty,
// ConfigPath() is used. A missing file yields the defaults; a malformed
// file warns and falls back to the defaults rather than refusing to start.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := DefaultConfig()
			return &cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		fmt.Printf("Warning: failed to parse config %s: %v\n", path, err)
		fmt.Println("Using default configuration.")
		cfg = DefaultConfig()
	}

	return &cfg, nil
}

// Save writes cfg to path as YAML. If path is empty, ConfigPath() is used.
func Save(cfg *Config, path string) error {
	if path == "" {
		path = ConfigPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}
