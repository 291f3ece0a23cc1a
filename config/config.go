// Package config provides configuration loading and management for Pressdesk.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete Pressdesk configuration
type Config struct {
	Provider ProviderConfig `yaml:"provider"`
	Storage  StorageConfig  `yaml:"storage"`
	Server   ServerConfig   `yaml:"server"`
	Tasks    TasksConfig    `yaml:"tasks"`
}

// ProviderConfig configures the completion provider
type ProviderConfig struct {
	// Name is the provider identifier (default: "openai")
	Name string `yaml:"name"`
	// BaseURL is the provider API base URL (default: https://api.openai.com/v1)
	BaseURL string `yaml:"base_url"`
	// Model is the model sent with every completion request
	Model string `yaml:"model"`
	// Timeout is the maximum time to wait for provider responses
	Timeout time.Duration `yaml:"timeout"`
}

// StorageConfig configures the persisted state backend
type StorageConfig struct {
	// Backend selects the KV implementation: "nats" or "memory"
	Backend string `yaml:"backend"`
	// NATSURL is the NATS server URL when backend is "nats"
	NATSURL string `yaml:"nats_url"`
}

// ServerConfig configures the HTTP command surface
type ServerConfig struct {
	// Listen is the address the API server binds to
	Listen string `yaml:"listen"`
}

// TasksConfig configures task collection overrides
type TasksConfig struct {
	// OverrideFile is an optional JSON file whose contents replace the
	// stored task collection (empty = disabled)
	OverrideFile string `yaml:"override_file"`
	// Watch enables re-reading the override file when it changes
	Watch bool `yaml:"watch"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Provider: ProviderConfig{
			Name:    "openai",
			BaseURL: "https://api.openai.com/v1",
			Model:   "gpt-5",
			Timeout: 3 * time.Minute,
		},
		Storage: StorageConfig{
			Backend: "memory",
			NATSURL: "nats://127.0.0.1:4222",
		},
		Server: ServerConfig{
			Listen: "127.0.0.1:8787",
		},
		Tasks: TasksConfig{
			OverrideFile: "",
			Watch:        false,
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Provider.Name == "" {
		return fmt.Errorf("provider.name is required")
	}
	if c.Provider.Model == "" {
		return fmt.Errorf("provider.model is required")
	}
	switch c.Storage.Backend {
	case "nats", "memory":
	default:
		return fmt.Errorf("storage.backend must be \"nats\" or \"memory\", got %q", c.Storage.Backend)
	}
	if c.Storage.Backend == "nats" && c.Storage.NATSURL == "" {
		return fmt.Errorf("storage.nats_url is required when storage.backend is \"nats\"")
	}
	if c.Server.Listen == "" {
		return fmt.Errorf("server.listen is required")
	}
	if c.Tasks.Watch && c.Tasks.OverrideFile == "" {
		return fmt.Errorf("tasks.watch requires tasks.override_file")
	}
	return nil
}

// Merge overlays non-zero fields from other onto c
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}
	if other.Provider.Name != "" {
		c.Provider.Name = other.Provider.Name
	}
	if other.Provider.BaseURL != "" {
		c.Provider.BaseURL = other.Provider.BaseURL
	}
	if other.Provider.Model != "" {
		c.Provider.Model = other.Provider.Model
	}
	if other.Provider.Timeout != 0 {
		c.Provider.Timeout = other.Provider.Timeout
	}
	if other.Storage.Backend != "" {
		c.Storage.Backend = other.Storage.Backend
	}
	if other.Storage.NATSURL != "" {
		c.Storage.NATSURL = other.Storage.NATSURL
	}
	if other.Server.Listen != "" {
		c.Server.Listen = other.Server.Listen
	}
	if other.Tasks.OverrideFile != "" {
		c.Tasks.OverrideFile = other.Tasks.OverrideFile
	}
	if other.Tasks.Watch {
		c.Tasks.Watch = true
	}
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	config := &Config{}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
