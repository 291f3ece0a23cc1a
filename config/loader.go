package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

const (
	// ProjectConfigFile is the name of the project-level config file
	ProjectConfigFile = "pressdesk.yaml"
	// UserConfigDir is the directory for user-level config
	UserConfigDir = ".config/pressdesk"
	// UserConfigFile is the name of the user-level config file
	UserConfigFile = "config.yaml"
)

// Loader handles configuration loading with layered precedence
type Loader struct {
	logger *slog.Logger
}

// NewLoader creates a new configuration loader
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger}
}

// Load loads configuration with layered precedence:
// 1. Default config
// 2. User config (~/.config/pressdesk/config.yaml)
// 3. Project config (pressdesk.yaml in the working directory)
// 4. Environment variables
func (l *Loader) Load() (*Config, error) {
	// Start with defaults
	config := DefaultConfig()

	// Load user config
	userConfigPath := l.userConfigPath()
	if userConfig, err := LoadFromFile(userConfigPath); err == nil {
		l.logger.Debug("Loaded user config", slog.String("path", userConfigPath))
		config.Merge(userConfig)
	} else if !os.IsNotExist(err) {
		l.logger.Warn("Failed to load user config", slog.String("path", userConfigPath), slog.String("error", err.Error()))
	}

	// Load project config
	if projectConfig, err := LoadFromFile(ProjectConfigFile); err == nil {
		l.logger.Debug("Loaded project config", slog.String("path", ProjectConfigFile))
		config.Merge(projectConfig)
	} else if !os.IsNotExist(err) {
		l.logger.Warn("Failed to load project config", slog.String("path", ProjectConfigFile), slog.String("error", err.Error()))
	}

	// Environment overrides
	applyEnv(config)

	// Validate final config
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (l *Loader) userConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, UserConfigDir, UserConfigFile)
}

// applyEnv overlays PRESSDESK_* environment variables onto config.
func applyEnv(config *Config) {
	if v := os.Getenv("PRESSDESK_PROVIDER_BASE_URL"); v != "" {
		config.Provider.BaseURL = v
	}
	if v := os.Getenv("PRESSDESK_PROVIDER_MODEL"); v != "" {
		config.Provider.Model = v
	}
	if v := os.Getenv("PRESSDESK_PROVIDER_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.Provider.Timeout = d
		}
	}
	if v := os.Getenv("PRESSDESK_STORAGE_BACKEND"); v != "" {
		config.Storage.Backend = v
	}
	if v := os.Getenv("PRESSDESK_NATS_URL"); v != "" {
		config.Storage.NATSURL = v
	}
	if v := os.Getenv("PRESSDESK_LISTEN"); v != "" {
		config.Server.Listen = v
	}
	if v := os.Getenv("PRESSDESK_TASKS_FILE"); v != "" {
		config.Tasks.OverrideFile = v
	}
}
