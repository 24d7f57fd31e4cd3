package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Digital-Shane/episode-tidy/internal/plan"
	"github.com/Digital-Shane/episode-tidy/internal/tvdb"
)

// Config holds caller-supplied settings: the deletion blacklist, the naming
// template, provider credentials, and engine tuning.
type Config struct {
	// Extensions deleted on sight, with or without a leading dot.
	BlacklistExtensions []string `json:"blacklist_extensions"`
	// EpisodeTemplate formats target names from {show}, {season}, {episode},
	// {episode_title} and {tags}.
	EpisodeTemplate string `json:"episode_template"`
	// PreserveTags whitelists bracketed release tags carried into the target
	// name via {tags}.
	PreserveTags []string `json:"preserve_tags"`

	// TVDB credentials.
	TVDBAPIKey   string `json:"tvdb_api_key"`
	TVDBUserKey  string `json:"tvdb_user_key"`
	TVDBUsername string `json:"tvdb_username"`

	// Engine tuning.
	WorkerCount    int     `json:"worker_count"`
	RequestsPerSec float64 `json:"requests_per_sec"`

	// Operation logging.
	EnableLogging    bool `json:"enable_logging"`
	LogRetentionDays int  `json:"log_retention_days"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		BlacklistExtensions: []string{"nfo", "txt", "exe", "sfv"},
		EpisodeTemplate:     plan.DefaultTemplate,
		PreserveTags:        []string{},
		WorkerCount:         3,
		RequestsPerSec:      4,
		EnableLogging:       true,
		LogRetentionDays:    30,
	}
}

// ConfigPath returns the path to the config file.
func ConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".episode-tidy", "config.json"), nil
}

// Load reads the configuration from disk, filling missing fields with
// defaults. A missing file is not an error; defaults are returned.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	defaults := DefaultConfig()
	if cfg.BlacklistExtensions == nil {
		cfg.BlacklistExtensions = defaults.BlacklistExtensions
	}
	if cfg.EpisodeTemplate == "" {
		cfg.EpisodeTemplate = defaults.EpisodeTemplate
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = defaults.WorkerCount
	}
	if cfg.RequestsPerSec <= 0 {
		cfg.RequestsPerSec = defaults.RequestsPerSec
	}
	if cfg.LogRetentionDays == 0 {
		cfg.LogRetentionDays = defaults.LogRetentionDays
	}

	return &cfg, nil
}

// Save writes the configuration to disk.
func (cfg *Config) Save() error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Credentials returns the TVDB login keys from the config.
func (cfg *Config) Credentials() tvdb.Credentials {
	return tvdb.Credentials{
		APIKey:   cfg.TVDBAPIKey,
		UserKey:  cfg.TVDBUserKey,
		Username: cfg.TVDBUsername,
	}
}

// HasCredentials reports whether enough credential material is present to
// attempt a login.
func (cfg *Config) HasCredentials() bool {
	return cfg.TVDBAPIKey != ""
}
