package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the fabula.yaml project configuration.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Model     ModelConfig     `yaml:"model"`
	Sync      SyncConfig      `yaml:"sync"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type RetrievalConfig struct {
	RecentEntries        int            `yaml:"recent_entries"`
	MaxTier3Entries      int            `yaml:"max_tier3_entries"`
	MaxWordsPerEntry     int            `yaml:"max_words_per_entry"`
	EnableModelSelection bool           `yaml:"enable_model_selection"`
	DecayWindows         map[string]int `yaml:"decay_windows"`
}

type ModelConfig struct {
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	APIKeyEnv   string  `yaml:"api_key_env"`
}

type SyncConfig struct {
	Port          int    `yaml:"port"`
	DiscoveryPort int    `yaml:"discovery_port"`
	DeviceName    string `yaml:"device_name"`
}

var entryTypes = []string{"character", "location", "item", "faction", "concept", "event"}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Retrieval.RecentEntries == 0 {
		cfg.Retrieval.RecentEntries = 5
	}
	// Clamped rather than rejected: these knobs historically accepted
	// free numeric input.
	if cfg.Retrieval.MaxWordsPerEntry < 0 {
		cfg.Retrieval.MaxWordsPerEntry = 0
	}
	if cfg.Retrieval.MaxWordsPerEntry > 500 {
		cfg.Retrieval.MaxWordsPerEntry = 500
	}
	if cfg.Model.BaseURL == "" {
		cfg.Model.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model.APIKeyEnv == "" {
		cfg.Model.APIKeyEnv = "FABULA_API_KEY"
	}
	if cfg.Model.MaxTokens == 0 {
		cfg.Model.MaxTokens = 1024
	}
	if cfg.Sync.Port == 0 {
		cfg.Sync.Port = 55555
	}
	if cfg.Sync.DiscoveryPort == 0 {
		cfg.Sync.DiscoveryPort = 55556
	}
}

func validate(cfg *Config) error {
	switch cfg.Database.Driver {
	case "sqlite", "postgres":
	case "":
		return fmt.Errorf("database driver is required")
	default:
		return fmt.Errorf("unsupported database driver: %s", cfg.Database.Driver)
	}
	if strings.TrimSpace(cfg.Database.DSN) == "" {
		return fmt.Errorf("database dsn is required")
	}

	if cfg.Retrieval.RecentEntries < 0 {
		return fmt.Errorf("recent_entries must not be negative")
	}
	if cfg.Retrieval.MaxTier3Entries < 0 {
		return fmt.Errorf("max_tier3_entries must not be negative")
	}
	for name, window := range cfg.Retrieval.DecayWindows {
		if !validEntryType(name) {
			return fmt.Errorf("unknown entry type in decay_windows: %s", name)
		}
		if window < 0 {
			return fmt.Errorf("decay window for %s must not be negative", name)
		}
	}

	if cfg.Retrieval.EnableModelSelection {
		if strings.TrimSpace(cfg.Model.Model) == "" {
			return fmt.Errorf("model name is required when model selection is enabled")
		}
	}
	if cfg.Model.Temperature < 0 || cfg.Model.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2")
	}

	if cfg.Sync.Port < 1 || cfg.Sync.Port > 65535 {
		return fmt.Errorf("sync port out of range: %d", cfg.Sync.Port)
	}
	if cfg.Sync.DiscoveryPort < 1 || cfg.Sync.DiscoveryPort > 65535 {
		return fmt.Errorf("sync discovery port out of range: %d", cfg.Sync.DiscoveryPort)
	}

	return nil
}

func validEntryType(name string) bool {
	for _, t := range entryTypes {
		if name == t {
			return true
		}
	}
	return false
}
