// Package config loads and persists recast configuration from
// .recast/config.json under the workspace root.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config represents the complete recast configuration
type Config struct {
	Version int    `json:"version" mapstructure:"version"`
	Root    string `json:"root" mapstructure:"root"`

	Backup  BackupConfig  `json:"backup" mapstructure:"backup"`
	Apply   ApplyConfig   `json:"apply" mapstructure:"apply"`
	Rename  RenameConfig  `json:"rename" mapstructure:"rename"`
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// LanguagesFile points to an optional TOML file overriding per-language
	// scope rules (hoisting). Relative paths resolve against Root.
	LanguagesFile string `json:"languagesFile" mapstructure:"languagesFile"`
}

// BackupConfig contains backup store configuration
type BackupConfig struct {
	// Dir is where sessions and snapshots live, relative to Root.
	Dir string `json:"dir" mapstructure:"dir"`
	// Compress enables zstd compression of snapshot payloads.
	Compress bool `json:"compress" mapstructure:"compress"`
}

// ApplyConfig contains apply engine configuration
type ApplyConfig struct {
	// Workers bounds the parallelism of the read-only phases
	// (matching, scope building, classification).
	Workers int `json:"workers" mapstructure:"workers"`
	// MaxFileSizeBytes skips files larger than this during matching.
	MaxFileSizeBytes int `json:"maxFileSizeBytes" mapstructure:"maxFileSizeBytes"`
}

// RenameConfig contains rename coordinator configuration
type RenameConfig struct {
	// IncludeUnresolved includes references that resolve to no visible
	// declaration as rename candidates, with a warning.
	IncludeUnresolved bool `json:"includeUnresolved" mapstructure:"includeUnresolved"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Format string `json:"format" mapstructure:"format"`
	Level  string `json:"level" mapstructure:"level"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Version: 1,
		Root:    ".",
		Backup: BackupConfig{
			Dir:      ".recast/backups",
			Compress: true,
		},
		Apply: ApplyConfig{
			Workers:          4,
			MaxFileSizeBytes: 1000000,
		},
		Rename: RenameConfig{
			IncludeUnresolved: false,
		},
		Logging: LoggingConfig{
			Format: "human",
			Level:  "info",
		},
		LanguagesFile: ".recast/languages.toml",
	}
}

// Load loads configuration from <root>/.recast/config.json, falling back to
// defaults when no config file exists.
func Load(root string) (*Config, error) {
	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("version", defaults.Version)
	v.SetDefault("root", defaults.Root)
	v.SetDefault("backup.dir", defaults.Backup.Dir)
	v.SetDefault("backup.compress", defaults.Backup.Compress)
	v.SetDefault("apply.workers", defaults.Apply.Workers)
	v.SetDefault("apply.maxFileSizeBytes", defaults.Apply.MaxFileSizeBytes)
	v.SetDefault("rename.includeUnresolved", defaults.Rename.IncludeUnresolved)
	v.SetDefault("logging.format", defaults.Logging.Format)
	v.SetDefault("logging.level", defaults.Logging.Level)
	v.SetDefault("languagesFile", defaults.LanguagesFile)

	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(filepath.Join(root, ".recast"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			cfg := DefaultConfig()
			cfg.Root = root
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if cfg.Root == "" || cfg.Root == "." {
		cfg.Root = root
	}

	return &cfg, nil
}

// Save writes the configuration to <root>/.recast/config.json
func (c *Config) Save(root string) error {
	dir := filepath.Join(root, ".recast")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(dir, "config.json"), data, 0644)
}

// BackupDir returns the absolute backup directory.
func (c *Config) BackupDir() string {
	if filepath.IsAbs(c.Backup.Dir) {
		return c.Backup.Dir
	}
	return filepath.Join(c.Root, c.Backup.Dir)
}

// LanguagesPath returns the absolute path of the language override file.
func (c *Config) LanguagesPath() string {
	if filepath.IsAbs(c.LanguagesFile) {
		return c.LanguagesFile
	}
	return filepath.Join(c.Root, c.LanguagesFile)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Version != 1 {
		return &ConfigError{Field: "version", Message: "unsupported config version"}
	}
	if c.Apply.Workers < 1 {
		return &ConfigError{Field: "apply.workers", Message: "must be at least 1"}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}
