// Package config loads topdeps settings from .topdeps/config.yaml, the
// environment (TOPDEPS_*) and an optional .env file.
package config

import (
	"errors"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Dir is the per-repository directory holding config and the database.
const Dir = ".topdeps"

// Config holds every tunable setting.
type Config struct {
	Database       string   `mapstructure:"database" yaml:"database"`
	Languages      []string `mapstructure:"languages" yaml:"languages,omitempty"`
	IdentifierKind string   `mapstructure:"identifier_kind" yaml:"identifier_kind"`
	MaxFileSize    int64    `mapstructure:"max_file_size" yaml:"max_file_size"`
	Workers        int      `mapstructure:"workers" yaml:"workers"`
	CacheSize      int      `mapstructure:"cache_size" yaml:"cache_size"`
	LogLevel       string   `mapstructure:"log_level" yaml:"log_level"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Database:       filepath.Join(Dir, "index.db"),
		IdentifierKind: "identifier",
		MaxFileSize:    1_000_000,
		Workers:        0,
		CacheSize:      256,
		LogLevel:       "warn",
	}
}

// Load reads <repoRoot>/.topdeps/config.yaml if present. A .env file in
// repoRoot is loaded into the environment first; existing variables win.
func Load(repoRoot string) (*Config, error) {
	_ = godotenv.Load(filepath.Join(repoRoot, ".env"))

	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(filepath.Join(repoRoot, Dir))
	return read(v)
}

// LoadFile reads an explicit config file. Its format follows the extension.
func LoadFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	return read(v)
}

func newViper() *viper.Viper {
	def := Default()
	v := viper.New()
	v.SetDefault("database", def.Database)
	v.SetDefault("languages", def.Languages)
	v.SetDefault("identifier_kind", def.IdentifierKind)
	v.SetDefault("max_file_size", def.MaxFileSize)
	v.SetDefault("workers", def.Workers)
	v.SetDefault("cache_size", def.CacheSize)
	v.SetDefault("log_level", def.LogLevel)

	v.SetEnvPrefix("TOPDEPS")
	v.AutomaticEnv()
	return v
}

func read(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	switch {
	case c.IdentifierKind == "":
		return &Error{Field: "identifier_kind", Message: "must not be empty"}
	case c.MaxFileSize < 0:
		return &Error{Field: "max_file_size", Message: "must not be negative"}
	case c.Workers < 0:
		return &Error{Field: "workers", Message: "must not be negative"}
	case c.CacheSize < 0:
		return &Error{Field: "cache_size", Message: "must not be negative"}
	}
	return nil
}

// Error is a configuration validation error.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}
