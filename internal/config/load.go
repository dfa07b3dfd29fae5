package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Load reads and parses a TOML config file, validates it, and returns the
// resulting Config. Unknown keys are fatal, with "did you mean?" suggestions.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := checkUnknownKeys(&md); err != nil {
		return nil, err
	}

	applyDefaultRoots(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault reads a TOML config file if it exists, otherwise returns
// a Config populated with all default values.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		return defaultWithRoots(), nil
	}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return defaultWithRoots(), nil
	}

	return Load(path)
}

// Resolve loads configuration and applies the override chain:
// defaults -> config file -> environment variables -> CLI flags.
func Resolve(env EnvOverrides, cli CLIOverrides) (*Config, error) {
	cfgPath := DefaultConfigPath()
	if env.ConfigPath != "" {
		cfgPath = env.ConfigPath
	}

	if cli.ConfigPath != "" {
		cfgPath = cli.ConfigPath
	}

	cfg, err := LoadOrDefault(cfgPath)
	if err != nil {
		return nil, err
	}

	if env.DataDir != "" {
		cfg.DataDir = env.DataDir
	}

	if env.DBPath != "" {
		cfg.DBPath = env.DBPath
	}

	cfg.CredentialsJSON = env.CredentialsJSON

	if cli.DataDir != "" {
		cfg.DataDir = cli.DataDir
	}

	if cli.DBPath != "" {
		cfg.DBPath = cli.DBPath
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func defaultWithRoots() *Config {
	cfg := DefaultConfig()
	applyDefaultRoots(cfg)

	return cfg
}

func applyDefaultRoots(cfg *Config) {
	if len(cfg.Roots) == 0 {
		cfg.Roots = DefaultRoots()
	}
}
