package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// Platform identifiers.
const (
	platformLinux  = "linux"
	platformDarwin = "darwin"
)

// Application directory name used across all platforms.
const appName = "doclocker"

// Config file name.
const configFileName = "config.toml"

// DefaultConfigDir returns the platform-specific directory for config files.
// On Linux, respects XDG_CONFIG_HOME (defaults to ~/.config/doclocker).
// On macOS, uses ~/Library/Application Support/doclocker.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	switch runtime.GOOS {
	case platformLinux:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, appName)
		}

		return filepath.Join(home, ".config", appName)
	case platformDarwin:
		return filepath.Join(home, "Library", "Application Support", appName)
	default:
		return filepath.Join(home, ".config", appName)
	}
}

// DefaultDataDir returns the platform-specific directory for the mirror
// database, the run lock, and the daemon PID file.
// On Linux, respects XDG_DATA_HOME (defaults to ~/.local/share/doclocker).
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	switch runtime.GOOS {
	case platformLinux:
		if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
			return filepath.Join(xdg, appName)
		}

		return filepath.Join(home, ".local", "share", appName)
	case platformDarwin:
		return filepath.Join(home, "Library", "Application Support", appName)
	default:
		return filepath.Join(home, ".local", "share", appName)
	}
}

// DefaultConfigPath returns the full path to the default config file.
func DefaultConfigPath() string {
	dir := DefaultConfigDir()
	if dir == "" {
		return ""
	}

	return filepath.Join(dir, configFileName)
}

// DatabasePath returns db_path, or <data_dir>/doclocker.db when unset.
func (c *Config) DatabasePath() string {
	if c.DBPath != "" {
		return c.DBPath
	}

	return filepath.Join(c.DataDir, dbFileName)
}

// LockPath returns the path of the process-wide sync run lock.
func (c *Config) LockPath() string {
	return filepath.Join(c.DataDir, lockFileName)
}

// PIDPath returns the path of the serve daemon's PID file.
func (c *Config) PIDPath() string {
	return filepath.Join(c.DataDir, pidFileName)
}

// CredentialsPath returns credentials_file, resolved against data_dir when
// relative. Empty when no file is configured.
func (c *Config) CredentialsPath() string {
	if c.CredentialsFile == "" || filepath.IsAbs(c.CredentialsFile) {
		return c.CredentialsFile
	}

	return filepath.Join(c.DataDir, c.CredentialsFile)
}
