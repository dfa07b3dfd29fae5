// Package config implements TOML configuration loading, validation, and
// platform-specific path resolution for doclocker. Values resolve through a
// four-layer chain: defaults -> config file -> environment -> CLI flags.
package config

// Config is the top-level configuration structure parsed from a TOML file.
type Config struct {
	DataDir         string `toml:"data_dir"`
	DBPath          string `toml:"db_path"`
	CredentialsFile string `toml:"credentials_file"`
	PageSize        int    `toml:"page_size"`
	MaxDepth        int    `toml:"max_depth"`
	LogLevel        string `toml:"log_level"`
	LogFormat       string `toml:"log_format"`
	MetricsAddr     string `toml:"metrics_addr"`
	ScheduleWeekday string `toml:"schedule_weekday"`
	ScheduleTime    string `toml:"schedule_time"`
	Roots           []Root `toml:"roots"`

	// CredentialsJSON is the inline service account key taken from the
	// environment. It never comes from the file.
	CredentialsJSON string `toml:"-"`
}

// Root is one configured top-level Drive folder. The order of Config.Roots
// is the crawl order, which decides which occurrence of a duplicated id wins.
type Root struct {
	Key   string `toml:"key"`
	ID    string `toml:"id"`
	Label string `toml:"label"`
}

// DisplayName returns the label, falling back to the key.
func (r Root) DisplayName() string {
	if r.Label != "" {
		return r.Label
	}

	return r.Key
}

// RootByID returns the configured root with the given folder id.
func (c *Config) RootByID(id string) (Root, bool) {
	for _, r := range c.Roots {
		if r.ID == id {
			return r, true
		}
	}

	return Root{}, false
}

// RootByKey returns the configured root with the given key.
func (c *Config) RootByKey(key string) (Root, bool) {
	for _, r := range c.Roots {
		if r.Key == key {
			return r, true
		}
	}

	return Root{}, false
}

// CLIOverrides holds values from CLI flags. Empty strings mean "not given".
type CLIOverrides struct {
	ConfigPath string
	DataDir    string
	DBPath     string
}
