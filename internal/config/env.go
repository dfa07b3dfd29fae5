package config

import "os"

// Environment variable names for overrides.
const (
	EnvConfig             = "DOCLOCKER_CONFIG"
	EnvDataDir            = "DOCLOCKER_DATA_DIR"
	EnvDBPath             = "DOCLOCKER_DB_PATH"
	EnvServiceAccountJSON = "DOCLOCKER_SERVICE_ACCOUNT_JSON" //nolint:gosec // G101: variable name, not a credential
)

// EnvOverrides holds values derived from environment variables.
type EnvOverrides struct {
	ConfigPath      string
	DataDir         string
	DBPath          string
	CredentialsJSON string
}

// ReadEnvOverrides reads environment variables and returns any overrides found.
func ReadEnvOverrides() EnvOverrides {
	return EnvOverrides{
		ConfigPath:      os.Getenv(EnvConfig),
		DataDir:         os.Getenv(EnvDataDir),
		DBPath:          os.Getenv(EnvDBPath),
		CredentialsJSON: os.Getenv(EnvServiceAccountJSON),
	}
}
