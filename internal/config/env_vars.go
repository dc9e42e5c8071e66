package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
)

const (
	hostEnvVar         = "QI_HOST"
	tokenEnvVar        = "QI_TOKEN"
	configDirEnvVar    = "QI_CONFIG_DIR"
	loginTimeoutEnvVar = "QI_LOGIN_TIMEOUT"

	// DefaultHost is the production environment.
	DefaultHost = "https://api.quantum-inspire.com"

	defaultLoginTimeout = 10 * time.Minute
)

type EnvVars struct{}

var _ Config = mainConfig{}

func (EnvVars) GetHost() string {
	return GetEnv(hostEnvVar, DefaultHost)
}

// GetToken returns the static token override that bypasses interactive
// login, or empty when unset.
func (EnvVars) GetToken() string {
	return GetEnv(tokenEnvVar, "")
}

func (EnvVars) GetConfigDir() string {
	return GetEnv(configDirEnvVar, "")
}

func (EnvVars) GetLoginTimeout() time.Duration {
	raw := GetEnv(loginTimeoutEnvVar, "")
	if raw == "" {
		return defaultLoginTimeout
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return defaultLoginTimeout
	}
	return d
}

func GetEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return defaultValue
}

// loadDotEnv pulls a local .env into the process environment when one
// exists; a missing file is fine.
func loadDotEnv() {
	_ = godotenv.Load()
}
