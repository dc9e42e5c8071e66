// Package config resolves the environment inputs the client consumes:
// the target host, an optional static token, the credential directory,
// and the login timeout.
package config

import "time"

type Config interface {
	GetHost() string
	GetToken() string
	GetConfigDir() string
	GetLoginTimeout() time.Duration
}

type mainConfig struct {
	EnvVars
}

func New() Config {
	loadDotEnv()
	return mainConfig{}
}
