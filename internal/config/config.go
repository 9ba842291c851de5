package config

import (
	"github.com/joho/godotenv"
)

type Config interface {
	EnvConfig
	CorsConfig
	SessionConfig
	StorageConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetAuthAPIURL() string
	GetLogLevel() string
	GetLogFormat() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type mainConfig struct {
	EnvVars
	Cors
	Session
	Storage
}

// New loads .env and .env.local (when present) into the environment and returns
// a Config that reads from it. Variables already set in the environment win.
func New() Config {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")
	return mainConfig{}
}
