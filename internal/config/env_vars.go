package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

const (
	portEnvVar      = "PORT"
	appNameVar      = "APP_NAME"
	envVar          = "ENV"
	authAPIURLVar   = "AUTH_API_URL"
	logLevelVar     = "LOG_LEVEL"
	logFormatVar    = "LOG_FORMAT"
	defaultAuthAPI  = "http://localhost:8081/api"
	defaultAppName  = "SADSA Portal"
	defaultLogLevel = "info"
)

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

func (EnvVars) GetPort() string {
	port := GetEnv(portEnvVar, "8080")
	if !strings.HasPrefix(port, ":") {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, defaultAppName)
}

func (EnvVars) GetEnv() string {
	return strings.ToUpper(GetEnv(envVar, "DEV"))
}

// GetAuthAPIURL returns the base URL of the authentication API.
// In DEV an explicitly empty value selects the in-process stub.
func (e EnvVars) GetAuthAPIURL() string {
	value, set := os.LookupEnv(authAPIURLVar)
	if set && strings.TrimSpace(value) == "" && e.GetEnv() == "DEV" {
		return ""
	}
	return GetEnv(authAPIURLVar, defaultAuthAPI)
}

func (EnvVars) GetLogLevel() string {
	return GetEnv(logLevelVar, defaultLogLevel)
}

func (EnvVars) GetLogFormat() string {
	return GetEnv(logFormatVar, "console")
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}

// GetEnvInt reads an integer variable, falling back to defaultValue when unset or invalid
func GetEnvInt(envVar string, defaultValue int) int {
	value, err := strconv.Atoi(strings.TrimSpace(os.Getenv(envVar)))
	if err != nil {
		return defaultValue
	}
	return value
}
