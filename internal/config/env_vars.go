package config

import (
	"fmt"
	"os"
)

const (
	portEnvVar    = "PORT"
	appNameVar    = "APP_NAME"
	baseURLVar    = "APP_BASE_URL"
	redisURLVar   = "REDIS_URL"
	environEnvVar = "ENV"
)

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

func (EnvVars) GetPort() string {
	port := GetEnv(portEnvVar, "3000")
	if port != "" && port[0] != ':' {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "Case Portal Gateway")
}

// GetAppBaseURL returns the externally visible base URL of the portal
// (e.g. "https://portal.example.cloud"). It is used for the OIDC redirect URI
// and for validating post-logout redirect targets.
func (EnvVars) GetAppBaseURL() string {
	return GetEnv(baseURLVar, "http://localhost:3000")
}

func (EnvVars) GetEnv() string {
	env := os.Getenv(environEnvVar)
	if env == "" {
		return "DEV"
	}
	return env
}

// GetRedisURL returns the Redis connection URL for the session cache. An
// empty value selects the in-memory cache.
func (EnvVars) GetRedisURL() string {
	return GetEnv(redisURLVar, "")
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}
