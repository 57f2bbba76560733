package config

type Config interface {
	EnvConfig
	OidcConfig
	BridgeConfig
	SessionConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetAppBaseURL() string
	GetEnv() string
	GetRedisURL() string
}

type mainConfig struct {
	EnvVars
	Oidc
	Bridge
	Session
}

func New() Config {
	return mainConfig{}
}
