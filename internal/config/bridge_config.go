package config

import "strconv"

type BridgeConfig interface {
	GetBridgeBaseURL() string
	GetBridgeTokenURL() string
	GetBridgeClientID() string
	GetBridgeClientSecret() string
	GetBridgeTokenBufferSeconds() int
	GetBridgeRequestTimeoutSeconds() int
}

type Bridge struct{}

var _ BridgeConfig = Bridge{}

func (Bridge) GetBridgeBaseURL() string {
	return GetEnv("INTEGRATION_BRIDGE_BASE_URL", "")
}

func (Bridge) GetBridgeTokenURL() string {
	return GetEnv("INTEGRATION_BRIDGE_TOKEN_URL", "")
}

func (Bridge) GetBridgeClientID() string {
	return GetEnv("INTEGRATION_BRIDGE_CLIENT_ID", "")
}

func (Bridge) GetBridgeClientSecret() string {
	return GetEnv("INTEGRATION_BRIDGE_CLIENT_SECRET", "")
}

// GetBridgeTokenBufferSeconds returns the safety margin subtracted from the
// reported token lifetime before it is considered expired.
func (Bridge) GetBridgeTokenBufferSeconds() int {
	buffer, err := strconv.Atoi(GetEnv("INTEGRATION_BRIDGE_TOKEN_BUFFER_SECONDS", "30"))
	if err != nil || buffer < 0 {
		return 30
	}
	return buffer
}

// GetBridgeRequestTimeoutSeconds bounds every bridge and token HTTP call.
func (Bridge) GetBridgeRequestTimeoutSeconds() int {
	timeout, err := strconv.Atoi(GetEnv("INTEGRATION_BRIDGE_REQUEST_TIMEOUT_SECONDS", "10"))
	if err != nil || timeout <= 0 {
		return 10
	}
	return timeout
}
