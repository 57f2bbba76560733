package config

import "strings"

type OidcConfig interface {
	GetOidcWellKnownURL() string
	GetOidcClientID() string
	GetOidcScopes() []string
	GetIdentityPoolID() string
	GetFederatedProviderName() string
	GetFederatedLoginValue() string
	GetFederatedMockingEnabled() bool
}

type Oidc struct{}

var _ OidcConfig = Oidc{}

// GetOidcWellKnownURL returns the identity provider's discovery document URL.
func (Oidc) GetOidcWellKnownURL() string {
	return GetEnv("OIDC_WELL_KNOWN_CONFIGURATION_URL", "")
}

func (Oidc) GetOidcClientID() string {
	return GetEnv("AZURE_CLIENT_ID", "")
}

func (Oidc) GetOidcScopes() []string {
	scope := GetEnv("OIDC_SCOPE", "")
	if scope == "" {
		return nil
	}
	return strings.Fields(scope)
}

// GetIdentityPoolID returns the identity pool used to obtain the service's
// own federated credential. Required unless federated mocking is enabled.
func (Oidc) GetIdentityPoolID() string {
	return GetEnv("AZURE_IDENTITY_POOL_ID", "")
}

func (Oidc) GetFederatedProviderName() string {
	return GetEnv("AZURE_FEDERATED_PROVIDER_NAME", "")
}

func (Oidc) GetFederatedLoginValue() string {
	return GetEnv("AZURE_FEDERATED_LOGIN", "case-portal-gateway")
}

func (Oidc) GetFederatedMockingEnabled() bool {
	return GetEnv("AZURE_FEDERATED_CREDENTIALS_MOCKING", "false") == "true"
}
