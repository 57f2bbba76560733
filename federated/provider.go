// Package federated obtains tokens representing the running service's own
// identity. They are presented as client assertions when the gateway
// exchanges authorization codes or refresh tokens with the identity provider,
// so the service never holds a static shared secret.
package federated

import (
	"context"

	"github.com/golang-jwt/jwt/v5"
)

// Assertion is a client assertion ready to be attached to a token-exchange
// request.
type Assertion struct {
	ClientID string
	Value    string
}

// CredentialSource produces client assertions. Implemented by Cognito for
// real deployments and by Mock for local/test composition; selection happens
// once at service start.
type CredentialSource interface {
	Assertion(ctx context.Context) (Assertion, error)
}

// tokenLifetime extracts the remaining validity of a JWT from its exp claim
// without verifying the signature; the identity pool is trusted to have
// issued it. Tokens without a readable exp claim are treated as already
// expired.
func tokenLifetime(token string, now func() int64) int64 {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return 0
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return 0
	}
	remaining := exp.Unix() - now()
	if remaining < 0 {
		return 0
	}
	return remaining
}
