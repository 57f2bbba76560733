// Package session owns the server-side user session: the record itself, the
// store over the cache backend, the sealed cookie carrying the session id,
// the refresh coordinator, and the per-request cookie validator.
package session

import (
	"context"
	"time"
)

// Session is one authenticated user's server-side state, addressed only by
// its session id. The id equals the identity provider's subject (oid) claim.
type Session struct {
	ID              string    `json:"id"`
	Email           string    `json:"email"`
	DisplayName     string    `json:"displayName"`
	LoginHint       string    `json:"loginHint,omitempty"`
	IsAuthenticated bool      `json:"isAuthenticated"`
	Token           string    `json:"token"`
	RefreshToken    string    `json:"refreshToken"`
	ExpiresIn       int64     `json:"expiresIn"` // milliseconds, informational
	ExpiresAt       time.Time `json:"expiresAt"`
}

// Profile is the identity extracted from the provider's claims.
type Profile struct {
	ID          string
	Email       string
	DisplayName string
	LoginHint   string
}

// Credentials is the outcome of a successful login, consumed by
// Store.Create. ExpiresIn is the provider-reported access token lifetime.
type Credentials struct {
	Profile         Profile
	Token           string
	RefreshToken    string
	ExpiresIn       time.Duration
	IsAuthenticated bool
}

// RefreshResult is the provider's refresh-token grant response.
type RefreshResult struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64 // seconds
}

// RefreshFn exchanges a refresh token for fresh credentials.
type RefreshFn func(ctx context.Context, refreshToken string) (*RefreshResult, error)
