package session

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/casemgmt/portal-gateway/internal/errors"
)

// refreshClaims are the claims read from a refreshed access token.
type refreshClaims struct {
	OID               string `json:"oid"`
	PreferredUsername string `json:"preferred_username"`
	Name              string `json:"name"`
	GivenName         string `json:"given_name"`
	FamilyName        string `json:"family_name"`
	LoginHint         string `json:"login_hint"`
}

// RefreshIfExpired refreshes the session's access token when it has expired.
// It is a no-op returning nil when the session has no expiry or the expiry is
// still in the future. On a successful refresh the stored session is replaced
// under the same session id and the new session returned. On failure the
// session is dropped entirely, forcing re-login; an expired credential is
// never served.
func (s *Store) RefreshIfExpired(ctx context.Context, refresh RefreshFn, sessionID string, current *Session) *Session {
	if current == nil || current.ExpiresAt.IsZero() {
		return nil
	}
	if !current.ExpiresAt.Before(s.nowTime()) {
		return nil
	}

	s.logger.Info().Str("displayName", current.DisplayName).Msg("Token has expired, attempting to refresh")

	result, err := refresh(ctx, current.RefreshToken)
	if err != nil {
		s.logger.Debug().Err(err).Str("displayName", current.DisplayName).Msg("Token refresh failed")
		if dropErr := s.Drop(ctx, sessionID); dropErr != nil {
			s.logger.Debug().Err(dropErr).Msg("Failed to drop session after refresh failure")
		}
		return nil
	}

	refreshed, err := s.refreshedSession(result)
	if err != nil {
		s.logger.Debug().Err(err).Msg("Refreshed token could not be decoded")
		if dropErr := s.Drop(ctx, sessionID); dropErr != nil {
			s.logger.Debug().Err(dropErr).Msg("Failed to drop session after refresh failure")
		}
		return nil
	}

	if err := s.Set(ctx, sessionID, refreshed); err != nil {
		s.logger.Debug().Err(err).Msg("Failed to store refreshed session")
		return nil
	}

	s.logger.Info().Str("userId", refreshed.ID).Str("displayName", refreshed.DisplayName).Msg("User session refreshed")
	return refreshed
}

// refreshedSession derives a new session record from the refresh grant
// response. The new access token carries the identity claims; its signature
// was already checked by the provider issuing it, so it is decoded without
// verification here.
func (s *Store) refreshedSession(result *RefreshResult) (*Session, error) {
	claims := refreshClaims{}
	if err := decodeTokenClaims(result.AccessToken, &claims); err != nil {
		return nil, err
	}

	displayName := claims.Name
	if displayName == "" {
		displayName = joinNames(claims.GivenName, claims.FamilyName)
	}

	expiresIn := time.Duration(result.ExpiresIn) * time.Second
	return &Session{
		ID:              claims.OID,
		Email:           claims.PreferredUsername,
		DisplayName:     displayName,
		LoginHint:       claims.LoginHint,
		IsAuthenticated: true,
		Token:           result.AccessToken,
		RefreshToken:    result.RefreshToken,
		ExpiresIn:       expiresIn.Milliseconds(),
		ExpiresAt:       s.nowTime().Add(expiresIn),
	}, nil
}

func decodeTokenClaims(token string, out *refreshClaims) error {
	mapClaims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &mapClaims); err != nil {
		return errors.Wrapf(err, "decode access token")
	}
	readString := func(key string) string {
		value, _ := mapClaims[key].(string)
		return value
	}
	out.OID = readString("oid")
	out.PreferredUsername = readString("preferred_username")
	out.Name = readString("name")
	out.GivenName = readString("given_name")
	out.FamilyName = readString("family_name")
	out.LoginHint = readString("login_hint")
	return nil
}

func joinNames(given, family string) string {
	if given == "" {
		return family
	}
	if family == "" {
		return given
	}
	return given + " " + family
}
