package config

import (
	"strconv"
	"time"
)

type SessionConfig interface {
	GetSessionCookiePassword() string
	GetSessionCookieTTL() time.Duration
	GetSessionCookieSecure() bool
}

type Session struct{}

var _ SessionConfig = Session{}

// GetSessionCookiePassword returns the secret used to seal the session
// cookie. Must be at least 32 characters in production.
func (Session) GetSessionCookiePassword() string {
	return GetEnv("SESSION_COOKIE_PASSWORD", "")
}

func (Session) GetSessionCookieTTL() time.Duration {
	hours, err := strconv.Atoi(GetEnv("SESSION_COOKIE_TTL_HOURS", "4"))
	if err != nil || hours <= 0 {
		hours = 4
	}
	return time.Duration(hours) * time.Hour
}

func (s Session) GetSessionCookieSecure() bool {
	return GetEnv("SESSION_COOKIE_SECURE", "true") == "true"
}
