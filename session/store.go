package session

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/casemgmt/portal-gateway/cache"
	"github.com/casemgmt/portal-gateway/internal/errors"
)

const keyPrefix = "session:"

// Store owns session records. Sessions are addressed only by session id; the
// id itself lives in the browser cookie and is never logged.
type Store struct {
	cache   cache.Cache
	ttl     time.Duration
	logger  zerolog.Logger
	nowTime func() time.Time
}

// StoreOption modifies a Store instance.
type StoreOption func(*Store)

// WithStoreLogger sets the store logger.
func WithStoreLogger(logger zerolog.Logger) StoreOption {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithStoreNowTime sets the now time function (primarily for testing)
func WithStoreNowTime(nowFunc func() time.Time) StoreOption {
	return func(s *Store) {
		s.nowTime = nowFunc
	}
}

// NewStore creates a session store over the given cache backend. Records
// expire from the backend after ttl, matching the cookie lifetime.
func NewStore(c cache.Cache, ttl time.Duration, options ...StoreOption) *Store {
	s := &Store{
		cache:   c,
		ttl:     ttl,
		logger:  log.Logger,
		nowTime: time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// Create builds a Session from just-authenticated credentials and writes it
// under sessionID. ExpiresAt is always derived from the provider-reported
// lifetime at creation time, never from client input.
func (s *Store) Create(ctx context.Context, sessionID string, creds Credentials) (*Session, error) {
	session := &Session{
		ID:              creds.Profile.ID,
		Email:           creds.Profile.Email,
		DisplayName:     creds.Profile.DisplayName,
		LoginHint:       creds.Profile.LoginHint,
		IsAuthenticated: creds.IsAuthenticated,
		Token:           creds.Token,
		RefreshToken:    creds.RefreshToken,
		ExpiresIn:       creds.ExpiresIn.Milliseconds(),
		ExpiresAt:       s.nowTime().Add(creds.ExpiresIn),
	}
	if err := s.Set(ctx, sessionID, session); err != nil {
		return nil, err
	}
	return session, nil
}

// Get returns the stored session, or nil (with no error) when the session id
// is empty or no record exists. A missing session is not an error condition.
func (s *Store) Get(ctx context.Context, sessionID string) (*Session, error) {
	if sessionID == "" || s.cache == nil {
		return nil, nil
	}

	raw, err := s.cache.Get(ctx, keyPrefix+sessionID)
	if errors.Is(err, errors.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "[Store.Get] cache")
	}

	var session Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, errors.Wrapf(err, "[Store.Get] decode")
	}
	return &session, nil
}

// Set writes a session under sessionID. Two concurrent refreshes for the
// same session id are not serialized: both writers hold a still-valid
// refresh token at the time they refresh, and the last write wins.
func (s *Store) Set(ctx context.Context, sessionID string, session *Session) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return errors.Wrapf(err, "[Store.Set] encode")
	}
	if err := s.cache.Set(ctx, keyPrefix+sessionID, raw, s.ttl); err != nil {
		return errors.Wrapf(err, "[Store.Set] cache")
	}
	return nil
}

// Drop removes a session. Best effort: an empty session id or a missing
// backing store is a no-op, which covers logout for users who were never
// authenticated.
func (s *Store) Drop(ctx context.Context, sessionID string) error {
	if sessionID == "" || s.cache == nil {
		return nil
	}
	return s.cache.Drop(ctx, keyPrefix+sessionID)
}
