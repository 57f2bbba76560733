package session

import (
	"context"
	"net/http"
)

// Verdict is the outcome of validating the session cookie on one request.
type Verdict struct {
	IsValid     bool
	SessionID   string
	Credentials *Session
}

// CookieValidator is the per-request gate: it resolves the session id from
// the cookie, loads the session, triggers refresh-if-expired, and emits the
// verdict the auth middleware acts on.
type CookieValidator struct {
	codec   *CookieCodec
	store   *Store
	refresh RefreshFn
}

// NewCookieValidator wires the validator's dependencies explicitly; nothing
// is attached to the request.
func NewCookieValidator(codec *CookieCodec, store *Store, refresh RefreshFn) *CookieValidator {
	return &CookieValidator{codec: codec, store: store, refresh: refresh}
}

// Validate checks the request's session cookie. A missing session or an
// unauthenticated record is invalid. When the access token has expired the
// refresh coordinator runs; the verdict carries the refreshed session when a
// refresh occurred, else the existing one. A failed refresh drops the stored
// session, so the following request finds none.
func (v *CookieValidator) Validate(ctx context.Context, r *http.Request) Verdict {
	sessionID := v.codec.ReadSessionID(r)
	if sessionID == "" {
		return Verdict{}
	}

	current, err := v.store.Get(ctx, sessionID)
	if err != nil || current == nil || !current.IsAuthenticated {
		return Verdict{}
	}

	refreshed := v.store.RefreshIfExpired(ctx, v.refresh, sessionID, current)
	if refreshed != nil {
		current = refreshed
	}

	return Verdict{IsValid: true, SessionID: sessionID, Credentials: current}
}
