package session

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"time"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/casemgmt/portal-gateway/internal/errors"
)

// CookieName is the session cookie. It carries only a sealed session id.
const CookieName = "userSessionCookie"

const minPasswordLength = 32

// CookieCodec seals session ids into the session cookie and opens them
// again. The cookie value is opaque to the browser; a tampered or forged
// value fails to open and is treated as no session.
type CookieCodec struct {
	aead   interface {
		Seal(dst, nonce, plaintext, additionalData []byte) []byte
		Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
	}
	secure bool
	ttl    time.Duration
}

// NewCookieCodec derives a sealing key from the configured cookie password.
func NewCookieCodec(password string, secure bool, ttl time.Duration) (*CookieCodec, error) {
	if len(password) < minPasswordLength {
		return nil, errors.NewConfigurationError(
			"SESSION_COOKIE_PASSWORD must be at least %d characters", minPasswordLength)
	}

	key := sha256.Sum256([]byte(password))
	aead, err := chacha20poly1305.NewX(key[:])
	if err != nil {
		return nil, errors.Wrapf(err, "[NewCookieCodec] cipher")
	}

	return &CookieCodec{aead: aead, secure: secure, ttl: ttl}, nil
}

// Seal encrypts a session id into a cookie value.
func (c *CookieCodec) Seal(sessionID string) (string, error) {
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return "", errors.Wrapf(err, "[CookieCodec.Seal] nonce")
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(sessionID), nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Open decrypts a cookie value back into a session id.
func (c *CookieCodec) Open(value string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return "", errors.Wrapf(err, "[CookieCodec.Open] decode")
	}
	if len(raw) < chacha20poly1305.NonceSizeX {
		return "", errors.Wrapf(errors.ErrSessionNotFound, "[CookieCodec.Open] short value")
	}
	nonce, ciphertext := raw[:chacha20poly1305.NonceSizeX], raw[chacha20poly1305.NonceSizeX:]
	sessionID, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", errors.Wrapf(err, "[CookieCodec.Open] unseal")
	}
	return string(sessionID), nil
}

// Write sets the session cookie on the response.
func (c *CookieCodec) Write(w http.ResponseWriter, sessionID string) error {
	value, err := c.Seal(sessionID)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   int(c.ttl.Seconds()),
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Clear expires the session cookie.
func (c *CookieCodec) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ReadSessionID resolves the session id from the request cookie. Missing or
// unopenable cookies yield an empty id, not an error.
func (c *CookieCodec) ReadSessionID(r *http.Request) string {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return ""
	}
	sessionID, err := c.Open(cookie.Value)
	if err != nil {
		return ""
	}
	return sessionID
}
