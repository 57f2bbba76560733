// Package tokencache holds a single cached bearer token plus expiry and
// coordinates its refresh. All concurrent callers that observe an expired
// token share one upstream request; exactly one network call is issued per
// expiry event.
package tokencache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const defaultBuffer = 30 * time.Second

// Source fetches a fresh token from the issuing endpoint. It returns the
// token value and its reported lifetime.
type Source func(ctx context.Context) (accessToken string, lifetime time.Duration, err error)

// Token is a cached bearer token. Replaced wholesale on refresh, never
// partially mutated.
type Token struct {
	AccessToken string
	ExpiresAt   time.Time
}

// Cache is a get-or-refresh cache for one shared credential. Construct one
// per credential client at service start; the zero value is not usable.
type Cache struct {
	source  Source
	buffer  time.Duration
	nowTime func() time.Time

	group singleflight.Group

	mu    sync.Mutex
	token *Token
}

// Option modifies a Cache instance.
type Option func(*Cache)

// WithBuffer sets the safety margin subtracted from the reported token
// lifetime. Defaults to 30 seconds.
func WithBuffer(buffer time.Duration) Option {
	return func(c *Cache) {
		c.buffer = buffer
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(c *Cache) {
		c.nowTime = nowFunc
	}
}

// New creates a token cache around the given source.
func New(source Source, options ...Option) *Cache {
	c := &Cache{
		source:  source,
		buffer:  defaultBuffer,
		nowTime: time.Now,
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// Token returns the cached token when it is still valid, otherwise refreshes
// it. Concurrent callers observing an expired cache all await the same
// refresh and resolve to the same value. A failed refresh discards the cached
// token and propagates the error to every waiter of that attempt; the next
// call starts a fresh attempt.
func (c *Cache) Token(ctx context.Context) (string, error) {
	if token, ok := c.cached(); ok {
		return token, nil
	}

	value, err, _ := c.group.Do("token", func() (interface{}, error) {
		// A caller queued behind a completed refresh must not trigger another.
		if token, ok := c.cached(); ok {
			return token, nil
		}
		return c.refresh(ctx)
	})
	if err != nil {
		return "", err
	}
	return value.(string), nil
}

func (c *Cache) refresh(ctx context.Context) (string, error) {
	accessToken, lifetime, err := c.source(ctx)
	if err != nil {
		// Do not serve known-bad data.
		c.mu.Lock()
		c.token = nil
		c.mu.Unlock()
		return "", err
	}

	lifetime -= c.buffer
	if lifetime < 0 {
		lifetime = 0
	}

	c.mu.Lock()
	c.token = &Token{
		AccessToken: accessToken,
		ExpiresAt:   c.nowTime().Add(lifetime),
	}
	c.mu.Unlock()

	return accessToken, nil
}

func (c *Cache) cached() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == nil || !c.token.ExpiresAt.After(c.nowTime()) {
		return "", false
	}
	return c.token.AccessToken, true
}
