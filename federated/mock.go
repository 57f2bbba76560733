package federated

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/casemgmt/portal-gateway/internal/errors"
)

// Mock signs its own assertions with a local secret. Selected at composition
// time for local development and tests, where no identity pool exists.
type Mock struct {
	clientID string
	secret   []byte
	lifetime time.Duration
	nowTime  func() time.Time
}

var _ CredentialSource = (*Mock)(nil)

// MockOption modifies a Mock instance.
type MockOption func(*Mock)

// WithMockNowTime sets the now time function (primarily for testing)
func WithMockNowTime(nowFunc func() time.Time) MockOption {
	return func(m *Mock) {
		m.nowTime = nowFunc
	}
}

// NewMock creates a mock credential source signing HS256 assertions.
func NewMock(clientID, secret string, options ...MockOption) (*Mock, error) {
	if clientID == "" || secret == "" {
		return nil, errors.NewConfigurationError("mock federated credentials require a client id and secret")
	}
	m := &Mock{
		clientID: clientID,
		secret:   []byte(secret),
		lifetime: time.Hour,
		nowTime:  time.Now,
	}
	for _, opt := range options {
		opt(m)
	}
	return m, nil
}

// GetToken returns a freshly signed mock token.
func (m *Mock) GetToken(_ context.Context) (string, error) {
	now := m.nowTime()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss": "mock-federated-credentials",
		"sub": m.clientID,
		"iat": now.Unix(),
		"exp": now.Add(m.lifetime).Unix(),
	})
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", errors.Wrapf(err, "[Mock.GetToken] signing")
	}
	return signed, nil
}

// Assertion implements CredentialSource.
func (m *Mock) Assertion(ctx context.Context) (Assertion, error) {
	token, err := m.GetToken(ctx)
	if err != nil {
		return Assertion{}, err
	}
	return Assertion{ClientID: m.clientID, Value: token}, nil
}
