package federated

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentity"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/casemgmt/portal-gateway/internal/errors"
	"github.com/casemgmt/portal-gateway/tokencache"
)

// CognitoAPI is the slice of the Cognito Identity client the provider uses.
// Satisfied by [*cognitoidentity.Client] and by fakes in tests.
type CognitoAPI interface {
	GetOpenIdTokenForDeveloperIdentity(ctx context.Context,
		params *cognitoidentity.GetOpenIdTokenForDeveloperIdentityInput,
		optFns ...func(*cognitoidentity.Options)) (*cognitoidentity.GetOpenIdTokenForDeveloperIdentityOutput, error)
}

// CognitoConfig carries the identity-pool settings. IdentityPoolID is
// security-relevant and must be present; its absence is a startup error.
type CognitoConfig struct {
	IdentityPoolID string
	ProviderName   string
	LoginValue     string
	ClientID       string
}

// Cognito exchanges a developer identity for an OpenID token via a Cognito
// identity pool. Tokens are cached and refreshed with the same single-flight
// discipline as the bridge credentials.
type Cognito struct {
	api     CognitoAPI
	config  CognitoConfig
	tokens  *tokencache.Cache
	logger  zerolog.Logger
	nowTime func() time.Time
}

var _ CredentialSource = (*Cognito)(nil)

// CognitoOption modifies a Cognito instance.
type CognitoOption func(*Cognito)

// WithCognitoLogger sets the provider logger.
func WithCognitoLogger(logger zerolog.Logger) CognitoOption {
	return func(c *Cognito) {
		c.logger = logger
	}
}

// WithCognitoNowTime sets the now time function (primarily for testing)
func WithCognitoNowTime(nowFunc func() time.Time) CognitoOption {
	return func(c *Cognito) {
		c.nowTime = nowFunc
	}
}

// NewCognito creates the real federated credential provider.
func NewCognito(config CognitoConfig, api CognitoAPI, options ...CognitoOption) (*Cognito, error) {
	if config.IdentityPoolID == "" {
		return nil, errors.NewConfigurationError(
			"AZURE_IDENTITY_POOL_ID must be set when federated credential mocking is disabled")
	}
	if config.ProviderName == "" {
		return nil, errors.NewConfigurationError("federated credential provider name is required")
	}
	if api == nil {
		return nil, errors.NewConfigurationError("cognito identity client is required")
	}

	c := &Cognito{
		api:     api,
		config:  config,
		logger:  log.Logger,
		nowTime: time.Now,
	}
	for _, opt := range options {
		opt(c)
	}
	// No extra buffer here: the token's own exp claim governs its lifetime.
	c.tokens = tokencache.New(c.requestToken, tokencache.WithBuffer(0), tokencache.WithNowTime(c.nowTime))

	return c, nil
}

// GetToken returns a valid federated token, refreshing it when expired.
func (c *Cognito) GetToken(ctx context.Context) (string, error) {
	return c.tokens.Token(ctx)
}

// Assertion implements CredentialSource.
func (c *Cognito) Assertion(ctx context.Context) (Assertion, error) {
	token, err := c.GetToken(ctx)
	if err != nil {
		return Assertion{}, err
	}
	return Assertion{ClientID: c.config.ClientID, Value: token}, nil
}

func (c *Cognito) requestToken(ctx context.Context) (string, time.Duration, error) {
	c.logger.Info().Msg("Refreshing federated credential token")

	result, err := c.api.GetOpenIdTokenForDeveloperIdentity(ctx, &cognitoidentity.GetOpenIdTokenForDeveloperIdentityInput{
		IdentityPoolId: aws.String(c.config.IdentityPoolID),
		Logins:         map[string]string{c.config.ProviderName: c.config.LoginValue},
	})
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to get federated credential token")
		return "", 0, errors.Wrapf(err, "[Cognito.requestToken] GetOpenIdTokenForDeveloperIdentity")
	}

	token := aws.ToString(result.Token)
	if token == "" {
		return "", 0, &errors.RequestError{Msg: "identity pool returned an empty token"}
	}

	c.logger.Info().Str("identityId", aws.ToString(result.IdentityId)).Msg("Got federated credential token")

	lifetime := tokenLifetime(token, func() int64 { return c.nowTime().Unix() })
	return token, time.Duration(lifetime) * time.Second, nil
}
