// Package oidcauth implements the federated OIDC login flow against the
// identity provider: the pre-login redirect with PKCE, the post-login
// authorization-code exchange authenticated by a client assertion, and the
// refresh-token grant.
package oidcauth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/hashicorp/go-cleanhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"github.com/casemgmt/portal-gateway/federated"
	"github.com/casemgmt/portal-gateway/internal/errors"
	"github.com/casemgmt/portal-gateway/session"
)

const (
	wellKnownSuffix     = "/.well-known/openid-configuration"
	clientAssertionType = "urn:ietf:params:oauth:client-assertion-type:jwt-bearer"

	// Bounds every discovery, code-exchange and refresh call; a hung token
	// endpoint must fail like any other provider failure.
	defaultRequestTimeout = 15 * time.Second
)

// Config carries the relying-party settings for the identity provider.
type Config struct {
	WellKnownURL string
	ClientID     string
	RedirectURL  string
	Scopes       []string
	AppBaseURL   string
}

// providerMetadata is the slice of the discovery document beyond what
// go-oidc exposes directly.
type providerMetadata struct {
	EndSessionEndpoint            string   `json:"end_session_endpoint"`
	CodeChallengeMethodsSupported []string `json:"code_challenge_methods_supported"`
}

// Result is a completed login: credentials for the session store plus the
// safe redirect target stashed at pre-login.
type Result struct {
	Credentials session.Credentials
	Redirect    string
}

// Scheme drives the PRE_LOGIN / POST_LOGIN halves of the PKCE flow.
type Scheme struct {
	oauth        oauth2.Config
	verifier     *oidc.IDTokenVerifier
	metadata     providerMetadata
	credentials  federated.CredentialSource
	transactions *TransactionStore
	httpClient   *http.Client
	supportsPKCE bool
	appBaseURL   *url.URL
	callbackPath string
	logger       zerolog.Logger
	nowTime      func() time.Time
}

// SchemeOption modifies a Scheme instance.
type SchemeOption func(*Scheme)

// WithHTTPClient sets the HTTP client used for discovery and token calls.
func WithHTTPClient(httpClient *http.Client) SchemeOption {
	return func(s *Scheme) {
		s.httpClient = httpClient
	}
}

// WithLogger sets the scheme logger.
func WithLogger(logger zerolog.Logger) SchemeOption {
	return func(s *Scheme) {
		s.logger = logger
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) SchemeOption {
	return func(s *Scheme) {
		s.nowTime = nowFunc
	}
}

// NewScheme fetches the provider's discovery document and builds the scheme.
// PKCE is used when the provider advertises S256 support; otherwise a nonce
// binds the ID token to the transaction.
func NewScheme(ctx context.Context, config Config, credentials federated.CredentialSource, transactions *TransactionStore, options ...SchemeOption) (*Scheme, error) {
	if config.WellKnownURL == "" {
		return nil, errors.NewConfigurationError("OIDC_WELL_KNOWN_CONFIGURATION_URL must be set")
	}
	if config.ClientID == "" {
		return nil, errors.NewConfigurationError("AZURE_CLIENT_ID must be set")
	}
	if config.RedirectURL == "" || config.AppBaseURL == "" {
		return nil, errors.NewConfigurationError("redirect URL and app base URL must be set")
	}
	if credentials == nil || transactions == nil {
		return nil, errors.NewConfigurationError("credential source and transaction store are required")
	}

	appBaseURL, err := url.Parse(config.AppBaseURL)
	if err != nil {
		return nil, errors.NewConfigurationError("invalid app base URL: %s", err.Error())
	}
	redirectURL, err := url.Parse(config.RedirectURL)
	if err != nil {
		return nil, errors.NewConfigurationError("invalid redirect URL: %s", err.Error())
	}

	s := &Scheme{
		credentials:  credentials,
		transactions: transactions,
		httpClient:   cleanhttp.DefaultPooledClient(),
		appBaseURL:   appBaseURL,
		callbackPath: redirectURL.Path,
		logger:       log.Logger,
		nowTime:      time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	if s.httpClient.Timeout == 0 {
		s.httpClient.Timeout = defaultRequestTimeout
	}

	issuer := strings.TrimSuffix(strings.TrimSuffix(config.WellKnownURL, wellKnownSuffix), "/")
	ctx = oidc.ClientContext(ctx, s.httpClient)
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, errors.Wrapf(err, "[NewScheme] discovery")
	}
	if err := provider.Claims(&s.metadata); err != nil {
		return nil, errors.Wrapf(err, "[NewScheme] discovery metadata")
	}

	s.supportsPKCE = slices.Contains(s.metadata.CodeChallengeMethodsSupported, "S256")
	s.oauth = oauth2.Config{
		ClientID:    config.ClientID,
		Endpoint:    provider.Endpoint(),
		RedirectURL: config.RedirectURL,
		Scopes:      config.Scopes,
	}
	s.verifier = provider.Verifier(&oidc.Config{ClientID: config.ClientID})

	return s, nil
}

// StartLogin begins PRE_LOGIN: it generates the PKCE verifier (and nonce when
// PKCE is unsupported), stashes the transaction server-side together with the
// safe referrer, and returns the authorization URL to redirect to.
func (s *Scheme) StartLogin(ctx context.Context, referrer string) (string, error) {
	verifier := oauth2.GenerateVerifier()
	tx := Transaction{
		CodeVerifier: verifier,
		Referrer:     SafeReferrer(referrer, s.appBaseURL, s.callbackPath),
	}

	var authOptions []oauth2.AuthCodeOption
	if s.supportsPKCE {
		authOptions = append(authOptions, oauth2.S256ChallengeOption(verifier))
	} else {
		nonce, err := randomNonce()
		if err != nil {
			return "", err
		}
		tx.Nonce = nonce
		authOptions = append(authOptions, oidc.Nonce(nonce))
	}

	state, err := s.transactions.Save(ctx, tx)
	if err != nil {
		return "", err
	}

	return s.oauth.AuthCodeURL(state, authOptions...), nil
}

// CompleteLogin runs POST_LOGIN: it consumes the transaction, exchanges the
// authorization code using the stashed verifier and a client assertion,
// verifies the ID token (and nonce when one was issued), and extracts the
// identity claims.
func (s *Scheme) CompleteLogin(ctx context.Context, code, state string) (*Result, error) {
	if code == "" {
		return nil, errors.Wrapf(errors.ErrLoginFailed, "authorization code missing")
	}

	tx, err := s.transactions.Consume(ctx, state)
	if err != nil {
		return nil, errors.Wrapf(err, "[CompleteLogin] transaction")
	}

	assertion, err := s.credentials.Assertion(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "[CompleteLogin] client assertion")
	}

	exchangeOptions := []oauth2.AuthCodeOption{
		oauth2.VerifierOption(tx.CodeVerifier),
		oauth2.SetAuthURLParam("client_id", assertion.ClientID),
		oauth2.SetAuthURLParam("client_assertion_type", clientAssertionType),
		oauth2.SetAuthURLParam("client_assertion", assertion.Value),
	}

	ctx = oidc.ClientContext(ctx, s.httpClient)
	token, err := s.oauth.Exchange(ctx, code, exchangeOptions...)
	if err != nil {
		return nil, errors.Wrapf(err, "[CompleteLogin] code exchange")
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, errors.ErrMissingIDToken
	}
	idToken, err := s.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, errors.Wrapf(err, "[CompleteLogin] id_token verification")
	}
	if tx.Nonce != "" && idToken.Nonce != tx.Nonce {
		return nil, errors.ErrInvalidNonce
	}

	profile, err := extractProfile(idToken)
	if err != nil {
		return nil, errors.Wrapf(err, "[CompleteLogin] claims")
	}

	s.logger.Info().Str("userId", profile.ID).Str("displayName", profile.DisplayName).Msg("User authenticated")

	return &Result{
		Credentials: session.Credentials{
			Profile:         profile,
			Token:           token.AccessToken,
			RefreshToken:    token.RefreshToken,
			ExpiresIn:       token.Expiry.Sub(s.nowTime()),
			IsAuthenticated: true,
		},
		Redirect: tx.Referrer,
	}, nil
}

// EndSessionURL builds the identity provider's logout URL with the login
// hint and a same-origin-validated post-logout redirect, both percent
// encoded. Empty when the provider advertises no end-session endpoint.
func (s *Scheme) EndSessionURL(loginHint, referrer string) string {
	if s.metadata.EndSessionEndpoint == "" {
		return ""
	}
	query := url.Values{
		"logout_hint":              {loginHint},
		"post_logout_redirect_uri": {SafePostLogoutRedirect(referrer, s.appBaseURL)},
	}
	return s.metadata.EndSessionEndpoint + "?" + query.Encode()
}

type idClaims struct {
	OID               string `json:"oid"`
	Email             string `json:"email"`
	PreferredUsername string `json:"preferred_username"`
	Name              string `json:"name"`
	GivenName         string `json:"given_name"`
	FamilyName        string `json:"family_name"`
	LoginHint         string `json:"login_hint"`
}

func extractProfile(idToken *oidc.IDToken) (session.Profile, error) {
	var claims idClaims
	if err := idToken.Claims(&claims); err != nil {
		return session.Profile{}, err
	}

	id := claims.OID
	if id == "" {
		id = idToken.Subject
	}
	email := claims.Email
	if email == "" {
		email = claims.PreferredUsername
	}
	displayName := claims.Name
	if displayName == "" {
		displayName = strings.TrimSpace(strings.Join([]string{claims.GivenName, claims.FamilyName}, " "))
	}

	return session.Profile{
		ID:          id,
		Email:       email,
		DisplayName: displayName,
		LoginHint:   claims.LoginHint,
	}, nil
}

func randomNonce() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", errors.Wrapf(err, "nonce generation")
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}
