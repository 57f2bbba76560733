package oidcauth_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/casemgmt/portal-gateway/cache"
	"github.com/casemgmt/portal-gateway/federated"
	"github.com/casemgmt/portal-gateway/internal/errors"
	"github.com/casemgmt/portal-gateway/oidcauth"
)

const (
	testClientID   = "portal-client-id"
	testAppBaseURL = "http://portal.example.org"
)

type fakeCredentials struct{}

func (fakeCredentials) Assertion(ctx context.Context) (federated.Assertion, error) {
	return federated.Assertion{ClientID: testClientID, Value: "test-client-assertion"}, nil
}

// testIdP is a minimal identity provider: discovery document, JWKS, and a
// token endpoint issuing RS256-signed ID tokens.
type testIdP struct {
	issuer           string
	key              *rsa.PrivateKey
	server           *httptest.Server
	pkceSupported    bool
	idTokenNonce     string
	idTokenClaims    jwt.MapClaims
	tokenStatus      int
	omitRefreshToken bool
	hangToken        bool
	lastTokenForm    url.Values
}

func newTestIdP(t *testing.T, pkceSupported bool) *testIdP {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	idp := &testIdP{key: key, pkceSupported: pkceSupported, tokenStatus: http.StatusOK}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /.well-known/openid-configuration", idp.discoveryHandler)
	mux.HandleFunc("GET /jwks", idp.jwksHandler)
	mux.HandleFunc("POST /oauth2/token", idp.tokenHandler)

	idp.server = httptest.NewServer(mux)
	idp.issuer = idp.server.URL
	t.Cleanup(idp.server.Close)
	return idp
}

func (idp *testIdP) discoveryHandler(w http.ResponseWriter, r *http.Request) {
	document := map[string]interface{}{
		"issuer":                                idp.issuer,
		"authorization_endpoint":                idp.issuer + "/oauth2/authorize",
		"token_endpoint":                        idp.issuer + "/oauth2/token",
		"jwks_uri":                              idp.issuer + "/jwks",
		"end_session_endpoint":                  idp.issuer + "/oauth2/logout",
		"id_token_signing_alg_values_supported": []string{"RS256"},
	}
	if idp.pkceSupported {
		document["code_challenge_methods_supported"] = []string{"plain", "S256"}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(document)
}

func (idp *testIdP) jwksHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"keys": []map[string]string{{
			"kty": "RSA",
			"alg": "RS256",
			"use": "sig",
			"kid": "test-key",
			"n":   base64.RawURLEncoding.EncodeToString(idp.key.PublicKey.N.Bytes()),
			"e":   "AQAB",
		}},
	})
}

func (idp *testIdP) tokenHandler(w http.ResponseWriter, r *http.Request) {
	if idp.hangToken {
		// Drain the body so the server's background read detects the client
		// disconnect and cancels the request context.
		_, _ = io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
		return
	}

	_ = r.ParseForm()
	idp.lastTokenForm = r.PostForm

	if idp.tokenStatus != http.StatusOK {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(idp.tokenStatus)
		_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
		return
	}

	grant := map[string]interface{}{
		"access_token": "idp-access-token",
		"token_type":   "Bearer",
		"expires_in":   3600,
		"id_token":     idp.signIDToken(),
	}
	if !idp.omitRefreshToken {
		grant["refresh_token"] = "idp-refresh-token"
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(grant)
}

func (idp *testIdP) signIDToken() string {
	now := time.Now()
	claims := jwt.MapClaims{
		"iss": idp.issuer,
		"aud": testClientID,
		"sub": "subject-1",
		"iat": now.Unix(),
		"exp": now.Add(time.Hour).Unix(),
	}
	if idp.idTokenNonce != "" {
		claims["nonce"] = idp.idTokenNonce
	}
	for key, value := range idp.idTokenClaims {
		claims[key] = value
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = "test-key"
	signed, err := token.SignedString(idp.key)
	if err != nil {
		panic(err)
	}
	return signed
}

func newTestScheme(t *testing.T, idp *testIdP, options ...oidcauth.SchemeOption) *oidcauth.Scheme {
	t.Helper()
	options = append([]oidcauth.SchemeOption{oidcauth.WithLogger(zerolog.Nop())}, options...)
	scheme, err := oidcauth.NewScheme(t.Context(), oidcauth.Config{
		WellKnownURL: idp.issuer + "/.well-known/openid-configuration",
		ClientID:     testClientID,
		RedirectURL:  testAppBaseURL + "/auth/callback",
		Scopes:       []string{"openid", "profile", "offline_access"},
		AppBaseURL:   testAppBaseURL,
	}, fakeCredentials{}, oidcauth.NewTransactionStore(cache.NewMemory()), options...)
	require.NoError(t, err)
	return scheme
}

func TestNewScheme_MissingConfig(t *testing.T) {
	idp := newTestIdP(t, true)
	transactions := oidcauth.NewTransactionStore(cache.NewMemory())

	tests := []struct {
		name   string
		config oidcauth.Config
	}{
		{"missing well-known url", oidcauth.Config{ClientID: testClientID, RedirectURL: "r", AppBaseURL: "a"}},
		{"missing client id", oidcauth.Config{WellKnownURL: idp.issuer, RedirectURL: "r", AppBaseURL: "a"}},
		{"missing redirect url", oidcauth.Config{WellKnownURL: idp.issuer, ClientID: testClientID, AppBaseURL: "a"}},
		{"missing app base url", oidcauth.Config{WellKnownURL: idp.issuer, ClientID: testClientID, RedirectURL: "r"}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := oidcauth.NewScheme(t.Context(), test.config, fakeCredentials{}, transactions)
			require.True(t, errors.IsConfigurationError(err))
		})
	}
}

func TestStartLogin_WithPKCE(t *testing.T) {
	idp := newTestIdP(t, true)
	scheme := newTestScheme(t, idp)

	authURL, err := scheme.StartLogin(t.Context(), testAppBaseURL+"/cases?id=9")
	require.NoError(t, err)

	parsed, err := url.Parse(authURL)
	require.NoError(t, err)
	query := parsed.Query()
	require.Equal(t, testClientID, query.Get("client_id"))
	require.Equal(t, testAppBaseURL+"/auth/callback", query.Get("redirect_uri"))
	require.Equal(t, "S256", query.Get("code_challenge_method"))
	require.NotEmpty(t, query.Get("code_challenge"))
	require.NotEmpty(t, query.Get("state"))
	require.Empty(t, query.Get("nonce"), "nonce is the fallback when PKCE is unsupported")
}

func TestStartLogin_NonceFallback(t *testing.T) {
	idp := newTestIdP(t, false)
	scheme := newTestScheme(t, idp)

	authURL, err := scheme.StartLogin(t.Context(), "")
	require.NoError(t, err)

	query := mustParseQuery(t, authURL)
	require.NotEmpty(t, query.Get("nonce"))
	require.Empty(t, query.Get("code_challenge"))
	require.Empty(t, query.Get("code_challenge_method"))
}

func TestCompleteLogin_PKCEFlow(t *testing.T) {
	idp := newTestIdP(t, true)
	idp.idTokenClaims = jwt.MapClaims{
		"oid":                "user-1",
		"preferred_username": "jo@example.org",
		"name":               "Jo Bloggs",
		"login_hint":         "hint-value",
	}
	scheme := newTestScheme(t, idp)

	authURL, err := scheme.StartLogin(t.Context(), testAppBaseURL+"/cases?id=9")
	require.NoError(t, err)
	state := mustParseQuery(t, authURL).Get("state")

	result, err := scheme.CompleteLogin(t.Context(), "test-code", state)
	require.NoError(t, err)

	form := idp.lastTokenForm
	require.Equal(t, "authorization_code", form.Get("grant_type"))
	require.Equal(t, "test-code", form.Get("code"))
	require.NotEmpty(t, form.Get("code_verifier"))
	require.Equal(t, testClientID, form.Get("client_id"))
	require.Equal(t, "urn:ietf:params:oauth:client-assertion-type:jwt-bearer", form.Get("client_assertion_type"))
	require.Equal(t, "test-client-assertion", form.Get("client_assertion"))

	require.Equal(t, "user-1", result.Credentials.Profile.ID)
	require.Equal(t, "jo@example.org", result.Credentials.Profile.Email)
	require.Equal(t, "Jo Bloggs", result.Credentials.Profile.DisplayName)
	require.Equal(t, "hint-value", result.Credentials.Profile.LoginHint)
	require.True(t, result.Credentials.IsAuthenticated)
	require.Equal(t, "idp-access-token", result.Credentials.Token)
	require.Equal(t, "idp-refresh-token", result.Credentials.RefreshToken)
	require.InDelta(t, time.Hour.Seconds(), result.Credentials.ExpiresIn.Seconds(), 30)
	require.Equal(t, "/cases?id=9", result.Redirect)
}

func TestCompleteLogin_NonceFlow(t *testing.T) {
	idp := newTestIdP(t, false)
	idp.idTokenClaims = jwt.MapClaims{"oid": "user-1"}
	scheme := newTestScheme(t, idp)

	authURL, err := scheme.StartLogin(t.Context(), "")
	require.NoError(t, err)
	query := mustParseQuery(t, authURL)
	idp.idTokenNonce = query.Get("nonce")

	result, err := scheme.CompleteLogin(t.Context(), "test-code", query.Get("state"))
	require.NoError(t, err)
	require.Equal(t, "user-1", result.Credentials.Profile.ID)
	require.Equal(t, "/", result.Redirect)
}

func TestCompleteLogin_WrongNonce(t *testing.T) {
	idp := newTestIdP(t, false)
	scheme := newTestScheme(t, idp)

	authURL, err := scheme.StartLogin(t.Context(), "")
	require.NoError(t, err)
	idp.idTokenNonce = "a-different-nonce"

	_, err = scheme.CompleteLogin(t.Context(), "test-code", mustParseQuery(t, authURL).Get("state"))
	require.ErrorIs(t, err, errors.ErrInvalidNonce)
}

func TestCompleteLogin_MissingCode(t *testing.T) {
	idp := newTestIdP(t, true)
	scheme := newTestScheme(t, idp)

	_, err := scheme.CompleteLogin(t.Context(), "", "some-state")
	require.ErrorIs(t, err, errors.ErrLoginFailed)
}

func TestCompleteLogin_UnknownState(t *testing.T) {
	idp := newTestIdP(t, true)
	scheme := newTestScheme(t, idp)

	_, err := scheme.CompleteLogin(t.Context(), "test-code", "forged-state")
	require.ErrorIs(t, err, errors.ErrTransactionNotFound)
}

func TestCompleteLogin_StateIsSingleUse(t *testing.T) {
	idp := newTestIdP(t, true)
	idp.idTokenClaims = jwt.MapClaims{"oid": "user-1"}
	scheme := newTestScheme(t, idp)

	authURL, err := scheme.StartLogin(t.Context(), "")
	require.NoError(t, err)
	state := mustParseQuery(t, authURL).Get("state")

	_, err = scheme.CompleteLogin(t.Context(), "test-code", state)
	require.NoError(t, err)

	_, err = scheme.CompleteLogin(t.Context(), "test-code", state)
	require.ErrorIs(t, err, errors.ErrTransactionNotFound)
}

func TestCompleteLogin_ProfileFallbacks(t *testing.T) {
	idp := newTestIdP(t, true)
	idp.idTokenClaims = jwt.MapClaims{
		"given_name":  "Jo",
		"family_name": "Bloggs",
	}
	scheme := newTestScheme(t, idp)

	authURL, err := scheme.StartLogin(t.Context(), "")
	require.NoError(t, err)

	result, err := scheme.CompleteLogin(t.Context(), "test-code", mustParseQuery(t, authURL).Get("state"))
	require.NoError(t, err)
	require.Equal(t, "subject-1", result.Credentials.Profile.ID, "oid falls back to the subject claim")
	require.Equal(t, "Jo Bloggs", result.Credentials.Profile.DisplayName)
}

func TestEndSessionURL(t *testing.T) {
	idp := newTestIdP(t, true)
	scheme := newTestScheme(t, idp)

	logoutURL := scheme.EndSessionURL("hint value", testAppBaseURL+"/cases")
	parsed, err := url.Parse(logoutURL)
	require.NoError(t, err)
	require.Equal(t, idp.issuer+"/oauth2/logout", parsed.Scheme+"://"+parsed.Host+parsed.Path)

	query := parsed.Query()
	require.Equal(t, "hint value", query.Get("logout_hint"))
	require.Equal(t, testAppBaseURL+"/cases", query.Get("post_logout_redirect_uri"))

	t.Run("cross-origin referrer falls back to the base url", func(t *testing.T) {
		logoutURL := scheme.EndSessionURL("", "https://evil.example/x")
		query := mustParseQuery(t, logoutURL)
		require.Equal(t, testAppBaseURL, query.Get("post_logout_redirect_uri"))
	})
}

func mustParseQuery(t *testing.T, rawURL string) url.Values {
	t.Helper()
	parsed, err := url.Parse(rawURL)
	require.NoError(t, err)
	return parsed.Query()
}
