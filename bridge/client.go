// Package bridge implements the Integration Bridge client: authenticated
// JSON POSTs carrying a client-credentials bearer token, with optional
// forwarding of the calling user's own token.
package bridge

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	neturl "net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/casemgmt/portal-gateway/internal/errors"
	"github.com/casemgmt/portal-gateway/tokencache"
)

const (
	findUsersPath         = "/case-management/users/find"
	defaultRequestTimeout = 10 * time.Second
)

// Validatable is implemented by response shapes that can check themselves
// after decoding.
type Validatable interface {
	Validate() error
}

// Config carries the required bridge settings. All four values must be
// non-empty; a missing value is a deployment error surfaced at construction.
type Config struct {
	BaseURL               string
	TokenURL              string
	ClientID              string
	ClientSecret          string
	TokenBufferSeconds    int
	RequestTimeoutSeconds int
}

// Client talks to the Integration Bridge.
type Client struct {
	config     Config
	httpClient *http.Client
	tokens     *tokencache.Cache
	logger     zerolog.Logger
}

// Option modifies a Client instance.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for all bridge and token calls.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets the client logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates an Integration Bridge client. It fails fast with a
// ConfigurationError when any required setting is missing.
func New(config Config, options ...Option) (*Client, error) {
	if config.BaseURL == "" || config.TokenURL == "" || config.ClientID == "" || config.ClientSecret == "" {
		return nil, errors.NewConfigurationError(
			"integration bridge requires baseUrl, tokenUrl, clientId and clientSecret to be configured")
	}

	buffer := time.Duration(config.TokenBufferSeconds) * time.Second
	if config.TokenBufferSeconds <= 0 {
		buffer = 30 * time.Second
	}
	timeout := time.Duration(config.RequestTimeoutSeconds) * time.Second
	if config.RequestTimeoutSeconds <= 0 {
		timeout = defaultRequestTimeout
	}

	c := &Client{
		config:     config,
		httpClient: cleanhttp.DefaultPooledClient(),
		logger:     log.Logger,
	}
	for _, opt := range options {
		opt(c)
	}
	// The token cache is single-flight, so one hung call would block every
	// caller behind it. Every bridge and token request must be bounded.
	if c.httpClient.Timeout == 0 {
		c.httpClient.Timeout = timeout
	}
	c.tokens = tokencache.New(c.requestAccessToken, tokencache.WithBuffer(buffer))

	return c, nil
}

// FindCaseManagementUser looks up the given email address in case management.
// An empty Data slice in the response means the user is unknown.
func (c *Client) FindCaseManagementUser(ctx context.Context, emailAddress string) (*FindUserResponse, error) {
	if emailAddress == "" {
		return nil, &errors.RequestError{Msg: "emailAddress is required to look up a case management user"}
	}

	var response FindUserResponse
	if err := c.PostJSON(ctx, findUsersPath, map[string]string{"emailAddress": emailAddress}, &response, ""); err != nil {
		return nil, err
	}
	return &response, nil
}

// PostJSON issues an authenticated POST with a JSON body. When out is
// non-nil the response body is decoded into it and validated. A non-empty
// forwardedUserToken is normalised and attached as X-Forwarded-Authorization.
func (c *Client) PostJSON(ctx context.Context, path string, body interface{}, out Validatable, forwardedUserToken string) error {
	accessToken, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}

	url, err := neturl.JoinPath(c.config.BaseURL, path)
	if err != nil {
		return &errors.RequestError{Msg: "invalid integration bridge path", Cause: err}
	}

	encoded, err := json.Marshal(body)
	if err != nil {
		return &errors.RequestError{Msg: "failed to encode integration bridge request body", Cause: err}
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(string(encoded)))
	if err != nil {
		return &errors.RequestError{Msg: "failed to build integration bridge request", Cause: err}
	}
	request.Header.Set("Accept", "application/json")
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Authorization", "Bearer "+accessToken)

	if forwarded := FormatForwardedAuthorization(forwardedUserToken); forwarded != "" {
		request.Header.Set("X-Forwarded-Authorization", forwarded)
	}

	response, err := c.safeDo(request)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	raw, payload := readPayload(response.Body)

	if response.StatusCode < 200 || response.StatusCode > 299 {
		return &errors.RequestError{
			Msg:     "integration bridge responded with " + response.Status,
			Status:  response.StatusCode,
			Payload: payload,
		}
	}

	if out == nil {
		return nil
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return &errors.RequestError{
			Msg:     "integration bridge payload validation failed for " + path,
			Payload: payload,
			Cause:   err,
		}
	}
	if err := out.Validate(); err != nil {
		return &errors.RequestError{
			Msg:     "integration bridge payload validation failed for " + path,
			Payload: payload,
			Cause:   err,
		}
	}
	return nil
}

// requestAccessToken is the token cache source: a client-credentials grant
// against the bridge token endpoint.
func (c *Client) requestAccessToken(ctx context.Context) (string, time.Duration, error) {
	c.logger.Info().Msg("Fetching access token for the integration bridge")

	form := neturl.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {c.config.ClientID},
		"client_secret": {c.config.ClientSecret},
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, &errors.RequestError{Msg: "failed to build token request", Cause: err}
	}
	request.SetBasicAuth(c.config.ClientID, c.config.ClientSecret)
	request.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	response, err := c.safeDo(request)
	if err != nil {
		return "", 0, err
	}
	defer response.Body.Close()

	raw, payload := readPayload(response.Body)

	if response.StatusCode < 200 || response.StatusCode > 299 {
		return "", 0, &errors.RequestError{
			Msg:     "failed to fetch access token: " + response.Status,
			Status:  response.StatusCode,
			Payload: payload,
		}
	}

	var token TokenResponse
	if err := json.Unmarshal(raw, &token); err != nil {
		return "", 0, &errors.RequestError{
			Msg:     "integration bridge payload validation failed for token response",
			Payload: payload,
			Cause:   err,
		}
	}
	if err := token.Validate(); err != nil {
		return "", 0, &errors.RequestError{
			Msg:     "integration bridge payload validation failed for token response",
			Payload: payload,
			Cause:   err,
		}
	}

	return token.AccessToken, time.Duration(token.ExpiresIn) * time.Second, nil
}

// safeDo wraps network-level failures (DNS, connection reset, timeout) into
// the same request-error kind as application failures, so callers can treat
// any of them as "bridge unavailable".
func (c *Client) safeDo(request *http.Request) (*http.Response, error) {
	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, &errors.RequestError{Msg: "failed to communicate with the integration bridge", Cause: err}
	}
	return response, nil
}

// readPayload reads a response body defensively: empty body yields nil,
// non-JSON yields the raw text, valid JSON yields the parsed value.
func readPayload(body io.Reader) ([]byte, interface{}) {
	raw, err := io.ReadAll(body)
	if err != nil || len(raw) == 0 {
		return nil, nil
	}

	var parsed interface{}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return raw, string(raw)
	}
	return raw, parsed
}

// FormatForwardedAuthorization normalises an access token so it is safe to
// forward downstream. Blank input yields "" and the header is omitted.
func FormatForwardedAuthorization(forwardedUserToken string) string {
	trimmed := strings.TrimSpace(forwardedUserToken)
	if trimmed == "" {
		return ""
	}
	if strings.HasPrefix(trimmed, "Bearer ") {
		return trimmed
	}
	return "Bearer " + trimmed
}
