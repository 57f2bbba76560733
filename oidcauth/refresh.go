package oidcauth

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/casemgmt/portal-gateway/internal/errors"
	"github.com/casemgmt/portal-gateway/session"
)

// RefreshGrant exchanges a refresh token for fresh credentials, authenticating
// the service with a client assertion. It satisfies session.RefreshFn.
func (s *Scheme) RefreshGrant(ctx context.Context, refreshToken string) (*session.RefreshResult, error) {
	if refreshToken == "" {
		return nil, errors.Wrapf(errors.ErrNotAuthenticated, "no refresh token held")
	}

	assertion, err := s.credentials.Assertion(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "[RefreshGrant] client assertion")
	}

	form := url.Values{
		"grant_type":            {"refresh_token"},
		"refresh_token":         {refreshToken},
		"scope":                 {strings.Join(s.oauth.Scopes, " ")},
		"client_id":             {assertion.ClientID},
		"client_assertion_type": {clientAssertionType},
		"client_assertion":      {assertion.Value},
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, s.oauth.Endpoint.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, errors.Wrapf(err, "[RefreshGrant] build request")
	}
	request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	request.Header.Set("Accept", "application/json")

	response, err := s.httpClient.Do(request)
	if err != nil {
		return nil, &errors.RequestError{Msg: "failed to reach the identity provider token endpoint", Cause: err}
	}
	defer response.Body.Close()

	raw, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, &errors.RequestError{Msg: "failed to read token endpoint response", Cause: err}
	}

	if response.StatusCode < 200 || response.StatusCode > 299 {
		return nil, &errors.RequestError{
			Msg:     "refresh token grant rejected with " + response.Status,
			Status:  response.StatusCode,
			Payload: string(raw),
		}
	}

	var grant struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(raw, &grant); err != nil {
		return nil, &errors.RequestError{Msg: "invalid token endpoint response", Cause: err}
	}
	if grant.AccessToken == "" {
		return nil, &errors.RequestError{Msg: "token endpoint response missing access_token"}
	}

	// Providers may omit the refresh token when the old one stays valid.
	if grant.RefreshToken == "" {
		grant.RefreshToken = refreshToken
	}

	return &session.RefreshResult{
		AccessToken:  grant.AccessToken,
		RefreshToken: grant.RefreshToken,
		ExpiresIn:    grant.ExpiresIn,
	}, nil
}
