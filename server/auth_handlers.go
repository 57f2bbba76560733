package server

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"message":"success"}`))
	}
}

// LoginHandler begins the pre-login flow: it stashes the PKCE transaction and
// referrer server-side and redirects the browser to the identity provider.
// Any failure building the redirect yields 401, never a leaked error page.
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authURL, err := s.authenticator.StartLogin(r.Context(), r.Referer())
		if err != nil {
			log.Error().Err(err).Msg("Failed to start login")
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		http.Redirect(w, r, authURL, http.StatusFound)
	}
}

// CallbackHandler completes the login: exchanges the authorization code,
// verifies the user is known to case management, creates the session, sets
// the cookie, and redirects to the stashed referrer.
func (s *Server) CallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		query := r.URL.Query()
		result, err := s.authenticator.CompleteLogin(ctx, query.Get("code"), query.Get("state"))
		if err != nil {
			log.Warn().Err(err).Msg("Login failed")
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		if !s.ensureCaseManagementUserExists(ctx, w, result.Credentials.Profile.Email) {
			return
		}

		sessionID := uuid.New().String()

		log.Info().Msg("Creating user session")
		if _, err := s.sessions.Create(ctx, sessionID, result.Credentials); err != nil {
			log.Error().Err(err).Msg("Failed to create user session")
			http.Error(w, "Unable to verify your access at this time", http.StatusInternalServerError)
			return
		}
		if err := s.cookies.Write(w, sessionID); err != nil {
			log.Error().Err(err).Msg("Failed to set session cookie")
			http.Error(w, "Unable to verify your access at this time", http.StatusInternalServerError)
			return
		}

		redirect := result.Redirect
		if redirect == "" {
			redirect = "/"
		}

		log.Info().Str("redirect", redirect).Msg("Login complete, redirecting user")
		metaRefreshRedirect(w, redirect)
	}
}

// ensureCaseManagementUserExists gates login on the user existing in case
// management. Unknown users are not authorised; an unreachable bridge means
// access cannot be verified at all. Writes the error response and returns
// false when the login must not proceed.
func (s *Server) ensureCaseManagementUserExists(ctx context.Context, w http.ResponseWriter, emailAddress string) bool {
	if emailAddress == "" {
		http.Error(w, "Email address missing from authentication token", http.StatusForbidden)
		return false
	}

	response, err := s.users.FindCaseManagementUser(ctx, emailAddress)
	if err != nil {
		log.Error().Err(err).Msg("Unable to validate user against the integration bridge")
		http.Error(w, "Unable to verify your access at this time", http.StatusInternalServerError)
		return false
	}

	if len(response.Data) == 0 {
		log.Warn().Str("emailAddress", emailAddress).Msg("User not found in case management")
		http.Error(w, "You are not authorised to access this service", http.StatusForbidden)
		return false
	}

	return true
}

func metaRefreshRedirect(w http.ResponseWriter, target string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w,
		`<html><head><meta http-equiv="refresh" content="0;URL='%s'"></head><body></body></html>`,
		template.HTMLEscapeString(target))
}

// LogoutHandler drops the session, clears the cookie, and sends the browser
// to the identity provider's end-session endpoint.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		sessionID := s.cookies.ReadSessionID(r)
		userSession, err := s.sessions.Get(ctx, sessionID)
		if err != nil {
			log.Debug().Err(err).Msg("Failed to load session during logout")
		}

		if err := s.sessions.Drop(ctx, sessionID); err != nil {
			log.Debug().Err(err).Msg("Failed to drop session during logout")
		}
		s.cookies.Clear(w)

		if userSession == nil {
			http.Redirect(w, r, "/", http.StatusFound)
			return
		}

		logoutURL := s.authenticator.EndSessionURL(userSession.LoginHint, r.Referer())
		if logoutURL == "" {
			http.Redirect(w, r, "/", http.StatusFound)
			return
		}
		http.Redirect(w, r, logoutURL, http.StatusFound)
	}
}

// MeHandler returns the authenticated user's profile. Tokens never leave the
// server.
func (s *Server) MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userSession := SessionFromContext(r.Context())
		if userSession == nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":              userSession.ID,
			"email":           userSession.Email,
			"displayName":     userSession.DisplayName,
			"isAuthenticated": userSession.IsAuthenticated,
		})
	}
}
