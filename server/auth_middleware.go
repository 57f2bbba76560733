package server

import (
	"context"
	"net/http"

	"github.com/casemgmt/portal-gateway/session"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

// ContextKeySession stores the validated user session
const ContextKeySession ContextKey = "user_session"

// RequireSession gates a route on a valid session cookie. The validator
// refreshes an expired access token in passing; an invalid verdict clears the
// cookie and redirects to login.
func (s *Server) RequireSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		verdict := s.validator.Validate(r.Context(), r)
		if !verdict.IsValid {
			s.cookies.Clear(w)
			http.Redirect(w, r, RouteAuthLogin, http.StatusFound)
			return
		}

		ctx := context.WithValue(r.Context(), ContextKeySession, verdict.Credentials)
		next(w, r.WithContext(ctx))
	}
}

// SessionFromContext returns the session placed by RequireSession, or nil.
func SessionFromContext(ctx context.Context) *session.Session {
	userSession, _ := ctx.Value(ContextKeySession).(*session.Session)
	return userSession
}
