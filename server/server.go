// Package server wires the authentication endpoints and the per-request
// session gate in front of the protected application.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/casemgmt/portal-gateway/bridge"
	"github.com/casemgmt/portal-gateway/internal/config"
	"github.com/casemgmt/portal-gateway/oidcauth"
	"github.com/casemgmt/portal-gateway/session"
)

// Authenticator is the login flow surface the handlers drive.
type Authenticator interface {
	StartLogin(ctx context.Context, referrer string) (string, error)
	CompleteLogin(ctx context.Context, code, state string) (*oidcauth.Result, error)
	EndSessionURL(loginHint, referrer string) string
}

// SessionValidator is the per-request cookie gate.
type SessionValidator interface {
	Validate(ctx context.Context, r *http.Request) session.Verdict
}

// UserFinder checks a just-authenticated user against case management.
type UserFinder interface {
	FindCaseManagementUser(ctx context.Context, emailAddress string) (*bridge.FindUserResponse, error)
}

type Server struct {
	env    string // Environment (e.g., "DEV", "PROD")
	mux    *http.ServeMux
	routes []string
	config config.Config

	authenticator Authenticator
	validator     SessionValidator
	sessions      *session.Store
	cookies       *session.CookieCodec
	users         UserFinder
}

func New(config config.Config, authenticator Authenticator, validator SessionValidator, sessions *session.Store, cookies *session.CookieCodec, users UserFinder) (*Server, error) {
	if authenticator == nil || validator == nil || sessions == nil || cookies == nil || users == nil {
		return nil, fmt.Errorf("[Server New] all dependencies are required")
	}

	s := &Server{
		mux:           http.NewServeMux(),
		config:        config,
		authenticator: authenticator,
		validator:     validator,
		sessions:      sessions,
		cookies:       cookies,
		users:         users,
	}
	s.env = config.GetEnv()

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	var displayMethod string
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		displayMethod = color + paddedMethod + ResetColor
	} else {
		displayMethod = Gray + paddedMethod + ResetColor
	}
	log.Printf("[%-19s] %s\n", displayMethod, path)
}
