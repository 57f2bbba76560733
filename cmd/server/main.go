package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentity"
	"github.com/common-nighthawk/go-figure"

	"github.com/casemgmt/portal-gateway/bridge"
	"github.com/casemgmt/portal-gateway/cache"
	"github.com/casemgmt/portal-gateway/federated"
	"github.com/casemgmt/portal-gateway/internal/config"
	"github.com/casemgmt/portal-gateway/oidcauth"
	"github.com/casemgmt/portal-gateway/server"
	"github.com/casemgmt/portal-gateway/session"
)

func main() {
	for {
		if err := run(); err != nil {
			log.Fatalf("Error running server: %s\n", err)
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Printf("Server stopped\n")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic: %v\n", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	displayAppname(c.GetAppName())

	ctx := context.Background()

	handler, err := compose(ctx, c)
	if err != nil {
		return err
	}

	httpServer := &http.Server{Addr: c.GetPort(), Handler: handler}
	go listenAndServe(httpServer)
	waitForStopSignal()
	returnError = shutdown(httpServer)
	return returnError
}

// compose builds the full dependency graph once at service start. Real vs
// mock providers are selected here and nowhere else.
func compose(ctx context.Context, c config.Config) (http.Handler, error) {
	sessionCache, err := newSessionCache(ctx, c)
	if err != nil {
		return nil, err
	}

	cookies, err := session.NewCookieCodec(c.GetSessionCookiePassword(), c.GetSessionCookieSecure(), c.GetSessionCookieTTL())
	if err != nil {
		return nil, err
	}
	sessions := session.NewStore(sessionCache, c.GetSessionCookieTTL())

	credentials, err := newCredentialSource(ctx, c)
	if err != nil {
		return nil, err
	}

	scheme, err := oidcauth.NewScheme(ctx, oidcauth.Config{
		WellKnownURL: c.GetOidcWellKnownURL(),
		ClientID:     c.GetOidcClientID(),
		RedirectURL:  c.GetAppBaseURL() + server.RouteAuthCallback,
		Scopes:       c.GetOidcScopes(),
		AppBaseURL:   c.GetAppBaseURL(),
	}, credentials, oidcauth.NewTransactionStore(sessionCache))
	if err != nil {
		return nil, err
	}

	validator := session.NewCookieValidator(cookies, sessions, scheme.RefreshGrant)

	bridgeClient, err := bridge.New(bridge.Config{
		BaseURL:               c.GetBridgeBaseURL(),
		TokenURL:              c.GetBridgeTokenURL(),
		ClientID:              c.GetBridgeClientID(),
		ClientSecret:          c.GetBridgeClientSecret(),
		TokenBufferSeconds:    c.GetBridgeTokenBufferSeconds(),
		RequestTimeoutSeconds: c.GetBridgeRequestTimeoutSeconds(),
	})
	if err != nil {
		return nil, err
	}

	return server.New(c, scheme, validator, sessions, cookies, bridgeClient)
}

func newSessionCache(ctx context.Context, c config.Config) (cache.Cache, error) {
	if url := c.GetRedisURL(); url != "" {
		return cache.NewRedis(ctx, url)
	}
	return cache.NewMemory(), nil
}

func newCredentialSource(ctx context.Context, c config.Config) (federated.CredentialSource, error) {
	if c.GetFederatedMockingEnabled() {
		return federated.NewMock(c.GetOidcClientID(), c.GetSessionCookiePassword())
	}

	awsConfig, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	return federated.NewCognito(federated.CognitoConfig{
		IdentityPoolID: c.GetIdentityPoolID(),
		ProviderName:   c.GetFederatedProviderName(),
		LoginValue:     c.GetFederatedLoginValue(),
		ClientID:       c.GetOidcClientID(),
	}, cognitoidentity.NewFromConfig(awsConfig))
}

func listenAndServe(server *http.Server) error {
	log.Printf("Server listening on %s\n", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
