package cromwell

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"falcon/internal/services"
)

// DefaultScopes are requested for Cromwell-as-a-Service tokens.
var DefaultScopes = []string{
	"https://www.googleapis.com/auth/userinfo.profile",
	"https://www.googleapis.com/auth/userinfo.email",
}

// Authenticator decorates engine requests with credentials.
type Authenticator interface {
	// Apply adds credentials to req.
	Apply(ctx context.Context, req *http.Request) error
	// Refresh discards cached credentials. It reports whether a retry with
	// fresh credentials is worthwhile.
	Refresh(ctx context.Context) (bool, error)
}

// BasicAuth sends HTTP basic credentials. Empty credentials send nothing.
type BasicAuth struct {
	Username string
	Password string
}

func (a BasicAuth) Apply(_ context.Context, req *http.Request) error {
	if a.Username != "" {
		req.SetBasicAuth(a.Username, a.Password)
	}
	return nil
}

func (BasicAuth) Refresh(context.Context) (bool, error) { return false, nil }

// TokenSourceFunc builds a new token source. Each call must start from an
// empty token cache.
type TokenSourceFunc func(ctx context.Context) oauth2.TokenSource

// TokenAuth sends bearer tokens from a service account token exchange and can
// drop its cached token on demand.
type TokenAuth struct {
	newSource TokenSourceFunc

	mu     sync.RWMutex
	source oauth2.TokenSource
}

// NewServiceAccountAuth parses a Google service account key and returns an
// authenticator that exchanges signed JWTs for access tokens.
func NewServiceAccountAuth(keyJSON []byte, scopes ...string) (*TokenAuth, error) {
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}
	jwtConfig, err := google.JWTConfigFromJSON(keyJSON, scopes...)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "cromwell", "service account", "parse key", err)
	}
	return NewTokenAuth(func(ctx context.Context) oauth2.TokenSource {
		return jwtConfig.TokenSource(ctx)
	}), nil
}

// NewTokenAuth wraps an arbitrary token source factory.
func NewTokenAuth(newSource TokenSourceFunc) *TokenAuth {
	return &TokenAuth{newSource: newSource}
}

func (a *TokenAuth) Apply(ctx context.Context, req *http.Request) error {
	token, err := a.currentSource(ctx).Token()
	if err != nil {
		return classifyTokenError(err)
	}
	token.SetAuthHeader(req)
	return nil
}

// Refresh replaces the token source so the next Apply performs a new exchange.
func (a *TokenAuth) Refresh(ctx context.Context) (bool, error) {
	a.mu.Lock()
	a.source = a.newSource(context.WithoutCancel(ctx))
	a.mu.Unlock()
	return true, nil
}

func (a *TokenAuth) currentSource(ctx context.Context) oauth2.TokenSource {
	a.mu.RLock()
	source := a.source
	a.mu.RUnlock()
	if source != nil {
		return source
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.source == nil {
		a.source = a.newSource(context.WithoutCancel(ctx))
	}
	return a.source
}

// classifyTokenError treats only a credential rejection by the token endpoint
// as an auth failure. Outages and throttling there are transient.
func classifyTokenError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) && retrieveErr.Response != nil && isTokenRejection(retrieveErr.Response.StatusCode) {
		return services.Wrap(services.ErrEngineAuth, "cromwell", "token exchange", "rejected", err)
	}
	return services.Wrap(services.ErrEngineUnavailable, "cromwell", "token exchange", "request failed", err)
}

func isTokenRejection(code int) bool {
	switch code {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
		return true
	default:
		return false
	}
}
