package domain

import "context"

// Service is the token manager. Every call reads state from the key-value
// store and writes it back; nothing is cached between calls.
type Service interface {
	SaveCredentials(ctx context.Context, creds Credentials) error
	// GetCredentials returns nil when nothing is stored.
	GetCredentials(ctx context.Context) (*MaskedCredentials, error)

	AuthorizationURL(ctx context.Context) (string, error)
	ExchangeCode(ctx context.Context, code, state string) error
	// EnsureValidToken refreshes an expired token when possible. false means
	// the administrator has to authorize again.
	EnsureValidToken(ctx context.Context) bool
	// AccessToken returns a usable token or ErrUnauthenticated.
	AccessToken(ctx context.Context) (string, error)
	Revoke(ctx context.Context) error
}

// TokenEndpoint talks to the provider's OAuth endpoints.
type TokenEndpoint interface {
	AuthCodeURL(creds Credentials, redirectURI, state string) string
	Exchange(ctx context.Context, creds Credentials, redirectURI, code string) (*TokenResponse, error)
	Refresh(ctx context.Context, creds Credentials, refreshToken string) (*TokenResponse, error)
	// Revoke returns the HTTP status of the revoke endpoint.
	Revoke(ctx context.Context, token string) (int, error)
}
