package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/smallbiznis/drivebridge/internal/config"
	"github.com/smallbiznis/drivebridge/internal/googleapi"
	"github.com/smallbiznis/drivebridge/internal/googleauth/domain"
	"golang.org/x/oauth2"
)

const (
	opExchange = "googleauth.exchange"
	opRefresh  = "googleauth.refresh"
	opRevoke   = "googleauth.revoke"
)

// Client implements domain.TokenEndpoint against Google's OAuth endpoints.
type Client struct {
	cfg          config.GoogleConfig
	httpClient   *http.Client
	revokeClient *http.Client
	now          func() time.Time
}

func New(cfg config.Config) *Client {
	return &Client{
		cfg:          cfg.Google,
		httpClient:   googleapi.NewHTTPClient(cfg.Google.HTTPClientTimeout),
		revokeClient: googleapi.NewHTTPClient(cfg.Google.RevokeTimeout),
		now:          time.Now,
	}
}

func (c *Client) oauthConfig(creds domain.Credentials, redirectURI string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		RedirectURL:  redirectURI,
		Scopes:       c.cfg.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   c.cfg.AuthURL,
			TokenURL:  c.cfg.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

func (c *Client) AuthCodeURL(creds domain.Credentials, redirectURI, state string) string {
	return c.oauthConfig(creds, redirectURI).AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.ApprovalForce,
		oauth2.SetAuthURLParam("include_granted_scopes", "true"),
	)
}

func (c *Client) Exchange(ctx context.Context, creds domain.Credentials, redirectURI, code string) (*domain.TokenResponse, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	tok, err := c.oauthConfig(creds, redirectURI).Exchange(ctx, code)
	if err != nil {
		return nil, tokenError(opExchange, err)
	}
	return c.toResponse(tok, ""), nil
}

func (c *Client) Refresh(ctx context.Context, creds domain.Credentials, refreshToken string) (*domain.TokenResponse, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	src := c.oauthConfig(creds, "").TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, tokenError(opRefresh, err)
	}
	return c.toResponse(tok, refreshToken), nil
}

// Revoke posts the token to the revoke endpoint. A non-2xx status is not an
// error here; callers decide what to do with it.
func (c *Client) Revoke(ctx context.Context, token string) (int, error) {
	endpoint, err := url.Parse(c.cfg.RevokeURL)
	if err != nil {
		return 0, err
	}
	q := endpoint.Query()
	q.Set("token", token)
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	status, _, err := googleapi.Do(c.revokeClient, opRevoke, req)
	return status, err
}

// toResponse drops a refresh token equal to previous; the oauth2 package
// copies the old one forward when the provider omits it.
func (c *Client) toResponse(tok *oauth2.Token, previous string) *domain.TokenResponse {
	resp := &domain.TokenResponse{
		AccessToken: tok.AccessToken,
		ExpiresIn:   c.expiresIn(tok),
	}
	if tok.RefreshToken != "" && tok.RefreshToken != previous {
		resp.RefreshToken = tok.RefreshToken
	}
	if scope, ok := tok.Extra("scope").(string); ok {
		resp.Scope = scope
	}
	return resp
}

func (c *Client) expiresIn(tok *oauth2.Token) int64 {
	switch v := tok.Extra("expires_in").(type) {
	case float64:
		return int64(v)
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n
		}
	case string:
		if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			return n
		}
	}
	if !tok.Expiry.IsZero() {
		return int64(tok.Expiry.Sub(c.now()).Seconds())
	}
	return 0
}

func tokenError(op string, err error) error {
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		status := 0
		if rerr.Response != nil {
			status = rerr.Response.StatusCode
		}
		return googleapi.DecodeError(op, status, rerr.Body)
	}

	var uerr *url.Error
	if errors.As(err, &uerr) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &googleapi.TransportError{Op: op, Err: err}
	}

	// e.g. a 200 response without an access_token.
	return &googleapi.ProviderError{Op: op, StatusCode: http.StatusOK, Message: err.Error()}
}

var _ domain.TokenEndpoint = (*Client)(nil)
