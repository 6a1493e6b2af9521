package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/smallbiznis/drivebridge/internal/clock"
	"github.com/smallbiznis/drivebridge/internal/config"
	"github.com/smallbiznis/drivebridge/internal/googleapi"
	"github.com/smallbiznis/drivebridge/internal/googleauth/domain"
	kvdomain "github.com/smallbiznis/drivebridge/internal/kvstore/domain"
	obslogger "github.com/smallbiznis/drivebridge/internal/observability/logger"
	"github.com/smallbiznis/drivebridge/internal/observability/metrics"
	"github.com/smallbiznis/drivebridge/internal/secrets"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const stateTokenSize = 32

type Params struct {
	fx.In

	Cfg      config.Config
	Log      *zap.Logger
	Store    kvdomain.Store
	Sealer   secrets.Sealer
	Clock    clock.Clock
	Endpoint domain.TokenEndpoint
	Metrics  *metrics.Metrics `optional:"true"`
}

type Service struct {
	log         *zap.Logger
	store       kvdomain.Store
	sealer      secrets.Sealer
	clock       clock.Clock
	endpoint    domain.TokenEndpoint
	metrics     *metrics.Metrics
	redirectURI string
}

func New(p Params) domain.Service {
	return &Service{
		log:         p.Log.Named("googleauth.service"),
		store:       p.Store,
		sealer:      p.Sealer,
		clock:       p.Clock,
		endpoint:    p.Endpoint,
		metrics:     p.Metrics,
		redirectURI: p.Cfg.RedirectURI(),
	}
}

// storedCredentials is the JSON layout of the credentials option. The secret
// is sealed.
type storedCredentials struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

func (s *Service) SaveCredentials(ctx context.Context, creds domain.Credentials) error {
	creds.ClientID = strings.TrimSpace(creds.ClientID)
	creds.ClientSecret = strings.TrimSpace(creds.ClientSecret)
	if !creds.Complete() {
		return domain.ErrInvalidInput
	}

	sealed, err := s.sealer.Seal(creds.ClientSecret)
	if err != nil {
		return fmt.Errorf("seal client secret: %w", err)
	}
	stored := storedCredentials{ClientID: creds.ClientID, ClientSecret: sealed}
	if err := kvdomain.SetJSON(ctx, s.store, domain.KeyCredentials, stored); err != nil {
		return fmt.Errorf("store credentials: %w", err)
	}

	obslogger.WithContext(ctx, s.log).Info("googleauth.credentials.saved")
	return nil
}

func (s *Service) GetCredentials(ctx context.Context) (*domain.MaskedCredentials, error) {
	creds, ok, err := s.loadCredentials(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return &domain.MaskedCredentials{
		ClientID:     creds.ClientID,
		ClientSecret: domain.MaskedSecret,
	}, nil
}

func (s *Service) loadCredentials(ctx context.Context) (domain.Credentials, bool, error) {
	var stored storedCredentials
	found, err := kvdomain.GetJSON(ctx, s.store, domain.KeyCredentials, &stored)
	if err != nil {
		return domain.Credentials{}, false, fmt.Errorf("load credentials: %w", err)
	}
	if !found {
		return domain.Credentials{}, false, nil
	}
	secret, err := s.sealer.Open(stored.ClientSecret)
	if err != nil {
		return domain.Credentials{}, false, fmt.Errorf("open client secret: %w", err)
	}
	creds := domain.Credentials{ClientID: stored.ClientID, ClientSecret: secret}
	return creds, creds.Complete(), nil
}

func (s *Service) requireCredentials(ctx context.Context) (domain.Credentials, error) {
	creds, ok, err := s.loadCredentials(ctx)
	if err != nil {
		return domain.Credentials{}, err
	}
	if !ok {
		return domain.Credentials{}, domain.ErrMissingCredentials
	}
	return creds, nil
}

// AuthorizationURL starts a new flow. Any pending state is replaced, so only
// the most recent URL can complete.
func (s *Service) AuthorizationURL(ctx context.Context) (string, error) {
	creds, err := s.requireCredentials(ctx)
	if err != nil {
		return "", err
	}

	state, err := randomToken(stateTokenSize)
	if err != nil {
		return "", err
	}
	if err := s.store.SetWithTTL(ctx, domain.KeyAuthState, state, domain.AuthStateTTL); err != nil {
		return "", fmt.Errorf("store auth state: %w", err)
	}

	s.metrics.RecordOAuthEvent(ctx, "authorize", "ok")
	return s.endpoint.AuthCodeURL(creds, s.redirectURI, state), nil
}

// ExchangeCode consumes the pending state before anything else. A mismatched
// or replayed state therefore also burns the pending value.
func (s *Service) ExchangeCode(ctx context.Context, code, state string) error {
	log := obslogger.WithContext(ctx, s.log)

	pending, found, err := s.store.Take(ctx, domain.KeyAuthState)
	if err != nil {
		return fmt.Errorf("consume auth state: %w", err)
	}
	if !found || state == "" || subtle.ConstantTimeCompare([]byte(pending), []byte(state)) != 1 {
		s.metrics.RecordOAuthEvent(ctx, "exchange", "invalid_state")
		log.Warn("googleauth.exchange.invalid_state", zap.Bool("pending", found))
		return domain.ErrInvalidState
	}
	if strings.TrimSpace(code) == "" {
		return domain.ErrMissingCode
	}

	creds, err := s.requireCredentials(ctx)
	if err != nil {
		return err
	}

	resp, err := s.endpoint.Exchange(ctx, creds, s.redirectURI, code)
	s.metrics.RecordOAuthEvent(ctx, "exchange", googleapi.Outcome(err))
	if err != nil {
		log.Warn("googleauth.exchange.failed", zap.Error(err))
		return err
	}

	if err := s.persistToken(ctx, resp); err != nil {
		return err
	}
	log.Info("googleauth.exchange.succeeded",
		zap.Bool("refresh_token_issued", resp.RefreshToken != ""),
		zap.Strings("granted_scopes", strings.Fields(resp.Scope)),
	)
	return nil
}

func (s *Service) EnsureValidToken(ctx context.Context) bool {
	_, ok := s.ensure(ctx)
	return ok
}

func (s *Service) AccessToken(ctx context.Context) (string, error) {
	tok, ok := s.ensure(ctx)
	if !ok {
		return "", domain.ErrUnauthenticated
	}
	return tok.AccessToken, nil
}

// ensure never returns an error. Any failure means re-authorization.
func (s *Service) ensure(ctx context.Context) (domain.TokenState, bool) {
	log := obslogger.WithContext(ctx, s.log)

	tok, err := s.loadToken(ctx)
	if err != nil {
		log.Error("googleauth.token.load_failed", zap.Error(err))
		return domain.TokenState{}, false
	}
	now := s.clock.Now()
	if tok.Usable(now) {
		return tok, true
	}
	if tok.RefreshToken == "" {
		return domain.TokenState{}, false
	}

	creds, ok, err := s.loadCredentials(ctx)
	if err != nil || !ok {
		log.Warn("googleauth.refresh.no_credentials", zap.Error(err))
		return domain.TokenState{}, false
	}

	resp, err := s.endpoint.Refresh(ctx, creds, tok.RefreshToken)
	s.metrics.RecordOAuthEvent(ctx, "refresh", googleapi.Outcome(err))
	if err != nil {
		log.Warn("googleauth.refresh.failed", zap.Error(err))
		return domain.TokenState{}, false
	}
	if err := s.persistToken(ctx, resp); err != nil {
		log.Error("googleauth.refresh.persist_failed", zap.Error(err))
		return domain.TokenState{}, false
	}

	tok.AccessToken = resp.AccessToken
	tok.ExpiresAt = now.Unix() + tokenLifetime(resp)
	if resp.RefreshToken != "" {
		tok.RefreshToken = resp.RefreshToken
	}
	log.Debug("googleauth.refresh.succeeded", zap.Int64("expires_at", tok.ExpiresAt))
	return tok, tok.Usable(now)
}

// Revoke always clears local state once a token exists. The remote outcome
// is only logged.
func (s *Service) Revoke(ctx context.Context) error {
	log := obslogger.WithContext(ctx, s.log)

	tok, err := s.loadToken(ctx)
	if err != nil {
		// Tokens sealed under another APP_SECRET cannot be sent, but they are
		// still cleared.
		s.metrics.RecordOAuthEvent(ctx, "revoke", "unreadable_token")
		log.Warn("googleauth.revoke.skipped", zap.Error(err))
		return s.clearTokens(ctx)
	}
	if tok.AccessToken == "" {
		return domain.ErrNotConnected
	}

	status, revokeErr := s.endpoint.Revoke(ctx, tok.AccessToken)
	switch {
	case revokeErr != nil:
		s.metrics.RecordOAuthEvent(ctx, "revoke", "transport_error")
		log.Warn("googleauth.revoke.failed", zap.Error(revokeErr))
	case status != http.StatusOK:
		s.metrics.RecordOAuthEvent(ctx, "revoke", "rejected")
		log.Warn("googleauth.revoke.rejected", zap.Int("status_code", status))
	default:
		s.metrics.RecordOAuthEvent(ctx, "revoke", "ok")
		log.Info("googleauth.revoke.succeeded")
	}
	return s.clearTokens(ctx)
}

func (s *Service) clearTokens(ctx context.Context) error {
	if err := s.store.Delete(ctx,
		domain.KeyAccessToken,
		domain.KeyRefreshToken,
		domain.KeyTokenExpires,
		domain.KeyAuthState,
	); err != nil {
		return fmt.Errorf("clear tokens: %w", err)
	}
	return nil
}

func (s *Service) loadToken(ctx context.Context) (domain.TokenState, error) {
	var tok domain.TokenState

	access, err := s.openValue(ctx, domain.KeyAccessToken)
	if err != nil {
		return tok, err
	}
	refresh, err := s.openValue(ctx, domain.KeyRefreshToken)
	if err != nil {
		return tok, err
	}
	expires, err := kvdomain.GetOrDefault(ctx, s.store, domain.KeyTokenExpires, "0")
	if err != nil {
		return tok, err
	}

	tok.AccessToken = access
	tok.RefreshToken = refresh
	// A malformed expiry is treated as already expired.
	tok.ExpiresAt, _ = strconv.ParseInt(strings.TrimSpace(expires), 10, 64)
	return tok, nil
}

func (s *Service) openValue(ctx context.Context, key string) (string, error) {
	raw, err := kvdomain.GetOrDefault(ctx, s.store, key, "")
	if err != nil || raw == "" {
		return "", err
	}
	value, err := s.sealer.Open(raw)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", key, err)
	}
	return value, nil
}

func (s *Service) persistToken(ctx context.Context, resp *domain.TokenResponse) error {
	access, err := s.sealer.Seal(resp.AccessToken)
	if err != nil {
		return fmt.Errorf("seal access token: %w", err)
	}
	if err := s.store.Set(ctx, domain.KeyAccessToken, access); err != nil {
		return fmt.Errorf("store access token: %w", err)
	}
	expiresAt := s.clock.Now().Unix() + tokenLifetime(resp)
	if err := s.store.Set(ctx, domain.KeyTokenExpires, strconv.FormatInt(expiresAt, 10)); err != nil {
		return fmt.Errorf("store token expiry: %w", err)
	}
	if resp.RefreshToken == "" {
		return nil
	}
	refresh, err := s.sealer.Seal(resp.RefreshToken)
	if err != nil {
		return fmt.Errorf("seal refresh token: %w", err)
	}
	if err := s.store.Set(ctx, domain.KeyRefreshToken, refresh); err != nil {
		return fmt.Errorf("store refresh token: %w", err)
	}
	return nil
}

func tokenLifetime(resp *domain.TokenResponse) int64 {
	if resp.ExpiresIn <= 0 {
		return domain.DefaultTokenLifetime
	}
	return resp.ExpiresIn
}

func randomToken(size int) (string, error) {
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
