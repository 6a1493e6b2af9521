package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/smallbiznis/drivebridge/internal/config"
	"github.com/smallbiznis/drivebridge/internal/googleapi"
	"github.com/smallbiznis/drivebridge/internal/googleauth/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCreds = domain.Credentials{ClientID: "client-123", ClientSecret: "shh"}

func newTestClient(srvURL string) *Client {
	return New(config.Config{Google: config.GoogleConfig{
		AuthURL:           "https://accounts.example.test/o/oauth2/v2/auth",
		TokenURL:          srvURL + "/token",
		RevokeURL:         srvURL + "/revoke",
		Scopes:            []string{"https://www.googleapis.com/auth/drive.file", "https://www.googleapis.com/auth/drive.readonly"},
		HTTPClientTimeout: 2 * time.Second,
		RevokeTimeout:     2 * time.Second,
	}})
}

func TestAuthCodeURLParameters(t *testing.T) {
	c := newTestClient("http://unused")
	raw := c.AuthCodeURL(testCreds, "https://site.test/wpmudev/v1/drive/callback", "state-xyz")

	parsed, err := url.Parse(raw)
	require.NoError(t, err)
	q := parsed.Query()

	assert.Equal(t, "accounts.example.test", parsed.Host)
	assert.Equal(t, "client-123", q.Get("client_id"))
	assert.Equal(t, "https://site.test/wpmudev/v1/drive/callback", q.Get("redirect_uri"))
	assert.Equal(t, "https://www.googleapis.com/auth/drive.file https://www.googleapis.com/auth/drive.readonly", q.Get("scope"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "offline", q.Get("access_type"))
	assert.Equal(t, "consent", q.Get("prompt"))
	assert.Equal(t, "true", q.Get("include_granted_scopes"))
	assert.Equal(t, "state-xyz", q.Get("state"))
	assert.Empty(t, q.Get("client_secret"))
}

func TestExchangeSendsFormAndParsesToken(t *testing.T) {
	var form url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		form = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"ya29.a","refresh_token":"1//r","expires_in":3599,"token_type":"Bearer","scope":"drive.file"}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	resp, err := c.Exchange(context.Background(), testCreds, "https://site.test/cb", "4/code")
	require.NoError(t, err)

	assert.Equal(t, "authorization_code", form.Get("grant_type"))
	assert.Equal(t, "4/code", form.Get("code"))
	assert.Equal(t, "client-123", form.Get("client_id"))
	assert.Equal(t, "shh", form.Get("client_secret"))
	assert.Equal(t, "https://site.test/cb", form.Get("redirect_uri"))

	assert.Equal(t, "ya29.a", resp.AccessToken)
	assert.Equal(t, "1//r", resp.RefreshToken)
	assert.Equal(t, int64(3599), resp.ExpiresIn)
}

func TestExchangeProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"Malformed auth code."}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Exchange(context.Background(), testCreds, "https://site.test/cb", "used")
	require.Error(t, err)

	var perr *googleapi.ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, http.StatusBadRequest, perr.StatusCode)
	assert.Equal(t, "invalid_grant", perr.Code)
	assert.Equal(t, "Malformed auth code.", perr.Message)
	assert.False(t, errors.Is(err, googleapi.ErrTransport))
}

func TestExchangeTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	_, err := newTestClient(srv.URL).Exchange(context.Background(), testCreds, "https://site.test/cb", "code")
	require.Error(t, err)
	assert.True(t, errors.Is(err, googleapi.ErrTransport))
	assert.False(t, errors.Is(err, googleapi.ErrProvider))
}

func TestRefreshKeepsRefreshTokenUnlessReissued(t *testing.T) {
	var form url.Values
	body := `{"access_token":"ya29.new","expires_in":3600,"token_type":"Bearer"}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		form = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	resp, err := c.Refresh(context.Background(), testCreds, "1//old")
	require.NoError(t, err)
	assert.Equal(t, "refresh_token", form.Get("grant_type"))
	assert.Equal(t, "1//old", form.Get("refresh_token"))
	assert.Equal(t, "client-123", form.Get("client_id"))
	assert.Equal(t, "ya29.new", resp.AccessToken)
	assert.Empty(t, resp.RefreshToken)
	assert.Equal(t, int64(3600), resp.ExpiresIn)

	body = `{"access_token":"ya29.newer","refresh_token":"1//rotated","expires_in":3600}`
	resp, err = c.Refresh(context.Background(), testCreds, "1//old")
	require.NoError(t, err)
	assert.Equal(t, "1//rotated", resp.RefreshToken)
}

func TestRevokeReportsStatus(t *testing.T) {
	var gotToken, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotToken = r.URL.Query().Get("token")
		if strings.HasPrefix(gotToken, "bad") {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	status, err := c.Revoke(context.Background(), "ya29.token")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "ya29.token", gotToken)

	status, err = c.Revoke(context.Background(), "bad-token")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, status)
}
