package domain

import (
	"strings"
	"time"
)

// Storage keys. These names match existing installations.
const (
	KeyCredentials  = "wpmudev_plugin_tests_auth"
	KeyAccessToken  = "wpmudev_drive_access_token"
	KeyRefreshToken = "wpmudev_drive_refresh_token"
	KeyTokenExpires = "wpmudev_drive_token_expires"
	KeyAuthState    = "wpmudev_drive_auth_state"
)

const AuthStateTTL = 600 * time.Second

// DefaultTokenLifetime applies when the token endpoint omits expires_in.
const DefaultTokenLifetime int64 = 3600

// MaskedSecret replaces the client secret on every read.
var MaskedSecret = strings.Repeat("*", 30)

// Credentials are the OAuth application credentials entered by the administrator.
type Credentials struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

func (c Credentials) Complete() bool {
	return strings.TrimSpace(c.ClientID) != "" && strings.TrimSpace(c.ClientSecret) != ""
}

// MaskedCredentials is the read view of Credentials.
type MaskedCredentials struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

// TokenState is the stored access/refresh token pair.
type TokenState struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    int64 // epoch seconds
}

// Usable reports whether the access token may be sent at now.
func (t TokenState) Usable(now time.Time) bool {
	return t.AccessToken != "" && now.Unix() < t.ExpiresAt
}

// TokenResponse is what the token endpoint returned. RefreshToken is empty
// when the provider did not reissue one.
type TokenResponse struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
	Scope        string
}
