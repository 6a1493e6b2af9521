// Package nonce issues and verifies the short-lived request tokens that guard
// state-changing admin routes against cross-site submission.
package nonce

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/smallbiznis/drivebridge/internal/clock"
	"github.com/smallbiznis/drivebridge/internal/config"
	"github.com/smallbiznis/drivebridge/internal/secrets"
	"go.uber.org/zap"
)

const (
	// ActionREST is the action every admin REST nonce is minted for.
	ActionREST = "wp_rest"

	TickLength = 12 * time.Hour

	noncePurpose = "drivebridge/request-nonce"
	nonceLength  = 20
)

var ErrSecurityCheckFailed = errors.New("invalid_nonce")

type Manager struct {
	key   []byte
	clock clock.Clock
}

// New keys the manager from APP_SECRET. Without one a random key is used,
// so nonces stop verifying after a restart.
func New(cfg config.Config, clk clock.Clock, log *zap.Logger) (*Manager, error) {
	key, err := secrets.DeriveKey(cfg.AppSecret, noncePurpose, sha256.Size)
	if errors.Is(err, secrets.ErrKeyUnavailable) {
		if log != nil {
			log.Warn("APP_SECRET is empty, request nonces use an ephemeral key")
		}
		key = make([]byte, sha256.Size)
		if _, err := rand.Read(key); err != nil {
			return nil, err
		}
		return &Manager{key: key, clock: clk}, nil
	}
	if err != nil {
		return nil, err
	}
	return &Manager{key: key, clock: clk}, nil
}

func NewWithKey(key []byte, clk clock.Clock) *Manager {
	return &Manager{key: key, clock: clk}
}

// Issue returns the nonce for subject and action in the current tick.
func (m *Manager) Issue(subject, action string) string {
	return m.sign(m.tick(), subject, action)
}

// Verify accepts nonces minted in the current or the previous tick.
func (m *Manager) Verify(subject, action, value string) error {
	value = strings.TrimSpace(value)
	if value == "" || subject == "" {
		return ErrSecurityCheckFailed
	}

	tick := m.tick()
	for _, candidate := range []int64{tick, tick - 1} {
		expected := m.sign(candidate, subject, action)
		if subtle.ConstantTimeCompare([]byte(expected), []byte(value)) == 1 {
			return nil
		}
	}
	return ErrSecurityCheckFailed
}

func (m *Manager) tick() int64 {
	return m.clock.Now().Unix() / int64(TickLength/time.Second)
}

func (m *Manager) sign(tick int64, subject, action string) string {
	mac := hmac.New(sha256.New, m.key)
	mac.Write([]byte(strconv.FormatInt(tick, 10)))
	mac.Write([]byte{'|'})
	mac.Write([]byte(action))
	mac.Write([]byte{'|'})
	mac.Write([]byte(subject))
	return hex.EncodeToString(mac.Sum(nil))[:nonceLength]
}
