// Package secrets seals values that must not sit in the database in clear text,
// such as the OAuth client secret and the Drive tokens.
package secrets

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/smallbiznis/drivebridge/internal/config"
	"go.uber.org/zap"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const (
	sealedPrefix = "v1:"
	sealPurpose  = "drivebridge/kv-seal"
)

var (
	ErrKeyUnavailable = errors.New("seal_key_unavailable")
	ErrMalformed      = errors.New("sealed_value_malformed")
)

type Sealer interface {
	Seal(plaintext string) (string, error)
	Open(value string) (string, error)
}

// DeriveKey expands the application secret into a key bound to purpose.
func DeriveKey(secret, purpose string, size int) ([]byte, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrKeyUnavailable
	}
	if size <= 0 {
		size = chacha20poly1305.KeySize
	}
	reader := hkdf.New(sha256.New, []byte(secret), nil, []byte(purpose))
	key := make([]byte, size)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return key, nil
}

// NewSealer returns an AEAD sealer keyed from APP_SECRET, or a pass-through
// sealer when no secret is configured.
func NewSealer(cfg config.Config, log *zap.Logger) (Sealer, error) {
	if strings.TrimSpace(cfg.AppSecret) == "" {
		if log != nil {
			log.Warn("APP_SECRET is empty, credentials and tokens are stored unsealed")
		}
		return plainSealer{}, nil
	}
	return NewAEADSealer(cfg.AppSecret)
}

func NewAEADSealer(secret string) (Sealer, error) {
	key, err := DeriveKey(secret, sealPurpose, chacha20poly1305.KeySize)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	return &aeadSealer{aead: aead}, nil
}

type aeadSealer struct {
	aead interface {
		NonceSize() int
		Overhead() int
		Seal(dst, nonce, plaintext, additionalData []byte) []byte
		Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
	}
}

func (s *aeadSealer) Seal(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(plaintext)+s.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	out := s.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return sealedPrefix + base64.RawURLEncoding.EncodeToString(out), nil
}

func (s *aeadSealer) Open(value string) (string, error) {
	if !strings.HasPrefix(value, sealedPrefix) {
		return value, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(value, sealedPrefix))
	if err != nil {
		return "", ErrMalformed
	}
	if len(raw) < s.aead.NonceSize() {
		return "", ErrMalformed
	}
	nonce, ciphertext := raw[:s.aead.NonceSize()], raw[s.aead.NonceSize():]
	plain, err := s.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrMalformed
	}
	return string(plain), nil
}

type plainSealer struct{}

func NewPlainSealer() Sealer { return plainSealer{} }

func (plainSealer) Seal(plaintext string) (string, error) { return plaintext, nil }

func (plainSealer) Open(value string) (string, error) {
	if strings.HasPrefix(value, sealedPrefix) {
		return "", ErrKeyUnavailable
	}
	return value, nil
}
