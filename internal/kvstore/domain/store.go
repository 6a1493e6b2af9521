package domain

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// Store is the durable key-value primitive shared by the token manager and the
// scan controller. Values survive restarts; entries written with a TTL vanish
// once expired.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	// Take reads and removes key in one step. Only one of several concurrent
	// callers observes found == true for the same stored value.
	Take(ctx context.Context, key string) (value string, found bool, err error)
}

// Purger is implemented by stores that keep expired rows until swept.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

var (
	ErrInvalidKey = errors.New("invalid_key")
	ErrInvalidTTL = errors.New("invalid_ttl")
)

func ValidateKey(key string) error {
	if strings.TrimSpace(key) == "" || len(key) > 191 {
		return ErrInvalidKey
	}
	return nil
}

// GetOrDefault returns def when key is absent.
func GetOrDefault(ctx context.Context, s Store, key, def string) (string, error) {
	value, ok, err := s.Get(ctx, key)
	if err != nil {
		return "", err
	}
	if !ok {
		return def, nil
	}
	return value, nil
}

// GetJSON decodes the value stored under key into dst.
func GetJSON(ctx context.Context, s Store, key string, dst any) (bool, error) {
	value, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal([]byte(value), dst); err != nil {
		return false, err
	}
	return true, nil
}

func SetJSON(ctx context.Context, s Store, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.Set(ctx, key, string(raw))
}
