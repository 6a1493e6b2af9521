package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// APIKey stores hashed administrator credentials.
type APIKey struct {
	ID               snowflake.ID `gorm:"primaryKey"`
	KeyID            string       `gorm:"column:key_id;size:64;not null;uniqueIndex:ux_api_keys_key_id"`
	Name             string       `gorm:"column:name;size:191;not null"`
	Role             string       `gorm:"column:role;size:32;not null"`
	KeyHash          string       `gorm:"column:key_hash;size:64;not null;uniqueIndex:ux_api_keys_key_hash"`
	IsActive         bool         `gorm:"column:is_active;not null;default:true"`
	CreatedAt        time.Time    `gorm:"not null"`
	UpdatedAt        time.Time    `gorm:"not null"`
	LastUsedAt       *time.Time   `gorm:"column:last_used_at"`
	ExpiresAt        *time.Time   `gorm:"column:expires_at"`
	RotatedFromKeyID *string      `gorm:"column:rotated_from_key_id;size:64"`
}

// TableName sets the database table name.
func (APIKey) TableName() string { return "api_keys" }

// Usable reports whether the key may authenticate at now.
func (k *APIKey) Usable(now time.Time) bool {
	if k == nil || !k.IsActive {
		return false
	}
	return k.ExpiresAt == nil || k.ExpiresAt.After(now)
}
