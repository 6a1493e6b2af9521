package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type ActorType string

const (
	ActorTypeAPIKey ActorType = "api_key"
	ActorTypeSystem ActorType = "system"
)

// Actions recorded by the admin surface.
const (
	ActionCredentialsSaved = "drive.credentials.saved"
	ActionDriveConnected   = "drive.connected"
	ActionDriveDisconnect  = "drive.disconnected"
	ActionFileUploaded     = "drive.file.uploaded"
	ActionFolderCreated    = "drive.folder.created"
	ActionAPIKeyCreated    = "api_key.created"
	ActionAPIKeyRotated    = "api_key.rotated"
	ActionAPIKeyRevoked    = "api_key.revoked"
	ActionPostsScanStarted = "posts_scan.started"
)

type AuditLog struct {
	ID         snowflake.ID      `gorm:"primaryKey" json:"id"`
	ActorType  string            `gorm:"type:text;not null" json:"actor_type"`
	ActorID    *string           `gorm:"type:text" json:"actor_id,omitempty"`
	Action     string            `gorm:"type:text;not null;index" json:"action"`
	TargetType string            `gorm:"type:text;not null" json:"target_type"`
	TargetID   *string           `gorm:"type:text" json:"target_id,omitempty"`
	Metadata   datatypes.JSONMap `json:"metadata,omitempty"`
	IPAddress  *string           `gorm:"type:text" json:"ip_address,omitempty"`
	RequestID  *string           `gorm:"type:text" json:"request_id,omitempty"`
	CreatedAt  time.Time         `gorm:"not null;index" json:"created_at"`
}

func (AuditLog) TableName() string { return "audit_logs" }
