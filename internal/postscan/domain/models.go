package domain

import (
	"time"

	"gorm.io/datatypes"
)

type Status string

const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
)

// Post is the subset of the posts table the scan reads.
type Post struct {
	ID         uint64    `gorm:"column:id;primaryKey;autoIncrement"`
	PostType   string    `gorm:"column:post_type;size:20;not null;index:idx_posts_type_status,priority:1"`
	PostStatus string    `gorm:"column:post_status;size:20;not null;index:idx_posts_type_status,priority:2"`
	PostTitle  string    `gorm:"column:post_title;not null;default:''"`
	PostDate   time.Time `gorm:"column:post_date;not null"`
}

func (Post) TableName() string { return "posts" }

// PostMeta holds one metadata value per post and key.
type PostMeta struct {
	ID        uint64 `gorm:"column:meta_id;primaryKey;autoIncrement"`
	PostID    uint64 `gorm:"column:post_id;not null;uniqueIndex:ux_post_meta_post_key,priority:1"`
	MetaKey   string `gorm:"column:meta_key;size:191;not null;uniqueIndex:ux_post_meta_post_key,priority:2"`
	MetaValue string `gorm:"column:meta_value;type:text"`
}

func (PostMeta) TableName() string { return "post_meta" }

// PostScan is one scan pass. The row with the greatest ID is the current scan.
type PostScan struct {
	ID             string            `gorm:"column:id;primaryKey;size:26"`
	Status         Status            `gorm:"column:status;size:16;not null"`
	PostTypes      datatypes.JSON    `gorm:"column:post_types;not null"`
	PostStatus     string            `gorm:"column:post_status;size:20;not null"`
	CursorOffset   int64             `gorm:"column:cursor_offset;not null;default:0"`
	ProcessedCount int64             `gorm:"column:processed_count;not null;default:0"`
	TotalEstimate  int64             `gorm:"column:total_estimate;not null;default:0"`
	Metadata       datatypes.JSONMap `gorm:"column:metadata"`
	StartedAt      time.Time         `gorm:"column:started_at;not null"`
	LastBatchAt    *time.Time        `gorm:"column:last_batch_at"`
	CompletedAt    *time.Time        `gorm:"column:completed_at"`
	UpdatedAt      time.Time         `gorm:"column:updated_at;not null"`
}

func (PostScan) TableName() string { return "post_scans" }

// ScanProgress is the read-only snapshot exposed to callers.
type ScanProgress struct {
	ScanID         string     `json:"scan_id,omitempty"`
	Status         Status     `json:"status"`
	PostTypes      []string   `json:"post_types"`
	CursorOffset   int64      `json:"cursor_offset"`
	ProcessedCount int64      `json:"processed_count"`
	TotalEstimate  int64      `json:"total_estimate"`
	StartedAt      *time.Time `json:"started_at"`
	LastBatchAt    *time.Time `json:"last_batch_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

// BatchRequest selects the types a batch runs over. BatchIndex is the
// caller's tick counter and is only logged.
type BatchRequest struct {
	PostTypes  []string
	BatchIndex int
}

type BatchResult struct {
	ScanID    string
	Processed int
	Exhausted bool
}
