package domain

import "time"

// Option is one row of the options table.
type Option struct {
	Name      string     `gorm:"column:option_name;primaryKey;type:varchar(191)"`
	Value     string     `gorm:"column:option_value;type:text;not null"`
	ExpiresAt *time.Time `gorm:"column:expires_at;index"`
	UpdatedAt time.Time  `gorm:"column:updated_at;not null"`
}

// TableName sets the database table name.
func (Option) TableName() string { return "options" }
