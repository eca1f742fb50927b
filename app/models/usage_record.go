package models

import "time"

// UsageRecord counts quota-gated operations per user and UTC month ("YYYY-MM").
type UsageRecord struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    string    `gorm:"type:char(36);not null;uniqueIndex:ux_usage_records_user_month,priority:1" json:"user_id"`
	Month     string    `gorm:"type:char(7);not null;uniqueIndex:ux_usage_records_user_month,priority:2" json:"month"`
	Count     int       `gorm:"not null;default:0" json:"count"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
