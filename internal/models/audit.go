package models

import "time"

// AuditRecord captures one mutation: who did it, what changed, and the
// before/after snapshots. Written in the same transaction as the change
// it describes.
type AuditRecord struct {
	ID         string `gorm:"primarykey"` // uuid
	Actor      string `gorm:"not null"`
	EntityType string `gorm:"index;not null"`
	EntityID   string `gorm:"index;not null"`
	Action     string `gorm:"not null"`
	Before     JSON   `gorm:"type:jsonb"`
	After      JSON   `gorm:"type:jsonb"`
	CreatedAt  time.Time
}
