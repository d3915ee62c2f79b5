package domain

import "time"

// Idempotency records the AI turn produced for a buffered relay carrying an
// Idempotency-Key, so that a retry with the same key replays the stored reply
// instead of writing new turns and calling the provider again.
type Idempotency struct {
	ID        string `gorm:"type:TEXT NOT NULL;primaryKey"`
	UserID    string `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_user_key,priority:1"`
	Key       string `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_user_key,priority:2"`
	MessageID string `gorm:"type:TEXT NOT NULL"` // AI turn
	// RequestHash fingerprints the message the key was first used with.
	RequestHash string    `gorm:"type:TEXT NOT NULL;default:''"`
	Status      int       `gorm:"type:INTEGER NOT NULL"`
	CreatedAt   time.Time `gorm:"type:DATETIME NOT NULL;autoCreateTime"`
	ExpiresAt   time.Time `gorm:"type:DATETIME NOT NULL;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }
