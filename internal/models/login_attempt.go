package models

import "time"

// LoginAttempt tracks credential-check attempts for one client origin.
type LoginAttempt struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Origin string `gorm:"type:text;not null;uniqueIndex"` // Client network identifier.

	Attempts        int       `gorm:"not null;default:0"` // Attempts within the current window.
	WindowStartedAt time.Time `gorm:"not null"`           // First attempt of the current window.
	LastAttemptAt   time.Time `gorm:"not null"`           // Most recent attempt.

	Blocked        bool       `gorm:"not null;default:false"` // Whether the origin is blocked.
	BlockExpiresAt *time.Time ``                              // When the block lifts; nil unless blocked.
}
