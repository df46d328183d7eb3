package models

import "time"

// User represents a local account stored in the database.
type User struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Username string `gorm:"type:text;not null"` // Unique login name (case-insensitive).
	Email    string `gorm:"type:text;not null"` // Email address (case-insensitive unique).
	Password string `gorm:"type:text;not null"` // Bcrypt hash, never plaintext.

	IsAdmin bool `gorm:"not null;default:false"` // Administrative role flag.
	Active  bool `gorm:"not null;default:true"`  // Whether the user can sign in.

	TOTPSecret string `gorm:"type:text"` // TOTP secret for admin MFA, empty when disabled.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
