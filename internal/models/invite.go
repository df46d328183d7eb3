package models

import (
	"time"

	"gorm.io/datatypes"
)

// Invite represents a single-use invite code and its consumption state.
type Invite struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Code        string `gorm:"type:text;not null;uniqueIndex"` // Human-readable invite code.
	CreatedByID uint64 `gorm:"index"`                          // Issuing admin user ID.

	Active bool `gorm:"not null;default:true"` // False once revoked; permanent.

	ConsumedBy string     `gorm:"type:text"` // Username that redeemed the code.
	ConsumedAt *time.Time ``                 // Redemption timestamp; nil while unconsumed.
	Purpose    string     `gorm:"type:text"` // Redemption flow: plex, audiobooks, or registration.

	Detail datatypes.JSON `gorm:"type:json"` // Provisioning outcome detail for admin follow-up.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// Consumed reports whether the invite has been redeemed.
func (i *Invite) Consumed() bool {
	return i != nil && i.ConsumedAt != nil
}
