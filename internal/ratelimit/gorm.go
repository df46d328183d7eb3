package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/joinarr/joinarr/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore persists rate limit entries to the database.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore constructs a GormStore.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Get returns the entry for an origin, if present.
func (s *GormStore) Get(ctx context.Context, origin string) (Entry, bool, error) {
	if s == nil || s.db == nil {
		return Entry{}, false, fmt.Errorf("rate limit store: not initialized")
	}
	var row models.LoginAttempt
	errFind := s.db.WithContext(ctx).Where("origin = ?", origin).First(&row).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return Entry{}, false, nil
		}
		return Entry{}, false, errFind
	}
	return entryFromRow(row), true, nil
}

// Save upserts the entry keyed by its origin.
func (s *GormStore) Save(ctx context.Context, entry Entry) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("rate limit store: not initialized")
	}
	row := rowFromEntry(entry)
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "origin"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"attempts", "window_started_at", "last_attempt_at", "blocked", "block_expires_at",
		}),
	}).Create(&row).Error
}

// Delete removes the entry for an origin.
func (s *GormStore) Delete(ctx context.Context, origin string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("rate limit store: not initialized")
	}
	return s.db.WithContext(ctx).Where("origin = ?", origin).Delete(&models.LoginAttempt{}).Error
}

// PurgeIdle removes entries whose last attempt predates the cutoff.
func (s *GormStore) PurgeIdle(ctx context.Context, before time.Time) (int64, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("rate limit store: not initialized")
	}
	res := s.db.WithContext(ctx).Where("last_attempt_at < ?", before).Delete(&models.LoginAttempt{})
	return res.RowsAffected, res.Error
}

func entryFromRow(row models.LoginAttempt) Entry {
	entry := Entry{
		Origin:          row.Origin,
		Attempts:        row.Attempts,
		WindowStartedAt: row.WindowStartedAt,
		LastAttemptAt:   row.LastAttemptAt,
		Blocked:         row.Blocked,
	}
	if row.BlockExpiresAt != nil {
		entry.BlockExpiresAt = *row.BlockExpiresAt
	}
	return entry
}

func rowFromEntry(entry Entry) models.LoginAttempt {
	row := models.LoginAttempt{
		Origin:          entry.Origin,
		Attempts:        entry.Attempts,
		WindowStartedAt: entry.WindowStartedAt,
		LastAttemptAt:   entry.LastAttemptAt,
		Blocked:         entry.Blocked,
	}
	if entry.Blocked {
		expiry := entry.BlockExpiresAt
		row.BlockExpiresAt = &expiry
	}
	return row
}
