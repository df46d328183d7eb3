// Package store persists users and invite codes via GORM.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	dbutil "github.com/joinarr/joinarr/internal/db"
	"github.com/joinarr/joinarr/internal/models"
	"gorm.io/gorm"
)

// Conflict and lookup errors reported by the user store.
var (
	ErrUsernameTaken  = errors.New("username already taken")
	ErrEmailTaken     = errors.New("email already taken")
	ErrUserNotFound   = errors.New("user not found")
	ErrAdminImmutable = errors.New("admin accounts cannot be deleted")
)

// Users is the credential store; it owns all User record mutations.
type Users struct {
	db *gorm.DB
}

// NewUsers constructs a Users store.
func NewUsers(db *gorm.DB) *Users {
	return &Users{db: db}
}

// Create inserts a new user. Username and email uniqueness is
// case-insensitive; under concurrent creations the functional unique
// indexes guarantee at most one insert succeeds.
func (s *Users) Create(ctx context.Context, user *models.User) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("user store: not initialized")
	}
	user.Username = strings.TrimSpace(user.Username)
	user.Email = strings.TrimSpace(user.Email)

	// Pre-check for a friendly error; the index catches races below.
	if taken, errCheck := s.usernameExists(ctx, user.Username); errCheck != nil {
		return errCheck
	} else if taken {
		return ErrUsernameTaken
	}
	if taken, errCheck := s.emailExists(ctx, user.Email); errCheck != nil {
		return errCheck
	} else if taken {
		return ErrEmailTaken
	}

	if errCreate := s.db.WithContext(ctx).Create(user).Error; errCreate != nil {
		// Lost a race: decide which conflict to report from current state.
		if taken, errCheck := s.usernameExists(ctx, user.Username); errCheck == nil && taken {
			return ErrUsernameTaken
		}
		if taken, errCheck := s.emailExists(ctx, user.Email); errCheck == nil && taken {
			return ErrEmailTaken
		}
		return fmt.Errorf("user store: create: %w", errCreate)
	}
	return nil
}

// FindByUsername returns the user with the given name, case-insensitively.
func (s *Users) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("user store: not initialized")
	}
	var user models.User
	errFind := s.db.WithContext(ctx).
		Where("LOWER(username) = LOWER(?)", strings.TrimSpace(username)).
		First(&user).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, errFind
	}
	return &user, nil
}

// FindByID returns the user with the given ID.
func (s *Users) FindByID(ctx context.Context, id uint64) (*models.User, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("user store: not initialized")
	}
	var user models.User
	if errFind := s.db.WithContext(ctx).First(&user, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, errFind
	}
	return &user, nil
}

// SetActive flips a user's active flag. Deactivation is never a deletion.
func (s *Users) SetActive(ctx context.Context, id uint64, active bool) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("user store: not initialized")
	}
	res := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", id).
		Update("active", active)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// ResetPassword replaces a user's credential hash.
func (s *Users) ResetPassword(ctx context.Context, id uint64, hash string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("user store: not initialized")
	}
	res := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", id).
		Update("password", hash)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// Delete removes a standard user. Admin-flagged users can only be
// deactivated, never removed.
func (s *Users) Delete(ctx context.Context, id uint64) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("user store: not initialized")
	}
	user, errFind := s.FindByID(ctx, id)
	if errFind != nil {
		return errFind
	}
	if user.IsAdmin {
		return ErrAdminImmutable
	}
	return s.db.WithContext(ctx).Delete(&models.User{}, id).Error
}

// List returns users ordered by creation time, optionally filtered by a
// case-insensitive username or email fragment.
func (s *Users) List(ctx context.Context, search string) ([]models.User, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("user store: not initialized")
	}
	q := s.db.WithContext(ctx).Model(&models.User{})
	if search = strings.TrimSpace(search); search != "" {
		pattern := dbutil.NormalizeLikePattern(s.db, "%"+search+"%")
		q = q.Where(
			dbutil.CaseInsensitiveLikeExpr(s.db, "username")+" OR "+
				dbutil.CaseInsensitiveLikeExpr(s.db, "email"),
			pattern,
			pattern,
		)
	}
	var rows []models.User
	if errFind := q.Order("created_at DESC").Find(&rows).Error; errFind != nil {
		return nil, errFind
	}
	return rows, nil
}

func (s *Users) usernameExists(ctx context.Context, username string) (bool, error) {
	var count int64
	errCount := s.db.WithContext(ctx).Model(&models.User{}).
		Where("LOWER(username) = LOWER(?)", username).
		Count(&count).Error
	return count > 0, errCount
}

func (s *Users) emailExists(ctx context.Context, email string) (bool, error) {
	var count int64
	errCount := s.db.WithContext(ctx).Model(&models.User{}).
		Where("LOWER(email) = LOWER(?)", email).
		Count(&count).Error
	return count > 0, errCount
}
