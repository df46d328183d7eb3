package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/joinarr/joinarr/internal/invite"
	"github.com/joinarr/joinarr/internal/models"
	"gorm.io/gorm"
)

// Claim and lookup errors reported by the invite ledger. Invalid, consumed,
// and revoked are distinct so the caller can show an actionable message.
var (
	ErrInvalidCode     = errors.New("invalid invite code")
	ErrAlreadyConsumed = errors.New("invite code already used")
	ErrRevoked         = errors.New("invite code revoked")
	ErrInviteNotFound  = errors.New("invite not found")
)

// generateRetries bounds code regeneration on collision.
const generateRetries = 5

// Invites is the invite ledger; only the provisioning service may mutate
// consumption state.
type Invites struct {
	db *gorm.DB
}

// NewInvites constructs an Invites ledger.
func NewInvites(db *gorm.DB) *Invites {
	return &Invites{db: db}
}

// Generate creates a new invite code for an issuing admin, regenerating on
// the (unlikely) code collision.
func (s *Invites) Generate(ctx context.Context, creatorID uint64) (*models.Invite, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("invite ledger: not initialized")
	}
	for attempt := 0; attempt < generateRetries; attempt++ {
		code, errCode := invite.NewCode()
		if errCode != nil {
			return nil, errCode
		}

		var existing int64
		errCount := s.db.WithContext(ctx).Model(&models.Invite{}).
			Where("code = ?", code).
			Count(&existing).Error
		if errCount != nil {
			return nil, fmt.Errorf("invite ledger: check code: %w", errCount)
		}
		if existing > 0 {
			continue
		}

		row := models.Invite{
			Code:        code,
			CreatedByID: creatorID,
			Active:      true,
		}
		if errCreate := s.db.WithContext(ctx).Create(&row).Error; errCreate != nil {
			// A concurrent insert of the same code trips the unique
			// index; regenerate and try again.
			continue
		}
		return &row, nil
	}
	return nil, fmt.Errorf("invite ledger: could not generate a unique code")
}

// Claim atomically transitions an unconsumed, active code to consumed,
// recording the consumer, timestamp, and redemption purpose. Exactly one of
// N concurrent claims on the same code succeeds.
func (s *Invites) Claim(ctx context.Context, code, consumer string, purpose invite.Purpose) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("invite ledger: not initialized")
	}
	if _, errPurpose := invite.ParsePurpose(string(purpose)); errPurpose != nil {
		return errPurpose
	}
	code = invite.NormalizeCode(code)
	if !invite.ValidCodeFormat(code) {
		return ErrInvalidCode
	}

	now := time.Now().UTC()
	res := s.db.WithContext(ctx).Model(&models.Invite{}).
		Where("code = ? AND active = ? AND consumed_at IS NULL", code, true).
		Updates(map[string]any{
			"consumed_by": consumer,
			"consumed_at": now,
			"purpose":     string(purpose),
		})
	if res.Error != nil {
		return fmt.Errorf("invite ledger: claim: %w", res.Error)
	}
	if res.RowsAffected == 1 {
		return nil
	}

	// The guarded update matched nothing; report why.
	var row models.Invite
	errFind := s.db.WithContext(ctx).Where("code = ?", code).First(&row).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return ErrInvalidCode
		}
		return fmt.Errorf("invite ledger: claim lookup: %w", errFind)
	}
	if !row.Active {
		return ErrRevoked
	}
	if row.Consumed() {
		return ErrAlreadyConsumed
	}
	return ErrInvalidCode
}

// Release rolls a claim back. It exists solely for the provisioning
// service's compensation path when local account creation conflicts after a
// claim; no other caller may return a code to the unconsumed state.
func (s *Invites) Release(ctx context.Context, code, consumer string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("invite ledger: not initialized")
	}
	code = invite.NormalizeCode(code)
	res := s.db.WithContext(ctx).Model(&models.Invite{}).
		Where("code = ? AND consumed_by = ? AND active = ?", code, consumer, true).
		Updates(map[string]any{
			"consumed_by": "",
			"consumed_at": nil,
			"purpose":     "",
		})
	if res.Error != nil {
		return fmt.Errorf("invite ledger: release: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrInviteNotFound
	}
	return nil
}

// Revoke permanently deactivates an unconsumed code. Revoking an already
// revoked code is a no-op; a consumed code cannot be revoked.
func (s *Invites) Revoke(ctx context.Context, code string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("invite ledger: not initialized")
	}
	code = invite.NormalizeCode(code)
	res := s.db.WithContext(ctx).Model(&models.Invite{}).
		Where("code = ? AND consumed_at IS NULL", code).
		Update("active", false)
	if res.Error != nil {
		return fmt.Errorf("invite ledger: revoke: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	var row models.Invite
	errFind := s.db.WithContext(ctx).Where("code = ?", code).First(&row).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return ErrInviteNotFound
		}
		return fmt.Errorf("invite ledger: revoke lookup: %w", errFind)
	}
	if row.Consumed() {
		return ErrAlreadyConsumed
	}
	return nil
}

// Get returns the invite with the given code.
func (s *Invites) Get(ctx context.Context, code string) (*models.Invite, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("invite ledger: not initialized")
	}
	var row models.Invite
	errFind := s.db.WithContext(ctx).
		Where("code = ?", invite.NormalizeCode(code)).
		First(&row).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ErrInviteNotFound
		}
		return nil, errFind
	}
	return &row, nil
}

// List returns all invites, newest first, for admin reporting.
func (s *Invites) List(ctx context.Context) ([]models.Invite, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("invite ledger: not initialized")
	}
	var rows []models.Invite
	if errFind := s.db.WithContext(ctx).Order("created_at DESC").Find(&rows).Error; errFind != nil {
		return nil, errFind
	}
	return rows, nil
}

// AttachDetail stores a JSON provisioning outcome on the invite so an
// administrator can follow up on partial registrations.
func (s *Invites) AttachDetail(ctx context.Context, code string, detail any) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("invite ledger: not initialized")
	}
	payload, errMarshal := json.Marshal(detail)
	if errMarshal != nil {
		return errMarshal
	}
	res := s.db.WithContext(ctx).Model(&models.Invite{}).
		Where("code = ?", invite.NormalizeCode(code)).
		Update("detail", payload)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrInviteNotFound
	}
	return nil
}
