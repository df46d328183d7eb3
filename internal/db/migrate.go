package db

import (
	"fmt"

	"github.com/joinarr/joinarr/internal/models"
	"gorm.io/gorm"
)

// Migrate runs database migrations for the current dialect.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}

	if errAutoMigrate := conn.AutoMigrate(
		&models.User{},
		&models.Invite{},
		&models.LoginAttempt{},
		&models.Setting{},
	); errAutoMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errAutoMigrate)
	}

	// Uniqueness of usernames and emails is case-insensitive; a functional
	// index enforces it against concurrent inserts on both dialects.
	indexes := []string{
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_users_username_lower ON users (LOWER(username))`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email_lower ON users (LOWER(email))`,
	}
	for _, stmt := range indexes {
		if errExec := conn.Exec(stmt).Error; errExec != nil {
			return fmt.Errorf("db: create index: %w", errExec)
		}
	}

	return nil
}
