package app

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joinarr/joinarr/internal/models"
	"github.com/joinarr/joinarr/internal/security"
	internalsettings "github.com/joinarr/joinarr/internal/settings"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// First-run bootstrap environment overrides.
const (
	EnvAdminUsername = "ADMIN_USERNAME"
	EnvAdminPassword = "ADMIN_PASSWORD"
	EnvSiteName      = "SITE_NAME"
)

// defaultAdminUsername is used when the environment provides none.
const defaultAdminUsername = "admin"

// HasAdminInitialized reports whether an admin account exists.
func HasAdminInitialized(conn *gorm.DB) (bool, error) {
	if conn == nil {
		return false, fmt.Errorf("check admin: nil connection")
	}
	var count int64
	if errCount := conn.Model(&models.User{}).Where("is_admin = ?", true).Count(&count).Error; errCount != nil {
		return false, fmt.Errorf("check admin: %w", errCount)
	}
	return count > 0, nil
}

// EnsureAdmin creates the first admin account on a fresh database. The
// credentials come from the environment; a missing password is generated and
// logged exactly once.
func EnsureAdmin(conn *gorm.DB) error {
	initialized, errInit := HasAdminInitialized(conn)
	if errInit != nil {
		return errInit
	}
	if initialized {
		return nil
	}

	username := strings.TrimSpace(os.Getenv(EnvAdminUsername))
	if username == "" {
		username = defaultAdminUsername
	}
	password := strings.TrimSpace(os.Getenv(EnvAdminPassword))
	generated := false
	if password == "" {
		random, errRandom := security.GenerateRandomString(18)
		if errRandom != nil {
			return fmt.Errorf("generate admin password: %w", errRandom)
		}
		password = random
		generated = true
	}

	if errCreate := CreateAdminUserWithConn(conn, username, password, os.Getenv(EnvSiteName)); errCreate != nil {
		return errCreate
	}
	if generated {
		log.Warnf("created admin %q with generated password: %s (change it after first login)", username, password)
	} else {
		log.Infof("created admin %q from environment", username)
	}
	return nil
}

// CreateAdminUserWithConn creates an admin user and seeds the site name.
func CreateAdminUserWithConn(conn *gorm.DB, username, password, siteName string) error {
	if conn == nil {
		return fmt.Errorf("create admin: nil connection")
	}

	hashedPassword, errHash := security.HashPassword(password)
	if errHash != nil {
		return fmt.Errorf("hash password: %w", errHash)
	}

	now := time.Now().UTC()
	admin := models.User{
		Username:  username,
		Password:  hashedPassword,
		IsAdmin:   true,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if errCreate := conn.Create(&admin).Error; errCreate != nil {
		return fmt.Errorf("create admin: %w", errCreate)
	}

	return upsertSiteNameSetting(conn, siteName)
}

// upsertSiteNameSetting stores the SITE_NAME setting in the database.
func upsertSiteNameSetting(conn *gorm.DB, siteName string) error {
	normalized := strings.TrimSpace(siteName)
	if normalized == "" {
		normalized = internalsettings.DefaultSiteName
	}
	if errUpsert := internalsettings.Upsert(conn, internalsettings.SiteNameKey, normalized); errUpsert != nil {
		return fmt.Errorf("seed site name: %w", errUpsert)
	}
	return nil
}
