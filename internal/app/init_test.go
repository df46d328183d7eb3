package app

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/joinarr/joinarr/internal/db"
	"github.com/joinarr/joinarr/internal/models"
	internalsettings "github.com/joinarr/joinarr/internal/settings"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "joinarr-test.db")
	conn, err := db.Open(dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	return conn
}

func TestEnsureAdmin_CreatesAdminFromEnvironment(t *testing.T) {
	t.Setenv(EnvAdminUsername, "boss")
	t.Setenv(EnvAdminPassword, "Str0ng!pass")
	t.Setenv(EnvSiteName, "My Server")
	conn := openTestDB(t)

	if errEnsure := EnsureAdmin(conn); errEnsure != nil {
		t.Fatalf("ensure admin: %v", errEnsure)
	}

	var admin models.User
	if errFind := conn.First(&admin).Error; errFind != nil {
		t.Fatalf("find admin: %v", errFind)
	}
	if admin.Username != "boss" || !admin.IsAdmin || !admin.Active {
		t.Fatalf("unexpected admin %+v", admin)
	}
	if admin.Password == "Str0ng!pass" {
		t.Fatalf("admin password must be stored hashed")
	}

	var setting models.Setting
	if errFind := conn.Where("key = ?", internalsettings.SiteNameKey).First(&setting).Error; errFind != nil {
		t.Fatalf("find site name setting: %v", errFind)
	}
	var siteName string
	if errUnmarshal := json.Unmarshal(setting.Value, &siteName); errUnmarshal != nil {
		t.Fatalf("decode site name: %v", errUnmarshal)
	}
	if siteName != "My Server" {
		t.Fatalf("expected seeded site name, got %q", siteName)
	}
}

func TestEnsureAdmin_IsIdempotent(t *testing.T) {
	t.Setenv(EnvAdminUsername, "boss")
	t.Setenv(EnvAdminPassword, "Str0ng!pass")
	conn := openTestDB(t)

	if errEnsure := EnsureAdmin(conn); errEnsure != nil {
		t.Fatalf("first ensure: %v", errEnsure)
	}
	if errEnsure := EnsureAdmin(conn); errEnsure != nil {
		t.Fatalf("second ensure: %v", errEnsure)
	}

	var count int64
	if errCount := conn.Model(&models.User{}).Count(&count).Error; errCount != nil {
		t.Fatalf("count: %v", errCount)
	}
	if count != 1 {
		t.Fatalf("expected a single admin, got %d", count)
	}
}

func TestEnsureAdmin_GeneratesPasswordWhenUnset(t *testing.T) {
	t.Setenv(EnvAdminUsername, "")
	t.Setenv(EnvAdminPassword, "")
	conn := openTestDB(t)

	if errEnsure := EnsureAdmin(conn); errEnsure != nil {
		t.Fatalf("ensure admin: %v", errEnsure)
	}

	var admin models.User
	if errFind := conn.First(&admin).Error; errFind != nil {
		t.Fatalf("find admin: %v", errFind)
	}
	if admin.Username != "admin" {
		t.Fatalf("expected default username, got %q", admin.Username)
	}
	if admin.Password == "" {
		t.Fatalf("expected a generated password hash")
	}
}
