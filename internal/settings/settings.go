package settings

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/joinarr/joinarr/internal/models"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var (
	mu   sync.RWMutex
	conn *gorm.DB
)

// Bind attaches the database connection used for settings lookups.
func Bind(db *gorm.DB) {
	mu.Lock()
	defer mu.Unlock()
	conn = db
}

// DBConfigValue returns the raw JSON value stored for a settings key.
func DBConfigValue(key string) (json.RawMessage, bool) {
	mu.RLock()
	db := conn
	mu.RUnlock()
	if db == nil || key == "" {
		return nil, false
	}

	var setting models.Setting
	if errFind := db.Where("key = ?", key).First(&setting).Error; errFind != nil {
		if !errors.Is(errFind, gorm.ErrRecordNotFound) {
			log.WithError(errFind).Warnf("settings: read %s failed", key)
		}
		return nil, false
	}
	if len(setting.Value) == 0 {
		return nil, false
	}
	return json.RawMessage(setting.Value), true
}

// Upsert stores a JSON-encodable value under a settings key.
func Upsert(db *gorm.DB, key string, value any) error {
	if db == nil {
		return errors.New("settings: nil connection")
	}
	payload, errMarshal := json.Marshal(value)
	if errMarshal != nil {
		return errMarshal
	}

	res := db.Model(&models.Setting{}).Where("key = ?", key).
		Update("value", json.RawMessage(payload))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}

	setting := models.Setting{Key: key, Value: payload}
	return db.Create(&setting).Error
}
