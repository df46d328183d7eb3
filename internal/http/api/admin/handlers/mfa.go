package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/joinarr/joinarr/internal/models"
	"github.com/joinarr/joinarr/internal/security"
	"gorm.io/gorm"
)

// MFAHandler manages authenticator enrollment for the calling admin.
type MFAHandler struct {
	db *gorm.DB
}

// NewMFAHandler constructs an MFAHandler.
func NewMFAHandler(db *gorm.DB) *MFAHandler {
	return &MFAHandler{db: db}
}

// Status reports whether the calling admin has an authenticator enrolled.
func (h *MFAHandler) Status(c *gin.Context) {
	admin, ok := h.currentAdmin(c)
	if !ok {
		return
	}
	enrolled := security.ActiveTOTPSecret(admin.TOTPSecret) != ""
	c.JSON(http.StatusOK, gin.H{"totp_enrolled": enrolled})
}

// PrepareTOTP generates a new authenticator secret. The secret only takes
// effect once confirmed with a valid code.
func (h *MFAHandler) PrepareTOTP(c *gin.Context) {
	admin, ok := h.currentAdmin(c)
	if !ok {
		return
	}

	key, errGen := security.GenerateTOTPSecret(admin.Username)
	if errGen != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "generate secret failed"})
		return
	}
	if errSave := h.saveSecret(c, admin.ID, security.TOTPPendingPrefix+key.Secret()); errSave != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store secret failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"secret": key.Secret(),
		"url":    key.URL(),
	})
}

// confirmTOTPRequest defines the request body for confirming enrollment.
type confirmTOTPRequest struct {
	Code string `json:"code"`
}

// ConfirmTOTP activates a prepared secret after verifying one code.
func (h *MFAHandler) ConfirmTOTP(c *gin.Context) {
	admin, ok := h.currentAdmin(c)
	if !ok {
		return
	}
	var body confirmTOTPRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	secret := strings.TrimPrefix(admin.TOTPSecret, security.TOTPPendingPrefix)
	if secret == "" || secret == admin.TOTPSecret {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no pending enrollment"})
		return
	}
	if !security.VerifyTOTP(secret, strings.TrimSpace(body.Code)) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid code"})
		return
	}
	if errSave := h.saveSecret(c, admin.ID, secret); errSave != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store secret failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"totp_enrolled": true})
}

// DisableTOTP removes the calling admin's authenticator.
func (h *MFAHandler) DisableTOTP(c *gin.Context) {
	admin, ok := h.currentAdmin(c)
	if !ok {
		return
	}
	if errSave := h.saveSecret(c, admin.ID, ""); errSave != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "disable failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"totp_enrolled": false})
}

func (h *MFAHandler) currentAdmin(c *gin.Context) (*models.User, bool) {
	adminID, ok := c.Get("adminID")
	id, okCast := adminID.(uint64)
	if !ok || !okCast {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid session"})
		return nil, false
	}
	var admin models.User
	if errFind := h.db.WithContext(c.Request.Context()).First(&admin, id).Error; errFind != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "admin not found"})
		return nil, false
	}
	return &admin, true
}

func (h *MFAHandler) saveSecret(c *gin.Context, id uint64, secret string) error {
	return h.db.WithContext(c.Request.Context()).Model(&models.User{}).
		Where("id = ?", id).
		Update("totp_secret", secret).Error
}
