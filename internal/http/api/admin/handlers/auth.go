// Package handlers implements the admin API endpoints.
package handlers

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/joinarr/joinarr/internal/auth"
)

// AuthHandler serves admin login.
type AuthHandler struct {
	gateway *auth.Gateway
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(gateway *auth.Gateway) *AuthHandler {
	return &AuthHandler{gateway: gateway}
}

// adminLoginRequest defines the request body for admin login.
type adminLoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	TOTPCode string `json:"totp_code"`
}

// Login authenticates an admin and returns an admin token. Admins with an
// enrolled authenticator must include a verification code.
func (h *AuthHandler) Login(c *gin.Context) {
	var body adminLoginRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	token, admin, errLogin := h.gateway.AdminLogin(c.Request.Context(), c.ClientIP(), body.Username, body.Password, body.TOTPCode)
	if errLogin != nil {
		var blocked *auth.BlockedError
		switch {
		case errors.As(errLogin, &blocked):
			writeRateLimited(c, blocked)
		case errors.Is(errLogin, auth.ErrTOTPRequired):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "verification code required", "totp_required": true})
		case errors.Is(errLogin, auth.ErrInvalidCredentials):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid username or password"})
		case errors.Is(errLogin, auth.ErrAccountDisabled):
			c.JSON(http.StatusForbidden, gin.H{"error": "account is disabled"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":    token,
		"id":       admin.ID,
		"username": admin.Username,
	})
}

// writeRateLimited renders a 429 with machine and human retry hints.
func writeRateLimited(c *gin.Context, blocked *auth.BlockedError) {
	seconds := int64(math.Ceil(blocked.RetryAfter.Seconds()))
	if seconds < 1 {
		seconds = 1
	}
	minutes := int64(math.Ceil(blocked.RetryAfter.Minutes()))
	if minutes < 1 {
		minutes = 1
	}
	c.Header("Retry-After", strconv.FormatInt(seconds, 10))
	c.JSON(http.StatusTooManyRequests, gin.H{
		"error":       "too many attempts",
		"message":     fmt.Sprintf("Too many attempts. Try again in %d minute(s).", minutes),
		"retry_after": seconds,
	})
}
