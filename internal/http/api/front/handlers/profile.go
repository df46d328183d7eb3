package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/joinarr/joinarr/internal/store"
)

// ProfileHandler serves the authenticated user's own account view.
type ProfileHandler struct {
	users *store.Users
}

// NewProfileHandler constructs a ProfileHandler.
func NewProfileHandler(users *store.Users) *ProfileHandler {
	return &ProfileHandler{users: users}
}

// Me returns the calling user's profile.
func (h *ProfileHandler) Me(c *gin.Context) {
	userID, ok := c.Get("userID")
	id, okCast := userID.(uint64)
	if !ok || !okCast {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid session"})
		return
	}

	user, errFind := h.users.FindByID(c.Request.Context(), id)
	if errFind != nil {
		if errors.Is(errFind, store.ErrUserNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "account no longer exists"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load profile failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":         user.ID,
		"username":   user.Username,
		"email":      user.Email,
		"active":     user.Active,
		"created_at": user.CreatedAt,
	})
}
