package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/joinarr/joinarr/internal/models"
	"github.com/joinarr/joinarr/internal/security"
	"github.com/joinarr/joinarr/internal/store"
)

// UserHandler manages user account endpoints.
type UserHandler struct {
	users *store.Users
}

// NewUserHandler constructs a UserHandler.
func NewUserHandler(users *store.Users) *UserHandler {
	return &UserHandler{users: users}
}

// List returns users, optionally filtered by a username or email fragment.
func (h *UserHandler) List(c *gin.Context) {
	rows, errList := h.users.List(c.Request.Context(), c.Query("search"))
	if errList != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list users failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, userJSON(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"users": out})
}

// Get returns a user by ID.
func (h *UserHandler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	user, errFind := h.users.FindByID(c.Request.Context(), id)
	if errFind != nil {
		if errors.Is(errFind, store.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load user failed"})
		return
	}
	c.JSON(http.StatusOK, userJSON(user))
}

// Disable deactivates a user account. The account is kept, never deleted.
func (h *UserHandler) Disable(c *gin.Context) {
	h.setActive(c, false)
}

// Enable reactivates a user account.
func (h *UserHandler) Enable(c *gin.Context) {
	h.setActive(c, true)
}

// resetPasswordRequest defines the request body for a password reset.
type resetPasswordRequest struct {
	Password string `json:"password"`
}

// ResetPassword replaces a user's password.
func (h *UserHandler) ResetPassword(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var body resetPasswordRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	password := strings.TrimSpace(body.Password)
	if password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing password"})
		return
	}

	hash, errHash := security.HashPassword(password)
	if errHash != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "hash password failed"})
		return
	}
	if errReset := h.users.ResetPassword(c.Request.Context(), id, hash); errReset != nil {
		if errors.Is(errReset, store.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "reset password failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "password updated"})
}

// Delete removes a standard user account. Admin accounts cannot be deleted.
func (h *UserHandler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if errDelete := h.users.Delete(c.Request.Context(), id); errDelete != nil {
		switch {
		case errors.Is(errDelete, store.ErrUserNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		case errors.Is(errDelete, store.ErrAdminImmutable):
			c.JSON(http.StatusForbidden, gin.H{"error": "admin accounts cannot be deleted"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "delete user failed"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (h *UserHandler) setActive(c *gin.Context, active bool) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if errSet := h.users.SetActive(c.Request.Context(), id, active); errSet != nil {
		if errors.Is(errSet, store.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update user failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"active": active})
}

func parseID(c *gin.Context) (uint64, bool) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

func userJSON(user *models.User) gin.H {
	return gin.H{
		"id":         user.ID,
		"username":   user.Username,
		"email":      user.Email,
		"is_admin":   user.IsAdmin,
		"active":     user.Active,
		"created_at": user.CreatedAt,
		"updated_at": user.UpdatedAt,
	}
}
