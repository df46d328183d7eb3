package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/joinarr/joinarr/internal/models"
	"github.com/joinarr/joinarr/internal/store"
)

// InviteHandler manages invite code endpoints.
type InviteHandler struct {
	invites *store.Invites
}

// NewInviteHandler constructs an InviteHandler.
func NewInviteHandler(invites *store.Invites) *InviteHandler {
	return &InviteHandler{invites: invites}
}

// Create generates a new invite code issued by the calling admin.
func (h *InviteHandler) Create(c *gin.Context) {
	adminID, _ := c.Get("adminID")
	creatorID, _ := adminID.(uint64)

	row, errGen := h.invites.Generate(c.Request.Context(), creatorID)
	if errGen != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "generate invite failed"})
		return
	}
	c.JSON(http.StatusCreated, inviteJSON(row))
}

// List returns all invites, newest first.
func (h *InviteHandler) List(c *gin.Context) {
	rows, errList := h.invites.List(c.Request.Context())
	if errList != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list invites failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, inviteJSON(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"invites": out})
}

// Get returns a single invite by code.
func (h *InviteHandler) Get(c *gin.Context) {
	row, errGet := h.invites.Get(c.Request.Context(), c.Param("code"))
	if errGet != nil {
		if errors.Is(errGet, store.ErrInviteNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load invite failed"})
		return
	}
	c.JSON(http.StatusOK, inviteJSON(row))
}

// Revoke deactivates an unconsumed invite. Revoking twice is a no-op;
// revoking a consumed invite fails.
func (h *InviteHandler) Revoke(c *gin.Context) {
	errRevoke := h.invites.Revoke(c.Request.Context(), c.Param("code"))
	if errRevoke != nil {
		switch {
		case errors.Is(errRevoke, store.ErrInviteNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		case errors.Is(errRevoke, store.ErrAlreadyConsumed):
			c.JSON(http.StatusConflict, gin.H{"error": "invite already used"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "revoke invite failed"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "revoked"})
}

func inviteJSON(row *models.Invite) gin.H {
	out := gin.H{
		"code":       row.Code,
		"active":     row.Active,
		"consumed":   row.Consumed(),
		"purpose":    row.Purpose,
		"created_by": row.CreatedByID,
		"created_at": row.CreatedAt,
	}
	if row.Consumed() {
		out["consumed_by"] = row.ConsumedBy
		out["consumed_at"] = row.ConsumedAt
	}
	if len(row.Detail) > 0 {
		out["detail"] = row.Detail
	}
	return out
}
