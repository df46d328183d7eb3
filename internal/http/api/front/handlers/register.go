package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/joinarr/joinarr/internal/auth"
	"github.com/joinarr/joinarr/internal/invite"
	"github.com/joinarr/joinarr/internal/password"
	"github.com/joinarr/joinarr/internal/provision"
	"github.com/joinarr/joinarr/internal/store"
)

// RegisterHandler serves invite-gated self-service registration.
type RegisterHandler struct {
	gateway   *auth.Gateway
	registrar *provision.Service
}

// NewRegisterHandler constructs a RegisterHandler.
func NewRegisterHandler(gateway *auth.Gateway, registrar *provision.Service) *RegisterHandler {
	return &RegisterHandler{gateway: gateway, registrar: registrar}
}

// registerRequest defines the request body for registration.
type registerRequest struct {
	InviteCode string `json:"invite_code"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	Purpose    string `json:"purpose"`
}

// Register redeems an invite code and creates the account. Registration
// attempts count against the caller's rate-limit window like any other
// credential-bearing request.
func (h *RegisterHandler) Register(c *gin.Context) {
	var body registerRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	origin := c.ClientIP()
	if errGate := h.gateway.CheckOrigin(c.Request.Context(), origin); errGate != nil {
		var blocked *auth.BlockedError
		if errors.As(errGate, &blocked) {
			writeRateLimited(c, blocked)
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "registration failed"})
		return
	}

	result, errRegister := h.registrar.Register(c.Request.Context(), provision.RegisterInput{
		InviteCode: body.InviteCode,
		Username:   body.Username,
		Email:      body.Email,
		Password:   body.Password,
		Purpose:    body.Purpose,
	})
	if errRegister != nil {
		h.writeRegisterError(c, origin, errRegister)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"status":   string(result.Status),
		"id":       result.UserID,
		"username": result.Username,
		"purpose":  string(result.Purpose),
		"message":  registerMessage(result),
	})
}

func (h *RegisterHandler) writeRegisterError(c *gin.Context, origin string, errRegister error) {
	switch {
	case errors.Is(errRegister, store.ErrInvalidCode),
		errors.Is(errRegister, store.ErrAlreadyConsumed),
		errors.Is(errRegister, store.ErrRevoked):
		h.gateway.NoteFailure(c.Request.Context(), origin)
		c.JSON(http.StatusForbidden, gin.H{"error": errRegister.Error()})
	case errors.Is(errRegister, store.ErrUsernameTaken),
		errors.Is(errRegister, store.ErrEmailTaken):
		c.JSON(http.StatusConflict, gin.H{"error": errRegister.Error()})
	case errors.Is(errRegister, provision.ErrInvalidUsername),
		errors.Is(errRegister, provision.ErrInvalidEmail),
		errors.Is(errRegister, invite.ErrUnknownPurpose),
		password.IsPolicyViolation(errRegister):
		c.JSON(http.StatusBadRequest, gin.H{"error": errRegister.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "registration failed"})
	}
}

func registerMessage(result provision.Result) string {
	if result.Status == provision.StatusPartial {
		return "account created; remote access could not be granted yet, an administrator will follow up"
	}
	return "account created"
}
