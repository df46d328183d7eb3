// Package auth authenticates users and admins behind the per-origin rate
// limiter and issues session tokens.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/joinarr/joinarr/internal/config"
	"github.com/joinarr/joinarr/internal/models"
	"github.com/joinarr/joinarr/internal/ratelimit"
	"github.com/joinarr/joinarr/internal/security"
	"github.com/joinarr/joinarr/internal/store"
)

// Authentication outcomes. Credential failures are deliberately
// indistinguishable between unknown usernames and wrong passwords.
var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrAccountDisabled    = errors.New("account is disabled")
	ErrTOTPRequired       = errors.New("verification code required")
)

// BlockedError denies a request from a rate-limited origin.
type BlockedError struct {
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *BlockedError) Error() string {
	return fmt.Sprintf("too many attempts, retry in %s", e.RetryAfter.Round(time.Second))
}

// UserFinder is the slice of the credential store the gateway needs.
type UserFinder interface {
	FindByUsername(ctx context.Context, username string) (*models.User, error)
}

// Gateway authenticates credential-bearing requests. Every entry point runs
// the origin through the rate limiter before touching the credential store.
type Gateway struct {
	users   UserFinder
	limiter *ratelimit.Limiter
	jwt     config.JWTConfig
}

// NewGateway constructs a Gateway.
func NewGateway(users UserFinder, limiter *ratelimit.Limiter, jwt config.JWTConfig) *Gateway {
	return &Gateway{users: users, limiter: limiter, jwt: jwt}
}

// CheckOrigin gates a credential-bearing request. A nil return means the
// origin may proceed; otherwise the error is a *BlockedError.
func (g *Gateway) CheckOrigin(ctx context.Context, origin string) error {
	res := g.limiter.Check(ctx, origin)
	if !res.Allowed {
		return &BlockedError{RetryAfter: res.RetryAfter}
	}
	return nil
}

// NoteFailure records a failed credential check from an origin for idle
// bookkeeping. The attempt itself was already counted by CheckOrigin.
func (g *Gateway) NoteFailure(ctx context.Context, origin string) {
	g.limiter.RecordFailure(ctx, origin)
}

// Login authenticates a user and issues a session token. A fully successful
// login clears the origin's rate-limit state.
func (g *Gateway) Login(ctx context.Context, origin, username, password string) (string, *models.User, error) {
	if errGate := g.CheckOrigin(ctx, origin); errGate != nil {
		return "", nil, errGate
	}

	user, errAuth := g.verifyPassword(ctx, origin, username, password)
	if errAuth != nil {
		return "", nil, errAuth
	}
	if !user.Active {
		return "", nil, ErrAccountDisabled
	}

	token, errSign := security.IssueSessionToken(g.jwt.Secret, user.ID, user.Username, g.jwt.Expiry)
	if errSign != nil {
		return "", nil, fmt.Errorf("issue session token: %w", errSign)
	}
	g.limiter.Reset(ctx, origin)
	return token, user, nil
}

// AdminLogin authenticates an administrator and issues a shorter-lived admin
// token. Accounts with an enrolled authenticator must present a valid
// verification code.
func (g *Gateway) AdminLogin(ctx context.Context, origin, username, password, totpCode string) (string, *models.User, error) {
	if errGate := g.CheckOrigin(ctx, origin); errGate != nil {
		return "", nil, errGate
	}

	user, errAuth := g.verifyPassword(ctx, origin, username, password)
	if errAuth != nil {
		return "", nil, errAuth
	}
	if !user.IsAdmin {
		g.limiter.RecordFailure(ctx, origin)
		return "", nil, ErrInvalidCredentials
	}
	if !user.Active {
		return "", nil, ErrAccountDisabled
	}
	if secret := security.ActiveTOTPSecret(user.TOTPSecret); secret != "" {
		if totpCode == "" {
			return "", nil, ErrTOTPRequired
		}
		if !security.VerifyTOTP(secret, totpCode) {
			g.limiter.RecordFailure(ctx, origin)
			return "", nil, ErrInvalidCredentials
		}
	}

	token, errSign := security.IssueAdminToken(g.jwt.Secret, user.ID, user.Username, g.jwt.AdminExpiry)
	if errSign != nil {
		return "", nil, fmt.Errorf("issue admin token: %w", errSign)
	}
	g.limiter.Reset(ctx, origin)
	return token, user, nil
}

// verifyPassword resolves the username and checks the credential, recording a
// failure for either miss without revealing which check failed.
func (g *Gateway) verifyPassword(ctx context.Context, origin, username, password string) (*models.User, error) {
	user, errFind := g.users.FindByUsername(ctx, username)
	if errFind != nil {
		if errors.Is(errFind, store.ErrUserNotFound) {
			g.limiter.RecordFailure(ctx, origin)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("look up user: %w", errFind)
	}
	if !security.CheckPassword(user.Password, password) {
		g.limiter.RecordFailure(ctx, origin)
		return nil, ErrInvalidCredentials
	}
	return user, nil
}
