package provision

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/joinarr/joinarr/internal/config"
	"github.com/joinarr/joinarr/internal/invite"
	"github.com/joinarr/joinarr/internal/models"
	"github.com/joinarr/joinarr/internal/password"
	"github.com/joinarr/joinarr/internal/security"
	"github.com/joinarr/joinarr/internal/store"
	log "github.com/sirupsen/logrus"
)

// Input validation errors reported before any state is touched.
var (
	ErrInvalidUsername = errors.New("username is required")
	ErrInvalidEmail    = errors.New("a valid email address is required")
)

// Status reports how far a registration got.
type Status string

const (
	// StatusSuccess means the account exists and remote provisioning (when
	// requested) completed.
	StatusSuccess Status = "success"
	// StatusPartial means the account exists but remote provisioning failed;
	// an operator should follow up.
	StatusPartial Status = "partial"
)

// Result is the outcome of a registration.
type Result struct {
	Status      Status
	UserID      uint64
	Username    string
	Purpose     invite.Purpose
	RemoteError string
}

// RegisterInput carries one registration request.
type RegisterInput struct {
	InviteCode string
	Username   string
	Email      string
	Password   string
	Purpose    string
}

// UserStore is the slice of the credential store registration needs.
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
}

// InviteLedger is the slice of the invite ledger registration needs.
type InviteLedger interface {
	Claim(ctx context.Context, code, consumer string, purpose invite.Purpose) error
	Release(ctx context.Context, code, consumer string) error
	AttachDetail(ctx context.Context, code string, detail any) error
}

// Service runs the claim-create-provision pipeline for self-service
// registration.
type Service struct {
	users        UserStore
	invites      InviteLedger
	provisioners map[invite.Purpose]Provisioner
	policy       config.PasswordPolicy
	timeout      time.Duration
	nowFn        func() time.Time
}

// NewService constructs a registration Service. Provisioners maps redemption
// purposes to their remote bindings; purposes without an entry complete as
// partial when redeemed.
func NewService(users UserStore, invites InviteLedger, provisioners map[invite.Purpose]Provisioner, policy config.PasswordPolicy, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Service{
		users:        users,
		invites:      invites,
		provisioners: provisioners,
		policy:       policy,
		timeout:      timeout,
		nowFn:        time.Now,
	}
}

// Register validates the request, claims the invite code, creates the local
// account, and provisions remote access for the code's purpose. The account
// is the source of truth: a remote failure yields a partial result, never a
// rollback of the local account. Only a username or email conflict after the
// claim releases the code.
func (s *Service) Register(ctx context.Context, in RegisterInput) (Result, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.TrimSpace(in.Email)
	if username == "" {
		return Result{}, ErrInvalidUsername
	}
	if _, errMail := mail.ParseAddress(email); errMail != nil {
		return Result{}, ErrInvalidEmail
	}
	if errPolicy := password.Validate(s.policy, in.Password); errPolicy != nil {
		return Result{}, errPolicy
	}
	purpose, errPurpose := invite.ParsePurpose(in.Purpose)
	if errPurpose != nil {
		return Result{}, errPurpose
	}

	hash, errHash := security.HashPassword(in.Password)
	if errHash != nil {
		return Result{}, fmt.Errorf("hash password: %w", errHash)
	}

	code := invite.NormalizeCode(in.InviteCode)
	if errClaim := s.invites.Claim(ctx, code, username, purpose); errClaim != nil {
		return Result{}, errClaim
	}

	user := &models.User{
		Username: username,
		Email:    email,
		Password: hash,
		Active:   true,
	}
	if errCreate := s.users.Create(ctx, user); errCreate != nil {
		// A username or email conflict is the only compensable create
		// failure; a storage error must not return the code to the pool.
		if errors.Is(errCreate, store.ErrUsernameTaken) || errors.Is(errCreate, store.ErrEmailTaken) {
			s.releaseClaim(ctx, code, username, errCreate)
		}
		return Result{}, errCreate
	}

	result := Result{
		Status:   StatusSuccess,
		UserID:   user.ID,
		Username: username,
		Purpose:  purpose,
	}
	if purpose == invite.PurposeRegistration {
		return result, nil
	}

	if errRemote := s.provisionRemote(ctx, purpose, email, username, in.Password); errRemote != nil {
		log.WithFields(log.Fields{
			"username": username,
			"purpose":  string(purpose),
		}).Errorf("remote provisioning failed: %v", errRemote)
		s.recordPartial(ctx, code, purpose, errRemote)
		result.Status = StatusPartial
		result.RemoteError = errRemote.Error()
	}
	return result, nil
}

// provisionRemote calls the purpose's binding with a bounded deadline. The
// call is detached from the request's cancellation so a dropped client
// connection cannot abandon a half-provisioned account.
func (s *Service) provisionRemote(ctx context.Context, purpose invite.Purpose, email, username, plaintext string) error {
	p, ok := s.provisioners[purpose]
	if !ok || p == nil {
		return fmt.Errorf("no provisioner configured for purpose %q", purpose)
	}
	remoteCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()
	return p.Provision(remoteCtx, email, username, plaintext)
}

// releaseClaim is the compensation path: the code returns to the pool only
// when account creation conflicted after the claim succeeded.
func (s *Service) releaseClaim(ctx context.Context, code, username string, cause error) {
	if errRelease := s.invites.Release(context.WithoutCancel(ctx), code, username); errRelease != nil {
		log.WithField("username", username).
			Errorf("failed to release invite claim after %v: %v", cause, errRelease)
	}
}

// recordPartial attaches the remote failure to the invite for operator
// follow-up. Best effort; the registration outcome does not depend on it.
func (s *Service) recordPartial(ctx context.Context, code string, purpose invite.Purpose, remoteErr error) {
	detail := map[string]any{
		"status":       string(StatusPartial),
		"purpose":      string(purpose),
		"remote_error": remoteErr.Error(),
		"at":           s.nowFn().UTC().Format(time.RFC3339),
	}
	if errAttach := s.invites.AttachDetail(context.WithoutCancel(ctx), code, detail); errAttach != nil {
		log.Errorf("failed to record provisioning outcome: %v", errAttach)
	}
}
