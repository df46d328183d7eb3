package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/joinarr/joinarr/internal/db"
	"github.com/joinarr/joinarr/internal/invite"
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

func TestGenerate_ProducesWellFormedCode(t *testing.T) {
	ctx := context.Background()
	invites := NewInvites(openTestDB(t))

	row, errGen := invites.Generate(ctx, 1)
	if errGen != nil {
		t.Fatalf("generate: %v", errGen)
	}
	if !invite.ValidCodeFormat(row.Code) {
		t.Fatalf("generated code %q is malformed", row.Code)
	}
	if !row.Active {
		t.Fatalf("expected new invite to be active")
	}
	if row.Consumed() {
		t.Fatalf("expected new invite to be unconsumed")
	}
}

func TestClaim_ExactlyOneConcurrentClaimSucceeds(t *testing.T) {
	ctx := context.Background()
	invites := NewInvites(openTestDB(t))

	row, errGen := invites.Generate(ctx, 1)
	if errGen != nil {
		t.Fatalf("generate: %v", errGen)
	}

	const claimers = 50
	results := make([]error, claimers)
	var wg sync.WaitGroup
	for i := 0; i < claimers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = invites.Claim(ctx, row.Code, fmt.Sprintf("user%d", i), invite.PurposeRegistration)
		}(i)
	}
	wg.Wait()

	var successes int
	for i, errClaim := range results {
		if errClaim == nil {
			successes++
			continue
		}
		if !errors.Is(errClaim, ErrAlreadyConsumed) {
			t.Fatalf("claimer %d: unexpected error %v", i, errClaim)
		}
	}
	if successes != 1 {
		t.Fatalf("expected exactly one successful claim, got %d", successes)
	}
}

func TestClaim_DistinguishesInvalidRevokedConsumed(t *testing.T) {
	ctx := context.Background()
	invites := NewInvites(openTestDB(t))

	if errClaim := invites.Claim(ctx, "AAAA-BBBB-CCCC", "alice", invite.PurposeRegistration); !errors.Is(errClaim, ErrInvalidCode) {
		t.Fatalf("unknown code: expected ErrInvalidCode, got %v", errClaim)
	}
	if errClaim := invites.Claim(ctx, "not a code", "alice", invite.PurposeRegistration); !errors.Is(errClaim, ErrInvalidCode) {
		t.Fatalf("malformed code: expected ErrInvalidCode, got %v", errClaim)
	}

	revoked, _ := invites.Generate(ctx, 1)
	if errRevoke := invites.Revoke(ctx, revoked.Code); errRevoke != nil {
		t.Fatalf("revoke: %v", errRevoke)
	}
	if errClaim := invites.Claim(ctx, revoked.Code, "alice", invite.PurposeRegistration); !errors.Is(errClaim, ErrRevoked) {
		t.Fatalf("revoked code: expected ErrRevoked, got %v", errClaim)
	}

	consumed, _ := invites.Generate(ctx, 1)
	if errClaim := invites.Claim(ctx, consumed.Code, "alice", invite.PurposeRegistration); errClaim != nil {
		t.Fatalf("first claim: %v", errClaim)
	}
	if errClaim := invites.Claim(ctx, consumed.Code, "bob", invite.PurposeRegistration); !errors.Is(errClaim, ErrAlreadyConsumed) {
		t.Fatalf("consumed code: expected ErrAlreadyConsumed, got %v", errClaim)
	}
}

func TestClaim_NormalizesCodeCase(t *testing.T) {
	ctx := context.Background()
	invites := NewInvites(openTestDB(t))

	row, _ := invites.Generate(ctx, 1)
	lowered := " " + strings.ToLower(row.Code) + " "
	if errClaim := invites.Claim(ctx, lowered, "alice", invite.PurposePlex); errClaim != nil {
		t.Fatalf("claim with padded code: %v", errClaim)
	}

	stored, errGet := invites.Get(ctx, row.Code)
	if errGet != nil {
		t.Fatalf("get: %v", errGet)
	}
	if stored.ConsumedBy != "alice" {
		t.Fatalf("expected consumer alice, got %q", stored.ConsumedBy)
	}
	if stored.Purpose != string(invite.PurposePlex) {
		t.Fatalf("expected purpose plex, got %q", stored.Purpose)
	}
}

func TestRelease_ReturnsCodeToPool(t *testing.T) {
	ctx := context.Background()
	invites := NewInvites(openTestDB(t))

	row, _ := invites.Generate(ctx, 1)
	if errClaim := invites.Claim(ctx, row.Code, "alice", invite.PurposeRegistration); errClaim != nil {
		t.Fatalf("claim: %v", errClaim)
	}
	if errRelease := invites.Release(ctx, row.Code, "alice"); errRelease != nil {
		t.Fatalf("release: %v", errRelease)
	}
	if errClaim := invites.Claim(ctx, row.Code, "bob", invite.PurposeRegistration); errClaim != nil {
		t.Fatalf("expected released code to be claimable, got %v", errClaim)
	}
}

func TestRelease_RequiresMatchingConsumer(t *testing.T) {
	ctx := context.Background()
	invites := NewInvites(openTestDB(t))

	row, _ := invites.Generate(ctx, 1)
	if errClaim := invites.Claim(ctx, row.Code, "alice", invite.PurposeRegistration); errClaim != nil {
		t.Fatalf("claim: %v", errClaim)
	}
	if errRelease := invites.Release(ctx, row.Code, "mallory"); !errors.Is(errRelease, ErrInviteNotFound) {
		t.Fatalf("expected ErrInviteNotFound for wrong consumer, got %v", errRelease)
	}
}

func TestRevoke_IsIdempotentButRefusesConsumed(t *testing.T) {
	ctx := context.Background()
	invites := NewInvites(openTestDB(t))

	row, _ := invites.Generate(ctx, 1)
	if errRevoke := invites.Revoke(ctx, row.Code); errRevoke != nil {
		t.Fatalf("revoke: %v", errRevoke)
	}
	if errRevoke := invites.Revoke(ctx, row.Code); errRevoke != nil {
		t.Fatalf("second revoke should be a no-op, got %v", errRevoke)
	}

	used, _ := invites.Generate(ctx, 1)
	if errClaim := invites.Claim(ctx, used.Code, "alice", invite.PurposeRegistration); errClaim != nil {
		t.Fatalf("claim: %v", errClaim)
	}
	if errRevoke := invites.Revoke(ctx, used.Code); !errors.Is(errRevoke, ErrAlreadyConsumed) {
		t.Fatalf("expected ErrAlreadyConsumed, got %v", errRevoke)
	}
}

func TestAttachDetail_StoresOutcome(t *testing.T) {
	ctx := context.Background()
	invites := NewInvites(openTestDB(t))

	row, _ := invites.Generate(ctx, 1)
	detail := map[string]string{"status": "partial", "remote_error": "timeout"}
	if errAttach := invites.AttachDetail(ctx, row.Code, detail); errAttach != nil {
		t.Fatalf("attach detail: %v", errAttach)
	}

	stored, errGet := invites.Get(ctx, row.Code)
	if errGet != nil {
		t.Fatalf("get: %v", errGet)
	}
	if len(stored.Detail) == 0 {
		t.Fatalf("expected detail to be stored")
	}
}
