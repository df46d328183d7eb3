package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/joinarr/joinarr/internal/models"
)

func newTestUser(username, email string) *models.User {
	return &models.User{
		Username: username,
		Email:    email,
		Password: "$2a$10$notarealhashnotarealhashnotarealhashno",
		Active:   true,
	}
}

func TestCreate_RejectsCaseInsensitiveUsernameConflict(t *testing.T) {
	ctx := context.Background()
	users := NewUsers(openTestDB(t))

	if errCreate := users.Create(ctx, newTestUser("Alice", "alice@example.com")); errCreate != nil {
		t.Fatalf("create: %v", errCreate)
	}
	errCreate := users.Create(ctx, newTestUser("alice", "other@example.com"))
	if !errors.Is(errCreate, ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", errCreate)
	}
}

func TestCreate_RejectsCaseInsensitiveEmailConflict(t *testing.T) {
	ctx := context.Background()
	users := NewUsers(openTestDB(t))

	if errCreate := users.Create(ctx, newTestUser("alice", "Alice@Example.com")); errCreate != nil {
		t.Fatalf("create: %v", errCreate)
	}
	errCreate := users.Create(ctx, newTestUser("bob", "alice@example.com"))
	if !errors.Is(errCreate, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", errCreate)
	}
}

func TestCreate_ConcurrentSameUsernameYieldsOneAccount(t *testing.T) {
	ctx := context.Background()
	conn := openTestDB(t)
	users := NewUsers(conn)

	const racers = 10
	results := make([]error, racers)
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = users.Create(ctx, newTestUser("carol", fmt.Sprintf("carol%d@example.com", i)))
		}(i)
	}
	wg.Wait()

	var successes int
	for i, errCreate := range results {
		if errCreate == nil {
			successes++
			continue
		}
		if !errors.Is(errCreate, ErrUsernameTaken) {
			t.Fatalf("racer %d: unexpected error %v", i, errCreate)
		}
	}
	if successes != 1 {
		t.Fatalf("expected exactly one create to win, got %d", successes)
	}

	var count int64
	if errCount := conn.Model(&models.User{}).Count(&count).Error; errCount != nil {
		t.Fatalf("count: %v", errCount)
	}
	if count != 1 {
		t.Fatalf("expected one row, got %d", count)
	}
}

func TestFindByUsername_IsCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	users := NewUsers(openTestDB(t))

	if errCreate := users.Create(ctx, newTestUser("Dave", "dave@example.com")); errCreate != nil {
		t.Fatalf("create: %v", errCreate)
	}
	found, errFind := users.FindByUsername(ctx, "dAvE")
	if errFind != nil {
		t.Fatalf("find: %v", errFind)
	}
	if found.Username != "Dave" {
		t.Fatalf("expected original casing preserved, got %q", found.Username)
	}

	if _, errMiss := users.FindByUsername(ctx, "nobody"); !errors.Is(errMiss, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", errMiss)
	}
}

func TestSetActive_TogglesWithoutDeleting(t *testing.T) {
	ctx := context.Background()
	users := NewUsers(openTestDB(t))

	user := newTestUser("erin", "erin@example.com")
	if errCreate := users.Create(ctx, user); errCreate != nil {
		t.Fatalf("create: %v", errCreate)
	}
	if errSet := users.SetActive(ctx, user.ID, false); errSet != nil {
		t.Fatalf("set active: %v", errSet)
	}
	found, _ := users.FindByID(ctx, user.ID)
	if found.Active {
		t.Fatalf("expected user to be inactive")
	}

	if errSet := users.SetActive(ctx, 9999, false); !errors.Is(errSet, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", errSet)
	}
}

func TestDelete_RefusesAdminAccounts(t *testing.T) {
	ctx := context.Background()
	users := NewUsers(openTestDB(t))

	admin := newTestUser("root", "root@example.com")
	admin.IsAdmin = true
	if errCreate := users.Create(ctx, admin); errCreate != nil {
		t.Fatalf("create: %v", errCreate)
	}
	if errDelete := users.Delete(ctx, admin.ID); !errors.Is(errDelete, ErrAdminImmutable) {
		t.Fatalf("expected ErrAdminImmutable, got %v", errDelete)
	}

	user := newTestUser("frank", "frank@example.com")
	if errCreate := users.Create(ctx, user); errCreate != nil {
		t.Fatalf("create: %v", errCreate)
	}
	if errDelete := users.Delete(ctx, user.ID); errDelete != nil {
		t.Fatalf("delete: %v", errDelete)
	}
	if _, errFind := users.FindByID(ctx, user.ID); !errors.Is(errFind, ErrUserNotFound) {
		t.Fatalf("expected user to be gone, got %v", errFind)
	}
}

func TestResetPassword_ReplacesHash(t *testing.T) {
	ctx := context.Background()
	users := NewUsers(openTestDB(t))

	user := newTestUser("grace", "grace@example.com")
	if errCreate := users.Create(ctx, user); errCreate != nil {
		t.Fatalf("create: %v", errCreate)
	}
	if errReset := users.ResetPassword(ctx, user.ID, "new-hash"); errReset != nil {
		t.Fatalf("reset: %v", errReset)
	}
	found, _ := users.FindByID(ctx, user.ID)
	if found.Password != "new-hash" {
		t.Fatalf("expected hash to be replaced")
	}
}
