package front

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joinarr/joinarr/internal/auth"
	"github.com/joinarr/joinarr/internal/config"
	"github.com/joinarr/joinarr/internal/db"
	"github.com/joinarr/joinarr/internal/provision"
	"github.com/joinarr/joinarr/internal/ratelimit"
	"github.com/joinarr/joinarr/internal/store"
)

type testEnv struct {
	engine  *gin.Engine
	invites *store.Invites
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := "file:" + filepath.Join(t.TempDir(), "joinarr-test.db")
	conn, err := db.Open(dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	users := store.NewUsers(conn)
	invites := store.NewInvites(conn)
	limiter := ratelimit.NewLimiter(ratelimit.NewMemoryStore(), config.DefaultRateLimitConfig(), nil)
	jwtCfg := config.JWTConfig{Secret: "test-secret", Expiry: time.Hour, AdminExpiry: time.Hour}
	gateway := auth.NewGateway(users, limiter, jwtCfg)
	registrar := provision.NewService(users, invites, nil, config.DefaultPasswordPolicy(), time.Second)

	engine := gin.New()
	RegisterFrontRoutes(engine, gateway, registrar, users, jwtCfg)
	return &testEnv{engine: engine, invites: invites}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if errEncode := json.NewEncoder(&buf).Encode(body); errEncode != nil {
			t.Fatalf("encode body: %v", errEncode)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.engine.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	out := map[string]any{}
	if errDecode := json.Unmarshal(rec.Body.Bytes(), &out); errDecode != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), errDecode)
	}
	return out
}

func TestRegisterLoginProfileFlow(t *testing.T) {
	env := newTestEnv(t)

	row, errGen := env.invites.Generate(context.Background(), 1)
	if errGen != nil {
		t.Fatalf("generate invite: %v", errGen)
	}

	rec := env.do(t, http.MethodPost, "/v0/register", "", map[string]string{
		"invite_code": row.Code,
		"username":    "alice",
		"email":       "alice@example.com",
		"password":    "Str0ng!pass",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: status %d body %s", rec.Code, rec.Body.String())
	}
	if body := decodeJSON(t, rec); body["status"] != string(provision.StatusSuccess) {
		t.Fatalf("register: unexpected body %v", body)
	}

	rec = env.do(t, http.MethodPost, "/v0/login", "", map[string]string{
		"username": "alice",
		"password": "Str0ng!pass",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login: status %d body %s", rec.Code, rec.Body.String())
	}
	token, _ := decodeJSON(t, rec)["token"].(string)
	if token == "" {
		t.Fatalf("login: missing token")
	}

	rec = env.do(t, http.MethodGet, "/v0/me", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("me: status %d body %s", rec.Code, rec.Body.String())
	}
	if body := decodeJSON(t, rec); body["username"] != "alice" {
		t.Fatalf("me: unexpected body %v", body)
	}

	// The consumed code cannot be redeemed again.
	rec = env.do(t, http.MethodPost, "/v0/register", "", map[string]string{
		"invite_code": row.Code,
		"username":    "bob",
		"email":       "bob@example.com",
		"password":    "Str0ng!pass",
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("reused code: status %d body %s", rec.Code, rec.Body.String())
	}
}

func TestRegister_UnknownCodeForbidden(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/v0/register", "", map[string]string{
		"invite_code": "AAAA-BBBB-CCCC",
		"username":    "alice",
		"email":       "alice@example.com",
		"password":    "Str0ng!pass",
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status %d body %s", rec.Code, rec.Body.String())
	}
}

func TestRegister_WeakPasswordBadRequest(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/v0/register", "", map[string]string{
		"invite_code": "AAAA-BBBB-CCCC",
		"username":    "alice",
		"email":       "alice@example.com",
		"password":    "weak",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d body %s", rec.Code, rec.Body.String())
	}
}

func TestLogin_RateLimitedAfterRepeatedFailures(t *testing.T) {
	env := newTestEnv(t)

	for i := 0; i < 5; i++ {
		rec := env.do(t, http.MethodPost, "/v0/login", "", map[string]string{
			"username": "ghost",
			"password": "wrong",
		})
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d: status %d", i+1, rec.Code)
		}
	}

	rec := env.do(t, http.MethodPost, "/v0/login", "", map[string]string{
		"username": "ghost",
		"password": "wrong",
	})
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status %d body %s", rec.Code, rec.Body.String())
	}
	body := decodeJSON(t, rec)
	if _, ok := body["retry_after"].(float64); !ok {
		t.Fatalf("expected numeric retry_after, got %v", body)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}
}

func TestProfile_RequiresToken(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/v0/me", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/v0/me", "not-a-token", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status %d", rec.Code)
	}
}
