// Package app wires configuration, storage, and HTTP routing into a runnable
// server.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	internalauth "github.com/joinarr/joinarr/internal/auth"
	"github.com/joinarr/joinarr/internal/config"
	"github.com/joinarr/joinarr/internal/db"
	adminapi "github.com/joinarr/joinarr/internal/http/api/admin"
	"github.com/joinarr/joinarr/internal/http/api/front"
	"github.com/joinarr/joinarr/internal/invite"
	"github.com/joinarr/joinarr/internal/provision"
	"github.com/joinarr/joinarr/internal/ratelimit"
	internalsettings "github.com/joinarr/joinarr/internal/settings"
	"github.com/joinarr/joinarr/internal/store"
	log "github.com/sirupsen/logrus"
)

// purgeInterval paces the idle rate-limit entry sweep.
const purgeInterval = time.Hour

// Migrate opens the database and runs migrations.
func Migrate(ctx context.Context, cfg config.AppConfig) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	dsn, err := config.LoadDatabaseDSN(configPath)
	if err != nil {
		return err
	}
	conn, err := db.Open(dsn)
	if err != nil {
		return err
	}
	return db.Migrate(conn)
}

// RunServer boots the registration and auth server with database-backed
// components.
func RunServer(ctx context.Context, cfg config.AppConfig, defaultPort int) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	dsn, err := config.LoadDatabaseDSN(configPath)
	if err != nil {
		return err
	}
	conn, err := db.Open(dsn)
	if err != nil {
		return err
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}
	internalsettings.Bind(conn)

	jwtConfig, _ := config.LoadJWTConfig(configPath)
	if jwtConfig.Secret == "" {
		return fmt.Errorf("jwt secret is required (set `jwt.secret` in config or %s)", config.EnvJWTSecret)
	}
	rateLimitConfig, errRate := config.LoadRateLimitConfig(configPath)
	if errRate != nil {
		return errRate
	}
	passwordPolicy, errPolicy := config.LoadPasswordPolicy(configPath)
	if errPolicy != nil {
		return errPolicy
	}
	provisionersConfig, errProvisioners := config.LoadProvisionersConfig(configPath)
	if errProvisioners != nil {
		return errProvisioners
	}

	if errAdmin := EnsureAdmin(conn); errAdmin != nil {
		return errAdmin
	}

	users := store.NewUsers(conn)
	invites := store.NewInvites(conn)

	limitStore := ratelimit.NewManager(nil, ratelimit.NewGormStore(conn), nil, nil)
	limiter := ratelimit.NewLimiter(limitStore, rateLimitConfig, nil)
	gateway := internalauth.NewGateway(users, limiter, jwtConfig)

	provisioners := map[invite.Purpose]provision.Provisioner{
		invite.PurposePlex:       provision.NewPlexProvisioner(provisionersConfig.Plex),
		invite.PurposeAudiobooks: provision.NewAudiobookshelfProvisioner(provisionersConfig.Audiobookshelf),
	}
	registrar := provision.NewService(users, invites, provisioners, passwordPolicy, provisionersConfig.MaxTimeout())

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	front.RegisterFrontRoutes(engine, gateway, registrar, users, jwtConfig)
	adminapi.RegisterAdminRoutes(engine, conn, gateway, users, invites, jwtConfig)

	go runPurgeLoop(ctx, limiter, rateLimitConfig.PurgeAfter)

	port := defaultPort
	if port <= 0 {
		port = 8417
	}
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: engine,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if errShutdown := srv.Shutdown(shutdownCtx); errShutdown != nil {
			log.Errorf("server shutdown error: %v", errShutdown)
		}
	}()

	log.Infof("starting server on %s with config=%s", srv.Addr, configPath)
	if errListen := srv.ListenAndServe(); errListen != nil && !errors.Is(errListen, http.ErrServerClosed) {
		return errListen
	}
	return nil
}

// runPurgeLoop sweeps idle rate-limit entries until the context is canceled.
func runPurgeLoop(ctx context.Context, limiter *ratelimit.Limiter, idle time.Duration) {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, errPurge := limiter.PurgeIdle(ctx, idle)
			if errPurge != nil {
				log.Errorf("rate limit purge error: %v", errPurge)
				continue
			}
			if removed > 0 {
				log.Infof("rate limit purge removed %d idle entries", removed)
			}
		}
	}
}
