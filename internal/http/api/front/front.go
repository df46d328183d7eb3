// Package front registers the public self-service endpoints: registration,
// login, and the authenticated profile view.
package front

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/joinarr/joinarr/internal/auth"
	"github.com/joinarr/joinarr/internal/config"
	handlers "github.com/joinarr/joinarr/internal/http/api/front/handlers"
	"github.com/joinarr/joinarr/internal/provision"
	"github.com/joinarr/joinarr/internal/security"
	"github.com/joinarr/joinarr/internal/store"
)

// RegisterFrontRoutes registers public routes, middleware, and handlers.
func RegisterFrontRoutes(r *gin.Engine, gateway *auth.Gateway, registrar *provision.Service, users *store.Users, jwtCfg config.JWTConfig) {
	if r == nil || gateway == nil {
		return
	}

	registerHandler := handlers.NewRegisterHandler(gateway, registrar)
	r.POST("/v0/register", registerHandler.Register)

	authHandler := handlers.NewAuthHandler(gateway)
	r.POST("/v0/login", authHandler.Login)

	authed := r.Group("/v0")
	authed.Use(sessionAuthMiddleware(jwtCfg))

	profileHandler := handlers.NewProfileHandler(users)
	authed.GET("/me", profileHandler.Me)
}

// sessionAuthMiddleware validates user session JWTs and loads user context.
func sessionAuthMiddleware(jwtCfg config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == authHeader {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}
		token = strings.TrimSpace(token)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "empty token"})
			return
		}

		claims, errJWT := security.ParseSessionToken(jwtCfg.Secret, token)
		if errJWT != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set("userID", claims.UserID)
		c.Set("username", claims.Username)
		c.Next()
	}
}
