// Package handlers implements the public API endpoints.
package handlers

import (
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/joinarr/joinarr/internal/auth"
)

// writeRateLimited renders a 429 with machine and human retry hints.
func writeRateLimited(c *gin.Context, blocked *auth.BlockedError) {
	seconds := int64(math.Ceil(blocked.RetryAfter.Seconds()))
	if seconds < 1 {
		seconds = 1
	}
	minutes := int64(math.Ceil(blocked.RetryAfter.Minutes()))
	if minutes < 1 {
		minutes = 1
	}
	c.Header("Retry-After", strconv.FormatInt(seconds, 10))
	c.JSON(http.StatusTooManyRequests, gin.H{
		"error":       "too many attempts",
		"message":     fmt.Sprintf("Too many attempts. Try again in %d minute(s).", minutes),
		"retry_after": seconds,
	})
}
