package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/whistleblower-api/internal/middleware"
	"github.com/noah-isme/whistleblower-api/internal/models"
)

// User agents longer than this are truncated before they reach the audit log.
const maxUserAgentLength = 255

// claimsFromContext returns the administrator claims set by the JWT
// middleware, or nil for anonymous callers.
func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, _ := value.(*models.JWTClaims)
	return claims
}

// requestOrigin returns the client address and user agent recorded in audit
// entries for administrator actions.
func requestOrigin(c *gin.Context) (ip, userAgent string) {
	userAgent = c.GetHeader("User-Agent")
	if len(userAgent) > maxUserAgentLength {
		userAgent = userAgent[:maxUserAgentLength]
	}
	return c.ClientIP(), userAgent
}
