package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/wastetrack/anomaly-service/internal/models"
)

// principalCtxKey is the Gin context key used to store the authenticated caller.
const principalCtxKey = "principal"

// APIKeyMiddleware maps X-API-Key → Principal. In production this mapping
// would typically come from IAM/JWT/Secret Manager.
func APIKeyMiddleware(keys map[string]models.Principal) gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := strings.TrimSpace(c.GetHeader("X-API-Key"))
		principal, ok := keys[apiKey]
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Set(principalCtxKey, principal)
		c.Next()
	}
}

// RequireRole rejects authenticated callers whose role does not match.
// 403, not 401: the caller is known, just not allowed here.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if Caller(c).Role != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}

// Caller returns the authenticated principal from the request context.
func Caller(c *gin.Context) models.Principal {
	v, _ := c.Get(principalCtxKey)
	p, _ := v.(models.Principal)
	return p
}
