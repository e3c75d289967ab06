package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Scopes granted to calling services.
const (
	ScopeAssess  = "assessments:write"
	ScopeRefresh = "knowledge:refresh"
)

// RequireScope rejects callers whose token lacks scope. It must run after
// RequireAuth.
func RequireScope(scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !HasScope(c, scope) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   "Forbidden",
				"message": "Token lacks required scope " + scope,
			})
			return
		}
		c.Next()
	}
}

// HasScope reports whether the authenticated caller holds scope.
func HasScope(c *gin.Context, scope string) bool {
	raw, ok := c.Get(ContextScopes)
	if !ok {
		return false
	}
	scopes, _ := raw.([]string)
	for _, s := range scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// ClientID returns the authenticated caller, or "anonymous".
func ClientID(c *gin.Context) string {
	if id := c.GetString(ContextClientID); id != "" {
		return id
	}
	return "anonymous"
}
