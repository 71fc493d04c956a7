package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/planloom/planloom-backend/internal/platform/logger"
)

// CredentialKey is the gin context key the bearer credential is stored
// under. Authorization itself happens per-tenant inside the engine;
// this middleware only requires that a credential is present.
const CredentialKey = "credential"

type AuthMiddleware struct {
	log *logger.Logger
}

func NewAuthMiddleware(log *logger.Logger) *AuthMiddleware {
	return &AuthMiddleware{log: log.With("middleware", "AuthMiddleware")}
}

func (am *AuthMiddleware) RequireCredential() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid token"})
			return
		}
		c.Set(CredentialKey, token)
		c.Next()
	}
}

// Credential returns the bearer token stashed by RequireCredential.
func Credential(c *gin.Context) string {
	v, _ := c.Get(CredentialKey)
	s, _ := v.(string)
	return s
}

func extractToken(c *gin.Context) string {
	if qToken := c.Query("token"); qToken != "" {
		return qToken
	}
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return authHeader[7:]
	}
	return ""
}
