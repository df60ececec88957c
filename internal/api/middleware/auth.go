package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/timmy/shareledger/internal/logger"
)

const identityKey = "identity"

// TokenVerifier returns the identity carried by a bearer token.
type TokenVerifier interface {
	Verify(raw string) (string, error)
}

// Auth rejects requests without a valid "Authorization: Bearer <token>"
// header and stores the token subject as the caller identity.
func Auth(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Missing Authorization Header",
			})
			return
		}

		subject, err := verifier.Verify(raw)
		if err != nil {
			GetLogger(c).WithError(err).Debug("Token rejected")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid or expired token",
			})
			return
		}

		c.Set(identityKey, subject)
		c.Request = c.Request.WithContext(logger.SetUserID(c.Request.Context(), subject))
		c.Next()
	}
}

// Identity returns the authenticated caller, or "" outside Auth.
func Identity(c *gin.Context) string {
	return c.GetString(identityKey)
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
