package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	userIDKey = "auth.user_id"
	emailKey  = "auth.email"
)

// Middleware verifies the bearer token and stores the caller's identity on
// the gin context. Missing or expired sessions get a distinct 401 message
// so clients can fall back to the signed-out state instead of showing a
// generic failure.
func Middleware(j JWT) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code": http.StatusUnauthorized, "message": "session expired",
			})
			return
		}
		claims, err := j.Verify(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code": http.StatusUnauthorized, "message": "session expired",
			})
			return
		}
		c.Set(userIDKey, claims.Subject)
		c.Set(emailKey, claims.Email)
		c.Next()
	}
}

// UserID returns the authenticated caller's user ID, if any.
func UserID(c *gin.Context) (string, bool) {
	v, ok := c.Get(userIDKey)
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}

// Email returns the authenticated caller's email, if any.
func Email(c *gin.Context) (string, bool) {
	v, ok := c.Get(emailKey)
	if !ok {
		return "", false
	}
	email, ok := v.(string)
	return email, ok
}

func bearerToken(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	parts := strings.SplitN(v, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
