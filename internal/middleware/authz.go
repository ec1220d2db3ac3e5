package middleware

import (
	"net/http"
	"strings"

	"crewboard/backend/internal/utils"

	"github.com/gin-gonic/gin"
)

type AuthzConfig struct {
	// Secret overrides the JWT_SECRET env var; used by tests.
	Secret string
}

// AuthzMiddleware validates the bearer token and exposes the viewer identity
// (user_id, user_name, role) to downstream handlers. The board's visibility
// rules hang off these three values.
func AuthzMiddleware(cfg AuthzConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		secret := cfg.Secret
		if secret == "" {
			secret = utils.GetEnv("JWT_SECRET", "default_secret_change_in_production")
		}

		claims, err := utils.ParseJWT(strings.TrimPrefix(header, "Bearer "), secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		userID, _ := claims["user_id"].(string)
		if userID == "" || !utils.IsValidUUID(userID) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token subject"})
			return
		}

		name, _ := claims["name"].(string)
		role, _ := claims["role"].(string)
		if role == "" {
			role = "employee"
		}

		c.Set("user_id", userID)
		c.Set("user_name", name)
		c.Set("role", role)
		c.Next()
	}
}
