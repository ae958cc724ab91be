// README: Firebase bearer-token auth; stores caller identity on the request context.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"dot/internal/infra"
	"dot/internal/types"
)

const (
	ctxKeyUID  = "caller_uid"
	ctxKeyRole = "caller_role"
)

// Auth verifies the Authorization bearer token and records the caller's UID
// and role for downstream handlers. Requests without a valid token get 401.
func Auth(verifier infra.TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}

		token, err := verifier.VerifyIDToken(c.Request.Context(), parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		role, ok := types.ParseRole(token.Role())
		if !ok {
			// accounts without a role claim are plain customers
			role = types.RoleCustomer
		}
		c.Set(ctxKeyUID, token.UID)
		c.Set(ctxKeyRole, string(role))
		c.Next()
	}
}

// RequireRole gates a route group to one role. Runs after Auth.
func RequireRole(role types.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if CallerRole(c) != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}

func CallerUID(c *gin.Context) types.ID {
	return types.ID(c.GetString(ctxKeyUID))
}

func CallerRole(c *gin.Context) types.Role {
	return types.Role(c.GetString(ctxKeyRole))
}
