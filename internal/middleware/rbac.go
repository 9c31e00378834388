package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/das-api/internal/models"
	appErrors "github.com/noah-isme/das-api/pkg/errors"
	"github.com/noah-isme/das-api/pkg/response"
)

// RBAC enforces role-based access control for routes. Role names compare
// case-insensitively.
func RBAC(allowed ...string) gin.HandlerFunc {
	roles := make([]models.UserRole, len(allowed))
	for i, a := range allowed {
		roles[i] = models.UserRole(a)
	}
	return func(c *gin.Context) {
		claims := Claims(c)
		if claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		if claims.Actor().HasRole(roles...) {
			c.Next()
			return
		}

		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "insufficient role"))
		c.Abort()
	}
}

// RequireRoles is a helper that accepts a list of roles.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make([]string, len(roles))
	for i, r := range roles {
		allowed[i] = string(r)
	}
	return RBAC(allowed...)
}
