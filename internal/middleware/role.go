package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/calendint/backend/internal/access"
	"github.com/calendint/backend/pkg/response"
)

// RequireSuperadmin returns a middleware that allows only active superadmins.
// Run it after Actor.
func RequireSuperadmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := CurrentActor(c)
		switch {
		case !actor.Authenticated():
			response.Abort(c, http.StatusUnauthorized, string(access.ReasonNotLoggedIn))
		case !actor.IsSuperadmin():
			response.Abort(c, http.StatusForbidden, string(access.ReasonSuperadminOnly))
		default:
			c.Next()
		}
	}
}
