package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/calendint/backend/internal/access"
	"github.com/calendint/backend/internal/auth"
	"github.com/calendint/backend/pkg/response"
)

// ContextActor is the key for the request's *access.Actor in gin context.
const ContextActor = "actor"

// ActorSource loads authorization snapshots.
type ActorSource interface {
	Load(ctx context.Context, userID uuid.UUID) (*access.Actor, error)
}

// Actor loads the authenticated user's roles and groups once per request. Run it
// after JWT or OptionalJWT. A token for a user that no longer exists gets 401.
// When the snapshot cannot be loaded the request fails with 503 instead of
// continuing as anonymous.
func Actor(source ActorSource, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		v, ok := c.Get(ContextUserID)
		if !ok {
			c.Next()
			return
		}
		userID, _ := v.(uuid.UUID)
		actor, err := source.Load(c.Request.Context(), userID)
		if errors.Is(err, auth.ErrUserNotFound) {
			response.Abort(c, http.StatusUnauthorized, "user no longer exists")
			return
		}
		if err != nil {
			logger.Warn("load actor", zap.String("user_id", userID.String()), zap.String("request_id", RequestID(c)), zap.Error(err))
			response.Abort(c, http.StatusServiceUnavailable, "authorization data unavailable")
			return
		}
		c.Set(ContextActor, actor)
		c.Next()
	}
}

// CurrentActor returns the request's actor, or nil for anonymous requests.
func CurrentActor(c *gin.Context) *access.Actor {
	v, ok := c.Get(ContextActor)
	if !ok {
		return nil
	}
	a, _ := v.(*access.Actor)
	return a
}

// Deny writes a denial: 401 when the caller is not logged in, 403 otherwise.
func Deny(c *gin.Context, reason access.DenialReason) {
	if reason == access.ReasonNotLoggedIn {
		response.Unauthorized(c, string(reason))
		return
	}
	response.Forbidden(c, string(reason))
}

// Allowed writes the denial and returns false when ok is false.
func Allowed(c *gin.Context, ok bool, reason access.DenialReason) bool {
	if !ok {
		Deny(c, reason)
	}
	return ok
}
