package subscriptions

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/calendint/backend/internal/middleware"
	"github.com/calendint/backend/internal/models"
	"github.com/calendint/backend/pkg/response"
)

// Handler serves the caller's subscription endpoints. Every route requires login.
type Handler struct {
	repo   *Repository
	logger *zap.Logger
}

// NewHandler creates a subscriptions handler.
func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, logger: logger}
}

// Overview groups a user's subscriptions by kind.
type Overview struct {
	All           bool                  `json:"subscribe_all"`
	Organizations []models.Subscription `json:"organizations"`
	Tags          []models.Subscription `json:"tags"`
}

func userID(c *gin.Context) uuid.UUID {
	return c.MustGet(middleware.ContextUserID).(uuid.UUID)
}

func targetID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid id")
		return uuid.Nil, false
	}
	return id, true
}

// Mine handles GET /me/subscriptions.
func (h *Handler) Mine(c *gin.Context) {
	list, err := h.repo.ListForUser(c.Request.Context(), userID(c))
	if err != nil {
		h.logger.Error("list subscriptions", zap.Error(err))
		response.Internal(c, "failed to load subscriptions")
		return
	}
	out := Overview{Organizations: []models.Subscription{}, Tags: []models.Subscription{}}
	for _, s := range list {
		switch {
		case s.All:
			out.All = true
		case s.OrganizationID != nil:
			out.Organizations = append(out.Organizations, s)
		case s.TagID != nil:
			out.Tags = append(out.Tags, s)
		}
	}
	response.OK(c, out)
}

func (h *Handler) subscribed(c *gin.Context, s *models.Subscription, err error, what string) {
	switch {
	case err == nil:
		response.Created(c, s)
	case errors.Is(err, ErrAlreadySubscribed):
		response.Conflict(c, err.Error())
	case errors.Is(err, ErrNotFound):
		response.NotFound(c, what+" not found")
	default:
		h.logger.Error("subscribe", zap.String("target", what), zap.Error(err))
		response.Internal(c, "failed to subscribe")
	}
}

func (h *Handler) unsubscribed(c *gin.Context, err error) {
	switch {
	case err == nil:
		response.NoContent(c)
	case errors.Is(err, ErrNotFound):
		response.NotFound(c, err.Error())
	default:
		h.logger.Error("unsubscribe", zap.Error(err))
		response.Internal(c, "failed to unsubscribe")
	}
}

// SubscribeOrganization handles POST /me/subscriptions/organizations/:id.
func (h *Handler) SubscribeOrganization(c *gin.Context) {
	id, ok := targetID(c)
	if !ok {
		return
	}
	s, err := h.repo.SubscribeOrganization(c.Request.Context(), userID(c), id)
	h.subscribed(c, s, err, "organization")
}

// UnsubscribeOrganization handles DELETE /me/subscriptions/organizations/:id.
func (h *Handler) UnsubscribeOrganization(c *gin.Context) {
	id, ok := targetID(c)
	if !ok {
		return
	}
	h.unsubscribed(c, h.repo.UnsubscribeOrganization(c.Request.Context(), userID(c), id))
}

// SubscribeTag handles POST /me/subscriptions/tags/:id.
func (h *Handler) SubscribeTag(c *gin.Context) {
	id, ok := targetID(c)
	if !ok {
		return
	}
	s, err := h.repo.SubscribeTag(c.Request.Context(), userID(c), id)
	h.subscribed(c, s, err, "tag")
}

// UnsubscribeTag handles DELETE /me/subscriptions/tags/:id.
func (h *Handler) UnsubscribeTag(c *gin.Context) {
	id, ok := targetID(c)
	if !ok {
		return
	}
	h.unsubscribed(c, h.repo.UnsubscribeTag(c.Request.Context(), userID(c), id))
}

// SubscribeAll handles POST /me/subscriptions/all.
func (h *Handler) SubscribeAll(c *gin.Context) {
	if err := h.repo.SubscribeAll(c.Request.Context(), userID(c)); err != nil {
		h.logger.Error("subscribe all", zap.Error(err))
		response.Internal(c, "failed to subscribe")
		return
	}
	response.OK(c, gin.H{"subscribe_all": true})
}

// UnsubscribeAll handles DELETE /me/subscriptions/all.
func (h *Handler) UnsubscribeAll(c *gin.Context) {
	h.unsubscribed(c, h.repo.UnsubscribeAll(c.Request.Context(), userID(c)))
}
