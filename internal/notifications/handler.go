package notifications

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/calendint/backend/internal/access"
	"github.com/calendint/backend/internal/events"
	"github.com/calendint/backend/internal/middleware"
	"github.com/calendint/backend/internal/models"
	"github.com/calendint/backend/pkg/response"
)

// EditableEvents resolves an event the actor may edit.
type EditableEvents interface {
	Editable(ctx context.Context, a *access.Actor, id uuid.UUID) (*models.Event, error)
}

// Handler handles notification log endpoints.
type Handler struct {
	repo   *Repository
	events EditableEvents
	logger *zap.Logger
}

// NewHandler creates a notification log handler.
func NewHandler(repo *Repository, ev EditableEvents, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, events: ev, logger: logger}
}

// ListByEvent handles GET /events/:id/notifications for users who may edit the event.
func (h *Handler) ListByEvent(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	ev, err := h.events.Editable(c.Request.Context(), middleware.CurrentActor(c), id)
	if err != nil {
		events.WriteError(c, h.logger, err)
		return
	}
	logs, err := h.repo.ListByEvent(c.Request.Context(), ev.ID)
	if err != nil {
		response.Internal(c, "failed to load notification logs")
		return
	}
	response.OK(c, logs)
}
