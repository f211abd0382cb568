// Package uploads issues pre-signed poster uploads for events the caller may edit.
package uploads

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/calendint/backend/internal/access"
	"github.com/calendint/backend/internal/events"
	"github.com/calendint/backend/internal/middleware"
	"github.com/calendint/backend/internal/models"
	"github.com/calendint/backend/pkg/response"
	"github.com/calendint/backend/pkg/storage"
)

// EditableEvents resolves an event the actor may edit.
type EditableEvents interface {
	Editable(ctx context.Context, a *access.Actor, id uuid.UUID) (*models.Event, error)
}

// Presigner signs poster uploads.
type Presigner interface {
	PresignPoster(ctx context.Context, eventID, filename string) (*storage.Upload, error)
}

// Handler handles poster upload endpoints.
type Handler struct {
	events EditableEvents
	s3     Presigner
	logger *zap.Logger
}

// NewHandler creates an uploads handler.
func NewHandler(ev EditableEvents, s3 Presigner, logger *zap.Logger) *Handler {
	return &Handler{events: ev, s3: s3, logger: logger}
}

// PosterRequest is the body for POST /events/:id/poster.
type PosterRequest struct {
	Filename string `json:"filename" binding:"required"`
	Size     int64  `json:"size"`
}

// Poster handles POST /events/:id/poster. The client PUTs the file to upload_url and
// then sets poster_url on the event.
func (h *Handler) Poster(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	var body PosterRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "filename required")
		return
	}
	if body.Size < 0 || body.Size > storage.MaxPosterSize {
		response.BadRequest(c, "poster must be at most 5MB")
		return
	}
	ev, err := h.events.Editable(c.Request.Context(), middleware.CurrentActor(c), id)
	if err != nil {
		events.WriteError(c, h.logger, err)
		return
	}
	up, err := h.s3.PresignPoster(c.Request.Context(), ev.ID.String(), body.Filename)
	if err != nil {
		if errors.Is(err, storage.ErrUnsupportedType) {
			response.BadRequest(c, "poster must be jpeg, png, webp or gif")
			return
		}
		h.logger.Error("presign poster", zap.String("event_id", ev.ID.String()), zap.Error(err))
		response.Internal(c, "failed to prepare upload")
		return
	}
	response.OK(c, up)
}
