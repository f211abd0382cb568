package tags

import (
	"errors"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/calendint/backend/internal/access"
	"github.com/calendint/backend/internal/middleware"
	"github.com/calendint/backend/internal/models"
	"github.com/calendint/backend/pkg/database"
	"github.com/calendint/backend/pkg/response"
)

var colorRegex = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// Handler serves tag endpoints.
type Handler struct {
	repo   *Repository
	logger *zap.Logger
}

// NewHandler creates a tags handler.
func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, logger: logger}
}

// TagRequest is the body for creating or updating a tag.
type TagRequest struct {
	OrganizationID uuid.UUID `json:"organization_id"`
	Name           string    `json:"name" binding:"required"`
	Color          string    `json:"color"`
}

// AutoApproveRequest is the body for PUT /tags/:id/auto-approve.
type AutoApproveRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

func (r *TagRequest) validate() string {
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" || len(r.Name) > 64 {
		return "name must be 1-64 characters"
	}
	if r.Color != "" && !colorRegex.MatchString(r.Color) {
		return "color must be a hex value like #1a2b3c"
	}
	return ""
}

// load fetches :id and checks the caller may manage the tag's organization.
func (h *Handler) load(c *gin.Context) (*models.Tag, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid tag id")
		return nil, false
	}
	t, err := h.repo.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "tag not found")
			return nil, false
		}
		response.Internal(c, "failed to load tag")
		return nil, false
	}
	if ok, reason := access.CanManageOrganization(t.OrganizationID, middleware.CurrentActor(c)); !middleware.Allowed(c, ok, reason) {
		return nil, false
	}
	return t, true
}

// List handles GET /tags?organization_id=.
func (h *Handler) List(c *gin.Context) {
	var orgID *uuid.UUID
	if s := c.Query("organization_id"); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			response.BadRequest(c, "invalid organization_id")
			return
		}
		orgID = &id
	}
	list, err := h.repo.List(c.Request.Context(), orgID)
	if err != nil {
		h.logger.Error("list tags", zap.Error(err))
		response.Internal(c, "failed to load tags")
		return
	}
	response.OK(c, list)
}

// Create handles POST /tags.
func (h *Handler) Create(c *gin.Context) {
	var body TagRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "organization_id and name required")
		return
	}
	if msg := body.validate(); msg != "" {
		response.BadRequest(c, msg)
		return
	}
	if ok, reason := access.CanManageOrganization(body.OrganizationID, middleware.CurrentActor(c)); !middleware.Allowed(c, ok, reason) {
		return
	}
	t := &models.Tag{OrganizationID: body.OrganizationID, Name: body.Name, Color: body.Color}
	if err := h.repo.Create(c.Request.Context(), t); err != nil {
		switch {
		case database.IsUniqueViolation(err):
			response.Conflict(c, "a tag with this name already exists")
		case database.IsForeignKeyViolation(err):
			response.NotFound(c, "organization not found")
		default:
			h.logger.Error("create tag", zap.Error(err))
			response.Internal(c, "failed to create tag")
		}
		return
	}
	response.Created(c, t)
}

// Update handles PUT /tags/:id.
func (h *Handler) Update(c *gin.Context) {
	t, ok := h.load(c)
	if !ok {
		return
	}
	var body TagRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "name required")
		return
	}
	if msg := body.validate(); msg != "" {
		response.BadRequest(c, msg)
		return
	}
	t.Name, t.Color = body.Name, body.Color
	if err := h.repo.Update(c.Request.Context(), t); err != nil {
		if database.IsUniqueViolation(err) {
			response.Conflict(c, "a tag with this name already exists")
			return
		}
		response.Internal(c, "failed to update tag")
		return
	}
	response.OK(c, t)
}

// Delete handles DELETE /tags/:id.
func (h *Handler) Delete(c *gin.Context) {
	t, ok := h.load(c)
	if !ok {
		return
	}
	if err := h.repo.Delete(c.Request.Context(), t.ID); err != nil {
		response.Internal(c, "failed to delete tag")
		return
	}
	response.NoContent(c)
}

// SetAutoApproved handles PUT /tags/:id/auto-approve. Mounted behind RequireSuperadmin.
func (h *Handler) SetAutoApproved(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid tag id")
		return
	}
	var body AutoApproveRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "enabled required")
		return
	}
	t, err := h.repo.SetAutoApproved(c.Request.Context(), id, *body.Enabled)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "tag not found")
			return
		}
		response.Internal(c, "failed to update tag")
		return
	}
	h.logger.Info("tag auto-approval changed", zap.String("tag_id", id.String()), zap.Bool("enabled", t.IsAutoApproved))
	response.OK(c, t)
}
