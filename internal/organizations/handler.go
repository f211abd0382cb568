package organizations

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

// Slug must be lowercase alphanumeric and hyphens only, 2-64 chars.
var slugRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{1,63}$`)

// Handler handles organization HTTP endpoints.
type Handler struct {
	repo   *Repository
	logger *zap.Logger
}

// NewHandler creates an organizations handler.
func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, logger: logger}
}

// CreateOrganizationRequest is the body for POST /organizations.
type CreateOrganizationRequest struct {
	Name        string     `json:"name" binding:"required"`
	Slug        string     `json:"slug" binding:"required"`
	Description string     `json:"description"`
	ParentID    *uuid.UUID `json:"parent_id"`
}

// SetMemberRequest is the body for PUT /organizations/:id/members.
type SetMemberRequest struct {
	UserID uuid.UUID `json:"user_id" binding:"required"`
	Role   string    `json:"role" binding:"required"`
}

func orgID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid organization id")
		return uuid.Nil, false
	}
	return id, true
}

// Create handles POST /organizations (superadmin only).
func (h *Handler) Create(c *gin.Context) {
	var body CreateOrganizationRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "name and slug required")
		return
	}
	body.Slug = strings.ToLower(strings.TrimSpace(body.Slug))
	if !slugRegex.MatchString(body.Slug) {
		response.BadRequest(c, "slug must be 2-64 chars, lowercase letters, numbers, hyphens only")
		return
	}
	body.Name = strings.TrimSpace(body.Name)
	if len(body.Name) < 1 || len(body.Name) > 255 {
		response.BadRequest(c, "name must be 1-255 characters")
		return
	}
	if body.ParentID != nil {
		if _, err := h.repo.GetByID(c.Request.Context(), *body.ParentID); err != nil {
			response.NotFound(c, "parent organization not found")
			return
		}
	}
	org := &models.Organization{Name: body.Name, Slug: body.Slug, Description: body.Description, ParentID: body.ParentID}
	if err := h.repo.Create(c.Request.Context(), org); err != nil {
		if database.IsUniqueViolation(err) {
			response.Conflict(c, "an organization with this slug already exists")
			return
		}
		h.logger.Error("create organization", zap.Error(err))
		response.Internal(c, "failed to create organization")
		return
	}
	response.Created(c, org)
}

// List handles GET /organizations.
func (h *Handler) List(c *gin.Context) {
	orgs, err := h.repo.List(c.Request.Context())
	if err != nil {
		response.Internal(c, "failed to load organizations")
		return
	}
	response.OK(c, orgs)
}

// ListMine handles GET /me/organizations.
func (h *Handler) ListMine(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	orgs, err := h.repo.ListForUser(c.Request.Context(), userID)
	if err != nil {
		response.Internal(c, "failed to load organizations")
		return
	}
	response.OK(c, orgs)
}

// Get handles GET /organizations/:id.
func (h *Handler) Get(c *gin.Context) {
	id, ok := orgID(c)
	if !ok {
		return
	}
	org, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.NotFound(c, "organization not found")
		return
	}
	response.OK(c, org)
}

// ListMembers handles GET /organizations/:id/members.
func (h *Handler) ListMembers(c *gin.Context) {
	id, ok := orgID(c)
	if !ok {
		return
	}
	if ok, reason := access.CanReadOrganization(id, middleware.CurrentActor(c)); !middleware.Allowed(c, ok, reason) {
		return
	}
	members, err := h.repo.ListMembers(c.Request.Context(), id)
	if err != nil {
		response.Internal(c, "failed to load members")
		return
	}
	response.OK(c, members)
}

// SetMember handles PUT /organizations/:id/members.
func (h *Handler) SetMember(c *gin.Context) {
	id, ok := orgID(c)
	if !ok {
		return
	}
	actor := middleware.CurrentActor(c)
	if ok, reason := access.CanManageOrganization(id, actor); !middleware.Allowed(c, ok, reason) {
		return
	}
	var body SetMemberRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "user_id and role required")
		return
	}
	role := models.Role(body.Role)
	if !role.Valid() {
		response.BadRequest(c, "invalid role")
		return
	}
	if err := h.repo.SetMember(c.Request.Context(), id, body.UserID, role); err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "organization or user not found")
			return
		}
		response.Internal(c, "failed to set member")
		return
	}
	h.logger.Info("membership changed",
		zap.String("organization_id", id.String()),
		zap.String("user_id", body.UserID.String()),
		zap.String("role", string(role)),
		zap.String("by", actor.UserID.String()))
	response.OK(c, gin.H{"organization_id": id, "user_id": body.UserID, "role": role})
}

// RemoveMember handles DELETE /organizations/:id/members/:userId.
func (h *Handler) RemoveMember(c *gin.Context) {
	id, ok := orgID(c)
	if !ok {
		return
	}
	if ok, reason := access.CanManageOrganization(id, middleware.CurrentActor(c)); !middleware.Allowed(c, ok, reason) {
		return
	}
	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return
	}
	if err := h.repo.RemoveMember(c.Request.Context(), id, userID); err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "membership not found")
			return
		}
		response.Internal(c, "failed to remove member")
		return
	}
	response.NoContent(c)
}
