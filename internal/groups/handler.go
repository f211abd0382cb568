package groups

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/calendint/backend/internal/access"
	"github.com/calendint/backend/internal/middleware"
	"github.com/calendint/backend/internal/models"
	"github.com/calendint/backend/pkg/response"
)

// Handler serves group endpoints nested under an organization.
type Handler struct {
	repo   *Repository
	logger *zap.Logger
}

// NewHandler creates a groups handler.
func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, logger: logger}
}

// CreateGroupRequest is the body for POST /organizations/:id/groups.
type CreateGroupRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

// AddMemberRequest is the body for POST /organizations/:id/groups/:groupId/members.
type AddMemberRequest struct {
	UserID uuid.UUID `json:"user_id" binding:"required"`
}

func parseID(c *gin.Context, param, what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		response.BadRequest(c, "invalid "+what+" id")
		return uuid.Nil, false
	}
	return id, true
}

// group resolves :groupId inside :id and checks the caller may manage the organization.
func (h *Handler) group(c *gin.Context) (*models.Group, bool) {
	orgID, ok := parseID(c, "id", "organization")
	if !ok {
		return nil, false
	}
	if ok, reason := access.CanManageOrganization(orgID, middleware.CurrentActor(c)); !middleware.Allowed(c, ok, reason) {
		return nil, false
	}
	groupID, ok := parseID(c, "groupId", "group")
	if !ok {
		return nil, false
	}
	g, err := h.repo.Get(c.Request.Context(), groupID)
	if err != nil || g.OrganizationID != orgID {
		response.NotFound(c, "group not found")
		return nil, false
	}
	return g, true
}

// List handles GET /organizations/:id/groups.
func (h *Handler) List(c *gin.Context) {
	orgID, ok := parseID(c, "id", "organization")
	if !ok {
		return
	}
	if ok, reason := access.CanReadOrganization(orgID, middleware.CurrentActor(c)); !middleware.Allowed(c, ok, reason) {
		return
	}
	list, err := h.repo.ListByOrganization(c.Request.Context(), orgID)
	if err != nil {
		h.logger.Error("list groups", zap.Error(err))
		response.Internal(c, "failed to load groups")
		return
	}
	response.OK(c, list)
}

// Create handles POST /organizations/:id/groups.
func (h *Handler) Create(c *gin.Context) {
	orgID, ok := parseID(c, "id", "organization")
	if !ok {
		return
	}
	if ok, reason := access.CanManageOrganization(orgID, middleware.CurrentActor(c)); !middleware.Allowed(c, ok, reason) {
		return
	}
	var body CreateGroupRequest
	if err := c.ShouldBindJSON(&body); err != nil || strings.TrimSpace(body.Name) == "" {
		response.BadRequest(c, "name required")
		return
	}
	g := &models.Group{OrganizationID: orgID, Name: strings.TrimSpace(body.Name), Description: body.Description}
	if err := h.repo.Create(c.Request.Context(), g); err != nil {
		h.logger.Error("create group", zap.Error(err))
		response.Internal(c, "failed to create group")
		return
	}
	response.Created(c, g)
}

// Delete handles DELETE /organizations/:id/groups/:groupId.
func (h *Handler) Delete(c *gin.Context) {
	g, ok := h.group(c)
	if !ok {
		return
	}
	if err := h.repo.Delete(c.Request.Context(), g.ID); err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "group not found")
			return
		}
		response.Internal(c, "failed to delete group")
		return
	}
	response.NoContent(c)
}

// Members handles GET /organizations/:id/groups/:groupId/members.
func (h *Handler) Members(c *gin.Context) {
	g, ok := h.group(c)
	if !ok {
		return
	}
	list, err := h.repo.Members(c.Request.Context(), g.ID)
	if err != nil {
		response.Internal(c, "failed to load members")
		return
	}
	response.OK(c, list)
}

// AddMember handles POST /organizations/:id/groups/:groupId/members.
func (h *Handler) AddMember(c *gin.Context) {
	g, ok := h.group(c)
	if !ok {
		return
	}
	var body AddMemberRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "user_id required")
		return
	}
	if err := h.repo.AddMember(c.Request.Context(), g, body.UserID); err != nil {
		if errors.Is(err, ErrNotOrgMember) {
			response.BadRequest(c, err.Error())
			return
		}
		h.logger.Error("add group member", zap.Error(err))
		response.Internal(c, "failed to add member")
		return
	}
	response.NoContent(c)
}

// RemoveMember handles DELETE /organizations/:id/groups/:groupId/members/:userId.
func (h *Handler) RemoveMember(c *gin.Context) {
	g, ok := h.group(c)
	if !ok {
		return
	}
	userID, ok := parseID(c, "userId", "user")
	if !ok {
		return
	}
	if err := h.repo.RemoveMember(c.Request.Context(), g.ID, userID); err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "membership not found")
			return
		}
		response.Internal(c, "failed to remove member")
		return
	}
	response.NoContent(c)
}
