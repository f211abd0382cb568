package links

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/calendint/backend/internal/access"
	"github.com/calendint/backend/internal/events"
	"github.com/calendint/backend/internal/middleware"
	"github.com/calendint/backend/internal/models"
	"github.com/calendint/backend/pkg/response"
)

const maxNameLen = 100

// Events resolves events with the caller's view or edit permission applied.
type Events interface {
	Get(ctx context.Context, a *access.Actor, id uuid.UUID) (*models.Event, error)
	Editable(ctx context.Context, a *access.Actor, id uuid.UUID) (*models.Event, error)
}

// Handler serves event and organization link endpoints.
type Handler struct {
	repo   *Repository
	events Events
	logger *zap.Logger
}

// NewHandler creates a links handler.
func NewHandler(repo *Repository, ev Events, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, events: ev, logger: logger}
}

// LinkRequest is a single link in a request body.
type LinkRequest struct {
	Name  string `json:"name"`
	URL   string `json:"url"`
	Order *int   `json:"order"`
}

// EventLinksRequest is the body for PUT /events/:id/links.
type EventLinksRequest struct {
	Links []LinkRequest `json:"links"`
}

func (r *LinkRequest) validate() error {
	r.Name = strings.TrimSpace(r.Name)
	r.URL = strings.TrimSpace(r.URL)
	if r.Name == "" || len(r.Name) > maxNameLen {
		return fmt.Errorf("link name must be 1-%d characters", maxNameLen)
	}
	u, err := url.Parse(r.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("link url must be an absolute http(s) URL")
	}
	if r.Order != nil && *r.Order < 1 {
		return errors.New("link order must be positive")
	}
	return nil
}

func parseID(c *gin.Context, what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid "+what+" id")
		return uuid.Nil, false
	}
	return id, true
}

// EventLinks handles GET /events/:id/links.
func (h *Handler) EventLinks(c *gin.Context) {
	id, ok := parseID(c, "event")
	if !ok {
		return
	}
	ev, err := h.events.Get(c.Request.Context(), middleware.CurrentActor(c), id)
	if err != nil {
		events.WriteError(c, h.logger, err)
		return
	}
	list, err := h.repo.EventLinks(c.Request.Context(), ev.ID)
	if err != nil {
		response.Internal(c, "failed to load links")
		return
	}
	response.OK(c, list)
}

// ReplaceEventLinks handles PUT /events/:id/links. The body's order is kept.
func (h *Handler) ReplaceEventLinks(c *gin.Context) {
	id, ok := parseID(c, "event")
	if !ok {
		return
	}
	var body EventLinksRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "links required")
		return
	}
	if len(body.Links) > models.MaxEventLinks {
		response.BadRequest(c, fmt.Sprintf("an event has at most %d links", models.MaxEventLinks))
		return
	}
	in := make([]models.EventLink, 0, len(body.Links))
	for i := range body.Links {
		if err := body.Links[i].validate(); err != nil {
			response.BadRequest(c, err.Error())
			return
		}
		in = append(in, models.EventLink{Name: body.Links[i].Name, URL: body.Links[i].URL})
	}
	ev, err := h.events.Editable(c.Request.Context(), middleware.CurrentActor(c), id)
	if err != nil {
		events.WriteError(c, h.logger, err)
		return
	}
	out, err := h.repo.ReplaceEventLinks(c.Request.Context(), ev.ID, in)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "event not found")
			return
		}
		h.logger.Error("replace event links", zap.String("event_id", ev.ID.String()), zap.Error(err))
		response.Internal(c, "failed to save links")
		return
	}
	response.OK(c, out)
}

// OrganizationLinks handles GET /organizations/:id/links.
func (h *Handler) OrganizationLinks(c *gin.Context) {
	id, ok := parseID(c, "organization")
	if !ok {
		return
	}
	list, err := h.repo.OrganizationLinks(c.Request.Context(), id)
	if err != nil {
		response.Internal(c, "failed to load links")
		return
	}
	response.OK(c, list)
}

// CreateOrganizationLink handles POST /organizations/:id/links.
func (h *Handler) CreateOrganizationLink(c *gin.Context) {
	orgID, ok := parseID(c, "organization")
	if !ok {
		return
	}
	if ok, reason := access.CanManageOrganization(orgID, middleware.CurrentActor(c)); !middleware.Allowed(c, ok, reason) {
		return
	}
	var body LinkRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "name and url required")
		return
	}
	if err := body.validate(); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	l := &models.OrganizationLink{OrganizationID: orgID, Name: body.Name, URL: body.URL, Order: 1}
	if body.Order != nil {
		l.Order = *body.Order
	}
	if err := h.repo.CreateOrganizationLink(c.Request.Context(), l); err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "organization not found")
			return
		}
		h.logger.Error("create organization link", zap.Error(err))
		response.Internal(c, "failed to create link")
		return
	}
	response.Created(c, l)
}

// orgLink loads :id and checks the caller may manage its organization.
func (h *Handler) orgLink(c *gin.Context) (*models.OrganizationLink, bool) {
	id, ok := parseID(c, "link")
	if !ok {
		return nil, false
	}
	l, err := h.repo.GetOrganizationLink(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "link not found")
			return nil, false
		}
		response.Internal(c, "failed to load link")
		return nil, false
	}
	if ok, reason := access.CanManageOrganization(l.OrganizationID, middleware.CurrentActor(c)); !middleware.Allowed(c, ok, reason) {
		return nil, false
	}
	return l, true
}

// UpdateOrganizationLink handles PUT /organization-links/:id. Omitted fields keep their value.
func (h *Handler) UpdateOrganizationLink(c *gin.Context) {
	l, ok := h.orgLink(c)
	if !ok {
		return
	}
	body := LinkRequest{Name: l.Name, URL: l.URL}
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if err := body.validate(); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	l.Name, l.URL = body.Name, body.URL
	if body.Order != nil {
		l.Order = *body.Order
	}
	if err := h.repo.UpdateOrganizationLink(c.Request.Context(), l); err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "link not found")
			return
		}
		response.Internal(c, "failed to update link")
		return
	}
	response.OK(c, l)
}

// DeleteOrganizationLink handles DELETE /organization-links/:id.
func (h *Handler) DeleteOrganizationLink(c *gin.Context) {
	l, ok := h.orgLink(c)
	if !ok {
		return
	}
	if err := h.repo.DeleteOrganizationLink(c.Request.Context(), l.ID); err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "link not found")
			return
		}
		response.Internal(c, "failed to delete link")
		return
	}
	response.NoContent(c)
}
