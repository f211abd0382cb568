package events

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/calendint/backend/internal/access"
	"github.com/calendint/backend/internal/lifecycle"
	"github.com/calendint/backend/internal/middleware"
	"github.com/calendint/backend/internal/models"
	"github.com/calendint/backend/pkg/response"
)

// CreateRequest is the body for POST /events.
type CreateRequest struct {
	Title                string      `json:"title" binding:"required"`
	Description          string      `json:"description"`
	StartTime            time.Time   `json:"start_time" binding:"required"`
	EndTime              time.Time   `json:"end_time" binding:"required"`
	Location             string      `json:"location"`
	LocationURL          string      `json:"location_url"`
	PosterURL            string      `json:"poster_url"`
	Visibility           string      `json:"visibility"`
	OrganizationID       uuid.UUID   `json:"organization_id" binding:"required"`
	GroupID              *uuid.UUID  `json:"group_id"`
	HideDetails          bool        `json:"hide_details"`
	Featured             int         `json:"featured"`
	TagIDs               []uuid.UUID `json:"tag_ids"`
	GuestOrganizationIDs []uuid.UUID `json:"guest_organization_ids"`
}

// UpdateRequest is the body for PUT /events/:id. Omitted fields are unchanged;
// an empty group_id removes the group.
type UpdateRequest struct {
	Title                *string      `json:"title"`
	Description          *string      `json:"description"`
	StartTime            *time.Time   `json:"start_time"`
	EndTime              *time.Time   `json:"end_time"`
	Location             *string      `json:"location"`
	LocationURL          *string      `json:"location_url"`
	PosterURL            *string      `json:"poster_url"`
	Visibility           *string      `json:"visibility"`
	RejectionMessage     *string      `json:"rejection_message"`
	GroupID              *string      `json:"group_id"`
	HideDetails          *bool        `json:"hide_details"`
	Featured             *int         `json:"featured"`
	TagIDs               *[]uuid.UUID `json:"tag_ids"`
	GuestOrganizationIDs *[]uuid.UUID `json:"guest_organization_ids"`
}

// RejectRequest is the body for POST /events/:id/reject.
type RejectRequest struct {
	Message string `json:"message" binding:"required"`
}

// ReactRequest is the body for POST /events/:id/reactions.
type ReactRequest struct {
	Emoji string `json:"emoji" binding:"required"`
}

// Handler handles event HTTP endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates an event handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// WriteError maps service errors to the response envelope.
func WriteError(c *gin.Context, logger *zap.Logger, err error) {
	var denial *DeniedError
	var invalid *ValidationError
	switch {
	case errors.As(err, &denial):
		middleware.Deny(c, denial.Reason)
	case errors.As(err, &invalid):
		response.BadRequest(c, invalid.Msg)
	case errors.Is(err, ErrNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, lifecycle.ErrInvalidTransition):
		response.Conflict(c, err.Error())
	default:
		logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		response.Internal(c, "internal error")
	}
}

func (h *Handler) fail(c *gin.Context, err error) { WriteError(c, h.logger, err) }

func eventID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return uuid.Nil, false
	}
	return id, true
}

// Create handles POST /events.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	ev := &models.Event{
		Title:                req.Title,
		Description:          req.Description,
		StartTime:            req.StartTime,
		EndTime:              req.EndTime,
		Location:             req.Location,
		LocationURL:          req.LocationURL,
		PosterURL:            req.PosterURL,
		Visibility:           models.Visibility(req.Visibility),
		OrganizationID:       req.OrganizationID,
		GroupID:              req.GroupID,
		HideDetails:          req.HideDetails,
		Featured:             req.Featured,
		TagIDs:               req.TagIDs,
		GuestOrganizationIDs: req.GuestOrganizationIDs,
	}
	out, err := h.svc.Create(c.Request.Context(), middleware.CurrentActor(c), ev)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Created(c, out)
}

// Get handles GET /events/:id.
func (h *Handler) Get(c *gin.Context) {
	id, ok := eventID(c)
	if !ok {
		return
	}
	ev, err := h.svc.Get(c.Request.Context(), middleware.CurrentActor(c), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, ev)
}

// List handles GET /events.
func (h *Handler) List(c *gin.Context) {
	h.list(c, h.svc.List)
}

// ListMine handles GET /me/events.
func (h *Handler) ListMine(c *gin.Context) {
	h.list(c, h.svc.ListMine)
}

// ListDrafts handles GET /me/drafts.
func (h *Handler) ListDrafts(c *gin.Context) {
	h.list(c, h.svc.ListDrafts)
}

// ListPending handles GET /moderation/pending.
func (h *Handler) ListPending(c *gin.Context) {
	h.list(c, h.svc.ListPending)
}

// ListProcessed handles GET /moderation/processed.
func (h *Handler) ListProcessed(c *gin.Context) {
	page, err := h.svc.ListProcessed(c.Request.Context(), middleware.CurrentActor(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, page)
}

type listFunc func(ctx context.Context, a *access.Actor, opts ListOptions) (*Page, error)

func (h *Handler) list(c *gin.Context, fn listFunc) {
	opts, err := parseListOptions(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	page, err := fn(c.Request.Context(), middleware.CurrentActor(c), opts)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, page)
}

func parseListOptions(c *gin.Context) (ListOptions, error) {
	var o ListOptions
	parseTime := func(key string) (*time.Time, error) {
		v := c.Query(key)
		if v == "" {
			return nil, nil
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return nil, invalidf("invalid " + key)
		}
		return &t, nil
	}
	parseID := func(key string) (*uuid.UUID, error) {
		v := c.Query(key)
		if v == "" {
			return nil, nil
		}
		id, err := uuid.Parse(v)
		if err != nil {
			return nil, invalidf("invalid " + key)
		}
		return &id, nil
	}
	parseInt := func(key string) (int, error) {
		v := c.Query(key)
		if v == "" {
			return 0, nil
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return 0, invalidf("invalid " + key)
		}
		return n, nil
	}

	var err error
	if o.From, err = parseTime("from"); err != nil {
		return o, err
	}
	if o.To, err = parseTime("to"); err != nil {
		return o, err
	}
	if o.OrganizationID, err = parseID("organization_id"); err != nil {
		return o, err
	}
	if o.TagID, err = parseID("tag_id"); err != nil {
		return o, err
	}
	if o.CreatedBy, err = parseID("created_by"); err != nil {
		return o, err
	}
	if o.Limit, err = parseInt("limit"); err != nil {
		return o, err
	}
	if o.Offset, err = parseInt("offset"); err != nil {
		return o, err
	}
	if v := c.Query("visibility"); v != "" {
		vis := models.Visibility(v)
		if !vis.Valid() {
			return o, invalidf("invalid visibility")
		}
		o.Visibility = &vis
	}
	o.Search = strings.TrimSpace(c.Query("q"))
	o.FeaturedOnly = c.Query("featured") == "1" || c.Query("featured") == "true"
	return o, nil
}

// Overlaps handles GET /events/:id/overlaps.
func (h *Handler) Overlaps(c *gin.Context) {
	id, ok := eventID(c)
	if !ok {
		return
	}
	list, err := h.svc.FindOverlapping(c.Request.Context(), middleware.CurrentActor(c), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, list)
}

// Update handles PUT /events/:id.
func (h *Handler) Update(c *gin.Context) {
	id, ok := eventID(c)
	if !ok {
		return
	}
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	patch := lifecycle.Patch{
		Title:       req.Title,
		Description: req.Description,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		Location:    req.Location,
		LocationURL: req.LocationURL,
		PosterURL:   req.PosterURL,
		HideDetails: req.HideDetails,
		Featured:    req.Featured,

		RejectionMessage: req.RejectionMessage,
	}
	if req.Visibility != nil {
		v := models.Visibility(*req.Visibility)
		patch.Visibility = &v
	}
	if req.GroupID != nil {
		if *req.GroupID == "" {
			patch.ClearGroup = true
		} else {
			g, err := uuid.Parse(*req.GroupID)
			if err != nil {
				response.BadRequest(c, "invalid group_id")
				return
			}
			patch.GroupID = &g
		}
	}
	if req.TagIDs != nil {
		patch.SetTags, patch.TagIDs = true, *req.TagIDs
	}
	if req.GuestOrganizationIDs != nil {
		patch.SetGuests, patch.GuestOrganizationIDs = true, *req.GuestOrganizationIDs
	}

	ev, err := h.svc.Update(c.Request.Context(), middleware.CurrentActor(c), id, patch)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, ev)
}

// Delete handles DELETE /events/:id.
func (h *Handler) Delete(c *gin.Context) {
	id, ok := eventID(c)
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), middleware.CurrentActor(c), id); err != nil {
		h.fail(c, err)
		return
	}
	response.NoContent(c)
}

// Submit handles POST /events/:id/submit.
func (h *Handler) Submit(c *gin.Context) {
	h.transition(c, h.svc.Submit)
}

// Approve handles POST /events/:id/approve.
func (h *Handler) Approve(c *gin.Context) {
	h.transition(c, h.svc.Approve)
}

// ResetStatus handles POST /events/:id/reset-status.
func (h *Handler) ResetStatus(c *gin.Context) {
	h.transition(c, h.svc.ResetStatus)
}

// Reject handles POST /events/:id/reject.
func (h *Handler) Reject(c *gin.Context) {
	id, ok := eventID(c)
	if !ok {
		return
	}
	var req RejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "rejection message is required")
		return
	}
	ev, err := h.svc.Reject(c.Request.Context(), middleware.CurrentActor(c), id, req.Message)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, ev)
}

type transitionFunc func(ctx context.Context, a *access.Actor, id uuid.UUID) (*models.Event, error)

func (h *Handler) transition(c *gin.Context, fn transitionFunc) {
	id, ok := eventID(c)
	if !ok {
		return
	}
	ev, err := fn(c.Request.Context(), middleware.CurrentActor(c), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, ev)
}

// React handles POST /events/:id/reactions.
func (h *Handler) React(c *gin.Context) {
	id, ok := eventID(c)
	if !ok {
		return
	}
	var req ReactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "emoji is required")
		return
	}
	summary, err := h.svc.ToggleReaction(c.Request.Context(), middleware.CurrentActor(c), id, req.Emoji)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, summary)
}

// ReactionSummary handles GET /events/:id/reactions.
func (h *Handler) ReactionSummary(c *gin.Context) {
	id, ok := eventID(c)
	if !ok {
		return
	}
	summary, err := h.svc.Reactions(c.Request.Context(), middleware.CurrentActor(c), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, summary)
}

// ListReactions handles GET /events/:id/reactions/details.
func (h *Handler) ListReactions(c *gin.Context) {
	id, ok := eventID(c)
	if !ok {
		return
	}
	list, err := h.svc.ListReactions(c.Request.Context(), middleware.CurrentActor(c), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, list)
}

// DeleteReaction handles DELETE /events/:id/reactions/:userId.
func (h *Handler) DeleteReaction(c *gin.Context) {
	id, ok := eventID(c)
	if !ok {
		return
	}
	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return
	}
	if err := h.svc.DeleteReaction(c.Request.Context(), middleware.CurrentActor(c), id, userID); err != nil {
		h.fail(c, err)
		return
	}
	response.NoContent(c)
}
