package auth

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/calendint/backend/internal/models"
	"github.com/calendint/backend/pkg/response"
	"github.com/calendint/backend/pkg/utils"
)

// ContextUserID is the gin context key holding the authenticated user's uuid.UUID.
const ContextUserID = "user_id"

// RegisterRequest is the body for POST /auth/register.
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	FullName string `json:"full_name" binding:"required"`
}

// LoginRequest is the body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// SetActiveRequest is the body for PUT /users/:id/active.
type SetActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}

// SetSuperadminRequest is the body for PUT /users/:id/superadmin.
type SetSuperadminRequest struct {
	Superadmin *bool `json:"is_superadmin" binding:"required"`
}

// TokenResponse is the auth response with JWT.
type TokenResponse struct {
	Token string            `json:"token"`
	User  models.UserPublic `json:"user"`
}

// MeResponse describes the current user and its organization roles.
type MeResponse struct {
	User        models.UserPublic   `json:"user"`
	Memberships []models.Membership `json:"memberships"`
	GroupIDs    []uuid.UUID         `json:"group_ids"`
}

// Handler handles auth HTTP endpoints.
type Handler struct {
	repo   *Repository
	jwt    *JWTService
	logger *zap.Logger
}

// NewHandler creates an auth handler.
func NewHandler(repo *Repository, jwt *JWTService, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, jwt: jwt, logger: logger}
}

// Register handles POST /auth/register.
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	_, err := h.repo.GetByEmail(c.Request.Context(), email)
	if err == nil {
		response.Conflict(c, "email already registered")
		return
	}
	if !errors.Is(err, ErrUserNotFound) {
		h.logger.Error("lookup user", zap.Error(err))
		response.Internal(c, "failed to create user")
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if errors.Is(err, utils.ErrPasswordTooLong) {
		response.BadRequest(c, err.Error())
		return
	}
	if err != nil {
		response.Internal(c, "failed to hash password")
		return
	}
	user, err := h.repo.Create(c.Request.Context(), email, hash, strings.TrimSpace(req.FullName))
	if err != nil {
		h.logger.Error("create user", zap.Error(err))
		response.Internal(c, "failed to create user")
		return
	}

	token, err := h.jwt.Generate(user.ID, user.Email)
	if err != nil {
		response.Internal(c, "failed to generate token")
		return
	}
	h.logger.Info("user registered", zap.String("user_id", user.ID.String()))
	response.Created(c, TokenResponse{Token: token, User: user.ToPublic()})
}

// Login handles POST /auth/login.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	user, err := h.repo.GetByEmail(c.Request.Context(), req.Email)
	if err != nil {
		if !errors.Is(err, ErrUserNotFound) {
			h.logger.Error("lookup user", zap.Error(err))
		}
		response.Unauthorized(c, "invalid email or password")
		return
	}
	if !utils.CheckPassword(req.Password, user.Password) {
		response.Unauthorized(c, "invalid email or password")
		return
	}
	if !user.IsActive {
		response.Forbidden(c, "account disabled")
		return
	}

	token, err := h.jwt.Generate(user.ID, user.Email)
	if err != nil {
		response.Internal(c, "failed to generate token")
		return
	}
	response.OK(c, TokenResponse{Token: token, User: user.ToPublic()})
}

// Me handles GET /auth/me.
func (h *Handler) Me(c *gin.Context) {
	userID := c.MustGet(ContextUserID).(uuid.UUID)
	ctx := c.Request.Context()

	user, err := h.repo.GetByID(ctx, userID)
	if err != nil {
		response.NotFound(c, "user not found")
		return
	}
	memberships, err := h.repo.Memberships(ctx, userID)
	if err != nil {
		response.Internal(c, "failed to load memberships")
		return
	}
	groups, err := h.repo.GroupIDs(ctx, userID)
	if err != nil {
		response.Internal(c, "failed to load groups")
		return
	}
	response.OK(c, MeResponse{User: user.ToPublic(), Memberships: memberships, GroupIDs: groups})
}

// List handles GET /users (superadmin only).
func (h *Handler) List(c *gin.Context) {
	list, err := h.repo.List(c.Request.Context())
	if err != nil {
		response.Internal(c, "failed to list users")
		return
	}
	response.OK(c, list)
}

// SetActive handles PUT /users/:id/active (superadmin only).
func (h *Handler) SetActive(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return
	}
	var req SetActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if err := h.repo.SetActive(c.Request.Context(), id, *req.Active); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			response.NotFound(c, "user not found")
			return
		}
		response.Internal(c, "failed to update user")
		return
	}
	h.logger.Info("user activation changed", zap.String("user_id", id.String()), zap.Bool("active", *req.Active))
	response.OK(c, gin.H{"id": id, "active": *req.Active})
}

// SetSuperadmin handles PUT /users/:id/superadmin (superadmin only). A superadmin
// cannot revoke their own flag, so at least one always remains.
func (h *Handler) SetSuperadmin(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return
	}
	var req SetSuperadminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	caller := c.MustGet(ContextUserID).(uuid.UUID)
	if caller == id && !*req.Superadmin {
		response.BadRequest(c, "cannot revoke your own superadmin access")
		return
	}
	if err := h.repo.SetSuperadmin(c.Request.Context(), id, *req.Superadmin); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			response.NotFound(c, "user not found")
			return
		}
		response.Internal(c, "failed to update user")
		return
	}
	h.logger.Info("superadmin flag changed",
		zap.String("user_id", id.String()),
		zap.Bool("superadmin", *req.Superadmin),
		zap.String("by", caller.String()))
	response.OK(c, gin.H{"id": id, "is_superadmin": *req.Superadmin})
}
