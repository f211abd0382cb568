package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis_rate/v10"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/calendint/backend/internal/access"
	"github.com/calendint/backend/internal/auth"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type actorSource struct {
	actor *access.Actor
	err   error
	calls int
}

func (s *actorSource) Load(_ context.Context, _ uuid.UUID) (*access.Actor, error) {
	s.calls++
	return s.actor, s.err
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func echoActor(c *gin.Context) {
	a := CurrentActor(c)
	if a == nil {
		c.String(http.StatusOK, "anonymous")
		return
	}
	c.String(http.StatusOK, a.UserID.String())
}

func TestActor(t *testing.T) {
	userID := uuid.New()
	withUser := func(c *gin.Context) { c.Set(ContextUserID, userID) }

	t.Run("anonymous skips loading", func(t *testing.T) {
		src := &actorSource{}
		r := gin.New()
		r.GET("/", Actor(src, zap.NewNop()), echoActor)
		w := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "anonymous", w.Body.String())
		assert.Zero(t, src.calls)
	})

	t.Run("loads snapshot", func(t *testing.T) {
		src := &actorSource{actor: &access.Actor{UserID: userID, Active: true}}
		r := gin.New()
		r.GET("/", withUser, Actor(src, zap.NewNop()), echoActor)
		w := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, userID.String(), w.Body.String())
	})

	t.Run("load failure fails closed", func(t *testing.T) {
		src := &actorSource{err: errors.New("connection refused")}
		r := gin.New()
		r.GET("/", withUser, Actor(src, zap.NewNop()), echoActor)
		w := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.NotContains(t, w.Body.String(), "anonymous")
	})

	t.Run("deleted user is unauthorized", func(t *testing.T) {
		src := &actorSource{err: fmt.Errorf("load user: %w", auth.ErrUserNotFound)}
		r := gin.New()
		r.GET("/", withUser, Actor(src, zap.NewNop()), echoActor)
		w := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.NotContains(t, w.Body.String(), "anonymous")
	})
}

func TestRequireSuperadmin(t *testing.T) {
	cases := []struct {
		name  string
		actor *access.Actor
		want  int
	}{
		{"anonymous", nil, http.StatusUnauthorized},
		{"inactive superadmin", &access.Actor{Superadmin: true}, http.StatusUnauthorized},
		{"regular user", &access.Actor{Active: true}, http.StatusForbidden},
		{"superadmin", &access.Actor{Active: true, Superadmin: true}, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/", func(c *gin.Context) {
				if tc.actor != nil {
					c.Set(ContextActor, tc.actor)
				}
			}, RequireSuperadmin(), func(c *gin.Context) { c.Status(http.StatusOK) })
			w := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
			assert.Equal(t, tc.want, w.Code)
		})
	}
}

func TestJWT(t *testing.T) {
	svc := auth.NewJWTService("secret", 1, "calendint")
	userID := uuid.New()
	token, err := svc.Generate(userID, "a@example.org")
	require.NoError(t, err)

	r := gin.New()
	r.GET("/required", JWT(svc), func(c *gin.Context) { c.String(http.StatusOK, c.MustGet(ContextUserID).(uuid.UUID).String()) })
	r.GET("/optional", OptionalJWT(svc), func(c *gin.Context) {
		if _, ok := c.Get(ContextUserID); ok {
			c.String(http.StatusOK, "user")
			return
		}
		c.String(http.StatusOK, "anonymous")
	})

	req := func(path, header string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, path, nil)
		if header != "" {
			r.Header.Set("Authorization", header)
		}
		return r
	}

	w := serve(r, req("/required", ""))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = serve(r, req("/required", "Token "+token))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = serve(r, req("/required", "Bearer "+token))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, userID.String(), w.Body.String())

	w = serve(r, req("/optional", ""))
	assert.Equal(t, "anonymous", w.Body.String())
	w = serve(r, req("/optional", "Bearer "+token))
	assert.Equal(t, "user", w.Body.String())
	w = serve(r, req("/optional", "Bearer garbage"))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRateLimit_FailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	r := gin.New()
	r.POST("/auth/login", RateLimit(redis_rate.NewLimiter(client), 1, zap.NewNop()), func(c *gin.Context) { c.Status(http.StatusOK) })
	for i := 0; i < 3; i++ {
		w := serve(r, httptest.NewRequest(http.MethodPost, "/auth/login", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.GET("/", RequestIDMiddleware(), func(c *gin.Context) { c.String(http.StatusOK, RequestID(c)) })

	w := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
	generated := w.Header().Get(RequestIDHeader)
	assert.NotEmpty(t, generated)
	assert.Equal(t, generated, w.Body.String())

	in := httptest.NewRequest(http.MethodGet, "/", nil)
	in.Header.Set(RequestIDHeader, "abc-123")
	w = serve(r, in)
	assert.Equal(t, "abc-123", w.Body.String())
}
