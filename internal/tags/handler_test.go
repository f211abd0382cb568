package tags

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/calendint/backend/internal/access"
	"github.com/calendint/backend/internal/middleware"
	"github.com/calendint/backend/internal/models"
)

var tagCols = []string{"id", "organization_id", "name", "color", "is_auto_approved", "created_at"}

func setup(t *testing.T, actor *access.Actor) (pgxmock.PgxPoolIface, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	h := NewHandler(NewRepository(mock), zap.NewNop())
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if actor != nil {
			c.Set(middleware.ContextActor, actor)
		}
	})
	r.POST("/tags", h.Create)
	r.PUT("/tags/:id", h.Update)
	r.DELETE("/tags/:id", h.Delete)
	r.PUT("/tags/:id/auto-approve", h.SetAutoApproved)
	return mock, r
}

func send(r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	b, _ := json.Marshal(body)
	req := httptest.NewRequest(method, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func orgActor(org uuid.UUID, role models.Role) *access.Actor {
	return &access.Actor{UserID: uuid.New(), Active: true, Memberships: map[uuid.UUID]models.Role{org: role}}
}

func TestCreate(t *testing.T) {
	org := uuid.New()

	t.Run("invalid color", func(t *testing.T) {
		_, r := setup(t, orgActor(org, models.RoleOrgAdmin))
		w := send(r, http.MethodPost, "/tags", map[string]any{"organization_id": org, "name": "Sport", "color": "red"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("member cannot manage tags", func(t *testing.T) {
		_, r := setup(t, orgActor(org, models.RoleOrgMember))
		w := send(r, http.MethodPost, "/tags", map[string]any{"organization_id": org, "name": "Sport"})
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("admin creates", func(t *testing.T) {
		mock, r := setup(t, orgActor(org, models.RoleOrgAdmin))
		mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO tags")).WithArgs(org, "Sport", "#00ff00").
			WillReturnRows(pgxmock.NewRows([]string{"id", "is_auto_approved", "created_at"}).AddRow(uuid.New(), false, time.Now()))
		w := send(r, http.MethodPost, "/tags", map[string]any{"organization_id": org, "name": " Sport ", "color": "#00ff00"})
		assert.Equal(t, http.StatusCreated, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate name", func(t *testing.T) {
		mock, r := setup(t, orgActor(org, models.RoleOrgAdmin))
		mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO tags")).WithArgs(org, "Sport", "").
			WillReturnError(&pgconn.PgError{Code: "23505"})
		w := send(r, http.MethodPost, "/tags", map[string]any{"organization_id": org, "name": "Sport"})
		assert.Equal(t, http.StatusConflict, w.Code)
	})
}

func TestDelete_RequiresOrgAdmin(t *testing.T) {
	org, id := uuid.New(), uuid.New()
	row := func() *pgxmock.Rows {
		return pgxmock.NewRows(tagCols).AddRow(id, org, "Sport", "", false, time.Now())
	}

	mock, r := setup(t, orgActor(uuid.New(), models.RoleOrgAdmin))
	mock.ExpectQuery(regexp.QuoteMeta("FROM tags WHERE id = $1")).WithArgs(id).WillReturnRows(row())
	w := send(r, http.MethodDelete, "/tags/"+id.String(), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	mock, r = setup(t, orgActor(org, models.RoleOrgAdmin))
	mock.ExpectQuery(regexp.QuoteMeta("FROM tags WHERE id = $1")).WithArgs(id).WillReturnRows(row())
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM tags")).WithArgs(id).WillReturnResult(pgxmock.NewResult("DELETE", 1))
	w = send(r, http.MethodDelete, "/tags/"+id.String(), nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetAutoApproved(t *testing.T) {
	id := uuid.New()
	mock, r := setup(t, &access.Actor{UserID: uuid.New(), Active: true, Superadmin: true})

	w := send(r, http.MethodPut, "/tags/"+id.String()+"/auto-approve", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE tags SET is_auto_approved = $1")).WithArgs(true, id).
		WillReturnRows(pgxmock.NewRows(tagCols).AddRow(id, uuid.New(), "Official", "", true, time.Now()))
	w = send(r, http.MethodPut, "/tags/"+id.String()+"/auto-approve", map[string]any{"enabled": true})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}
