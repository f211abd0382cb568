package groups

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
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/calendint/backend/internal/access"
	"github.com/calendint/backend/internal/middleware"
	"github.com/calendint/backend/internal/models"
)

var groupCols = []string{"id", "organization_id", "name", "description", "created_at", "count"}

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
	r.GET("/organizations/:id/groups", h.List)
	r.POST("/organizations/:id/groups", h.Create)
	r.POST("/organizations/:id/groups/:groupId/members", h.AddMember)
	r.DELETE("/organizations/:id/groups/:groupId", h.Delete)
	return mock, r
}

func send(r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var b []byte
	if body != nil {
		b, _ = json.Marshal(body)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func orgActor(org uuid.UUID, role models.Role) *access.Actor {
	return &access.Actor{UserID: uuid.New(), Active: true, Memberships: map[uuid.UUID]models.Role{org: role}}
}

func TestList(t *testing.T) {
	org := uuid.New()

	t.Run("viewer reads", func(t *testing.T) {
		mock, r := setup(t, orgActor(org, models.RoleOrgViewer))
		mock.ExpectQuery(regexp.QuoteMeta("FROM groups g")).WithArgs(org).
			WillReturnRows(pgxmock.NewRows(groupCols).AddRow(uuid.New(), org, "Board", "", time.Now(), 3))
		w := send(r, http.MethodGet, "/organizations/"+org.String()+"/groups", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"member_count":3`)
	})

	t.Run("outsider denied", func(t *testing.T) {
		_, r := setup(t, orgActor(uuid.New(), models.RoleOrgAdmin))
		w := send(r, http.MethodGet, "/organizations/"+org.String()+"/groups", nil)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestCreate(t *testing.T) {
	org := uuid.New()
	path := "/organizations/" + org.String() + "/groups"

	t.Run("blank name", func(t *testing.T) {
		_, r := setup(t, orgActor(org, models.RoleOrgAdmin))
		w := send(r, http.MethodPost, path, map[string]any{"name": "   "})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("member cannot create", func(t *testing.T) {
		_, r := setup(t, orgActor(org, models.RoleOrgMember))
		w := send(r, http.MethodPost, path, map[string]any{"name": "Board"})
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("admin creates", func(t *testing.T) {
		mock, r := setup(t, orgActor(org, models.RoleOrgAdmin))
		mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO groups")).WithArgs(org, "Board", "").
			WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(uuid.New(), time.Now()))
		w := send(r, http.MethodPost, path, map[string]any{"name": " Board "})
		assert.Equal(t, http.StatusCreated, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestAddMember(t *testing.T) {
	org := uuid.New()
	group := uuid.New()
	user := uuid.New()
	path := "/organizations/" + org.String() + "/groups/" + group.String() + "/members"

	expectGroup := func(mock pgxmock.PgxPoolIface, owner uuid.UUID) {
		mock.ExpectQuery(regexp.QuoteMeta("FROM groups g WHERE g.id = $1")).WithArgs(group).
			WillReturnRows(pgxmock.NewRows(groupCols).AddRow(group, owner, "Board", "", time.Now(), 0))
	}

	t.Run("adds organization member", func(t *testing.T) {
		mock, r := setup(t, orgActor(org, models.RoleOrgAdmin))
		expectGroup(mock, org)
		mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).WithArgs(org, user).
			WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO group_memberships")).WithArgs(group, user).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		w := send(r, http.MethodPost, path, map[string]any{"user_id": user})
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects outsider", func(t *testing.T) {
		mock, r := setup(t, orgActor(org, models.RoleOrgAdmin))
		expectGroup(mock, org)
		mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).WithArgs(org, user).
			WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
		w := send(r, http.MethodPost, path, map[string]any{"user_id": user})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("group of another organization", func(t *testing.T) {
		mock, r := setup(t, orgActor(org, models.RoleOrgAdmin))
		expectGroup(mock, uuid.New())
		w := send(r, http.MethodPost, path, map[string]any{"user_id": user})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestDelete(t *testing.T) {
	org := uuid.New()
	group := uuid.New()

	mock, r := setup(t, orgActor(org, models.RoleOrgAdmin))
	mock.ExpectQuery(regexp.QuoteMeta("FROM groups g WHERE g.id = $1")).WithArgs(group).
		WillReturnRows(pgxmock.NewRows(groupCols).AddRow(group, org, "Board", "", time.Now(), 0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM groups")).WithArgs(group).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	w := send(r, http.MethodDelete, "/organizations/"+org.String()+"/groups/"+group.String(), nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}
