package subscriptions

import (
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

	"github.com/calendint/backend/internal/middleware"
)

func setup(t *testing.T, user uuid.UUID) (pgxmock.PgxPoolIface, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	h := NewHandler(NewRepository(mock), zap.NewNop())
	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set(middleware.ContextUserID, user) })
	r.GET("/me/subscriptions", h.Mine)
	r.POST("/me/subscriptions/organizations/:id", h.SubscribeOrganization)
	r.DELETE("/me/subscriptions/organizations/:id", h.UnsubscribeOrganization)
	r.POST("/me/subscriptions/tags/:id", h.SubscribeTag)
	r.POST("/me/subscriptions/all", h.SubscribeAll)
	r.DELETE("/me/subscriptions/all", h.UnsubscribeAll)
	return mock, r
}

func send(r *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestSubscribeOrganization(t *testing.T) {
	user, org := uuid.New(), uuid.New()
	path := "/me/subscriptions/organizations/" + org.String()
	insert := regexp.QuoteMeta("INSERT INTO subscriptions")

	t.Run("subscribes", func(t *testing.T) {
		mock, r := setup(t, user)
		mock.ExpectQuery(insert).WithArgs(user, &org, (*uuid.UUID)(nil), false).
			WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(uuid.New(), time.Now()))
		w := send(r, http.MethodPost, path)
		assert.Equal(t, http.StatusCreated, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("twice is a conflict", func(t *testing.T) {
		mock, r := setup(t, user)
		mock.ExpectQuery(insert).WithArgs(user, pgxmock.AnyArg(), pgxmock.AnyArg(), false).
			WillReturnError(&pgconn.PgError{Code: "23505"})
		w := send(r, http.MethodPost, path)
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("unknown organization", func(t *testing.T) {
		mock, r := setup(t, user)
		mock.ExpectQuery(insert).WithArgs(user, pgxmock.AnyArg(), pgxmock.AnyArg(), false).
			WillReturnError(&pgconn.PgError{Code: "23503"})
		w := send(r, http.MethodPost, path)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("unsubscribe without subscription", func(t *testing.T) {
		mock, r := setup(t, user)
		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM subscriptions WHERE user_id = $1 AND organization_id = $2")).
			WithArgs(user, org).WillReturnResult(pgxmock.NewResult("DELETE", 0))
		w := send(r, http.MethodDelete, path)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestSubscribeAllIsIdempotent(t *testing.T) {
	user := uuid.New()
	mock, r := setup(t, user)
	for i := 0; i < 2; i++ {
		mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (user_id) WHERE subscribe_all DO NOTHING")).WithArgs(user).
			WillReturnResult(pgxmock.NewResult("INSERT", int64(1-i)))
		assert.Equal(t, http.StatusOK, send(r, http.MethodPost, "/me/subscriptions/all").Code)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMineGroupsByKind(t *testing.T) {
	user, org, tag := uuid.New(), uuid.New(), uuid.New()
	mock, r := setup(t, user)
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM subscriptions WHERE user_id = $1")).WithArgs(user).
		WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "organization_id", "tag_id", "subscribe_all", "created_at"}).
			AddRow(uuid.New(), user, &org, nil, false, now).
			AddRow(uuid.New(), user, nil, &tag, false, now).
			AddRow(uuid.New(), user, nil, nil, true, now))

	w := send(r, http.MethodGet, "/me/subscriptions")
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data Overview `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Data.All)
	require.Len(t, resp.Data.Organizations, 1)
	assert.Equal(t, org, *resp.Data.Organizations[0].OrganizationID)
	require.Len(t, resp.Data.Tags, 1)
	assert.Equal(t, tag, *resp.Data.Tags[0].TagID)
}
