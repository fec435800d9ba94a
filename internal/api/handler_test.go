// internal/api/handler_test.go
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github-repo-etl/internal/errors"
	"github-repo-etl/internal/model"
)

// MockCache is a mock of the CacheReader interface. Stored values are copied
// into dst through JSON.
type MockCache struct {
	mock.Mock
}

func (m *MockCache) Get(ctx context.Context, key string, dst any) error {
	args := m.Called(ctx, key)
	if err := args.Error(1); err != nil {
		return err
	}
	b, _ := json.Marshal(args.Get(0))
	return json.Unmarshal(b, dst)
}

// MockQuerier is a mock of the ReportQuerier interface.
type MockQuerier struct {
	mock.Mock
}

func (m *MockQuerier) QueryJoinedReport(ctx context.Context) ([]model.ReportRow, error) {
	args := m.Called(ctx)
	rows, _ := args.Get(0).([]model.ReportRow)
	return rows, args.Error(1)
}

var report = []model.ReportRow{{RepoID: 1, RepoName: "r1", Status: "public", StarsCount: 3, OwnerID: 10, OwnerName: "alice"}}

func serve(t *testing.T, c *MockCache, q *MockQuerier, path string) *httptest.ResponseRecorder {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	rec := httptest.NewRecorder()
	NewRouter(c, q, logger).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthCheck(t *testing.T) {
	rec := serve(t, new(MockCache), new(MockQuerier), "/health")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestGetRepos(t *testing.T) {
	t.Run("returns cached repos", func(t *testing.T) {
		c := new(MockCache)
		c.On("Get", mock.Anything, "repos").Return(model.Repositories{{ID: 1, Name: "r1", Visibility: "public", StargazersCount: 3, OwnerID: 10}}, nil)

		rec := serve(t, c, new(MockQuerier), "/v1/repos")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `[{"id":1,"name":"r1","visibility":"public","stargazers_count":3,"owner_id":10}]`, rec.Body.String())
	})

	t.Run("404 on cache miss", func(t *testing.T) {
		c := new(MockCache)
		c.On("Get", mock.Anything, "repos").Return(nil, &apperrors.CacheMissError{Key: "repos"})

		rec := serve(t, c, new(MockQuerier), "/v1/repos")

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("503 when the cache is down", func(t *testing.T) {
		c := new(MockCache)
		c.On("Get", mock.Anything, "repos").Return(nil, &apperrors.CacheError{Key: "repos", Err: errors.New("EOF")})

		rec := serve(t, c, new(MockQuerier), "/v1/repos")

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestGetOwners(t *testing.T) {
	c := new(MockCache)
	c.On("Get", mock.Anything, "owners").Return(model.Owners{{ID: 10, Login: "alice"}}, nil)

	rec := serve(t, c, new(MockQuerier), "/v1/owners")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"id":10,"login":"alice","gravatar_id":""}]`, rec.Body.String())
}

func TestGetReport(t *testing.T) {
	t.Run("serves the cached report", func(t *testing.T) {
		c := new(MockCache)
		q := new(MockQuerier)
		c.On("Get", mock.Anything, "result").Return(report, nil)

		rec := serve(t, c, q, "/v1/report")

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "cache", rec.Header().Get("X-Report-Source"))
		var got []model.ReportRow
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, report, got)
		q.AssertNotCalled(t, "QueryJoinedReport", mock.Anything)
	})

	t.Run("falls back to the database", func(t *testing.T) {
		c := new(MockCache)
		q := new(MockQuerier)
		c.On("Get", mock.Anything, "result").Return(nil, &apperrors.CacheMissError{Key: "result"})
		q.On("QueryJoinedReport", mock.Anything).Return(report, nil).Once()

		rec := serve(t, c, q, "/v1/report")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "database", rec.Header().Get("X-Report-Source"))
		q.AssertExpectations(t)
	})

	t.Run("500 when both fail", func(t *testing.T) {
		c := new(MockCache)
		q := new(MockQuerier)
		c.On("Get", mock.Anything, "result").Return(nil, &apperrors.DeserializeError{Key: "result"})
		q.On("QueryJoinedReport", mock.Anything).Return(nil, &apperrors.QueryError{Err: errors.New("down")})

		rec := serve(t, c, q, "/v1/report")

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}
