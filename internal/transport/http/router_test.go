package http

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jwttoken "memberhub/internal/jwt_token"
	"memberhub/internal/privacy/handler"
	"memberhub/internal/privacy/models"
	"memberhub/pkg/requestcontext"
)

type stubService struct{}

func (stubService) RequestDeletion(context.Context, string, string) (models.DeletionRequest, error) {
	return models.DeletionRequest{ID: "del-1", State: models.DeletionRequested, RequestedAt: time.Now()}, nil
}

func (stubService) GetDeletion(ctx context.Context, id string) (models.DeletionRequest, error) {
	return models.DeletionRequest{ID: id, UserID: requestcontext.UserID(ctx), State: models.DeletionInProgress, RequestedAt: time.Now()}, nil
}

func (stubService) RetryDeletion(_ context.Context, id string) (models.DeletionRequest, error) {
	return models.DeletionRequest{ID: id, State: models.DeletionFailed, RequestedAt: time.Now()}, nil
}

func (stubService) RequestExport(context.Context) (models.ExportRequest, error) {
	return models.ExportRequest{ID: "exp-1", State: models.ExportPending, CreatedAt: time.Now()}, nil
}

func (stubService) GetExport(_ context.Context, id string) (models.ExportRequest, error) {
	return models.ExportRequest{ID: id, State: models.ExportPending, CreatedAt: time.Now()}, nil
}

func (stubService) PurgeExport(context.Context, string) error { return nil }

func testRouter(t *testing.T) (http.Handler, *jwttoken.JWTService) {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	jwtSvc := jwttoken.NewJWTService("test-key", "memberhub", "memberhub")
	router := NewRouter(Deps{
		Privacy:   handler.New(stubService{}, logger),
		Validator: jwttoken.NewMiddlewareAdapter(jwtSvc),
		Logger:    logger,
		Metrics:   nil,
	})
	return router, jwtSvc
}

func bearer(t *testing.T, svc *jwttoken.JWTService, userID, role string) string {
	t.Helper()
	token, err := svc.GenerateAccessToken(userID, role, time.Hour)
	require.NoError(t, err)
	return "Bearer " + token
}

func TestHealthz(t *testing.T) {
	router, _ := testRouter(t)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	router, _ := testRouter(t)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPrivacyRoutesRequireAuth(t *testing.T) {
	router, _ := testRouter(t)
	for _, route := range []struct{ method, path string }{
		{http.MethodPost, "/privacy/export"},
		{http.MethodGet, "/privacy/export/exp-1"},
		{http.MethodPost, "/privacy/delete-account"},
		{http.MethodGet, "/privacy/deletion/del-1"},
	} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(route.method, route.path, nil))
		assert.Equalf(t, http.StatusUnauthorized, rec.Code, "%s %s", route.method, route.path)
	}
}

func TestAuthenticatedRequestPassesThrough(t *testing.T) {
	router, jwtSvc := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/privacy/deletion/del-1", nil)
	req.Header.Set("Authorization", bearer(t, jwtSvc, "u-42", "member"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRetryRequiresAdmin(t *testing.T) {
	router, jwtSvc := testRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/privacy/deletion/del-1/retry", nil)
	req.Header.Set("Authorization", bearer(t, jwtSvc, "u-42", "member"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/privacy/deletion/del-1/retry", nil)
	req.Header.Set("Authorization", bearer(t, jwtSvc, "admin-1", "admin"))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestExpiredTokenRejected(t *testing.T) {
	router, jwtSvc := testRouter(t)

	token, err := jwtSvc.GenerateAccessToken("u-42", "member", -time.Minute)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/privacy/deletion/del-1", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
