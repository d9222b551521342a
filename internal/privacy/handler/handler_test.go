package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memberhub/internal/privacy/models"
	dErrors "memberhub/pkg/domain-errors"
	"memberhub/pkg/testutil"
)

type stubService struct {
	requestDeletion func(ctx context.Context, password, phrase string) (models.DeletionRequest, error)
	getDeletion     func(ctx context.Context, id string) (models.DeletionRequest, error)
	retryDeletion   func(ctx context.Context, id string) (models.DeletionRequest, error)
	requestExport   func(ctx context.Context) (models.ExportRequest, error)
	getExport       func(ctx context.Context, id string) (models.ExportRequest, error)
	purgeExport     func(ctx context.Context, id string) error
}

func (s *stubService) RequestDeletion(ctx context.Context, password, phrase string) (models.DeletionRequest, error) {
	return s.requestDeletion(ctx, password, phrase)
}

func (s *stubService) GetDeletion(ctx context.Context, id string) (models.DeletionRequest, error) {
	return s.getDeletion(ctx, id)
}

func (s *stubService) RetryDeletion(ctx context.Context, id string) (models.DeletionRequest, error) {
	return s.retryDeletion(ctx, id)
}

func (s *stubService) RequestExport(ctx context.Context) (models.ExportRequest, error) {
	return s.requestExport(ctx)
}

func (s *stubService) GetExport(ctx context.Context, id string) (models.ExportRequest, error) {
	return s.getExport(ctx, id)
}

func (s *stubService) PurgeExport(ctx context.Context, id string) error {
	return s.purgeExport(ctx, id)
}

func newRouter(svc Service) http.Handler {
	h := New(svc, slog.New(slog.DiscardHandler))
	r := chi.NewRouter()
	r.Post("/privacy/export", h.RequestExport)
	r.Get("/privacy/export/{id}", h.GetExport)
	r.Delete("/privacy/export/{id}", h.PurgeExport)
	r.Post("/privacy/delete-account", h.DeleteAccount)
	r.Get("/privacy/deletion/{id}", h.GetDeletion)
	r.Post("/privacy/deletion/{id}/retry", h.RetryDeletion)
	return r
}

func TestDeleteAccountAccepted(t *testing.T) {
	svc := &stubService{
		requestDeletion: func(_ context.Context, password, phrase string) (models.DeletionRequest, error) {
			assert.Equal(t, "secret", password)
			assert.Equal(t, "DELETE MY ACCOUNT", phrase)
			return models.DeletionRequest{ID: "del-1", State: models.DeletionRequested, RequestedAt: time.Now()}, nil
		},
	}
	rec := httptest.NewRecorder()
	req := testutil.NewJSONRequest(t, http.MethodPost, "/privacy/delete-account", map[string]string{
		"password":     "secret",
		"confirmation": "DELETE MY ACCOUNT",
	})
	newRouter(svc).ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	var body map[string]any
	testutil.DecodeJSON(t, rec, &body)
	assert.Equal(t, "del-1", body["id"])
	assert.Equal(t, "requested", body["state"])
}

func TestDeleteAccountInvalidBody(t *testing.T) {
	svc := &stubService{}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/privacy/delete-account", strings.NewReader("{not json"))
	newRouter(svc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteAccountErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"wrong password", dErrors.New(dErrors.CodeUnauthorized, "invalid credentials"), http.StatusUnauthorized},
		{"wrong phrase", dErrors.New(dErrors.CodeBadRequest, "confirmation phrase does not match"), http.StatusBadRequest},
		{"already in progress", dErrors.New(dErrors.CodeConflict, "account deletion already in progress"), http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubService{
				requestDeletion: func(context.Context, string, string) (models.DeletionRequest, error) {
					return models.DeletionRequest{}, tt.err
				},
			}
			rec := httptest.NewRecorder()
			req := testutil.NewJSONRequest(t, http.MethodPost, "/privacy/delete-account", map[string]string{})
			newRouter(svc).ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestGetDeletionIncludesSteps(t *testing.T) {
	done := time.Now()
	svc := &stubService{
		getDeletion: func(_ context.Context, id string) (models.DeletionRequest, error) {
			assert.Equal(t, "del-1", id)
			return models.DeletionRequest{
				ID:    "del-1",
				State: models.DeletionCompleted,
				Steps: map[string]models.StepResult{
					models.StepAnonymizeUser: {Status: models.StepSuccess},
				},
				RequestedAt: done.Add(-time.Minute),
				CompletedAt: &done,
			}, nil
		},
	}
	rec := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/privacy/deletion/del-1", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		State       string            `json:"state"`
		Steps       map[string]string `json:"steps"`
		CompletedAt string            `json:"completed_at"`
	}
	testutil.DecodeJSON(t, rec, &body)
	assert.Equal(t, "completed", body.State)
	assert.Equal(t, "success", body.Steps[models.StepAnonymizeUser])
	assert.NotEmpty(t, body.CompletedAt)
}

func TestRetryDeletionAccepted(t *testing.T) {
	svc := &stubService{
		retryDeletion: func(_ context.Context, id string) (models.DeletionRequest, error) {
			return models.DeletionRequest{ID: id, State: models.DeletionFailed, RequestedAt: time.Now()}, nil
		},
	}
	rec := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/privacy/deletion/del-1/retry", nil))

	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestRequestExportAccepted(t *testing.T) {
	svc := &stubService{
		requestExport: func(context.Context) (models.ExportRequest, error) {
			return models.ExportRequest{ID: "exp-1", State: models.ExportPending, CreatedAt: time.Now()}, nil
		},
	}
	rec := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/privacy/export", nil))

	require.Equal(t, http.StatusAccepted, rec.Code)
	var body map[string]any
	testutil.DecodeJSON(t, rec, &body)
	assert.Equal(t, "pending", body["state"])
	assert.NotContains(t, body, "download_url")
}

func TestRequestExportRateLimited(t *testing.T) {
	svc := &stubService{
		requestExport: func(context.Context) (models.ExportRequest, error) {
			return models.ExportRequest{}, dErrors.New(dErrors.CodeConflict, "an export was already requested in the last 24 hours")
		},
	}
	rec := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/privacy/export", nil))

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestGetExportReadyIncludesDownloadURL(t *testing.T) {
	svc := &stubService{
		getExport: func(_ context.Context, id string) (models.ExportRequest, error) {
			return models.ExportRequest{
				ID:        id,
				State:     models.ExportReady,
				SignedURL: "https://storage.example.com/exports/exp-1.json?sig=abc",
				ByteSize:  2048,
				Counts:    map[string]int{"profile": 1},
				CreatedAt: time.Now(),
				ExpiresAt: time.Now().Add(24 * time.Hour),
			}, nil
		},
	}
	rec := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/privacy/export/exp-1", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	testutil.DecodeJSON(t, rec, &body)
	assert.Equal(t, "ready", body["state"])
	assert.NotEmpty(t, body["download_url"])
	assert.NotEmpty(t, body["expires_at"])
}

func TestPurgeExportNoContent(t *testing.T) {
	svc := &stubService{
		purgeExport: func(_ context.Context, id string) error {
			assert.Equal(t, "exp-1", id)
			return nil
		},
	}
	rec := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/privacy/export/exp-1", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestNotFoundMapsTo404(t *testing.T) {
	svc := &stubService{
		getDeletion: func(context.Context, string) (models.DeletionRequest, error) {
			return models.DeletionRequest{}, dErrors.New(dErrors.CodeNotFound, "deletion request not found")
		},
	}
	rec := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/privacy/deletion/nope", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
