// Package handler exposes the privacy operations over HTTP. All heavy work
// is asynchronous: mutating endpoints return 202 with a descriptor the
// client polls.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"memberhub/internal/privacy/models"
	"memberhub/internal/transport/http/shared"
	dErrors "memberhub/pkg/domain-errors"
)

type Service interface {
	RequestDeletion(ctx context.Context, password, confirmationPhrase string) (models.DeletionRequest, error)
	GetDeletion(ctx context.Context, id string) (models.DeletionRequest, error)
	RetryDeletion(ctx context.Context, id string) (models.DeletionRequest, error)
	RequestExport(ctx context.Context) (models.ExportRequest, error)
	GetExport(ctx context.Context, id string) (models.ExportRequest, error)
	PurgeExport(ctx context.Context, id string) error
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

type deleteAccountRequest struct {
	Password     string `json:"password"`
	Confirmation string `json:"confirmation"`
}

type deletionResponse struct {
	ID          string            `json:"id"`
	State       string            `json:"state"`
	Steps       map[string]string `json:"steps,omitempty"`
	RequestedAt string            `json:"requested_at"`
	CompletedAt string            `json:"completed_at,omitempty"`
}

type exportResponse struct {
	ID          string         `json:"id"`
	State       string         `json:"state"`
	DownloadURL string         `json:"download_url,omitempty"`
	ExpiresAt   string         `json:"expires_at,omitempty"`
	ByteSize    int64          `json:"byte_size,omitempty"`
	Counts      map[string]int `json:"record_counts,omitempty"`
	CreatedAt   string         `json:"created_at"`
}

// DeleteAccount handles POST /privacy/delete-account.
func (h *Handler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	var body deleteAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	req, err := h.service.RequestDeletion(r.Context(), body.Password, body.Confirmation)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusAccepted, toDeletionResponse(req))
}

// GetDeletion handles GET /privacy/deletion/{id}.
func (h *Handler) GetDeletion(w http.ResponseWriter, r *http.Request) {
	req, err := h.service.GetDeletion(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toDeletionResponse(req))
}

// RetryDeletion handles POST /privacy/deletion/{id}/retry.
func (h *Handler) RetryDeletion(w http.ResponseWriter, r *http.Request) {
	req, err := h.service.RetryDeletion(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusAccepted, toDeletionResponse(req))
}

// RequestExport handles POST /privacy/export.
func (h *Handler) RequestExport(w http.ResponseWriter, r *http.Request) {
	req, err := h.service.RequestExport(r.Context())
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusAccepted, toExportResponse(req))
}

// GetExport handles GET /privacy/export/{id}.
func (h *Handler) GetExport(w http.ResponseWriter, r *http.Request) {
	req, err := h.service.GetExport(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toExportResponse(req))
}

// PurgeExport handles DELETE /privacy/export/{id}.
func (h *Handler) PurgeExport(w http.ResponseWriter, r *http.Request) {
	if err := h.service.PurgeExport(r.Context(), chi.URLParam(r, "id")); err != nil {
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func toDeletionResponse(req models.DeletionRequest) deletionResponse {
	resp := deletionResponse{
		ID:          req.ID,
		State:       string(req.State),
		RequestedAt: req.RequestedAt.Format(timeFormat),
	}
	if len(req.Steps) > 0 {
		resp.Steps = make(map[string]string, len(req.Steps))
		for name, result := range req.Steps {
			resp.Steps[name] = string(result.Status)
		}
	}
	if req.CompletedAt != nil {
		resp.CompletedAt = req.CompletedAt.Format(timeFormat)
	}
	return resp
}

func toExportResponse(req models.ExportRequest) exportResponse {
	resp := exportResponse{
		ID:        req.ID,
		State:     string(req.State),
		ByteSize:  req.ByteSize,
		Counts:    req.Counts,
		CreatedAt: req.CreatedAt.Format(timeFormat),
	}
	if req.State == models.ExportReady {
		resp.DownloadURL = req.SignedURL
		resp.ExpiresAt = req.ExpiresAt.Format(timeFormat)
	}
	return resp
}

const timeFormat = "2006-01-02T15:04:05Z07:00"
