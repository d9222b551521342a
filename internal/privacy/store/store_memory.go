package store

import (
	"context"
	"sync"
	"time"

	"memberhub/internal/privacy/models"
	"memberhub/pkg/platform/sentinel"
)

type InMemoryDeletionStore struct {
	mu       sync.RWMutex
	requests map[string]models.DeletionRequest
}

func NewInMemoryDeletionStore() *InMemoryDeletionStore {
	return &InMemoryDeletionStore{requests: make(map[string]models.DeletionRequest)}
}

func (s *InMemoryDeletionStore) Create(_ context.Context, req models.DeletionRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.requests[req.ID]; exists {
		return sentinel.ErrConflict
	}
	s.requests[req.ID] = cloneDeletion(req)
	return nil
}

func (s *InMemoryDeletionStore) FindByID(_ context.Context, id string) (models.DeletionRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if req, ok := s.requests[id]; ok {
		return cloneDeletion(req), nil
	}
	return models.DeletionRequest{}, sentinel.ErrNotFound
}

func (s *InMemoryDeletionStore) Update(_ context.Context, req models.DeletionRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.requests[req.ID]; !exists {
		return sentinel.ErrNotFound
	}
	s.requests[req.ID] = cloneDeletion(req)
	return nil
}

func (s *InMemoryDeletionStore) FindActiveByUser(_ context.Context, userID string) (models.DeletionRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, req := range s.requests {
		if req.UserID == userID && !req.State.Terminal() {
			return cloneDeletion(req), nil
		}
	}
	return models.DeletionRequest{}, sentinel.ErrNotFound
}

func cloneDeletion(req models.DeletionRequest) models.DeletionRequest {
	steps := make(map[string]models.StepResult, len(req.Steps))
	for k, v := range req.Steps {
		steps[k] = v
	}
	req.Steps = steps
	return req
}

type InMemoryExportStore struct {
	mu       sync.RWMutex
	requests map[string]models.ExportRequest
}

func NewInMemoryExportStore() *InMemoryExportStore {
	return &InMemoryExportStore{requests: make(map[string]models.ExportRequest)}
}

func (s *InMemoryExportStore) Create(_ context.Context, req models.ExportRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.requests[req.ID]; exists {
		return sentinel.ErrConflict
	}
	s.requests[req.ID] = cloneExport(req)
	return nil
}

func (s *InMemoryExportStore) FindByID(_ context.Context, id string) (models.ExportRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if req, ok := s.requests[id]; ok {
		return cloneExport(req), nil
	}
	return models.ExportRequest{}, sentinel.ErrNotFound
}

func (s *InMemoryExportStore) Update(_ context.Context, req models.ExportRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.requests[req.ID]; !exists {
		return sentinel.ErrNotFound
	}
	s.requests[req.ID] = cloneExport(req)
	return nil
}

func (s *InMemoryExportStore) FindRecentByUser(_ context.Context, userID string, cutoff time.Time) (models.ExportRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var (
		found  bool
		latest models.ExportRequest
	)
	for _, req := range s.requests {
		if req.UserID != userID || req.CreatedAt.Before(cutoff) {
			continue
		}
		if req.State != models.ExportPending && req.State != models.ExportReady {
			continue
		}
		if !found || req.CreatedAt.After(latest.CreatedAt) {
			latest = req
			found = true
		}
	}
	if !found {
		return models.ExportRequest{}, sentinel.ErrNotFound
	}
	return cloneExport(latest), nil
}

func (s *InMemoryExportStore) ListExpired(_ context.Context, now time.Time) ([]models.ExportRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.ExportRequest
	for _, req := range s.requests {
		if req.State == models.ExportReady && now.After(req.ExpiresAt) {
			out = append(out, cloneExport(req))
		}
	}
	return out, nil
}

func cloneExport(req models.ExportRequest) models.ExportRequest {
	counts := make(map[string]int, len(req.Counts))
	for k, v := range req.Counts {
		counts[k] = v
	}
	req.Counts = counts
	return req
}
