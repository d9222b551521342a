// Package store persists deletion and export requests. Interface-driven so
// the orchestrator and gateway stay testable against the in-memory variant.
package store

import (
	"context"
	"time"

	"memberhub/internal/privacy/models"
)

type DeletionStore interface {
	Create(ctx context.Context, req models.DeletionRequest) error
	FindByID(ctx context.Context, id string) (models.DeletionRequest, error)
	// Update persists the whole request; the orchestrator calls it after
	// every step so progress survives a crash.
	Update(ctx context.Context, req models.DeletionRequest) error
	// FindActiveByUser returns the non-terminal request for a user, if any.
	FindActiveByUser(ctx context.Context, userID string) (models.DeletionRequest, error)
}

type ExportStore interface {
	Create(ctx context.Context, req models.ExportRequest) error
	FindByID(ctx context.Context, id string) (models.ExportRequest, error)
	Update(ctx context.Context, req models.ExportRequest) error
	// FindRecentByUser returns the most recent pending-or-ready request for
	// the user created after cutoff. Backs the rolling rate limit.
	FindRecentByUser(ctx context.Context, userID string, cutoff time.Time) (models.ExportRequest, error)
	// ListExpired returns ready requests whose expiry is past `now`.
	ListExpired(ctx context.Context, now time.Time) ([]models.ExportRequest, error)
}
