package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"memberhub/internal/privacy/models"
	"memberhub/pkg/platform/sentinel"
)

// PostgresDeletionStore persists deletion requests with the per-step result
// map as JSONB so resumption state survives restarts.
type PostgresDeletionStore struct {
	db *sql.DB
}

func NewPostgresDeletionStore(db *sql.DB) *PostgresDeletionStore {
	return &PostgresDeletionStore{db: db}
}

func (s *PostgresDeletionStore) Create(ctx context.Context, req models.DeletionRequest) error {
	steps, err := json.Marshal(req.Steps)
	if err != nil {
		return fmt.Errorf("marshal step results: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO deletion_requests (id, user_id, recipient_email, state, steps, requested_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		req.ID, req.UserID, req.RecipientEmail, string(req.State), steps, req.RequestedAt, req.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("create deletion request: %w", err)
	}
	return nil
}

func (s *PostgresDeletionStore) FindByID(ctx context.Context, id string) (models.DeletionRequest, error) {
	return s.scanOne(s.db.QueryRowContext(ctx, `
		SELECT id, user_id, recipient_email, state, steps, requested_at, completed_at
		FROM deletion_requests WHERE id = $1`, id))
}

func (s *PostgresDeletionStore) Update(ctx context.Context, req models.DeletionRequest) error {
	steps, err := json.Marshal(req.Steps)
	if err != nil {
		return fmt.Errorf("marshal step results: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE deletion_requests
		SET recipient_email = $1, state = $2, steps = $3, completed_at = $4
		WHERE id = $5`,
		req.RecipientEmail, string(req.State), steps, req.CompletedAt, req.ID,
	)
	if err != nil {
		return fmt.Errorf("update deletion request: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresDeletionStore) FindActiveByUser(ctx context.Context, userID string) (models.DeletionRequest, error) {
	return s.scanOne(s.db.QueryRowContext(ctx, `
		SELECT id, user_id, recipient_email, state, steps, requested_at, completed_at
		FROM deletion_requests
		WHERE user_id = $1 AND state NOT IN ('completed', 'failed')
		ORDER BY requested_at DESC LIMIT 1`, userID))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *PostgresDeletionStore) scanOne(row rowScanner) (models.DeletionRequest, error) {
	var (
		req   models.DeletionRequest
		state string
		steps []byte
	)
	err := row.Scan(&req.ID, &req.UserID, &req.RecipientEmail, &state, &steps, &req.RequestedAt, &req.CompletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.DeletionRequest{}, sentinel.ErrNotFound
	}
	if err != nil {
		return models.DeletionRequest{}, fmt.Errorf("scan deletion request: %w", err)
	}
	req.State = models.DeletionState(state)
	if len(steps) > 0 {
		if err := json.Unmarshal(steps, &req.Steps); err != nil {
			return models.DeletionRequest{}, fmt.Errorf("decode step results: %w", err)
		}
	}
	if req.Steps == nil {
		req.Steps = make(map[string]models.StepResult)
	}
	return req, nil
}

// PostgresExportStore persists export requests.
type PostgresExportStore struct {
	db *sql.DB
}

func NewPostgresExportStore(db *sql.DB) *PostgresExportStore {
	return &PostgresExportStore{db: db}
}

func (s *PostgresExportStore) Create(ctx context.Context, req models.ExportRequest) error {
	counts, err := json.Marshal(req.Counts)
	if err != nil {
		return fmt.Errorf("marshal export counts: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO export_requests (id, user_id, state, object_key, signed_url, byte_size, counts, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		req.ID, req.UserID, string(req.State), req.ObjectKey, req.SignedURL, req.ByteSize, counts, req.CreatedAt, req.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("create export request: %w", err)
	}
	return nil
}

func (s *PostgresExportStore) FindByID(ctx context.Context, id string) (models.ExportRequest, error) {
	return s.scanOne(s.db.QueryRowContext(ctx, `
		SELECT id, user_id, state, object_key, signed_url, byte_size, counts, created_at, expires_at
		FROM export_requests WHERE id = $1`, id))
}

func (s *PostgresExportStore) Update(ctx context.Context, req models.ExportRequest) error {
	counts, err := json.Marshal(req.Counts)
	if err != nil {
		return fmt.Errorf("marshal export counts: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE export_requests
		SET state = $1, object_key = $2, signed_url = $3, byte_size = $4, counts = $5, expires_at = $6
		WHERE id = $7`,
		string(req.State), req.ObjectKey, req.SignedURL, req.ByteSize, counts, req.ExpiresAt, req.ID,
	)
	if err != nil {
		return fmt.Errorf("update export request: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresExportStore) FindRecentByUser(ctx context.Context, userID string, cutoff time.Time) (models.ExportRequest, error) {
	return s.scanOne(s.db.QueryRowContext(ctx, `
		SELECT id, user_id, state, object_key, signed_url, byte_size, counts, created_at, expires_at
		FROM export_requests
		WHERE user_id = $1 AND created_at >= $2 AND state IN ('pending', 'ready')
		ORDER BY created_at DESC LIMIT 1`, userID, cutoff))
}

func (s *PostgresExportStore) ListExpired(ctx context.Context, now time.Time) ([]models.ExportRequest, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, state, object_key, signed_url, byte_size, counts, created_at, expires_at
		FROM export_requests
		WHERE state = 'ready' AND expires_at < $1`, now)
	if err != nil {
		return nil, fmt.Errorf("list expired exports: %w", err)
	}
	defer rows.Close()

	var out []models.ExportRequest
	for rows.Next() {
		req, err := s.scanOne(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

func (s *PostgresExportStore) scanOne(row rowScanner) (models.ExportRequest, error) {
	var (
		req    models.ExportRequest
		state  string
		counts []byte
	)
	err := row.Scan(&req.ID, &req.UserID, &state, &req.ObjectKey, &req.SignedURL, &req.ByteSize, &counts, &req.CreatedAt, &req.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ExportRequest{}, sentinel.ErrNotFound
	}
	if err != nil {
		return models.ExportRequest{}, fmt.Errorf("scan export request: %w", err)
	}
	req.State = models.ExportState(state)
	if len(counts) > 0 {
		if err := json.Unmarshal(counts, &req.Counts); err != nil {
			return models.ExportRequest{}, fmt.Errorf("decode export counts: %w", err)
		}
	}
	return req, nil
}
