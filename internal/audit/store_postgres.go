package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// PostgresStore persists audit entries in the `audit_log` table with the
// structured metadata as JSONB.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, entry Entry) error {
	meta, err := json.Marshal(entry.Metadata)
	if err != nil {
		return fmt.Errorf("marshal audit metadata: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_log (id, actor, action, resource_type, resource_id, success, metadata, created_at, retention_until)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		entry.ID, entry.Actor, entry.Action, entry.ResourceType, entry.ResourceID,
		entry.Success, meta, entry.CreatedAt, entry.RetentionUntil,
	)
	if err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByActor(ctx context.Context, actor string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, actor, action, resource_type, resource_id, success, metadata, created_at, retention_until
		FROM audit_log WHERE actor = $1 ORDER BY created_at`, actor,
	)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e    Entry
			meta []byte
		)
		if err := rows.Scan(&e.ID, &e.Actor, &e.Action, &e.ResourceType, &e.ResourceID,
			&e.Success, &meta, &e.CreatedAt, &e.RetentionUntil); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &e.Metadata); err != nil {
				return nil, fmt.Errorf("decode audit metadata: %w", err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpdateEntry(ctx context.Context, id string, entry Entry) error {
	meta, err := json.Marshal(entry.Metadata)
	if err != nil {
		return fmt.Errorf("marshal audit metadata: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE audit_log SET actor = $1, metadata = $2, retention_until = $3 WHERE id = $4`,
		entry.Actor, meta, entry.RetentionUntil, id,
	)
	if err != nil {
		return fmt.Errorf("update audit entry: %w", err)
	}
	return nil
}
