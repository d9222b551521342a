package records

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// PostgresCollection stores one resource type's documents as JSONB rows in
// the shared `documents` table. The user reference is denormalized into its
// own column so the walker's query stays an index scan.
type PostgresCollection struct {
	db           *sql.DB
	resourceType string
}

func NewPostgresCollection(db *sql.DB, resourceType string) *PostgresCollection {
	return &PostgresCollection{db: db, resourceType: resourceType}
}

func (c *PostgresCollection) ListByUser(ctx context.Context, userRef string) ([]Document, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT doc FROM documents
		WHERE resource_type = $1 AND user_ref = $2
		ORDER BY id`, c.resourceType, userRef,
	)
	if err != nil {
		return nil, fmt.Errorf("list %s documents: %w", c.resourceType, err)
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan %s document: %w", c.resourceType, err)
		}
		var doc Document
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("decode %s document: %w", c.resourceType, err)
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

func (c *PostgresCollection) Update(ctx context.Context, docID string, doc Document) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s document: %w", c.resourceType, err)
	}
	_, err = c.db.ExecContext(ctx, `
		UPDATE documents SET doc = $1, user_ref = $2
		WHERE resource_type = $3 AND id = $4`,
		raw, doc.UserRef(), c.resourceType, docID,
	)
	if err != nil {
		return fmt.Errorf("update %s document: %w", c.resourceType, err)
	}
	return nil
}
