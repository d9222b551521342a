package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"memberhub/pkg/platform/sentinel"
)

// PostgresStore persists users in the `users` table. The lifecycle
// compare-and-set is a conditional UPDATE so the check survives process
// restarts and multiple service instances.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Save(ctx context.Context, user User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, name, password_hash, role, status, created_at, updated_at, deleted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			email = EXCLUDED.email,
			name = EXCLUDED.name,
			password_hash = EXCLUDED.password_hash,
			role = EXCLUDED.role,
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at,
			deleted_at = EXCLUDED.deleted_at`,
		user.ID, user.Email, user.Name, user.PasswordHash, user.Role,
		string(user.Status), user.CreatedAt, user.UpdatedAt, user.DeletedAt,
	)
	if err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id string) (User, error) {
	var (
		user   User
		status string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, name, password_hash, role, status, created_at, updated_at, deleted_at
		FROM users WHERE id = $1`, id,
	).Scan(&user.ID, &user.Email, &user.Name, &user.PasswordHash, &user.Role,
		&status, &user.CreatedAt, &user.UpdatedAt, &user.DeletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, sentinel.ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("find user: %w", err)
	}
	user.Status = Status(status)
	return user, nil
}

func (s *PostgresStore) CompareAndSetStatus(ctx context.Context, id string, from, to Status) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET status = $1, updated_at = now()
		WHERE id = $2 AND status = $3`,
		string(to), id, string(from),
	)
	if err != nil {
		return fmt.Errorf("compare-and-set status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("compare-and-set status: %w", err)
	}
	if affected == 0 {
		// Either the user does not exist or the status moved underneath us.
		if _, findErr := s.FindByID(ctx, id); findErr != nil {
			return findErr
		}
		return sentinel.ErrConflict
	}
	return nil
}
