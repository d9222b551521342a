package users

import "context"

// Store is interface-driven to keep the domain logic testable and to allow
// swapping in-memory and Postgres persistence without rewiring business code.
type Store interface {
	Save(ctx context.Context, user User) error
	FindByID(ctx context.Context, id string) (User, error)

	// CompareAndSetStatus transitions the lifecycle status atomically.
	// Returns sentinel.ErrConflict when the current status does not match
	// `from`, which is how at-most-one in-flight deletion is enforced.
	CompareAndSetStatus(ctx context.Context, id string, from, to Status) error
}
