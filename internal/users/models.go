// Package users owns the account record and its lifecycle. The deletion
// pipeline is the only writer of lifecycle transitions past active.
package users

import "time"

// Status is the account lifecycle state.
type Status string

const (
	StatusActive             Status = "active"
	StatusDeletionInProgress Status = "deletion_in_progress"
	StatusDeleted            Status = "deleted"
)

// User is the account record.
type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	Role         string
	Status       Status
	CreatedAt    time.Time
	UpdatedAt    time.Time
	DeletedAt    *time.Time
}
