// Package models holds the persisted state of privacy operations.
package models

import "time"

// DeletionState is the lifecycle of one deletion request.
type DeletionState string

const (
	DeletionRequested  DeletionState = "requested"
	DeletionValidating DeletionState = "validating"
	DeletionInProgress DeletionState = "in_progress"
	DeletionCompleted  DeletionState = "completed"
	DeletionFailed     DeletionState = "failed"
)

// Terminal reports whether the state accepts no further transitions
// (completed) or only operator-driven re-entry (failed).
func (s DeletionState) Terminal() bool {
	return s == DeletionCompleted || s == DeletionFailed
}

// Pipeline step names, in execution order.
const (
	StepCancelSubscription = "cancel_subscription"
	StepAnonymizeImmediate = "anonymize_immediate"
	StepAnonymizeRetained  = "anonymize_retained"
	StepAnonymizeUser      = "anonymize_user"
	StepInvalidateTokens   = "invalidate_tokens"
	StepNotify             = "notify"
	StepAuditTrail         = "audit_trail"
)

// StepStatus is the recorded outcome of one pipeline step.
type StepStatus string

const (
	StepPending StepStatus = "pending"
	StepSuccess StepStatus = "success"
	StepFailed  StepStatus = "failed"
)

// StepResult is one step's durable outcome. The result map is what makes
// resumption idempotent: re-entry skips steps already marked success.
type StepResult struct {
	Status StepStatus `json:"status"`
	// Detail carries the failure reason or a short summary (e.g. the
	// failing resource types for the retained-class step).
	Detail      string     `json:"detail,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// DeletionRequest tracks one deletion operation. Created by the request
// gateway, mutated only by the orchestrator, never deleted: it becomes part
// of the audit trail and is anonymized like other short-term records.
type DeletionRequest struct {
	ID     string
	UserID string
	// RecipientEmail is captured before erasure so the confirmation
	// notification still has somewhere to go after the account's own email
	// is anonymized.
	RecipientEmail string
	State          DeletionState
	Steps          map[string]StepResult
	RequestedAt    time.Time
	CompletedAt    *time.Time
}

// StepSucceeded reports whether a step is already recorded successful.
func (r *DeletionRequest) StepSucceeded(step string) bool {
	return r.Steps[step].Status == StepSuccess
}

// ExportState is the lifecycle of one export request.
type ExportState string

const (
	ExportPending ExportState = "pending"
	ExportReady   ExportState = "ready"
	ExportFailed  ExportState = "failed"
	ExportPurged  ExportState = "purged"
)

// ExportRequest tracks one export operation. Expires and is purged after a
// fixed window regardless of download.
type ExportRequest struct {
	ID        string
	UserID    string
	State     ExportState
	ObjectKey string
	SignedURL string
	ByteSize  int64
	// Counts is the number of exported records per resource type.
	Counts    map[string]int
	CreatedAt time.Time
	ExpiresAt time.Time
}
