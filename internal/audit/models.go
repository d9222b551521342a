// Package audit provides the append-only audit trail. The Recorder is the
// only component permitted to write audit entries; everything else holds a
// read-only or emit-only handle.
package audit

import "time"

// Action names for entries written by the privacy core.
const (
	ActionDeletionRequested = "deletion_requested"
	ActionDeletionStep      = "deletion_step"
	ActionDeletionCompleted = "deletion_completed"
	ActionDeletionFailed    = "deletion_failed"
	ActionExportRequested   = "export_requested"
	ActionExportBuilt       = "export_built"
	ActionExportPurged      = "export_purged"
)

// Entry is one immutable audit record. Entries are never updated after
// creation; the actor field is itself anonymized later under the short-term
// retention class like any other record.
type Entry struct {
	ID           string
	Actor        string
	Action       string
	ResourceType string
	ResourceID   string
	Success      bool
	Metadata     map[string]any
	CreatedAt    time.Time

	// RetentionUntil is stamped by the erasure pipeline (short-term class);
	// a separate sweep hard-deletes entries past it.
	RetentionUntil *time.Time
}
