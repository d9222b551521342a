package audit

import "context"

// Store is append-only persistence for audit entries. Implementations must
// never expose an update path for anything but actor anonymization, which
// goes through UpdateEntry and is reserved for the collection walker.
type Store interface {
	Append(ctx context.Context, entry Entry) error
	ListByActor(ctx context.Context, actor string) ([]Entry, error)

	// UpdateEntry rewrites a single entry in place. Exists solely so the
	// erasure pipeline can anonymize the actor field; business code must
	// not call it.
	UpdateEntry(ctx context.Context, id string, entry Entry) error
}
