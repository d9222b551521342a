package audit

import (
	"context"
	"time"

	"memberhub/internal/records"
)

// CollectionAdapter exposes the audit trail to the collection walker as a
// resource-type collection, so a user's audit entries get their actor field
// anonymized under the short-term retention class like any other record.
type CollectionAdapter struct {
	store Store
}

func NewCollectionAdapter(store Store) *CollectionAdapter {
	return &CollectionAdapter{store: store}
}

func (a *CollectionAdapter) ListByUser(ctx context.Context, userRef string) ([]records.Document, error) {
	entries, err := a.store.ListByActor(ctx, userRef)
	if err != nil {
		return nil, err
	}
	out := make([]records.Document, 0, len(entries))
	for _, e := range entries {
		out = append(out, entryToDocument(e))
	}
	return out, nil
}

func (a *CollectionAdapter) Update(ctx context.Context, docID string, doc records.Document) error {
	entry, err := documentToEntry(doc)
	if err != nil {
		return err
	}
	return a.store.UpdateEntry(ctx, docID, entry)
}

func entryToDocument(e Entry) records.Document {
	doc := records.Document{
		"id":            e.ID,
		"user_id":       e.Actor,
		"action":        e.Action,
		"resource_type": e.ResourceType,
		"resource_id":   e.ResourceID,
		"success":       e.Success,
		"metadata":      map[string]any(e.Metadata),
		"created_at":    e.CreatedAt,
	}
	if e.RetentionUntil != nil {
		doc["retention_until"] = *e.RetentionUntil
	}
	return doc
}

func documentToEntry(doc records.Document) (Entry, error) {
	e := Entry{
		ID:    doc.ID(),
		Actor: doc.UserRef(),
	}
	if v, ok := doc["action"].(string); ok {
		e.Action = v
	}
	if v, ok := doc["resource_type"].(string); ok {
		e.ResourceType = v
	}
	if v, ok := doc["resource_id"].(string); ok {
		e.ResourceID = v
	}
	if v, ok := doc["success"].(bool); ok {
		e.Success = v
	}
	if v, ok := doc["metadata"].(map[string]any); ok {
		e.Metadata = v
	}
	if v, ok := doc["retention_until"].(time.Time); ok {
		e.RetentionUntil = &v
	}
	return e, nil
}
