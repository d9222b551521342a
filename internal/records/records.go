// Package records is the narrow interface to the document store: generic
// query/update-by-filter over each resource-type collection. The collection
// walker is its only consumer inside the privacy core.
package records

import "context"

// Document is one record from a resource-type collection. Documents carry an
// "id" field and reference their owner through a "user_id" field.
type Document map[string]any

// ID returns the document's identifier, or "" when absent.
func (d Document) ID() string {
	if id, ok := d["id"].(string); ok {
		return id
	}
	return ""
}

// UserRef returns the document's user reference, or "" when absent.
func (d Document) UserRef() string {
	if ref, ok := d["user_id"].(string); ok {
		return ref
	}
	return ""
}

// Clone returns a deep copy, so mutation never leaks into the caller's view.
func (d Document) Clone() Document {
	return cloneMap(d)
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case Document:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

// Collection is one resource-type collection in the document store.
type Collection interface {
	ListByUser(ctx context.Context, userRef string) ([]Document, error)
	Update(ctx context.Context, docID string, doc Document) error
}

// Registered resource types. Order matters: the walker processes types in
// this order so counts and step results are stable.
const (
	TypeProfile      = "profile"
	TypeApplication  = "application"
	TypeSubscription = "subscription"
	TypePayment      = "payment"
	TypeRSVP         = "rsvp"
	TypeSearchQuery  = "search-query"
	TypeAttendance   = "attendance"
	TypeComment      = "comment"
	TypeAuditLog     = "audit-log"
)

// DefaultTypes lists every registered resource type in walk order.
func DefaultTypes() []string {
	return []string{
		TypeProfile,
		TypeApplication,
		TypeSubscription,
		TypePayment,
		TypeRSVP,
		TypeSearchQuery,
		TypeAttendance,
		TypeComment,
		TypeAuditLog,
	}
}

// Registry routes resource types to their backing collections. Collections
// register once at wiring time; the walker iterates Types() in order.
type Registry struct {
	order       []string
	collections map[string]Collection
}

func NewRegistry() *Registry {
	return &Registry{collections: make(map[string]Collection)}
}

// Register binds a resource type to a collection. Registering the same type
// twice replaces the binding without changing walk order.
func (r *Registry) Register(resourceType string, c Collection) {
	if _, exists := r.collections[resourceType]; !exists {
		r.order = append(r.order, resourceType)
	}
	r.collections[resourceType] = c
}

// Types returns the registered resource types in registration order.
func (r *Registry) Types() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Collection returns the collection for a resource type, or nil.
func (r *Registry) Collection(resourceType string) Collection {
	return r.collections[resourceType]
}
