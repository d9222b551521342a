// Package walker iterates a user's records across every registered resource
// type, applying a visitor to each. It is the only privacy component that
// touches the document store.
package walker

import (
	"context"
	"fmt"
	"log/slog"

	"memberhub/internal/platform/metrics"
	"memberhub/internal/records"
)

// Visitor transforms one document. Returning a nil document means "no
// mutation"; the walker only persists non-nil results. Returning an error
// records a per-record failure without aborting the walk.
type Visitor func(resourceType string, doc records.Document) (records.Document, error)

// WalkError is one failure collected during a walk. CollectionFailed marks
// the listing itself failing, which is the fatal kind; everything else is a
// per-record failure. RecordID may be empty for malformed records that carry
// no id.
type WalkError struct {
	ResourceType     string
	RecordID         string
	CollectionFailed bool
	Err              error
}

func (e WalkError) Error() string {
	if e.CollectionFailed {
		return fmt.Sprintf("%s: list failed: %v", e.ResourceType, e.Err)
	}
	return fmt.Sprintf("%s/%s: %v", e.ResourceType, e.RecordID, e.Err)
}

// WalkResult summarizes one walk.
type WalkResult struct {
	// Counts is the number of records visited per resource type.
	Counts map[string]int
	// Errors holds every per-record and per-collection failure.
	Errors []WalkError
}

// FailedTypes returns the resource types that saw at least one error.
func (r WalkResult) FailedTypes() []string {
	seen := make(map[string]bool)
	var out []string
	for _, e := range r.Errors {
		if !seen[e.ResourceType] {
			seen[e.ResourceType] = true
			out = append(out, e.ResourceType)
		}
	}
	return out
}

// HasCollectionFailure reports whether any listing failed outright, as
// opposed to individual malformed records.
func (r WalkResult) HasCollectionFailure() bool {
	for _, e := range r.Errors {
		if e.CollectionFailed {
			return true
		}
	}
	return false
}

// Walker walks the registry's collections for one user.
type Walker struct {
	registry *records.Registry
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

func New(registry *records.Registry, logger *slog.Logger, m *metrics.Metrics) *Walker {
	return &Walker{registry: registry, logger: logger, metrics: m}
}

// Walk visits every record referencing userRef in every registered resource
// type, in registration order. A single malformed record never blocks the
// rest of the walk; its error is collected and the walk continues. Types can
// be restricted with the filter; a nil filter visits everything.
func (w *Walker) Walk(ctx context.Context, userRef string, visit Visitor, typeFilter func(resourceType string) bool) (WalkResult, error) {
	result := WalkResult{Counts: make(map[string]int)}

	for _, resourceType := range w.registry.Types() {
		if typeFilter != nil && !typeFilter(resourceType) {
			continue
		}
		coll := w.registry.Collection(resourceType)

		docs, err := coll.ListByUser(ctx, userRef)
		if err != nil {
			result.Errors = append(result.Errors, WalkError{ResourceType: resourceType, CollectionFailed: true, Err: err})
			w.countError(resourceType)
			w.logger.ErrorContext(ctx, "collection listing failed",
				"resource_type", resourceType,
				"error", err,
			)
			continue
		}

		for _, doc := range docs {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			updated, err := visit(resourceType, doc)
			if err != nil {
				result.Errors = append(result.Errors, WalkError{
					ResourceType: resourceType,
					RecordID:     doc.ID(),
					Err:          err,
				})
				w.countError(resourceType)
				continue
			}
			if updated != nil {
				if err := coll.Update(ctx, doc.ID(), updated); err != nil {
					result.Errors = append(result.Errors, WalkError{
						ResourceType: resourceType,
						RecordID:     doc.ID(),
						Err:          err,
					})
					w.countError(resourceType)
					continue
				}
				if w.metrics != nil {
					w.metrics.RecordsAnonymized.WithLabelValues(resourceType).Inc()
				}
			}
			result.Counts[resourceType]++
		}
	}
	return result, nil
}

func (w *Walker) countError(resourceType string) {
	if w.metrics != nil {
		w.metrics.WalkErrors.WithLabelValues(resourceType).Inc()
	}
}
