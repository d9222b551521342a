// Package export assembles data-portability bundles.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"memberhub/internal/collab/notifier"
	"memberhub/internal/collab/objectstore"
	"memberhub/internal/platform/metrics"
	"memberhub/internal/privacy/models"
	"memberhub/internal/privacy/store"
	"memberhub/internal/privacy/walker"
	"memberhub/internal/records"
	"memberhub/internal/users"
	"memberhub/pkg/requestcontext"
)

// nonPortableFields never leave the system, even in the subject's own
// export: credential material and internal-only linkage IDs.
var nonPortableFields = map[string]bool{
	"password_hash":   true,
	"credential_hash": true,
	"session_id":      true,
	"internal_ref":    true,
}

const coverNote = "This bundle contains all personal data we hold about you, grouped by category. " +
	"The download link expires 24 hours after generation; after that the bundle is deleted from storage."

// bundle is the serialized export format.
type bundle struct {
	ExportID    string                 `json:"export_id"`
	GeneratedAt time.Time              `json:"generated_at"`
	ExpiresAt   time.Time              `json:"expires_at"`
	Note        string                 `json:"note"`
	Data        map[string]bundleGroup `json:"data"`
}

type bundleGroup struct {
	Description string             `json:"description"`
	Count       int                `json:"count"`
	Records     []records.Document `json:"records"`
}

var typeDescriptions = map[string]string{
	records.TypeProfile:      "Your member profile",
	records.TypeApplication:  "Your membership application",
	records.TypeSubscription: "Your membership subscriptions",
	records.TypePayment:      "Your payment history",
	records.TypeRSVP:         "Your event RSVPs",
	records.TypeSearchQuery:  "Your saved search queries",
	records.TypeAttendance:   "Your event attendance",
	records.TypeComment:      "Your comments",
	records.TypeAuditLog:     "Account activity records",
}

// Builder gathers a user's records, packages them, uploads the bundle, and
// issues the signed retrieval link.
type Builder struct {
	walk    *walker.Walker
	usrs    users.Store
	objects objectstore.Store
	notify  notifier.Notifier
	exports store.ExportStore
	logger  *slog.Logger
	metrics *metrics.Metrics
	ttl     time.Duration
}

func NewBuilder(
	walk *walker.Walker,
	usrs users.Store,
	objects objectstore.Store,
	notify notifier.Notifier,
	exports store.ExportStore,
	logger *slog.Logger,
	m *metrics.Metrics,
	ttl time.Duration,
) *Builder {
	return &Builder{
		walk:    walk,
		usrs:    usrs,
		objects: objects,
		notify:  notify,
		exports: exports,
		logger:  logger,
		metrics: m,
		ttl:     ttl,
	}
}

// Build fills in a pending export request: collects every record referencing
// the user, uploads the bundle, signs the retrieval URL, and notifies the
// subject. Notification failure is logged, never fatal.
func (b *Builder) Build(ctx context.Context, exportID string) error {
	req, err := b.exports.FindByID(ctx, exportID)
	if err != nil {
		return fmt.Errorf("load export request %s: %w", exportID, err)
	}

	user, err := b.usrs.FindByID(ctx, req.UserID)
	if err != nil {
		b.fail(ctx, req, fmt.Sprintf("load user: %v", err))
		return fmt.Errorf("load user %s: %w", req.UserID, err)
	}

	collected := make(map[string][]records.Document)
	result, err := b.walk.Walk(ctx, req.UserID, func(resourceType string, doc records.Document) (records.Document, error) {
		collected[resourceType] = append(collected[resourceType], stripNonPortable(doc))
		return nil, nil // collect only, no mutation
	}, nil)
	if err != nil {
		b.fail(ctx, req, fmt.Sprintf("walk: %v", err))
		return fmt.Errorf("collect records: %w", err)
	}
	if result.HasCollectionFailure() {
		detail := fmt.Sprintf("collections failed: %v", result.FailedTypes())
		b.fail(ctx, req, detail)
		return fmt.Errorf("collect records: %s", detail)
	}

	now := requestcontext.Now(ctx)
	req.ExpiresAt = now.Add(b.ttl)

	data := make(map[string]bundleGroup, len(collected))
	for resourceType, docs := range collected {
		data[resourceType] = bundleGroup{
			Description: typeDescriptions[resourceType],
			Count:       len(docs),
			Records:     docs,
		}
	}
	payload, err := json.MarshalIndent(bundle{
		ExportID:    req.ID,
		GeneratedAt: now,
		ExpiresAt:   req.ExpiresAt,
		Note:        coverNote,
		Data:        data,
	}, "", "  ")
	if err != nil {
		b.fail(ctx, req, fmt.Sprintf("serialize: %v", err))
		return fmt.Errorf("serialize bundle: %w", err)
	}

	req.ObjectKey = "exports/" + req.ID + ".json"
	if err := b.objects.Put(ctx, req.ObjectKey, payload); err != nil {
		b.fail(ctx, req, fmt.Sprintf("upload: %v", err))
		return fmt.Errorf("upload bundle: %w", err)
	}

	url, err := b.objects.SignedURL(req.ObjectKey, b.ttl)
	if err != nil {
		b.fail(ctx, req, fmt.Sprintf("sign url: %v", err))
		return fmt.Errorf("sign retrieval URL: %w", err)
	}

	req.State = models.ExportReady
	req.SignedURL = url
	req.ByteSize = int64(len(payload))
	req.Counts = result.Counts
	if err := b.exports.Update(ctx, req); err != nil {
		return fmt.Errorf("persist export request: %w", err)
	}
	if b.metrics != nil {
		b.metrics.ExportsBuilt.Inc()
	}

	if err := b.notify.Send(ctx, notifier.TemplateExportReady, user.Email, map[string]any{
		"download_url": url,
		"expires_at":   req.ExpiresAt.Format(time.RFC3339),
	}); err != nil {
		b.logger.WarnContext(ctx, "export notification failed",
			"export_id", req.ID,
			"error", err,
		)
	}
	return nil
}

// Purge removes the bundle from object storage and marks the request purged.
// Used by the DELETE endpoint and the expiry janitor.
func (b *Builder) Purge(ctx context.Context, req models.ExportRequest) error {
	if req.ObjectKey != "" {
		if err := b.objects.Delete(ctx, req.ObjectKey); err != nil {
			return fmt.Errorf("delete bundle %s: %w", req.ObjectKey, err)
		}
	}
	req.State = models.ExportPurged
	req.SignedURL = ""
	return b.exports.Update(ctx, req)
}

// PurgeExpired removes every bundle past its expiry. Called periodically.
func (b *Builder) PurgeExpired(ctx context.Context) {
	expired, err := b.exports.ListExpired(ctx, requestcontext.Now(ctx))
	if err != nil {
		b.logger.WarnContext(ctx, "expired export listing failed", "error", err)
		return
	}
	for _, req := range expired {
		if err := b.Purge(ctx, req); err != nil {
			b.logger.WarnContext(ctx, "export purge failed",
				"export_id", req.ID,
				"error", err,
			)
		}
	}
}

func (b *Builder) fail(ctx context.Context, req models.ExportRequest, detail string) {
	req.State = models.ExportFailed
	if err := b.exports.Update(ctx, req); err != nil {
		b.logger.ErrorContext(ctx, "failed to persist export failure",
			"export_id", req.ID,
			"detail", detail,
			"error", err,
		)
	}
}

func stripNonPortable(doc records.Document) records.Document {
	out := doc.Clone()
	for field := range nonPortableFields {
		delete(out, field)
	}
	return out
}
