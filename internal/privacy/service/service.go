// Package service is the request gateway for privacy operations. It owns
// authentication of the destructive path, the lifecycle transition that
// guarantees at most one deletion per user, and the export rate limit.
// Everything heavy runs on the worker pool.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"memberhub/internal/audit"
	"memberhub/internal/platform/metrics"
	"memberhub/internal/privacy/deletion"
	"memberhub/internal/privacy/export"
	"memberhub/internal/privacy/models"
	"memberhub/internal/privacy/pseudonym"
	"memberhub/internal/privacy/store"
	"memberhub/internal/privacy/worker"
	"memberhub/internal/users"
	dErrors "memberhub/pkg/domain-errors"
	"memberhub/pkg/platform/sentinel"
	"memberhub/pkg/requestcontext"
)

// exportRateWindow caps members to one export request per rolling day.
const exportRateWindow = 24 * time.Hour

type Config struct {
	ConfirmationPhrase string
}

type Service struct {
	usrs      users.Store
	deletions store.DeletionStore
	exports   store.ExportStore
	orch      *deletion.Orchestrator
	builder   *export.Builder
	pool      *worker.Pool
	recorder  *audit.Recorder
	logger    *slog.Logger
	metrics   *metrics.Metrics
	cfg       Config
}

func New(
	usrs users.Store,
	deletions store.DeletionStore,
	exports store.ExportStore,
	orch *deletion.Orchestrator,
	builder *export.Builder,
	pool *worker.Pool,
	recorder *audit.Recorder,
	logger *slog.Logger,
	m *metrics.Metrics,
	cfg Config,
) *Service {
	return &Service{
		usrs:      usrs,
		deletions: deletions,
		exports:   exports,
		orch:      orch,
		builder:   builder,
		pool:      pool,
		recorder:  recorder,
		logger:    logger,
		metrics:   m,
		cfg:       cfg,
	}
}

// RequestDeletion re-authenticates the caller, checks the typed confirmation
// phrase, flips the account lifecycle to deletion_in_progress, and enqueues
// the pipeline. The lifecycle flip is the mutual-exclusion point: a second
// concurrent request loses the compare-and-set and gets a conflict.
func (s *Service) RequestDeletion(ctx context.Context, password, confirmationPhrase string) (models.DeletionRequest, error) {
	userID := requestcontext.UserID(ctx)
	if userID == "" {
		return models.DeletionRequest{}, dErrors.New(dErrors.CodeUnauthorized, "not authenticated")
	}

	user, err := s.usrs.FindByID(ctx, userID)
	if err != nil {
		return models.DeletionRequest{}, dErrors.Wrap(err, dErrors.CodeNotFound, "user not found")
	}
	if user.Status != users.StatusActive {
		return models.DeletionRequest{}, dErrors.New(dErrors.CodeConflict, "account deletion already in progress")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return models.DeletionRequest{}, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
	}
	if confirmationPhrase != s.cfg.ConfirmationPhrase {
		return models.DeletionRequest{}, dErrors.New(dErrors.CodeBadRequest, "confirmation phrase does not match")
	}

	if err := s.usrs.CompareAndSetStatus(ctx, userID, users.StatusActive, users.StatusDeletionInProgress); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return models.DeletionRequest{}, dErrors.New(dErrors.CodeConflict, "account deletion already in progress")
		}
		return models.DeletionRequest{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update account status")
	}

	now := requestcontext.Now(ctx)
	req := models.DeletionRequest{
		ID:     uuid.NewString(),
		UserID: userID,
		// Captured before anonymization destroys it: the confirmation
		// email goes to the address the member signed up with.
		RecipientEmail: user.Email,
		State:          models.DeletionRequested,
		Steps:          make(map[string]models.StepResult),
		RequestedAt:    now,
	}
	if err := s.deletions.Create(ctx, req); err != nil {
		s.revertLifecycle(ctx, userID)
		return models.DeletionRequest{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist deletion request")
	}

	if err := s.recorder.Record(ctx, audit.Entry{
		Actor:        userID,
		Action:       audit.ActionDeletionRequested,
		ResourceType: "deletion-request",
		ResourceID:   req.ID,
		Success:      true,
		CreatedAt:    now,
	}); err != nil {
		s.logger.ErrorContext(ctx, "failed to audit deletion request", "error", err)
	}

	if err := s.enqueueRun(req.ID); err != nil {
		s.revertLifecycle(ctx, userID)
		return models.DeletionRequest{}, err
	}
	if s.metrics != nil {
		s.metrics.DeletionsStarted.Inc()
	}
	s.logger.InfoContext(ctx, "deletion pipeline enqueued", "request_id", req.ID)
	return req, nil
}

// GetDeletion returns the status of a deletion request. Members see their
// own requests; admins see all.
func (s *Service) GetDeletion(ctx context.Context, id string) (models.DeletionRequest, error) {
	req, err := s.deletions.FindByID(ctx, id)
	if err != nil {
		return models.DeletionRequest{}, dErrors.Wrap(err, dErrors.CodeNotFound, "deletion request not found")
	}
	if !ownsDeletion(ctx, req) && requestcontext.Role(ctx) != "admin" {
		return models.DeletionRequest{}, dErrors.New(dErrors.CodeForbidden, "not allowed")
	}
	return req, nil
}

// ownsDeletion matches the caller against the request's user linkage, which
// becomes pseudonymous once the pipeline completes.
func ownsDeletion(ctx context.Context, req models.DeletionRequest) bool {
	userID := requestcontext.UserID(ctx)
	if userID == "" {
		return false
	}
	if req.UserID == userID {
		return true
	}
	pseudoID, _ := pseudonym.Pseudonymize(userID)
	return req.UserID == pseudoID
}

// RetryDeletion re-enqueues a failed pipeline. Steps already recorded
// successful are skipped on the re-run. Admin only; the route enforces it,
// the state check lives here.
func (s *Service) RetryDeletion(ctx context.Context, id string) (models.DeletionRequest, error) {
	req, err := s.deletions.FindByID(ctx, id)
	if err != nil {
		return models.DeletionRequest{}, dErrors.Wrap(err, dErrors.CodeNotFound, "deletion request not found")
	}
	if req.State != models.DeletionFailed {
		return models.DeletionRequest{}, dErrors.New(dErrors.CodeConflict, "only failed pipelines can be retried")
	}
	if err := s.enqueueRun(req.ID); err != nil {
		return models.DeletionRequest{}, err
	}
	s.logger.InfoContext(ctx, "deletion pipeline retry enqueued", "request_id", req.ID)
	return req, nil
}

// RequestExport creates a pending export and enqueues the bundle build.
// At most one export per user per rolling day.
func (s *Service) RequestExport(ctx context.Context) (models.ExportRequest, error) {
	userID := requestcontext.UserID(ctx)
	if userID == "" {
		return models.ExportRequest{}, dErrors.New(dErrors.CodeUnauthorized, "not authenticated")
	}

	now := requestcontext.Now(ctx)
	if _, err := s.exports.FindRecentByUser(ctx, userID, now.Add(-exportRateWindow)); err == nil {
		if s.metrics != nil {
			s.metrics.ExportsRateLimited.Inc()
		}
		return models.ExportRequest{}, dErrors.New(dErrors.CodeConflict, "an export was already requested in the last 24 hours")
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return models.ExportRequest{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check recent exports")
	}

	req := models.ExportRequest{
		ID:        uuid.NewString(),
		UserID:    userID,
		State:     models.ExportPending,
		CreatedAt: now,
	}
	if err := s.exports.Create(ctx, req); err != nil {
		return models.ExportRequest{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist export request")
	}

	if err := s.recorder.Record(ctx, audit.Entry{
		Actor:        userID,
		Action:       audit.ActionExportRequested,
		ResourceType: "export-request",
		ResourceID:   req.ID,
		Success:      true,
		CreatedAt:    now,
	}); err != nil {
		s.logger.ErrorContext(ctx, "failed to audit export request", "error", err)
	}

	exportID := req.ID
	if err := s.pool.Enqueue(func(ctx context.Context) error {
		return s.builder.Build(ctx, exportID)
	}); err != nil {
		// A pending request counts against the rolling rate limit; a build
		// that never got enqueued must not hold the member's slot for a day.
		req.State = models.ExportFailed
		if uerr := s.exports.Update(ctx, req); uerr != nil {
			s.logger.ErrorContext(ctx, "failed to mark export request failed", "export_id", req.ID, "error", uerr)
		}
		return models.ExportRequest{}, err
	}
	if s.metrics != nil {
		s.metrics.ExportsRequested.Inc()
	}
	return req, nil
}

// GetExport returns the export descriptor, including the signed URL once
// the bundle is ready.
func (s *Service) GetExport(ctx context.Context, id string) (models.ExportRequest, error) {
	req, err := s.exports.FindByID(ctx, id)
	if err != nil {
		return models.ExportRequest{}, dErrors.Wrap(err, dErrors.CodeNotFound, "export request not found")
	}
	if req.UserID != requestcontext.UserID(ctx) && requestcontext.Role(ctx) != "admin" {
		return models.ExportRequest{}, dErrors.New(dErrors.CodeForbidden, "not allowed")
	}
	return req, nil
}

// PurgeExport deletes a bundle before its natural expiry.
func (s *Service) PurgeExport(ctx context.Context, id string) error {
	req, err := s.GetExport(ctx, id)
	if err != nil {
		return err
	}
	if req.State != models.ExportReady {
		return dErrors.New(dErrors.CodeConflict, "export has no stored bundle")
	}
	return s.builder.Purge(ctx, req)
}

func (s *Service) enqueueRun(requestID string) error {
	return s.pool.Enqueue(func(ctx context.Context) error {
		return s.orch.Run(ctx, requestID)
	})
}

// revertLifecycle undoes the deletion_in_progress flip when the request
// could not be durably enqueued, so the member can try again.
func (s *Service) revertLifecycle(ctx context.Context, userID string) {
	if err := s.usrs.CompareAndSetStatus(ctx, userID, users.StatusDeletionInProgress, users.StatusActive); err != nil {
		s.logger.ErrorContext(ctx, "failed to revert account status", "user_id", userID, "error", err)
	}
}
