package service

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"

	"memberhub/internal/audit"
	"memberhub/internal/collab/notifier"
	"memberhub/internal/collab/objectstore"
	"memberhub/internal/collab/payment"
	"memberhub/internal/collab/tokenstore"
	"memberhub/internal/privacy/deletion"
	"memberhub/internal/privacy/export"
	"memberhub/internal/privacy/models"
	"memberhub/internal/privacy/store"
	"memberhub/internal/privacy/walker"
	"memberhub/internal/privacy/worker"
	"memberhub/internal/records"
	"memberhub/internal/users"
	dErrors "memberhub/pkg/domain-errors"
	"memberhub/pkg/requestcontext"
)

const confirmationPhrase = "DELETE MY ACCOUNT"

type ServiceSuite struct {
	suite.Suite

	ctx       context.Context
	cancel    context.CancelFunc
	usrs      *users.InMemoryStore
	deletions *store.InMemoryDeletionStore
	exports   *store.InMemoryExportStore
	pool      *worker.Pool
	svc       *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx, s.cancel = context.WithCancel(context.Background())
	logger := slog.New(slog.DiscardHandler)

	s.usrs = users.NewInMemoryStore()
	hash, err := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)
	s.Require().NoError(err)
	s.Require().NoError(s.usrs.Save(s.ctx, users.User{
		ID:           "u-42",
		Email:        "sam@example.com",
		Name:         "Sam Jones",
		PasswordHash: string(hash),
		Role:         "member",
		Status:       users.StatusActive,
	}))

	profiles := records.NewInMemoryCollection()
	profiles.Put(records.Document{"id": "p-1", "user_id": "u-42", "name": "Sam Jones"})
	registry := records.NewRegistry()
	registry.Register(records.TypeProfile, profiles)

	walk := walker.New(registry, logger, nil)
	auditStore := audit.NewInMemoryStore()
	recorder := audit.NewRecorder(auditStore)

	s.deletions = store.NewInMemoryDeletionStore()
	s.exports = store.NewInMemoryExportStore()

	orch := deletion.NewOrchestrator(
		s.usrs,
		walk,
		s.deletions,
		payment.NewFake(),
		tokenstore.NewInMemoryStore(),
		notifier.NewFake(),
		recorder,
		logger,
		nil,
		deletion.Config{
			PipelineTimeout:     30 * time.Second,
			CollaboratorTimeout: time.Second,
			CollaboratorRetries: 1,
			RetryBackoff:        time.Millisecond,
			BlacklistTTL:        time.Hour,
		},
	)
	builder := export.NewBuilder(walk, s.usrs, objectstore.NewInMemoryStore(), notifier.NewFake(), s.exports, logger, nil, 24*time.Hour)

	s.pool = worker.NewPool(2, 16, logger)
	s.pool.Start(s.ctx)

	s.svc = New(s.usrs, s.deletions, s.exports, orch, builder, s.pool, recorder, logger, nil, Config{
		ConfirmationPhrase: confirmationPhrase,
	})
}

func (s *ServiceSuite) TearDownTest() {
	s.cancel()
}

func (s *ServiceSuite) authed() context.Context {
	return requestcontext.WithRole(requestcontext.WithUserID(s.ctx, "u-42"), "member")
}

func (s *ServiceSuite) TestRequestDeletionRunsPipeline() {
	req, err := s.svc.RequestDeletion(s.authed(), "correct-horse", confirmationPhrase)
	s.Require().NoError(err)
	s.NotEmpty(req.ID)

	s.Eventually(func() bool {
		got, err := s.deletions.FindByID(s.ctx, req.ID)
		return err == nil && got.State == models.DeletionCompleted
	}, 2*time.Second, 10*time.Millisecond)

	user, err := s.usrs.FindByID(s.ctx, "u-42")
	s.Require().NoError(err)
	s.Equal(users.StatusDeleted, user.Status)
}

func (s *ServiceSuite) TestRequestDeletionWrongPassword() {
	_, err := s.svc.RequestDeletion(s.authed(), "wrong", confirmationPhrase)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

	user, err := s.usrs.FindByID(s.ctx, "u-42")
	s.Require().NoError(err)
	s.Equal(users.StatusActive, user.Status)
}

func (s *ServiceSuite) TestRequestDeletionWrongPhrase() {
	_, err := s.svc.RequestDeletion(s.authed(), "correct-horse", "delete my account")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
}

func (s *ServiceSuite) TestRequestDeletionUnauthenticated() {
	_, err := s.svc.RequestDeletion(s.ctx, "correct-horse", confirmationPhrase)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func (s *ServiceSuite) TestSecondDeletionRequestConflicts() {
	_, err := s.svc.RequestDeletion(s.authed(), "correct-horse", confirmationPhrase)
	s.Require().NoError(err)

	_, err = s.svc.RequestDeletion(s.authed(), "correct-horse", confirmationPhrase)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *ServiceSuite) TestGetDeletionAuthorization() {
	req, err := s.svc.RequestDeletion(s.authed(), "correct-horse", confirmationPhrase)
	s.Require().NoError(err)

	_, err = s.svc.GetDeletion(s.authed(), req.ID)
	s.NoError(err)

	stranger := requestcontext.WithUserID(s.ctx, "u-99")
	_, err = s.svc.GetDeletion(stranger, req.ID)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

	admin := requestcontext.WithRole(requestcontext.WithUserID(s.ctx, "u-99"), "admin")
	_, err = s.svc.GetDeletion(admin, req.ID)
	s.NoError(err)
}

func (s *ServiceSuite) TestRetryRequiresFailedState() {
	req, err := s.svc.RequestDeletion(s.authed(), "correct-horse", confirmationPhrase)
	s.Require().NoError(err)
	s.Eventually(func() bool {
		got, err := s.deletions.FindByID(s.ctx, req.ID)
		return err == nil && got.State.Terminal()
	}, 2*time.Second, 10*time.Millisecond)

	admin := requestcontext.WithRole(requestcontext.WithUserID(s.ctx, "admin-1"), "admin")
	_, err = s.svc.RetryDeletion(admin, req.ID)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *ServiceSuite) TestRetryFailedPipeline() {
	failed := models.DeletionRequest{
		ID:             "del-failed",
		UserID:         "u-42",
		RecipientEmail: "sam@example.com",
		State:          models.DeletionFailed,
		Steps:          make(map[string]models.StepResult),
		RequestedAt:    time.Now(),
	}
	s.Require().NoError(s.deletions.Create(s.ctx, failed))

	admin := requestcontext.WithRole(requestcontext.WithUserID(s.ctx, "admin-1"), "admin")
	_, err := s.svc.RetryDeletion(admin, "del-failed")
	s.Require().NoError(err)

	s.Eventually(func() bool {
		got, err := s.deletions.FindByID(s.ctx, "del-failed")
		return err == nil && got.State == models.DeletionCompleted
	}, 2*time.Second, 10*time.Millisecond)
}

func (s *ServiceSuite) TestRequestExport() {
	req, err := s.svc.RequestExport(s.authed())
	s.Require().NoError(err)

	s.Eventually(func() bool {
		got, err := s.exports.FindByID(s.ctx, req.ID)
		return err == nil && got.State == models.ExportReady && got.SignedURL != ""
	}, 2*time.Second, 10*time.Millisecond)
}

func (s *ServiceSuite) TestExportRateLimit() {
	_, err := s.svc.RequestExport(s.authed())
	s.Require().NoError(err)

	_, err = s.svc.RequestExport(s.authed())
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *ServiceSuite) TestExportEnqueueFailureReleasesRateLimitSlot() {
	logger := slog.New(slog.DiscardHandler)
	full := worker.NewPool(1, 0, logger)
	// NewPool coerces a queue depth of 0 up to 1, so fill the single slot
	// with a no-op job to make the unstarted pool reject the next enqueue.
	s.Require().NoError(full.Enqueue(func(context.Context) error { return nil }))
	recorder := audit.NewRecorder(audit.NewInMemoryStore())
	blocked := New(s.usrs, s.deletions, s.exports, nil, nil, full, recorder, logger, nil, Config{
		ConfirmationPhrase: confirmationPhrase,
	})

	_, err := blocked.RequestExport(s.authed())
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))

	// The request that never got enqueued is marked failed, so a fresh
	// export is not blocked by the rolling rate limit.
	req, err := s.svc.RequestExport(s.authed())
	s.Require().NoError(err)
	s.NotEmpty(req.ID)
}

func (s *ServiceSuite) TestPurgeExport() {
	req, err := s.svc.RequestExport(s.authed())
	s.Require().NoError(err)
	s.Eventually(func() bool {
		got, err := s.exports.FindByID(s.ctx, req.ID)
		return err == nil && got.State == models.ExportReady
	}, 2*time.Second, 10*time.Millisecond)

	s.Require().NoError(s.svc.PurgeExport(s.authed(), req.ID))

	got, err := s.exports.FindByID(s.ctx, req.ID)
	s.Require().NoError(err)
	s.Equal(models.ExportPurged, got.State)
}
