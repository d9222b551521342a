// Package deletion runs the erasure pipeline: an ordered list of idempotent
// steps with durable per-step results, so a crashed or failed pipeline can be
// re-entered without repeating completed work.
//
// Nothing here is reversible. Once a field has gone through the one-way hash
// there is no rollback; a partial failure leaves the pipeline partially
// anonymized with only the failed step pending retry.
package deletion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"memberhub/internal/audit"
	"memberhub/internal/collab/notifier"
	"memberhub/internal/collab/payment"
	"memberhub/internal/collab/tokenstore"
	"memberhub/internal/platform/metrics"
	"memberhub/internal/privacy/anonymize"
	"memberhub/internal/privacy/models"
	"memberhub/internal/privacy/pseudonym"
	"memberhub/internal/privacy/retention"
	"memberhub/internal/privacy/store"
	"memberhub/internal/privacy/walker"
	"memberhub/internal/records"
	"memberhub/internal/users"
	dErrors "memberhub/pkg/domain-errors"
	"memberhub/pkg/platform/sentinel"
	"memberhub/pkg/requestcontext"
)

var tracer = otel.Tracer("memberhub.privacy.deletion")

// Config tunes timeouts and retries for collaborator calls.
type Config struct {
	PipelineTimeout     time.Duration
	CollaboratorTimeout time.Duration
	CollaboratorRetries int
	RetryBackoff        time.Duration
	BlacklistTTL        time.Duration
}

// Orchestrator executes deletion pipelines. One instance serves all users;
// per-user mutual exclusion comes from the lifecycle flag, not from here.
type Orchestrator struct {
	usrs      users.Store
	walk      *walker.Walker
	deletions store.DeletionStore
	payments  payment.Provider
	tokens    tokenstore.Store
	notify    notifier.Notifier
	recorder  *audit.Recorder
	logger    *slog.Logger
	metrics   *metrics.Metrics
	cfg       Config
}

func NewOrchestrator(
	usrs users.Store,
	walk *walker.Walker,
	deletions store.DeletionStore,
	payments payment.Provider,
	tokens tokenstore.Store,
	notify notifier.Notifier,
	recorder *audit.Recorder,
	logger *slog.Logger,
	m *metrics.Metrics,
	cfg Config,
) *Orchestrator {
	return &Orchestrator{
		usrs:      usrs,
		walk:      walk,
		deletions: deletions,
		payments:  payments,
		tokens:    tokens,
		notify:    notify,
		recorder:  recorder,
		logger:    logger,
		metrics:   m,
		cfg:       cfg,
	}
}

// pipelineStep is one entry in the ordered step table. Fatal steps gate the
// completed state; non-fatal steps are best-effort.
type pipelineStep struct {
	name  string
	fatal bool
	run   func(ctx context.Context, req *models.DeletionRequest) error
}

// Run executes (or resumes) the pipeline for one deletion request. Steps
// already recorded successful are skipped, which is what makes operator
// retry of a failed pipeline safe.
func (o *Orchestrator) Run(ctx context.Context, requestID string) error {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.PipelineTimeout)
	defer cancel()

	ctx, span := tracer.Start(ctx, "deletion.pipeline")
	defer span.End()
	span.SetAttributes(attribute.String("deletion.request_id", requestID))

	req, err := o.deletions.FindByID(ctx, requestID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeNotFound, "deletion request not found")
	}
	if req.State == models.DeletionCompleted {
		return nil
	}
	if req.Steps == nil {
		req.Steps = make(map[string]models.StepResult)
	}

	// A fresh request passes through validating: the lifecycle gate is
	// re-checked before any irreversible work starts.
	if req.State == models.DeletionRequested {
		req.State = models.DeletionValidating
		if err := o.deletions.Update(ctx, req); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist pipeline state")
		}
		if err := o.validateTarget(ctx, req); err != nil {
			req.State = models.DeletionFailed
			if uerr := o.deletions.Update(ctx, req); uerr != nil {
				return dErrors.Wrap(uerr, dErrors.CodeInternal, "failed to persist pipeline state")
			}
			span.SetStatus(codes.Error, "validation failed")
			return err
		}
	}

	req.State = models.DeletionInProgress
	if err := o.deletions.Update(ctx, req); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist pipeline state")
	}

	// One consistent timestamp for every retention stamp in this run.
	now := requestcontext.Now(ctx)
	ctx = requestcontext.WithTime(ctx, now)

	steps := []pipelineStep{
		{models.StepCancelSubscription, false, o.stepCancelSubscription},
		{models.StepAnonymizeImmediate, true, o.stepAnonymizeImmediate},
		{models.StepAnonymizeRetained, true, o.stepAnonymizeRetained},
		{models.StepAnonymizeUser, true, o.stepAnonymizeUser},
		{models.StepInvalidateTokens, true, o.stepInvalidateTokens},
		{models.StepNotify, false, o.stepNotify},
	}

	completed := true
	for _, step := range steps {
		if req.StepSucceeded(step.name) {
			continue
		}
		o.runStep(ctx, &req, step)
		if err := o.deletions.Update(ctx, req); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist step result")
		}
		// A fatal failure aborts the run. Later steps stay pending and
		// execute on the operator's retry; in particular no completion
		// notification goes out for a failed pipeline.
		if step.fatal && !req.StepSucceeded(step.name) {
			completed = false
			break
		}
	}

	if completed {
		req.State = models.DeletionCompleted
		done := requestcontext.Now(ctx)
		req.CompletedAt = &done
		if o.metrics != nil {
			o.metrics.DeletionsCompleted.Inc()
		}
	} else {
		req.State = models.DeletionFailed
		span.SetStatus(codes.Error, "pipeline failed")
		if o.metrics != nil {
			o.metrics.DeletionsFailed.Inc()
		}
	}

	// Terminal audit entry last: it summarizes the whole pipeline outcome.
	o.runStep(ctx, &req, pipelineStep{models.StepAuditTrail, false, func(ctx context.Context, req *models.DeletionRequest) error {
		return o.writeTerminalAudit(ctx, req, completed)
	}})

	if completed && !pseudonym.IsPseudonym(req.UserID) {
		// The request record must not outlive erasure with identity
		// attached; it keeps only the pseudonymous linkage.
		pseudoID, _ := pseudonym.Pseudonymize(req.UserID)
		req.UserID = pseudoID
		req.RecipientEmail = ""
	}

	if err := o.deletions.Update(ctx, req); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist terminal state")
	}

	o.logger.InfoContext(ctx, "deletion pipeline finished",
		"request_id", req.ID,
		"state", string(req.State),
	)
	if !completed {
		return dErrors.New(dErrors.CodeInternal, "deletion pipeline failed: "+failedStepSummary(&req, steps))
	}
	return nil
}

// validateTarget confirms the gateway's lifecycle transition still holds for
// the user the pipeline is about to erase.
func (o *Orchestrator) validateTarget(ctx context.Context, req models.DeletionRequest) error {
	user, err := o.usrs.FindByID(ctx, req.UserID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "deletion target not resolvable")
	}
	if user.Status != users.StatusDeletionInProgress {
		return dErrors.New(dErrors.CodeInvariantViolation,
			"deletion target lifecycle is "+string(user.Status)+", expected deletion_in_progress")
	}
	return nil
}

func (o *Orchestrator) runStep(ctx context.Context, req *models.DeletionRequest, step pipelineStep) {
	ctx, span := tracer.Start(ctx, "deletion.step."+step.name)
	defer span.End()

	start := time.Now()
	err := step.run(ctx, req)
	if o.metrics != nil {
		o.metrics.DeletionStepSecs.WithLabelValues(step.name).Observe(time.Since(start).Seconds())
	}

	done := requestcontext.Now(ctx)
	result := models.StepResult{Status: models.StepSuccess, CompletedAt: &done}
	if err != nil {
		result.Status = models.StepFailed
		result.Detail = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, step.name+" failed")
		level := slog.LevelWarn
		if step.fatal {
			level = slog.LevelError
		}
		o.logger.Log(ctx, level, "deletion step failed",
			"request_id", req.ID,
			"step", step.name,
			"fatal", step.fatal,
			"error", err,
		)
	}
	req.Steps[step.name] = result
}

// stepCancelSubscription cancels the member's subscription at the payment
// provider. Best-effort: a provider outage must not block erasure, but the
// failure is surfaced to an operator via the step result and logs.
func (o *Orchestrator) stepCancelSubscription(ctx context.Context, req *models.DeletionRequest) error {
	// A scrubbed request carries only the pseudonym, which the provider has
	// never seen. The subscription was cancelled on the run that scrubbed it.
	if pseudonym.IsPseudonym(req.UserID) {
		return nil
	}
	return o.withRetry(ctx, func(ctx context.Context) error {
		return o.payments.CancelActiveSubscription(ctx, req.UserID)
	})
}

func (o *Orchestrator) stepAnonymizeImmediate(ctx context.Context, req *models.DeletionRequest) error {
	result, err := o.walk.Walk(ctx, req.UserID, o.anonymizeVisitor(requestcontext.Now(ctx)), func(rt string) bool {
		return retention.Resolve(rt).Class == retention.Immediate
	})
	if err != nil {
		return err
	}
	// Per-record integrity errors are collected, logged, and do not fail
	// the step; only a whole-collection failure does.
	if result.HasCollectionFailure() {
		return fmt.Errorf("collections failed: %s", strings.Join(result.FailedTypes(), ", "))
	}
	return nil
}

// stepAnonymizeRetained handles the long_term and short_term classes. Any
// failure here is fatal: financial retention must not silently fail. The
// failing resource types are recorded for operator remediation.
func (o *Orchestrator) stepAnonymizeRetained(ctx context.Context, req *models.DeletionRequest) error {
	result, err := o.walk.Walk(ctx, req.UserID, o.anonymizeVisitor(requestcontext.Now(ctx)), func(rt string) bool {
		return retention.Resolve(rt).Class != retention.Immediate
	})
	if err != nil {
		return err
	}
	if len(result.Errors) > 0 {
		return fmt.Errorf("retained-class anonymization failed for: %s", strings.Join(result.FailedTypes(), ", "))
	}
	return nil
}

// anonymizeVisitor anonymizes one document and stamps retention_until for
// retained classes. Already-stamped documents keep their original stamp so
// re-runs do not extend retention.
func (o *Orchestrator) anonymizeVisitor(now time.Time) walker.Visitor {
	return func(resourceType string, doc records.Document) (records.Document, error) {
		if doc.ID() == "" {
			return nil, dErrors.New(dErrors.CodeInvariantViolation, "document missing id")
		}
		out, err := anonymize.Anonymize(doc, resourceType)
		if err != nil {
			return nil, err
		}
		policy := retention.Resolve(resourceType)
		if policy.Class != retention.Immediate {
			if _, stamped := out["retention_until"]; !stamped {
				out["retention_until"] = now.AddDate(0, 0, policy.DurationDays)
			}
		}
		return out, nil
	}
}

// stepAnonymizeUser destroys the account's identity: credential hash removed
// entirely, identity fields replaced by the pseudonym, lifecycle moved to
// deleted.
func (o *Orchestrator) stepAnonymizeUser(ctx context.Context, req *models.DeletionRequest) error {
	user, err := o.usrs.FindByID(ctx, req.UserID)
	if err != nil {
		// A scrubbed request no longer resolves to an account. The identity
		// was destroyed on the run that scrubbed it.
		if pseudonym.IsPseudonym(req.UserID) && errors.Is(err, sentinel.ErrNotFound) {
			return nil
		}
		return err
	}
	if user.Status == users.StatusDeleted && pseudonym.IsPseudonymEmail(user.Email) {
		return nil // already done on a previous run
	}

	pseudoID, pseudoEmail := pseudonym.Pseudonymize(req.UserID)
	now := requestcontext.Now(ctx)
	user.Name = pseudoID
	user.Email = pseudoEmail
	user.PasswordHash = ""
	user.Status = users.StatusDeleted
	user.UpdatedAt = now
	user.DeletedAt = &now
	return o.usrs.Save(ctx, user)
}

// stepInvalidateTokens blacklists the user at the token store, forcing
// immediate logout on every device.
func (o *Orchestrator) stepInvalidateTokens(ctx context.Context, req *models.DeletionRequest) error {
	// Tokens carry the real user ID; blacklisting the pseudonym of a
	// scrubbed request would match nothing.
	if pseudonym.IsPseudonym(req.UserID) {
		return nil
	}
	return o.withRetry(ctx, func(ctx context.Context) error {
		return o.tokens.BlacklistUser(ctx, req.UserID, o.cfg.BlacklistTTL)
	})
}

// stepNotify sends the deletion confirmation, summarizing what was erased
// and what is retained. Best-effort.
func (o *Orchestrator) stepNotify(ctx context.Context, req *models.DeletionRequest) error {
	// A scrubbed request has no recipient left.
	if req.RecipientEmail == "" {
		return nil
	}
	var erased, retained []string
	for _, rt := range records.DefaultTypes() {
		policy := retention.Resolve(rt)
		if policy.Class == retention.Immediate {
			erased = append(erased, rt)
		} else {
			retained = append(retained, fmt.Sprintf("%s (%d days)", rt, policy.DurationDays))
		}
	}
	return o.notify.Send(ctx, notifier.TemplateDeletionComplete, req.RecipientEmail, map[string]any{
		"erased_now": strings.Join(erased, ", "),
		"retained":   strings.Join(retained, ", "),
	})
}

func (o *Orchestrator) writeTerminalAudit(ctx context.Context, req *models.DeletionRequest, completed bool) error {
	pseudoID := req.UserID
	if !pseudonym.IsPseudonym(pseudoID) {
		pseudoID, _ = pseudonym.Pseudonymize(pseudoID)
	}
	action := audit.ActionDeletionCompleted
	if !completed {
		action = audit.ActionDeletionFailed
	}
	stepSummary := make(map[string]any, len(req.Steps))
	for name, result := range req.Steps {
		stepSummary[name] = string(result.Status)
	}
	return o.recorder.Record(ctx, audit.Entry{
		// The actor is already pseudonymous: the trail must not receive
		// fresh PII for a user being erased.
		Actor:        pseudoID,
		Action:       action,
		ResourceType: "deletion-request",
		ResourceID:   req.ID,
		Success:      completed,
		Metadata:     map[string]any{"steps": stepSummary},
		CreatedAt:    requestcontext.Now(ctx),
	})
}

// withRetry runs a collaborator call with a per-call timeout and exponential
// backoff. Exhausting the retry budget surfaces the last error, which the
// caller records as a step failure.
func (o *Orchestrator) withRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	backoff := o.cfg.RetryBackoff
	var err error
	for attempt := 0; attempt <= o.cfg.CollaboratorRetries; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, o.cfg.CollaboratorTimeout)
		err = fn(callCtx)
		cancel()
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return sentinel.ErrUnavailable
		}
		if attempt < o.cfg.CollaboratorRetries {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return err
			}
			backoff *= 2
		}
	}
	return err
}

func failedStepSummary(req *models.DeletionRequest, steps []pipelineStep) string {
	var failed []string
	for _, step := range steps {
		if req.Steps[step.name].Status == models.StepFailed {
			failed = append(failed, step.name)
		}
	}
	return strings.Join(failed, ", ")
}
