// Package service orchestrates the review workflow: intake, stage decisions,
// withdrawal, administrative reopen, and queue routing. Handlers stay thin and
// the domain rules stay in models and evaluator; this package owns the
// transaction boundaries and the ordering of writes.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"bursary/internal/review/evaluator"
	"bursary/internal/review/models"
	id "bursary/pkg/domain"
	dErrors "bursary/pkg/domain-errors"
	"bursary/pkg/platform/sentinel"
)

type ApplicationStore interface {
	Create(ctx context.Context, app *models.Application) error
	FindByID(ctx context.Context, appID id.ApplicationID) (*models.Application, error)
	Update(ctx context.Context, app *models.Application) error
	ListByStatus(ctx context.Context, statuses ...models.OverallStatus) ([]*models.Application, error)
	AllocateNumber(ctx context.Context, year int) (int64, error)
}

type StageStatusStore interface {
	Get(ctx context.Context, appID id.ApplicationID, stage id.Stage) (models.StageStatus, error)
	GetSet(ctx context.Context, appID id.ApplicationID) (models.StageStatusSet, error)
	Apply(ctx context.Context, status models.StageStatus) error
}

type LedgerStore interface {
	Append(ctx context.Context, decision models.StageDecision) error
	ListFor(ctx context.Context, appID id.ApplicationID) ([]models.StageDecision, error)
	ListAll(ctx context.Context, filter models.LedgerFilter) ([]models.StageDecision, error)
}

// QueueCache holds computed role queues. Implementations must tolerate being
// absent; the service treats every miss as a recompute.
type QueueCache interface {
	Get(ctx context.Context, role id.Role) ([]models.Summary, bool)
	Set(ctx context.Context, role id.Role, queue []models.Summary)
	Invalidate(ctx context.Context) error
}

// EventSink receives domain events after a decision commits. Publishing is
// fire-and-forget; a sink must never block or fail the request path.
type EventSink interface {
	Publish(ctx context.Context, event models.Event)
}

// Metrics receives service-level observations.
type Metrics interface {
	ObserveIntake()
	ObserveDecision(stage id.Stage, outcome models.Outcome)
	ObserveClosed(status models.OverallStatus)
	ObserveReopen(stage id.Stage)
	ObserveQueue(role id.Role, cacheHit bool)
}

type Service struct {
	applications ApplicationStore
	stageStatus  StageStatusStore
	ledger       LedgerStore
	storeTx      StoreTx
	queueCache   QueueCache
	events       EventSink
	metrics      Metrics
	logger       *slog.Logger
	tracer       trace.Tracer
	now          func() time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithQueueCache(cache QueueCache) Option {
	return func(s *Service) {
		s.queueCache = cache
	}
}

func WithEventSink(sink EventSink) Option {
	return func(s *Service) {
		s.events = sink
	}
}

func WithMetrics(m Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func New(
	applications ApplicationStore,
	stageStatus StageStatusStore,
	ledger LedgerStore,
	storeTx StoreTx,
	opts ...Option,
) (*Service, error) {
	if applications == nil {
		return nil, fmt.Errorf("application store is required")
	}
	if stageStatus == nil {
		return nil, fmt.Errorf("stage status store is required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("ledger store is required")
	}
	if storeTx == nil {
		return nil, fmt.Errorf("store tx is required")
	}

	svc := &Service{
		applications: applications,
		stageStatus:  stageStatus,
		ledger:       ledger,
		storeTx:      storeTx,
		logger:       slog.Default(),
		tracer:       otel.Tracer("bursary/review"),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// IntakeInput is the validated payload for registering a new application.
type IntakeInput struct {
	Category             string
	Subcategory          string
	RequestedAmountCents int64
}

// Intake registers a submitted application and allocates its application
// number for the current year.
func (s *Service) Intake(ctx context.Context, input IntakeInput) (*models.Application, error) {
	ctx, span := s.tracer.Start(ctx, "review.Intake")
	defer span.End()

	now := s.now().UTC()
	seq, err := s.applications.AllocateNumber(ctx, now.Year())
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodePersistence, "failed to allocate application number")
	}

	app, err := models.NewApplication(
		id.NewApplicationID(),
		models.FormatNumber(now.Year(), seq),
		input.Category,
		input.Subcategory,
		input.RequestedAmountCents,
		now,
	)
	if err != nil {
		return nil, err
	}

	if err := s.applications.Create(ctx, app); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodePersistence, "failed to store application")
	}

	if s.metrics != nil {
		s.metrics.ObserveIntake()
	}
	s.publish(ctx, models.Event{
		Type:              models.EventApplicationSubmitted,
		ApplicationID:     app.ID,
		ApplicationNumber: app.Number,
		OverallStatus:     app.Status,
		OccurredAt:        now,
	})
	s.invalidateQueues(ctx)

	s.logger.InfoContext(ctx, "application registered",
		"application_id", app.ID.String(),
		"application_number", app.Number,
		"category", app.Category,
	)
	return app, nil
}

// DecisionResult is what a committed stage decision produced.
type DecisionResult struct {
	Decision    models.StageDecision
	StageStatus models.StageStatus
	Application *models.Application
}

// SubmitStageDecision records one reviewer verdict. The whole write runs under
// the application's transaction: ledger append, stage snapshot, and any
// application transition commit together or not at all.
func (s *Service) SubmitStageDecision(ctx context.Context, appID id.ApplicationID, role id.Role, sub evaluator.Submission) (*DecisionResult, error) {
	ctx, span := s.tracer.Start(ctx, "review.SubmitStageDecision")
	defer span.End()

	if !role.CanDecide(sub.Stage) {
		return nil, dErrors.Newf(dErrors.CodeForbidden,
			"role %s cannot decide stage %s", role, sub.Stage)
	}

	now := s.now().UTC()
	var result DecisionResult

	err := s.storeTx.RunInTx(ctx, appID, func(ctx context.Context) error {
		app, err := s.findApplication(ctx, appID)
		if err != nil {
			return err
		}
		// Closed applications refuse decisions outright. Checked before the
		// stage guard so a terminal application reports application_closed, not
		// a stage conflict with a misleading reopen hint.
		if err := app.CanAcceptStageDecision(); err != nil {
			return err
		}

		current, err := s.stageStatus.Get(ctx, appID, sub.Stage)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodePersistence, "failed to load stage status")
		}
		// A decided stage stays decided until an admin reopens it. Without
		// this, two racing reviewers could both record a verdict for the same
		// lane.
		if current.Status.IsTerminal() {
			return dErrors.Newf(dErrors.CodeConflict,
				"stage %s is already %s; an administrator must reopen it first", sub.Stage, current.Status)
		}

		if sub.Stage == id.StageFinalApproval {
			set, err := s.stageStatus.GetSet(ctx, appID)
			if err != nil {
				return dErrors.Wrap(err, dErrors.CodePersistence, "failed to load stage statuses")
			}
			if !set.PrerequisitesTerminal() {
				return dErrors.Newf(dErrors.CodePrerequisitesIncomplete,
					"final approval requires all prerequisite stages decided; still pending: %v",
					set.IncompletePrerequisites())
			}
		}

		decision, err := evaluator.Evaluate(app, sub, now)
		if err != nil {
			return err
		}

		if err := s.ledger.Append(ctx, decision); err != nil {
			return dErrors.Wrap(err, dErrors.CodePersistence, "failed to append ledger entry")
		}
		stageStatus := decision.ToStageStatus()
		if err := s.stageStatus.Apply(ctx, stageStatus); err != nil {
			return dErrors.Wrap(err, dErrors.CodePersistence, "failed to apply stage status")
		}

		app.ApplyReviewStarted(now)
		if sub.Stage == id.StageFinalApproval {
			if err := app.ApplyFinalOutcome(decision.Outcome, decision.Notes, now); err != nil {
				return err
			}
		}
		if err := s.applications.Update(ctx, app); err != nil {
			return dErrors.Wrap(err, dErrors.CodePersistence, "failed to update application")
		}

		result = DecisionResult{Decision: decision, StageStatus: stageStatus, Application: app}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterDecision(ctx, result, now)
	return &result, nil
}

// afterDecision handles everything outside the transaction: metrics, events,
// cache invalidation, logging. Failures here never fail the decision.
func (s *Service) afterDecision(ctx context.Context, result DecisionResult, now time.Time) {
	app := result.Application
	decision := result.Decision

	if s.metrics != nil {
		s.metrics.ObserveDecision(decision.Stage, decision.Outcome)
		if app.Status.IsTerminal() {
			s.metrics.ObserveClosed(app.Status)
		}
	}

	s.publish(ctx, models.Event{
		Type:              models.EventStageDecided,
		ApplicationID:     app.ID,
		ApplicationNumber: app.Number,
		Stage:             decision.Stage,
		Outcome:           decision.Outcome,
		OverallStatus:     app.Status,
		ReviewerID:        decision.ReviewerID,
		OccurredAt:        now,
	})
	switch app.Status {
	case models.StatusApproved:
		s.publish(ctx, models.Event{
			Type:              models.EventApplicationApproved,
			ApplicationID:     app.ID,
			ApplicationNumber: app.Number,
			OverallStatus:     app.Status,
			ReviewerID:        decision.ReviewerID,
			OccurredAt:        now,
		})
	case models.StatusRejected:
		s.publish(ctx, models.Event{
			Type:              models.EventApplicationRejected,
			ApplicationID:     app.ID,
			ApplicationNumber: app.Number,
			OverallStatus:     app.Status,
			ReviewerID:        decision.ReviewerID,
			OccurredAt:        now,
		})
	}
	s.invalidateQueues(ctx)

	s.logger.InfoContext(ctx, "stage decision recorded",
		"application_id", app.ID.String(),
		"application_number", app.Number,
		"stage", decision.Stage.String(),
		"outcome", string(decision.Outcome),
		"overall_status", string(app.Status),
	)
}

// Withdraw transitions a non-terminal application to withdrawn and ledgers the
// withdrawal.
func (s *Service) Withdraw(ctx context.Context, appID id.ApplicationID, reviewerID id.ReviewerID, notes string) (*models.Application, error) {
	ctx, span := s.tracer.Start(ctx, "review.Withdraw")
	defer span.End()

	now := s.now().UTC()
	var app *models.Application

	err := s.storeTx.RunInTx(ctx, appID, func(ctx context.Context) error {
		var err error
		app, err = s.findApplication(ctx, appID)
		if err != nil {
			return err
		}
		if err := app.CanWithdraw(); err != nil {
			return err
		}
		app.ApplyWithdrawal(now)

		entry := models.StageDecision{
			ID:            id.NewDecisionID(),
			ApplicationID: app.ID,
			Type:          models.DecisionWithdrawn,
			Notes:         notes,
			ReviewerID:    reviewerID,
			CreatedAt:     now,
		}
		if err := s.ledger.Append(ctx, entry); err != nil {
			return dErrors.Wrap(err, dErrors.CodePersistence, "failed to append ledger entry")
		}
		if err := s.applications.Update(ctx, app); err != nil {
			return dErrors.Wrap(err, dErrors.CodePersistence, "failed to update application")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.ObserveClosed(models.StatusWithdrawn)
	}
	s.publish(ctx, models.Event{
		Type:              models.EventApplicationWithdrawn,
		ApplicationID:     app.ID,
		ApplicationNumber: app.Number,
		OverallStatus:     app.Status,
		ReviewerID:        reviewerID,
		OccurredAt:        now,
	})
	s.invalidateQueues(ctx)

	s.logger.InfoContext(ctx, "application withdrawn",
		"application_id", app.ID.String(),
		"application_number", app.Number,
	)
	return app, nil
}

// Reopen resets a decided stage back to pending. Administrative only; the
// reopen is itself a ledger entry so the audit trail shows who reset the lane
// and why.
func (s *Service) Reopen(ctx context.Context, appID id.ApplicationID, stage id.Stage, role id.Role, reviewerID id.ReviewerID, notes string) (*DecisionResult, error) {
	ctx, span := s.tracer.Start(ctx, "review.Reopen")
	defer span.End()

	if !role.IsAdmin() {
		return nil, dErrors.New(dErrors.CodeForbidden, "only administrators may reopen a stage")
	}
	if notes == "" {
		return nil, dErrors.New(dErrors.CodeMissingReason, "reopening a stage requires notes explaining the reason")
	}

	now := s.now().UTC()
	var result DecisionResult

	err := s.storeTx.RunInTx(ctx, appID, func(ctx context.Context) error {
		app, err := s.findApplication(ctx, appID)
		if err != nil {
			return err
		}
		if err := app.CanAcceptStageDecision(); err != nil {
			return err
		}

		current, err := s.stageStatus.Get(ctx, appID, stage)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodePersistence, "failed to load stage status")
		}
		if !current.Status.IsTerminal() {
			return dErrors.Newf(dErrors.CodeConflict, "stage %s is still pending; nothing to reopen", stage)
		}

		decision := models.StageDecision{
			ID:            id.NewDecisionID(),
			ApplicationID: app.ID,
			Stage:         stage,
			Type:          models.DecisionReopen,
			Notes:         notes,
			ReviewerID:    reviewerID,
			CreatedAt:     now,
		}
		if err := s.ledger.Append(ctx, decision); err != nil {
			return dErrors.Wrap(err, dErrors.CodePersistence, "failed to append ledger entry")
		}
		stageStatus := decision.ToStageStatus()
		if err := s.stageStatus.Apply(ctx, stageStatus); err != nil {
			return dErrors.Wrap(err, dErrors.CodePersistence, "failed to apply stage status")
		}

		app.UpdatedAt = now
		if err := s.applications.Update(ctx, app); err != nil {
			return dErrors.Wrap(err, dErrors.CodePersistence, "failed to update application")
		}

		result = DecisionResult{Decision: decision, StageStatus: stageStatus, Application: app}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.ObserveReopen(stage)
	}
	s.publish(ctx, models.Event{
		Type:              models.EventStageReopened,
		ApplicationID:     result.Application.ID,
		ApplicationNumber: result.Application.Number,
		Stage:             stage,
		OverallStatus:     result.Application.Status,
		ReviewerID:        reviewerID,
		OccurredAt:        now,
	})
	s.invalidateQueues(ctx)

	s.logger.InfoContext(ctx, "stage reopened",
		"application_id", result.Application.ID.String(),
		"stage", stage.String(),
	)
	return &result, nil
}

// Detail is the full application view: the record plus one status per stage.
type Detail struct {
	Application *models.Application
	Stages      models.StageStatusSet
}

// Get loads an application with its current stage statuses.
func (s *Service) Get(ctx context.Context, appID id.ApplicationID) (*Detail, error) {
	app, err := s.findApplication(ctx, appID)
	if err != nil {
		return nil, err
	}
	set, err := s.stageStatus.GetSet(ctx, appID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodePersistence, "failed to load stage statuses")
	}
	return &Detail{Application: app, Stages: set}, nil
}

// List returns application summaries, optionally narrowed to the given
// statuses, oldest submission first.
func (s *Service) List(ctx context.Context, statuses ...models.OverallStatus) ([]models.Summary, error) {
	apps, err := s.applications.ListByStatus(ctx, statuses...)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodePersistence, "failed to list applications")
	}
	summaries := make([]models.Summary, 0, len(apps))
	for _, app := range apps {
		summaries = append(summaries, app.ToSummary())
	}
	return summaries, nil
}

// Ledger lists ledger entries across applications, oldest first.
func (s *Service) Ledger(ctx context.Context, filter models.LedgerFilter) ([]models.StageDecision, error) {
	entries, err := s.ledger.ListAll(ctx, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodePersistence, "failed to list ledger")
	}
	return entries, nil
}

func (s *Service) findApplication(ctx context.Context, appID id.ApplicationID) (*models.Application, error) {
	app, err := s.applications.FindByID(ctx, appID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "application not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodePersistence, "failed to load application")
	}
	return app, nil
}

func (s *Service) publish(ctx context.Context, event models.Event) {
	if s.events == nil {
		return
	}
	s.events.Publish(ctx, event)
}

func (s *Service) invalidateQueues(ctx context.Context) {
	if s.queueCache == nil {
		return
	}
	if err := s.queueCache.Invalidate(ctx); err != nil {
		s.logger.WarnContext(ctx, "failed to invalidate queue cache", "error", err)
	}
}
