package service

import (
	"context"

	"bursary/internal/review/models"
	id "bursary/pkg/domain"
	dErrors "bursary/pkg/domain-errors"
)

// QueueForRole returns the open applications the role can act on right now,
// oldest submission first. An application appears in a role's queue when at
// least one stage that role may decide is still pending; the chair's queue
// additionally requires every prerequisite stage decided, since final approval
// is gated on them.
//
// Queues are recomputed from the stores on every miss; the cache only absorbs
// dashboard polling.
func (s *Service) QueueForRole(ctx context.Context, role id.Role) ([]models.Summary, error) {
	ctx, span := s.tracer.Start(ctx, "review.QueueForRole")
	defer span.End()

	if s.queueCache != nil {
		if queue, ok := s.queueCache.Get(ctx, role); ok {
			if s.metrics != nil {
				s.metrics.ObserveQueue(role, true)
			}
			return queue, nil
		}
	}

	apps, err := s.applications.ListByStatus(ctx, models.StatusSubmitted, models.StatusUnderReview)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodePersistence, "failed to list open applications")
	}

	queue := make([]models.Summary, 0, len(apps))
	for _, app := range apps {
		set, err := s.stageStatus.GetSet(ctx, app.ID)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodePersistence, "failed to load stage statuses")
		}
		if roleHasActionableStage(role, set) {
			queue = append(queue, app.ToSummary())
		}
	}

	if s.queueCache != nil {
		s.queueCache.Set(ctx, role, queue)
	}
	if s.metrics != nil {
		s.metrics.ObserveQueue(role, false)
	}
	return queue, nil
}

// roleHasActionableStage reports whether any stage the role may decide is
// pending and unblocked.
func roleHasActionableStage(role id.Role, set models.StageStatusSet) bool {
	for _, stage := range role.Stages() {
		if set[stage].Status.IsTerminal() {
			continue
		}
		if stage == id.StageFinalApproval && !set.PrerequisitesTerminal() {
			continue
		}
		return true
	}
	return false
}
