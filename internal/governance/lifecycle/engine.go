// Package lifecycle implements the purchase request state machine.
//
// Every operation runs in a single store transaction that row-locks the
// target request before any state-dependent read, so concurrent decisions
// on one request serialize and the remaining-roles computation is
// single-shot. Lock contention surfaced as ErrSerialization is retried
// within a small budget, then escalated as CONCURRENT_UPDATE.
package lifecycle

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"procureflow.io/procureflow/internal/domain"
	"procureflow.io/procureflow/internal/governance/audit"
	apperrors "procureflow.io/procureflow/internal/pkg/errors"
	"procureflow.io/procureflow/internal/pkg/logger"
	"procureflow.io/procureflow/internal/repository"
	"procureflow.io/procureflow/internal/service"
)

// Policy carries the engine's tunable rules from the workflow config group.
type Policy struct {
	RejectionMinCommentChars int
	RetryAttempts            int
	RetryBackoff             time.Duration
}

// DefaultPolicy mirrors the configuration defaults.
func DefaultPolicy() Policy {
	return Policy{
		RejectionMinCommentChars: 10,
		RetryAttempts:            3,
		RetryBackoff:             50 * time.Millisecond,
	}
}

// Engine orchestrates purchase request lifecycle transitions.
type Engine struct {
	store       repository.Store
	ledger      *audit.Ledger
	attachments *service.AttachmentService
	ids         domain.IDGenerator
	clock       domain.Clock
	policy      Policy
	dispatcher  *domain.EventDispatcher // Optional: nil-safe
}

// NewEngine creates a lifecycle Engine.
func NewEngine(
	store repository.Store,
	ledger *audit.Ledger,
	attachments *service.AttachmentService,
	ids domain.IDGenerator,
	clock domain.Clock,
	policy Policy,
) *Engine {
	if policy.RetryAttempts < 1 {
		policy.RetryAttempts = 1
	}
	return &Engine{
		store:       store,
		ledger:      ledger,
		attachments: attachments,
		ids:         ids,
		clock:       clock,
		policy:      policy,
	}
}

// SetDispatcher configures the post-commit event dispatcher.
// This is a setter to avoid breaking the constructor signature.
func (e *Engine) SetDispatcher(d *domain.EventDispatcher) {
	e.dispatcher = d
}

// inTx runs fn in a store transaction, retrying serialization conflicts
// within the policy budget. fn must reset any captured accumulators on
// entry because a retried attempt replays it from scratch.
func (e *Engine) inTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	var err error
	for attempt := 0; attempt < e.policy.RetryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(e.policy.RetryBackoff):
			}
		}
		err = e.store.InTx(ctx, fn)
		if !errors.Is(err, repository.ErrSerialization) {
			return err
		}
		logger.Warn("Retrying lifecycle transaction after serialization conflict",
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
	}
	return apperrors.ErrConcurrentUpdate(err)
}

// publish dispatches committed lifecycle events. Handler failures are
// logged by the dispatcher; they never affect the completed transition.
func (e *Engine) publish(ctx context.Context, events []*domain.LifecycleEvent) {
	if e.dispatcher == nil {
		return
	}
	for _, ev := range events {
		_ = e.dispatcher.Dispatch(ctx, ev)
	}
}

// event builds the post-commit envelope for the request's current state.
func (e *Engine) event(t domain.EventType, r *domain.PurchaseRequest, actorID string, payload []byte) *domain.LifecycleEvent {
	return &domain.LifecycleEvent{
		EventType:   t,
		RequestID:   r.ID,
		TeamID:      r.TeamID,
		RequestorID: r.RequestorID,
		ActorID:     actorID,
		Subject:     r.Subject,
		Status:      r.Status,
		Payload:     payload,
		OccurredAt:  e.clock.Now(),
	}
}

// audit appends one ledger event bound to the request's current submission.
func (e *Engine) audit(
	ctx context.Context,
	tx repository.Tx,
	r *domain.PurchaseRequest,
	actorID string,
	t domain.EventType,
	meta map[string]interface{},
	changes ...domain.FieldChange,
) error {
	ev := &domain.AuditEvent{
		EventType:    t,
		ActorID:      &actorID,
		RequestID:    &r.ID,
		SubmissionID: r.CurrentSubmissionID,
		Metadata:     meta,
		FieldChanges: changes,
	}
	return e.ledger.Append(ctx, tx, ev)
}

// lockRequest loads the request under the row-level write lock.
func lockRequest(ctx context.Context, tx repository.Tx, requestID string) (*domain.PurchaseRequest, error) {
	r, err := tx.Requests().GetForUpdate(ctx, requestID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.ErrRequestNotFound(requestID)
		}
		return nil, err
	}
	return r, nil
}

// loadStep resolves the request's current step inside the transaction.
func loadStep(ctx context.Context, tx repository.Tx, r *domain.PurchaseRequest, op string) (*domain.WorkflowTemplateStep, error) {
	if r.CurrentStepID == nil {
		return nil, apperrors.ErrInvalidTransition(op, string(r.Status))
	}
	step, err := tx.WorkflowTemplates().GetStep(ctx, *r.CurrentStepID)
	if err != nil {
		return nil, err
	}
	return step, nil
}
