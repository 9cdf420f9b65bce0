// Package audit implements the append-only audit ledger.
//
// Audit events are compliance records. Hard-delete and update are NOT
// allowed; correcting a mistake means appending another event.
package audit

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"procureflow.io/procureflow/internal/domain"
	"procureflow.io/procureflow/internal/pkg/logger"
	"procureflow.io/procureflow/internal/repository"
)

// Ledger writes and reads audit events.
type Ledger struct {
	store repository.Store
	ids   domain.IDGenerator
	clock domain.Clock
}

// NewLedger creates a Ledger over the store.
func NewLedger(store repository.Store, ids domain.IDGenerator, clock domain.Clock) *Ledger {
	return &Ledger{store: store, ids: ids, clock: clock}
}

// Append stamps and persists the event through acc. Passing a transaction
// accessor makes the event atomic with the state change it records; the
// lifecycle engine relies on that.
func (l *Ledger) Append(ctx context.Context, acc repository.Accessor, e *domain.AuditEvent) error {
	if e.ID == "" {
		e.ID = l.ids.NewID()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = l.clock.Now()
	}
	for i := range e.FieldChanges {
		if e.FieldChanges[i].ID == "" {
			e.FieldChanges[i].ID = l.ids.NewID()
		}
	}

	if err := acc.Audit().Append(ctx, e); err != nil {
		logger.Error("Failed to write audit event",
			zap.String("event_type", string(e.EventType)),
			zap.Stringp("request_id", e.RequestID),
			zap.Error(err),
		)
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

// ForRequest returns the request's full trail, oldest first.
func (l *Ledger) ForRequest(ctx context.Context, requestID string) ([]*domain.AuditEvent, error) {
	events, err := l.store.Audit().ListByRequest(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("audit trail of request %s: %w", requestID, err)
	}
	return events, nil
}

// ForSubmission returns one submission cycle's slice of the trail.
func (l *Ledger) ForSubmission(ctx context.Context, submissionID string) ([]*domain.AuditEvent, error) {
	events, err := l.store.Audit().ListBySubmission(ctx, submissionID)
	if err != nil {
		return nil, fmt.Errorf("audit trail of submission %s: %w", submissionID, err)
	}
	return events, nil
}

// ByType returns the newest events of one type, for compliance reviews.
func (l *Ledger) ByType(ctx context.Context, eventType domain.EventType, limit int) ([]*domain.AuditEvent, error) {
	events, err := l.store.Audit().ListByType(ctx, eventType, limit)
	if err != nil {
		return nil, fmt.Errorf("audit events of type %s: %w", eventType, err)
	}
	return events, nil
}
