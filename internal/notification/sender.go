// Package notification implements the in-app notification inbox.
//
// Notifications are plain DB rows written after the originating lifecycle
// transition commits. Delivery is best-effort: a failed write is logged
// and never affects the completed transition. External push channels
// (email, webhook) are a later concern and would hang off the same
// Sender interface.
package notification

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"procureflow.io/procureflow/internal/domain"
	"procureflow.io/procureflow/internal/pkg/logger"
	"procureflow.io/procureflow/internal/repository"
)

// Notification kinds stored in the kind column.
const (
	KindApprovalPending  = "APPROVAL_PENDING"
	KindRequestRejected  = "REQUEST_REJECTED"
	KindRequestCompleted = "REQUEST_COMPLETED"
)

// Params holds the fields for creating one notification.
type Params struct {
	RecipientID string
	RequestID   string
	Kind        string
	Title       string
	Body        string
}

// Sender delivers notifications to recipients.
type Sender interface {
	// Send creates a notification for a single recipient.
	Send(ctx context.Context, params Params) error

	// SendToMany creates notifications for multiple recipients.
	// Best-effort: individual failures are logged and do not stop the rest.
	SendToMany(ctx context.Context, recipientIDs []string, params Params) error
}

// InboxSender writes notifications to the store.
type InboxSender struct {
	store repository.Store
	ids   domain.IDGenerator
	clock domain.Clock
}

// NewInboxSender creates an inbox sender.
func NewInboxSender(store repository.Store, ids domain.IDGenerator, clock domain.Clock) *InboxSender {
	return &InboxSender{store: store, ids: ids, clock: clock}
}

// Send stores a single notification row.
func (s *InboxSender) Send(ctx context.Context, params Params) error {
	if err := validateParams(params); err != nil {
		return fmt.Errorf("notification params invalid: %w", err)
	}

	n := &domain.Notification{
		ID:        s.ids.NewID(),
		UserID:    params.RecipientID,
		Kind:      params.Kind,
		Title:     params.Title,
		Body:      params.Body,
		CreatedAt: s.clock.Now(),
	}
	if params.RequestID != "" {
		n.RequestID = &params.RequestID
	}
	if err := s.store.Notifications().Create(ctx, n); err != nil {
		return fmt.Errorf("create notification for user %s: %w", params.RecipientID, err)
	}

	logger.Debug("Notification sent",
		zap.String("recipient", params.RecipientID),
		zap.String("kind", params.Kind),
		zap.String("title", params.Title),
	)
	return nil
}

// SendToMany fans one notification out to several recipients. Failures
// are logged per recipient; the first error is reported after all sends.
func (s *InboxSender) SendToMany(ctx context.Context, recipientIDs []string, params Params) error {
	if len(recipientIDs) == 0 {
		return nil
	}

	var failCount int
	for _, recipientID := range recipientIDs {
		p := params
		p.RecipientID = recipientID
		if err := s.Send(ctx, p); err != nil {
			failCount++
			logger.Error("Notification delivery failed",
				zap.String("recipient", recipientID),
				zap.String("kind", params.Kind),
				zap.Error(err),
			)
		}
	}
	if failCount > 0 {
		return fmt.Errorf("notification delivery failed for %d/%d recipients", failCount, len(recipientIDs))
	}
	return nil
}

var _ Sender = (*InboxSender)(nil)

func validateParams(p Params) error {
	if p.RecipientID == "" {
		return fmt.Errorf("recipient_id is required")
	}
	if p.Kind == "" {
		return fmt.Errorf("kind is required")
	}
	if p.Title == "" {
		return fmt.Errorf("title is required")
	}
	return nil
}
