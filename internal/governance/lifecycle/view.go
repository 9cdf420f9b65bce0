package lifecycle

import (
	"context"
	"errors"

	"procureflow.io/procureflow/internal/domain"
	apperrors "procureflow.io/procureflow/internal/pkg/errors"
	"procureflow.io/procureflow/internal/repository"
)

// RequestView is the hydrated read model for one request: header, typed
// field values in form order, active attachments, decision history, and
// the current step when one is pinned.
type RequestView struct {
	Request     *domain.PurchaseRequest      `json:"request"`
	FieldValues []*domain.RequestFieldValue  `json:"field_values"`
	Attachments []*domain.Attachment         `json:"attachments"`
	History     []*domain.ApprovalHistory    `json:"history"`
	CurrentStep *domain.WorkflowTemplateStep `json:"current_step,omitempty"`
}

// GetRequest loads the hydrated view of one request.
func (e *Engine) GetRequest(ctx context.Context, requestID string) (*RequestView, error) {
	r, err := e.store.Requests().GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.ErrRequestNotFound(requestID)
		}
		return nil, err
	}

	values, err := e.store.FieldValues().ListByRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	attachments, err := e.store.Attachments().ListByRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	history, err := e.store.Approvals().ListByRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}

	view := &RequestView{
		Request:     r,
		FieldValues: values,
		Attachments: attachments,
		History:     history,
	}
	if r.CurrentStepID != nil {
		step, err := e.store.WorkflowTemplates().GetStep(ctx, *r.CurrentStepID)
		if err != nil {
			return nil, err
		}
		view.CurrentStep = step
	}
	return view, nil
}

// GetCurrentStep returns the pinned current step, or nil before the first
// submission.
func (e *Engine) GetCurrentStep(ctx context.Context, requestID string) (*domain.WorkflowTemplateStep, error) {
	r, err := e.store.Requests().GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.ErrRequestNotFound(requestID)
		}
		return nil, err
	}
	if r.CurrentStepID == nil {
		return nil, nil
	}
	return e.store.WorkflowTemplates().GetStep(ctx, *r.CurrentStepID)
}

// ListByRequestor returns the user's own requests, optionally filtered by
// status, newest first.
func (e *Engine) ListByRequestor(ctx context.Context, userID string, statuses []domain.Status) ([]*domain.PurchaseRequest, error) {
	return e.store.Requests().ListByRequestor(ctx, userID, statuses)
}

// ListByTeam returns the team's requests, optionally filtered by status,
// newest first.
func (e *Engine) ListByTeam(ctx context.Context, teamID string, statuses []domain.Status) ([]*domain.PurchaseRequest, error) {
	return e.store.Requests().ListByTeam(ctx, teamID, statuses)
}
