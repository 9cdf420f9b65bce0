package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"procureflow.io/procureflow/internal/domain"
	apperrors "procureflow.io/procureflow/internal/pkg/errors"
	"procureflow.io/procureflow/internal/pkg/logger"
	"procureflow.io/procureflow/internal/repository"
)

// Submit validates readiness and moves the request to the first workflow
// step. A submit from REJECTED restarts the pipeline at step one; Resubmit
// is the path that resumes at the rejection step.
func (e *Engine) Submit(ctx context.Context, requestID, actorID string) (*domain.PurchaseRequest, error) {
	var (
		req    *domain.PurchaseRequest
		events []*domain.LifecycleEvent
	)
	err := e.inTx(ctx, func(tx repository.Tx) error {
		events = nil

		r, err := lockRequest(ctx, tx, requestID)
		if err != nil {
			return err
		}
		if r.RequestorID != actorID {
			return apperrors.ErrPermissionDenied("only the requestor may submit the request")
		}
		if !r.Status.Submittable() {
			return apperrors.ErrInvalidTransition("submit", string(r.Status))
		}
		if err := validateReadiness(ctx, tx, r); err != nil {
			return err
		}

		wf, err := tx.WorkflowTemplates().GetWithSteps(ctx, r.WorkflowTemplateID)
		if err != nil {
			return fmt.Errorf("load pinned workflow template: %w", err)
		}
		if len(wf.Steps) == 0 {
			return apperrors.Internal(apperrors.CodeTemplateInvariant, "pinned workflow template has no steps")
		}
		entry := wf.Steps[0]

		now := e.clock.Now()
		fromStatus := r.Status
		submissionID := e.ids.NewID()
		r.Status = domain.StatusPendingApproval
		r.CurrentStepID = &entry.ID
		r.CurrentSubmissionID = &submissionID
		r.SubmittedAt = &now
		r.RejectionComment = nil
		r.UpdatedAt = now
		if err := tx.Requests().Update(ctx, r); err != nil {
			return fmt.Errorf("update request: %w", err)
		}

		if err := e.audit(ctx, tx, r, actorID, domain.EventRequestSubmitted, map[string]interface{}{
			domain.MetaKeyFromStatus: string(fromStatus),
			domain.MetaKeyToStatus:   string(r.Status),
		}); err != nil {
			return err
		}
		if err := e.audit(ctx, tx, r, actorID, domain.EventWorkflowStepChange, map[string]interface{}{
			domain.MetaKeyToStep: entry.StepName,
		}); err != nil {
			return err
		}

		events = append(events, e.event(domain.EventRequestSubmitted, r, actorID, nil))
		payload, err := stepPayload("", entry)
		if err != nil {
			return err
		}
		events = append(events, e.event(domain.EventWorkflowStepChange, r, actorID, payload))
		req = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.publish(ctx, events)
	logger.Info("Purchase request submitted",
		zap.String("request_id", req.ID),
		zap.String("requestor_id", actorID),
		zap.Stringp("submission_id", req.CurrentSubmissionID),
	)
	return req, nil
}

// Resubmit re-validates a REJECTED request and re-enters the workflow at
// the step where rejection occurred, under a fresh submission cycle so
// prior approvals at that step no longer count.
func (e *Engine) Resubmit(ctx context.Context, requestID, actorID string) (*domain.PurchaseRequest, error) {
	var (
		req    *domain.PurchaseRequest
		events []*domain.LifecycleEvent
	)
	err := e.inTx(ctx, func(tx repository.Tx) error {
		events = nil

		r, err := lockRequest(ctx, tx, requestID)
		if err != nil {
			return err
		}
		if r.RequestorID != actorID {
			return apperrors.ErrPermissionDenied("only the requestor may resubmit the request")
		}
		if r.Status != domain.StatusRejected {
			return apperrors.ErrInvalidTransition("resubmit", string(r.Status))
		}
		step, err := loadStep(ctx, tx, r, "resubmit")
		if err != nil {
			return err
		}
		if err := validateReadiness(ctx, tx, r); err != nil {
			return err
		}

		now := e.clock.Now()
		submissionID := e.ids.NewID()
		r.CurrentSubmissionID = &submissionID
		r.SubmittedAt = &now
		r.RejectionComment = nil
		if step.IsFinanceReview {
			r.Status = domain.StatusFinanceReview
		} else {
			r.Status = domain.StatusPendingApproval
		}
		r.UpdatedAt = now
		if err := tx.Requests().Update(ctx, r); err != nil {
			return fmt.Errorf("update request: %w", err)
		}

		if err := e.audit(ctx, tx, r, actorID, domain.EventResubmission, map[string]interface{}{
			domain.MetaKeyFromStatus:      string(domain.StatusRejected),
			domain.MetaKeyToStatus:        string(r.Status),
			domain.MetaKeyToStep:          step.StepName,
			domain.MetaKeyTransientStatus: string(domain.StatusResubmitted),
		}); err != nil {
			return err
		}

		payload, err := stepPayload("", *step)
		if err != nil {
			return err
		}
		events = append(events, e.event(domain.EventResubmission, r, actorID, payload))
		req = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.publish(ctx, events)
	logger.Info("Purchase request resubmitted",
		zap.String("request_id", req.ID),
		zap.String("requestor_id", actorID),
		zap.String("status", string(req.Status)),
	)
	return req, nil
}

// validateReadiness enforces the submit preconditions against the pinned
// form template and the team's required attachment categories. It returns
// the structured remediation error when anything is missing.
func validateReadiness(ctx context.Context, tx repository.Tx, r *domain.PurchaseRequest) error {
	tpl, err := tx.FormTemplates().GetWithFields(ctx, r.FormTemplateID)
	if err != nil {
		return fmt.Errorf("load pinned form template: %w", err)
	}
	values, err := tx.FieldValues().ListByRequest(ctx, r.ID)
	if err != nil {
		return err
	}
	byFormField := make(map[string]domain.FieldValue, len(values))
	for _, v := range values {
		byFormField[v.FormFieldID] = v.Value
	}

	attachments, err := tx.Attachments().ListByRequest(ctx, r.ID)
	if err != nil {
		return err
	}
	countByCategory := make(map[string]int)
	for _, a := range attachments {
		if a.CategoryID != nil {
			countByCategory[*a.CategoryID]++
		}
	}

	var missingFields []string
	for _, field := range tpl.Fields {
		if !field.Required {
			continue
		}
		if field.Type == domain.FieldTypeFileUpload {
			if !fileFieldSatisfied(ctx, tx, r.TeamID, field, countByCategory) {
				missingFields = append(missingFields, field.FieldID)
			}
			continue
		}
		v, ok := byFormField[field.ID]
		if !ok || v.Empty() {
			missingFields = append(missingFields, field.FieldID)
		}
	}

	required, err := tx.Categories().Required(ctx, r.TeamID)
	if err != nil {
		return err
	}
	var missingAttachments []string
	for _, cat := range required {
		if countByCategory[cat.ID] == 0 {
			missingAttachments = append(missingAttachments, cat.Name)
		}
	}

	if len(missingFields) > 0 || len(missingAttachments) > 0 {
		return apperrors.ErrValidationFailed(missingFields, missingAttachments)
	}
	return nil
}

// fileFieldSatisfied reports whether at least one attachment covers the
// FILE_UPLOAD field's bound category. An unresolvable binding counts as
// unsatisfied rather than failing the whole submit.
func fileFieldSatisfied(ctx context.Context, tx repository.Tx, teamID string, field domain.FormField, countByCategory map[string]int) bool {
	if field.AttachmentCategory == "" {
		return false
	}
	cat, err := tx.Categories().GetByName(ctx, teamID, field.AttachmentCategory)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			logger.Warn("Attachment category lookup failed during submit validation",
				zap.String("team_id", teamID),
				zap.String("category", field.AttachmentCategory),
				zap.Error(err),
			)
		}
		return false
	}
	return countByCategory[cat.ID] > 0
}

// stepPayload serializes the routing payload for a step entry.
func stepPayload(fromStep string, to domain.WorkflowTemplateStep) ([]byte, error) {
	codes := make([]string, 0, len(to.ApproverRoles))
	for _, role := range to.ApproverRoles {
		codes = append(codes, role.Code)
	}
	p := domain.StepChangePayload{
		FromStep:      fromStep,
		ToStep:        to.StepName,
		ToStepID:      to.ID,
		ApproverRoles: codes,
	}
	return p.ToJSON()
}
