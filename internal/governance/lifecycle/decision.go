package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"procureflow.io/procureflow/internal/domain"
	apperrors "procureflow.io/procureflow/internal/pkg/errors"
	"procureflow.io/procureflow/internal/pkg/logger"
	"procureflow.io/procureflow/internal/repository"
)

// Approve records one approver decision at the current step and advances
// the request when every required role has approved. A multi-role step
// with outstanding roles parks the request IN_REVIEW; completing the
// finance step completes the request.
func (e *Engine) Approve(ctx context.Context, requestID, actorID, roleCode, comment string) (*domain.PurchaseRequest, error) {
	var (
		req    *domain.PurchaseRequest
		events []*domain.LifecycleEvent
	)
	err := e.inTx(ctx, func(tx repository.Tx) error {
		events = nil

		r, step, role, err := e.authorizeDecision(ctx, tx, requestID, actorID, roleCode, "approve")
		if err != nil {
			return err
		}
		now := e.clock.Now()

		history := &domain.ApprovalHistory{
			ID:           e.ids.NewID(),
			RequestID:    r.ID,
			StepID:       step.ID,
			SubmissionID: *r.CurrentSubmissionID,
			ApproverID:   actorID,
			RoleID:       role.ID,
			RoleCode:     role.Code,
			Action:       domain.ActionApprove,
			Comment:      strings.TrimSpace(comment),
			CreatedAt:    now,
		}
		if err := tx.Approvals().Create(ctx, history); err != nil {
			return fmt.Errorf("record approval: %w", err)
		}

		approved, err := tx.Approvals().ApprovedRoleIDs(ctx, r.ID, step.ID, *r.CurrentSubmissionID)
		if err != nil {
			return err
		}
		remaining := remainingRoleCodes(step, approved)

		meta := map[string]interface{}{
			domain.MetaKeyRole: role.Code,
			domain.MetaKeyStep: step.StepName,
		}
		if history.Comment != "" {
			meta[domain.MetaKeyComment] = history.Comment
		}
		if len(remaining) > 0 {
			meta[domain.MetaKeyRemainingRoles] = remaining
		}
		if err := e.audit(ctx, tx, r, actorID, domain.EventApproval, meta); err != nil {
			return err
		}

		fromStatus := r.Status
		var advance *domain.LifecycleEvent
		if len(remaining) > 0 {
			r.Status = domain.StatusInReview
		} else {
			advance, err = e.advance(ctx, tx, r, step, actorID, now, fromStatus)
			if err != nil {
				return err
			}
		}
		r.UpdatedAt = now
		if err := tx.Requests().Update(ctx, r); err != nil {
			return fmt.Errorf("update request: %w", err)
		}

		decision, err := domain.DecisionPayload{
			Action:   domain.ActionApprove,
			StepName: step.StepName,
			RoleCode: role.Code,
			Comment:  history.Comment,
		}.ToJSON()
		if err != nil {
			return err
		}
		events = append(events, e.event(domain.EventApproval, r, actorID, decision))
		if advance != nil {
			events = append(events, advance)
		}
		req = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.publish(ctx, events)
	logger.Info("Purchase request approved at step",
		zap.String("request_id", req.ID),
		zap.String("approver_id", actorID),
		zap.String("role", roleCode),
		zap.String("status", string(req.Status)),
	)
	return req, nil
}

// Reject records a rejection, parks the request in REJECTED, and keeps the
// current step unchanged so a resubmission resumes where it stopped.
func (e *Engine) Reject(ctx context.Context, requestID, actorID, roleCode, comment string) (*domain.PurchaseRequest, error) {
	comment = strings.TrimSpace(comment)
	if utf8.RuneCountInString(comment) < e.policy.RejectionMinCommentChars {
		return nil, apperrors.ErrRejectionCommentRequired(e.policy.RejectionMinCommentChars)
	}

	var (
		req    *domain.PurchaseRequest
		events []*domain.LifecycleEvent
	)
	err := e.inTx(ctx, func(tx repository.Tx) error {
		events = nil

		r, step, role, err := e.authorizeDecision(ctx, tx, requestID, actorID, roleCode, "reject")
		if err != nil {
			return err
		}
		now := e.clock.Now()

		history := &domain.ApprovalHistory{
			ID:           e.ids.NewID(),
			RequestID:    r.ID,
			StepID:       step.ID,
			SubmissionID: *r.CurrentSubmissionID,
			ApproverID:   actorID,
			RoleID:       role.ID,
			RoleCode:     role.Code,
			Action:       domain.ActionReject,
			Comment:      comment,
			CreatedAt:    now,
		}
		if err := tx.Approvals().Create(ctx, history); err != nil {
			return fmt.Errorf("record rejection: %w", err)
		}

		fromStatus := r.Status
		r.Status = domain.StatusRejected
		r.RejectionComment = &comment
		r.UpdatedAt = now
		if err := tx.Requests().Update(ctx, r); err != nil {
			return fmt.Errorf("update request: %w", err)
		}

		if err := e.audit(ctx, tx, r, actorID, domain.EventRejection, map[string]interface{}{
			domain.MetaKeyRole:       role.Code,
			domain.MetaKeyStep:       step.StepName,
			domain.MetaKeyComment:    comment,
			domain.MetaKeyFromStatus: string(fromStatus),
			domain.MetaKeyToStatus:   string(r.Status),
		}); err != nil {
			return err
		}

		decision, err := domain.DecisionPayload{
			Action:   domain.ActionReject,
			StepName: step.StepName,
			RoleCode: role.Code,
			Comment:  comment,
		}.ToJSON()
		if err != nil {
			return err
		}
		events = append(events, e.event(domain.EventRejection, r, actorID, decision))
		req = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.publish(ctx, events)
	logger.Info("Purchase request rejected",
		zap.String("request_id", req.ID),
		zap.String("approver_id", actorID),
		zap.String("role", roleCode),
	)
	return req, nil
}

// Withdraw archives a request at the requestor's initiative. ARCHIVED is
// terminal; there is no un-archive.
func (e *Engine) Withdraw(ctx context.Context, requestID, actorID string) (*domain.PurchaseRequest, error) {
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
			return apperrors.ErrPermissionDenied("only the requestor may withdraw the request")
		}
		if r.Status.Terminal() {
			return apperrors.ErrInvalidTransition("withdraw", string(r.Status))
		}

		now := e.clock.Now()
		fromStatus := r.Status
		r.Status = domain.StatusArchived
		r.UpdatedAt = now
		if err := tx.Requests().Update(ctx, r); err != nil {
			return fmt.Errorf("update request: %w", err)
		}

		if err := e.audit(ctx, tx, r, actorID, domain.EventStatusChange, map[string]interface{}{
			domain.MetaKeyFromStatus: string(fromStatus),
			domain.MetaKeyToStatus:   string(r.Status),
		}); err != nil {
			return err
		}
		events = append(events, e.event(domain.EventStatusChange, r, actorID, nil))
		req = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.publish(ctx, events)
	logger.Info("Purchase request withdrawn",
		zap.String("request_id", req.ID),
		zap.String("requestor_id", actorID),
	)
	return req, nil
}

// authorizeDecision runs the shared approve/reject gate: awaiting status,
// current step present, role in the step's approver set, actor holding the
// role on the request's team, and no prior decision by the actor at this
// step within the submission cycle.
func (e *Engine) authorizeDecision(
	ctx context.Context,
	tx repository.Tx,
	requestID, actorID, roleCode, op string,
) (*domain.PurchaseRequest, *domain.WorkflowTemplateStep, *domain.Lookup, error) {
	r, err := lockRequest(ctx, tx, requestID)
	if err != nil {
		return nil, nil, nil, err
	}
	if !r.Status.AwaitingApproval() {
		return nil, nil, nil, apperrors.ErrInvalidTransition(op, string(r.Status))
	}
	if r.CurrentSubmissionID == nil {
		return nil, nil, nil, apperrors.ErrInvalidTransition(op, string(r.Status))
	}
	step, err := loadStep(ctx, tx, r, op)
	if err != nil {
		return nil, nil, nil, err
	}

	role, err := tx.Lookups().Resolve(ctx, domain.LookupTypeCompanyRole, roleCode)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, nil, apperrors.ErrLookupNotFound(domain.LookupTypeCompanyRole, roleCode)
		}
		return nil, nil, nil, err
	}
	if !step.HasRole(role.ID) {
		return nil, nil, nil, apperrors.ErrPermissionDenied("role is not in the step's approver set")
	}

	held, err := tx.Scopes().RolesOf(ctx, actorID, r.TeamID)
	if err != nil {
		return nil, nil, nil, err
	}
	if !slices.ContainsFunc(held, func(h domain.Role) bool { return h.ID == role.ID }) {
		return nil, nil, nil, apperrors.ErrPermissionDenied("actor does not hold the role on the request's team")
	}

	acted, err := tx.Approvals().HasActed(ctx, r.ID, step.ID, *r.CurrentSubmissionID, actorID)
	if err != nil {
		return nil, nil, nil, err
	}
	if acted {
		return nil, nil, nil, apperrors.ErrAlreadyActed(r.ID, step.StepName)
	}
	return r, step, role, nil
}

// advance moves a fully-approved request past the given step. Completing
// the finance step (or the last step under a relaxed finance-position
// configuration) terminates the request as COMPLETED.
func (e *Engine) advance(
	ctx context.Context,
	tx repository.Tx,
	r *domain.PurchaseRequest,
	step *domain.WorkflowTemplateStep,
	actorID string,
	now time.Time,
	fromStatus domain.Status,
) (*domain.LifecycleEvent, error) {
	wf, err := tx.WorkflowTemplates().GetWithSteps(ctx, r.WorkflowTemplateID)
	if err != nil {
		return nil, fmt.Errorf("load pinned workflow template: %w", err)
	}
	idx := slices.IndexFunc(wf.Steps, func(s domain.WorkflowTemplateStep) bool { return s.ID == step.ID })
	if idx < 0 {
		return nil, apperrors.Internal(apperrors.CodeTemplateInvariant, "current step is not part of the pinned workflow template")
	}

	if step.IsFinanceReview || idx+1 >= len(wf.Steps) {
		r.Status = domain.StatusCompleted
		r.CompletedAt = &now
		if err := e.audit(ctx, tx, r, actorID, domain.EventRequestCompleted, map[string]interface{}{
			domain.MetaKeyFromStatus: string(fromStatus),
			domain.MetaKeyToStatus:   string(r.Status),
		}); err != nil {
			return nil, err
		}
		return e.event(domain.EventRequestCompleted, r, actorID, nil), nil
	}

	next := wf.Steps[idx+1]
	r.CurrentStepID = &next.ID
	meta := map[string]interface{}{
		domain.MetaKeyFromStep: step.StepName,
		domain.MetaKeyToStep:   next.StepName,
	}
	if next.IsFinanceReview {
		r.Status = domain.StatusFinanceReview
		meta[domain.MetaKeyTransientStatus] = string(domain.StatusFullyApproved)
	} else {
		r.Status = domain.StatusPendingApproval
	}
	if err := e.audit(ctx, tx, r, actorID, domain.EventWorkflowStepChange, meta); err != nil {
		return nil, err
	}

	payload, err := stepPayload(step.StepName, next)
	if err != nil {
		return nil, err
	}
	return e.event(domain.EventWorkflowStepChange, r, actorID, payload), nil
}

// remainingRoleCodes returns the sorted codes of step roles with no
// APPROVE yet in the current submission cycle.
func remainingRoleCodes(step *domain.WorkflowTemplateStep, approvedRoleIDs []string) []string {
	approved := make(map[string]struct{}, len(approvedRoleIDs))
	for _, id := range approvedRoleIDs {
		approved[id] = struct{}{}
	}
	var out []string
	for _, role := range step.ApproverRoles {
		if _, ok := approved[role.ID]; !ok {
			out = append(out, role.Code)
		}
	}
	slices.Sort(out)
	return out
}
