package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"procureflow.io/procureflow/internal/domain"
	"procureflow.io/procureflow/internal/pkg/logger"
	"procureflow.io/procureflow/internal/pkg/worker"
	"procureflow.io/procureflow/internal/repository"
)

// Triggers turns committed lifecycle events into inbox notifications:
//
//  1. A request entering a workflow step notifies every user holding one
//     of the step's approver roles on the request's team.
//  2. A rejection notifies the requestor, with the approver's comment.
//  3. Completion notifies the requestor.
//
// Fan-out runs on the notify worker pool so a slow store write never
// holds up the caller. Without pools the handlers run inline, which is
// what the tests use.
type Triggers struct {
	sender Sender
	store  repository.Store
	pools  *worker.Pools
}

// NewTriggers creates the notification trigger service.
func NewTriggers(sender Sender, store repository.Store, pools *worker.Pools) *Triggers {
	return &Triggers{sender: sender, store: store, pools: pools}
}

// Register subscribes the triggers to the lifecycle event stream.
func (t *Triggers) Register(d *domain.EventDispatcher) {
	stepEntered := func(ctx context.Context, ev *domain.LifecycleEvent) error {
		t.dispatch(ev, t.StepEntered)
		return nil
	}
	d.Register(domain.EventWorkflowStepChange, stepEntered)
	d.Register(domain.EventResubmission, stepEntered)
	d.Register(domain.EventRejection, func(ctx context.Context, ev *domain.LifecycleEvent) error {
		t.dispatch(ev, t.Rejected)
		return nil
	})
	d.Register(domain.EventRequestCompleted, func(ctx context.Context, ev *domain.LifecycleEvent) error {
		t.dispatch(ev, t.Completed)
		return nil
	})
}

// dispatch hands the event to fn on the notify pool, or inline when no
// pools are configured.
func (t *Triggers) dispatch(ev *domain.LifecycleEvent, fn func(ctx context.Context, ev *domain.LifecycleEvent)) {
	if t.pools == nil {
		fn(context.Background(), ev)
		return
	}
	if err := t.pools.SubmitDetached("notify", func(ctx context.Context) {
		fn(ctx, ev)
	}); err != nil {
		logger.Error("Notification fan-out submission failed",
			zap.String("event_type", string(ev.EventType)),
			zap.String("request_id", ev.RequestID),
			zap.Error(err),
		)
	}
}

// StepEntered notifies the approvers of the step the request just entered.
func (t *Triggers) StepEntered(ctx context.Context, ev *domain.LifecycleEvent) {
	if len(ev.Payload) == 0 {
		return
	}
	var payload domain.StepChangePayload
	if err := json.Unmarshal(ev.Payload, &payload); err != nil {
		logger.Error("Malformed step change payload",
			zap.String("request_id", ev.RequestID),
			zap.Error(err),
		)
		return
	}
	if len(payload.ApproverRoles) == 0 {
		return
	}

	recipients, err := t.approverIDs(ctx, ev.TeamID, payload.ApproverRoles)
	if err != nil {
		logger.Error("Failed to resolve step approvers for notification",
			zap.String("request_id", ev.RequestID),
			zap.String("step", payload.ToStep),
			zap.Error(err),
		)
		return
	}
	if len(recipients) == 0 {
		logger.Warn("No approvers hold the step's roles on the team",
			zap.String("request_id", ev.RequestID),
			zap.String("team_id", ev.TeamID),
			zap.String("step", payload.ToStep),
		)
		return
	}

	params := Params{
		RequestID: ev.RequestID,
		Kind:      KindApprovalPending,
		Title:     fmt.Sprintf("Purchase request awaiting %s approval", payload.ToStep),
		Body:      fmt.Sprintf("%q is waiting for your decision at step %s.", ev.Subject, payload.ToStep),
	}
	if err := t.sender.SendToMany(ctx, recipients, params); err != nil {
		logger.Error("Failed to send APPROVAL_PENDING notifications",
			zap.String("request_id", ev.RequestID),
			zap.Int("recipient_count", len(recipients)),
			zap.Error(err),
		)
	}
}

// Rejected notifies the requestor about a rejection, quoting the comment.
func (t *Triggers) Rejected(ctx context.Context, ev *domain.LifecycleEvent) {
	body := fmt.Sprintf("%q was rejected.", ev.Subject)
	var decision domain.DecisionPayload
	if len(ev.Payload) > 0 && json.Unmarshal(ev.Payload, &decision) == nil && decision.Comment != "" {
		body = fmt.Sprintf("%q was rejected at step %s: %s", ev.Subject, decision.StepName, decision.Comment)
	}

	err := t.sender.Send(ctx, Params{
		RecipientID: ev.RequestorID,
		RequestID:   ev.RequestID,
		Kind:        KindRequestRejected,
		Title:       "Your purchase request was rejected",
		Body:        body,
	})
	if err != nil {
		logger.Error("Failed to send REQUEST_REJECTED notification",
			zap.String("request_id", ev.RequestID),
			zap.String("requestor_id", ev.RequestorID),
			zap.Error(err),
		)
	}
}

// Completed notifies the requestor that the request cleared every step.
func (t *Triggers) Completed(ctx context.Context, ev *domain.LifecycleEvent) {
	err := t.sender.Send(ctx, Params{
		RecipientID: ev.RequestorID,
		RequestID:   ev.RequestID,
		Kind:        KindRequestCompleted,
		Title:       "Your purchase request was approved",
		Body:        fmt.Sprintf("%q completed the approval workflow.", ev.Subject),
	})
	if err != nil {
		logger.Error("Failed to send REQUEST_COMPLETED notification",
			zap.String("request_id", ev.RequestID),
			zap.String("requestor_id", ev.RequestorID),
			zap.Error(err),
		)
	}
}

// approverIDs resolves the distinct users holding any of the role codes on
// the team.
func (t *Triggers) approverIDs(ctx context.Context, teamID string, roleCodes []string) ([]string, error) {
	seen := make(map[string]struct{})
	var out []string
	for _, code := range roleCodes {
		role, err := t.store.Lookups().Resolve(ctx, domain.LookupTypeCompanyRole, code)
		if err != nil {
			return nil, fmt.Errorf("resolve role %s: %w", code, err)
		}
		ids, err := t.store.Scopes().UserIDsWithRole(ctx, teamID, role.ID)
		if err != nil {
			return nil, fmt.Errorf("users with role %s: %w", code, err)
		}
		for _, id := range ids {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out, nil
}
