package domain

import (
	"encoding/json"
	"time"
)

// EventType defines the type of an audit/lifecycle event.
type EventType string

const (
	EventRequestCreated     EventType = "REQUEST_CREATED"
	EventRequestSubmitted   EventType = "REQUEST_SUBMITTED"
	EventApproval           EventType = "APPROVAL"
	EventRejection          EventType = "REJECTION"
	EventResubmission       EventType = "RESUBMISSION"
	EventWorkflowStepChange EventType = "WORKFLOW_STEP_CHANGE"
	EventRequestCompleted   EventType = "REQUEST_COMPLETED"
	EventFieldUpdate        EventType = "FIELD_UPDATE"
	EventAttachmentUpload   EventType = "ATTACHMENT_UPLOAD"
	EventAttachmentRemoved  EventType = "ATTACHMENT_REMOVED"
	EventStatusChange       EventType = "STATUS_CHANGE"
)

// LifecycleEvent is the in-process envelope dispatched after a lifecycle
// transition commits. Consumers (notification triggers) receive it outside
// the transaction; the durable record is the audit ledger, not this event.
type LifecycleEvent struct {
	EventType   EventType `json:"event_type"`
	RequestID   string    `json:"request_id"`
	TeamID      string    `json:"team_id"`
	RequestorID string    `json:"requestor_id"`
	ActorID     string    `json:"actor_id,omitempty"`
	Subject     string    `json:"subject"`
	Status      Status    `json:"status"`
	Payload     []byte    `json:"payload,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// StepChangePayload describes a step crossing for notification routing.
type StepChangePayload struct {
	FromStep      string   `json:"from_step,omitempty"`
	ToStep        string   `json:"to_step,omitempty"`
	ToStepID      string   `json:"to_step_id,omitempty"`
	ApproverRoles []string `json:"approver_roles,omitempty"`
}

// ToJSON converts payload to JSON bytes.
func (p StepChangePayload) ToJSON() ([]byte, error) {
	return json.Marshal(p)
}

// DecisionPayload describes an approve/reject action for notifications.
type DecisionPayload struct {
	Action   ApprovalAction `json:"action"`
	StepName string         `json:"step_name"`
	RoleCode string         `json:"role_code"`
	Comment  string         `json:"comment,omitempty"`
}

// ToJSON converts payload to JSON bytes.
func (p DecisionPayload) ToJSON() ([]byte, error) {
	return json.Marshal(p)
}
