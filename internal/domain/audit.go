package domain

import "time"

// AuditEvent is one append-only row of the audit ledger. Metadata carries
// event-specific context (step names, transient status markers, filenames).
type AuditEvent struct {
	ID           string                 `json:"id"`
	EventType    EventType              `json:"event_type"`
	ActorID      *string                `json:"actor_id,omitempty"`
	RequestID    *string                `json:"request_id,omitempty"`
	SubmissionID *string                `json:"submission_id,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
	FieldChanges []FieldChange          `json:"field_changes,omitempty"`
}

// FieldChange is a child record of a FIELD_UPDATE event carrying the
// old and new rendered values. FieldRefID points at the pinned form field
// when one exists; FieldName covers header fields with no form binding.
type FieldChange struct {
	ID           string  `json:"id"`
	AuditEventID string  `json:"audit_event_id"`
	FieldRefID   *string `json:"field_ref_id,omitempty"`
	FieldName    string  `json:"field_name"`
	OldValue     *string `json:"old_value,omitempty"`
	NewValue     *string `json:"new_value,omitempty"`
}

// Metadata keys written by the lifecycle engine.
const (
	MetaKeyFromStatus      = "from_status"
	MetaKeyToStatus        = "to_status"
	MetaKeyFromStep        = "from_step"
	MetaKeyToStep          = "to_step"
	MetaKeyStep            = "step"
	MetaKeyTransientStatus = "transient_status"
	MetaKeyRole            = "role"
	MetaKeyComment         = "comment"
	MetaKeyFilename        = "filename"
	MetaKeyCategory        = "category"
	MetaKeyRemainingRoles  = "remaining_roles"
)
