// Package domain provides domain models for ProcureFlow.
//
// Statuses, purchase types, and field types are closed enumerations at the
// engine boundary. The lookup registry resolves their (type_code, code)
// pairs for transport and UI layers only.
package domain

// Status is the lifecycle status of a purchase request.
type Status string

const (
	StatusDraft           Status = "DRAFT"
	StatusPendingApproval Status = "PENDING_APPROVAL"
	StatusInReview        Status = "IN_REVIEW"
	StatusRejected        Status = "REJECTED"
	StatusResubmitted     Status = "RESUBMITTED"
	StatusFullyApproved   Status = "FULLY_APPROVED"
	StatusFinanceReview   Status = "FINANCE_REVIEW"
	StatusCompleted       Status = "COMPLETED"
	StatusArchived        Status = "ARCHIVED"
)

// AllStatuses lists every status code the engine recognizes, in lifecycle order.
// RESUBMITTED and FULLY_APPROVED are transient markers: they appear in audit
// metadata but are never persisted as a request's durable status.
var AllStatuses = []Status{
	StatusDraft,
	StatusPendingApproval,
	StatusInReview,
	StatusRejected,
	StatusResubmitted,
	StatusFullyApproved,
	StatusFinanceReview,
	StatusCompleted,
	StatusArchived,
}

// Valid reports whether s is a recognized status code.
func (s Status) Valid() bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Terminal reports whether the request can no longer change state.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusArchived
}

// Editable reports whether the requestor may mutate field values.
func (s Status) Editable() bool {
	return s == StatusDraft || s == StatusRejected
}

// Submittable reports whether submit/resubmit may run from this status.
func (s Status) Submittable() bool {
	return s == StatusDraft || s == StatusRejected || s == StatusResubmitted
}

// AwaitingApproval reports whether the request sits at an approver's desk.
func (s Status) AwaitingApproval() bool {
	return s == StatusPendingApproval || s == StatusInReview || s == StatusFinanceReview
}

// PurchaseType classifies what is being purchased.
type PurchaseType string

const (
	PurchaseTypeService PurchaseType = "SERVICE"
	PurchaseTypeGood    PurchaseType = "GOOD"
)

// FieldType is the declared type of a form field.
type FieldType string

const (
	FieldTypeText       FieldType = "TEXT"
	FieldTypeNumber     FieldType = "NUMBER"
	FieldTypeDate       FieldType = "DATE"
	FieldTypeBoolean    FieldType = "BOOLEAN"
	FieldTypeDropdown   FieldType = "DROPDOWN"
	FieldTypeFileUpload FieldType = "FILE_UPLOAD"
)

// Valid reports whether t is a recognized field type.
func (t FieldType) Valid() bool {
	switch t {
	case FieldTypeText, FieldTypeNumber, FieldTypeDate, FieldTypeBoolean, FieldTypeDropdown, FieldTypeFileUpload:
		return true
	}
	return false
}

// ApprovalAction is the decision recorded by an approver.
type ApprovalAction string

const (
	ActionApprove ApprovalAction = "APPROVE"
	ActionReject  ApprovalAction = "REJECT"
)

// Lookup type codes recognized by the registry.
const (
	LookupTypeRequestStatus = "REQUEST_STATUS"
	LookupTypePurchaseType  = "PURCHASE_TYPE"
	LookupTypeCompanyRole   = "COMPANY_ROLE"
)
