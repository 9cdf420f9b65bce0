// Package repository defines the abstract transactional store the lifecycle
// engine and services run against. Implementations live in the postgres and
// memory subpackages.
package repository

import (
	"context"
	"errors"
	"time"

	"procureflow.io/procureflow/internal/domain"
)

// Sentinel errors returned by repositories. Implementations wrap them with
// entity context; callers match with errors.Is.
var (
	// ErrNotFound signals a missing row.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate signals a unique-constraint violation.
	ErrDuplicate = errors.New("duplicate")

	// ErrSerialization signals row-lock contention or a serialization
	// failure. The lifecycle engine retries these within its budget.
	ErrSerialization = errors.New("serialization conflict")
)

// Store is the root handle. Accessor methods outside InTx run in
// auto-commit mode; InTx runs fn against a transaction-scoped accessor
// and commits iff fn returns nil.
type Store interface {
	Accessor
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is a transaction-scoped accessor. GetForUpdate row locks are only
// meaningful inside a transaction.
type Tx interface {
	Accessor
}

// Accessor bundles the entity repositories.
type Accessor interface {
	Lookups() LookupRepository
	Teams() TeamRepository
	Users() UserRepository
	Scopes() ScopeRepository
	FormTemplates() FormTemplateRepository
	WorkflowTemplates() WorkflowTemplateRepository
	Configs() ConfigRepository
	Categories() CategoryRepository
	Requests() RequestRepository
	FieldValues() FieldValueRepository
	Attachments() AttachmentRepository
	Approvals() ApprovalRepository
	Audit() AuditRepository
	Notifications() NotificationRepository
}

// LookupRepository stores coded registry rows.
type LookupRepository interface {
	Create(ctx context.Context, l *domain.Lookup) error
	GetByID(ctx context.Context, id string) (*domain.Lookup, error)
	// Resolve returns the active row for (type_code, code).
	Resolve(ctx context.Context, typeCode, code string) (*domain.Lookup, error)
	ListByType(ctx context.Context, typeCode string) ([]*domain.Lookup, error)
	SetActive(ctx context.Context, id string, active bool) error
}

// TeamRepository stores teams.
type TeamRepository interface {
	Create(ctx context.Context, t *domain.Team) error
	GetByID(ctx context.Context, id string) (*domain.Team, error)
	GetByName(ctx context.Context, name string) (*domain.Team, error)
	List(ctx context.Context) ([]*domain.Team, error)
}

// UserRepository stores user accounts.
type UserRepository interface {
	Create(ctx context.Context, u *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	List(ctx context.Context) ([]*domain.User, error)
}

// ScopeRepository stores user-role-team assignments.
type ScopeRepository interface {
	Create(ctx context.Context, s *domain.AccessScope) error
	// RolesOf returns the active roles the user holds on the team.
	// Duplicate assignments of the same role collapse to one entry.
	RolesOf(ctx context.Context, userID, teamID string) ([]domain.Role, error)
	// UserIDsWithRole returns active users holding the role on the team.
	UserIDsWithRole(ctx context.Context, teamID, roleID string) ([]string, error)
	ListByUser(ctx context.Context, userID string) ([]*domain.AccessScope, error)
}

// FormTemplateRepository stores versioned form definitions.
type FormTemplateRepository interface {
	// Create persists the template and its fields.
	Create(ctx context.Context, t *domain.FormTemplate) error
	GetByID(ctx context.Context, id string) (*domain.FormTemplate, error)
	GetWithFields(ctx context.Context, id string) (*domain.FormTemplate, error)
	// MaxVersionForUpdate returns the highest version for the name, locking
	// the name's rows so a concurrent bump serializes. Call inside InTx.
	MaxVersionForUpdate(ctx context.Context, name string) (int, error)
	ListVersions(ctx context.Context, name string) ([]*domain.FormTemplate, error)
	SetActive(ctx context.Context, id string, active bool) error
}

// WorkflowTemplateRepository stores versioned step sequences.
type WorkflowTemplateRepository interface {
	// Create persists the template, its steps, and step approver roles.
	Create(ctx context.Context, t *domain.WorkflowTemplate) error
	GetByID(ctx context.Context, id string) (*domain.WorkflowTemplate, error)
	GetWithSteps(ctx context.Context, id string) (*domain.WorkflowTemplate, error)
	// GetStep returns one step hydrated with its approver roles.
	GetStep(ctx context.Context, stepID string) (*domain.WorkflowTemplateStep, error)
	MaxVersionForUpdate(ctx context.Context, name string) (int, error)
	ListVersions(ctx context.Context, name string) ([]*domain.WorkflowTemplate, error)
	SetActive(ctx context.Context, id string, active bool) error
}

// ConfigRepository stores (team, purchase type) template bindings.
type ConfigRepository interface {
	Create(ctx context.Context, c *domain.TeamPurchaseConfig) error
	// ResolveActive returns the single active config for the pair.
	ResolveActive(ctx context.Context, teamID string, pt domain.PurchaseType) (*domain.TeamPurchaseConfig, error)
	// DeactivateActive soft-disables the current active config, if any.
	DeactivateActive(ctx context.Context, teamID string, pt domain.PurchaseType) error
	ListByTeam(ctx context.Context, teamID string) ([]*domain.TeamPurchaseConfig, error)
}

// CategoryRepository stores per-team attachment categories.
type CategoryRepository interface {
	Create(ctx context.Context, c *domain.AttachmentCategory) error
	GetByName(ctx context.Context, teamID, name string) (*domain.AttachmentCategory, error)
	ListByTeam(ctx context.Context, teamID string) ([]*domain.AttachmentCategory, error)
	// Required returns the team's active categories with required=true.
	Required(ctx context.Context, teamID string) ([]*domain.AttachmentCategory, error)
}

// RequestRepository stores purchase requests.
type RequestRepository interface {
	Create(ctx context.Context, r *domain.PurchaseRequest) error
	GetByID(ctx context.Context, id string) (*domain.PurchaseRequest, error)
	// GetForUpdate acquires the row-level write lock. Call inside InTx
	// before any state-dependent read.
	GetForUpdate(ctx context.Context, id string) (*domain.PurchaseRequest, error)
	// Update writes the mutable columns: header fields, status, current
	// step, submission and completion stamps, rejection comment,
	// submission id, active.
	Update(ctx context.Context, r *domain.PurchaseRequest) error
	ListByRequestor(ctx context.Context, userID string, statuses []domain.Status) ([]*domain.PurchaseRequest, error)
	ListByTeam(ctx context.Context, teamID string, statuses []domain.Status) ([]*domain.PurchaseRequest, error)
	// ApproverInbox returns active requests awaiting any of the user's
	// roles at their current step, excluding requests the user already
	// acted on at that step. Each request appears once.
	ApproverInbox(ctx context.Context, userID string) ([]*domain.PurchaseRequest, error)
	// FinanceInbox returns FINANCE_REVIEW requests whose finance step
	// names a role the user holds on the request's team.
	FinanceInbox(ctx context.Context, userID string) ([]*domain.PurchaseRequest, error)
}

// FieldValueRepository stores typed request field values.
type FieldValueRepository interface {
	// Upsert inserts or replaces the value for (request, form field).
	Upsert(ctx context.Context, v *domain.RequestFieldValue) error
	Get(ctx context.Context, requestID, formFieldID string) (*domain.RequestFieldValue, error)
	ListByRequest(ctx context.Context, requestID string) ([]*domain.RequestFieldValue, error)
}

// AttachmentRepository stores attachment metadata.
type AttachmentRepository interface {
	Create(ctx context.Context, a *domain.Attachment) error
	GetByID(ctx context.Context, id string) (*domain.Attachment, error)
	ListByRequest(ctx context.Context, requestID string) ([]*domain.Attachment, error)
	// CountInCategory counts active attachments of the request in the category.
	CountInCategory(ctx context.Context, requestID, categoryID string) (int, error)
	SoftDelete(ctx context.Context, id string) error
}

// ApprovalRepository stores the append-only decision history. Aggregation
// queries scope to one submission cycle: rows from before a rejection and
// resubmission never count toward the current step.
type ApprovalRepository interface {
	Create(ctx context.Context, h *domain.ApprovalHistory) error
	ListByRequest(ctx context.Context, requestID string) ([]*domain.ApprovalHistory, error)
	// ApprovedRoleIDs returns the distinct role ids with an APPROVE at
	// (request, step) within the submission cycle.
	ApprovedRoleIDs(ctx context.Context, requestID, stepID, submissionID string) ([]string, error)
	// HasActed reports whether the user issued any decision at
	// (request, step) within the submission cycle.
	HasActed(ctx context.Context, requestID, stepID, submissionID, userID string) (bool, error)
	// LatestByApprover returns the user's most recent decision on the request.
	LatestByApprover(ctx context.Context, requestID, userID string) (*domain.ApprovalHistory, error)
}

// AuditRepository stores the append-only event ledger. There are no update
// or delete operations.
type AuditRepository interface {
	// Append persists the event and its field changes.
	Append(ctx context.Context, e *domain.AuditEvent) error
	ListByRequest(ctx context.Context, requestID string) ([]*domain.AuditEvent, error)
	ListBySubmission(ctx context.Context, submissionID string) ([]*domain.AuditEvent, error)
	ListByType(ctx context.Context, eventType domain.EventType, limit int) ([]*domain.AuditEvent, error)
}

// NotificationRepository stores inbox messages.
type NotificationRepository interface {
	Create(ctx context.Context, n *domain.Notification) error
	ListByUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]*domain.Notification, error)
	MarkRead(ctx context.Context, id, userID string) error
	// DeleteOlderThan removes notifications created before the cutoff and
	// returns the number deleted. Used by the retention job.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
