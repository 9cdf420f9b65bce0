// Package memory implements the repository contracts on in-process maps.
// It backs unit tests and local runs without PostgreSQL. A single mutex
// serializes transactions; InTx clones the dataset and swaps the clone in
// on commit, so a failed transaction leaves no partial writes behind.
package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"procureflow.io/procureflow/internal/domain"
	"procureflow.io/procureflow/internal/repository"
)

// data holds every table as a value-typed map. Entries are replaced whole
// on write and deep-copied on read, so clones can share slice backing
// safely.
type data struct {
	lookups       map[string]domain.Lookup
	teams         map[string]domain.Team
	users         map[string]domain.User
	scopes        map[string]domain.AccessScope
	formTemplates map[string]domain.FormTemplate
	workflows     map[string]domain.WorkflowTemplate
	configs       map[string]domain.TeamPurchaseConfig
	categories    map[string]domain.AttachmentCategory
	requests      map[string]domain.PurchaseRequest
	fieldValues   map[string]domain.RequestFieldValue
	attachments   map[string]domain.Attachment
	approvals     map[string]domain.ApprovalHistory
	auditEvents   map[string]domain.AuditEvent
	notifications map[string]domain.Notification
}

func newData() *data {
	return &data{
		lookups:       make(map[string]domain.Lookup),
		teams:         make(map[string]domain.Team),
		users:         make(map[string]domain.User),
		scopes:        make(map[string]domain.AccessScope),
		formTemplates: make(map[string]domain.FormTemplate),
		workflows:     make(map[string]domain.WorkflowTemplate),
		configs:       make(map[string]domain.TeamPurchaseConfig),
		categories:    make(map[string]domain.AttachmentCategory),
		requests:      make(map[string]domain.PurchaseRequest),
		fieldValues:   make(map[string]domain.RequestFieldValue),
		attachments:   make(map[string]domain.Attachment),
		approvals:     make(map[string]domain.ApprovalHistory),
		auditEvents:   make(map[string]domain.AuditEvent),
		notifications: make(map[string]domain.Notification),
	}
}

func (d *data) clone() *data {
	return &data{
		lookups:       maps.Clone(d.lookups),
		teams:         maps.Clone(d.teams),
		users:         maps.Clone(d.users),
		scopes:        maps.Clone(d.scopes),
		formTemplates: maps.Clone(d.formTemplates),
		workflows:     maps.Clone(d.workflows),
		configs:       maps.Clone(d.configs),
		categories:    maps.Clone(d.categories),
		requests:      maps.Clone(d.requests),
		fieldValues:   maps.Clone(d.fieldValues),
		attachments:   maps.Clone(d.attachments),
		approvals:     maps.Clone(d.approvals),
		auditEvents:   maps.Clone(d.auditEvents),
		notifications: maps.Clone(d.notifications),
	}
}

// source hands a repository the dataset to operate on. The root store
// locks per call; a transaction already owns the lock and returns its
// working clone directly.
type source interface {
	acquire() (*data, func())
}

// Store is the map-backed root store.
type Store struct {
	accessor
	mu sync.Mutex
	d  *data
}

// NewStore creates an empty Store.
func NewStore() *Store {
	s := &Store{d: newData()}
	s.accessor = accessor{src: s}
	return s
}

func (s *Store) acquire() (*data, func()) {
	s.mu.Lock()
	return s.d, s.mu.Unlock
}

// InTx runs fn against a clone of the dataset and swaps the clone in iff
// fn returns nil. The store mutex is held for the whole transaction, so
// transactions never observe each other's partial state.
func (s *Store) InTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	working := s.d.clone()
	if err := fn(txAccessor{accessor{src: staticSource{d: working}}}); err != nil {
		return err
	}
	s.d = working
	return nil
}

type staticSource struct {
	d *data
}

func (s staticSource) acquire() (*data, func()) { return s.d, func() {} }

type accessor struct {
	src source
}

type txAccessor struct {
	accessor
}

func (a accessor) Lookups() repository.LookupRepository                     { return &lookupRepo{src: a.src} }
func (a accessor) Teams() repository.TeamRepository                         { return &teamRepo{src: a.src} }
func (a accessor) Users() repository.UserRepository                         { return &userRepo{src: a.src} }
func (a accessor) Scopes() repository.ScopeRepository                       { return &scopeRepo{src: a.src} }
func (a accessor) FormTemplates() repository.FormTemplateRepository         { return &formTemplateRepo{src: a.src} }
func (a accessor) WorkflowTemplates() repository.WorkflowTemplateRepository { return &workflowTemplateRepo{src: a.src} }
func (a accessor) Configs() repository.ConfigRepository                     { return &configRepo{src: a.src} }
func (a accessor) Categories() repository.CategoryRepository                { return &categoryRepo{src: a.src} }
func (a accessor) Requests() repository.RequestRepository                   { return &requestRepo{src: a.src} }
func (a accessor) FieldValues() repository.FieldValueRepository             { return &fieldValueRepo{src: a.src} }
func (a accessor) Attachments() repository.AttachmentRepository             { return &attachmentRepo{src: a.src} }
func (a accessor) Approvals() repository.ApprovalRepository                 { return &approvalRepo{src: a.src} }
func (a accessor) Audit() repository.AuditRepository                        { return &auditRepo{src: a.src} }
func (a accessor) Notifications() repository.NotificationRepository         { return &notificationRepo{src: a.src} }

func notFound(entity, key string) error {
	return fmt.Errorf("%s %s: %w", entity, key, repository.ErrNotFound)
}

func duplicate(detail string) error {
	return fmt.Errorf("%w: %s", repository.ErrDuplicate, detail)
}

// ── copy helpers ──────────────────────────────────────────────────────────────

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func copyScope(s domain.AccessScope) domain.AccessScope {
	s.PositionTitle = clonePtr(s.PositionTitle)
	return s
}

func copyFormTemplate(t domain.FormTemplate) domain.FormTemplate {
	fields := make([]domain.FormField, len(t.Fields))
	for i, f := range t.Fields {
		f.DefaultValue = clonePtr(f.DefaultValue)
		f.HelpText = clonePtr(f.HelpText)
		f.DropdownOptions = slices.Clone(f.DropdownOptions)
		f.ValidationRules = maps.Clone(f.ValidationRules)
		fields[i] = f
	}
	t.Fields = fields
	return t
}

func copyWorkflowTemplate(t domain.WorkflowTemplate) domain.WorkflowTemplate {
	steps := make([]domain.WorkflowTemplateStep, len(t.Steps))
	for i, s := range t.Steps {
		s.ApproverRoles = slices.Clone(s.ApproverRoles)
		steps[i] = s
	}
	t.Steps = steps
	return t
}

func copyRequest(r domain.PurchaseRequest) domain.PurchaseRequest {
	r.CurrentStepID = clonePtr(r.CurrentStepID)
	r.SubmittedAt = clonePtr(r.SubmittedAt)
	r.CompletedAt = clonePtr(r.CompletedAt)
	r.RejectionComment = clonePtr(r.RejectionComment)
	r.CurrentSubmissionID = clonePtr(r.CurrentSubmissionID)
	return r
}

func copyFieldValue(v domain.RequestFieldValue) domain.RequestFieldValue {
	v.Value.Text = clonePtr(v.Value.Text)
	v.Value.Number = clonePtr(v.Value.Number)
	v.Value.Bool = clonePtr(v.Value.Bool)
	v.Value.Date = clonePtr(v.Value.Date)
	v.Value.Dropdown = clonePtr(v.Value.Dropdown)
	return v
}

func copyAttachment(a domain.Attachment) domain.Attachment {
	a.CategoryID = clonePtr(a.CategoryID)
	a.ApprovalHistoryID = clonePtr(a.ApprovalHistoryID)
	return a
}

func copyAuditEvent(e domain.AuditEvent) domain.AuditEvent {
	e.ActorID = clonePtr(e.ActorID)
	e.RequestID = clonePtr(e.RequestID)
	e.SubmissionID = clonePtr(e.SubmissionID)
	e.Metadata = maps.Clone(e.Metadata)
	changes := make([]domain.FieldChange, len(e.FieldChanges))
	for i, c := range e.FieldChanges {
		c.FieldRefID = clonePtr(c.FieldRefID)
		c.OldValue = clonePtr(c.OldValue)
		c.NewValue = clonePtr(c.NewValue)
		changes[i] = c
	}
	e.FieldChanges = changes
	return e
}

func copyNotification(n domain.Notification) domain.Notification {
	n.RequestID = clonePtr(n.RequestID)
	return n
}
