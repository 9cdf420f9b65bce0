package domain

import "time"

// Lookup is a coded registry row resolved by (type_code, code).
type Lookup struct {
	ID        string    `json:"id"`
	TypeCode  string    `json:"type_code"`
	Code      string    `json:"code"`
	Title     string    `json:"title"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Team is an organizational unit owning requests and configurations.
type Team struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// User is an account that drafts, approves, or reviews requests.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	FullName     string    `json:"full_name"`
	PasswordHash string    `json:"-"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// AccessScope asserts that a user holds a role on a team.
type AccessScope struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	TeamID        string    `json:"team_id"`
	RoleID        string    `json:"role_id"`
	RoleCode      string    `json:"role_code"`
	PositionTitle *string   `json:"position_title,omitempty"`
	Active        bool      `json:"active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Role pairs a role lookup id with its code for authorization checks.
type Role struct {
	ID   string `json:"id"`
	Code string `json:"code"`
}

// AttachmentCategory names a per-team attachment bucket.
type AttachmentCategory struct {
	ID        string    `json:"id"`
	TeamID    string    `json:"team_id"`
	Name      string    `json:"name"`
	Required  bool      `json:"required"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FormTemplate is a versioned form definition, team-agnostic and reusable.
// Versions are monotonic per name; a published version never mutates.
type FormTemplate struct {
	ID            string      `json:"id"`
	Name          string      `json:"name"`
	VersionNumber int         `json:"version_number"`
	Active        bool        `json:"active"`
	CreatedBy     string      `json:"created_by"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
	Fields        []FormField `json:"fields,omitempty"`
}

// FormField is one field of a form template. FieldID is stable across
// versions of the same template name and anchors diffing and pinning.
// AttachmentCategory binds a FILE_UPLOAD field to the team attachment
// category that satisfies it; it is empty for all other types.
type FormField struct {
	ID                 string            `json:"id"`
	TemplateID         string            `json:"template_id"`
	FieldID            string            `json:"field_id"`
	Label              string            `json:"label"`
	Type               FieldType         `json:"type"`
	Required           bool              `json:"required"`
	Order              int               `json:"order"`
	DefaultValue       *string           `json:"default_value,omitempty"`
	HelpText           *string           `json:"help_text,omitempty"`
	DropdownOptions    []string          `json:"dropdown_options,omitempty"`
	ValidationRules    map[string]string `json:"validation_rules,omitempty"`
	AttachmentCategory string            `json:"attachment_category,omitempty"`
}

// WorkflowTemplate is a versioned ordered step sequence, team-agnostic.
type WorkflowTemplate struct {
	ID            string                 `json:"id"`
	Name          string                 `json:"name"`
	VersionNumber int                    `json:"version_number"`
	Description   string                 `json:"description,omitempty"`
	Active        bool                   `json:"active"`
	CreatedAt     time.Time              `json:"created_at"`
	UpdatedAt     time.Time              `json:"updated_at"`
	Steps         []WorkflowTemplateStep `json:"steps,omitempty"`
}

// WorkflowTemplateStep is one node of a workflow's ordered sequence.
// ApproverRoles is the set of roles authorized to act at this step.
type WorkflowTemplateStep struct {
	ID              string    `json:"id"`
	TemplateID      string    `json:"template_id"`
	StepOrder       int       `json:"step_order"`
	StepName        string    `json:"step_name"`
	IsFinanceReview bool      `json:"is_finance_review"`
	ApproverRoles   []Role    `json:"approver_roles,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// HasRole reports whether the role id belongs to the step's approver set.
func (s *WorkflowTemplateStep) HasRole(roleID string) bool {
	for _, r := range s.ApproverRoles {
		if r.ID == roleID {
			return true
		}
	}
	return false
}

// RoleIDs returns the approver role ids as a set.
func (s *WorkflowTemplateStep) RoleIDs() map[string]struct{} {
	set := make(map[string]struct{}, len(s.ApproverRoles))
	for _, r := range s.ApproverRoles {
		set[r.ID] = struct{}{}
	}
	return set
}

// TeamPurchaseConfig maps (team, purchase type) to the active template pair.
type TeamPurchaseConfig struct {
	ID                 string       `json:"id"`
	TeamID             string       `json:"team_id"`
	PurchaseType       PurchaseType `json:"purchase_type"`
	FormTemplateID     string       `json:"form_template_id"`
	WorkflowTemplateID string       `json:"workflow_template_id"`
	Active             bool         `json:"active"`
	CreatedAt          time.Time    `json:"created_at"`
	UpdatedAt          time.Time    `json:"updated_at"`
}

// PurchaseRequest is the primary lifecycle entity. FormTemplateID and
// WorkflowTemplateID are pinned at draft creation and never re-resolved.
// CurrentStepID is nil until first submission. CurrentSubmissionID groups
// the audit events of one submit cycle.
type PurchaseRequest struct {
	ID                  string       `json:"id"`
	RequestorID         string       `json:"requestor_id"`
	TeamID              string       `json:"team_id"`
	PurchaseType        PurchaseType `json:"purchase_type"`
	Status              Status       `json:"status"`
	FormTemplateID      string       `json:"form_template_id"`
	WorkflowTemplateID  string       `json:"workflow_template_id"`
	CurrentStepID       *string      `json:"current_step_id,omitempty"`
	VendorName          string       `json:"vendor_name"`
	VendorAccount       string       `json:"vendor_account,omitempty"`
	Subject             string       `json:"subject"`
	Description         string       `json:"description,omitempty"`
	SubmittedAt         *time.Time   `json:"submitted_at,omitempty"`
	CompletedAt         *time.Time   `json:"completed_at,omitempty"`
	RejectionComment    *string      `json:"rejection_comment,omitempty"`
	CurrentSubmissionID *string      `json:"current_submission_id,omitempty"`
	Active              bool         `json:"active"`
	CreatedAt           time.Time    `json:"created_at"`
	UpdatedAt           time.Time    `json:"updated_at"`
}

// RequestFieldValue stores one typed value for one form field of a request.
// FormFieldID references the pinned template's FormField row.
type RequestFieldValue struct {
	ID          string     `json:"id"`
	RequestID   string     `json:"request_id"`
	FormFieldID string     `json:"form_field_id"`
	Value       FieldValue `json:"value"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Attachment is a file bound to a request, optionally categorized and
// optionally bound to the approval action it accompanied.
type Attachment struct {
	ID                string    `json:"id"`
	RequestID         string    `json:"request_id"`
	CategoryID        *string   `json:"category_id,omitempty"`
	Filename          string    `json:"filename"`
	StorageRef        string    `json:"storage_ref"`
	FileSize          int64     `json:"file_size"`
	MimeType          string    `json:"mime_type"`
	UploadedBy        string    `json:"uploaded_by"`
	UploadedAt        time.Time `json:"uploaded_at"`
	ApprovalHistoryID *string   `json:"approval_history_id,omitempty"`
	Active            bool      `json:"active"`
}

// ApprovalHistory is the append-only record of one approver decision.
// SubmissionID scopes the decision to one submit cycle: after a rejection
// and resubmission, step aggregation starts over under a new submission id
// while the old rows stay in the history.
type ApprovalHistory struct {
	ID           string         `json:"id"`
	RequestID    string         `json:"request_id"`
	StepID       string         `json:"step_id"`
	SubmissionID string         `json:"submission_id"`
	ApproverID   string         `json:"approver_id"`
	RoleID       string         `json:"role_id"`
	RoleCode     string         `json:"role_code,omitempty"`
	Action       ApprovalAction `json:"action"`
	Comment      string         `json:"comment,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// Notification is an inbox message produced by lifecycle transitions.
type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	RequestID *string   `json:"request_id,omitempty"`
	Kind      string    `json:"kind"`
	Title     string    `json:"title"`
	Body      string    `json:"body,omitempty"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}
