package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"procureflow.io/procureflow/internal/domain"
	apperrors "procureflow.io/procureflow/internal/pkg/errors"
	"procureflow.io/procureflow/internal/pkg/logger"
)

// FormFieldInput is one field definition in a form template payload.
type FormFieldInput struct {
	FieldID            string            `json:"field_id" binding:"required"`
	Label              string            `json:"label" binding:"required"`
	Type               domain.FieldType  `json:"type" binding:"required"`
	Required           bool              `json:"required"`
	Order              int               `json:"order"`
	DefaultValue       *string           `json:"default_value,omitempty"`
	HelpText           *string           `json:"help_text,omitempty"`
	DropdownOptions    []string          `json:"dropdown_options,omitempty"`
	ValidationRules    map[string]string `json:"validation_rules,omitempty"`
	AttachmentCategory string            `json:"attachment_category,omitempty"`
}

// CreateFormTemplateRequest is the payload for POST /form-templates.
type CreateFormTemplateRequest struct {
	Name   string           `json:"name" binding:"required"`
	Fields []FormFieldInput `json:"fields" binding:"required"`
}

// WorkflowStepInput is one step definition in a workflow template payload.
// ApproverRoles carries COMPANY_ROLE lookup codes.
type WorkflowStepInput struct {
	StepName        string   `json:"step_name" binding:"required"`
	IsFinanceReview bool     `json:"is_finance_review"`
	ApproverRoles   []string `json:"approver_roles" binding:"required"`
}

// CreateWorkflowTemplateRequest is the payload for POST /workflow-templates.
type CreateWorkflowTemplateRequest struct {
	Name        string              `json:"name" binding:"required"`
	Description string              `json:"description,omitempty"`
	Steps       []WorkflowStepInput `json:"steps" binding:"required"`
}

// AssignConfigRequest binds a template pair to (team, purchase type).
type AssignConfigRequest struct {
	FormTemplateID     string `json:"form_template_id" binding:"required"`
	WorkflowTemplateID string `json:"workflow_template_id" binding:"required"`
}

// CreateCategoryRequest is the payload for POST /teams/{team_id}/categories.
type CreateCategoryRequest struct {
	Name     string `json:"name" binding:"required"`
	Required bool   `json:"required"`
}

// CreateFormTemplate handles POST /form-templates.
func (s *Server) CreateFormTemplate(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		return
	}
	var req CreateFormTemplateRequest
	if !bindJSON(c, &req) {
		return
	}

	fields := make([]domain.FormField, 0, len(req.Fields))
	for _, f := range req.Fields {
		fields = append(fields, domain.FormField{
			FieldID:            f.FieldID,
			Label:              f.Label,
			Type:               f.Type,
			Required:           f.Required,
			Order:              f.Order,
			DefaultValue:       f.DefaultValue,
			HelpText:           f.HelpText,
			DropdownOptions:    f.DropdownOptions,
			ValidationRules:    f.ValidationRules,
			AttachmentCategory: f.AttachmentCategory,
		})
	}

	created, err := s.forms.Create(c.Request.Context(), req.Name, userID, fields)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// GetFormTemplate handles GET /form-templates/{template_id}.
func (s *Server) GetFormTemplate(c *gin.Context) {
	if _, ok := actorID(c); !ok {
		return
	}
	t, err := s.forms.GetWithFields(c.Request.Context(), c.Param("template_id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

// CreateWorkflowTemplate handles POST /workflow-templates. Approver role
// codes resolve against the COMPANY_ROLE lookup type before the service
// checks the structural invariants.
func (s *Server) CreateWorkflowTemplate(c *gin.Context) {
	if _, ok := actorID(c); !ok {
		return
	}
	var req CreateWorkflowTemplateRequest
	if !bindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	steps := make([]domain.WorkflowTemplateStep, 0, len(req.Steps))
	for i, in := range req.Steps {
		roles := make([]domain.Role, 0, len(in.ApproverRoles))
		for _, code := range in.ApproverRoles {
			role, err := s.lookups.ResolveRole(ctx, code)
			if err != nil {
				s.fail(c, err)
				return
			}
			roles = append(roles, domain.Role{ID: role.ID, Code: role.Code})
		}
		steps = append(steps, domain.WorkflowTemplateStep{
			StepOrder:       i + 1,
			StepName:        in.StepName,
			IsFinanceReview: in.IsFinanceReview,
			ApproverRoles:   roles,
		})
	}

	created, err := s.workflows.Create(ctx, req.Name, req.Description, steps)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// GetWorkflowTemplate handles GET /workflow-templates/{template_id}.
func (s *Server) GetWorkflowTemplate(c *gin.Context) {
	if _, ok := actorID(c); !ok {
		return
	}
	t, err := s.workflows.GetWithSteps(c.Request.Context(), c.Param("template_id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

// AssignTeamConfig handles PUT /teams/{team_id}/configs/{purchase_type}.
func (s *Server) AssignTeamConfig(c *gin.Context) {
	if _, ok := actorID(c); !ok {
		return
	}
	var req AssignConfigRequest
	if !bindJSON(c, &req) {
		return
	}

	pt, ok := purchaseTypeParam(c)
	if !ok {
		return
	}

	cfg, err := s.configs.Assign(c.Request.Context(), c.Param("team_id"), pt, req.FormTemplateID, req.WorkflowTemplateID)
	if err != nil {
		s.fail(c, err)
		return
	}

	logger.Info("Team purchase config assigned",
		zap.String("team_id", cfg.TeamID),
		zap.String("purchase_type", string(cfg.PurchaseType)),
		zap.String("form_template_id", cfg.FormTemplateID),
		zap.String("workflow_template_id", cfg.WorkflowTemplateID),
	)
	c.JSON(http.StatusOK, cfg)
}

// GetEffectiveTemplates handles
// GET /teams/{team_id}/configs/{purchase_type}/effective.
func (s *Server) GetEffectiveTemplates(c *gin.Context) {
	if _, ok := actorID(c); !ok {
		return
	}
	pt, ok := purchaseTypeParam(c)
	if !ok {
		return
	}

	eff, err := s.configs.Resolve(c.Request.Context(), c.Param("team_id"), pt)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, eff)
}

// ListAttachmentCategories handles GET /teams/{team_id}/categories.
func (s *Server) ListAttachmentCategories(c *gin.Context) {
	if _, ok := actorID(c); !ok {
		return
	}
	ctx := c.Request.Context()
	teamID := c.Param("team_id")

	if _, err := s.store.Teams().GetByID(ctx, teamID); err != nil {
		s.fail(c, apperrors.NotFound(apperrors.CodeTeamNotFound, "team not found"))
		return
	}
	cats, err := s.store.Categories().ListByTeam(ctx, teamID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": cats})
}

// CreateAttachmentCategory handles POST /teams/{team_id}/categories.
func (s *Server) CreateAttachmentCategory(c *gin.Context) {
	if _, ok := actorID(c); !ok {
		return
	}
	var req CreateCategoryRequest
	if !bindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	teamID := c.Param("team_id")
	if _, err := s.store.Teams().GetByID(ctx, teamID); err != nil {
		s.fail(c, apperrors.NotFound(apperrors.CodeTeamNotFound, "team not found"))
		return
	}
	if existing, err := s.attachments.CategoryByName(ctx, teamID, req.Name); err == nil && existing != nil {
		s.fail(c, apperrors.Conflict("CATEGORY_EXISTS", "a category with this name already exists on the team"))
		return
	}

	now := s.clock.Now()
	cat := &domain.AttachmentCategory{
		ID:        s.ids.NewID(),
		TeamID:    teamID,
		Name:      req.Name,
		Required:  req.Required,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Categories().Create(ctx, cat); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, cat)
}

// purchaseTypeParam parses the purchase_type path segment, answering 404
// through the error middleware on an unknown code.
func purchaseTypeParam(c *gin.Context) (domain.PurchaseType, bool) {
	pt := domain.PurchaseType(c.Param("purchase_type"))
	if pt != domain.PurchaseTypeService && pt != domain.PurchaseTypeGood {
		_ = c.Error(apperrors.ErrLookupNotFound(domain.LookupTypePurchaseType, string(pt)))
		return "", false
	}
	return pt, true
}
