package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"

	"procureflow.io/procureflow/internal/domain"
	apperrors "procureflow.io/procureflow/internal/pkg/errors"
	"procureflow.io/procureflow/internal/pkg/logger"
	"procureflow.io/procureflow/internal/repository"
)

// WorkflowTemplateService manages versioned approval pipelines. Every
// saved version must form a contiguous step sequence ending in the single
// finance review step; versions never mutate once published.
type WorkflowTemplateService struct {
	store repository.Store
	ids   domain.IDGenerator
	clock domain.Clock

	// requireFinanceLast drops to false only via explicit configuration;
	// the finance step may then sit anywhere in the sequence.
	requireFinanceLast bool
}

// NewWorkflowTemplateService creates a WorkflowTemplateService over the store.
func NewWorkflowTemplateService(store repository.Store, ids domain.IDGenerator, clock domain.Clock, requireFinanceLast bool) *WorkflowTemplateService {
	return &WorkflowTemplateService{
		store:              store,
		ids:                ids,
		clock:              clock,
		requireFinanceLast: requireFinanceLast,
	}
}

// Create publishes a new version under name after enforcing the
// structural invariants. Version numbering serializes under a write lock.
func (s *WorkflowTemplateService) Create(ctx context.Context, name, description string, steps []domain.WorkflowTemplateStep) (*domain.WorkflowTemplate, error) {
	if err := s.validateSteps(steps); err != nil {
		return nil, err
	}

	var created *domain.WorkflowTemplate
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		if err := verifyStepRoles(ctx, tx, steps); err != nil {
			return err
		}
		max, err := tx.WorkflowTemplates().MaxVersionForUpdate(ctx, name)
		if err != nil {
			return fmt.Errorf("max version of workflow template %s: %w", name, err)
		}
		created = s.buildVersion(name, description, max+1, steps)
		if err := tx.WorkflowTemplates().Create(ctx, created); err != nil {
			return fmt.Errorf("create workflow template %s v%d: %w", name, created.VersionNumber, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Workflow template version published",
		zap.String("name", created.Name),
		zap.Int("version", created.VersionNumber),
		zap.Int("steps", len(created.Steps)),
	)
	return created, nil
}

// CloneAndBump publishes a new version carrying the mutated step
// sequence, preserving approver role sets by role lookup id. An identical
// sequence returns the source version unchanged.
func (s *WorkflowTemplateService) CloneAndBump(ctx context.Context, templateID, description string, steps []domain.WorkflowTemplateStep) (*domain.WorkflowTemplate, error) {
	if err := s.validateSteps(steps); err != nil {
		return nil, err
	}

	old, err := s.GetWithSteps(ctx, templateID)
	if err != nil {
		return nil, err
	}
	if !workflowStepsDiffer(old.Steps, steps) {
		return old, nil
	}

	var created *domain.WorkflowTemplate
	err = s.store.InTx(ctx, func(tx repository.Tx) error {
		if err := verifyStepRoles(ctx, tx, steps); err != nil {
			return err
		}
		max, err := tx.WorkflowTemplates().MaxVersionForUpdate(ctx, old.Name)
		if err != nil {
			return fmt.Errorf("max version of workflow template %s: %w", old.Name, err)
		}
		created = s.buildVersion(old.Name, description, max+1, steps)
		if err := tx.WorkflowTemplates().Create(ctx, created); err != nil {
			return fmt.Errorf("clone workflow template %s v%d: %w", old.Name, created.VersionNumber, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Workflow template cloned and bumped",
		zap.String("name", created.Name),
		zap.Int("from_version", old.VersionNumber),
		zap.Int("version", created.VersionNumber),
	)
	return created, nil
}

// GetWithSteps returns the template with steps in pipeline order, each
// hydrated with its approver role set.
func (s *WorkflowTemplateService) GetWithSteps(ctx context.Context, templateID string) (*domain.WorkflowTemplate, error) {
	t, err := s.store.WorkflowTemplates().GetWithSteps(ctx, templateID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound(apperrors.CodeTemplateNotFound, "workflow template not found")
		}
		return nil, fmt.Errorf("get workflow template %s: %w", templateID, err)
	}
	return t, nil
}

// GetStep returns one step with its approver roles.
func (s *WorkflowTemplateService) GetStep(ctx context.Context, stepID string) (*domain.WorkflowTemplateStep, error) {
	step, err := s.store.WorkflowTemplates().GetStep(ctx, stepID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound(apperrors.CodeTemplateNotFound, "workflow step not found")
		}
		return nil, fmt.Errorf("get workflow step %s: %w", stepID, err)
	}
	return step, nil
}

// ListVersions returns every version published under name, newest first.
func (s *WorkflowTemplateService) ListVersions(ctx context.Context, name string) ([]*domain.WorkflowTemplate, error) {
	versions, err := s.store.WorkflowTemplates().ListVersions(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("list workflow template versions of %s: %w", name, err)
	}
	return versions, nil
}

// SetActive toggles whether the version may be bound by new configs.
func (s *WorkflowTemplateService) SetActive(ctx context.Context, templateID string, active bool) error {
	if err := s.store.WorkflowTemplates().SetActive(ctx, templateID, active); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NotFound(apperrors.CodeTemplateNotFound, "workflow template not found")
		}
		return fmt.Errorf("set workflow template %s active=%t: %w", templateID, active, err)
	}
	return nil
}

func (s *WorkflowTemplateService) buildVersion(name, description string, version int, steps []domain.WorkflowTemplateStep) *domain.WorkflowTemplate {
	now := s.clock.Now()
	t := &domain.WorkflowTemplate{
		ID:            s.ids.NewID(),
		Name:          name,
		VersionNumber: version,
		Description:   description,
		Active:        true,
		CreatedAt:     now,
		UpdatedAt:     now,
		Steps:         make([]domain.WorkflowTemplateStep, len(steps)),
	}
	for i, step := range steps {
		step.ID = s.ids.NewID()
		step.TemplateID = t.ID
		step.ApproverRoles = slices.Clone(step.ApproverRoles)
		step.CreatedAt = now
		step.UpdatedAt = now
		t.Steps[i] = step
	}
	slices.SortFunc(t.Steps, func(a, b domain.WorkflowTemplateStep) int { return a.StepOrder - b.StepOrder })
	return t
}

// validateSteps enforces the pipeline invariants: at least two steps,
// orders forming 1..n without gaps, exactly one finance review step at
// the end, and a non-empty deduplicated role set per step.
func (s *WorkflowTemplateService) validateSteps(steps []domain.WorkflowTemplateStep) error {
	if len(steps) < 2 {
		return apperrors.ErrTemplateInvariant(fmt.Sprintf("workflow needs at least 2 steps, got %d", len(steps)))
	}

	ordered := slices.Clone(steps)
	slices.SortFunc(ordered, func(a, b domain.WorkflowTemplateStep) int { return a.StepOrder - b.StepOrder })

	financeCount := 0
	for i, step := range ordered {
		if step.StepOrder != i+1 {
			return apperrors.ErrTemplateInvariant(fmt.Sprintf("step orders must form 1..%d, found %d at position %d", len(ordered), step.StepOrder, i+1))
		}
		if strings.TrimSpace(step.StepName) == "" {
			return apperrors.ErrTemplateInvariant(fmt.Sprintf("step %d has no name", step.StepOrder))
		}
		if len(step.ApproverRoles) == 0 {
			return apperrors.ErrTemplateInvariant(fmt.Sprintf("step %q has no approver roles", step.StepName))
		}
		seen := make(map[string]struct{}, len(step.ApproverRoles))
		for _, role := range step.ApproverRoles {
			if role.ID == "" {
				return apperrors.ErrTemplateInvariant(fmt.Sprintf("step %q names a role without a lookup id", step.StepName))
			}
			if _, dup := seen[role.ID]; dup {
				return apperrors.ErrTemplateInvariant(fmt.Sprintf("step %q lists role %s twice", step.StepName, role.ID))
			}
			seen[role.ID] = struct{}{}
		}
		if step.IsFinanceReview {
			financeCount++
			if s.requireFinanceLast && i != len(ordered)-1 {
				return apperrors.ErrTemplateInvariant(fmt.Sprintf("finance review step %q must be the last step", step.StepName))
			}
		}
	}
	if financeCount != 1 {
		return apperrors.ErrTemplateInvariant(fmt.Sprintf("exactly one finance review step required, got %d", financeCount))
	}
	return nil
}

// verifyStepRoles checks every approver role against the registry: the
// lookup must exist, be active, and be a COMPANY_ROLE.
func verifyStepRoles(ctx context.Context, acc repository.Accessor, steps []domain.WorkflowTemplateStep) error {
	checked := make(map[string]struct{})
	for _, step := range steps {
		for _, role := range step.ApproverRoles {
			if _, done := checked[role.ID]; done {
				continue
			}
			checked[role.ID] = struct{}{}

			l, err := acc.Lookups().GetByID(ctx, role.ID)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return apperrors.ErrTemplateInvariant(fmt.Sprintf("step %q references unknown role %s", step.StepName, role.ID))
				}
				return fmt.Errorf("verify role %s: %w", role.ID, err)
			}
			if !l.Active || l.TypeCode != domain.LookupTypeCompanyRole {
				return apperrors.ErrTemplateInvariant(fmt.Sprintf("step %q references role %s which is not an active company role", step.StepName, role.ID))
			}
		}
	}
	return nil
}

// workflowStepsDiffer reports whether the mutated sequence deviates from
// the published one: step count, names, orders, finance flags, or role
// sets (by lookup id, order-insensitive).
func workflowStepsDiffer(published, mutated []domain.WorkflowTemplateStep) bool {
	if len(published) != len(mutated) {
		return true
	}
	p := slices.Clone(published)
	m := slices.Clone(mutated)
	slices.SortFunc(p, func(a, b domain.WorkflowTemplateStep) int { return a.StepOrder - b.StepOrder })
	slices.SortFunc(m, func(a, b domain.WorkflowTemplateStep) int { return a.StepOrder - b.StepOrder })

	for i := range p {
		if p[i].StepOrder != m[i].StepOrder ||
			p[i].StepName != m[i].StepName ||
			p[i].IsFinanceReview != m[i].IsFinanceReview ||
			!slices.Equal(sortedRoleIDs(p[i].ApproverRoles), sortedRoleIDs(m[i].ApproverRoles)) {
			return true
		}
	}
	return false
}

func sortedRoleIDs(roles []domain.Role) []string {
	ids := make([]string, len(roles))
	for i, r := range roles {
		ids[i] = r.ID
	}
	slices.Sort(ids)
	return ids
}
