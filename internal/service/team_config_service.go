package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"procureflow.io/procureflow/internal/domain"
	apperrors "procureflow.io/procureflow/internal/pkg/errors"
	"procureflow.io/procureflow/internal/pkg/logger"
	"procureflow.io/procureflow/internal/repository"
)

// TeamConfigService binds a (team, purchase type) pair to the form and
// workflow template versions new drafts should pin. At most one binding
// per pair is active at any time.
type TeamConfigService struct {
	store repository.Store
	ids   domain.IDGenerator
	clock domain.Clock
}

// NewTeamConfigService creates a TeamConfigService over the store.
func NewTeamConfigService(store repository.Store, ids domain.IDGenerator, clock domain.Clock) *TeamConfigService {
	return &TeamConfigService{store: store, ids: ids, clock: clock}
}

// EffectiveTemplates is the resolved binding for a (team, purchase type)
// pair: the active config plus both templates fully hydrated.
type EffectiveTemplates struct {
	Config           *domain.TeamPurchaseConfig `json:"config"`
	FormTemplate     *domain.FormTemplate       `json:"form_template"`
	WorkflowTemplate *domain.WorkflowTemplate   `json:"workflow_template"`
}

// ResolveActive returns the single active config for the pair.
func (s *TeamConfigService) ResolveActive(ctx context.Context, teamID string, pt domain.PurchaseType) (*domain.TeamPurchaseConfig, error) {
	cfg, err := s.store.Configs().ResolveActive(ctx, teamID, pt)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.ErrConfigurationMissing(teamID, string(pt))
		}
		return nil, fmt.Errorf("resolve config for team %s type %s: %w", teamID, pt, err)
	}
	return cfg, nil
}

// Resolve returns the active config plus the bound templates with their
// fields and steps. Draft creation and the config surface both read
// through here.
func (s *TeamConfigService) Resolve(ctx context.Context, teamID string, pt domain.PurchaseType) (*EffectiveTemplates, error) {
	cfg, err := s.ResolveActive(ctx, teamID, pt)
	if err != nil {
		return nil, err
	}
	form, err := s.store.FormTemplates().GetWithFields(ctx, cfg.FormTemplateID)
	if err != nil {
		return nil, fmt.Errorf("load bound form template %s: %w", cfg.FormTemplateID, err)
	}
	workflow, err := s.store.WorkflowTemplates().GetWithSteps(ctx, cfg.WorkflowTemplateID)
	if err != nil {
		return nil, fmt.Errorf("load bound workflow template %s: %w", cfg.WorkflowTemplateID, err)
	}
	return &EffectiveTemplates{Config: cfg, FormTemplate: form, WorkflowTemplate: workflow}, nil
}

// Assign activates a new binding for the pair, deactivating any current
// one in the same transaction so the at-most-one-active invariant holds
// at every commit point.
func (s *TeamConfigService) Assign(ctx context.Context, teamID string, pt domain.PurchaseType, formTemplateID, workflowTemplateID string) (*domain.TeamPurchaseConfig, error) {
	var created *domain.TeamPurchaseConfig
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		if _, err := tx.Teams().GetByID(ctx, teamID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperrors.NotFound(apperrors.CodeTeamNotFound, "team not found")
			}
			return fmt.Errorf("load team %s: %w", teamID, err)
		}
		if _, err := tx.FormTemplates().GetByID(ctx, formTemplateID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperrors.NotFound(apperrors.CodeTemplateNotFound, "form template not found")
			}
			return fmt.Errorf("load form template %s: %w", formTemplateID, err)
		}
		if _, err := tx.WorkflowTemplates().GetByID(ctx, workflowTemplateID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperrors.NotFound(apperrors.CodeTemplateNotFound, "workflow template not found")
			}
			return fmt.Errorf("load workflow template %s: %w", workflowTemplateID, err)
		}

		if err := tx.Configs().DeactivateActive(ctx, teamID, pt); err != nil {
			return fmt.Errorf("deactivate current config for team %s type %s: %w", teamID, pt, err)
		}

		now := s.clock.Now()
		created = &domain.TeamPurchaseConfig{
			ID:                 s.ids.NewID(),
			TeamID:             teamID,
			PurchaseType:       pt,
			FormTemplateID:     formTemplateID,
			WorkflowTemplateID: workflowTemplateID,
			Active:             true,
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		if err := tx.Configs().Create(ctx, created); err != nil {
			return fmt.Errorf("create config for team %s type %s: %w", teamID, pt, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Team purchase config assigned",
		zap.String("team_id", teamID),
		zap.String("purchase_type", string(pt)),
		zap.String("form_template_id", formTemplateID),
		zap.String("workflow_template_id", workflowTemplateID),
	)
	return created, nil
}

// ListByTeam returns the team's configs, active and historical.
func (s *TeamConfigService) ListByTeam(ctx context.Context, teamID string) ([]*domain.TeamPurchaseConfig, error) {
	configs, err := s.store.Configs().ListByTeam(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("list configs of team %s: %w", teamID, err)
	}
	return configs, nil
}
