package service

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"

	"go.uber.org/zap"

	"procureflow.io/procureflow/internal/domain"
	apperrors "procureflow.io/procureflow/internal/pkg/errors"
	"procureflow.io/procureflow/internal/pkg/logger"
	"procureflow.io/procureflow/internal/repository"
)

// FormTemplateService manages versioned form definitions. A published
// version never mutates; any change to the field set produces version
// max+1 under the same name. Requests pin the version in force at draft
// time and keep it for life.
type FormTemplateService struct {
	store repository.Store
	ids   domain.IDGenerator
	clock domain.Clock
}

// NewFormTemplateService creates a FormTemplateService over the store.
func NewFormTemplateService(store repository.Store, ids domain.IDGenerator, clock domain.Clock) *FormTemplateService {
	return &FormTemplateService{store: store, ids: ids, clock: clock}
}

// Create publishes a new version under name. The version number is the
// current maximum plus one, computed under a write lock so concurrent
// publishes serialize.
func (s *FormTemplateService) Create(ctx context.Context, name, createdBy string, fields []domain.FormField) (*domain.FormTemplate, error) {
	if err := validateFormFields(fields); err != nil {
		return nil, err
	}

	var created *domain.FormTemplate
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		max, err := tx.FormTemplates().MaxVersionForUpdate(ctx, name)
		if err != nil {
			return fmt.Errorf("max version of form template %s: %w", name, err)
		}
		created = s.buildVersion(name, createdBy, max+1, fields)
		if err := tx.FormTemplates().Create(ctx, created); err != nil {
			return fmt.Errorf("create form template %s v%d: %w", name, created.VersionNumber, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Form template version published",
		zap.String("name", created.Name),
		zap.Int("version", created.VersionNumber),
		zap.Int("fields", len(created.Fields)),
	)
	return created, nil
}

// CloneAndBump publishes a new version of the template carrying the
// mutated field set. When the field set is identical to the source
// version the source is returned unchanged and nothing is written.
func (s *FormTemplateService) CloneAndBump(ctx context.Context, templateID, createdBy string, fields []domain.FormField) (*domain.FormTemplate, error) {
	if err := validateFormFields(fields); err != nil {
		return nil, err
	}

	old, err := s.GetWithFields(ctx, templateID)
	if err != nil {
		return nil, err
	}
	if !formFieldsDiffer(old.Fields, fields) {
		return old, nil
	}

	var created *domain.FormTemplate
	err = s.store.InTx(ctx, func(tx repository.Tx) error {
		max, err := tx.FormTemplates().MaxVersionForUpdate(ctx, old.Name)
		if err != nil {
			return fmt.Errorf("max version of form template %s: %w", old.Name, err)
		}
		created = s.buildVersion(old.Name, createdBy, max+1, fields)
		if err := tx.FormTemplates().Create(ctx, created); err != nil {
			return fmt.Errorf("clone form template %s v%d: %w", old.Name, created.VersionNumber, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Form template cloned and bumped",
		zap.String("name", created.Name),
		zap.Int("from_version", old.VersionNumber),
		zap.Int("version", created.VersionNumber),
	)
	return created, nil
}

// GetWithFields returns the template with its fields in display order.
func (s *FormTemplateService) GetWithFields(ctx context.Context, templateID string) (*domain.FormTemplate, error) {
	t, err := s.store.FormTemplates().GetWithFields(ctx, templateID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound(apperrors.CodeTemplateNotFound, "form template not found")
		}
		return nil, fmt.Errorf("get form template %s: %w", templateID, err)
	}
	return t, nil
}

// ListVersions returns every version published under name, newest first.
func (s *FormTemplateService) ListVersions(ctx context.Context, name string) ([]*domain.FormTemplate, error) {
	versions, err := s.store.FormTemplates().ListVersions(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("list form template versions of %s: %w", name, err)
	}
	return versions, nil
}

// SetActive toggles whether the version may be bound by new configs.
// Requests already pinned to it are unaffected.
func (s *FormTemplateService) SetActive(ctx context.Context, templateID string, active bool) error {
	if err := s.store.FormTemplates().SetActive(ctx, templateID, active); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NotFound(apperrors.CodeTemplateNotFound, "form template not found")
		}
		return fmt.Errorf("set form template %s active=%t: %w", templateID, active, err)
	}
	return nil
}

func (s *FormTemplateService) buildVersion(name, createdBy string, version int, fields []domain.FormField) *domain.FormTemplate {
	now := s.clock.Now()
	t := &domain.FormTemplate{
		ID:            s.ids.NewID(),
		Name:          name,
		VersionNumber: version,
		Active:        true,
		CreatedBy:     createdBy,
		CreatedAt:     now,
		UpdatedAt:     now,
		Fields:        make([]domain.FormField, len(fields)),
	}
	for i, f := range fields {
		f.ID = s.ids.NewID()
		f.TemplateID = t.ID
		f.DropdownOptions = slices.Clone(f.DropdownOptions)
		f.ValidationRules = maps.Clone(f.ValidationRules)
		t.Fields[i] = f
	}
	return t
}

// validateFormFields enforces the structural invariants of a field set:
// non-empty field ids and labels, unique field ids and orders, recognized
// types, DROPDOWN iff options present, FILE_UPLOAD iff category bound.
func validateFormFields(fields []domain.FormField) error {
	seenIDs := make(map[string]struct{}, len(fields))
	seenOrders := make(map[int]struct{}, len(fields))
	for _, f := range fields {
		if f.FieldID == "" {
			return apperrors.ErrTemplateInvariant("form field is missing a field id")
		}
		if _, dup := seenIDs[f.FieldID]; dup {
			return apperrors.ErrTemplateInvariant(fmt.Sprintf("duplicate field id %q", f.FieldID))
		}
		seenIDs[f.FieldID] = struct{}{}

		if f.Label == "" {
			return apperrors.ErrTemplateInvariant(fmt.Sprintf("field %q has no label", f.FieldID))
		}
		if !f.Type.Valid() {
			return apperrors.ErrTemplateInvariant(fmt.Sprintf("field %q has unknown type %q", f.FieldID, f.Type))
		}
		if f.Order < 1 {
			return apperrors.ErrTemplateInvariant(fmt.Sprintf("field %q has non-positive order %d", f.FieldID, f.Order))
		}
		if _, dup := seenOrders[f.Order]; dup {
			return apperrors.ErrTemplateInvariant(fmt.Sprintf("duplicate field order %d", f.Order))
		}
		seenOrders[f.Order] = struct{}{}

		if (f.Type == domain.FieldTypeDropdown) != (len(f.DropdownOptions) > 0) {
			return apperrors.ErrTemplateInvariant(fmt.Sprintf("field %q: dropdown options are required exactly for DROPDOWN fields", f.FieldID))
		}
		if (f.Type == domain.FieldTypeFileUpload) != (f.AttachmentCategory != "") {
			return apperrors.ErrTemplateInvariant(fmt.Sprintf("field %q: attachment category is required exactly for FILE_UPLOAD fields", f.FieldID))
		}
	}
	return nil
}

// formFieldsDiffer reports whether the mutated field set deviates from the
// published one. Fields pair up by stable field id; any change of label,
// type, required, order, default, help text, validation rules, dropdown
// options, or category binding forces a version bump.
func formFieldsDiffer(published, mutated []domain.FormField) bool {
	if len(published) != len(mutated) {
		return true
	}
	byID := make(map[string]domain.FormField, len(published))
	for _, f := range published {
		byID[f.FieldID] = f
	}
	for _, m := range mutated {
		p, ok := byID[m.FieldID]
		if !ok {
			return true
		}
		if p.Label != m.Label ||
			p.Type != m.Type ||
			p.Required != m.Required ||
			p.Order != m.Order ||
			!strPtrEqual(p.DefaultValue, m.DefaultValue) ||
			!strPtrEqual(p.HelpText, m.HelpText) ||
			!slices.Equal(p.DropdownOptions, m.DropdownOptions) ||
			!maps.Equal(p.ValidationRules, m.ValidationRules) ||
			p.AttachmentCategory != m.AttachmentCategory {
			return true
		}
	}
	return false
}

func strPtrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
